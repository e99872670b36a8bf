package replay

import (
	"sort"
	"time"

	"github.com/xiaot623/gogo/replayer/internal/domain"
)

// stepAt returns the index of the step current at elapsed time t: the last
// step whose relative time is <= t, or -1 when t precedes the first step.
// Both the running clock and manual seeks resolve positions through here.
func stepAt(steps []domain.ReplayStep, t time.Duration) int {
	i := sort.Search(len(steps), func(i int) bool {
		return offset(steps[i].RelativeTime) > t
	})
	return i - 1
}

func offset(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
