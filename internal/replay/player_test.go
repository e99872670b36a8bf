package replay

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/replayer/internal/domain"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// makeData builds replay data with steps at the given offsets. Each step
// lasts until the next one; the last lasts 100ms and ends the run.
func makeData(rel ...int64) *domain.ReplayData {
	steps := make([]domain.ReplayStep, len(rel))
	for i, r := range rel {
		dur := int64(100)
		if i+1 < len(rel) {
			dur = rel[i+1] - r
		}
		steps[i] = domain.ReplayStep{
			Index:        i,
			ID:           "step-" + string(rune('a'+i)),
			Type:         domain.StepTypeToolCall,
			Name:         "step",
			RelativeTime: r,
			Duration:     dur,
			Status:       domain.StepStatusCompleted,
		}
	}
	total := int64(0)
	if len(steps) > 0 {
		total = steps[len(steps)-1].End()
	}
	return &domain.ReplayData{RunID: "run-1", Steps: steps, TotalDuration: total}
}

func completionData() *domain.ReplayData {
	return &domain.ReplayData{
		RunID: "run-1",
		Steps: []domain.ReplayStep{
			{Index: 0, ID: "s0", Type: domain.StepTypeLLMCall, RelativeTime: 0, Duration: 100, Status: domain.StepStatusCompleted},
			{Index: 1, ID: "s1", Type: domain.StepTypeToolCall, RelativeTime: 500, Duration: 200, Status: domain.StepStatusCompleted},
		},
		TotalDuration: 700,
	}
}

func newTestPlayer(t *testing.T, data *domain.ReplayData) (*Player, *manualClock) {
	t.Helper()
	clock := newManualClock()
	p, err := NewPlayer(data, clock)
	require.NoError(t, err)
	return p, clock
}

func TestNewPlayerRejectsEmptyData(t *testing.T) {
	tests := []struct {
		name string
		data *domain.ReplayData
	}{
		{name: "nil data", data: nil},
		{name: "no steps", data: &domain.ReplayData{TotalDuration: 100}},
		{name: "zero duration", data: &domain.ReplayData{
			Steps: []domain.ReplayStep{{Index: 0}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPlayer(tt.data, nil)
			assert.ErrorIs(t, err, ErrEmptyReplay)
		})
	}
}

func TestNewPlayerRejectsInvalidData(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(d *domain.ReplayData)
	}{
		{name: "index gap", mutate: func(d *domain.ReplayData) { d.Steps[1].Index = 5 }},
		{name: "negative offset", mutate: func(d *domain.ReplayData) { d.Steps[0].RelativeTime = -1 }},
		{name: "negative duration", mutate: func(d *domain.ReplayData) { d.Steps[2].Duration = -10 }},
		{name: "decreasing offsets", mutate: func(d *domain.ReplayData) { d.Steps[2].RelativeTime = 100 }},
		{name: "total before last step", mutate: func(d *domain.ReplayData) { d.TotalDuration = 300 }},
		{name: "total beyond duration range", mutate: func(d *domain.ReplayData) { d.TotalDuration = math.MaxInt64 / 1000 }},
		{name: "snapshot count mismatch", mutate: func(d *domain.ReplayData) {
			d.StateSnapshots = []domain.StateSnapshot{{CompletedSteps: 1}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := makeData(0, 200, 450)
			tt.mutate(data)
			_, err := NewPlayer(data, nil)
			assert.ErrorIs(t, err, ErrInvalidReplay)
		})
	}
}

func TestPlayerStartsIdle(t *testing.T) {
	p, _ := newTestPlayer(t, makeData(0, 200, 450))

	state := p.State()
	assert.False(t, state.IsPlaying)
	assert.Equal(t, int64(0), state.ElapsedTime)
	assert.Equal(t, -1, state.CurrentStepIndex)
	assert.Equal(t, 1.0, state.PlaybackSpeed)
	assert.Equal(t, int64(550), state.TotalDuration)
	assert.Equal(t, 3, state.StepCount)

	_, ok := p.CurrentStep()
	assert.False(t, ok)
}

func TestPlayerStepForwardScenario(t *testing.T) {
	p, _ := newTestPlayer(t, makeData(0, 200, 450))

	want := []struct {
		index   int
		elapsed int64
	}{
		{0, 0},
		{1, 200},
		{2, 450},
		{2, 450}, // no-op at the last step
	}
	for i, w := range want {
		p.StepForward()
		state := p.State()
		assert.Equal(t, w.index, state.CurrentStepIndex, "step %d index", i)
		assert.Equal(t, w.elapsed, state.ElapsedTime, "step %d elapsed", i)
		assert.False(t, state.IsPlaying)
	}
}

func TestPlayerStepForwardPausesPlayback(t *testing.T) {
	p, clock := newTestPlayer(t, makeData(0, 200, 450))
	p.Play()
	clock.Advance(250 * time.Millisecond)
	p.Tick()
	require.Equal(t, 1, p.State().CurrentStepIndex)

	p.StepForward()
	state := p.State()
	assert.False(t, state.IsPlaying)
	assert.Equal(t, 2, state.CurrentStepIndex)
	assert.Equal(t, int64(450), state.ElapsedTime)
}

func TestPlayerStepBackward(t *testing.T) {
	p, _ := newTestPlayer(t, makeData(0, 200, 450))

	// From not-started the index clamps to the first step.
	p.StepBackward()
	assert.Equal(t, 0, p.State().CurrentStepIndex)

	require.NoError(t, p.JumpToStep(2))
	p.StepBackward()
	assert.Equal(t, 1, p.State().CurrentStepIndex)
	assert.Equal(t, int64(200), p.State().ElapsedTime)

	p.StepBackward()
	p.StepBackward()
	assert.Equal(t, 0, p.State().CurrentStepIndex)
	assert.Equal(t, int64(0), p.State().ElapsedTime)
}

func TestPlayerJumpToStep(t *testing.T) {
	p, _ := newTestPlayer(t, makeData(0, 200, 450))
	p.Play()

	require.NoError(t, p.JumpToStep(1))
	state := p.State()
	assert.False(t, state.IsPlaying)
	assert.Equal(t, 1, state.CurrentStepIndex)
	assert.Equal(t, int64(200), state.ElapsedTime)

	step, ok := p.CurrentStep()
	require.True(t, ok)
	assert.Equal(t, 1, step.Index)
}

func TestPlayerJumpToStepOutOfRange(t *testing.T) {
	p, _ := newTestPlayer(t, makeData(0, 200, 450))
	require.NoError(t, p.JumpToStep(1))
	p.Play()
	before := p.State()

	for _, idx := range []int{-1, 3, 100} {
		err := p.JumpToStep(idx)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrOutOfRange)

		var rangeErr *OutOfRangeError
		require.ErrorAs(t, err, &rangeErr)
		assert.Equal(t, idx, rangeErr.Index)
		assert.Equal(t, 3, rangeErr.Len)

		assert.Equal(t, before, p.State(), "state must be unchanged after rejecting %d", idx)
	}
}

func TestPlayerSeekClamps(t *testing.T) {
	p, _ := newTestPlayer(t, makeData(0, 200, 450))

	p.Seek(-100)
	assert.Equal(t, int64(0), p.State().ElapsedTime)
	assert.Equal(t, 0, p.State().CurrentStepIndex)

	p.Seek(550 + 100)
	state := p.State()
	assert.Equal(t, int64(550), state.ElapsedTime)
	assert.Equal(t, 2, state.CurrentStepIndex)
}

func TestPlayerSeekResolvesStep(t *testing.T) {
	p, _ := newTestPlayer(t, makeData(0, 200, 450))

	tests := []struct {
		ms   int64
		want int
	}{
		{0, 0},
		{199, 0},
		{200, 1},
		{449, 1},
		{450, 2},
		{550, 2},
	}
	for _, tt := range tests {
		p.Seek(tt.ms)
		assert.Equal(t, tt.want, p.State().CurrentStepIndex, "seek(%d)", tt.ms)
	}
}

func TestPlayerSeekBeforeFirstStep(t *testing.T) {
	p, _ := newTestPlayer(t, makeData(50, 200))

	p.Seek(20)
	assert.Equal(t, -1, p.State().CurrentStepIndex)
	assert.Equal(t, int64(20), p.State().ElapsedTime)

	p.Seek(50)
	assert.Equal(t, 0, p.State().CurrentStepIndex)
}

func TestPlayerSeekKeepsPlaying(t *testing.T) {
	p, clock := newTestPlayer(t, makeData(0, 200, 450))
	p.Play()
	clock.Advance(300 * time.Millisecond)

	p.Seek(100)
	assert.True(t, p.State().IsPlaying)

	// Wall time spent before the seek is not credited after it.
	clock.Advance(50 * time.Millisecond)
	p.Tick()
	assert.Equal(t, int64(150), p.State().ElapsedTime)
}

func TestPlayerPlayPauseIdempotent(t *testing.T) {
	p, clock := newTestPlayer(t, makeData(0, 200, 450))

	assert.True(t, p.Play())
	once := p.State()
	clock.Advance(30 * time.Millisecond)
	assert.False(t, p.Play())
	assert.Equal(t, once, p.State())

	// A second Play must not restart the tick baseline.
	p.Tick()
	assert.Equal(t, int64(30), p.State().ElapsedTime)

	assert.True(t, p.Pause())
	paused := p.State()
	assert.False(t, p.Pause())
	assert.Equal(t, paused, p.State())
}

func TestPlayerCompletion(t *testing.T) {
	p, clock := newTestPlayer(t, completionData())
	p.Play()

	completed := false
	for i := 0; i < 20 && !completed; i++ {
		clock.Advance(DefaultTickInterval)
		completed = p.Tick()
	}
	require.True(t, completed)

	state := p.State()
	assert.False(t, state.IsPlaying)
	assert.Equal(t, int64(700), state.ElapsedTime)
	assert.Equal(t, 1, state.CurrentStepIndex)

	// Further ticks are ignored once stopped.
	clock.Advance(time.Second)
	assert.False(t, p.Tick())
	assert.Equal(t, int64(700), p.State().ElapsedTime)
}

func TestPlayerCompletionOvershootClamps(t *testing.T) {
	p, clock := newTestPlayer(t, completionData())
	p.Play()
	clock.Advance(5 * time.Second)

	assert.True(t, p.Tick())
	assert.Equal(t, int64(700), p.State().ElapsedTime)
	assert.Equal(t, 1, p.State().CurrentStepIndex)
}

func TestPlayerReset(t *testing.T) {
	p, clock := newTestPlayer(t, completionData())
	require.NoError(t, p.SetSpeed(2))
	p.Play()
	clock.Advance(100 * time.Millisecond)
	p.Tick()

	p.Reset()
	state := p.State()
	assert.False(t, state.IsPlaying)
	assert.Equal(t, int64(0), state.ElapsedTime)
	assert.Equal(t, -1, state.CurrentStepIndex)
	assert.Equal(t, 2.0, state.PlaybackSpeed)
}

func TestPlayerSpeedScaling(t *testing.T) {
	data := makeData(0, 1000, 2000, 3000)

	run := func(speed float64) int64 {
		p, clock := newTestPlayer(t, data)
		require.NoError(t, p.SetSpeed(speed))
		p.Play()
		for i := 0; i < 10; i++ {
			clock.Advance(DefaultTickInterval)
			p.Tick()
		}
		return p.State().ElapsedTime
	}

	base := run(1)
	assert.Equal(t, int64(500), base)
	assert.Equal(t, 4*base, run(4))
	assert.Equal(t, base/2, run(0.5))
}

func TestPlayerSetSpeedRejectsInvalid(t *testing.T) {
	p, _ := newTestPlayer(t, makeData(0, 200))

	for _, speed := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		err := p.SetSpeed(speed)
		assert.ErrorIs(t, err, ErrInvalidSpeed, "speed %v", speed)
	}
	assert.Equal(t, 1.0, p.State().PlaybackSpeed)

	require.NoError(t, p.SetSpeed(1.5))
	assert.Equal(t, 1.5, p.State().PlaybackSpeed)
}

func TestPlayerTickIgnoresClockGoingBackwards(t *testing.T) {
	p, clock := newTestPlayer(t, makeData(0, 200, 450))
	p.Play()
	clock.Advance(100 * time.Millisecond)
	p.Tick()

	clock.Advance(-50 * time.Millisecond)
	p.Tick()
	assert.Equal(t, int64(100), p.State().ElapsedTime)
}

func TestStepAtTiedOffsets(t *testing.T) {
	data := makeData(0, 100, 100, 300)
	data.Steps[1].Duration = 0

	assert.Equal(t, -1, stepAt(makeData(10).Steps, 0))
	assert.Equal(t, 0, stepAt(data.Steps, 99*time.Millisecond))
	assert.Equal(t, 2, stepAt(data.Steps, 100*time.Millisecond))
	assert.Equal(t, 3, stepAt(data.Steps, 10*time.Second))
}

func TestPlayerHugeSpeedCompletes(t *testing.T) {
	p, clock := newTestPlayer(t, completionData())
	require.NoError(t, p.SetSpeed(1e300))
	p.Play()

	clock.Advance(50 * time.Millisecond)
	assert.True(t, p.Tick())

	state := p.State()
	assert.False(t, state.IsPlaying)
	assert.Equal(t, int64(700), state.ElapsedTime)
	assert.Equal(t, 1, state.CurrentStepIndex)
}

func TestPlayerSeekExtremeOffsets(t *testing.T) {
	p, _ := newTestPlayer(t, makeData(0, 200, 450))

	p.Seek(math.MaxInt64)
	assert.Equal(t, int64(550), p.State().ElapsedTime)
	assert.Equal(t, 2, p.State().CurrentStepIndex)

	p.Seek(math.MinInt64)
	assert.Equal(t, int64(0), p.State().ElapsedTime)
	assert.Equal(t, 0, p.State().CurrentStepIndex)
}
