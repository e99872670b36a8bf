// Package replay implements playback over the recorded steps of one run.
//
// A Player is the position state machine: it maps a virtual elapsed time to
// the current step and exposes media-style transport controls. It is not
// safe for concurrent use. An Engine owns a Player inside a single goroutine,
// drives it with a ticker while playing, and notifies listeners after every
// state change.
package replay

import (
	"fmt"
	"math"
	"time"

	"github.com/xiaot623/gogo/replayer/internal/domain"
)

// Player holds the playback position over an immutable ReplayData.
type Player struct {
	data  *domain.ReplayData
	clock Clock

	playing  bool
	elapsed  time.Duration
	index    int
	speed    float64
	lastTick time.Time
	total    time.Duration
}

// NewPlayer validates data and returns a player in the idle state.
// Data with no steps or a non-positive total duration is rejected with
// ErrEmptyReplay.
func NewPlayer(data *domain.ReplayData, clock Clock) (*Player, error) {
	if err := Validate(data); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Player{
		data:  data,
		clock: clock,
		index: -1,
		speed: 1,
		total: offset(data.TotalDuration),
	}, nil
}

// maxOffsetMs is the largest millisecond offset a time.Duration can hold.
const maxOffsetMs = math.MaxInt64 / int64(time.Millisecond)

// Validate checks the invariants the player relies on.
func Validate(data *domain.ReplayData) error {
	if data == nil || len(data.Steps) == 0 || data.TotalDuration <= 0 {
		return ErrEmptyReplay
	}
	if data.TotalDuration > maxOffsetMs {
		return fmt.Errorf("%w: total duration %dms out of range", ErrInvalidReplay, data.TotalDuration)
	}
	for i, step := range data.Steps {
		if step.Index != i {
			return fmt.Errorf("%w: step %d has index %d", ErrInvalidReplay, i, step.Index)
		}
		if step.RelativeTime < 0 || step.Duration < 0 {
			return fmt.Errorf("%w: step %d has negative time", ErrInvalidReplay, i)
		}
		if i > 0 && step.RelativeTime < data.Steps[i-1].RelativeTime {
			return fmt.Errorf("%w: step %d starts before step %d", ErrInvalidReplay, i, i-1)
		}
	}
	last := data.Steps[len(data.Steps)-1]
	if data.TotalDuration < last.RelativeTime {
		return fmt.Errorf("%w: total duration %dms ends before last step at %dms",
			ErrInvalidReplay, data.TotalDuration, last.RelativeTime)
	}
	if n := len(data.StateSnapshots); n != 0 && n != len(data.Steps) {
		return fmt.Errorf("%w: %d state snapshots for %d steps", ErrInvalidReplay, n, len(data.Steps))
	}
	return nil
}

// Data returns the replay data the player was built from.
func (p *Player) Data() *domain.ReplayData {
	return p.data
}

// State returns a copy of the current playback state.
func (p *Player) State() domain.PlaybackState {
	return domain.PlaybackState{
		IsPlaying:        p.playing,
		ElapsedTime:      p.elapsed.Milliseconds(),
		CurrentStepIndex: p.index,
		PlaybackSpeed:    p.speed,
		TotalDuration:    p.data.TotalDuration,
		StepCount:        len(p.data.Steps),
	}
}

// CurrentStep returns the current step, or false before the first step.
func (p *Player) CurrentStep() (domain.ReplayStep, bool) {
	if p.index < 0 {
		return domain.ReplayStep{}, false
	}
	return p.data.Steps[p.index], true
}

// IsPlaying reports whether the virtual clock is running.
func (p *Player) IsPlaying() bool {
	return p.playing
}

// Play starts the virtual clock from the current elapsed time.
// It reports false when the player was already playing.
func (p *Player) Play() bool {
	if p.playing {
		return false
	}
	p.playing = true
	p.lastTick = p.clock.Now()
	return true
}

// Pause freezes the elapsed time. It reports false when already paused.
func (p *Player) Pause() bool {
	if !p.playing {
		return false
	}
	p.playing = false
	return true
}

// Reset returns to the idle state. The playback speed is kept.
func (p *Player) Reset() {
	p.playing = false
	p.elapsed = 0
	p.index = -1
}

// StepForward pauses and moves to the next step. At the last step only the
// pause takes effect.
func (p *Player) StepForward() {
	p.Pause()
	if p.index >= len(p.data.Steps)-1 {
		return
	}
	p.moveTo(p.index + 1)
}

// StepBackward pauses and moves to the previous step, stopping at the first.
func (p *Player) StepBackward() {
	p.Pause()
	p.moveTo(max(p.index-1, 0))
}

// JumpToStep pauses and selects step i. An index outside the step range
// fails with *OutOfRangeError and leaves the state untouched.
func (p *Player) JumpToStep(i int) error {
	if i < 0 || i >= len(p.data.Steps) {
		return &OutOfRangeError{Index: i, Len: len(p.data.Steps)}
	}
	p.Pause()
	p.moveTo(i)
	return nil
}

// Seek moves the elapsed time to t milliseconds, clamped to the run, and
// re-resolves the current step. Playback continues if it was running.
func (p *Player) Seek(ms int64) {
	p.elapsed = p.clamp(offset(min(max(ms, 0), p.data.TotalDuration)))
	p.index = stepAt(p.data.Steps, p.elapsed)
	if p.playing {
		p.lastTick = p.clock.Now()
	}
}

// SetSpeed changes the clock multiplier used from the next tick on.
func (p *Player) SetSpeed(multiplier float64) error {
	if multiplier <= 0 || math.IsNaN(multiplier) || math.IsInf(multiplier, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidSpeed, multiplier)
	}
	p.speed = multiplier
	return nil
}

// Tick advances the elapsed time by the wall time since the previous tick
// scaled by the playback speed. It reports true when this tick reached the
// end of the run, which also stops playback.
func (p *Player) Tick() bool {
	if !p.playing {
		return false
	}
	now := p.clock.Now()
	delta := now.Sub(p.lastTick)
	if delta < 0 {
		delta = 0
	}
	p.lastTick = now

	// Saturate in float64 before converting to a Duration.
	scaled := float64(delta) * p.speed
	if scaled >= float64(p.total-p.elapsed) {
		p.elapsed = p.total
	} else {
		p.elapsed = p.clamp(p.elapsed + time.Duration(scaled))
	}
	p.index = stepAt(p.data.Steps, p.elapsed)
	if p.elapsed >= p.total {
		p.playing = false
		p.index = len(p.data.Steps) - 1
		return true
	}
	return false
}

func (p *Player) moveTo(i int) {
	p.index = i
	p.elapsed = offset(p.data.Steps[i].RelativeTime)
}

func (p *Player) clamp(t time.Duration) time.Duration {
	if t < 0 {
		return 0
	}
	if t > p.total {
		return p.total
	}
	return t
}
