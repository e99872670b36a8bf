package replay

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/xiaot623/gogo/replayer/internal/domain"
)

// EventKind classifies engine notifications.
type EventKind string

const (
	// EventState follows any change to the playback state, ticks included.
	EventState EventKind = "state"
	// EventStep follows a change of the current step index.
	EventStep EventKind = "step"
	// EventSelected follows JumpToStep and carries the selected step.
	EventSelected EventKind = "selected"
	// EventCompleted follows the tick that reached the end of the run.
	EventCompleted EventKind = "completed"
)

// Event is delivered to listeners after the state change that caused it.
type Event struct {
	Kind  EventKind
	State domain.PlaybackState
	Step  *domain.ReplayStep
}

// Listener receives engine events on the engine goroutine. A listener must
// not call back into the engine synchronously.
type Listener func(Event)

// Recorder receives playback measurements.
type Recorder interface {
	RecordCommand(ctx context.Context, op string)
	RecordCompletion(ctx context.Context)
}

type noopRecorder struct{}

func (noopRecorder) RecordCommand(context.Context, string) {}
func (noopRecorder) RecordCompletion(context.Context)      {}

// Op names an engine command.
type Op string

const (
	OpState        Op = "state"
	OpPlay         Op = "play"
	OpPause        Op = "pause"
	OpReset        Op = "reset"
	OpStepForward  Op = "step_forward"
	OpStepBackward Op = "step_backward"
	OpJump         Op = "jump"
	OpSeek         Op = "seek"
	OpSpeed        Op = "speed"

	opSubscribe   Op = "subscribe"
	opUnsubscribe Op = "unsubscribe"
)

type command struct {
	op       Op
	index    int
	ms       int64
	speed    float64
	listener Listener
	id       int
	resp     chan<- result
}

type result struct {
	state domain.PlaybackState
	step  *domain.ReplayStep
	id    int
	err   error
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the wall clock used to measure tick deltas.
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithTicker sets the ticker factory used while playing.
func WithTicker(f TickerFactory) Option {
	return func(e *Engine) { e.newTicker = f }
}

// WithTickInterval sets the tick period. Non-positive values are ignored.
func WithTickInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.interval = d
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// Engine runs a Player on its own goroutine. Every operation is a command
// answered by that goroutine, so the playback state has a single owner.
type Engine struct {
	player    *Player
	clock     Clock
	newTicker TickerFactory
	interval  time.Duration
	logger    *slog.Logger
	recorder  Recorder

	cmds      chan command
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	// owned by the run goroutine
	listeners map[int]Listener
	nextID    int
	ticker    Ticker
}

// NewEngine validates data and starts the engine goroutine. Callers must
// Close the engine when the viewer goes away.
func NewEngine(data *domain.ReplayData, opts ...Option) (*Engine, error) {
	e := &Engine{
		clock:     SystemClock{},
		newTicker: NewTimeTicker,
		interval:  DefaultTickInterval,
		recorder:  noopRecorder{},
		cmds:      make(chan command),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
		listeners: make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default().With("component", "replay")
	}

	player, err := NewPlayer(data, e.clock)
	if err != nil {
		return nil, err
	}
	e.player = player

	go e.run()
	return e, nil
}

// Data returns the replay data. It is never mutated by playback.
func (e *Engine) Data() *domain.ReplayData {
	return e.player.Data()
}

// Done is closed once the engine goroutine has exited.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// Close stops the ticker and the engine goroutine. It is safe to call more
// than once.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		close(e.quit)
	})
	<-e.done
	return nil
}

// State returns the current playback state and step.
func (e *Engine) State(ctx context.Context) (domain.PlaybackState, *domain.ReplayStep, error) {
	r, err := e.send(ctx, command{op: OpState})
	return r.state, r.step, err
}

// Play starts playback. Playing an engine that is already playing is a no-op.
func (e *Engine) Play(ctx context.Context) (domain.PlaybackState, error) {
	r, err := e.send(ctx, command{op: OpPlay})
	return r.state, err
}

// Pause stops playback. Pausing a paused engine is a no-op.
func (e *Engine) Pause(ctx context.Context) (domain.PlaybackState, error) {
	r, err := e.send(ctx, command{op: OpPause})
	return r.state, err
}

// Reset returns to the idle state.
func (e *Engine) Reset(ctx context.Context) (domain.PlaybackState, error) {
	r, err := e.send(ctx, command{op: OpReset})
	return r.state, err
}

// StepForward pauses and advances one step.
func (e *Engine) StepForward(ctx context.Context) (domain.PlaybackState, error) {
	r, err := e.send(ctx, command{op: OpStepForward})
	return r.state, err
}

// StepBackward pauses and moves back one step.
func (e *Engine) StepBackward(ctx context.Context) (domain.PlaybackState, error) {
	r, err := e.send(ctx, command{op: OpStepBackward})
	return r.state, err
}

// JumpToStep pauses and selects step i. Listeners receive an EventSelected
// before this call returns.
func (e *Engine) JumpToStep(ctx context.Context, i int) (domain.PlaybackState, error) {
	r, err := e.send(ctx, command{op: OpJump, index: i})
	return r.state, err
}

// Seek moves to ms milliseconds into the run, clamped to its bounds.
func (e *Engine) Seek(ctx context.Context, ms int64) (domain.PlaybackState, error) {
	r, err := e.send(ctx, command{op: OpSeek, ms: ms})
	return r.state, err
}

// SetSpeed changes the playback multiplier.
func (e *Engine) SetSpeed(ctx context.Context, multiplier float64) (domain.PlaybackState, error) {
	r, err := e.send(ctx, command{op: OpSpeed, speed: multiplier})
	return r.state, err
}

// Subscribe registers l and returns a function that removes it.
func (e *Engine) Subscribe(ctx context.Context, l Listener) (func(), error) {
	r, err := e.send(ctx, command{op: opSubscribe, listener: l})
	if err != nil {
		return nil, err
	}
	id := r.id
	return func() {
		_, _ = e.send(context.Background(), command{op: opUnsubscribe, id: id})
	}, nil
}

func (e *Engine) send(ctx context.Context, cmd command) (result, error) {
	resp := make(chan result, 1)
	cmd.resp = resp

	select {
	case e.cmds <- cmd:
	case <-e.quit:
		return result{}, ErrClosed
	case <-ctx.Done():
		return result{}, ctx.Err()
	}

	// The engine always answers a received command.
	r := <-resp
	return r, r.err
}

func (e *Engine) run() {
	defer close(e.done)
	defer e.stopTicker()

	for {
		var tickC <-chan time.Time
		if e.ticker != nil {
			tickC = e.ticker.C()
		}

		select {
		case <-e.quit:
			return
		case cmd := <-e.cmds:
			cmd.resp <- e.handle(cmd)
		case <-tickC:
			e.tick()
		}
		e.syncTicker()
	}
}

func (e *Engine) handle(cmd command) result {
	p := e.player
	switch cmd.op {
	case opSubscribe:
		e.nextID++
		e.listeners[e.nextID] = cmd.listener
		return result{id: e.nextID}
	case opUnsubscribe:
		delete(e.listeners, cmd.id)
		return result{}
	case OpState:
		return e.result()
	}

	ctx := context.Background()
	e.recorder.RecordCommand(ctx, string(cmd.op))

	before := p.State()
	switch cmd.op {
	case OpPlay:
		p.Play()
	case OpPause:
		p.Pause()
	case OpReset:
		p.Reset()
	case OpStepForward:
		p.StepForward()
	case OpStepBackward:
		p.StepBackward()
	case OpSeek:
		p.Seek(cmd.ms)
	case OpSpeed:
		if err := p.SetSpeed(cmd.speed); err != nil {
			return result{state: before, err: err}
		}
	case OpJump:
		if err := p.JumpToStep(cmd.index); err != nil {
			return result{state: before, err: err}
		}
	}

	e.publish(before, cmd.op == OpJump, false)
	return e.result()
}

func (e *Engine) tick() {
	before := e.player.State()
	completed := e.player.Tick()
	e.publish(before, false, completed)
	if completed {
		e.recorder.RecordCompletion(context.Background())
		e.logger.Debug("playback completed", "run_id", e.player.Data().RunID)
	}
}

// publish notifies listeners of what changed since before.
func (e *Engine) publish(before domain.PlaybackState, selected, completed bool) {
	after := e.player.State()
	step := e.currentStep()

	if after != before {
		e.emit(Event{Kind: EventState, State: after, Step: step})
	}
	if after.CurrentStepIndex != before.CurrentStepIndex {
		e.emit(Event{Kind: EventStep, State: after, Step: step})
	}
	if selected {
		e.emit(Event{Kind: EventSelected, State: after, Step: step})
	}
	if completed {
		e.emit(Event{Kind: EventCompleted, State: after, Step: step})
	}
}

func (e *Engine) emit(ev Event) {
	for id, l := range e.listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					e.logger.Error("replay listener panicked", "listener", id, "event", ev.Kind, "panic", r)
				}
			}()
			l(ev)
		}()
	}
}

func (e *Engine) result() result {
	return result{state: e.player.State(), step: e.currentStep()}
}

func (e *Engine) currentStep() *domain.ReplayStep {
	step, ok := e.player.CurrentStep()
	if !ok {
		return nil
	}
	return &step
}

// syncTicker keeps a ticker alive exactly while the player is playing.
func (e *Engine) syncTicker() {
	playing := e.player.IsPlaying()
	switch {
	case playing && e.ticker == nil:
		e.ticker = e.newTicker(e.interval)
	case !playing && e.ticker != nil:
		e.stopTicker()
	}
}

func (e *Engine) stopTicker() {
	if e.ticker != nil {
		e.ticker.Stop()
		e.ticker = nil
	}
}
