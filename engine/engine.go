package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"diffmerge/intent"
	"diffmerge/keys"
	"diffmerge/logger"
	"diffmerge/text"
	"diffmerge/types"
)

// Engine holds at most one pending change and resolves it exactly once:
// by an explicit accept or reject, by a key command, by the auto-apply
// timer, or by being superseded by a newer generation.
type Engine struct {
	editor     Editor
	classifier *intent.Classifier
	keymap     *keys.Keymap
	diff       text.DiffFunc
	tracker    Tracker
	clock      Clock
	config     EngineConfig

	state   state
	pending *types.PendingChange
	timer   autoApplyTimer

	mu        sync.RWMutex
	eventChan chan Event

	// Main context and cancel for the engine lifecycle
	mainCtx      context.Context
	mainCancel   context.CancelFunc
	stopped      bool
	stopOnce     sync.Once
	loopRestarts atomic.Int32
}

// NewEngine creates an engine. editor may be nil and attached later with
// SetEditor; clock and tracker default to the wall clock and a no-op.
func NewEngine(editor Editor, config EngineConfig, clock Clock, tracker Tracker) (*Engine, error) {
	strategy, err := text.ParseDiffStrategy(string(config.DiffStrategy))
	if err != nil {
		return nil, err
	}
	if config.AutoApplyDelay <= 0 {
		return nil, fmt.Errorf("auto-apply delay must be positive, got %v", config.AutoApplyDelay)
	}
	if config.MinCodeLength < 0 {
		return nil, fmt.Errorf("min code length must not be negative, got %d", config.MinCodeLength)
	}
	if config.Keymap == nil {
		config.Keymap = keys.DefaultKeymap()
	}
	if isNil(clock) {
		clock = SystemClock
	}
	if isNil(tracker) {
		tracker = noopTracker{}
	}
	config.DiffStrategy = strategy

	return &Engine{
		editor:     editor,
		classifier: intent.New(config.Rules),
		keymap:     config.Keymap,
		diff:       strategy.Func(),
		tracker:    tracker,
		clock:      clock,
		config:     config,
		state:      stateIdle,
		timer:      autoApplyTimer{clock: clock},
		eventChan:  make(chan Event, 100),
	}, nil
}

func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.mainCtx, e.mainCancel = context.WithCancel(ctx)
	e.mu.Unlock()

	go e.eventLoop(e.mainCtx)
	logger.Info("engine started")
}

// Stop cancels the auto-apply timer, disposes of any pending change and
// shuts down the event loop. Safe to call more than once.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		e.mu.Lock()
		defer e.mu.Unlock()

		logger.Info("stopping engine...")
		e.stopped = true
		if e.mainCancel != nil {
			e.mainCancel()
		}
		e.timer.cancel()
		if e.pending != nil {
			e.tracker.TrackDisposed(e.pending, "shutdown")
			e.pending = nil
		}
		e.state = stateIdle
		close(e.eventChan)

		logger.Info("engine stopped")
	})
}

// SetEditor attaches the editor for the current connection. A change
// pending for the previous editor is discarded.
func (e *Engine) SetEditor(editor Editor) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pending != nil {
		e.timer.cancel()
		e.clearObserver()
		e.tracker.TrackDisposed(e.pending, "editor_changed")
		e.pending = nil
		e.state = stateIdle
	}
	e.editor = editor
}

// HandleGeneration feeds a completed generation to the state machine and
// reports whether it became the pending change.
func (e *Engine) HandleGeneration(gen types.Generation) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		return false
	}
	before := e.pending
	e.dispatch(Event{Type: EventGenerationComplete, Data: gen})
	return e.pending != nil && e.pending != before
}

// Accept applies the pending change. ApplyReplace always replaces the
// whole buffer, whatever the classifier decided. Returns false when
// nothing was pending.
func (e *Engine) Accept(mode types.ApplyMode) bool {
	return e.handleEvent(Event{Type: EventAccept, Data: mode})
}

// Reject discards the pending change without touching the buffer
func (e *Engine) Reject() bool {
	return e.handleEvent(Event{Type: EventReject})
}

// Cancel discards the pending change, reported to the user as a cancellation
func (e *Engine) Cancel() bool {
	return e.handleEvent(Event{Type: EventCancel})
}

// HandleKey runs the review command bound to k. It returns false, leaving
// the key to the host's own bindings, when nothing is pending or k is not
// bound.
func (e *Engine) HandleKey(k keys.Key) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped || e.state == stateIdle {
		return false
	}
	if _, ok := e.keymap.Lookup(k); !ok {
		return false
	}
	return e.dispatch(Event{Type: EventKey, Data: k})
}

// PendingChange returns a copy of the pending change, or nil
func (e *Engine) PendingChange() *types.PendingChange {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.pending.Clone()
}

// State returns the name of the current state
func (e *Engine) State() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.String()
}

// Keymap returns the review keymap in use
func (e *Engine) Keymap() *keys.Keymap {
	return e.keymap
}
