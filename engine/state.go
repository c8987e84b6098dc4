package engine

import (
	"diffmerge/keys"
	"diffmerge/logger"
	"diffmerge/types"
)

type state int

const (
	stateIdle state = iota
	stateProposed
	stateAutoApplyArmed
)

// String returns a human-readable name for the state
func (s state) String() string {
	switch s {
	case stateIdle:
		return "Idle"
	case stateProposed:
		return "Proposed"
	case stateAutoApplyArmed:
		return "AutoApplyArmed"
	default:
		return "Unknown"
	}
}

// Transition represents a valid state transition in the engine's state machine
type Transition struct {
	From   state
	Event  EventType
	Action func(*Engine, Event)
}

// transitions defines all valid state transitions in the engine.
//
// State Machine:
//
//	               GenerationComplete
//	  +------+ ----------------------> +----------+
//	  | Idle |                          | Proposed |--+ GenerationComplete
//	  +------+ <---------------------- +----------+<-+ (supersede)
//	    |  ^   Accept / Reject / Cancel / Key
//	    |  |
//	    |  |   Accept / Reject / Cancel / Key / AutoApplyTimeout
//	    |  +-------------------------- +----------------+
//	    +----------------------------> | AutoApplyArmed |--+ GenerationComplete
//	      GenerationComplete           +----------------+<-+ (supersede)
//	      (obvious improvement)
//
//	Any event not listed for a state is ignored; this is how a timer fire
//	that lost the race against a user action becomes a no-op.
var transitions = []Transition{
	// From stateIdle
	{stateIdle, EventGenerationComplete, (*Engine).doPropose},

	// From stateProposed
	{stateProposed, EventGenerationComplete, (*Engine).doSupersede},
	{stateProposed, EventAccept, (*Engine).doAccept},
	{stateProposed, EventReject, (*Engine).doReject},
	{stateProposed, EventCancel, (*Engine).doCancel},
	{stateProposed, EventKey, (*Engine).doKey},

	// From stateAutoApplyArmed
	{stateAutoApplyArmed, EventGenerationComplete, (*Engine).doSupersede},
	{stateAutoApplyArmed, EventAccept, (*Engine).doAccept},
	{stateAutoApplyArmed, EventReject, (*Engine).doReject},
	{stateAutoApplyArmed, EventCancel, (*Engine).doCancel},
	{stateAutoApplyArmed, EventKey, (*Engine).doKey},
	{stateAutoApplyArmed, EventAutoApplyTimeout, (*Engine).doAutoApply},
}

// transitionMap provides O(1) lookup for transitions by (state, event) pair
var transitionMap map[transitionKey]*Transition

type transitionKey struct {
	from  state
	event EventType
}

// findTransition looks up a valid transition for the given state and event.
func findTransition(from state, event EventType) *Transition {
	return transitionMap[transitionKey{from: from, event: event}]
}

// dispatch finds and executes the appropriate transition for an event.
// Returns true if a transition was found and executed.
func (e *Engine) dispatch(event Event) bool {
	t := findTransition(e.state, event.Type)
	if t == nil {
		logger.Debug("no handler: state=%s event=%s", e.state, event.Type)
		return false
	}
	if t.Action != nil {
		t.Action(e, event)
	}
	return true
}

// Action functions for state transitions.

func (e *Engine) doPropose(event Event) {
	gen, ok := event.Data.(types.Generation)
	if !ok {
		logger.Error("generation event without generation payload: %T", event.Data)
		return
	}
	pc := e.buildProposal(gen)
	if pc == nil {
		return
	}
	e.propose(pc)
}

func (e *Engine) doSupersede(event Event) {
	gen, ok := event.Data.(types.Generation)
	if !ok {
		logger.Error("generation event without generation payload: %T", event.Data)
		return
	}
	pc := e.buildProposal(gen)
	if pc == nil {
		return
	}
	if pc.ID == e.pending.ID {
		logger.Debug("duplicate generation %016x ignored", pc.ID)
		return
	}

	logger.Info("pending change %016x superseded by %016x", e.pending.ID, pc.ID)
	e.timer.cancel()
	e.tracker.TrackDisposed(e.pending, "superseded")
	e.pending = nil
	e.state = stateIdle
	e.propose(pc)
}

func (e *Engine) doAccept(event Event) {
	mode, _ := event.Data.(types.ApplyMode)
	e.apply(mode, false)
}

func (e *Engine) doReject(event Event) {
	e.discard("rejected", "Changes rejected")
}

func (e *Engine) doCancel(event Event) {
	e.discard("cancelled", "Code replacement cancelled")
}

func (e *Engine) doAutoApply(event Event) {
	token, _ := event.Data.(uint64)
	if !e.timer.consume(token) {
		logger.Debug("stale auto-apply timer %d ignored", token)
		return
	}
	e.apply(types.ApplyReplace, true)
}

// doKey translates a bound key into the matching command event and
// dispatches it from the current state.
func (e *Engine) doKey(event Event) {
	k, _ := event.Data.(keys.Key)
	cmd, ok := e.keymap.Lookup(k)
	if !ok {
		return
	}
	logger.Debug("key %s -> %s", k, cmd)

	switch cmd {
	case keys.CommandAccept, keys.CommandQuickAccept, keys.CommandForceReplace:
		e.dispatch(Event{Type: EventAccept, Data: types.ApplyReplace})
	case keys.CommandForceAppend:
		e.dispatch(Event{Type: EventAccept, Data: types.ApplyAppend})
	case keys.CommandReject:
		e.dispatch(Event{Type: EventReject})
	case keys.CommandCancel:
		e.dispatch(Event{Type: EventCancel})
	}
}
