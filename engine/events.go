package engine

import (
	"context"
	"runtime/debug"

	"diffmerge/logger"
)

// EventType represents the type of event in the engine
type EventType string

// Event type constants
const (
	EventGenerationComplete EventType = "generation"
	EventAccept             EventType = "accept"
	EventReject             EventType = "reject"
	EventCancel             EventType = "cancel"
	EventKey                EventType = "key"
	EventAutoApplyTimeout   EventType = "auto_apply_timeout"
)

// Event represents an event in the engine.
//
//	EventGenerationComplete  Data: types.Generation
//	EventAccept              Data: types.ApplyMode
//	EventKey                 Data: keys.Key
//	EventAutoApplyTimeout    Data: uint64 timer token
type Event struct {
	Type EventType
	Data any
}

var eventTypeMap map[string]EventType

func init() {
	eventTypeMap = make(map[string]EventType)
	for _, t := range []EventType{
		EventGenerationComplete,
		EventAccept,
		EventReject,
		EventCancel,
		EventKey,
		EventAutoApplyTimeout,
	} {
		eventTypeMap[string(t)] = t
	}

	transitionMap = make(map[transitionKey]*Transition)
	for i := range transitions {
		t := &transitions[i]
		transitionMap[transitionKey{from: t.From, event: t.Event}] = t
	}
}

// EventTypeFromString converts a string to EventType
func EventTypeFromString(s string) EventType {
	if eventType, exists := eventTypeMap[s]; exists {
		return eventType
	}
	return ""
}

const maxEventLoopRestarts = 3

func (e *Engine) eventLoop(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			restarts := e.loopRestarts.Add(1)
			logger.Error("event loop panic [%d/%d]: %v\n%s",
				restarts, maxEventLoopRestarts, r, debug.Stack())

			if int(restarts) < maxEventLoopRestarts {
				e.eventLoop(ctx)
			} else {
				logger.Error("max event loop restarts reached, stopping engine")
				go e.Stop() // async to avoid deadlock
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-e.eventChan:
			if !ok {
				return
			}

			e.mu.RLock()
			stopped := e.stopped
			e.mu.RUnlock()
			if stopped {
				return
			}

			func() {
				defer func() {
					if r := recover(); r != nil {
						logger.Error("event handler panic recovered for event %v: %v", event.Type, r)
					}
				}()
				e.handleEvent(event)
			}()
		}
	}
}

func (e *Engine) handleEvent(event Event) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		return false
	}

	logger.Debug("handle event: %s (state=%s)", event.Type, e.state)
	return e.dispatch(event)
}

// Submit queues an event for the event loop. It never blocks: when the
// engine is not running or the queue is full the event is dropped and
// false is returned.
func (e *Engine) Submit(event Event) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.stopped || e.mainCtx == nil {
		return false
	}
	select {
	case e.eventChan <- event:
		return true
	case <-e.mainCtx.Done():
		return false
	default:
		logger.Warn("event queue full, dropping %s", event.Type)
		return false
	}
}
