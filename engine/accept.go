package engine

import (
	"fmt"

	"diffmerge/logger"
	"diffmerge/types"
)

// apply writes the pending change to the editor and returns to Idle.
// The slot is emptied and the timer cancelled before the editor is called,
// so a failing or re-entrant editor can never see the change twice.
func (e *Engine) apply(mode types.ApplyMode, auto bool) {
	pc := e.pending
	e.timer.cancel()
	e.pending = nil
	e.state = stateIdle
	if pc == nil {
		return
	}
	e.clearObserver()

	err := ErrNoEditor
	if e.editor != nil {
		switch mode {
		case types.ApplyAppend:
			err = e.editor.ApplyAppend(pc.Code)
		default:
			err = e.editor.ApplyReplace(pc.Code)
		}
	}
	if err != nil {
		logger.Error("error applying change %016x (%s): %v", pc.ID, mode, err)
		e.tracker.TrackDisposed(pc, "apply_failed")
		e.notify(logger.LevelError, fmt.Sprintf("Failed to apply code: %v", err))
		return
	}

	logger.Info("change %016x applied (mode=%s auto=%v)", pc.ID, mode, auto)
	e.tracker.TrackAccepted(pc, mode, auto)
	switch {
	case auto:
		e.notify(logger.LevelInfo, "Code auto-replaced")
	case mode == types.ApplyAppend:
		e.notify(logger.LevelInfo, "Code appended successfully")
	default:
		e.notify(logger.LevelInfo, "Code replaced successfully")
	}
}

// discard drops the pending change without touching the buffer
func (e *Engine) discard(reason, msg string) {
	pc := e.pending
	e.timer.cancel()
	e.pending = nil
	e.state = stateIdle
	if pc == nil {
		return
	}
	e.clearObserver()

	logger.Info("change %016x %s", pc.ID, reason)
	e.tracker.TrackDisposed(pc, reason)
	e.notify(logger.LevelInfo, msg)
}

func (e *Engine) clearObserver() {
	if obs, ok := e.editor.(Observer); ok {
		obs.ClearPending()
	}
}

func (e *Engine) notify(level logger.Level, msg string) {
	if obs, ok := e.editor.(Observer); ok {
		obs.Notify(level, msg)
	}
}
