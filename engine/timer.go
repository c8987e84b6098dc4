package engine

import "time"

// autoApplyTimer owns the single auto-apply timer. Every arm and cancel moves
// the token forward, so a callback that was already in flight when the timer
// was cancelled carries a stale token and is ignored. All methods are called
// with Engine.mu held.
type autoApplyTimer struct {
	clock Clock
	timer Timer
	token uint64
}

// arm cancels any live timer and schedules fire(token) after d
func (t *autoApplyTimer) arm(d time.Duration, fire func(token uint64)) uint64 {
	t.cancel()
	token := t.token
	t.timer = t.clock.AfterFunc(d, func() { fire(token) })
	return token
}

// cancel is idempotent and safe after the timer has fired
func (t *autoApplyTimer) cancel() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.token++
}

// consume reports whether token belongs to the live timer and, if so,
// retires it so the same fire cannot be honoured twice
func (t *autoApplyTimer) consume(token uint64) bool {
	if t.timer == nil || token != t.token {
		return false
	}
	t.timer = nil
	t.token++
	return true
}

func (t *autoApplyTimer) armed() bool {
	return t.timer != nil
}
