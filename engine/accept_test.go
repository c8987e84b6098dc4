package engine

import (
	"testing"

	"diffmerge/types"

	"github.com/stretchr/testify/assert"
)

func pendingFixture(eng *Engine, code string, auto bool) *types.PendingChange {
	pc := &types.PendingChange{ID: fingerprint(code, "test"), Code: code, IsReplacement: true, AutoApply: auto}
	eng.pending = pc
	eng.state = stateProposed
	if auto {
		eng.state = stateAutoApplyArmed
	}
	return pc
}

func TestApplyClearsSlotBeforeEditor(t *testing.T) {
	ed := newMockEditor(greetingOld, "text")
	eng := createTestEngine(t, ed, newMockClock(), newMockTracker())
	pendingFixture(eng, greetingNew, false)

	eng.apply(types.ApplyReplace, false)

	assert.Equal(t, stateIdle, eng.state, "state after apply")
	assert.Nil(t, eng.pending, "pending after apply")
	assert.Equal(t, greetingNew, ed.Buffer())
	assert.Equal(t, 1, ed.clearCalls, "ClearPending should have been called")
	assert.Equal(t, 1, ed.replaceCalls)
	assert.Equal(t, 0, ed.appendCalls)
}

func TestApplyAppendMode(t *testing.T) {
	ed := newMockEditor(greetingOld, "text")
	eng := createTestEngine(t, ed, newMockClock(), newMockTracker())
	pendingFixture(eng, greetingNew, false)

	eng.apply(types.ApplyAppend, false)

	assert.Equal(t, greetingOld+"\n\n"+greetingNew, ed.Buffer())
	assert.Equal(t, 1, ed.appendCalls)
}

func TestApplyEmptySlot(t *testing.T) {
	ed := newMockEditor(greetingOld, "text")
	tracker := newMockTracker()
	eng := createTestEngine(t, ed, newMockClock(), tracker)

	eng.apply(types.ApplyReplace, false)
	eng.discard("rejected", "Changes rejected")

	assert.Equal(t, 0, ed.applyCalls())
	assert.Equal(t, 0, ed.clearCalls)
	assert.Empty(t, ed.notices)
	assert.Empty(t, tracker.accepted)
	assert.Empty(t, tracker.disposed)
}

func TestApplyWithoutEditor(t *testing.T) {
	tracker := newMockTracker()
	eng := createTestEngine(t, nil, newMockClock(), tracker)
	pc := pendingFixture(eng, greetingNew, false)

	eng.apply(types.ApplyReplace, false)

	assert.Equal(t, stateIdle, eng.state)
	assert.Equal(t, "apply_failed", tracker.disposed[pc.ID])
}

func TestApplyNotifications(t *testing.T) {
	tests := []struct {
		name string
		mode types.ApplyMode
		auto bool
		want string
	}{
		{"manual replace", types.ApplyReplace, false, "Code replaced successfully"},
		{"manual append", types.ApplyAppend, false, "Code appended successfully"},
		{"auto replace", types.ApplyReplace, true, "Code auto-replaced"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ed := newMockEditor(greetingOld, "text")
			tracker := newMockTracker()
			eng := createTestEngine(t, ed, newMockClock(), tracker)
			pc := pendingFixture(eng, greetingNew, tt.auto)

			eng.apply(tt.mode, tt.auto)

			assert.Equal(t, tt.want, ed.lastNotice())
			assert.Equal(t, []uint64{pc.ID}, tracker.accepted)
			assert.Equal(t, []bool{tt.auto}, tracker.auto)
		})
	}
}

func TestDiscardCancelsTimer(t *testing.T) {
	ed := newMockEditor(greetingOld, "text")
	clock := newMockClock()
	tracker := newMockTracker()
	eng := createTestEngine(t, ed, clock, tracker)
	pc := pendingFixture(eng, greetingNew, true)
	eng.timer.arm(eng.config.AutoApplyDelay, eng.onAutoApplyTimer)

	eng.discard("cancelled", "Code replacement cancelled")
	assert.False(t, eng.timer.armed())

	clock.timer(0).fireLate()
	assert.Equal(t, greetingOld, ed.Buffer())
	assert.Equal(t, "cancelled", tracker.disposed[pc.ID])
	assert.Equal(t, 1, tracker.terminalEvents(pc.ID))
	assert.Equal(t, "Code replacement cancelled", ed.lastNotice())
}
