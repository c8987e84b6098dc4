package engine

import (
	"errors"
	"sync"
	"time"

	"diffmerge/logger"
	"diffmerge/text"
	"diffmerge/types"
)

// --- Mock implementations ---

// mockEditor implements Editor and Observer for testing
type mockEditor struct {
	mu       sync.Mutex
	buffer   string
	language string
	applyErr error
	readErr  error

	// Track method calls
	replaceCalls int
	appendCalls  int
	showCalls    int
	clearCalls   int
	lastShown    *types.PendingChange
	notices      []string
}

func newMockEditor(buffer, language string) *mockEditor {
	return &mockEditor{buffer: buffer, language: language}
}

func (m *mockEditor) CurrentBuffer() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return "", m.readErr
	}
	return m.buffer, nil
}

func (m *mockEditor) Language() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.language
}

func (m *mockEditor) ApplyReplace(code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replaceCalls++
	if m.applyErr != nil {
		return m.applyErr
	}
	m.buffer = code
	return nil
}

func (m *mockEditor) ApplyAppend(code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendCalls++
	if m.applyErr != nil {
		return m.applyErr
	}
	m.buffer = text.AppendCode(m.buffer, code)
	return nil
}

func (m *mockEditor) ShowPending(pc *types.PendingChange) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.showCalls++
	m.lastShown = pc
}

func (m *mockEditor) ClearPending() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearCalls++
}

func (m *mockEditor) Notify(level logger.Level, msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notices = append(m.notices, msg)
}

func (m *mockEditor) Buffer() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buffer
}

func (m *mockEditor) applyCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.replaceCalls + m.appendCalls
}

func (m *mockEditor) lastNotice() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.notices) == 0 {
		return ""
	}
	return m.notices[len(m.notices)-1]
}

// plainEditor implements only Editor
type plainEditor struct {
	buffer string
}

func (p *plainEditor) CurrentBuffer() (string, error) { return p.buffer, nil }
func (p *plainEditor) Language() string { return "" }
func (p *plainEditor) ApplyReplace(code string) error {
	p.buffer = code
	return nil
}
func (p *plainEditor) ApplyAppend(code string) error {
	p.buffer = text.AppendCode(p.buffer, code)
	return nil
}

var errApply = errors.New("buffer is read-only")

// mockTracker records lifecycle events
type mockTracker struct {
	mu       sync.Mutex
	shown    []uint64
	accepted []uint64
	auto     []bool
	disposed map[uint64]string
}

func newMockTracker() *mockTracker {
	return &mockTracker{disposed: make(map[uint64]string)}
}

func (t *mockTracker) TrackShown(pc *types.PendingChange) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.shown = append(t.shown, pc.ID)
}

func (t *mockTracker) TrackAccepted(pc *types.PendingChange, mode types.ApplyMode, auto bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.accepted = append(t.accepted, pc.ID)
	t.auto = append(t.auto, auto)
}

func (t *mockTracker) TrackDisposed(pc *types.PendingChange, reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.disposed[pc.ID] = reason
}

// terminalEvents returns how many accepted/disposed events were seen for id
func (t *mockTracker) terminalEvents(id uint64) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, a := range t.accepted {
		if a == id {
			n++
		}
	}
	if _, ok := t.disposed[id]; ok {
		n++
	}
	return n
}

// mockClock implements Clock for testing
type mockClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*mockTimer
}

func newMockClock() *mockClock {
	return &mockClock{
		now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (c *mockClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &mockTimer{
		fireTime: c.now.Add(d),
		f:        f,
	}
	c.timers = append(c.timers, t)
	return t
}

func (c *mockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward and fires due timers outside the lock
func (c *mockClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var toFire []*mockTimer
	for _, t := range c.timers {
		if !t.fireTime.After(c.now) {
			toFire = append(toFire, t)
		}
	}
	c.mu.Unlock()

	for _, t := range toFire {
		t.fire()
	}
}

func (c *mockClock) timerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

func (c *mockClock) timer(i int) *mockTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timers[i]
}

type mockTimer struct {
	mu       sync.Mutex
	fireTime time.Time
	f        func()
	stopped  bool
	fired    bool
}

func (t *mockTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	wasActive := !t.stopped && !t.fired
	t.stopped = true
	return wasActive
}

func (t *mockTimer) fire() {
	t.mu.Lock()
	if t.stopped || t.fired {
		t.mu.Unlock()
		return
	}
	t.fired = true
	f := t.f
	t.mu.Unlock()
	if f != nil {
		f()
	}
}

// fireLate runs the callback even if the timer was stopped, as happens when
// the runtime has already dispatched the callback before Stop is called.
func (t *mockTimer) fireLate() {
	t.mu.Lock()
	f := t.f
	t.mu.Unlock()
	f()
}
