package engine

import (
	"errors"
	"reflect"
	"time"

	"diffmerge/intent"
	"diffmerge/keys"
	"diffmerge/logger"
	"diffmerge/text"
	"diffmerge/types"
)

var ErrNoEditor = errors.New("no editor attached")

// Editor is the host that owns the buffer.
// Implemented by buffer.NvimBuffer for Neovim integration.
type Editor interface {
	// CurrentBuffer returns the full buffer text, lines joined with "\n"
	CurrentBuffer() (string, error)
	Language() string
	// ApplyReplace overwrites the whole buffer with code
	ApplyReplace(code string) error
	// ApplyAppend sets the buffer to text.AppendCode(buffer, code)
	ApplyAppend(code string) error
}

// Observer is optionally implemented by an Editor that renders the pending
// change and shows status messages.
type Observer interface {
	ShowPending(pc *types.PendingChange)
	ClearPending()
	Notify(level logger.Level, msg string)
}

// Tracker records the lifecycle of each proposal.
// Implemented by metrics.MetricsTracker.
type Tracker interface {
	TrackShown(pc *types.PendingChange)
	TrackAccepted(pc *types.PendingChange, mode types.ApplyMode, auto bool)
	TrackDisposed(pc *types.PendingChange, reason string)
}

type noopTracker struct{}

func (noopTracker) TrackShown(*types.PendingChange) {}
func (noopTracker) TrackAccepted(*types.PendingChange, types.ApplyMode, bool) {}
func (noopTracker) TrackDisposed(*types.PendingChange, string) {}

// Clock abstracts time so tests can drive the auto-apply timer
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
	Now() time.Time
}

// Timer is the subset of *time.Timer the engine needs
type Timer interface {
	Stop() bool
}

// SystemClock is the wall clock
var SystemClock Clock = systemClock{}

type systemClock struct{}

func (systemClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
func (systemClock) Now() time.Time { return time.Now() }

// isNil also catches a nil pointer stored in an interface
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Func, reflect.Chan, reflect.Interface, reflect.Slice:
		return rv.IsNil()
	}
	return false
}

type EngineConfig struct {
	AutoApplyDelay     time.Duration
	MinCodeLength      int // non-whitespace runes
	DiffStrategy       text.DiffStrategy
	EmbedForeignBlocks bool // embed css/js blocks into an html buffer
	Rules              intent.Rules
	Keymap             *keys.Keymap
}

// DefaultEngineConfig returns the built-in engine settings
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		AutoApplyDelay:     2000 * time.Millisecond,
		MinCodeLength:      20,
		DiffStrategy:       text.StrategyGreedy,
		EmbedForeignBlocks: true,
		Rules:              intent.DefaultRules(),
		Keymap:             keys.DefaultKeymap(),
	}
}
