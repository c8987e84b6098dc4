package types

import (
	"errors"
	"fmt"
	"time"

	"diffmerge/text"
)

// Generation is a completed (or streamed partial) model response
type Generation struct {
	GeneratedText   string
	UserInstruction string
	Final           bool // partial generations never create a proposal
}

// ApplyMode selects how an accepted change is written to the buffer
type ApplyMode int

const (
	ApplyReplace ApplyMode = iota
	ApplyAppend
)

func (m ApplyMode) String() string {
	switch m {
	case ApplyReplace:
		return "replace"
	case ApplyAppend:
		return "append"
	default:
		return "unknown"
	}
}

var ErrUnknownApplyMode = errors.New("unknown apply mode")

// ParseApplyMode parses "replace" or "append". An empty string is replace.
func ParseApplyMode(s string) (ApplyMode, error) {
	switch s {
	case "", "replace":
		return ApplyReplace, nil
	case "append":
		return ApplyAppend, nil
	default:
		return ApplyReplace, fmt.Errorf("%w: %q", ErrUnknownApplyMode, s)
	}
}

// PendingChange is the single proposal awaiting a decision.
// Diff is non-nil iff IsReplacement.
type PendingChange struct {
	ID              uint64 // fingerprint of code + instruction
	Code            string
	Language        string
	UserInstruction string
	IsReplacement   bool
	AutoApply       bool
	Diff            *text.DiffResult
	CreatedAt       time.Time
}

// Clone returns a copy that shares the immutable diff
func (p *PendingChange) Clone() *PendingChange {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

// Stats returns added and deleted line counts; an append counts every code line as added.
func (p *PendingChange) Stats() (additions, deletions int) {
	if p.Diff != nil {
		return p.Diff.Stats()
	}
	return len(text.SplitLines(p.Code)), 0
}
