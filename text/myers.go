package text

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DiffStrategy selects the line differ used for proposals
type DiffStrategy string

const (
	StrategyGreedy DiffStrategy = "greedy"
	StrategyMyers  DiffStrategy = "myers"
)

var ErrUnknownStrategy = errors.New("unknown diff strategy")

// DiffFunc is the signature shared by all line differs
type DiffFunc func(oldText, newText string) *DiffResult

// ParseDiffStrategy validates a strategy name. The empty string selects greedy.
func ParseDiffStrategy(s string) (DiffStrategy, error) {
	switch DiffStrategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StrategyGreedy:
		return StrategyGreedy, nil
	case StrategyMyers:
		return StrategyMyers, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
	}
}

// Func returns the differ implementing the strategy
func (s DiffStrategy) Func() DiffFunc {
	if s == StrategyMyers {
		return ComputeMyersDiff
	}
	return ComputeDiff
}

// ComputeMyersDiff computes a minimal line diff using go-diff's line mode.
// It honours the same contract as ComputeDiff: split on "\n" with no
// normalization, Delete/Unchanged numbered in old, Add numbered in new.
func ComputeMyersDiff(oldText, newText string) *DiffResult {
	// Terminate both sides so the last line hashes the same as any earlier
	// copy of it; every chunk go-diff returns is then whole "\n"-ended lines.
	dmp := diffmatchpatch.New()
	chars1, chars2, lineArray := dmp.DiffLinesToChars(oldText+"\n", newText+"\n")
	diffs := dmp.DiffMain(chars1, chars2, false)
	lineDiffs := dmp.DiffCharsToLines(diffs, lineArray)

	result := &DiffResult{}
	oldNum, newNum := 1, 1
	for _, d := range lineDiffs {
		if d.Text == "" {
			continue
		}
		lines := strings.Split(strings.TrimSuffix(d.Text, "\n"), "\n")
		for _, line := range lines {
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				result.add(DiffUnchanged, line, oldNum)
				oldNum++
				newNum++
			case diffmatchpatch.DiffDelete:
				result.add(DiffDelete, line, oldNum)
				oldNum++
			case diffmatchpatch.DiffInsert:
				result.add(DiffAdd, line, newNum)
				newNum++
			}
		}
	}
	return result
}
