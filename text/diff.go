package text

import (
	"strings"
)

// DiffKind classifies a single line of a DiffResult
type DiffKind int

const (
	DiffUnchanged DiffKind = iota
	DiffAdd
	DiffDelete
)

// String returns the string representation of DiffKind for Lua integration
func (k DiffKind) String() string {
	switch k {
	case DiffUnchanged:
		return "unchanged"
	case DiffAdd:
		return "add"
	case DiffDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// DiffLine is one entry of the ordered line diff.
type DiffLine struct {
	Kind    DiffKind
	Content string
	// LineNumber is one-indexed: old buffer for Delete/Unchanged, new buffer for Add
	LineNumber int
}

// DiffResult holds the ordered diff plus the lines bucketed by kind
type DiffResult struct {
	Additions []string
	Deletions []string
	Unchanged []string
	Lines     []DiffLine
}

func (r *DiffResult) add(kind DiffKind, content string, lineNumber int) {
	r.Lines = append(r.Lines, DiffLine{Kind: kind, Content: content, LineNumber: lineNumber})
	switch kind {
	case DiffAdd:
		r.Additions = append(r.Additions, content)
	case DiffDelete:
		r.Deletions = append(r.Deletions, content)
	default:
		r.Unchanged = append(r.Unchanged, content)
	}
}

// NewLines rebuilds the new buffer from Add and Unchanged lines
func (r *DiffResult) NewLines() []string {
	lines := make([]string, 0, len(r.Lines))
	for _, l := range r.Lines {
		if l.Kind != DiffDelete {
			lines = append(lines, l.Content)
		}
	}
	return lines
}

// OldLines rebuilds the old buffer from Delete and Unchanged lines
func (r *DiffResult) OldLines() []string {
	lines := make([]string, 0, len(r.Lines))
	for _, l := range r.Lines {
		if l.Kind != DiffAdd {
			lines = append(lines, l.Content)
		}
	}
	return lines
}

// Stats returns the number of added and deleted lines
func (r *DiffResult) Stats() (additions, deletions int) {
	return len(r.Additions), len(r.Deletions)
}

// HasChanges reports whether the diff contains any Add or Delete line
func (r *DiffResult) HasChanges() bool {
	return len(r.Additions) > 0 || len(r.Deletions) > 0
}

// SplitLines splits text on "\n" without any normalization.
// An empty string is a single empty line.
func SplitLines(text string) []string {
	return strings.Split(text, "\n")
}

// JoinLines is the inverse of SplitLines
func JoinLines(lines []string) string {
	return strings.Join(lines, "\n")
}

// ComputeDiff computes a line diff using a greedy nearest-match forward scan.
// The result is not minimal but is deterministic and cheap for buffer sized
// inputs; worst case is quadratic in the number of lines.
func ComputeDiff(oldText, newText string) *DiffResult {
	oldLines := SplitLines(oldText)
	newLines := SplitLines(newText)
	result := &DiffResult{Lines: make([]DiffLine, 0, max(len(oldLines), len(newLines)))}

	i, j := 0, 0
	for i < len(oldLines) && j < len(newLines) {
		oldLine, newLine := oldLines[i], newLines[j]
		if oldLine == newLine {
			result.add(DiffUnchanged, oldLine, i+1)
			i++
			j++
			continue
		}

		nextOld := indexFrom(oldLines, newLine, i+1)
		nextNew := indexFrom(newLines, oldLine, j+1)

		switch {
		case nextOld != -1 && (nextNew == -1 || nextOld-i <= nextNew-j):
			result.add(DiffDelete, oldLine, i+1)
			i++
		case nextNew != -1:
			result.add(DiffAdd, newLine, j+1)
			j++
		default:
			result.add(DiffDelete, oldLine, i+1)
			result.add(DiffAdd, newLine, j+1)
			i++
			j++
		}
	}

	for ; i < len(oldLines); i++ {
		result.add(DiffDelete, oldLines[i], i+1)
	}
	for ; j < len(newLines); j++ {
		result.add(DiffAdd, newLines[j], j+1)
	}

	return result
}

// indexFrom returns the first index >= from where lines[index] == target, or -1
func indexFrom(lines []string, target string, from int) int {
	for k := from; k < len(lines); k++ {
		if lines[k] == target {
			return k
		}
	}
	return -1
}
