// Package intent decides whether an instruction asks to replace the current
// buffer or to append to it, and whether a replacement is safe to auto-apply.
package intent

import (
	"fmt"
	"strings"
)

// Rules is the keyword table driving classification. Matching is a
// case-insensitive substring test; Replace is checked before Append.
type Rules struct {
	Replace          []string `mapstructure:"replace" json:"replace" yaml:"replace"`
	Append           []string `mapstructure:"append" json:"append" yaml:"append"`
	AutoApply        []string `mapstructure:"auto_apply" json:"auto_apply" yaml:"auto_apply"`
	ReplaceThreshold int      `mapstructure:"replace_threshold" json:"replace_threshold" yaml:"replace_threshold"`
}

// DefaultRules returns the built-in keyword table.
func DefaultRules() Rules {
	return Rules{
		Replace: []string{
			"make it better", "improve", "enhance", "optimize", "fix", "update",
			"modify", "change", "refactor", "rewrite", "upgrade", "polish",
			"make this better", "improve this", "fix this", "update this",
			"can you improve", "can you make", "can you fix", "can you enhance",
		},
		Append: []string{
			"add", "include", "also add", "plus", "in addition", "append",
			"insert", "put in", "also include", "and add", "create new", "also",
		},
		AutoApply:        []string{"make it better", "improve", "fix"},
		ReplaceThreshold: 100,
	}
}

// Decision is the outcome of classifying one instruction
type Decision struct {
	Replace   bool
	AutoApply bool
	Reason    string
}

// Classifier applies a Rules table. It is immutable and safe for concurrent use.
type Classifier struct {
	replace   []string
	append    []string
	autoApply []string
	threshold int
}

// New builds a classifier from rules, lower-casing keywords and dropping blanks.
func New(rules Rules) *Classifier {
	return &Classifier{
		replace:   normalize(rules.Replace),
		append:    normalize(rules.Append),
		autoApply: normalize(rules.AutoApply),
		threshold: rules.ReplaceThreshold,
	}
}

func normalize(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			out = append(out, k)
		}
	}
	return out
}

// Classify returns true for replace and false for append.
func (c *Classifier) Classify(instruction string, bufferLength int) bool {
	return c.Decide(instruction, bufferLength).Replace
}

// IsObviousImprovement reports whether a replacement decided for instruction
// may be applied without waiting for the user.
func (c *Classifier) IsObviousImprovement(instruction string, isReplacement bool) bool {
	if !isReplacement {
		return false
	}
	_, ok := firstMatch(strings.ToLower(instruction), c.autoApply)
	return ok
}

// Decide classifies instruction and records which rule fired.
func (c *Classifier) Decide(instruction string, bufferLength int) Decision {
	lower := strings.ToLower(instruction)

	var d Decision
	if kw, ok := firstMatch(lower, c.replace); ok {
		d = Decision{Replace: true, Reason: fmt.Sprintf("replace keyword %q", kw)}
	} else if kw, ok := firstMatch(lower, c.append); ok {
		d = Decision{Replace: false, Reason: fmt.Sprintf("append keyword %q", kw)}
	} else if bufferLength > c.threshold {
		d = Decision{Replace: true, Reason: fmt.Sprintf("buffer length %d > %d", bufferLength, c.threshold)}
	} else {
		d = Decision{Replace: false, Reason: fmt.Sprintf("buffer length %d <= %d", bufferLength, c.threshold)}
	}

	d.AutoApply = c.IsObviousImprovement(instruction, d.Replace)
	return d
}

func firstMatch(lower string, keywords []string) (string, bool) {
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			return k, true
		}
	}
	return "", false
}
