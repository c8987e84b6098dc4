// Package keys parses Vim key notation and maps keys to review commands.
package keys

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrInvalidKey       = errors.New("invalid key notation")
	ErrDuplicateBinding = errors.New("key bound to more than one command")
)

// Key is a single key press with its modifiers.
// Code is a named key ("CR", "Esc", "Tab", ...) or a single lower-case character.
type Key struct {
	Code  string
	Ctrl  bool
	Alt   bool
	Meta  bool // Cmd/Super
	Shift bool
}

var namedKeys = map[string]string{
	"cr":        "CR",
	"enter":     "CR",
	"return":    "CR",
	"esc":       "Esc",
	"escape":    "Esc",
	"tab":       "Tab",
	"space":     "Space",
	"bs":        "BS",
	"backspace": "BS",
	"del":       "Del",
	"up":        "Up",
	"down":      "Down",
	"left":      "Left",
	"right":     "Right",
	"lt":        "<",
}

// ParseKey parses Vim notation such as "<CR>", "<M-CR>", "<C-r>", "<D-a>" or a bare "x".
func ParseKey(s string) (Key, error) {
	if s == "" {
		return Key{}, fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	if !strings.HasPrefix(s, "<") || !strings.HasSuffix(s, ">") || len(s) < 3 {
		if len([]rune(s)) != 1 {
			return Key{}, fmt.Errorf("%w: %q", ErrInvalidKey, s)
		}
		return charKey(s), nil
	}

	var k Key
	body := s[1 : len(s)-1]
	for len(body) > 2 && body[1] == '-' {
		switch body[0] {
		case 'C', 'c':
			k.Ctrl = true
		case 'M', 'm', 'A', 'a':
			k.Alt = true
		case 'D', 'd':
			k.Meta = true
		case 'S', 's':
			k.Shift = true
		default:
			return Key{}, fmt.Errorf("%w: unknown modifier in %q", ErrInvalidKey, s)
		}
		body = body[2:]
	}

	if name, ok := namedKeys[strings.ToLower(body)]; ok {
		k.Code = name
		return k, nil
	}
	if len([]rune(body)) == 1 {
		// case is not significant inside <>; shift must be spelled out
		k.Code = strings.ToLower(body)
		return k, nil
	}
	return Key{}, fmt.Errorf("%w: %q", ErrInvalidKey, s)
}

// MustParseKey is ParseKey for literals known to be valid.
func MustParseKey(s string) Key {
	k, err := ParseKey(s)
	if err != nil {
		panic(err)
	}
	return k
}

func charKey(s string) Key {
	lower := strings.ToLower(s)
	return Key{Code: lower, Shift: lower != s}
}

// String renders the key in canonical Vim notation
func (k Key) String() string {
	var mods strings.Builder
	if k.Ctrl {
		mods.WriteString("C-")
	}
	if k.Alt {
		mods.WriteString("M-")
	}
	if k.Meta {
		mods.WriteString("D-")
	}
	if k.Shift {
		mods.WriteString("S-")
	}
	if mods.Len() == 0 && len(k.Code) == 1 {
		return k.Code
	}
	return "<" + mods.String() + k.Code + ">"
}

// primary folds Cmd onto Ctrl so a binding serves both platforms.
func (k Key) primary() Key {
	if k.Meta {
		k.Meta = false
		k.Ctrl = true
	}
	return k
}

// Command is an action the review keymap can trigger
type Command int

const (
	CommandNone Command = iota
	CommandAccept
	CommandQuickAccept
	CommandReject
	CommandForceReplace
	CommandForceAppend
	CommandCancel
)

var commandNames = map[Command]string{
	CommandAccept:       "accept",
	CommandQuickAccept:  "quick_accept",
	CommandReject:       "reject",
	CommandForceReplace: "force_replace",
	CommandForceAppend:  "force_append",
	CommandCancel:       "cancel",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return "none"
}

// CommandFromString converts a config name to a Command
func CommandFromString(s string) (Command, bool) {
	for c, name := range commandNames {
		if name == s {
			return c, true
		}
	}
	return CommandNone, false
}

// DefaultBindings returns the built-in review keymap keyed by command name.
func DefaultBindings() map[string][]string {
	return map[string][]string{
		"accept":        {"<CR>"},
		"quick_accept":  {"<M-CR>"},
		"reject":        {"<Esc>"},
		"force_replace": {"<C-r>"},
		"force_append":  {"<C-a>"},
		"cancel":        {"<C-z>"},
	}
}

// Keymap resolves keys to commands
type Keymap struct {
	bindings map[Key]Command
}

// NewKeymap builds a keymap from command name to key notations.
func NewKeymap(bindings map[string][]string) (*Keymap, error) {
	km := &Keymap{bindings: make(map[Key]Command)}
	for name, notations := range bindings {
		cmd, ok := CommandFromString(name)
		if !ok {
			return nil, fmt.Errorf("unknown command %q in keymap", name)
		}
		for _, n := range notations {
			k, err := ParseKey(n)
			if err != nil {
				return nil, err
			}
			k = k.primary()
			if existing, dup := km.bindings[k]; dup && existing != cmd {
				return nil, fmt.Errorf("%w: %s (%s, %s)", ErrDuplicateBinding, k, existing, cmd)
			}
			km.bindings[k] = cmd
		}
	}
	return km, nil
}

// DefaultKeymap returns the keymap built from DefaultBindings
func DefaultKeymap() *Keymap {
	km, err := NewKeymap(DefaultBindings())
	if err != nil {
		panic(err)
	}
	return km
}

// Lookup returns the command bound to k, if any
func (km *Keymap) Lookup(k Key) (Command, bool) {
	cmd, ok := km.bindings[k.primary()]
	return cmd, ok
}

// Keys returns every bound key in canonical notation, sorted
func (km *Keymap) Keys() []string {
	out := make([]string, 0, len(km.bindings))
	for k := range km.bindings {
		out = append(out, k.String())
	}
	sort.Strings(out)
	return out
}
