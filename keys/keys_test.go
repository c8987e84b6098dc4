package keys

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKey(t *testing.T) {
	tests := []struct {
		input string
		want  Key
	}{
		{"<CR>", Key{Code: "CR"}},
		{"<Enter>", Key{Code: "CR"}},
		{"<esc>", Key{Code: "Esc"}},
		{"<M-CR>", Key{Code: "CR", Alt: true}},
		{"<A-CR>", Key{Code: "CR", Alt: true}},
		{"<C-r>", Key{Code: "r", Ctrl: true}},
		{"<C-R>", Key{Code: "r", Ctrl: true}},
		{"<D-z>", Key{Code: "z", Meta: true}},
		{"<C-S-a>", Key{Code: "a", Ctrl: true, Shift: true}},
		{"<S-CR>", Key{Code: "CR", Shift: true}},
		{"x", Key{Code: "x"}},
		{"X", Key{Code: "x", Shift: true}},
		{"<lt>", Key{Code: "<"}},
	}

	for _, tt := range tests {
		got, err := ParseKey(tt.input)
		require.NoError(t, err, tt.input)
		assert.Equal(t, tt.want, got, tt.input)
	}
}

func TestParseKey_Invalid(t *testing.T) {
	for _, input := range []string{"", "<>", "<X-r>", "<C-foo>", "ab"} {
		_, err := ParseKey(input)
		assert.ErrorIs(t, err, ErrInvalidKey, input)
	}
}

func TestKeyString(t *testing.T) {
	tests := map[string]string{
		"<CR>":    "<CR>",
		"<m-cr>":  "<M-CR>",
		"<C-R>":   "<C-r>",
		"<D-S-z>": "<D-S-z>",
		"q":       "q",
	}
	for input, want := range tests {
		assert.Equal(t, want, MustParseKey(input).String(), input)
	}
}

func TestDefaultKeymap(t *testing.T) {
	km := DefaultKeymap()

	tests := []struct {
		key  string
		want Command
		ok   bool
	}{
		{"<CR>", CommandAccept, true},
		{"<M-CR>", CommandQuickAccept, true},
		{"<Esc>", CommandReject, true},
		{"<C-r>", CommandForceReplace, true},
		{"<D-r>", CommandForceReplace, true},
		{"<C-a>", CommandForceAppend, true},
		{"<D-a>", CommandForceAppend, true},
		{"<C-z>", CommandCancel, true},
		{"<S-CR>", CommandNone, false},
		{"<C-CR>", CommandNone, false},
		{"<C-s>", CommandNone, false},
		{"r", CommandNone, false},
	}

	for _, tt := range tests {
		got, ok := km.Lookup(MustParseKey(tt.key))
		assert.Equal(t, tt.ok, ok, tt.key)
		assert.Equal(t, tt.want, got, tt.key)
	}
}

func TestKeymapKeys(t *testing.T) {
	assert.Equal(t,
		[]string{"<C-a>", "<C-r>", "<C-z>", "<CR>", "<Esc>", "<M-CR>"},
		DefaultKeymap().Keys())
}

func TestNewKeymap_Errors(t *testing.T) {
	_, err := NewKeymap(map[string][]string{"explode": {"x"}})
	assert.Error(t, err)

	_, err = NewKeymap(map[string][]string{"accept": {"<bogus-key>"}})
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = NewKeymap(map[string][]string{
		"reject": {"<C-x>"},
		"cancel": {"<D-x>"},
	})
	assert.ErrorIs(t, err, ErrDuplicateBinding)
}

func TestCommandFromString(t *testing.T) {
	for c, name := range commandNames {
		got, ok := CommandFromString(name)
		assert.True(t, ok, name)
		assert.Equal(t, c, got)
		assert.Equal(t, name, c.String())
	}

	_, ok := CommandFromString("nope")
	assert.False(t, ok)
	assert.Equal(t, "none", CommandNone.String())
}
