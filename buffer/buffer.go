package buffer

import (
	"fmt"
	"path/filepath"
	"sync"

	"diffmerge/keys"
	"diffmerge/logger"
	"diffmerge/text"
	"diffmerge/types"

	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/neovim/go-client/nvim"
)

type Config struct {
	NsID   int
	Keymap *keys.Keymap
}

// NvimBuffer is the editor side of the engine for one Neovim connection.
// It implements engine.Editor and engine.Observer.
type NvimBuffer struct {
	client *nvim.Nvim // stored internally, set via SetClient
	config Config

	mu       sync.Mutex
	id       nvim.Buffer
	path     string
	filetype string
	content  string
}

func New(config Config) *NvimBuffer {
	if config.Keymap == nil {
		config.Keymap = keys.DefaultKeymap()
	}
	return &NvimBuffer{
		id:     nvim.Buffer(0),
		config: config,
	}
}

// SetClient stores the nvim client for all buffer operations
func (b *NvimBuffer) SetClient(n *nvim.Nvim) {
	b.client = n
}

// CurrentBuffer reads the active buffer and remembers which buffer it was,
// so a later apply lands in the buffer the proposal was computed against.
func (b *NvimBuffer) CurrentBuffer() (string, error) {
	defer logger.Trace("buffer.CurrentBuffer")()
	if b.client == nil {
		return "", fmt.Errorf("nvim client not set")
	}

	// Use batch API to make all calls in a single round-trip
	batch := b.client.NewBatch()

	var currentBuf nvim.Buffer
	var path string
	var lines [][]byte
	var filetype string

	batch.CurrentBuffer(&currentBuf)
	batch.BufferName(nvim.Buffer(0), &path)
	batch.BufferLines(nvim.Buffer(0), 0, -1, false, &lines)
	batch.ExecLua(`return vim.bo.filetype`, &filetype, nil)

	if err := batch.Execute(); err != nil {
		logger.Error("error executing read batch: %v", err)
		return "", err
	}

	content := text.JoinLines(fromBytes(lines))

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.id != currentBuf {
		logger.Debug("buffer switched: %d -> %d (%s)", b.id, currentBuf, path)
	}
	b.id = currentBuf
	b.path = path
	b.filetype = filetype
	b.content = content
	return content, nil
}

// Language reports the language of the buffer last read by CurrentBuffer
func (b *NvimBuffer) Language() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return DetectLanguage(b.filetype, b.path, b.content)
}

// ApplyReplace overwrites the whole buffer with code
func (b *NvimBuffer) ApplyReplace(code string) error {
	if b.client == nil {
		return fmt.Errorf("nvim client not set")
	}
	id := b.bufferID()

	batch := b.client.NewBatch()
	b.clearNamespace(batch, id)
	batch.SetBufferLines(id, 0, -1, false, toBytes(text.SplitLines(code)))
	if err := batch.Execute(); err != nil {
		return fmt.Errorf("replace buffer %d: %w", id, err)
	}
	return nil
}

// ApplyAppend adds code after the last line, separated by a blank line
func (b *NvimBuffer) ApplyAppend(code string) error {
	if b.client == nil {
		return fmt.Errorf("nvim client not set")
	}
	id := b.bufferID()

	batch := b.client.NewBatch()
	b.clearNamespace(batch, id)
	batch.SetBufferLines(id, -1, -1, false, toBytes(appendLines(code)))
	if err := batch.Execute(); err != nil {
		return fmt.Errorf("append to buffer %d: %w", id, err)
	}
	return nil
}

// ShowPending hands the proposal to the Lua side for rendering
func (b *NvimBuffer) ShowPending(pc *types.PendingChange) {
	if b.client == nil {
		return
	}
	logger.Debug("sending to lua on_pending_change: id=%016x replace=%v", pc.ID, pc.IsReplacement)
	b.executeLuaFunction("require('diffmerge').on_pending_change(...)", pendingToLuaFormat(pc, b.config.Keymap))
}

// ClearPending removes the proposal UI
func (b *NvimBuffer) ClearPending() {
	if b.client == nil {
		return
	}
	logger.Debug("sending to lua on_resolved")
	batch := b.client.NewBatch()
	b.clearNamespace(batch, b.bufferID())
	batch.ExecLua("require('diffmerge').on_resolved()", nil, nil)
	if err := batch.Execute(); err != nil {
		logger.Error("error clearing pending change: %v", err)
	}
}

// Notify shows msg through vim.notify
func (b *NvimBuffer) Notify(level logger.Level, msg string) {
	b.executeLuaFunction("local msg, lvl = ...; vim.notify(msg, lvl, { title = 'diffmerge' })", msg, notifyLevel(level))
}

// RegisterEventHandler registers a handler for nvim RPC events. The handler
// result is returned to the caller as the reply; the daemon replies whether
// the event was queued for the engine, not whether a key was bound.
func (b *NvimBuffer) RegisterEventHandler(handler func(name string, args map[string]any) bool) error {
	if b.client == nil {
		return fmt.Errorf("nvim client not set")
	}
	return b.client.RegisterHandler("diffmerge_event", func(_ *nvim.Nvim, name string, args map[string]any) (bool, error) {
		return handler(name, args), nil
	})
}

// Internal helper methods

func (b *NvimBuffer) bufferID() nvim.Buffer {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.id
}

func (b *NvimBuffer) clearNamespace(batch *nvim.Batch, id nvim.Buffer) {
	if b.config.NsID > 0 {
		batch.ClearBufferNamespace(id, b.config.NsID, 0, -1)
	}
}

func (b *NvimBuffer) executeLuaFunction(luaCode string, args ...any) {
	if b.client == nil {
		return
	}
	batch := b.client.NewBatch()
	if len(args) > 0 {
		batch.ExecLua(luaCode, nil, args...)
	} else {
		batch.ExecLua(luaCode, nil, nil)
	}
	if err := batch.Execute(); err != nil {
		logger.Error("error executing lua function: %v", err)
	}
}

// DetectLanguage prefers the filetype the editor reports, then the known
// extensions, then chroma's lexers for the file name and the content.
func DetectLanguage(filetype, path, content string) string {
	if filetype != "" {
		return text.NormalizeLanguage(filetype)
	}
	if lang, ok := text.ExtensionLanguage(path); ok {
		return lang
	}
	if path != "" {
		if lexer := lexers.Match(filepath.Base(path)); lexer != nil {
			return text.NormalizeLanguage(lexer.Config().Name)
		}
		return text.LanguageFromPath(path)
	}
	if content != "" {
		if lexer := lexers.Analyse(content); lexer != nil {
			return text.NormalizeLanguage(lexer.Config().Name)
		}
	}
	return text.LanguageFromPath(path)
}

// appendLines is what ApplyAppend inserts after the last line so that the
// buffer ends up as text.AppendCode(old, code)
func appendLines(code string) []string {
	return append([]string{""}, text.SplitLines(code)...)
}

// vim.log.levels
func notifyLevel(level logger.Level) int {
	switch level {
	case logger.LevelTrace:
		return 0
	case logger.LevelDebug:
		return 1
	case logger.LevelWarn:
		return 3
	case logger.LevelError:
		return 4
	default:
		return 2
	}
}

// pendingToLuaFormat converts a pending change to a table for Lua rendering
func pendingToLuaFormat(pc *types.PendingChange, keymap *keys.Keymap) map[string]any {
	payload := map[string]any{
		"id":             fmt.Sprintf("%016x", pc.ID),
		"lines":          text.SplitLines(pc.Code),
		"language":       pc.Language,
		"instruction":    pc.UserInstruction,
		"is_replacement": pc.IsReplacement,
		"auto_apply":     pc.AutoApply,
	}
	if keymap != nil {
		payload["keys"] = keymap.Keys()
	}

	if pc.Diff == nil {
		return payload
	}

	additions, deletions := pc.Diff.Stats()
	payload["stats"] = map[string]any{
		"additions": additions,
		"deletions": deletions,
		"unchanged": len(pc.Diff.Unchanged),
	}

	diff := make([]map[string]any, 0, len(pc.Diff.Lines))
	for _, l := range pc.Diff.Lines {
		diff = append(diff, map[string]any{
			"kind":    l.Kind.String(),
			"content": l.Content,
			"line":    l.LineNumber,
		})
	}
	payload["diff"] = diff
	return payload
}

func toBytes(lines []string) [][]byte {
	out := make([][]byte, len(lines))
	for i, line := range lines {
		out[i] = []byte(line)
	}
	return out
}

func fromBytes(lines [][]byte) []string {
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = string(line)
	}
	return out
}
