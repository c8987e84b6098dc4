package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"sync"
	"time"

	"diffmerge/buffer"
	"diffmerge/engine"
	"diffmerge/logger"
	"diffmerge/metrics"
	"diffmerge/text"
	"diffmerge/types"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var previewCmd = &cobra.Command{
	Use:   "preview [generation-file]",
	Short: "Run a generation against a file and show the proposed change",
	Long: `Feeds a generation (from a file, or stdin) through the merge engine with the
given file as the buffer and prints the proposal. --apply resolves it: replace,
append or reject. Without --apply the file is left alone unless the instruction
is an obvious improvement, which is auto-applied after the configured delay.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPreview,
}

func init() {
	previewCmd.Flags().StringP("file", "f", "", "File that plays the editor buffer")
	previewCmd.Flags().StringP("instruction", "i", "", "The instruction the generation answered")
	previewCmd.Flags().String("apply", "", "Resolve the proposal: replace, append or reject")
	_ = previewCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(previewCmd)
}

func runPreview(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger.Default().SetLevel(logger.ParseLevel(cfg.LogLevel))

	path, _ := cmd.Flags().GetString("file")
	instruction, _ := cmd.Flags().GetString("instruction")
	apply, _ := cmd.Flags().GetString("apply")
	switch apply {
	case "", "replace", "append", "reject":
	default:
		return fmt.Errorf("invalid --apply %q: want replace, append or reject", apply)
	}

	generated, err := readGeneration(cmd, args)
	if err != nil {
		return err
	}

	ec, err := cfg.EngineConfig()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	view := &previewEditor{
		fileEditor:   &fileEditor{path: path},
		termObserver: newTermObserver(out),
	}
	eng, err := engine.NewEngine(view, ec, engine.SystemClock, metrics.NewTracker(nil, ""))
	if err != nil {
		return err
	}
	defer eng.Stop()

	if !eng.HandleGeneration(types.Generation{GeneratedText: generated, UserInstruction: instruction, Final: true}) {
		fmt.Fprintln(out, yellow.Render("No change proposed: the generation holds too little code"))
		return nil
	}

	switch apply {
	case "replace":
		eng.Accept(types.ApplyReplace)
	case "append":
		eng.Accept(types.ApplyAppend)
	case "reject":
		eng.Reject()
	default:
		if pc := eng.PendingChange(); pc != nil && pc.AutoApply {
			waitForAutoApply(view.termObserver, ec.AutoApplyDelay)
		}
	}
	return nil
}

func readGeneration(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 {
		data, err := os.ReadFile(args[0])
		return string(data), err
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	return string(data), err
}

func waitForAutoApply(obs *termObserver, delay time.Duration) {
	spinner, _ := pterm.DefaultSpinner.
		WithStyle(pterm.NewStyle(pterm.FgCyan)).
		WithSequence("⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏").
		WithDelay(100 * time.Millisecond).
		WithRemoveWhenDone(true).
		WithWriter(os.Stderr).
		Start("Waiting for auto-apply...")

	select {
	case <-obs.resolved:
	case <-time.After(delay + time.Second):
		logger.Warn("auto-apply did not fire within %v", delay+time.Second)
	}
	if spinner != nil {
		_ = spinner.Stop()
	}
}

// previewEditor is the engine's view of a file on disk plus the terminal
type previewEditor struct {
	*fileEditor
	*termObserver
}

// fileEditor implements engine.Editor over a file. A missing file is an
// empty buffer.
type fileEditor struct {
	path string
}

func (f *fileEditor) CurrentBuffer() (string, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	return string(data), err
}

func (f *fileEditor) Language() string {
	content, _ := f.CurrentBuffer()
	return buffer.DetectLanguage("", f.path, content)
}

func (f *fileEditor) ApplyReplace(code string) error {
	return os.WriteFile(f.path, []byte(code), 0644)
}

func (f *fileEditor) ApplyAppend(code string) error {
	old, err := f.CurrentBuffer()
	if err != nil {
		return err
	}
	return os.WriteFile(f.path, []byte(text.AppendCode(old, code)), 0644)
}

// termObserver renders engine output for a terminal
type termObserver struct {
	out      io.Writer
	once     sync.Once
	resolved chan struct{}
}

func newTermObserver(out io.Writer) *termObserver {
	return &termObserver{out: out, resolved: make(chan struct{})}
}

func (o *termObserver) ShowPending(pc *types.PendingChange) {
	fmt.Fprintln(o.out, renderPending(pc))
}

func (o *termObserver) ClearPending() {
	o.once.Do(func() { close(o.resolved) })
}

func (o *termObserver) Notify(level logger.Level, msg string) {
	switch level {
	case logger.LevelError:
		fmt.Fprintln(o.out, red.Render(msg))
	case logger.LevelWarn:
		fmt.Fprintln(o.out, yellow.Render(msg))
	default:
		fmt.Fprintln(o.out, green.Render(msg))
	}
}

func renderPending(pc *types.PendingChange) string {
	var sb strings.Builder

	mode := "append"
	if pc.IsReplacement {
		mode = "replace"
	}
	additions, deletions := pc.Stats()
	header := fmt.Sprintf("Proposed %s (%s) +%d -%d", mode, pc.Language, additions, deletions)
	if pc.AutoApply {
		header += " [auto-apply]"
	}
	sb.WriteString(bold.Render(header))
	sb.WriteString("\n")

	if pc.Diff == nil {
		for _, line := range text.SplitLines(pc.Code) {
			sb.WriteString(green.Render("+ " + line))
			sb.WriteString("\n")
		}
		return strings.TrimSuffix(sb.String(), "\n")
	}

	for _, l := range pc.Diff.Lines {
		switch l.Kind {
		case text.DiffAdd:
			sb.WriteString(green.Render("+ " + l.Content))
		case text.DiffDelete:
			sb.WriteString(red.Render("- " + l.Content))
		default:
			sb.WriteString(faint.Render("  " + l.Content))
		}
		sb.WriteString("\n")
	}
	return strings.TrimSuffix(sb.String(), "\n")
}
