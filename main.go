package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"diffmerge/config"
	"diffmerge/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "diffmerge",
	Short: "Review and merge generated code into the editor buffer",
	Long: `diffmerge decides whether generated code replaces or extends the open buffer,
shows the change for review and applies it on accept.

Run without a subcommand it relays stdin/stdout to the background daemon,
starting it if needed. This is how the Neovim plugin launches it.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runClient()
	},
}

func init() {
	config.InitFlags(rootCmd)
}

// Setup logger to log to a file in the same directory as the executable
// Caller must defer logger.Close()
func setupLogger(logLevel string) *logger.Logger {
	logPath := filepath.Join(execDir(), "diffmerge.log")

	f, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening file: %v", err)
	}

	l := logger.New(f, logger.ParseLevel(logLevel), logger.MaxLines)
	logger.SetDefault(l)
	log.SetOutput(l)
	return l
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = ""
	}
	return config.Load(viper.New(), cmd.Root(), cwd)
}

func execDir() string {
	execPath, err := os.Executable()
	if err != nil {
		log.Fatalf("error getting executable path: %v", err)
	}
	return filepath.Dir(execPath)
}

func getSocketPath() string {
	return filepath.Join(execDir(), "diffmerge.sock")
}

func getPidPath() string {
	return filepath.Join(execDir(), "diffmerge.pid")
}

func isDaemonRunning() (bool, int) {
	data, err := os.ReadFile(getPidPath())
	if err != nil {
		return false, 0
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return false, 0
	}

	// Check if process is still running
	process, err := os.FindProcess(pid)
	if err != nil {
		return false, 0
	}

	// On Unix, Signal(0) checks if process exists
	err = process.Signal(syscall.Signal(0))
	return err == nil, pid
}

func runClient() error {
	client := newRelayClient()

	if err := client.EnsureDaemon(); err != nil {
		return fmt.Errorf("error ensuring daemon is running: %w", err)
	}
	if err := client.Relay(os.Stdin, os.Stdout); err != nil {
		return fmt.Errorf("error connecting to daemon: %w", err)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, red.Render(err.Error()))
		os.Exit(1)
	}
}
