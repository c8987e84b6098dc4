package main

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"diffmerge/logger"
)

// relayClient pipes the editor's stdio to the daemon socket. The plugin
// spawns one per Neovim instance; the daemon and its engine are shared.
type relayClient struct {
	socketPath   string
	dialTimeout  time.Duration
	startTimeout time.Duration
	running      func() (bool, int)
}

func newRelayClient() *relayClient {
	return &relayClient{
		socketPath:   getSocketPath(),
		dialTimeout:  time.Second,
		startTimeout: 5 * time.Second,
		running:      isDaemonRunning,
	}
}

// Relay copies in to the daemon and the daemon's replies to out until the
// daemon closes the connection.
func (c *relayClient) Relay(in io.Reader, out io.Writer) error {
	conn, err := net.DialTimeout("unix", c.socketPath, c.dialTimeout)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.socketPath, err)
	}
	defer conn.Close()

	go func() {
		_, _ = io.Copy(conn, in)
		// editor went away; unblock the read side
		conn.Close()
	}()

	if _, err := io.Copy(out, conn); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

func (c *relayClient) EnsureDaemon() error {
	if ok, pid := c.running(); ok {
		logger.Debug("daemon already running with PID %d", pid)
		return nil
	}

	logger.Debug("starting daemon...")
	// flags given to the client apply to the daemon too
	argv := append([]string{os.Args[0], "daemon"}, os.Args[1:]...)
	if _, err := os.StartProcess(os.Args[0], argv, &os.ProcAttr{
		Env:   os.Environ(),
		Files: []*os.File{nil, nil, nil},
	}); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}
	return c.waitReady()
}

// waitReady polls until the pid file names a live process and the socket
// exists.
func (c *relayClient) waitReady() error {
	deadline := time.Now().Add(c.startTimeout)
	for time.Now().Before(deadline) {
		if ok, _ := c.running(); ok {
			if _, err := os.Stat(c.socketPath); err == nil {
				logger.Debug("daemon started successfully")
				return nil
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("daemon not ready after %v", c.startTimeout)
}
