package main

import (
	"context"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"diffmerge/buffer"
	"diffmerge/config"
	"diffmerge/engine"
	"diffmerge/metrics"

	"github.com/neovim/go-client/nvim"
	"github.com/spf13/cobra"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the merge engine serving Neovim over a unix socket",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		l := setupLogger(cfg.LogLevel)
		defer l.Close()
		log.Printf("config: %+v", *cfg)

		daemon, err := NewDaemon(cfg)
		if err != nil {
			return err
		}
		return daemon.Start()
	},
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}

type Daemon struct {
	config      *config.Config
	engine      *engine.Engine
	tracker     *metrics.MetricsTracker
	metricsFile *os.File
	listener    net.Listener
	socketPath  string
	pidPath     string
	clientCount int64
	ctx         context.Context
	cancel      context.CancelFunc

	mu       sync.Mutex
	current  *buffer.NvimBuffer
	stopOnce sync.Once
}

func NewDaemon(cfg *config.Config) (*Daemon, error) {
	ec, err := cfg.EngineConfig()
	if err != nil {
		return nil, err
	}

	tracker := metrics.NewTracker(nil, "")
	var metricsFile *os.File
	if cfg.MetricsDir != "" {
		tracker, metricsFile, err = metrics.OpenTracker(cfg.MetricsDir)
		if err != nil {
			return nil, err
		}
	}

	// The editor is attached per connection
	eng, err := engine.NewEngine(nil, ec, engine.SystemClock, tracker)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Daemon{
		config:      cfg,
		engine:      eng,
		tracker:     tracker,
		metricsFile: metricsFile,
		socketPath:  getSocketPath(),
		pidPath:     getPidPath(),
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

func (d *Daemon) Start() error {
	// Setup logging and PID management
	d.writePidFile()
	defer d.removePidFile()

	// Setup socket
	if err := d.setupSocket(); err != nil {
		return err
	}
	defer d.cleanup()

	log.Printf("daemon listening on socket: %s", d.socketPath)

	// Start engine
	d.engine.Start(d.ctx)

	// Setup shutdown handling
	d.setupShutdownHandling()

	// Start connection handling
	go d.acceptConnections()

	// Start idle monitoring
	go d.monitorIdleShutdown()

	// Wait for shutdown
	<-d.ctx.Done()
	log.Printf("daemon shutting down...")
	return nil
}

func (d *Daemon) setupSocket() error {
	// Remove existing socket
	os.Remove(d.socketPath)

	// Listen on Unix socket
	listener, err := net.Listen("unix", d.socketPath)
	if err != nil {
		return err
	}
	d.listener = listener
	return nil
}

func (d *Daemon) setupShutdownHandling() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Printf("received shutdown signal")
		d.Stop()
	}()
}

func (d *Daemon) acceptConnections() {
	for {
		conn, err := d.listener.Accept()
		if err != nil {
			select {
			case <-d.ctx.Done():
				return // Server is shutting down
			default:
				log.Printf("error accepting connection: %v", err)
				continue
			}
		}

		atomic.AddInt64(&d.clientCount, 1)
		log.Printf("new client connected, total clients: %d", atomic.LoadInt64(&d.clientCount))
		go d.handleConnection(conn)
	}
}

func (d *Daemon) handleConnection(conn net.Conn) {
	defer conn.Close()
	defer func() {
		atomic.AddInt64(&d.clientCount, -1)
		log.Printf("client disconnected, remaining clients: %d", atomic.LoadInt64(&d.clientCount))
	}()

	// Create Neovim client from the connection
	n, err := nvim.New(conn, conn, conn, log.Printf)
	if err != nil {
		log.Printf("error creating nvim client: %v", err)
		return
	}

	buf := buffer.New(buffer.Config{NsID: d.config.NsID, Keymap: d.engine.Keymap()})
	buf.SetClient(n)
	if err := buf.RegisterEventHandler(d.handleEvent); err != nil {
		log.Printf("error registering event handler: %v", err)
		return
	}

	// The most recent connection owns the engine
	d.attach(buf)
	defer d.detach(buf)

	// Serve this connection until it closes or context is done
	select {
	case <-d.ctx.Done():
		return
	default:
		if err := n.Serve(); err != nil && err != io.EOF {
			log.Printf("error serving connection: %v", err)
		}
	}
}

// handleEvent queues an editor event for the engine. It runs on the RPC
// goroutine, so it must not wait for the engine, which calls back into
// Neovim while holding its lock.
func (d *Daemon) handleEvent(name string, args map[string]any) bool {
	event, err := buffer.DecodeEvent(name, args)
	if err != nil {
		log.Printf("dropping event: %v", err)
		return false
	}
	return d.engine.Submit(event)
}

func (d *Daemon) attach(buf *buffer.NvimBuffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.current = buf
	d.engine.SetEditor(buf)
}

func (d *Daemon) detach(buf *buffer.NvimBuffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current == buf {
		d.current = nil
		d.engine.SetEditor(nil)
	}
}

func (d *Daemon) monitorIdleShutdown() {
	// In debug mode, shut down immediately when no clients are connected
	if d.config.DebugImmediateShutdown {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-d.ctx.Done():
				return
			case <-ticker.C:
				if atomic.LoadInt64(&d.clientCount) == 0 {
					log.Printf("debug mode: no clients connected, shutting down daemon immediately")
					d.Stop()
					return
				}
			}
		}
	}

	// Normal mode: wait for timeout period before shutting down
	idleTimer := time.NewTimer(30 * time.Second)
	defer idleTimer.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-idleTimer.C:
			if atomic.LoadInt64(&d.clientCount) == 0 {
				log.Printf("no clients connected for timeout period, shutting down daemon")
				d.Stop()
				return
			}
		}

		// Reset timer when no clients
		if atomic.LoadInt64(&d.clientCount) == 0 {
			idleTimer.Reset(5 * time.Second)
		} else {
			idleTimer.Reset(30 * time.Second)
		}
	}
}

func (d *Daemon) Stop() {
	d.stopOnce.Do(func() {
		d.engine.Stop()
		if d.listener != nil {
			d.listener.Close()
		}

		s := d.tracker.Stats()
		log.Printf("session metrics: shown=%d accepted=%d auto=%d disposed=%v", s.Shown, s.Accepted, s.AutoApplied, s.Disposed)
		if d.metricsFile != nil {
			if err := d.metricsFile.Close(); err != nil {
				log.Printf("warning: could not close metrics file: %v", err)
			}
		}
		d.cancel()
	})
}

func (d *Daemon) cleanup() {
	os.Remove(d.socketPath)
}

func (d *Daemon) writePidFile() {
	pid := os.Getpid()
	err := os.WriteFile(d.pidPath, []byte(strconv.Itoa(pid)), 0644)
	if err != nil {
		log.Printf("warning: could not write PID file: %v", err)
	}
	log.Printf("server started with PID %d", pid)
}

func (d *Daemon) removePidFile() {
	if err := os.Remove(d.pidPath); err != nil && !os.IsNotExist(err) {
		log.Printf("warning: could not remove PID file: %v", err)
	}
}
