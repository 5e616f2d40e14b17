// Package daemon hosts a workflow headlessly: an external UI drives it over
// a Unix socket with one JSON request per connection.
package daemon

import (
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/npratt/fingerlock/internal/config"
	"github.com/npratt/fingerlock/internal/controller"
)

// Daemon serves control requests for one controller.
type Daemon struct {
	config     *config.Config
	controller *controller.Controller
	sockPath   string
	startTime  time.Time
	logger     *slog.Logger

	listener net.Listener
	running  bool
	inflight sync.WaitGroup
	mu       sync.RWMutex
}

// New creates a Daemon serving ctrl on cfg.Paths.Socket.
func New(cfg *config.Config, ctrl *controller.Controller, logger *slog.Logger) *Daemon {
	if logger == nil {
		logger = slog.Default()
	}
	return &Daemon{
		config:     cfg,
		controller: ctrl,
		sockPath:   cfg.Paths.Socket,
		logger:     logger,
	}
}

// Running returns whether the daemon is accepting connections.
func (d *Daemon) Running() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.running
}

// StartTime returns when the daemon was started.
func (d *Daemon) StartTime() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.startTime
}

// SocketPath returns the Unix socket path.
func (d *Daemon) SocketPath() string {
	return d.sockPath
}
