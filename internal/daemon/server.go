package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"
)

const (
	// Control requests are tiny; anything larger is a misbehaving client.
	maxRequestBytes = 64 * 1024
	requestTimeout  = 10 * time.Second
	// drainTimeout bounds how long Stop waits for in-flight requests.
	drainTimeout = 2 * time.Second

	socketMode = 0o600
)

// ErrSocketInUse is returned by Start when another process answers on the
// socket path.
var ErrSocketInUse = errors.New("socket already in use")

// Start listens on the control socket and serves requests until ctx is
// done, then stops.
func (d *Daemon) Start(ctx context.Context) error {
	listener, err := d.listen()
	if err != nil {
		return err
	}
	d.logger.Info("daemon started", "socket", d.sockPath)

	go d.acceptLoop(listener)

	<-ctx.Done()
	return d.Stop()
}

// listen claims the socket path. A socket file nobody answers on is left
// over from a crash and is replaced.
func (d *Daemon) listen() (net.Listener, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return nil, fmt.Errorf("daemon already running")
	}
	if NewClient(d.sockPath).IsRunning() {
		return nil, fmt.Errorf("%s: %w", d.sockPath, ErrSocketInUse)
	}
	_ = os.Remove(d.sockPath)

	listener, err := net.Listen("unix", d.sockPath)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}
	if err := os.Chmod(d.sockPath, socketMode); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("set socket permissions: %w", err)
	}

	d.listener = listener
	d.running = true
	d.startTime = time.Now()
	return listener, nil
}

// Stop closes the listener, waits briefly for in-flight requests and
// removes the socket file. It is safe to call more than once.
func (d *Daemon) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	listener := d.listener
	d.listener = nil
	d.mu.Unlock()

	if err := listener.Close(); err != nil {
		d.logger.Error("error closing listener", "error", err)
	}

	drained := make(chan struct{})
	go func() {
		d.inflight.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(drainTimeout):
		d.logger.Warn("control requests still in flight at shutdown")
	}

	_ = os.Remove(d.sockPath)
	d.logger.Info("daemon stopped")
	return nil
}

func (d *Daemon) acceptLoop(listener net.Listener) {
	for {
		conn, err := listener.Accept()
		if errors.Is(err, net.ErrClosed) || (err != nil && !d.Running()) {
			return
		}
		if err != nil {
			d.logger.Error("accept error", "error", err)
			continue
		}

		d.mu.RLock()
		if !d.running {
			d.mu.RUnlock()
			_ = conn.Close()
			return
		}
		d.inflight.Add(1)
		d.mu.RUnlock()

		go func() {
			defer d.inflight.Done()
			d.serveConn(conn)
		}()
	}
}

// serveConn answers the single request carried by conn.
func (d *Daemon) serveConn(conn net.Conn) {
	defer func() { _ = conn.Close() }()

	if err := conn.SetDeadline(time.Now().Add(requestTimeout)); err != nil {
		d.logger.Error("set deadline error", "error", err)
		return
	}

	enc := json.NewEncoder(conn)
	var req Request
	if err := json.NewDecoder(io.LimitReader(conn, maxRequestBytes)).Decode(&req); err != nil {
		_ = enc.Encode(Response{Error: fmt.Sprintf("decode error: %v", err)})
		return
	}

	d.logger.Debug("control request", "method", req.Method, "id", req.ID)
	resp := d.handleRequest(&req)
	resp.ID = req.ID
	if err := enc.Encode(resp); err != nil {
		d.logger.Debug("write response failed", "method", req.Method, "error", err)
	}
}
