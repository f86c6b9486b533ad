// Package readiness decides when the client may be launched after the server.
package readiness

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/turtacn/Tandem/pkg/consts"
	"github.com/turtacn/Tandem/pkg/errors"
	"github.com/turtacn/Tandem/pkg/logger"
	"github.com/turtacn/Tandem/pkg/protocol"
)

// Gate blocks the orchestrating flow between server and client launch.
type Gate interface {
	// Name identifies the gate kind in logs and metrics.
	Name() string
	// Env returns variables the server needs to signal readiness.
	Env() map[string]string
	// Wait returns once the server is considered ready.
	Wait(ctx context.Context) error
	// Close releases resources held by the gate.
	Close() error
}

// New builds the gate selected by cfg. host and port are the resolved
// service address exported to the children.
func New(cfg protocol.StartupConfig, host string, port int) (Gate, error) {
	delay, err := protocol.ParseDuration(cfg.Delay, 0)
	if err != nil {
		return nil, errors.New(errors.ErrCodeConfigInvalid, "Readiness", "startup.delay", err)
	}
	timeout, err := protocol.ParseDuration(cfg.Timeout, consts.DefaultGateTimeout)
	if err != nil {
		return nil, errors.New(errors.ErrCodeConfigInvalid, "Readiness", "startup.timeout", err)
	}
	interval, err := protocol.ParseDuration(cfg.Interval, consts.DefaultGateInterval)
	if err != nil {
		return nil, errors.New(errors.ErrCodeConfigInvalid, "Readiness", "startup.interval", err)
	}

	switch cfg.Gate {
	case "", consts.GateDelay:
		return NewDelay(delay), nil
	case consts.GateNone:
		return NewDelay(0), nil
	case consts.GateTCP:
		return NewTCPProbe(net.JoinHostPort(host, strconv.Itoa(port)), timeout, interval), nil
	case consts.GateNotify:
		path := cfg.SocketPath
		if path == "" {
			path = filepath.Join(os.TempDir(), fmt.Sprintf("tandem-%d.sock", time.Now().UnixNano()))
		}
		return NewNotify(path, timeout)
	default:
		return nil, errors.New(errors.ErrCodeConfigInvalid, "Readiness", fmt.Sprintf("unknown gate %q", cfg.Gate), nil)
	}
}

// Delay is a fixed grace period. A zero delay launches the client immediately.
type Delay struct {
	d time.Duration
}

func NewDelay(d time.Duration) *Delay { return &Delay{d: d} }

func (g *Delay) Name() string           { return consts.GateDelay }
func (g *Delay) Env() map[string]string { return nil }
func (g *Delay) Close() error           { return nil }

func (g *Delay) Wait(ctx context.Context) error {
	if g.d <= 0 {
		return nil
	}
	logger.Log.Debug("Readiness: Sleeping before client launch", "delay", g.d)
	t := time.NewTimer(g.d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// TCPProbe polls the service address until a connection succeeds.
type TCPProbe struct {
	addr     string
	timeout  time.Duration
	interval time.Duration
}

func NewTCPProbe(addr string, timeout, interval time.Duration) *TCPProbe {
	return &TCPProbe{addr: addr, timeout: timeout, interval: interval}
}

func (g *TCPProbe) Name() string           { return consts.GateTCP }
func (g *TCPProbe) Env() map[string]string { return nil }
func (g *TCPProbe) Close() error           { return nil }

func (g *TCPProbe) Wait(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	attempts := 0
	for {
		attempts++
		var d net.Dialer
		d.Timeout = g.interval
		conn, err := d.DialContext(ctx, "tcp", g.addr)
		if err == nil {
			conn.Close()
			logger.Log.Info("Readiness: Server is accepting connections", "addr", g.addr, "attempts", attempts)
			return nil
		}

		select {
		case <-ctx.Done():
			return errors.New(errors.ErrCodeGateFailed, "Readiness",
				fmt.Sprintf("%s not reachable after %d attempts", g.addr, attempts), err)
		case <-time.After(g.interval):
		}
	}
}

// Personal.AI order the ending
