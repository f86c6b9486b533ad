package readiness

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/turtacn/Tandem/pkg/consts"
	"github.com/turtacn/Tandem/pkg/errors"
	"github.com/turtacn/Tandem/pkg/logger"
)

// NotifyMessage is what the server writes to the notify socket.
type NotifyMessage struct {
	Status string `json:"status"` // "ready"
	Addr   string `json:"addr,omitempty"`
}

const statusReady = "ready"

// Notify listens on a unix socket whose path is passed to the server in
// TANDEM_READY_SOCK. The server connects and sends {"status":"ready"}.
type Notify struct {
	socketPath string
	timeout    time.Duration
	listener   net.Listener
	closeOnce  sync.Once
}

// NewNotify binds the socket immediately so it exists before the server starts.
func NewNotify(path string, timeout time.Duration) (*Notify, error) {
	if _, err := os.Stat(path); err == nil {
		os.Remove(path)
	}
	l, err := net.Listen("unix", path)
	if err != nil {
		return nil, errors.New(errors.ErrCodeGateFailed, "Readiness", "cannot bind notify socket", err)
	}
	os.Chmod(path, 0700)
	return &Notify{socketPath: path, timeout: timeout, listener: l}, nil
}

func (g *Notify) Name() string { return consts.GateNotify }

func (g *Notify) Env() map[string]string {
	return map[string]string{consts.EnvReadySocket: g.socketPath}
}

// Wait accepts connections until one carries a ready message or the timeout elapses.
func (g *Notify) Wait(ctx context.Context) error {
	logger.Log.Info("Readiness: Waiting for server notification", "socket", g.socketPath)

	ch := make(chan error, 1)
	go func() {
		for {
			conn, err := g.listener.Accept()
			if err != nil {
				ch <- err
				return
			}
			msg, err := readMessage(conn, g.timeout)
			if err != nil {
				logger.Log.Warn("Readiness: Malformed notification", "err", err)
				continue
			}
			if msg.Status == statusReady {
				logger.Log.Info("Readiness: Server reported ready", "addr", msg.Addr)
				ch <- nil
				return
			}
			logger.Log.Debug("Readiness: Ignoring status", "status", msg.Status)
		}
	}()

	t := time.NewTimer(g.timeout)
	defer t.Stop()
	select {
	case err := <-ch:
		if err != nil {
			return errors.New(errors.ErrCodeGateFailed, "Readiness", "notify socket closed", err)
		}
		return nil
	case <-t.C:
		g.Close()
		return errors.New(errors.ErrCodeGateFailed, "Readiness",
			fmt.Sprintf("no ready notification within %s", g.timeout), os.ErrDeadlineExceeded)
	case <-ctx.Done():
		g.Close()
		return ctx.Err()
	}
}

func (g *Notify) Close() error {
	var err error
	g.closeOnce.Do(func() {
		err = g.listener.Close()
		os.Remove(g.socketPath)
	})
	return err
}

func readMessage(conn net.Conn, timeout time.Duration) (NotifyMessage, error) {
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(timeout))

	var msg NotifyMessage
	if err := json.NewDecoder(conn).Decode(&msg); err != nil {
		return NotifyMessage{}, err
	}
	return msg, nil
}

// Personal.AI order the ending
