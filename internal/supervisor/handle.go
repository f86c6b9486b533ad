package supervisor

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"github.com/turtacn/Tandem/pkg/consts"
	herrors "github.com/turtacn/Tandem/pkg/errors"
	"github.com/turtacn/Tandem/pkg/fsm"
	"github.com/turtacn/Tandem/pkg/logger"
	"github.com/turtacn/Tandem/pkg/protocol"
)

// ProcessHandle owns one launched child: its lifetime, its captured output
// and the state machine RUNNING -> EXITED | TIMED_OUT -> TERMINATING -> TIMED_OUT_KILLED.
type ProcessHandle struct {
	spec protocol.RoleSpec
	cmd  *exec.Cmd
	fsm  *fsm.StateMachine
	log  logger.Logger

	stdout bytes.Buffer
	stderr bytes.Buffer
	pipes  []io.Closer
	drain  errgroup.Group

	started time.Time
	done    chan struct{} // closed once output is drained and the child is reaped

	once    sync.Once
	outcome protocol.Outcome
}

// Launch starts the process described by spec with its output redirected
// into in-memory buffers. Draining starts immediately and runs until the
// child closes its pipes.
func Launch(spec protocol.RoleSpec) (*ProcessHandle, error) {
	log := logger.Log.With("role", spec.Role)

	cmd := exec.Command(spec.Path, spec.Args...)
	cmd.Env = MergeEnv(os.Environ(), spec.Env)
	cmd.Dir = spec.Dir
	// Own process group, so termination reaches everything the child spawned.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, launchError(spec, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		stdout.Close()
		return nil, launchError(spec, err)
	}

	log.Info("Supervisor: Forking process", "path", spec.Path, "args", spec.Args)
	if err := cmd.Start(); err != nil {
		return nil, launchError(spec, err)
	}

	h := &ProcessHandle{
		spec:    spec,
		cmd:     cmd,
		fsm:     fsm.New(fsm.State(consts.StateRunning)),
		log:     log.With("pid", cmd.Process.Pid),
		pipes:   []io.Closer{stdout, stderr},
		started: time.Now(),
		done:    make(chan struct{}),
	}
	h.setupFSM()

	h.drain.Go(func() error { return capture(&h.stdout, stdout) })
	h.drain.Go(func() error { return capture(&h.stderr, stderr) })
	go h.reap()

	return h, nil
}

func (h *ProcessHandle) setupFSM() {
	h.fsm.AddTransition(fsm.State(consts.StateRunning), fsm.State(consts.StateExited), consts.EventExit, nil)
	h.fsm.AddTransition(fsm.State(consts.StateRunning), fsm.State(consts.StateTimedOut), consts.EventTimeout, h.onTimeout)
	h.fsm.AddTransition(fsm.State(consts.StateTimedOut), fsm.State(consts.StateTerminating), consts.EventTerminate, h.onTerminate)
	h.fsm.AddTransition(fsm.State(consts.StateTerminating), fsm.State(consts.StateTimedOutKilled), consts.EventReap, nil)
}

// Role returns the role this handle was launched for.
func (h *ProcessHandle) Role() consts.Role { return h.spec.Role }

// PID returns the operating system process id of the child.
func (h *ProcessHandle) PID() int { return h.cmd.Process.Pid }

// State returns the current lifecycle state.
func (h *ProcessHandle) State() consts.HandleState {
	return consts.HandleState(h.fsm.Current())
}

// Wait blocks until the child exits or timeout elapses. On timeout the
// process group is sent SIGTERM, then SIGKILL after TerminateGrace, and the
// final status is collected within another TerminateGrace. Wait returns the
// same Outcome on every call.
func (h *ProcessHandle) Wait(timeout time.Duration) protocol.Outcome {
	h.once.Do(func() { h.outcome = h.wait(timeout) })
	return h.outcome
}

// Terminate stops a child that will not be waited on through the normal path.
func (h *ProcessHandle) Terminate() protocol.Outcome {
	return h.Wait(0)
}

func (h *ProcessHandle) wait(timeout time.Duration) protocol.Outcome {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	timedOut := false
	select {
	case <-h.done:
		h.fire(consts.EventExit)
	case <-timer.C:
		timedOut = true
		h.fire(consts.EventTimeout)
		h.fire(consts.EventTerminate)
		h.collect()
		h.fire(consts.EventReap)
	}

	out := protocol.Outcome{
		Role:     h.spec.Role,
		Label:    h.spec.Label,
		PID:      h.PID(),
		ExitCode: exitCode(h.cmd.ProcessState),
		Stdout:   bytes.Clone(h.stdout.Bytes()),
		Stderr:   bytes.Clone(h.stderr.Bytes()),
		TimedOut: timedOut,
		Duration: time.Since(h.started),
	}
	h.log.Info("Supervisor: Process finished", "exit_code", out.ExitCode, "timed_out", timedOut,
		"state", h.State(), "duration", out.Duration)
	return out
}

// collect waits for the final status after SIGTERM, escalating as needed.
func (h *ProcessHandle) collect() {
	grace := h.spec.TerminateGrace
	if h.awaitDone(grace) {
		return
	}

	h.log.Warn("Supervisor: Process ignored SIGTERM, sending SIGKILL", "grace", grace)
	if err := h.signal(unix.SIGKILL); err != nil {
		h.log.Error("Supervisor: SIGKILL failed", "err", err)
	}
	if h.awaitDone(grace) {
		return
	}

	// A descendant outside the group still holds the pipes.
	h.log.Warn("Supervisor: Output still open after SIGKILL, closing pipes")
	for _, p := range h.pipes {
		p.Close()
	}
	<-h.done
}

func (h *ProcessHandle) awaitDone(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-h.done:
		return true
	case <-t.C:
		return false
	}
}

func (h *ProcessHandle) onTimeout(event fsm.Event, args ...interface{}) error {
	h.log.Warn("Supervisor: Wait timed out", "timeout", h.spec.Timeout)
	return nil
}

func (h *ProcessHandle) onTerminate(event fsm.Event, args ...interface{}) error {
	h.log.Info("Supervisor: Sending SIGTERM")
	return h.signal(unix.SIGTERM)
}

// signal delivers sig to the child's process group, falling back to the
// child alone. A child that is already gone is not an error.
func (h *ProcessHandle) signal(sig syscall.Signal) error {
	select {
	case <-h.done:
		return nil
	default:
	}

	pid := h.PID()
	err := unix.Kill(-pid, sig)
	if err == nil || errors.Is(err, unix.ESRCH) {
		return nil
	}
	if err := unix.Kill(pid, sig); err != nil && !errors.Is(err, unix.ESRCH) {
		return err
	}
	return nil
}

func (h *ProcessHandle) reap() {
	if err := h.drain.Wait(); err != nil {
		h.log.Debug("Supervisor: Output drain ended with error", "err", err)
	}
	// Reads are complete, so Wait may close the pipes.
	if err := h.cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			h.log.Error("Supervisor: Wait failed", "err", err)
		}
	}
	close(h.done)
}

func (h *ProcessHandle) fire(event fsm.Event) {
	if err := h.fsm.Fire(event); err != nil {
		h.log.Error("Supervisor: State transition failed", "event", event, "err", err)
	}
}

func capture(dst *bytes.Buffer, src io.Reader) error {
	_, err := io.Copy(dst, src)
	if errors.Is(err, os.ErrClosed) {
		return nil
	}
	return err
}

// exitCode reports the child's own status; signal deaths become -signum.
func exitCode(ps *os.ProcessState) int {
	if ps == nil {
		return -1
	}
	if ws, ok := ps.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return -int(ws.Signal())
	}
	return ps.ExitCode()
}

func launchError(spec protocol.RoleSpec, err error) error {
	return herrors.New(herrors.ErrCodeLaunchFailed, "Launch",
		fmt.Sprintf("cannot start %s process %q", spec.Role, spec.Path), err)
}

// Personal.AI order the ending
