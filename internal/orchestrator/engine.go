package orchestrator

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/Tandem/internal/monitor"
	"github.com/turtacn/Tandem/internal/readiness"
	"github.com/turtacn/Tandem/internal/report"
	"github.com/turtacn/Tandem/internal/resource"
	"github.com/turtacn/Tandem/internal/supervisor"
	"github.com/turtacn/Tandem/pkg/consts"
	"github.com/turtacn/Tandem/pkg/errors"
	"github.com/turtacn/Tandem/pkg/logger"
	"github.com/turtacn/Tandem/pkg/protocol"
)

// Process is a launched role the engine can wait on.
type Process interface {
	Wait(timeout time.Duration) protocol.Outcome
	Terminate() protocol.Outcome
}

// Launcher starts the process for a resolved role.
type Launcher func(spec protocol.RoleSpec) (Process, error)

// GateFactory builds the readiness gate for the resolved service address.
type GateFactory func(cfg protocol.StartupConfig, host string, port int) (readiness.Gate, error)

func launchProcess(spec protocol.RoleSpec) (Process, error) {
	h, err := supervisor.Launch(spec)
	if err != nil {
		return nil, err
	}
	return h, nil
}

// Engine runs exactly one server/client pair and reports the result.
type Engine struct {
	cfg     *protocol.Config
	out     io.Writer
	runID   string
	log     logger.Logger
	launch  Launcher
	newGate GateFactory
}

// NewEngine creates an engine writing its report to out.
func NewEngine(cfg *protocol.Config, out io.Writer) *Engine {
	runID := uuid.NewString()
	return &Engine{
		cfg:     cfg,
		out:     out,
		runID:   runID,
		log:     logger.Log.With("run_id", runID),
		launch:  launchProcess,
		newGate: readiness.New,
	}
}

// RunID identifies this run in logs and in the children's environment.
func (e *Engine) RunID() string { return e.runID }

// Run executes the pair, prints the report and returns the harness exit code.
func (e *Engine) Run(ctx context.Context) int {
	res, err := e.Execute(ctx)
	code := res.CombinedExitCode
	if err != nil {
		e.log.Error("Run aborted", "err", err)
		code = errors.ExitCode(err)
	} else if err := report.Write(e.out, res); err != nil {
		e.log.Error("Writing report failed", "err", err)
	}

	monitor.CombinedExitCode.Set(float64(code))
	if path := e.cfg.Observability.MetricsTextfile; path != "" {
		if err := monitor.WriteTextfile(path); err != nil {
			e.log.Warn("Writing metrics textfile failed", "path", path, "err", err)
		}
	}

	e.log.Info("Run finished", "exit_code", code, "failed", res.Failed || err != nil)
	return code
}

// Execute launches the server, passes the readiness gate, launches the
// client, waits on the client and then the server, and aggregates.
// An error is returned only when the run could not be carried out.
func (e *Engine) Execute(ctx context.Context) (protocol.AggregateResult, error) {
	if err := e.cfg.Validate(); err != nil {
		return protocol.AggregateResult{}, err
	}

	host := e.cfg.Service.Host
	if host == "" {
		host = consts.DefaultServiceHost
	}
	port, err := resource.ResolvePort(host, e.cfg.Service.Port)
	if err != nil {
		return protocol.AggregateResult{}, errors.New(errors.ErrCodeConfigInvalid, "Run", "cannot allocate service port", err)
	}

	shared := e.cfg.ServiceEnv(port)
	shared[consts.EnvRunID] = e.runID

	gate, err := e.newGate(e.cfg.Startup, host, port)
	if err != nil {
		return protocol.AggregateResult{}, err
	}
	defer gate.Close()

	serverEnv := make(map[string]string, len(shared))
	for k, v := range shared {
		serverEnv[k] = v
	}
	for k, v := range gate.Env() {
		serverEnv[k] = v
	}

	serverSpec, err := e.cfg.Resolve(consts.RoleServer, serverEnv)
	if err != nil {
		return protocol.AggregateResult{}, err
	}
	clientSpec, err := e.cfg.Resolve(consts.RoleClient, shared)
	if err != nil {
		return protocol.AggregateResult{}, err
	}

	e.log.Info("Phase: Launch server", "port", port, "gate", gate.Name())
	server, err := e.start(serverSpec)
	if err != nil {
		return protocol.AggregateResult{}, err
	}

	if err := gate.Wait(ctx); err != nil {
		e.log.Warn("Readiness gate failed, launching client anyway", "gate", gate.Name(), "err", err)
	}

	e.log.Info("Phase: Launch client")
	client, err := e.start(clientSpec)
	if err != nil {
		e.log.Warn("Terminating server after client launch failure")
		server.Terminate()
		return protocol.AggregateResult{}, err
	}

	e.log.Info("Phase: Wait client", "timeout", clientSpec.Timeout)
	clientOut := client.Wait(clientSpec.Timeout)
	monitor.ObserveOutcome(clientOut)

	e.log.Info("Phase: Wait server", "timeout", serverSpec.Timeout)
	serverOut := server.Wait(serverSpec.Timeout)
	monitor.ObserveOutcome(serverOut)

	res := Aggregate(serverOut, clientOut, e.cfg.Aggregation())
	e.log.Info("Phase: Aggregate", "server", serverOut.ExitCode, "client", clientOut.ExitCode,
		"mode", res.Mode, "combined", res.CombinedExitCode, "failed", res.Failed)
	return res, nil
}

func (e *Engine) start(spec protocol.RoleSpec) (Process, error) {
	p, err := e.launch(spec)
	if err != nil {
		monitor.LaunchFailureTotal.WithLabelValues(string(spec.Role)).Inc()
		if !errors.IsLaunchError(err) {
			err = errors.New(errors.ErrCodeLaunchFailed, "Launch", string(spec.Role), err)
		}
		return nil, err
	}
	return p, nil
}

// Personal.AI order the ending
