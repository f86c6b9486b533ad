package orchestrator

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/Tandem/pkg/consts"
	"github.com/turtacn/Tandem/pkg/errors"
	"github.com/turtacn/Tandem/pkg/protocol"
)

func shConfig(server, client string) *protocol.Config {
	cfg := protocol.DefaultConfig()
	cfg.Server.Path, cfg.Server.Args = "/bin/sh", []string{"-c", server}
	cfg.Client.Path, cfg.Client.Args = "/bin/sh", []string{"-c", client}
	cfg.Server.Timeout = "2s"
	cfg.Client.Timeout = "5s"
	cfg.Harness.TerminateGrace = "200ms"
	cfg.Service.Host = "127.0.0.1"
	return cfg
}

// recorder stands in for real processes and records the call order.
type recorder struct {
	mu     sync.Mutex
	events []string
	codes  map[consts.Role]int
	fail   map[consts.Role]bool
	at     map[consts.Role]time.Time
}

func newRecorder() *recorder {
	return &recorder{codes: map[consts.Role]int{}, fail: map[consts.Role]bool{}, at: map[consts.Role]time.Time{}}
}

func (r *recorder) record(ev string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) launch(spec protocol.RoleSpec) (Process, error) {
	r.record("launch " + string(spec.Role))
	r.at[spec.Role] = time.Now()
	if r.fail[spec.Role] {
		return nil, errors.New(errors.ErrCodeLaunchFailed, "Launch", "not found", nil)
	}
	return &fakeProcess{rec: r, spec: spec, code: r.codes[spec.Role]}, nil
}

type fakeProcess struct {
	rec  *recorder
	spec protocol.RoleSpec
	code int
}

func (p *fakeProcess) Wait(timeout time.Duration) protocol.Outcome {
	p.rec.record(fmt.Sprintf("wait %s %s", p.spec.Role, timeout))
	return protocol.Outcome{Role: p.spec.Role, Label: p.spec.Label, ExitCode: p.code}
}

func (p *fakeProcess) Terminate() protocol.Outcome {
	p.rec.record("terminate " + string(p.spec.Role))
	return protocol.Outcome{Role: p.spec.Role, ExitCode: -15, TimedOut: true}
}

func fakeEngine(cfg *protocol.Config, rec *recorder, out *bytes.Buffer) *Engine {
	e := NewEngine(cfg, out)
	e.launch = rec.launch
	return e
}

func TestEngine_Ordering(t *testing.T) {
	rec := newRecorder()
	var out bytes.Buffer
	code := fakeEngine(shConfig("", ""), rec, &out).Run(context.Background())

	assert.Equal(t, 0, code)
	assert.Equal(t, []string{"launch server", "launch client", "wait client 5s", "wait server 2s"}, rec.events)
}

func TestEngine_ServerLaunchFailureSkipsClient(t *testing.T) {
	rec := newRecorder()
	rec.fail[consts.RoleServer] = true
	var out bytes.Buffer

	code := fakeEngine(shConfig("", ""), rec, &out).Run(context.Background())

	assert.Equal(t, consts.ExitLaunchFailed, code)
	assert.Equal(t, []string{"launch server"}, rec.events)
	assert.Empty(t, out.String(), "no report for an aborted run")
}

func TestEngine_ClientLaunchFailureTerminatesServer(t *testing.T) {
	rec := newRecorder()
	rec.fail[consts.RoleClient] = true
	var out bytes.Buffer

	code := fakeEngine(shConfig("", ""), rec, &out).Run(context.Background())

	assert.Equal(t, consts.ExitLaunchFailed, code)
	assert.Equal(t, []string{"launch server", "launch client", "terminate server"}, rec.events)
}

func TestEngine_GracePeriod(t *testing.T) {
	rec := newRecorder()
	cfg := shConfig("", "")
	cfg.Startup.Gate = consts.GateDelay
	cfg.Startup.Delay = "150ms"

	var out bytes.Buffer
	fakeEngine(cfg, rec, &out).Run(context.Background())

	gap := rec.at[consts.RoleClient].Sub(rec.at[consts.RoleServer])
	assert.GreaterOrEqual(t, gap, 150*time.Millisecond)
}

func TestEngine_LegacyCancellation(t *testing.T) {
	rec := newRecorder()
	rec.codes[consts.RoleServer] = 2
	rec.codes[consts.RoleClient] = -2
	var out bytes.Buffer

	e := fakeEngine(shConfig("", ""), rec, &out)
	res, err := e.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.CombinedExitCode)
	assert.True(t, res.Failed)
}

func TestEngine_InvalidConfig(t *testing.T) {
	cfg := shConfig("", "")
	cfg.Client.Timeout = "later"
	var out bytes.Buffer

	code := NewEngine(cfg, &out).Run(context.Background())
	assert.Equal(t, consts.ExitConfigInvalid, code)
}

func TestEngine_BothSucceed(t *testing.T) {
	// Client runs briefly well within its timeout; the server is already done.
	cfg := shConfig(`echo serving`, `sleep 0.2; echo talked`)
	var out bytes.Buffer

	code := NewEngine(cfg, &out).Run(context.Background())

	assert.Equal(t, 0, code)
	report := out.String()
	assert.Contains(t, report, "client Return Code: 0\nstdout:\ntalked\n")
	assert.Contains(t, report, "server Return Code: 0\nstdout:\nserving\n")
	assert.Less(t, strings.Index(report, "client Return Code"), strings.Index(report, "server Return Code"))
}

func TestEngine_ClientFails(t *testing.T) {
	cfg := shConfig(`exit 0`, `echo oops 1>&2; exit 3`)
	var out bytes.Buffer

	code := NewEngine(cfg, &out).Run(context.Background())

	assert.Equal(t, 3, code)
	assert.Contains(t, out.String(), "client Return Code: 3\nstdout:\n\nstderr:\noops\n")
}

func TestEngine_ServerHangsIsTerminated(t *testing.T) {
	cfg := shConfig(`sleep 30`, `exit 0`)
	cfg.Server.Timeout = "300ms"
	var out bytes.Buffer

	start := time.Now()
	code := NewEngine(cfg, &out).Run(context.Background())

	assert.Equal(t, -15, code)
	assert.Contains(t, out.String(), "server Return Code: -15")
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestEngine_ChildEnvironment(t *testing.T) {
	cfg := shConfig(`exit 0`, `printf '%s|%s|%s|%s' "$AXL_DEBUG" "$AXL_SERVICE_HOST" "$AXL_SERVICE_PORT" "$TANDEM_RUN_ID"`)
	cfg.Service.Debug = 2
	cfg.Service.Port = 0
	var out bytes.Buffer

	e := NewEngine(cfg, &out)
	res, err := e.Execute(context.Background())
	require.NoError(t, err)

	parts := strings.Split(string(res.Client.Stdout), "|")
	require.Len(t, parts, 4)
	assert.Equal(t, "2", parts[0])
	assert.Equal(t, "127.0.0.1", parts[1])
	port, err := strconv.Atoi(parts[2])
	require.NoError(t, err)
	assert.NotZero(t, port, "port 0 must be replaced by an allocated port")
	assert.Equal(t, e.RunID(), parts[3])
}

func TestEngine_MissingServerExecutable(t *testing.T) {
	cfg := shConfig("", `exit 0`)
	cfg.Server.Path = "/nonexistent/test_client_server"
	var out bytes.Buffer

	code := NewEngine(cfg, &out).Run(context.Background())
	assert.Equal(t, consts.ExitLaunchFailed, code)
	assert.Empty(t, out.String())
}

// Personal.AI order the ending
