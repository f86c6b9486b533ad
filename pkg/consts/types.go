package consts

import "time"

// Role identifies one of the two cooperating subprocesses of a run.
type Role string

const (
	RoleServer Role = "server"
	RoleClient Role = "client"
)

// HandleState is the lifecycle state of a launched child process.
type HandleState string

const (
	StateRunning        HandleState = "RUNNING"
	StateExited         HandleState = "EXITED"
	StateTimedOut       HandleState = "TIMED_OUT"
	StateTerminating    HandleState = "TERMINATING"     // SIGTERM sent, collecting final status
	StateTimedOutKilled HandleState = "TIMED_OUT_KILLED" // terminal state of the timeout path
)

// Handle events
const (
	EventExit      = "exit"
	EventTimeout   = "timeout"
	EventTerminate = "terminate"
	EventReap      = "reap"
)

// AggregationMode selects how two exit codes are reduced into one.
type AggregationMode string

const (
	// AggregateLegacySum adds both codes when either is nonzero.
	// Codes of opposite sign can cancel out to zero.
	AggregateLegacySum AggregationMode = "legacy-sum"
	// AggregateStrict reports the first nonzero code, client first.
	AggregateStrict AggregationMode = "strict"
)

// Readiness gate kinds
const (
	GateNone   = "none"
	GateDelay  = "delay"
	GateTCP    = "tcp"
	GateNotify = "notify"
)

// Child environment
const (
	EnvDebug       = "AXL_DEBUG"
	EnvServiceHost = "AXL_SERVICE_HOST"
	EnvServicePort = "AXL_SERVICE_PORT"
	EnvRunID       = "TANDEM_RUN_ID"
	EnvReadySocket = "TANDEM_READY_SOCK"

	// EnvPrefix is the prefix for configuration overrides, e.g. TANDEM_CLIENT_TIMEOUT.
	EnvPrefix = "TANDEM"
)

// Defaults
const (
	DefaultExecutable     = "./test_client_server"
	DefaultServerTimeout  = 10 * time.Second
	DefaultClientTimeout  = 120 * time.Second
	DefaultTerminateGrace = 5 * time.Second
	DefaultGateTimeout    = 10 * time.Second
	DefaultGateInterval   = 200 * time.Millisecond
	DefaultServiceHost    = "localhost"
	DefaultServicePort    = 8888
	DefaultConfigFile     = "tandem.yaml"
)

// Harness exit codes outside the aggregation path
const (
	ExitOK            = 0
	ExitConfigInvalid = 2
	ExitLaunchFailed  = 127
)

// Personal.AI order the ending
