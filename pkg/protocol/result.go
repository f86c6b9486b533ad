package protocol

import (
	"time"

	"github.com/turtacn/Tandem/pkg/consts"
)

// RoleSpec is the fully resolved launch description of one role.
type RoleSpec struct {
	Role           consts.Role
	Label          string
	Path           string
	Args           []string
	Env            map[string]string // merged over the inherited environment
	Dir            string
	Timeout        time.Duration
	TerminateGrace time.Duration
}

// Outcome is the recorded result of waiting on one role's process.
type Outcome struct {
	Role     consts.Role
	Label    string
	PID      int
	ExitCode int // negative signal number when killed by a signal
	Stdout   []byte
	Stderr   []byte
	TimedOut bool
	Duration time.Duration
}

// AggregateResult combines both outcomes of a run.
type AggregateResult struct {
	Server           Outcome
	Client           Outcome
	Mode             consts.AggregationMode
	Failed           bool // true iff either exit code is nonzero, in every mode
	CombinedExitCode int
}

// Personal.AI order the ending
