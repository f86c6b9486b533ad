package protocol

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/turtacn/Tandem/pkg/consts"
	"github.com/turtacn/Tandem/pkg/errors"
)

// DefaultConfig returns the configuration used when no file is present:
// the same executable launched once with "server" and once with "client".
func DefaultConfig() *Config {
	return &Config{
		Version: "1",
		Harness: HarnessConfig{
			Aggregation:    string(consts.AggregateLegacySum),
			TerminateGrace: consts.DefaultTerminateGrace.String(),
		},
		Server: RoleConfig{
			Label:   string(consts.RoleServer),
			Path:    consts.DefaultExecutable,
			Args:    []string{string(consts.RoleServer)},
			Timeout: consts.DefaultServerTimeout.String(),
		},
		Client: RoleConfig{
			Label:   string(consts.RoleClient),
			Path:    consts.DefaultExecutable,
			Args:    []string{string(consts.RoleClient)},
			Timeout: consts.DefaultClientTimeout.String(),
		},
		Service: ServiceConfig{
			Host: consts.DefaultServiceHost,
			Port: consts.DefaultServicePort,
		},
		Startup: StartupConfig{
			Gate:     consts.GateDelay,
			Delay:    "0s",
			Timeout:  consts.DefaultGateTimeout.String(),
			Interval: consts.DefaultGateInterval.String(),
		},
		Observability: ObservabilityConfig{
			LogLevel: "info",
		},
	}
}

// Validate checks the fields that cannot be defaulted.
func (c *Config) Validate() error {
	for _, r := range []struct {
		role consts.Role
		cfg  RoleConfig
	}{{consts.RoleServer, c.Server}, {consts.RoleClient, c.Client}} {
		if r.cfg.Path == "" {
			return invalid(fmt.Sprintf("%s.path is required", r.role), nil)
		}
		if _, err := ParseDuration(r.cfg.Timeout, 0); err != nil {
			return invalid(fmt.Sprintf("%s.timeout", r.role), err)
		}
		if _, err := ParseEnv(r.cfg.Env); err != nil {
			return invalid(fmt.Sprintf("%s.env", r.role), err)
		}
	}

	switch consts.AggregationMode(c.Harness.Aggregation) {
	case "", consts.AggregateLegacySum, consts.AggregateStrict:
	default:
		return invalid(fmt.Sprintf("unknown aggregation mode %q", c.Harness.Aggregation), nil)
	}

	switch c.Startup.Gate {
	case "", consts.GateNone, consts.GateDelay, consts.GateTCP, consts.GateNotify:
	default:
		return invalid(fmt.Sprintf("unknown startup gate %q", c.Startup.Gate), nil)
	}

	for name, d := range map[string]string{
		"harness.terminate_grace": c.Harness.TerminateGrace,
		"startup.delay":           c.Startup.Delay,
		"startup.timeout":         c.Startup.Timeout,
		"startup.interval":        c.Startup.Interval,
	} {
		if _, err := ParseDuration(d, 0); err != nil {
			return invalid(name, err)
		}
	}

	if c.Service.Port < 0 || c.Service.Port > 65535 {
		return invalid(fmt.Sprintf("service.port %d out of range", c.Service.Port), nil)
	}
	return nil
}

// Aggregation returns the configured reduction mode.
func (c *Config) Aggregation() consts.AggregationMode {
	if c.Harness.Aggregation == "" {
		return consts.AggregateLegacySum
	}
	return consts.AggregationMode(c.Harness.Aggregation)
}

// ServiceEnv builds the overlay shared by both roles for the given port.
func (c *Config) ServiceEnv(port int) map[string]string {
	host := c.Service.Host
	if host == "" {
		host = consts.DefaultServiceHost
	}
	return map[string]string{
		consts.EnvDebug:       strconv.Itoa(c.Service.Debug),
		consts.EnvServiceHost: host,
		consts.EnvServicePort: strconv.Itoa(port),
	}
}

// Resolve turns the role's configuration into an immutable RoleSpec.
// shared is applied first; the role's own env entries win on collision.
func (c *Config) Resolve(role consts.Role, shared map[string]string) (RoleSpec, error) {
	var rc RoleConfig
	var defTimeout time.Duration
	switch role {
	case consts.RoleServer:
		rc, defTimeout = c.Server, consts.DefaultServerTimeout
	case consts.RoleClient:
		rc, defTimeout = c.Client, consts.DefaultClientTimeout
	default:
		return RoleSpec{}, invalid(fmt.Sprintf("unknown role %q", role), nil)
	}

	timeout, err := ParseDuration(rc.Timeout, defTimeout)
	if err != nil {
		return RoleSpec{}, invalid(fmt.Sprintf("%s.timeout", role), err)
	}
	grace, err := ParseDuration(c.Harness.TerminateGrace, consts.DefaultTerminateGrace)
	if err != nil {
		return RoleSpec{}, invalid("harness.terminate_grace", err)
	}
	own, err := ParseEnv(rc.Env)
	if err != nil {
		return RoleSpec{}, invalid(fmt.Sprintf("%s.env", role), err)
	}

	env := make(map[string]string, len(shared)+len(own))
	for k, v := range shared {
		env[k] = v
	}
	for k, v := range own {
		env[k] = v
	}

	label := rc.Label
	if label == "" {
		label = string(role)
	}

	return RoleSpec{
		Role:           role,
		Label:          label,
		Path:           rc.Path,
		Args:           append([]string(nil), rc.Args...),
		Env:            env,
		Dir:            rc.Dir,
		Timeout:        timeout,
		TerminateGrace: grace,
	}, nil
}

// ParseDuration parses s, returning def when s is empty.
func ParseDuration(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %s", s)
	}
	return d, nil
}

// ParseEnv converts KEY=VALUE entries into a map. Later entries win.
func ParseEnv(entries []string) (map[string]string, error) {
	env := make(map[string]string, len(entries))
	for _, kv := range entries {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("malformed env entry %q", kv)
		}
		env[k] = v
	}
	return env, nil
}

func invalid(msg string, err error) error {
	return errors.New(errors.ErrCodeConfigInvalid, "Config", msg, err)
}

// Personal.AI order the ending
