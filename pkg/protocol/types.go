package protocol

// Config represents the root configuration of one harness invocation.
type Config struct {
	Version       string              `yaml:"version" mapstructure:"version"`
	Harness       HarnessConfig       `yaml:"harness" mapstructure:"harness"`
	Server        RoleConfig          `yaml:"server" mapstructure:"server"`
	Client        RoleConfig          `yaml:"client" mapstructure:"client"`
	Service       ServiceConfig       `yaml:"service" mapstructure:"service"`
	Startup       StartupConfig       `yaml:"startup" mapstructure:"startup"`
	Observability ObservabilityConfig `yaml:"observability" mapstructure:"observability"`
}

type HarnessConfig struct {
	Aggregation    string `yaml:"aggregation" mapstructure:"aggregation"`         // legacy-sum | strict
	TerminateGrace string `yaml:"terminate_grace" mapstructure:"terminate_grace"` // per escalation step
}

// RoleConfig describes how to invoke one role of the pair.
type RoleConfig struct {
	Label   string   `yaml:"label" mapstructure:"label"` // report name, defaults to the role
	Path    string   `yaml:"path" mapstructure:"path"`
	Args    []string `yaml:"args" mapstructure:"args"` // mode selector, e.g. [server] or [--server]
	Env     []string `yaml:"env" mapstructure:"env"`   // KEY=VALUE, wins over the shared overlay
	Dir     string   `yaml:"dir" mapstructure:"dir"`
	Timeout string   `yaml:"timeout" mapstructure:"timeout"`
}

// ServiceConfig is exported to both children as AXL_* variables.
type ServiceConfig struct {
	Debug int    `yaml:"debug" mapstructure:"debug"`
	Host  string `yaml:"host" mapstructure:"host"`
	Port  int    `yaml:"port" mapstructure:"port"` // 0 picks a free port
}

type StartupConfig struct {
	Gate       string `yaml:"gate" mapstructure:"gate"`   // none | delay | tcp | notify
	Delay      string `yaml:"delay" mapstructure:"delay"` // fixed grace period for the delay gate
	Timeout    string `yaml:"timeout" mapstructure:"timeout"`
	Interval   string `yaml:"interval" mapstructure:"interval"`
	SocketPath string `yaml:"socket_path" mapstructure:"socket_path"`
}

type ObservabilityConfig struct {
	LogLevel        string `yaml:"log_level" mapstructure:"log_level"`
	MetricsAddr     string `yaml:"metrics_addr" mapstructure:"metrics_addr"`
	MetricsTextfile string `yaml:"metrics_textfile" mapstructure:"metrics_textfile"`
}

// Personal.AI order the ending
