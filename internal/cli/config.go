package cli

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/spf13/viper"

	"github.com/turtacn/Tandem/pkg/consts"
	herrors "github.com/turtacn/Tandem/pkg/errors"
	"github.com/turtacn/Tandem/pkg/protocol"
)

// loadConfig reads path (YAML) over the built-in defaults and applies
// TANDEM_* environment overrides, e.g. TANDEM_CLIENT_TIMEOUT=60s.
// A missing file is only an error when required is set.
func loadConfig(path string, required bool) (*protocol.Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(consts.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, protocol.DefaultConfig())

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if required || !errors.Is(err, fs.ErrNotExist) {
				return nil, herrors.New(herrors.ErrCodeConfigInvalid, "Config", "cannot read "+path, err)
			}
		}
	}

	var cfg protocol.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, herrors.New(herrors.ErrCodeConfigInvalid, "Config", "cannot decode configuration", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults registers every key so that env overrides reach Unmarshal.
func setDefaults(v *viper.Viper, d *protocol.Config) {
	v.SetDefault("version", d.Version)
	v.SetDefault("harness.aggregation", d.Harness.Aggregation)
	v.SetDefault("harness.terminate_grace", d.Harness.TerminateGrace)

	for prefix, rc := range map[string]protocol.RoleConfig{"server": d.Server, "client": d.Client} {
		v.SetDefault(prefix+".label", rc.Label)
		v.SetDefault(prefix+".path", rc.Path)
		v.SetDefault(prefix+".args", rc.Args)
		v.SetDefault(prefix+".env", rc.Env)
		v.SetDefault(prefix+".dir", rc.Dir)
		v.SetDefault(prefix+".timeout", rc.Timeout)
	}

	v.SetDefault("service.debug", d.Service.Debug)
	v.SetDefault("service.host", d.Service.Host)
	v.SetDefault("service.port", d.Service.Port)

	v.SetDefault("startup.gate", d.Startup.Gate)
	v.SetDefault("startup.delay", d.Startup.Delay)
	v.SetDefault("startup.timeout", d.Startup.Timeout)
	v.SetDefault("startup.interval", d.Startup.Interval)
	v.SetDefault("startup.socket_path", d.Startup.SocketPath)

	v.SetDefault("observability.log_level", d.Observability.LogLevel)
	v.SetDefault("observability.metrics_addr", d.Observability.MetricsAddr)
	v.SetDefault("observability.metrics_textfile", d.Observability.MetricsTextfile)
}

// Personal.AI order the ending
