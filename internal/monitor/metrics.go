package monitor

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/turtacn/Tandem/pkg/logger"
	"github.com/turtacn/Tandem/pkg/protocol"
)

// Registry holds every harness metric. It is private so that the textfile
// export contains only harness series.
var Registry = prometheus.NewRegistry()

var (
	// RoleDuration tracks how long each role ran, from launch to collected status.
	RoleDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tandem_role_duration_seconds",
		Help:    "Time from launch until the final status of a role was collected",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"role"})
	// RoleExitCode is the last exit code observed per role.
	RoleExitCode = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tandem_role_exit_code",
		Help: "Exit code of the role; negative when killed by a signal",
	}, []string{"role"})
	// TimeoutTotal counts forced terminations, partitioned by role.
	TimeoutTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tandem_role_timeouts_total",
		Help: "Total number of waits that ended in forced termination",
	}, []string{"role"})
	// LaunchFailureTotal counts executables that could not be spawned.
	LaunchFailureTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tandem_launch_failures_total",
		Help: "Total number of role launches that failed",
	}, []string{"role"})
	// CombinedExitCode is the harness's own exit status of the last run.
	CombinedExitCode = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tandem_combined_exit_code",
		Help: "Exit code the harness reported for the last run",
	})
)

func init() {
	Registry.MustRegister(RoleDuration, RoleExitCode, TimeoutTotal, LaunchFailureTotal, CombinedExitCode)
}

// ObserveOutcome records one role's result.
func ObserveOutcome(o protocol.Outcome) {
	role := string(o.Role)
	RoleDuration.WithLabelValues(role).Observe(o.Duration.Seconds())
	RoleExitCode.WithLabelValues(role).Set(float64(o.ExitCode))
	if o.TimedOut {
		TimeoutTotal.WithLabelValues(role).Inc()
	}
}

// InitMetrics starts an HTTP server exposing the registry on addr (e.g. ":9090").
func InitMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(Registry, promhttp.HandlerOpts{}))

	go func() {
		logger.Log.Info("Metrics server starting", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Log.Error("Metrics server failed", "err", err)
		}
	}()
}

// WriteTextfile writes the registry in the text exposition format, for
// collection by a node exporter textfile collector after the run has ended.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, Registry)
}

// Personal.AI order the ending
