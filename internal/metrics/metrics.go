// Package metrics exposes Prometheus collectors for the spawner.
package metrics

import (
	"net/http"
	"runtime"
	"runtime/debug"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Stop tier labels.
const (
	TierInterrupt = "interrupt"
	TierTerminate = "terminate"
	TierKill      = "kill"
)

var (
	registry = prometheus.NewRegistry()

	spawnsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rootlessspawner",
		Name:      "spawns_total",
		Help:      "Total number of successful process launches per job.",
	}, []string{"job"})

	spawnFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rootlessspawner",
		Name:      "spawn_failures_total",
		Help:      "Total number of failed process launches per job.",
	}, []string{"job"})

	stopSignals = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rootlessspawner",
		Name:      "stop_signals_total",
		Help:      "Signals sent during stop escalation, by tier.",
	}, []string{"job", "tier"})

	stopExhausted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rootlessspawner",
		Name:      "stop_exhausted_total",
		Help:      "Stop attempts that ran out of tiers leaving a zombie.",
	}, []string{"job"})

	runningJobs = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "rootlessspawner",
		Name:      "running_jobs",
		Help:      "Number of jobs currently believed to be running.",
	})

	buildInfo = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "rootlessspawner",
		Name:      "build_info",
		Help:      "Build metadata for the running binary.",
	}, []string{"go_version", "vcs", "vcs_revision", "vcs_time", "vcs_modified"})

	buildInfoOnce sync.Once
)

func init() {
	registry.MustRegister(spawnsTotal, spawnFailures, stopSignals, stopExhausted, runningJobs, buildInfo)
}

// Registry returns the Prometheus registry containing all spawner metrics.
func Registry() *prometheus.Registry {
	return registry
}

// Handler serves the registry over HTTP.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// IncSpawn records a successful launch.
func IncSpawn(job string) {
	if job == "" {
		return
	}
	spawnsTotal.WithLabelValues(job).Inc()
	runningJobs.Inc()
}

// IncSpawnFailure records a launch that never produced a process.
func IncSpawnFailure(job string) {
	if job == "" {
		return
	}
	spawnFailures.WithLabelValues(job).Inc()
}

// IncStopSignal records a signal sent at the given escalation tier.
func IncStopSignal(job, tier string) {
	if job == "" {
		return
	}
	stopSignals.WithLabelValues(job, tier).Inc()
}

// IncStopExhausted records an escalation that left a zombie behind.
func IncStopExhausted(job string) {
	if job == "" {
		return
	}
	stopExhausted.WithLabelValues(job).Inc()
}

// JobResumed marks a process adopted from persisted state as running.
func JobResumed(job string) {
	if job == "" {
		return
	}
	runningJobs.Inc()
}

// JobExited marks a tracked process as gone.
func JobExited(job string) {
	if job == "" {
		return
	}
	runningJobs.Dec()
}

// EmitBuildInfo publishes build metadata about the running binary.
func EmitBuildInfo() {
	buildInfoOnce.Do(func() {
		labels := prometheus.Labels{
			"go_version":   runtime.Version(),
			"vcs":          "",
			"vcs_revision": "",
			"vcs_time":     "",
			"vcs_modified": "",
		}
		if info, ok := debug.ReadBuildInfo(); ok {
			if info.GoVersion != "" {
				labels["go_version"] = info.GoVersion
			}
			for _, setting := range info.Settings {
				switch setting.Key {
				case "vcs":
					labels["vcs"] = setting.Value
				case "vcs.revision":
					labels["vcs_revision"] = setting.Value
				case "vcs.time":
					labels["vcs_time"] = setting.Value
				case "vcs.modified":
					labels["vcs_modified"] = setting.Value
				}
			}
		}
		buildInfo.With(labels).Set(1)
	})
}
