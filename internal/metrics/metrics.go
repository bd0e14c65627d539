package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	serviceStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cerberus",
			Subsystem: "service",
			Name:      "starts_total",
			Help:      "Number of successful service starts.",
		}, []string{"key"},
	)
	serviceStops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cerberus",
			Subsystem: "service",
			Name:      "stops_total",
			Help:      "Number of service stops, labelled by mode (single, bulk, force).",
		}, []string{"key", "mode"},
	)
	serviceHookFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cerberus",
			Subsystem: "service",
			Name:      "hook_failures_total",
			Help:      "Number of start/stop hooks that returned an error.",
		}, []string{"key", "hook"},
	)
	serviceRunning = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "cerberus",
			Subsystem: "service",
			Name:      "running",
			Help:      "1 while the service is in the running set, 0 otherwise.",
		}, []string{"key"},
	)
	registeredServices = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "cerberus",
			Subsystem: "registry",
			Name:      "services",
			Help:      "Number of registered services.",
		},
	)

	logRecords = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cerberus",
			Subsystem: "log",
			Name:      "records_total",
			Help:      "Number of log records produced, by service key and level.",
		}, []string{"key", "level"},
	)
	logBuffered = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "cerberus",
			Subsystem: "log",
			Name:      "buffered_records",
			Help:      "Records currently held in the log buffer.",
		},
	)
	archiveFlushes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cerberus",
			Subsystem: "archive",
			Name:      "flushes_total",
			Help:      "Number of buffer flushes handed to the archive, by trigger.",
		}, []string{"trigger"},
	)
	archiveFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cerberus",
			Subsystem: "archive",
			Name:      "failures_total",
			Help:      "Number of archive writes that failed or panicked.",
		},
	)
	archiveDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "cerberus",
			Subsystem: "archive",
			Name:      "flush_duration_seconds",
			Help:      "Time spent writing a flushed batch to the archive.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{
		serviceStarts, serviceStops, serviceHookFailures, serviceRunning, registeredServices,
		logRecords, logBuffered, archiveFlushes, archiveFailures, archiveDuration,
	}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			// If already registered, ignore (allows double Register with default registry)
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler that serves Prometheus metrics for the DefaultGatherer.
func Handler() http.Handler { return promhttp.Handler() }

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func IncStart(key string) {
	if regOK.Load() {
		serviceStarts.WithLabelValues(key).Inc()
		serviceRunning.WithLabelValues(key).Set(1)
	}
}

func IncStop(key, mode string) {
	if regOK.Load() {
		serviceStops.WithLabelValues(key, mode).Inc()
		serviceRunning.WithLabelValues(key).Set(0)
	}
}

func IncHookFailure(key, hook string) {
	if regOK.Load() {
		serviceHookFailures.WithLabelValues(key, hook).Inc()
	}
}

// SetRunning overrides the running gauge, used when a start hook fails and
// the running mark is rolled back.
func SetRunning(key string, running bool) {
	if regOK.Load() {
		var v float64
		if running {
			v = 1
		}
		serviceRunning.WithLabelValues(key).Set(v)
	}
}

func SetRegistered(n int) {
	if regOK.Load() {
		registeredServices.Set(float64(n))
	}
}

func IncLogRecord(key, level string) {
	if regOK.Load() {
		logRecords.WithLabelValues(key, level).Inc()
	}
}

func SetBuffered(n int) {
	if regOK.Load() {
		logBuffered.Set(float64(n))
	}
}

func IncFlush(trigger string) {
	if regOK.Load() {
		archiveFlushes.WithLabelValues(trigger).Inc()
	}
}

func IncArchiveFailure() {
	if regOK.Load() {
		archiveFailures.Inc()
	}
}

func ObserveArchiveDuration(seconds float64) {
	if regOK.Load() {
		archiveDuration.Observe(seconds)
	}
}
