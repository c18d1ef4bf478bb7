// Package metrics holds the prometheus collectors for a csgbox process.
// Every Metrics value owns a private registry so tests and multiple
// sessions never collide on the default one.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chazu/csgbox/pkg/logging"
)

const namespace = "csgbox"

// Metrics is the set of collectors the editor and CLI update.
type Metrics struct {
	reg *prometheus.Registry

	// Combines counts combine requests by kind (union, subtract) and
	// outcome (ok, already_combined, invalid).
	Combines *prometheus.CounterVec

	// CompileDuration tracks forest compilation latency.
	CompileDuration prometheus.Histogram

	// Ops is the size of the last compiled program.
	Ops prometheus.Gauge

	// Roots is the number of independent hierarchies.
	Roots prometheus.Gauge

	// PickSamples counts polled picking samples by outcome (hit, miss).
	PickSamples *prometheus.CounterVec

	Placements prometheus.Counter
	Deletions  prometheus.Counter

	// ScriptEvals counts console evaluations by result (ok, error, timeout).
	ScriptEvals *prometheus.CounterVec
}

// New registers a fresh set of collectors, plus the Go runtime collectors,
// on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		Combines: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "combines_total",
			Help:      "Combine requests by kind and outcome.",
		}, []string{"kind", "outcome"}),
		CompileDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "compile_duration_seconds",
			Help:      "Forest compilation duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 2, 14), // 10µs to ~80ms
		}),
		Ops: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "program_ops",
			Help:      "Records in the last compiled program.",
		}),
		Roots: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "forest_roots",
			Help:      "Independent hierarchies in the forest.",
		}),
		PickSamples: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pick_samples_total",
			Help:      "Polled picking samples by outcome.",
		}, []string{"outcome"}),
		Placements: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "placements_total",
			Help:      "Boxes placed.",
		}),
		Deletions: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deletions_total",
			Help:      "Hierarchies deleted.",
		}),
		ScriptEvals: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "script_evals_total",
			Help:      "Console evaluations by result.",
		}, []string{"result"}),
	}
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, log *slog.Logger) error {
	log = logging.OrNop(log)
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("metrics listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
