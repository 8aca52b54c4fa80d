// Copyright (C) 2024, the vmoperator authors.
// Licensed under the Universal Permissive License v 1.0 as shown at https://oss.oracle.com/licenses/upl.

// Package metricsexporter exposes the manager's Prometheus metrics and
// health endpoint behind a gorilla/mux router.
package metricsexporter

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "vmoperator"

var (
	// WatchRestarts counts Resource Observer restarts, labeled by the
	// watched resource kind (spec.md §4.1, §5).
	WatchRestarts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "watch_restarts_total",
		Help:      "Number of times a resource observer restarted its watch.",
	}, []string{"resource"})

	// ChannelQueueDepth reports the current backlog on a VM's per-VM
	// channel (spec.md §3, §5 "bounded inbound queue").
	ChannelQueueDepth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "channel_queue_depth",
		Help:      "Number of events queued on a VM's channel awaiting dispatch.",
	}, []string{"vm"})

	// ReconcileDuration tracks how long a full Dispatch call takes.
	ReconcileDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "reconcile_duration_seconds",
		Help:      "Duration of a full sub-reconciler dispatch.",
	})

	// ReconcileErrors counts failed dispatches, labeled by the
	// sub-reconciler that failed.
	ReconcileErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reconcile_errors_total",
		Help:      "Number of reconcile dispatches that returned an error.",
	}, []string{"stage"})

	// PasswordRotations counts completed GetDisplaySecret rotations.
	PasswordRotations = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "display_password_rotations_total",
		Help:      "Number of display-secret password rotations completed.",
	})

	// PendingPodChanges reports the current size of the Pod Monitor's
	// buffer of changes awaiting a not-yet-known VM (spec.md §3, §4.4).
	PendingPodChanges = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "pending_pod_changes",
		Help:      "Number of buffered pod changes awaiting their VM to become known.",
	})
)

func init() {
	prometheus.MustRegister(WatchRestarts, ChannelQueueDepth, ReconcileDuration, ReconcileErrors, PasswordRotations, PendingPodChanges)
}

// HealthFunc reports whether the manager is healthy enough to serve
// traffic, consulted by the /healthz handler.
type HealthFunc func() bool

// newRouter builds the /metrics + /healthz router, split out from
// StartServer so it can be exercised directly in tests without binding
// a real port.
func newRouter(healthy HealthFunc) *mux.Router {
	router := mux.NewRouter().StrictSlash(true)
	router.Handle("/metrics", promhttp.Handler())
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if healthy == nil || healthy() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	return router
}

// StartServer runs the metrics and health HTTP server as a background
// goroutine, restarting it if it ever returns.
func StartServer(port int, healthy HealthFunc, log *zap.SugaredLogger) {
	router := newRouter(healthy)

	go func() {
		for {
			server := &http.Server{
				Addr:              fmt.Sprintf(":%d", port),
				Handler:           router,
				ReadHeaderTimeout: 3 * time.Second,
			}
			if err := server.ListenAndServe(); err != nil {
				log.Errorw("metrics server exited, restarting", "error", err)
			}
			time.Sleep(3 * time.Second)
		}
	}()
}
