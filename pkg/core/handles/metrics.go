// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package handles

import "github.com/prometheus/client_golang/prometheus"

// Metrics of one or more registries, labeled by the registry name.
//
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	open              *prometheus.GaugeVec
	registeredTotal   *prometheus.CounterVec
	unregisteredTotal *prometheus.CounterVec
	collisionsTotal   *prometheus.CounterVec
	unknownTotal      *prometheus.CounterVec
}

// NewMetrics creates the handle metrics under the given namespace, and registers them with reg,
// if it is not nil. It panics if the metrics are already registered in reg.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	labels := []string{"registry"}
	m := &Metrics{
		open: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "handles",
			Name:      "open_handles",
			Help:      "Number of native learner handles currently open.",
		}, labels),
		registeredTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "handles",
			Name:      "registered_total",
			Help:      "Total native learner handles registered.",
		}, labels),
		unregisteredTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "handles",
			Name:      "unregistered_total",
			Help:      "Total native learner handles unregistered, including those drained at shutdown.",
		}, labels),
		collisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "handles",
			Name:      "collisions_total",
			Help:      "Registrations refused because the handle was already open.",
		}, labels),
		unknownTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "handles",
			Name:      "unknown_unregister_total",
			Help:      "Attempts to unregister a handle that was not open.",
		}, labels),
	}
	if reg != nil {
		reg.MustRegister(m.open, m.registeredTotal, m.unregisteredTotal, m.collisionsTotal, m.unknownTotal)
	}
	return m
}

func (m *Metrics) addOpen(name string, delta float64) {
	if m == nil {
		return
	}
	m.open.WithLabelValues(name).Add(delta)
}

func (m *Metrics) registered(name string) {
	if m == nil {
		return
	}
	m.registeredTotal.WithLabelValues(name).Inc()
}

func (m *Metrics) unregistered(name string) {
	if m == nil {
		return
	}
	m.unregisteredTotal.WithLabelValues(name).Inc()
}

func (m *Metrics) collision(name string) {
	if m == nil {
		return
	}
	m.collisionsTotal.WithLabelValues(name).Inc()
}

func (m *Metrics) unknownUnregister(name string) {
	if m == nil {
		return
	}
	m.unknownTotal.WithLabelValues(name).Inc()
}
