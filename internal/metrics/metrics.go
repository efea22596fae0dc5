// Package metrics exposes prometheus counters for the check-in flows.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Searches counts person searches by query kind ("cedula" or "nombre").
	Searches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkin_searches_total",
		Help: "Person searches issued against the registry, by query kind.",
	}, []string{"kind"})

	// Marks counts mark-attendance outcomes ("marked", "already_marked",
	// "error").
	Marks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkin_marks_total",
		Help: "Mark-attendance calls by outcome.",
	}, []string{"outcome"})

	// Registrations counts sign-ups by result ("created", "duplicate",
	// "error").
	Registrations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkin_registrations_total",
		Help: "Registration attempts by result.",
	}, []string{"result"})
)
