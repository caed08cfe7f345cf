// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package tree

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "categorytree",
		Subsystem: "tree",
		Name:      "operations_total",
		Help:      "Tree operations by name and outcome.",
	}, []string{"op", "outcome"})

	cycleWalkSteps = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "categorytree",
		Subsystem: "tree",
		Name:      "cycle_walk_steps",
		Help:      "Ancestors visited per cycle check.",
		Buckets:   prometheus.LinearBuckets(1, 2, 10),
	})
)

// outcome classifies err for the operations counter.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrCycleDetected):
		return "cycle"
	default:
		return "error"
	}
}

func observe(op string, err error) {
	operationsTotal.WithLabelValues(op, outcome(err)).Inc()
}
