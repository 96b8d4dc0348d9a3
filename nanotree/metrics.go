package nanotree

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	mutationTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nanotree_mutation_total",
		Help: "Total number of tree mutations by kind and result",
	}, []string{"mutation", "result"})

	mutationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nanotree_mutation_duration_seconds",
		Help:    "Duration of tree mutations, including commit",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14), // 0.1ms to ~800ms
	}, []string{"mutation"})

	opRowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nanotree_op_rows_total",
		Help: "Rows written by executed plan ops, by op kind",
	}, []string{"op"})

	planOps = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nanotree_plan_ops",
		Help:    "Number of ops in each executed mutation plan",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	}, []string{"mutation"})
)
