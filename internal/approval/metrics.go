package approval

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "property_workflow",
		Name:      "transitions_total",
		Help:      "Approval workflow transitions by operation and result.",
	}, []string{"operation", "result"})

	repairRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "property_workflow",
		Name:      "repair_rows_total",
		Help:      "Properties visited by repair, by outcome.",
	}, []string{"outcome"})
)
