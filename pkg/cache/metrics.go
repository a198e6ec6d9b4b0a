package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	OperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cyclearb_cache_operations_total",
		Help: "Cache operations by cache name and outcome (hit, miss, set, rejected, delete)",
	}, []string{"cache", "op"})

	LoadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cyclearb_cache_loads_total",
		Help: "Loader calls made on a cache miss",
	}, []string{"result"})
)
