package announce

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// PublishTotal counts publish attempts by publisher and status.
	PublishTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "molt_announce_publish_total",
		Help: "Total announcement publish attempts",
	}, []string{"publisher", "status"})
)
