package store

import (
	"time"

	"github.com/Kenmaaa05/EchoChamber/internal/metrics"
)

func observe(backend, op string, start time.Time) {
	metrics.BackendLatency.WithLabelValues(backend, op).Observe(time.Since(start).Seconds())
}
