package services

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for TMDB request metrics
const (
	outcomeOK        = "ok"
	outcomeNotFound  = "not_found"
	outcomeTransport = "transport_error"
	outcomeDecode    = "decode_error"
)

// TMDBMetrics holds the collectors describing outbound TMDB traffic
type TMDBMetrics struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

// NewTMDBMetrics creates the TMDB collectors and registers them with reg.
// A nil registerer leaves them unregistered.
func NewTMDBMetrics(reg prometheus.Registerer) *TMDBMetrics {
	m := &TMDBMetrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marquee",
			Name:      "tmdb_requests_total",
			Help:      "TMDB API requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "marquee",
			Name:      "tmdb_request_duration_seconds",
			Help:      "TMDB API request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}

	if reg != nil {
		reg.MustRegister(m.Requests, m.Duration)
	}

	return m
}

func outcomeOf(err error) string {
	if err == nil {
		return outcomeOK
	}

	var decodeErr *DecodeError
	switch {
	case errors.Is(err, ErrNotFound):
		return outcomeNotFound
	case errors.As(err, &decodeErr):
		return outcomeDecode
	default:
		return outcomeTransport
	}
}
