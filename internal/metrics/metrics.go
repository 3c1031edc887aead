// Package metrics exposes per-session counters as Prometheus collectors,
// grounded on the teacher driver's own metrics package.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Session is a set of Prometheus collectors a Session updates as it talks
// to the server. Register it once per process (or leave unregistered for
// callers that don't run a Prometheus exporter). The driver updates
// RoundTrips, RoundTripDuration, Warnings and LobChunks; nothing in it
// updates BytesWritten or BytesRead, which stay at zero.
type Session struct {
	RoundTrips   prometheus.Counter
	BytesWritten prometheus.Counter
	BytesRead    prometheus.Counter
	Warnings     prometheus.Counter
	LobChunks    prometheus.Counter
	RoundTripDuration prometheus.Histogram
}

// NewSession builds a fresh, unregistered metrics set labeled with the
// given connection name (typically host:port or a DSN alias).
func NewSession(connName string) *Session {
	labels := prometheus.Labels{"connection": connName}
	return &Session{
		RoundTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "hdb",
			Subsystem:   "session",
			Name:        "round_trips_total",
			Help:        "Number of request/reply round-trips sent on this session.",
			ConstLabels: labels,
		}),
		BytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "hdb",
			Subsystem:   "session",
			Name:        "bytes_written_total",
			Help:        "Bytes written to the wire on this session.",
			ConstLabels: labels,
		}),
		BytesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "hdb",
			Subsystem:   "session",
			Name:        "bytes_read_total",
			Help:        "Bytes read from the wire on this session.",
			ConstLabels: labels,
		}),
		Warnings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "hdb",
			Subsystem:   "session",
			Name:        "warnings_total",
			Help:        "Server warnings accumulated on this session.",
			ConstLabels: labels,
		}),
		LobChunks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "hdb",
			Subsystem:   "lob",
			Name:        "chunks_total",
			Help:        "LOB chunks read or written on this session.",
			ConstLabels: labels,
		}),
		RoundTripDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "hdb",
			Subsystem:   "session",
			Name:        "round_trip_duration_seconds",
			Help:        "Latency of a single request/reply round-trip.",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}),
	}
}

// Collectors returns every collector in s, for bulk registration.
func (s *Session) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		s.RoundTrips, s.BytesWritten, s.BytesRead, s.Warnings, s.LobChunks, s.RoundTripDuration,
	}
}
