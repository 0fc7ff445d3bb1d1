// Package metrics exposes Prometheus counters for store writes, flushes
// and the development authorization server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tgstate"

// Store counts store writes and skipped flushes. It satisfies
// store.Observer.
type Store struct {
	writes       *prometheus.CounterVec
	bytes        *prometheus.CounterVec
	flushSkipped *prometheus.CounterVec
}

// NewStore registers the store metrics on reg.
func NewStore(reg prometheus.Registerer) *Store {
	m := &Store{
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "writes_total",
			Help:      "Store files written, by store.",
		}, []string{"store"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "written_bytes_total",
			Help:      "Bytes written to store files, by store.",
		}, []string{"store"}),
		flushSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "flush_skipped_total",
			Help:      "Periodic flushes skipped because nothing changed, by store.",
		}, []string{"store"}),
	}
	reg.MustRegister(m.writes, m.bytes, m.flushSkipped)
	return m
}

func (m *Store) StoreWritten(store string, n int) {
	m.writes.WithLabelValues(store).Inc()
	m.bytes.WithLabelValues(store).Add(float64(n))
}

func (m *Store) FlushSkipped(store string) {
	m.flushSkipped.WithLabelValues(store).Inc()
}

// Server counts requests handled by the development authorization server.
type Server struct {
	requests *prometheus.CounterVec
}

func NewServer(reg prometheus.Registerer) *Server {
	m := &Server{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "authd",
			Name:      "requests_total",
			Help:      "Requests handled, by route and outcome.",
		}, []string{"route", "outcome"}),
	}
	reg.MustRegister(m.requests)
	return m
}

func (m *Server) Request(route, outcome string) {
	m.requests.WithLabelValues(route, outcome).Inc()
}

// Handler serves the registry in the Prometheus text format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
