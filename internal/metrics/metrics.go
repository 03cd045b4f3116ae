// Package metrics exposes prometheus counters for snapshot transfers.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Label values for the side of a transfer.
const (
	SideProducer = "producer"
	SideConsumer = "consumer"
)

// Transfer groups the counters updated by producers and consumers. A nil
// *Transfer is valid and records nothing.
type Transfer struct {
	chunks            *prometheus.CounterVec
	bytes             *prometheus.CounterVec
	nodes             *prometheus.CounterVec
	readinessTimeouts prometheus.Counter
}

// NewTransfer creates the counters and registers them on reg.
func NewTransfer(reg prometheus.Registerer) *Transfer {
	m := &Transfer{
		chunks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "uitransfer",
			Name:      "chunks_total",
			Help:      "Chunks produced or consumed.",
		}, []string{"side"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "uitransfer",
			Name:      "bytes_total",
			Help:      "Chunk bytes produced or consumed.",
		}, []string{"side"}),
		nodes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "uitransfer",
			Name:      "nodes_total",
			Help:      "Nodes encoded or decoded.",
		}, []string{"side"}),
		readinessTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "uitransfer",
			Name:      "readiness_timeouts_total",
			Help:      "Snapshots sent empty because async subtrees never committed.",
		}),
	}
	reg.MustRegister(m.chunks, m.bytes, m.nodes, m.readinessTimeouts)
	return m
}

// ObserveChunk records one chunk of n bytes.
func (m *Transfer) ObserveChunk(side string, n int) {
	if m == nil {
		return
	}
	m.chunks.WithLabelValues(side).Inc()
	m.bytes.WithLabelValues(side).Add(float64(n))
}

// AddNodes records n encoded or decoded nodes.
func (m *Transfer) AddNodes(side string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.nodes.WithLabelValues(side).Add(float64(n))
}

// ReadinessTimeout records a snapshot that was not ready in time.
func (m *Transfer) ReadinessTimeout() {
	if m == nil {
		return
	}
	m.readinessTimeouts.Inc()
}
