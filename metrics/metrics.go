// Package metrics exposes Prometheus gauges and counters describing node
// state, for operators running several nodes side by side.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ChainHeight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "peercoin",
		Name:      "chain_height",
		Help:      "Number of blocks in the local chain, including genesis.",
	})

	PeerCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "peercoin",
		Name:      "peer_count",
		Help:      "Number of peers currently tracked as alive.",
	})

	MempoolSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "peercoin",
		Name:      "mempool_size",
		Help:      "Number of pending transactions awaiting a block.",
	})

	UTXOSetSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "peercoin",
		Name:      "utxo_set_size",
		Help:      "Number of unspent outputs in the local UTXO index.",
	})

	BlocksMined = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "peercoin",
		Name:      "blocks_mined_total",
		Help:      "Total blocks mined locally and accepted into the chain.",
	})

	BlocksReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "peercoin",
		Name:      "blocks_received_total",
		Help:      "Blocks received from peers, by outcome.",
	}, []string{"result"})

	TransactionsRelayed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "peercoin",
		Name:      "transactions_relayed_total",
		Help:      "Total transactions gossiped to peers.",
	})
)

func init() {
	prometheus.MustRegister(
		ChainHeight,
		PeerCount,
		MempoolSize,
		UTXOSetSize,
		BlocksMined,
		BlocksReceived,
		TransactionsRelayed,
	)
}

// Handler returns the HTTP handler serving /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
