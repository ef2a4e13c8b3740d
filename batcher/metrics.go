package batcher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	proposalsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "batcher",
		Name:      "proposals_started_total",
		Help:      "Number of proposals the batcher started building",
	})
	proposalsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "batcher",
		Name:      "proposals_finished_total",
		Help:      "Number of proposals that stopped building, by status",
	}, []string{"status"})
	proposalTxs = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "batcher",
		Name:      "proposal_transactions",
		Help:      "Number of transactions in a finished proposal",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 14),
	})
	droppedTxs = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "batcher",
		Name:      "dropped_transactions_total",
		Help:      "Number of transactions dropped because they can never fit in a block",
	})
	revertedTxs = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "batcher",
		Name:      "reverted_transactions_total",
		Help:      "Number of reverted transactions included in proposals",
	})
	decidedHeight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "batcher",
		Name:      "decided_height",
		Help:      "Height of the latest decided block",
	})
	requestsByKind = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "batcher",
		Name:      "requests_total",
		Help:      "Number of handled batcher requests, by kind and outcome",
	}, []string{"kind", "outcome"})
)
