package node

import (
	"context"

	"github.com/NethermindEth/starknet-batcher/batcher"
	"github.com/NethermindEth/starknet-batcher/blockifier/bouncer"
	"github.com/NethermindEth/starknet-batcher/feed"
	"github.com/NethermindEth/starknet-batcher/service"
	"github.com/NethermindEth/starknet-batcher/utils"
	"github.com/prometheus/client_golang/prometheus"
)

var _ service.Service = (*decisionObserver)(nil)

// decisionObserver records the weights of every decided block.
type decisionObserver struct {
	sub     *feed.Subscription[*batcher.DecidedBlock]
	weights *prometheus.HistogramVec
	height  prometheus.Gauge
	log     utils.SimpleLogger
}

func makeDecisionMetrics(sub *feed.Subscription[*batcher.DecidedBlock], log utils.SimpleLogger) *decisionObserver {
	weights := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "batcher",
		Subsystem: "decided_block",
		Name:      "weight",
		Help:      "Weights of the decided blocks, per resource",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
	}, []string{"resource"})
	height := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "batcher",
		Subsystem: "decided_block",
		Name:      "observed_height",
		Help:      "Height of the last decided block seen by the node",
	})
	missed := prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: "batcher",
		Subsystem: "decided_block",
		Name:      "missed",
		Help:      "Decided blocks published while the observer was behind",
	}, func() float64 {
		return float64(sub.Missed())
	})
	prometheus.MustRegister(weights, height, missed)

	return &decisionObserver{
		sub:     sub,
		weights: weights,
		height:  height,
		log:     log,
	}
}

func (o *decisionObserver) Run(ctx context.Context) error {
	defer o.sub.Unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return nil
		case block, ok := <-o.sub.Recv():
			if !ok {
				return nil
			}
			o.observe(block)
		}
	}
}

func (o *decisionObserver) observe(block *batcher.DecidedBlock) {
	w := bouncer.WeightsOf(&block.Summary)
	w.NTxs = uint64(len(block.TxHashes))

	o.weights.WithLabelValues("txs").Observe(float64(w.NTxs))
	o.weights.WithLabelValues("events").Observe(float64(w.NEvents))
	o.weights.WithLabelValues("message_segment").Observe(float64(w.MessageSegmentLength))
	o.weights.WithLabelValues("state_diff").Observe(float64(w.StateDiffSize))
	o.weights.WithLabelValues("class_hashes").Observe(float64(w.NClassHashes))
	o.height.Set(float64(block.Height))
	o.log.Debugw("Observed decided block", "height", block.Height, "weights", w.String())
}
