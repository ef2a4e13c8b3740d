package node

import (
	"context"
	"testing"
	"time"

	"github.com/NethermindEth/starknet-batcher/batcher"
	"github.com/NethermindEth/starknet-batcher/blockifier/execution"
	"github.com/NethermindEth/starknet-batcher/core/felt"
	"github.com/NethermindEth/starknet-batcher/feed"
	"github.com/NethermindEth/starknet-batcher/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecisionObserver(t *testing.T) {
	originalRegisterer := prometheus.DefaultRegisterer
	t.Cleanup(func() {
		prometheus.DefaultRegisterer = originalRegisterer
	})
	reg := prometheus.NewRegistry()
	prometheus.DefaultRegisterer = reg

	decided := feed.New[*batcher.DecidedBlock]()
	observer := makeDecisionMetrics(decided.Subscribe(1), utils.NewNopZapLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, observer.Run(ctx))
	}()

	summary := execution.NewExecutionSummary()
	summary.EventSummary.NEvents = 4
	decided.Send(&batcher.DecidedBlock{
		Height:   5,
		TxHashes: []felt.Felt{felt.FromUint64[felt.Felt](1), felt.FromUint64[felt.Felt](2)},
		Summary:  summary,
	})

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(observer.height) == 5
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 5, testutil.CollectAndCount(reg, "batcher_decided_block_weight"))
	assert.Equal(t, 1, testutil.CollectAndCount(reg, "batcher_decided_block_missed"))

	cancel()
	<-done
	assert.Zero(t, decided.Send(&batcher.DecidedBlock{Height: 6}), "observer should have unsubscribed")
}
