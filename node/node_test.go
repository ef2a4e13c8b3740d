package node_test

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/NethermindEth/starknet-batcher/batcher"
	"github.com/NethermindEth/starknet-batcher/blockifier/transaction"
	"github.com/NethermindEth/starknet-batcher/core/felt"
	"github.com/NethermindEth/starknet-batcher/mempool"
	"github.com/NethermindEth/starknet-batcher/node"
	"github.com/NethermindEth/starknet-batcher/orchestrator"
	"github.com/NethermindEth/starknet-batcher/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *node.Config {
	return &node.Config{
		LogLevel:     utils.ERROR,
		HTTPHost:     "127.0.0.1",
		MetricsHost:  "127.0.0.1",
		DatabasePath: t.TempDir(),
		DBCacheSize:  8,
		MempoolSize:  100,
		Batcher:      batcher.DefaultConfig(),
		OrchestratorConfig: orchestrator.Config{
			BlockTime:        50 * time.Millisecond,
			SequencerAddress: felt.FromUint64[felt.Felt](0x5e9),
			StarknetVersion:  "0.13.2",
		},
	}
}

// Create a new node with all services enabled.
func TestNewNode(t *testing.T) {
	originalRegisterer := prometheus.DefaultRegisterer
	t.Cleanup(func() {
		prometheus.DefaultRegisterer = originalRegisterer
	})
	prometheus.DefaultRegisterer = prometheus.NewRegistry()

	cfg := testConfig(t)
	cfg.HTTP = true
	cfg.Metrics = true
	cfg.Orchestrator = true

	n, err := node.New(cfg, "v0.1.0")
	require.NoError(t, err)
	assert.Equal(t, *cfg, n.Config())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n.Run(ctx)
}

func TestNewNodeInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Batcher.StreamChunkSize = 0

	_, err := node.New(cfg, "v0.1.0")
	require.Error(t, err)
}

func TestNewNodeReleasesHTTPPortOnMetricsFailure(t *testing.T) {
	originalRegisterer := prometheus.DefaultRegisterer
	t.Cleanup(func() {
		prometheus.DefaultRegisterer = originalRegisterer
	})
	prometheus.DefaultRegisterer = prometheus.NewRegistry()

	taken, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, taken.Close()) })

	free, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	httpPort := free.Addr().(*net.TCPAddr).Port
	require.NoError(t, free.Close())

	cfg := testConfig(t)
	cfg.HTTP = true
	cfg.HTTPPort = uint16(httpPort)
	cfg.Metrics = true
	cfg.MetricsPort = uint16(taken.Addr().(*net.TCPAddr).Port)

	_, err = node.New(cfg, "v0.1.0")
	require.ErrorContains(t, err, "listen on metrics port")

	again, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(httpPort)))
	require.NoError(t, err)
	require.NoError(t, again.Close())
}

func TestNodeDecidesBlocks(t *testing.T) {
	cfg := testConfig(t)
	cfg.Orchestrator = true

	n, err := node.New(cfg, "v0.1.0")
	require.NoError(t, err)

	for hash := range uint64(3) {
		require.NoError(t, n.Mempool().Push(&mempool.ExecutedTransaction{
			Hash:          felt.FromUint64[felt.Felt](hash + 1),
			ExecutionInfo: &transaction.TransactionExecutionInfo{},
		}))
	}

	sub := n.Batcher().SubscribeDecisions()
	defer sub.Unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		n.Run(ctx)
	}()

	var decided []felt.Felt
	timeout := time.After(5 * time.Second)
	for len(decided) < 3 {
		select {
		case block := <-sub.Recv():
			decided = append(decided, block.TxHashes...)
		case <-timeout:
			require.FailNow(t, "transactions were not decided", "decided %d", len(decided))
		}
	}
	cancel()
	<-done

	assert.Equal(t, []felt.Felt{
		felt.FromUint64[felt.Felt](1),
		felt.FromUint64[felt.Felt](2),
		felt.FromUint64[felt.Felt](3),
	}, decided)
}
