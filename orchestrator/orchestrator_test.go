package orchestrator_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/NethermindEth/starknet-batcher/batcher"
	"github.com/NethermindEth/starknet-batcher/blockifier/execution"
	"github.com/NethermindEth/starknet-batcher/blockifier/transaction"
	"github.com/NethermindEth/starknet-batcher/component"
	"github.com/NethermindEth/starknet-batcher/core/felt"
	"github.com/NethermindEth/starknet-batcher/db/pebble"
	"github.com/NethermindEth/starknet-batcher/mempool"
	"github.com/NethermindEth/starknet-batcher/mocks"
	"github.com/NethermindEth/starknet-batcher/orchestrator"
	"github.com/NethermindEth/starknet-batcher/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func testConfig() orchestrator.Config {
	return orchestrator.Config{
		BlockTime:        50 * time.Millisecond,
		SequencerAddress: felt.FromUint64[felt.Felt](0x5e9),
		StarknetVersion:  "0.13.2",
	}
}

func txn(hash uint64) batcher.ExecutedTransaction {
	return batcher.ExecutedTransaction{
		Hash:          felt.FromUint64[felt.Felt](hash),
		ExecutionInfo: &transaction.TransactionExecutionInfo{},
	}
}

func TestRunHeightWithMock(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	t.Cleanup(mockCtrl.Finish)

	client := mocks.NewMockBatcherClient(mockCtrl)
	o := orchestrator.New(client, 5, testConfig(), utils.NewNopZapLogger())
	ctx := context.Background()

	finished := &batcher.ProposalFinished{
		Status:             batcher.ProposalDeadlineReached,
		NTxs:               3,
		Summary:            execution.NewExecutionSummary(),
		ProposalCommitment: felt.FromUint64[felt.Felt](0xc0),
	}

	t.Run("decides the proposal", func(t *testing.T) {
		gomock.InOrder(
			client.EXPECT().BuildProposal(ctx, gomock.Any()).DoAndReturn(
				func(_ context.Context, input *batcher.BuildProposalInput) error {
					assert.Equal(t, batcher.ProposalID(1), input.ProposalID)
					assert.Equal(t, batcher.Height(5), input.Height)
					assert.Equal(t, testConfig().SequencerAddress, input.BlockInfo.SequencerAddress)
					assert.True(t, input.Deadline.After(time.Now()))
					return nil
				}),
			client.EXPECT().GetStreamContent(ctx, &batcher.GetStreamContentInput{ProposalID: 1}).
				Return(batcher.StreamContent{Txs: []batcher.ExecutedTransaction{txn(1), txn(2)}}, nil),
			client.EXPECT().GetStreamContent(ctx, &batcher.GetStreamContentInput{ProposalID: 1, Offset: 2}).
				Return(batcher.StreamContent{Txs: []batcher.ExecutedTransaction{txn(3)}}, nil),
			client.EXPECT().GetStreamContent(ctx, &batcher.GetStreamContentInput{ProposalID: 1, Offset: 3}).
				Return(batcher.StreamContent{Finished: finished}, nil),
			client.EXPECT().DecisionReached(ctx, &batcher.DecisionReachedInput{ProposalID: 1}).Return(nil),
		)

		block, err := o.RunHeight(ctx)
		require.NoError(t, err)
		assert.Equal(t, batcher.Height(5), block.Height)
		assert.Equal(t, []felt.Felt{
			felt.FromUint64[felt.Felt](1),
			felt.FromUint64[felt.Felt](2),
			felt.FromUint64[felt.Felt](3),
		}, block.TxHashes)
		assert.Equal(t, finished.ProposalCommitment, block.ProposalCommitment)
		assert.Equal(t, batcher.Height(6), o.Height())
	})

	t.Run("height is kept when the build is rejected", func(t *testing.T) {
		rejection := &batcher.ClientError{Batcher: &batcher.BatcherError{Kind: batcher.HeightInProgress}}
		client.EXPECT().BuildProposal(ctx, gomock.Any()).Return(rejection)

		_, err := o.RunHeight(ctx)
		require.ErrorIs(t, err, batcher.ErrHeightInProgress)
		assert.Equal(t, batcher.Height(6), o.Height())
	})

	t.Run("stream that does not match its finished marker", func(t *testing.T) {
		client.EXPECT().BuildProposal(ctx, gomock.Any()).Return(nil)
		client.EXPECT().GetStreamContent(ctx, gomock.Any()).Return(batcher.StreamContent{Finished: finished}, nil)

		_, err := o.RunHeight(ctx)
		require.ErrorContains(t, err, "do not match")
		assert.Equal(t, batcher.Height(6), o.Height())
	})

	t.Run("transport failure while deciding", func(t *testing.T) {
		transport := &batcher.ClientError{Client: &component.ClientError{
			Kind: component.CommunicationFailure,
			Err:  errors.New("connection reset"),
		}}
		client.EXPECT().BuildProposal(ctx, gomock.Any()).Return(nil)
		client.EXPECT().GetStreamContent(ctx, gomock.Any()).
			Return(batcher.StreamContent{Finished: &batcher.ProposalFinished{Status: batcher.ProposalBlockFull}}, nil)
		client.EXPECT().DecisionReached(ctx, gomock.Any()).Return(transport)

		_, err := o.RunHeight(ctx)
		require.ErrorIs(t, err, component.ErrCommunicationFailure)
		assert.True(t, batcher.IsTransport(err))
		assert.Equal(t, batcher.Height(6), o.Height())
	})
}

func TestRunAgainstLocalBatcher(t *testing.T) {
	log := utils.NewNopZapLogger()
	pool := mempool.New(100, log)
	b, err := batcher.New(batcher.DefaultConfig(), pool, pebble.NewMemTest(t), log)
	require.NoError(t, err)

	localClient, localServer := component.NewLocalComponent[batcher.BatcherRequest, batcher.BatcherResponse](
		batcher.ComponentName, b, 4, log)
	o := orchestrator.New(batcher.NewLocalBatcherClient(localClient), b.NextHeight(), testConfig(), log)

	for hash := range uint64(4) {
		next := txn(hash + 1)
		require.NoError(t, pool.Push(&next))
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{}, 3)
	for _, s := range []interface{ Run(context.Context) error }{b, localServer, o} {
		go func() {
			assert.NoError(t, s.Run(ctx))
			done <- struct{}{}
		}()
	}

	require.Eventually(t, func() bool {
		return b.NextHeight() >= 2
	}, 5*time.Second, 10*time.Millisecond)
	cancel()
	for range 3 {
		<-done
	}

	first, err := b.DecidedBlock(0)
	require.NoError(t, err)
	assert.Len(t, first.TxHashes, 4)
	assert.Equal(t, testConfig().StarknetVersion, first.BlockInfo.StarknetVersion)
	assert.Zero(t, pool.Len())
}
