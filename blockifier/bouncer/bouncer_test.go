package bouncer_test

import (
	"testing"

	"github.com/NethermindEth/starknet-batcher/blockifier/bouncer"
	"github.com/NethermindEth/starknet-batcher/blockifier/execution"
	"github.com/NethermindEth/starknet-batcher/core/felt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func summaryWith(nEvents int, payloads []int, classHashes, storageKeys uint64) execution.ExecutionSummary {
	summary := execution.NewExecutionSummary()
	summary.EventSummary.NEvents = uint64(nEvents)
	summary.L2ToL1PayloadLengths = append(summary.L2ToL1PayloadLengths, payloads...)
	for i := range classHashes {
		summary.ExecutedClassHashes[felt.FromUint64[felt.Felt](i)] = struct{}{}
	}
	for i := range storageKeys {
		summary.VisitedStorageEntries[execution.StorageEntry{Key: felt.FromUint64[felt.Felt](i)}] = struct{}{}
	}
	return summary
}

func TestWeightsOf(t *testing.T) {
	summary := summaryWith(3, []int{1, 4}, 2, 5)
	assert.Equal(t, bouncer.BouncerWeights{
		NTxs:                 1,
		NEvents:              3,
		MessageSegmentLength: 2*bouncer.MessageHeaderLength + 5,
		StateDiffSize:        5,
		NClassHashes:         2,
	}, bouncer.WeightsOf(&summary))
}

func TestTryUpdate(t *testing.T) {
	capacity := bouncer.BouncerWeights{
		NTxs:                 3,
		NEvents:              10,
		MessageSegmentLength: 20,
		StateDiffSize:        10,
		NClassHashes:         10,
	}

	tests := map[string]struct {
		admitted []execution.ExecutionSummary
		next     execution.ExecutionSummary
		wantErr  error
	}{
		"empty block": {
			next: summaryWith(1, nil, 1, 1),
		},
		"fits next to others": {
			admitted: []execution.ExecutionSummary{summaryWith(5, []int{2}, 1, 1)},
			next:     summaryWith(5, []int{2}, 1, 1),
		},
		"too many events in total": {
			admitted: []execution.ExecutionSummary{summaryWith(6, nil, 0, 0)},
			next:     summaryWith(5, nil, 0, 0),
			wantErr:  bouncer.ErrBlockFull,
		},
		"too many txs": {
			admitted: []execution.ExecutionSummary{
				summaryWith(0, nil, 0, 0),
				summaryWith(0, nil, 0, 0),
				summaryWith(0, nil, 0, 0),
			},
			next:    summaryWith(0, nil, 0, 0),
			wantErr: bouncer.ErrBlockFull,
		},
		"message segment of a single tx exceeds capacity": {
			next:    summaryWith(0, []int{16}, 0, 0),
			wantErr: bouncer.ErrTransactionTooLarge,
		},
		"state diff of a single tx exceeds capacity": {
			admitted: []execution.ExecutionSummary{summaryWith(1, nil, 0, 0)},
			next:     summaryWith(0, nil, 0, 11),
			wantErr:  bouncer.ErrTransactionTooLarge,
		},
	}

	for desc, test := range tests {
		t.Run(desc, func(t *testing.T) {
			b := bouncer.New(bouncer.BouncerConfig{BlockMaxCapacity: capacity})
			for _, admitted := range test.admitted {
				require.NoError(t, b.TryUpdate(&admitted))
			}
			usedBefore := b.Used()

			err := b.TryUpdate(&test.next)
			if test.wantErr != nil {
				require.ErrorIs(t, err, test.wantErr)
				assert.Equal(t, usedBefore, b.Used())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, usedBefore.Add(bouncer.WeightsOf(&test.next)), b.Used())
		})
	}
}

func TestBouncerSummary(t *testing.T) {
	b := bouncer.New(bouncer.DefaultConfig())

	first := summaryWith(1, []int{3}, 1, 2)
	second := summaryWith(2, []int{7}, 2, 1)
	require.NoError(t, b.TryUpdate(&first))
	require.NoError(t, b.TryUpdate(&second))

	summary := b.Summary()
	assert.Equal(t, []int{3, 7}, summary.L2ToL1PayloadLengths)
	assert.EqualValues(t, 3, summary.EventSummary.NEvents)
	assert.Len(t, summary.ExecutedClassHashes, 2)
	assert.Len(t, summary.VisitedStorageEntries, 2)

	// the returned summary is a copy
	summary.L2ToL1PayloadLengths[0] = 100
	assert.Equal(t, []int{3, 7}, b.Summary().L2ToL1PayloadLengths)
}
