package batcher_test

import (
	"errors"
	"math"
	"testing"

	"github.com/NethermindEth/starknet-batcher/batcher"
	"github.com/NethermindEth/starknet-batcher/blockifier/execution"
	"github.com/NethermindEth/starknet-batcher/core/felt"
	"github.com/NethermindEth/starknet-batcher/db"
	"github.com/NethermindEth/starknet-batcher/db/pebble"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decidedBlock(height batcher.Height) *batcher.DecidedBlock {
	summary := executedTxn(uint64(height) + 1).ExecutionInfo.Summarize()
	return &batcher.DecidedBlock{
		Height:             height,
		ProposalID:         batcher.ProposalID(height) + 100,
		TxHashes:           []felt.Felt{felt.FromUint64[felt.Felt](uint64(height) + 1)},
		Summary:            summary,
		ProposalCommitment: felt.FromUint64[felt.Felt](0xc0),
		BlockInfo:          blockInfo(),
	}
}

func TestStorage(t *testing.T) {
	storage := batcher.NewStorage(pebble.NewMemTest(t))

	_, found, err := storage.LatestDecidedHeight()
	require.NoError(t, err)
	assert.False(t, found)

	_, err = storage.DecidedBlock(0)
	require.ErrorIs(t, err, db.ErrKeyNotFound)

	for _, height := range []batcher.Height{0, 2} {
		require.NoError(t, storage.StoreDecidedBlock(decidedBlock(height)))
	}

	latest, found, err := storage.LatestDecidedHeight()
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, batcher.Height(2), latest)

	t.Run("lower height does not move the latest height back", func(t *testing.T) {
		require.NoError(t, storage.StoreDecidedBlock(decidedBlock(1)))
		latest, _, err := storage.LatestDecidedHeight()
		require.NoError(t, err)
		assert.Equal(t, batcher.Height(2), latest)
	})

	t.Run("blocks round trip", func(t *testing.T) {
		for _, height := range []batcher.Height{0, 1, 2} {
			want := decidedBlock(height)
			got, err := storage.DecidedBlock(height)
			require.NoError(t, err)
			assert.Equal(t, want.TxHashes, got.TxHashes)
			assert.Equal(t, want.ProposalID, got.ProposalID)
			assert.Equal(t, want.BlockInfo, got.BlockInfo)
			assert.Equal(t, want.Summary.EventSummary, got.Summary.EventSummary)
			assert.Equal(t, want.Summary.ExecutedClassHashes, got.Summary.ExecutedClassHashes)
			assert.Equal(t, want.Summary.VisitedStorageEntries, got.Summary.VisitedStorageEntries)
			assert.Equal(t, execution.EventSummary{NEvents: 1, TotalEventKeys: 1, TotalEventDataSize: 2}, got.Summary.EventSummary)
		}
	})
}

func TestStorageDecidedBlocks(t *testing.T) {
	storage := batcher.NewStorage(pebble.NewMemTest(t))
	for _, height := range []batcher.Height{0, 1, 3, 4, 300} {
		require.NoError(t, storage.StoreDecidedBlock(decidedBlock(height)))
	}

	heights := func(from, to batcher.Height) []batcher.Height {
		var got []batcher.Height
		require.NoError(t, storage.DecidedBlocks(from, to, func(block *batcher.DecidedBlock) error {
			got = append(got, block.Height)
			return nil
		}))
		return got
	}

	tests := map[string]struct {
		from, to batcher.Height
		want     []batcher.Height
	}{
		"everything":          {from: 0, to: math.MaxUint64, want: []batcher.Height{0, 1, 3, 4, 300}},
		"gaps are skipped":    {from: 1, to: 4, want: []batcher.Height{1, 3, 4}},
		"single height":       {from: 3, to: 3, want: []batcher.Height{3}},
		"numeric not lexical": {from: 4, to: 299, want: []batcher.Height{4}},
		"nothing in range":    {from: 5, to: 200},
		"inverted bounds":     {from: 4, to: 1},
	}
	for desc, test := range tests {
		t.Run(desc, func(t *testing.T) {
			assert.Equal(t, test.want, heights(test.from, test.to))
		})
	}

	t.Run("callback error stops the scan", func(t *testing.T) {
		stop := errors.New("stop")
		var calls int
		err := storage.DecidedBlocks(0, math.MaxUint64, func(*batcher.DecidedBlock) error {
			calls++
			return stop
		})
		require.ErrorIs(t, err, stop)
		assert.Equal(t, 1, calls)
	})
}
