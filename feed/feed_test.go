package feed_test

import (
	"testing"

	"github.com/NethermindEth/starknet-batcher/feed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeed(t *testing.T) {
	f := feed.New[int]()
	sub := f.Subscribe(1)

	assert.Equal(t, 1, f.Send(1))
	assert.Equal(t, 0, f.Send(2))
	require.Equal(t, 1, <-sub.Recv())
	select {
	case <-sub.Recv():
		require.Fail(t, "the second value should have been missed")
	default:
	}
	assert.Equal(t, uint64(1), sub.Missed())

	f.Send(3)
	require.Equal(t, 3, <-sub.Recv())

	sub.Unsubscribe()
	_, ok := <-sub.Recv()
	require.False(t, ok, "channel should be closed")
	sub.Unsubscribe() // Unsubscribing twice is ok.
	assert.Zero(t, f.Send(4))
}

func TestFeedBuffers(t *testing.T) {
	f := feed.New[int]()
	buffered := f.Subscribe(3)
	unbuffered := f.Subscribe(0)
	t.Cleanup(buffered.Unsubscribe)
	t.Cleanup(unbuffered.Unsubscribe)

	for v := range 3 {
		f.Send(v)
	}

	for want := range 3 {
		require.Equal(t, want, <-buffered.Recv())
	}
	assert.Zero(t, buffered.Missed())

	require.Equal(t, 0, <-unbuffered.Recv())
	assert.Equal(t, uint64(2), unbuffered.Missed())
}
