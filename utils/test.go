package utils

import (
	"testing"

	"github.com/NethermindEth/starknet-batcher/core/felt"
	"github.com/stretchr/testify/require"
)

func HexTo[T ~[4]uint64](t testing.TB, hex string) *T {
	t.Helper()

	f, err := new(felt.Felt).SetString(hex)
	require.NoError(t, err)
	x := T(*f)
	return &x
}

func HexToFelt(t testing.TB, hex string) *felt.Felt {
	t.Helper()
	return HexTo[felt.Felt](t, hex)
}
