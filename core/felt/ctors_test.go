package felt_test

import (
	"testing"

	"github.com/NethermindEth/starknet-batcher/core/felt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type f = [4]uint64

func TestNumberCtor(t *testing.T) {
	const posValue = 100
	expected := (*f)(new(felt.Felt).SetUint64(posValue))

	actual := felt.FromUint64[f](uint64(posValue))
	assert.Equal(t, *expected, actual)
	assert.False(t, felt.IsZero(actual))
	assert.True(t, felt.IsZero(felt.FromUint64[f](0)))
}

func TestBytesCtor(t *testing.T) {
	value := []byte("holahola")
	expected := (*f)(new(felt.Felt).SetBytes(value))

	actual := felt.FromBytes[f](value)
	assert.Equal(t, *expected, actual)
}

func TestStringCtor(t *testing.T) {
	tests := map[string]struct {
		value string
		error bool
	}{
		"decimal":   {value: "123"},
		"hex":       {value: "0x123abcdef"},
		"malformed": {value: "ghijklmnopq", error: true},
	}

	for desc, test := range tests {
		t.Run(desc, func(t *testing.T) {
			expectedFelt, expectedErr := new(felt.Felt).SetString(test.value)
			actual, actualErr := felt.FromString[f](test.value)
			if test.error {
				require.EqualError(t, actualErr, expectedErr.Error())
				assert.Panics(t, func() { felt.UnsafeFromString[f](test.value) })
				return
			}
			require.NoError(t, actualErr)
			assert.Equal(t, *(*f)(expectedFelt), actual)
			assert.True(t, felt.Equal(actual, felt.UnsafeFromString[f](test.value)))
		})
	}
}
