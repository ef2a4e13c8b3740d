package validator_test

import (
	"testing"

	"github.com/NethermindEth/starknet-batcher/core/felt"
	"github.com/NethermindEth/starknet-batcher/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type versioned struct {
	Version string    `validate:"required,starknet_version"`
	Address felt.Felt `validate:"required"`
}

func TestStarknetVersionValidation(t *testing.T) {
	address := felt.FromUint64[felt.Felt](1)

	tests := map[string]struct {
		version string
		valid   bool
	}{
		"three components": {version: "0.13.2", valid: true},
		"four components":  {version: "0.13.1.1", valid: true},
		"empty":            {version: ""},
		"garbage":          {version: "not a version"},
		"leading v":        {version: "v0.13.2"},
	}

	for desc, test := range tests {
		t.Run(desc, func(t *testing.T) {
			err := validator.Validator().Struct(versioned{Version: test.version, Address: address})
			if test.valid {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}

func TestFeltRequired(t *testing.T) {
	err := validator.Validator().Struct(versioned{Version: "0.13.2"})
	require.Error(t, err)
}

func TestParseStarknetVersion(t *testing.T) {
	version, err := validator.ParseStarknetVersion("0.13.1.1")
	require.NoError(t, err)
	assert.Equal(t, "0.13.1", version.String())
}
