package utils_test

import (
	"errors"
	"testing"

	"github.com/NethermindEth/starknet-batcher/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunAndWrapOnError(t *testing.T) {
	existing := errors.New("existing")
	failing := errors.New("failing")

	assert.Equal(t, existing, utils.RunAndWrapOnError(nil, existing))
	assert.NoError(t, utils.RunAndWrapOnError(func() error { return nil }, nil))
	assert.Equal(t, failing, utils.RunAndWrapOnError(func() error { return failing }, nil))

	err := utils.RunAndWrapOnError(func() error { return failing }, existing)
	require.ErrorIs(t, err, existing)
	assert.Equal(t, "existing; failing", err.Error())
}
