package chain_test

import (
	"errors"
	"testing"

	"notex/pkg/chain"

	"github.com/stretchr/testify/require"
)

func TestIsTooSmall(t *testing.T) {
	require.True(t, chain.IsTooSmall(errors.New("-4: Transaction amount too small")))
	require.True(t, chain.IsTooSmall(errors.New("-26: dust")))
	require.False(t, chain.IsTooSmall(errors.New("-6: Insufficient funds")))
	require.False(t, chain.IsTooSmall(nil))
}
