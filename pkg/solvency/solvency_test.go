package solvency

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeBalance int64

func (f fakeBalance) Balance() (int64, error) {
	return int64(f), nil
}

func TestLiabilitiesTotal(t *testing.T) {
	l := Liabilities{
		UnsettledDeals:  100,
		UnsettledOrders: 200,
		RestingHeld:     300,
		RestingAccrued:  50,
		Unconverted:     400,
	}
	require.Equal(t, int64(1050), l.Total())
}

func TestCheckAsset(t *testing.T) {
	m := New(nil, nil, nil)

	l := Liabilities{UnsettledDeals: 1000}
	require.Nil(t, m.checkAsset("BTC", fakeBalance(2000), l))
	require.Nil(t, m.checkAsset("BTC", fakeBalance(500), l))

	// a missing backend is simply skipped
	require.Nil(t, m.checkAsset("notes", nil, l))
}
