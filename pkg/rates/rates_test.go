package rates

import (
	"testing"
	"time"

	"notex/pkg/book"
	"notex/pkg/config"
	"notex/pkg/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func testConfig() {
	config.Shared = &config.Config{}
	config.Shared.FillDefaults()
}

func TestBoundary(t *testing.T) {
	items := []book.Item{
		{Price: dec("0.05"), Amount: 5000000},
		{Price: dec("0.045"), Amount: 7000000},
		{Price: dec("0.04"), Amount: 10000000},
	}

	// 0.1 BTC of depth is reached inside the 0.045 level
	p, ok := boundary(items, 10000000)
	require.True(t, ok)
	require.Equal(t, "0.045", p.String())

	_, ok = boundary(items, 30000000)
	require.False(t, ok)

	_, ok = boundary(nil, 1)
	require.False(t, ok)
}

func TestRecomputeFromDepth(t *testing.T) {
	testConfig()

	b := book.New()
	o := New(b, nil)

	t0 := time.Now()
	b.Apply(
		model.Order{ID: 1, UserID: 1, Side: model.SideBuy, Price: dec("0.05"), Amount: 5000000, IsActive: true, LastUpdate: t0},
		model.Order{ID: 2, UserID: 2, Side: model.SideBuy, Price: dec("0.045"), Amount: 20000000, IsActive: true, LastUpdate: t0},
		model.Order{ID: 3, UserID: 3, Side: model.SideSell, Price: dec("0.06"), Amount: 500000000, IsActive: true, LastUpdate: t0},
	)

	// 0.2 BTC of buy depth is reached inside the 0.045 level, discounted
	// by the 2% margin
	require.Equal(t, "0.04411765", o.Rate(model.SideSell).String())

	// sell-side depth (0.5 note) is short of the 1 note threshold
	require.Equal(t, "0.04", o.Rate(model.SideBuy).String())

	b.Apply(
		model.Order{ID: 4, UserID: 4, Side: model.SideSell, Price: dec("0.065"), Amount: 400000000, IsActive: true, LastUpdate: t0},
	)
	require.Equal(t, "0.04", o.Rate(model.SideBuy).String())

	// the 0.07 level pushes cumulative depth past 1 note
	b.Apply(
		model.Order{ID: 5, UserID: 5, Side: model.SideSell, Price: dec("0.07"), Amount: 200000000, IsActive: true, LastUpdate: t0},
	)
	require.Equal(t, "0.0714", o.Rate(model.SideBuy).String())
}
