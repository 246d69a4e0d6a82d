package book

import (
	"os"
	"path"
	"testing"
	"time"

	"notex/pkg/config"
	"notex/pkg/model"
	"notex/pkg/xlog"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	config.Shared = &config.Config{IsDebug: true}
	config.Shared.FillDefaults()
	os.Exit(m.Run())
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestUnitConversions(t *testing.T) {
	// 1 BTC at 0.04 BTC per note is 25 notes
	require.Equal(t, int64(25000000000), SatoshisToNotes(100000000, dec("0.04")))
	require.Equal(t, int64(100000000), NotesToSatoshis(25000000000, dec("0.04")))

	require.Equal(t, int64(0), SatoshisToNotes(1, decimal.Zero))
}

func sell(id int64, price string, units int64, ts time.Time) model.Order {
	return model.Order{
		ID:         id,
		UserID:     id * 100,
		Side:       model.SideSell,
		Price:      dec(price),
		Amount:     units,
		IsActive:   true,
		LastUpdate: ts,
	}
}

func TestMatchWalkPriceMaker(t *testing.T) {
	t0 := time.Now()
	// candidates as the store returns them: price asc, oldest first
	candidates := []model.Order{
		sell(2, "0.09", 10000000000, t0.Add(2*time.Second)),
		sell(3, "0.09", 10000000000, t0.Add(3*time.Second)),
		sell(1, "0.10", 10000000000, t0.Add(1*time.Second)),
	}

	// order 2 is worth 90000000 sat at its own price; the rest of the
	// incoming amount partially consumes order 3
	fills, matched, err := matchWalk(model.SideBuy, 120000000, decimal.Zero, candidates)
	require.Nil(t, err)
	require.Equal(t, int64(120000000), matched)
	require.Len(t, fills, 2)

	require.Equal(t, int64(2), fills[0].OrderID)
	require.True(t, fills[0].Full)
	require.Equal(t, int64(90000000), fills[0].Base)
	require.Equal(t, int64(10000000000), fills[0].Counter)
	require.Equal(t, "0.09", fills[0].Price.String())

	require.Equal(t, int64(3), fills[1].OrderID)
	require.False(t, fills[1].Full)
	require.Equal(t, int64(30000000), fills[1].Base)
	require.Equal(t, int64(3333333333), fills[1].Counter)
}

func TestMatchWalkLimitPrice(t *testing.T) {
	t0 := time.Now()
	candidates := []model.Order{
		sell(1, "0.09", 10000000000, t0),
		sell(2, "0.09", 10000000000, t0.Add(time.Second)),
		sell(3, "0.10", 10000000000, t0.Add(2*time.Second)),
	}

	// the 0.10 level is worse than the limit, so only 180000000 sat match
	fills, matched, err := matchWalk(model.SideBuy, 500000000, dec("0.09"), candidates)
	require.Nil(t, err)
	require.Equal(t, int64(180000000), matched)
	require.Len(t, fills, 2)
	for _, f := range fills {
		require.True(t, f.Full)
	}
}

func TestMatchWalkZeroFillFault(t *testing.T) {
	// a one-unit resting order rounds to zero satoshis, the pass must abort
	candidates := []model.Order{
		sell(1, "0.04", 1, time.Now()),
	}

	_, _, err := matchWalk(model.SideBuy, 100000000, decimal.Zero, candidates)
	require.Equal(t, ErrZeroFill, err)
}

func TestMatchWalkEmptyBook(t *testing.T) {
	fills, matched, err := matchWalk(model.SideBuy, 100000000, decimal.Zero, nil)
	require.Nil(t, err)
	require.Equal(t, int64(0), matched)
	require.Len(t, fills, 0)
}

func TestIndexPriority(t *testing.T) {
	w := New()
	t0 := time.Now()

	w.Apply(
		sell(1, "0.10", 100, t0.Add(1*time.Second)),
		sell(2, "0.09", 100, t0.Add(2*time.Second)),
		sell(3, "0.09", 100, t0.Add(3*time.Second)),
	)

	var ids []int64
	w.AscendAsks(func(it Item) bool {
		ids = append(ids, it.ID)
		return true
	})
	require.Equal(t, []int64{2, 3, 1}, ids)

	buy := func(id int64, price string, sat int64, ts time.Time) model.Order {
		return model.Order{
			ID: id, UserID: id, Side: model.SideBuy,
			Price: dec(price), Amount: sat, IsActive: true, LastUpdate: ts,
		}
	}
	w.Apply(
		buy(11, "0.04", 100, t0.Add(1*time.Second)),
		buy(12, "0.05", 100, t0.Add(2*time.Second)),
		buy(13, "0.05", 100, t0.Add(3*time.Second)),
	)

	ids = ids[:0]
	w.DescendBids(func(it Item) bool {
		ids = append(ids, it.ID)
		return true
	})
	require.Equal(t, []int64{12, 13, 11}, ids)

	// a filled order leaves the index
	done := sell(2, "0.09", 0, t0.Add(2*time.Second))
	done.IsActive = false
	w.Apply(done)
	require.Equal(t, 2, w.Len(model.SideSell))
}

// the remaining tests need a local mysql, see model package for the setup
func openTestDB(t *testing.T) {
	if os.Getenv("NOTEX_TEST_MYSQL") == "" {
		t.Skip("needs a local mysql")
	}

	config.Shared.MySQL.Main = config.MySQLServer{
		Host:         "127.0.0.1",
		User:         "notex",
		Pass:         "localdbtestpwd",
		DB:           "notex",
		Port:         3306,
		MaxOpenConns: 8,
	}
	xlog.Init("test", path.Join(os.TempDir(), "logs/notex-test.log"), nil)

	model.DBInit()
	require.Nil(t, model.Migrate(model.GetMySQL()))
}

func TestRestMergeKeepsTimePriority(t *testing.T) {
	openTestDB(t)
	db := model.GetMySQL()
	now := time.Now()

	order := model.Order{
		UserID:     903,
		Side:       model.SideSell,
		Price:      dec("0.05"),
		Amount:     5000000000,
		IsActive:   true,
		LastUpdate: now.Add(-time.Hour),
	}
	require.Nil(t, db.Create(&order).Error)
	defer db.Delete(&order)

	// a same-price top-up merges without forfeiting the order's place in line
	err := db.Transaction(func(tx *gorm.DB) error {
		var e error
		order, e = Rest(tx, 903, 0, model.SideSell, 3000000000, dec("0.05"))
		return e
	})
	require.Nil(t, err)
	require.Equal(t, int64(8000000000), order.Amount)

	var row model.Order
	require.Nil(t, db.Model(model.Order{}).Where("`id`=?", order.ID).Limit(1).Find(&row).Error)
	require.Equal(t, int64(8000000000), row.Amount)
	require.True(t, row.LastUpdate.Before(now.Add(-30*time.Minute)))

	// a price change re-prices the order and sends it to the back of the line
	err = db.Transaction(func(tx *gorm.DB) error {
		var e error
		order, e = Rest(tx, 903, 0, model.SideSell, 1000000000, dec("0.06"))
		return e
	})
	require.Nil(t, err)

	require.Nil(t, db.Model(model.Order{}).Where("`id`=?", order.ID).Limit(1).Find(&row).Error)
	require.Equal(t, int64(9000000000), row.Amount)
	require.True(t, row.Price.Equal(dec("0.06")))
	require.True(t, row.LastUpdate.After(now.Add(-time.Minute)))
}
