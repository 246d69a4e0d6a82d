package pipeline

import (
	"os"
	"path"
	"sync"
	"testing"

	"notex/pkg/book"
	"notex/pkg/config"
	"notex/pkg/model"
	"notex/pkg/rates"
	"notex/pkg/xlog"
	"notex/pkg/xnats"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	config.Shared = &config.Config{IsDebug: true}
	config.Shared.FillDefaults()
	os.Exit(m.Run())
}

func TestFloor(t *testing.T) {
	require.Equal(t, config.Shared.Exchange.MinSatoshis, floor(model.SideBuy))
	require.Equal(t, config.Shared.Exchange.MinNoteUnits, floor(model.SideSell))
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

func TestConvertDustIdempotent(t *testing.T) {
	openTestDB(t)
	db := model.GetMySQL()

	b := book.New()
	w := New(b, rates.New(b, nil), nil, nil)

	binding := model.Binding{
		UserID:         901,
		Side:           model.SideBuy,
		DepositAddress: "test-dust-deposit-addr",
		OutAddress:     "test-dust-out-addr",
	}
	require.Nil(t, db.Create(&binding).Error)
	defer db.Delete(&binding)

	err := w.Observe(model.SideBuy, xnats.DepositEvent{
		TxID:          "test-dust-tx",
		Address:       binding.DepositAddress,
		GrossAmount:   60000,
		FeeAmount:     10000,
		Confirmations: 3,
	})
	require.Nil(t, err)

	var dep model.Deposit
	require.Nil(t, db.Model(model.Deposit{}).
		Where("`binding_id`=? and `tx_id`=?", binding.ID, "test-dust-tx").
		Limit(1).Find(&dep).Error)
	defer db.Delete(&dep)

	// below the 100000 satoshi floor: converted, nothing granted
	require.True(t, dep.Converted())

	var n int64
	require.Nil(t, db.Model(model.InstantDeal{}).Where("`deposit_id`=?", dep.ID).Count(&n).Error)
	require.Equal(t, int64(0), n)
	require.Nil(t, db.Model(model.Order{}).Where("`deposit_id`=?", dep.ID).Count(&n).Error)
	require.Equal(t, int64(0), n)

	// a second conversion is a no-op
	first := *dep.ConfirmationDate
	require.Nil(t, w.Convert(dep.ID))
	require.Nil(t, db.Model(model.Deposit{}).Where("`id`=?", dep.ID).Limit(1).Find(&dep).Error)
	require.Equal(t, first.Unix(), dep.ConfirmationDate.Unix())
}

func TestConvertConcurrentOnce(t *testing.T) {
	openTestDB(t)
	db := model.GetMySQL()

	b := book.New()
	w := New(b, rates.New(b, nil), nil, nil)

	binding := model.Binding{
		UserID:         904,
		Side:           model.SideBuy,
		DepositAddress: "test-conc-deposit-addr",
		OutAddress:     "test-conc-out-addr",
	}
	require.Nil(t, db.Create(&binding).Error)
	defer db.Delete(&binding)

	// a standing price makes the conversion produce exactly one order row
	price := model.CurrentPrice{
		UserID:   904,
		BuyPrice: decimal.NewNullDecimal(decimal.RequireFromString("0.05")),
	}
	require.Nil(t, db.Create(&price).Error)
	defer db.Delete(&price)

	dep := model.Deposit{
		BindingID:     binding.ID,
		TxID:          "test-conc-tx",
		GrossAmount:   260000,
		FeeAmount:     10000,
		NetAmount:     250000,
		Confirmations: 2,
	}
	require.Nil(t, db.Create(&dep).Error)
	defer db.Delete(&dep)

	// the push feed and the confirmation poller can both see the threshold
	// crossed at the same time
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = w.Convert(dep.ID)
		}(i)
	}
	wg.Wait()
	require.Nil(t, errs[0])
	require.Nil(t, errs[1])

	require.Nil(t, db.Model(model.Deposit{}).Where("`id`=?", dep.ID).Limit(1).Find(&dep).Error)
	require.True(t, dep.Converted())

	var orders []model.Order
	require.Nil(t, db.Model(model.Order{}).Where("`deposit_id`=?", dep.ID).Find(&orders).Error)
	require.Len(t, orders, 1)
	require.Equal(t, int64(250000), orders[0].Amount)
	defer db.Delete(&orders[0])

	var n int64
	require.Nil(t, db.Model(model.InstantDeal{}).Where("`deposit_id`=?", dep.ID).Count(&n).Error)
	require.Equal(t, int64(0), n)
}
