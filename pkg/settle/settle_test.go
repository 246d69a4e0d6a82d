package settle

import (
	"errors"
	"fmt"
	"os"
	"path"
	"testing"

	"notex/pkg/chain"
	"notex/pkg/config"
	"notex/pkg/kmutex"
	"notex/pkg/model"
	"notex/pkg/xlog"

	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	config.Shared = &config.Config{IsDebug: true}
	config.Shared.FillDefaults()
	os.Exit(m.Run())
}

func TestLockKey(t *testing.T) {
	require.Equal(t, kmutex.KeySettleNotes, LockKey(model.SideBuy))
	require.Equal(t, kmutex.KeySettleBTC, LockKey(model.SideSell))
}

type fakeSender struct {
	err  error
	sent []int64
	seq  int
}

func (f *fakeSender) Send(address string, amount int64) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, amount)
	f.seq++
	return fmt.Sprintf("fake-ref-%d", f.seq), nil
}

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

func testCandidate(t *testing.T, counter int64) (deal model.InstantDeal, cleanup func()) {
	db := model.GetMySQL()

	binding := model.Binding{
		UserID:         902,
		Side:           model.SideBuy,
		DepositAddress: "test-settle-deposit-addr",
		OutAddress:     "test-settle-out-addr",
	}
	require.Nil(t, db.Create(&binding).Error)

	dep := model.Deposit{BindingID: binding.ID, TxID: "test-settle-tx", NetAmount: 250000, Confirmations: 3}
	require.Nil(t, db.Create(&dep).Error)

	deal = model.InstantDeal{DepositID: dep.ID, Side: model.SideBuy, BaseAmount: 250000, CounterAmount: counter}
	require.Nil(t, db.Create(&deal).Error)

	cleanup = func() {
		db.Where("`kind`=? and `ref_id`=?", model.ExecKindDeal, deal.ID).Delete(&model.Execution{})
		db.Delete(&deal)
		db.Delete(&dep)
		db.Delete(&binding)
	}
	return
}

func TestSettleDealOnce(t *testing.T) {
	openTestDB(t)
	db := model.GetMySQL()

	deal, cleanup := testCandidate(t, 55555555)
	defer cleanup()

	sender := &fakeSender{}
	w := New(nil, nil)
	w.Payout[model.SideBuy] = sender

	require.Nil(t, w.Drain(model.SideBuy))
	require.Equal(t, []int64{55555555}, sender.sent)

	require.Nil(t, db.Model(model.InstantDeal{}).Where("`id`=?", deal.ID).Limit(1).Find(&deal).Error)
	require.NotNil(t, deal.ExecutionDate)
	require.Equal(t, "fake-ref-1", deal.TxRef)

	// settled candidates are never drained again
	require.Nil(t, w.Drain(model.SideBuy))
	require.Equal(t, []int64{55555555}, sender.sent)
}

func TestSettleFailureStaysRetryable(t *testing.T) {
	openTestDB(t)
	db := model.GetMySQL()

	deal, cleanup := testCandidate(t, 55555555)
	defer cleanup()

	sender := &fakeSender{err: errors.New("wallet offline")}
	w := New(nil, nil)
	w.Payout[model.SideBuy] = sender

	require.NotNil(t, w.Drain(model.SideBuy))

	// the marker was rolled back with the payout
	var n int64
	require.Nil(t, db.Model(model.Execution{}).
		Where("`kind`=? and `ref_id`=?", model.ExecKindDeal, deal.ID).Count(&n).Error)
	require.Equal(t, int64(0), n)

	// the next pass succeeds
	sender.err = nil
	require.Nil(t, w.Drain(model.SideBuy))
	require.Nil(t, db.Model(model.InstantDeal{}).Where("`id`=?", deal.ID).Limit(1).Find(&deal).Error)
	require.NotNil(t, deal.ExecutionDate)
}

func TestSettleDustSentinel(t *testing.T) {
	openTestDB(t)
	db := model.GetMySQL()

	deal, cleanup := testCandidate(t, 400)
	defer cleanup()

	sender := &fakeSender{err: chain.ErrAmountTooSmall}
	w := New(nil, nil)
	w.Payout[model.SideBuy] = sender

	require.Nil(t, w.Drain(model.SideBuy))

	require.Nil(t, db.Model(model.InstantDeal{}).Where("`id`=?", deal.ID).Limit(1).Find(&deal).Error)
	require.NotNil(t, deal.ExecutionDate)
	require.Equal(t, TxRefTooSmall, deal.TxRef)
}

func TestOrphanNeverRetried(t *testing.T) {
	openTestDB(t)
	db := model.GetMySQL()

	deal, cleanup := testCandidate(t, 55555555)
	defer cleanup()

	// a marker with no txref on the candidate simulates a crash after the
	// payout transaction committed
	require.Nil(t, db.Create(&model.Execution{Kind: model.ExecKindDeal, RefID: deal.ID}).Error)

	sender := &fakeSender{}
	w := New(nil, nil)
	w.Payout[model.SideBuy] = sender

	require.Nil(t, w.Drain(model.SideBuy))
	require.Empty(t, sender.sent)

	require.Nil(t, db.Model(model.InstantDeal{}).Where("`id`=?", deal.ID).Limit(1).Find(&deal).Error)
	require.Nil(t, deal.ExecutionDate)
}
