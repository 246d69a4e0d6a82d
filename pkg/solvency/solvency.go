// Package solvency periodically checks that the chain balances cover what
// the ledger owes. The exchange must always be able to pay out every
// unsettled deal and order plus every deposit it still holds; a shortfall
// is an operator emergency, not something to fix automatically.
package solvency

import (
	"fmt"
	"time"

	"notex/pkg/chain"
	"notex/pkg/config"
	"notex/pkg/model"
	"notex/pkg/notify"
	"notex/pkg/xlog"

	"gorm.io/gorm"
)

var logger = xlog.GetLogger()

// Monitor solvency monitor worker class
type Monitor struct {
	Notifier *notify.Notifier

	BTC   chain.BalanceReader
	Notes chain.BalanceReader
}

func New(n *notify.Notifier, btc, notes chain.BalanceReader) *Monitor {
	return &Monitor{
		Notifier: n,
		BTC:      btc,
		Notes:    notes,
	}
}

// StartChecking runs the solvency check until the process exits.
func (m *Monitor) StartChecking() {
	interval := time.Duration(config.Shared.Exchange.SolvencyIntervalSec) * time.Second
	round := 0
	for {
		round++
		logger.Debugf("StartChecking round:%d started", round)
		err := m.CheckOnce()
		if err != nil {
			logger.Errorf("StartChecking round:%d failed with err:%s", round, err)
		} else {
			logger.Debugf("StartChecking round:%d done", round)
		}
		time.Sleep(interval)
	}
}

// Liabilities is what the ledger owes in one asset's smallest unit.
type Liabilities struct {
	UnsettledDeals  int64
	UnsettledOrders int64
	RestingHeld     int64
	RestingAccrued  int64
	Unconverted     int64
}

func (l Liabilities) Total() int64 {
	return l.UnsettledDeals + l.UnsettledOrders + l.RestingHeld + l.RestingAccrued + l.Unconverted
}

// liabilitiesIn sums everything owed in the asset that side's depositors
// pay in: their unconverted deposits and resting order remainders, plus
// the counter-asset owed to the opposite side's finished candidates.
func liabilitiesIn(db *gorm.DB, side int8) (l Liabilities, err error) {
	opp := model.OppositeSide(side)

	// deals on the opposite side are owed this asset as counter
	err = db.Model(model.InstantDeal{}).
		Where("`side`=? and `execution_date` is null", opp).
		Select("coalesce(sum(`counter_amount`),0)").Scan(&l.UnsettledDeals).Error
	if err != nil {
		return
	}

	// finished opposite-side orders are owed their accrued counter
	err = db.Model(model.Order{}).
		Where("`side`=? and `is_active`=? and `execution_date` is null", opp, false).
		Select("coalesce(sum(`sold_amount`),0)").Scan(&l.UnsettledOrders).Error
	if err != nil {
		return
	}

	// resting orders on this side still hold the deposited asset
	err = db.Model(model.Order{}).
		Where("`side`=? and `is_active`=?", side, true).
		Select("coalesce(sum(`amount`),0)").Scan(&l.RestingHeld).Error
	if err != nil {
		return
	}

	// and opposite-side resting orders have accrued some already
	err = db.Model(model.Order{}).
		Where("`side`=? and `is_active`=?", opp, true).
		Select("coalesce(sum(`sold_amount`),0)").Scan(&l.RestingAccrued).Error
	if err != nil {
		return
	}

	// unconverted deposits on this side are still the user's money
	err = db.Model(model.Deposit{}).
		Joins("join bindings on bindings.id = deposits.binding_id").
		Where("bindings.side=? and deposits.confirmation_date is null", side).
		Select("coalesce(sum(deposits.net_amount),0)").Scan(&l.Unconverted).Error
	return
}

// CheckOnce compares chain balances against ledger liabilities and alerts
// on any shortfall.
func (m *Monitor) CheckOnce() (err error) {
	db := model.GetMySQL()

	satLiab, err := liabilitiesIn(db, model.SideBuy)
	if err != nil {
		return
	}
	noteLiab, err := liabilitiesIn(db, model.SideSell)
	if err != nil {
		return
	}

	err = m.checkAsset("BTC", m.BTC, satLiab)
	if err != nil {
		return
	}
	err = m.checkAsset("notes", m.Notes, noteLiab)
	return
}

func (m *Monitor) checkAsset(name string, reader chain.BalanceReader, l Liabilities) (err error) {
	if reader == nil {
		return
	}

	balance, err := reader.Balance()
	if err != nil {
		return
	}

	total := l.Total()
	logger.Infof("solvency %s balance:%d, liabilities:%d (deals:%d, orders:%d, resting:%d+%d, unconverted:%d)",
		name, balance, total, l.UnsettledDeals, l.UnsettledOrders, l.RestingHeld, l.RestingAccrued, l.Unconverted)

	if balance < total {
		msg := fmt.Sprintf("solvency shortfall in %s: balance %d < liabilities %d", name, balance, total)
		logger.Error(msg)
		if m.Notifier != nil {
			m.Notifier.Admin(msg)
		}
	}
	return
}
