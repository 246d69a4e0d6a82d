// Package settle pays out finished deals and orders, at most once each.
//
// The Execution marker row is the correctness mechanism: it is inserted in
// the same database transaction that performs the external payout call, so
// after a crash a durable marker means the payout was submitted. A marker
// whose candidate never received a transaction reference is an orphan,
// flagged for manual reconciliation and never retried automatically.
package settle

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"notex/pkg/chain"
	"notex/pkg/config"
	"notex/pkg/journal"
	"notex/pkg/kmutex"
	"notex/pkg/model"
	"notex/pkg/notify"
	"notex/pkg/xlog"

	"gorm.io/gorm"
)

var logger = xlog.GetLogger()

// TxRefTooSmall marks a payout the backend refused as dust. Funds too
// small to move are considered settled.
const TxRefTooSmall = "too small"

// failureEscalation is the consecutive-failure count per direction that
// raises an admin alert. Candidates stay retryable regardless.
const failureEscalation = 5

// Worker settlement engine worker class
type Worker struct {
	Notifier *notify.Notifier
	Journal  *journal.Journal
	Locks    *kmutex.Manager

	// payout backends keyed by candidate side: buy-side candidates are
	// owed notes, sell-side ones BTC
	Payout map[int8]chain.PayoutSender

	mu       sync.Mutex
	failures map[int8]int
	orphaned map[string]bool
}

func New(n *notify.Notifier, j *journal.Journal) *Worker {
	return &Worker{
		Notifier: n,
		Journal:  j,
		Locks:    kmutex.Shared,

		Payout:   map[int8]chain.PayoutSender{},
		failures: map[int8]int{},
		orphaned: map[string]bool{},
	}
}

// LockKey returns the settlement lock for one payout direction.
func LockKey(side int8) string {
	if side == model.SideBuy {
		return kmutex.KeySettleNotes
	}
	return kmutex.KeySettleBTC
}

// StartSettling drains both directions until the process exits.
func (w *Worker) StartSettling() {
	interval := time.Duration(config.Shared.Exchange.SettleIntervalSec) * time.Second
	round := 0
	for {
		round++
		logger.Debugf("StartSettling round:%d started", round)
		for _, side := range []int8{model.SideBuy, model.SideSell} {
			if err := w.Drain(side); err != nil {
				logger.Errorf("StartSettling round:%d side:%s failed with err:%s", round, model.SideName(side), err)
			}
		}
		logger.Debugf("StartSettling round:%d done", round)
		time.Sleep(interval)
	}
}

// Drain settles every unsettled deal and order on side, serialized per
// payout direction.
func (w *Worker) Drain(side int8) (err error) {
	err = w.Locks.With(LockKey(side), func() error {
		if e := w.drainDeals(side); e != nil {
			return e
		}
		return w.drainOrders(side)
	})
	return
}

func (w *Worker) drainDeals(side int8) (err error) {
	db := model.GetMySQL()

	var deals []model.InstantDeal
	err = db.Model(model.InstantDeal{}).
		Where("`side`=? and `execution_date` is null", side).
		Order("id asc").Find(&deals).Error
	if err != nil {
		return
	}

	for _, deal := range deals {
		if e := w.settleDeal(deal); e != nil {
			w.countFailure(side, e)
			return e
		}
		w.resetFailures(side)
	}
	return
}

func (w *Worker) drainOrders(side int8) (err error) {
	db := model.GetMySQL()

	var orders []model.Order
	err = db.Model(model.Order{}).
		Where("`side`=? and `is_active`=? and `execution_date` is null", side, false).
		Order("id asc").Find(&orders).Error
	if err != nil {
		return
	}

	for _, order := range orders {
		if e := w.settleOrder(order); e != nil {
			w.countFailure(side, e)
			return e
		}
		w.resetFailures(side)
	}
	return
}

func (w *Worker) settleDeal(deal model.InstantDeal) (err error) {
	defer func() {
		if err != nil {
			logger.Errorf("settleDeal deal:%d failed with err:%s", deal.ID, err)
		} else {
			logger.Infof("settleDeal deal:%d done", deal.ID)
		}
	}()

	binding, err := bindingForDeposit(deal.DepositID)
	if err != nil {
		return
	}

	if w.isOrphan(model.ExecKindDeal, deal.ID, fmt.Sprintf("deal %d", deal.ID)) {
		return nil
	}

	txref, err := w.payOnce(deal.Side, model.ExecKindDeal, deal.ID, binding.OutAddress, deal.CounterAmount)
	if err != nil {
		return
	}

	now := time.Now()
	db := model.GetMySQL()
	err = db.Model(model.InstantDeal{}).Where("`id`=?", deal.ID).
		Updates(map[string]interface{}{
			"execution_date": now,
			"tx_ref":         txref,
		}).Error
	if err != nil {
		return
	}

	w.record("deal", deal.ID, binding.UserID, deal.Side, deal.CounterAmount, binding.OutAddress, txref)
	return
}

func (w *Worker) settleOrder(order model.Order) (err error) {
	defer func() {
		if err != nil {
			logger.Errorf("settleOrder order:%d failed with err:%s", order.ID, err)
		} else {
			logger.Infof("settleOrder order:%d done", order.ID)
		}
	}()

	binding, err := bindingForDeposit(order.DepositID)
	if err != nil {
		return
	}

	if w.isOrphan(model.ExecKindOrder, order.ID, fmt.Sprintf("order %d", order.ID)) {
		return nil
	}

	txref, err := w.payOnce(order.Side, model.ExecKindOrder, order.ID, binding.OutAddress, order.SoldAmount)
	if err != nil {
		return
	}

	now := time.Now()
	db := model.GetMySQL()
	err = db.Model(model.Order{}).Where("`id`=?", order.ID).
		Updates(map[string]interface{}{
			"execution_date": now,
			"tx_ref":         txref,
		}).Error
	if err != nil {
		return
	}

	w.record("order", order.ID, order.UserID, order.Side, order.SoldAmount, binding.OutAddress, txref)
	return
}

// payOnce inserts the idempotency marker and performs the external payout
// inside one transaction. A failed payout rolls the marker back, leaving
// the candidate retryable; a dust refusal settles with the sentinel
// reference.
func (w *Worker) payOnce(side int8, kind int8, refID int64, address string, amount int64) (txref string, err error) {
	payout := w.Payout[side]
	if payout == nil {
		err = errors.New("no payout backend for side")
		return
	}

	db := model.GetMySQL()
	err = db.Transaction(func(tx *gorm.DB) error {
		marker := model.Execution{Kind: kind, RefID: refID}
		if e := tx.Create(&marker).Error; e != nil {
			return e
		}

		if amount == 0 {
			txref = TxRefTooSmall
			return nil
		}

		r, e := payout.Send(address, amount)
		if e != nil {
			if errors.Is(e, chain.ErrAmountTooSmall) {
				txref = TxRefTooSmall
				return nil
			}
			return e
		}
		txref = r
		return nil
	})
	return
}

// isOrphan reports whether a marker already exists for an unsettled
// candidate. Alerted once, then skipped forever.
func (w *Worker) isOrphan(kind int8, refID int64, what string) bool {
	db := model.GetMySQL()

	var marker model.Execution
	err := db.Model(model.Execution{}).
		Where("`kind`=? and `ref_id`=?", kind, refID).
		Limit(1).Find(&marker).Error
	if err != nil || marker.ID == 0 {
		return false
	}

	key := fmt.Sprintf("%d:%d", kind, refID)
	w.mu.Lock()
	alerted := w.orphaned[key]
	w.orphaned[key] = true
	w.mu.Unlock()

	if !alerted {
		logger.Errorf("settle %s has a marker but no txref, needs manual reconciliation", what)
		if w.Notifier != nil {
			w.Notifier.Admin(fmt.Sprintf("settlement %s was paid but its reference is unknown, reconcile manually", what))
		}
	}
	return true
}

func (w *Worker) countFailure(side int8, err error) {
	w.mu.Lock()
	w.failures[side]++
	n := w.failures[side]
	w.mu.Unlock()

	if n == failureEscalation && w.Notifier != nil {
		w.Notifier.Admin(fmt.Sprintf("settlement for %s failed %d times in a row, last err: %s",
			model.SideName(side), n, err))
	}
}

func (w *Worker) resetFailures(side int8) {
	w.mu.Lock()
	w.failures[side] = 0
	w.mu.Unlock()
}

func (w *Worker) record(kind string, refID, userID int64, side int8, amount int64, address, txref string) {
	if w.Journal != nil {
		e := w.Journal.Append(journal.Entry{
			Kind: journal.KindSettlement,
			Settlement: &journal.Settlement{
				Kind:    kind,
				RefID:   refID,
				UserID:  userID,
				Side:    model.SideName(side),
				Amount:  amount,
				Address: address,
				TxRef:   txref,
			},
		})
		if e != nil {
			logger.Errorf("settle journal append failed with err:%s", e)
		}
	}

	if w.Notifier != nil {
		if txref == TxRefTooSmall {
			w.Notifier.User(userID, fmt.Sprintf("your %s settlement was below the network minimum and could not be paid out", kind))
		} else {
			w.Notifier.User(userID, fmt.Sprintf("your %s payout was sent, reference %s", kind, txref))
		}
	}
}

// bindingForDeposit resolves the payout address through the candidate's
// originating deposit.
func bindingForDeposit(depositID int64) (binding model.Binding, err error) {
	db := model.GetMySQL()

	var dep model.Deposit
	err = db.Model(model.Deposit{}).Where("`id`=?", depositID).Limit(1).Find(&dep).Error
	if err != nil {
		return
	}
	if dep.ID == 0 {
		err = errors.New("deposit not found")
		return
	}

	err = db.Model(model.Binding{}).Where("`id`=?", dep.BindingID).Limit(1).Find(&binding).Error
	if err != nil {
		return
	}
	if binding.ID == 0 {
		err = errors.New("binding not found")
	}
	return
}
