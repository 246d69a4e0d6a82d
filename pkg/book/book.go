// Package book keeps the resting limit orders. The ledger rows in mysql
// are authoritative and matching runs against them inside the caller's
// transaction; the btree index here mirrors the active orders for the rate
// oracle's depth scans and is refreshed after each commit.
package book

import (
	"sync"
	"time"

	"notex/pkg/model"
	"notex/pkg/xlog"

	"github.com/google/btree"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var logger = xlog.GetLogger()

// Worker order book worker class
type Worker struct {
	mu    sync.RWMutex
	asks  *btree.BTree
	bids  *btree.BTree
	items map[int64]Item

	onChange func()
}

func New() *Worker {
	return &Worker{
		asks:  btree.New(2),
		bids:  btree.New(2),
		items: map[int64]Item{},
	}
}

// OnChange registers the hook fired after the index changes, used by the
// rate oracle to recompute.
func (w *Worker) OnChange(fn func()) {
	w.onChange = fn
}

// Load builds the index from the active orders in mysql.
func (w *Worker) Load() (err error) {
	defer func() {
		if err != nil {
			logger.Errorf("book Load failed with err:%s", err)
		} else {
			logger.Infof("book Load done with asks:%d, bids:%d", w.Len(model.SideSell), w.Len(model.SideBuy))
		}
	}()

	db := model.GetMySQL()

	var orders []model.Order
	err = db.Model(model.Order{}).
		Where("`is_active`=?", true).
		Order("id asc").Find(&orders).Error
	if err != nil {
		return
	}

	w.mu.Lock()
	w.asks.Clear(false)
	w.bids.Clear(false)
	w.items = map[int64]Item{}
	for _, o := range orders {
		w.set(o)
	}
	w.mu.Unlock()

	w.changed()
	return
}

// set updates one order in the index, caller holds the lock.
func (w *Worker) set(o model.Order) {
	if old, ok := w.items[o.ID]; ok {
		if old.Side == model.SideBuy {
			w.bids.Delete(BidItem(old))
		} else {
			w.asks.Delete(AskItem(old))
		}
		delete(w.items, o.ID)
	}

	if !o.IsActive || o.Amount == 0 {
		return
	}

	it := Item{
		ID:         o.ID,
		UserID:     o.UserID,
		Side:       o.Side,
		Price:      o.Price,
		Amount:     o.Amount,
		LastUpdate: o.LastUpdate,
	}
	w.items[o.ID] = it

	if o.Side == model.SideBuy {
		w.bids.ReplaceOrInsert(BidItem(it))
	} else {
		w.asks.ReplaceOrInsert(AskItem(it))
	}
}

// Apply mirrors committed order rows into the index and fires the change
// hook once.
func (w *Worker) Apply(orders ...model.Order) {
	if len(orders) == 0 {
		return
	}

	w.mu.Lock()
	for _, o := range orders {
		w.set(o)
	}
	w.mu.Unlock()

	w.changed()
}

func (w *Worker) changed() {
	if w.onChange != nil {
		w.onChange()
	}
}

// Len reports the number of active orders on one side.
func (w *Worker) Len(side int8) int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if side == model.SideBuy {
		return w.bids.Len()
	}
	return w.asks.Len()
}

// DescendBids visits active buy orders best (highest) price first.
func (w *Worker) DescendBids(fn func(it Item) bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	w.bids.Descend(func(i btree.Item) bool {
		return fn(Item(i.(BidItem)))
	})
}

// AscendAsks visits active sell orders best (lowest) price first.
func (w *Worker) AscendAsks(fn func(it Item) bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	w.asks.Ascend(func(i btree.Item) bool {
		return fn(Item(i.(AskItem)))
	})
}

// Rest inserts a resting order for the user inside the caller's
// transaction. If the user already has an active order on that side it is
// merged instead; only a price change bumps the time-priority tie-break,
// a same-price top-up keeps the order's place in line.
// Returns the updated row (for Apply after commit).
func Rest(tx *gorm.DB, userID, depositID int64, side int8, amount int64, price decimal.Decimal) (order model.Order, err error) {
	defer func() {
		if err != nil {
			logger.Errorf("book Rest user:%d, side:%s, amount:%d failed with err:%s",
				userID, model.SideName(side), amount, err)
		} else {
			logger.Infof("book Rest user:%d, side:%s, amount:%d, price:%s, order:%d",
				userID, model.SideName(side), amount, price, order.ID)
		}
	}()

	now := time.Now()

	err = tx.Model(model.Order{}).
		Where("`user_id`=? and `side`=? and `is_active`=?", userID, side, true).
		Limit(1).Find(&order).Error
	if err != nil {
		return
	}

	if order.ID > 0 {
		order.Amount += amount
		updates := map[string]interface{}{
			"amount": order.Amount,
		}
		if !order.Price.Equal(price) {
			order.Price = price
			order.LastUpdate = now
			updates["price"] = order.Price
			updates["last_update"] = order.LastUpdate
		}
		err = tx.Model(model.Order{}).Where("`id`=?", order.ID).
			Updates(updates).Error
		return
	}

	order = model.Order{
		UserID:     userID,
		DepositID:  depositID,
		Side:       side,
		Price:      price,
		Amount:     amount,
		IsActive:   true,
		LastUpdate: now,
	}
	err = tx.Create(&order).Error
	return
}

// Reprice moves the user's active order to a new price, bumping it to the
// back of the price level. No-op when the user has no active order.
func Reprice(tx *gorm.DB, userID int64, side int8, price decimal.Decimal) (order model.Order, err error) {
	err = tx.Model(model.Order{}).
		Where("`user_id`=? and `side`=? and `is_active`=?", userID, side, true).
		Limit(1).Find(&order).Error
	if err != nil || order.ID == 0 {
		return
	}

	order.Price = price
	order.LastUpdate = time.Now()
	err = tx.Model(model.Order{}).Where("`id`=?", order.ID).
		Updates(map[string]interface{}{
			"price":       order.Price,
			"last_update": order.LastUpdate,
		}).Error
	return
}

// Cancel deactivates the user's active order. Deactivation hands the order
// to the settlement engine; no payout happens here.
func Cancel(tx *gorm.DB, userID int64, side int8) (order model.Order, err error) {
	defer func() {
		if err != nil {
			logger.Errorf("book Cancel user:%d, side:%s failed with err:%s", userID, model.SideName(side), err)
		} else if order.ID > 0 {
			logger.Infof("book Cancel user:%d, side:%s, order:%d", userID, model.SideName(side), order.ID)
		}
	}()

	err = tx.Model(model.Order{}).
		Where("`user_id`=? and `side`=? and `is_active`=?", userID, side, true).
		Limit(1).Find(&order).Error
	if err != nil || order.ID == 0 {
		return
	}

	order.IsActive = false
	err = tx.Model(model.Order{}).Where("`id`=?", order.ID).
		Update("is_active", false).Error
	return
}
