package pipeline

import (
	"notex/pkg/book"
	"notex/pkg/kmutex"
	"notex/pkg/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SetCurrentPrice records the user's standing limit price for one side and
// re-prices their active order to it. A zero price clears the standing
// price, so future deposits go back to instant matching; the active order,
// if any, keeps resting at its old price until cancelled.
func (w *Worker) SetCurrentPrice(userID int64, side int8, price decimal.Decimal) (err error) {
	defer func() {
		if err != nil {
			logger.Errorf("SetCurrentPrice user:%d, side:%s, price:%s failed with err:%s",
				userID, model.SideName(side), price, err)
		} else {
			logger.Infof("SetCurrentPrice user:%d, side:%s, price:%s done",
				userID, model.SideName(side), price)
		}
	}()

	err = w.Locks.With(kmutex.KeyUser(userID), func() error {
		db := model.GetMySQL()

		nd := decimal.NullDecimal{Decimal: price, Valid: !price.IsZero()}
		col := "buy_price"
		cp := model.CurrentPrice{UserID: userID}
		if side == model.SideBuy {
			cp.BuyPrice = nd
		} else {
			col = "sell_price"
			cp.SellPrice = nd
		}

		e := db.Model(model.CurrentPrice{}).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "user_id"}},
				DoUpdates: clause.AssignmentColumns([]string{col}),
			}).
			Create(&cp).Error
		if e != nil {
			return e
		}

		if price.IsZero() {
			return nil
		}

		var order model.Order
		e = db.Transaction(func(tx *gorm.DB) error {
			var e2 error
			order, e2 = book.Reprice(tx, userID, side, price)
			return e2
		})
		if e != nil {
			return e
		}
		if order.ID > 0 {
			w.Book.Apply(order)
		}
		return nil
	})

	return
}

// CancelOrder deactivates the user's active order on side, handing it to
// the settlement engine.
func (w *Worker) CancelOrder(userID int64, side int8) (err error) {
	err = w.Locks.With(kmutex.KeyUser(userID), func() error {
		db := model.GetMySQL()

		var order model.Order
		e := db.Transaction(func(tx *gorm.DB) error {
			var e2 error
			order, e2 = book.Cancel(tx, userID, side)
			return e2
		})
		if e != nil {
			return e
		}
		if order.ID > 0 {
			w.Book.Apply(order)
		}
		return nil
	})
	return
}
