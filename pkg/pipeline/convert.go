package pipeline

import (
	"errors"
	"fmt"
	"time"

	"notex/pkg/book"
	"notex/pkg/config"
	"notex/pkg/journal"
	"notex/pkg/kmutex"
	"notex/pkg/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Convert turns a confirmed deposit into an order or instant deal, exactly
// once. Serialized by the "btc2notes" lock; a deposit with its
// confirmation_date already set is a no-op.
func (w *Worker) Convert(depositID int64) (err error) {
	defer func() {
		if err != nil {
			logger.Errorf("Convert deposit:%d failed with err:%s", depositID, err)
		} else {
			logger.Infof("Convert deposit:%d done", depositID)
		}
	}()

	err = w.Locks.With(kmutex.KeyConvert, func() error {
		return w.convert(depositID)
	})
	return
}

func (w *Worker) convert(depositID int64) (err error) {
	db := model.GetMySQL()

	var dep model.Deposit
	err = db.Model(model.Deposit{}).Where("`id`=?", depositID).Limit(1).Find(&dep).Error
	if err != nil {
		return
	}
	if dep.ID == 0 {
		return errors.New("deposit not found")
	}
	if dep.Converted() {
		logger.Infof("convert deposit:%d already converted", depositID)
		return
	}
	if dep.Confirmations < config.Shared.Exchange.MinConfirmations {
		return errors.New("deposit not confirmed yet")
	}

	var binding model.Binding
	err = db.Model(model.Binding{}).Where("`id`=?", dep.BindingID).Limit(1).Find(&binding).Error
	if err != nil {
		return
	}
	if binding.ID == 0 {
		return errors.New("binding not found")
	}
	side := binding.Side

	if dep.NetAmount < floor(side) {
		return w.convertDust(dep, binding)
	}

	price, hasPrice, err := w.standingPrice(binding.UserID, side)
	if err != nil {
		return
	}
	if hasPrice {
		return w.convertLimit(dep, binding, price)
	}

	return w.convertInstant(dep, binding)
}

// convertDust marks a below-floor deposit converted with nothing granted.
func (w *Worker) convertDust(dep model.Deposit, binding model.Binding) (err error) {
	db := model.GetMySQL()
	now := time.Now()

	err = db.Model(model.Deposit{}).
		Where("`id`=? and `confirmation_date` is null", dep.ID).
		Update("confirmation_date", now).Error
	if err != nil {
		return
	}

	logger.Infof("convert deposit:%d net:%d below floor, treated as donation", dep.ID, dep.NetAmount)

	w.journalEntry(journal.Entry{
		Kind: journal.KindConversion,
		Conversion: &journal.Conversion{
			DepositID: dep.ID,
			UserID:    binding.UserID,
			Side:      model.SideName(binding.Side),
			NetAmount: dep.NetAmount,
			Donation:  true,
		},
	})
	w.notifyUser(binding.UserID,
		fmt.Sprintf("your deposit %s is below the exchange minimum and was treated as a donation, thank you", dep.TxID))
	return
}

// convertLimit rests the deposit in the book at the user's standing price.
func (w *Worker) convertLimit(dep model.Deposit, binding model.Binding, price decimal.Decimal) (err error) {
	db := model.GetMySQL()
	now := time.Now()

	var order model.Order
	err = db.Transaction(func(tx *gorm.DB) error {
		e := tx.Model(model.Deposit{}).
			Where("`id`=? and `confirmation_date` is null", dep.ID).
			Update("confirmation_date", now).Error
		if e != nil {
			return e
		}
		order, e = book.Rest(tx, binding.UserID, dep.ID, binding.Side, dep.NetAmount, price)
		return e
	})
	if err != nil {
		return
	}

	w.Book.Apply(order)

	w.journalEntry(journal.Entry{
		Kind: journal.KindConversion,
		Conversion: &journal.Conversion{
			DepositID: dep.ID,
			UserID:    binding.UserID,
			Side:      model.SideName(binding.Side),
			NetAmount: dep.NetAmount,
			Rested:    dep.NetAmount,
			OrderID:   order.ID,
			Price:     price.String(),
		},
	})
	w.notifyUser(binding.UserID,
		fmt.Sprintf("your deposit %s is now a resting %s order at %s", dep.TxID, model.SideName(binding.Side), price))
	return
}

// convertInstant matches the deposit against the book at the oracle rate;
// any unmatched remainder rests at that rate so a liquidity gap degrades
// to a book order instead of failing the user.
func (w *Worker) convertInstant(dep model.Deposit, binding model.Binding) (err error) {
	db := model.GetMySQL()
	now := time.Now()
	side := binding.Side
	rate := w.Rates.Rate(side)

	var fills []book.Fill
	var matched int64
	var updated []model.Order
	var rested model.Order
	var deal model.InstantDeal

	err = db.Transaction(func(tx *gorm.DB) error {
		e := tx.Model(model.Deposit{}).
			Where("`id`=? and `confirmation_date` is null", dep.ID).
			Update("confirmation_date", now).Error
		if e != nil {
			return e
		}

		fills, matched, updated, e = book.Match(tx, side, dep.NetAmount, rate)
		if e != nil {
			return e
		}

		if matched > 0 {
			var counter int64
			for _, f := range fills {
				counter += f.Counter
			}
			deal = model.InstantDeal{
				DepositID:     dep.ID,
				Side:          side,
				BaseAmount:    matched,
				CounterAmount: counter,
				Price:         rate,
			}
			if e = tx.Create(&deal).Error; e != nil {
				return e
			}
		}

		if rest := dep.NetAmount - matched; rest > 0 {
			rested, e = book.Rest(tx, binding.UserID, dep.ID, side, rest, rate)
			if e != nil {
				return e
			}
		}

		return nil
	})
	if err != nil {
		if errors.Is(err, book.ErrZeroFill) {
			w.alertAdmin(fmt.Sprintf("deposit %d hit a zero-value fill, conversion aborted for manual review", dep.ID))
		}
		return
	}

	if rested.ID > 0 {
		updated = append(updated, rested)
	}
	w.Book.Apply(updated...)

	jfills := make([]journal.Fill, 0, len(fills))
	for _, f := range fills {
		jfills = append(jfills, journal.Fill{
			OrderID:       f.OrderID,
			UserID:        f.UserID,
			BaseAmount:    f.Base,
			CounterAmount: f.Counter,
			Price:         f.Price.String(),
		})
	}
	w.journalEntry(journal.Entry{
		Kind: journal.KindConversion,
		Conversion: &journal.Conversion{
			DepositID: dep.ID,
			UserID:    binding.UserID,
			Side:      model.SideName(side),
			NetAmount: dep.NetAmount,
			Matched:   matched,
			Rested:    dep.NetAmount - matched,
			DealID:    deal.ID,
			OrderID:   rested.ID,
			Price:     rate.String(),
			Fills:     jfills,
		},
	})

	if rest := dep.NetAmount - matched; rest > 0 {
		w.alertAdmin(fmt.Sprintf("instant match for deposit %d short of liquidity, %d rested at %s", dep.ID, rest, rate))
		w.notifyUser(binding.UserID,
			fmt.Sprintf("your deposit %s matched partially at %s, the rest is a standing order", dep.TxID, rate))
	} else {
		w.notifyUser(binding.UserID,
			fmt.Sprintf("your deposit %s was exchanged at %s, payout follows shortly", dep.TxID, rate))
	}
	return
}

// standingPrice returns the user's limit price for side, if set.
func (w *Worker) standingPrice(userID int64, side int8) (price decimal.Decimal, ok bool, err error) {
	db := model.GetMySQL()

	var cp model.CurrentPrice
	err = db.Model(model.CurrentPrice{}).Where("`user_id`=?", userID).Limit(1).Find(&cp).Error
	if err != nil || cp.ID == 0 {
		return
	}

	var nd decimal.NullDecimal
	if side == model.SideBuy {
		nd = cp.BuyPrice
	} else {
		nd = cp.SellPrice
	}
	if nd.Valid && !nd.Decimal.IsZero() {
		price = nd.Decimal
		ok = true
	}
	return
}
