package book

import (
	"errors"

	"notex/pkg/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ErrZeroFill marks a fill whose counter-asset amount rounds to zero. A
// zero-value trade must never reach settlement, so the whole matching pass
// for the incoming candidate is aborted.
var ErrZeroFill = errors.New("fill rounds to zero in counter asset")

// matchWalk walks the resting candidates in priority order and computes the
// fills for an incoming deposit of `want` (in side's deposit asset). Pure:
// candidates are not modified. Matching stops at the first candidate priced
// worse than limit (a zero limit means unbounded).
func matchWalk(side int8, want int64, limit decimal.Decimal, candidates []model.Order) (fills []Fill, matched int64, err error) {
	remaining := want

	for i := range candidates {
		if remaining == 0 {
			break
		}
		cand := &candidates[i]

		if !limit.IsZero() {
			if side == model.SideBuy && cand.Price.GreaterThan(limit) {
				break
			}
			if side == model.SideSell && cand.Price.LessThan(limit) {
				break
			}
		}

		// the candidate's remaining amount expressed in the incoming asset
		worth := Counter(cand.Side, cand.Amount, cand.Price)

		if worth <= remaining {
			// full consume at the candidate's own price
			if worth == 0 || cand.Amount == 0 {
				err = ErrZeroFill
				return
			}
			fills = append(fills, Fill{
				OrderID: cand.ID,
				UserID:  cand.UserID,
				Base:    worth,
				Counter: cand.Amount,
				Price:   cand.Price,
				Full:    true,
			})
			remaining -= worth
		} else {
			// partial consume, the walk stops here
			counter := Counter(side, remaining, cand.Price)
			if counter == 0 {
				err = ErrZeroFill
				return
			}
			fills = append(fills, Fill{
				OrderID: cand.ID,
				UserID:  cand.UserID,
				Base:    remaining,
				Counter: counter,
				Price:   cand.Price,
			})
			remaining = 0
		}
	}

	matched = want - remaining
	return
}

// Match fills an incoming deposit of `want` (side's deposit asset) against
// resting opposite-side orders, inside the caller's transaction. Fills
// execute at the resting orders' prices; price priority first, oldest
// last_update within a price level. Returns the fills, the matched amount
// and the updated candidate rows (for the in-memory index, to be applied
// after commit).
func Match(tx *gorm.DB, side int8, want int64, limit decimal.Decimal) (fills []Fill, matched int64, updated []model.Order, err error) {
	priceOrder := "price asc"
	if side == model.SideSell {
		priceOrder = "price desc"
	}

	var candidates []model.Order
	err = tx.Model(model.Order{}).
		Where("`side`=? and `is_active`=?", model.OppositeSide(side), true).
		Order(priceOrder).Order("last_update asc").Order("id asc").
		Find(&candidates).Error
	if err != nil {
		return
	}

	fills, matched, err = matchWalk(side, want, limit, candidates)
	if err != nil {
		return
	}

	byID := map[int64]*model.Order{}
	for i := range candidates {
		byID[candidates[i].ID] = &candidates[i]
	}

	for _, f := range fills {
		o := byID[f.OrderID]
		if f.Full {
			o.Amount = 0
			o.IsActive = false
		} else {
			o.Amount -= f.Counter
		}
		o.SoldAmount += f.Base

		err = tx.Model(model.Order{}).Where("`id`=?", o.ID).
			Updates(map[string]interface{}{
				"amount":      o.Amount,
				"sold_amount": o.SoldAmount,
				"is_active":   o.IsActive,
			}).Error
		if err != nil {
			return
		}

		updated = append(updated, *o)
	}

	return
}
