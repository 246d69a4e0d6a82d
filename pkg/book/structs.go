package book

import (
	"time"

	"github.com/google/btree"
	"github.com/shopspring/decimal"
)

// Item minimal resting order information kept in the in-memory index
type Item struct {
	ID         int64
	UserID     int64
	Side       int8
	Price      decimal.Decimal // BTC per note
	Amount     int64           // remaining, in the order's deposit asset
	LastUpdate time.Time
}

// AskItem resting sell order, best is the lowest price
type AskItem Item

// BidItem resting buy order, best is the highest price
type BidItem Item

// Less compare the size of two AskItems
func (a AskItem) Less(item btree.Item) bool {
	b, _ := item.(AskItem)

	if a.ID == b.ID {
		return false
	}

	f := a.Price.Cmp(b.Price)
	if f == 0 {
		if !a.LastUpdate.Equal(b.LastUpdate) {
			return a.LastUpdate.Before(b.LastUpdate)
		}
		return a.ID < b.ID
	}

	// a.Price < b.Price
	return f < 0
}

// Less compare the size of two BidItems
//
// ordered so that Descend from the max yields best price first, oldest
// first within a price level
func (a BidItem) Less(item btree.Item) bool {
	b, _ := item.(BidItem)

	if a.ID == b.ID {
		return false
	}

	f := a.Price.Cmp(b.Price)
	if f == 0 {
		if !a.LastUpdate.Equal(b.LastUpdate) {
			return a.LastUpdate.After(b.LastUpdate)
		}
		return a.ID > b.ID
	}

	// a.Price < b.Price
	return f < 0
}

// Fill is one resting order consumed (fully or partially) by a match.
// Base is the incoming deposit-asset amount it absorbed, Counter the
// counter-asset amount granted to the depositor, Price the resting
// order's own price.
type Fill struct {
	OrderID int64
	UserID  int64
	Base    int64
	Counter int64
	Price   decimal.Decimal
	Full    bool
}
