package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is a resting limit order backed by a converted deposit.
//
// Amount is the remaining deposit-asset quantity still up for exchange
// (satoshis on the buy side, note units on the sell side); SoldAmount is
// the counter-asset quantity accumulated from fills so far. An order with
// IsActive=false is fully filled or cancelled and waits for settlement.
type Order struct {
	ID int64 `json:"id" gorm:"omitempty; primaryKey;"`

	UserID    int64 `json:"userID" gorm:"omitempty; not null; default:0; index;"`
	DepositID int64 `json:"depositID" gorm:"omitempty; not null; default:0; index;"`
	Side      int8  `json:"side" gorm:"omitempty; not null; default:0; type:tinyint(1); index:idx_side_active;"`

	Price decimal.Decimal `json:"price" gorm:"omitempty; not null; default:0; type:decimal(18,8);"` // BTC per note

	Amount     int64 `json:"amount" gorm:"omitempty; not null; default:0;"`
	SoldAmount int64 `json:"soldAmount" gorm:"omitempty; not null; default:0;"`

	IsActive bool `json:"isActive" gorm:"omitempty; not null; default:0; index:idx_side_active;"`

	// LastUpdate is the time-priority tie-break; bumped on re-pricing so a
	// re-priced order goes to the back of its price level.
	LastUpdate time.Time `json:"lastUpdate" gorm:"omitempty; not null; default:CURRENT_TIMESTAMP(3); index;"`

	ExecutionDate *time.Time `json:"executionDate" gorm:"omitempty;"`
	TxRef         string     `json:"txRef" gorm:"omitempty; not null; default:''; size:128;"`

	Model
}
