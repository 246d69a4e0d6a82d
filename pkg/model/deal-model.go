package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// InstantDeal is one instantaneous match of a confirmed deposit against
// book liquidity, created atomically with marking the deposit converted.
//
// BaseAmount is the deposit-asset quantity consumed, CounterAmount the
// counter-asset quantity granted; Price is the instant rate the deal was
// quoted at (individual fills execute at the resting orders' own prices).
type InstantDeal struct {
	ID int64 `json:"id" gorm:"omitempty; primaryKey;"`

	DepositID int64 `json:"depositID" gorm:"omitempty; not null; default:0; index;"`
	Side      int8  `json:"side" gorm:"omitempty; not null; default:0; type:tinyint(1); index;"`

	BaseAmount    int64           `json:"baseAmount" gorm:"omitempty; not null; default:0;"`
	CounterAmount int64           `json:"counterAmount" gorm:"omitempty; not null; default:0;"`
	Price         decimal.Decimal `json:"price" gorm:"omitempty; not null; default:0; type:decimal(18,8);"`

	ExecutionDate *time.Time `json:"executionDate" gorm:"omitempty;"`
	TxRef         string     `json:"txRef" gorm:"omitempty; not null; default:''; size:128;"`

	Model
}
