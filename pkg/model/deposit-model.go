package model

import "time"

// Deposit is one observed incoming payment on a binding's deposit address.
// Unique on (binding_id, tx_id): duplicate delivery of the same external
// transaction must never create a second row.
//
// ConfirmationDate is set exactly once, when the deposit is converted into
// an order or instant deal; nil means "not yet converted" regardless of the
// stored confirmation count.
type Deposit struct {
	ID int64 `json:"id" gorm:"omitempty; primaryKey;"`

	BindingID int64  `json:"bindingID" gorm:"omitempty; not null; default:0; uniqueindex:idx_binding_tx;"`
	TxID      string `json:"txID" gorm:"omitempty; not null; default:''; size:128; uniqueindex:idx_binding_tx;"`

	// Amounts in the deposit asset's smallest unit (satoshis for buy-side
	// deposits, note units for sell-side).
	GrossAmount int64 `json:"grossAmount" gorm:"omitempty; not null; default:0;"`
	FeeAmount   int64 `json:"feeAmount" gorm:"omitempty; not null; default:0;"`
	NetAmount   int64 `json:"netAmount" gorm:"omitempty; not null; default:0;"`

	// Confirmations may decrease after a chain reorg; the stored count is
	// simply overwritten.
	Confirmations int64 `json:"confirmations" gorm:"omitempty; not null; default:0;"`

	ConfirmationDate *time.Time `json:"confirmationDate" gorm:"omitempty;"`

	Model
}

// Converted reports whether the one-time conversion already happened.
func (d *Deposit) Converted() bool {
	return d.ConfirmationDate != nil
}
