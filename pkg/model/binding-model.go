package model

// Binding maps a user to the dedicated deposit address assigned for one
// exchange direction, and to the address the payout goes to. Created once
// per (user, out_address) pair, never deleted.
type Binding struct {
	ID int64 `json:"id" gorm:"omitempty; primaryKey;"`

	UserID int64 `json:"userID" gorm:"omitempty; not null; default:0; uniqueindex:idx_user_out;"`
	Side   int8  `json:"side" gorm:"omitempty; not null; default:0; type:tinyint(1); uniqueindex:idx_user_out;"`

	DepositAddress string `json:"depositAddress" gorm:"omitempty; not null; default:''; size:128; uniqueindex;"`
	OutAddress     string `json:"outAddress" gorm:"omitempty; not null; default:''; size:128; uniqueindex:idx_user_out; index;"`

	Model
}
