package model

// Execution is the payout idempotency marker. The row's existence is the
// only signal that an external payout for the referenced deal or order was
// attempted; it is committed in the same transaction that performed the
// payout call, so a durable marker implies the call was known to succeed
// (or was classified as dust-success). Never mutated or deleted.
type Execution struct {
	ID int64 `json:"id" gorm:"omitempty; primaryKey;"`

	Kind  int8  `json:"kind" gorm:"omitempty; not null; default:0; type:tinyint(1); uniqueindex:idx_kind_ref;"`
	RefID int64 `json:"refID" gorm:"omitempty; not null; default:0; uniqueindex:idx_kind_ref;"`

	Model
}

const (
	ExecKindDeal  int8 = 1
	ExecKindOrder int8 = 2
)
