package model

// Checkpoint is a small app/key/value table for resumable scan positions,
// e.g. the last bitcoind block hash the deposit poller processed.
type Checkpoint struct {
	ID int64 `json:"id" gorm:"omitempty; primaryKey;"`

	App string `json:"app" gorm:"omitempty; not null; default:''; size:64; uniqueindex:idx_app_key;"`
	Key string `json:"key" gorm:"omitempty; not null; default:''; size:64; uniqueindex:idx_app_key;"`
	Val string `json:"val" gorm:"omitempty; not null; default:''; size:255;"`

	Model
}

const (
	CHECKPOINT_K_LAST_BLOCK_HASH = "last_block_hash"
	CHECKPOINT_K_LAST_RESCAN     = "last_rescan"
)
