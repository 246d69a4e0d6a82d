package model

import "gorm.io/gorm"

// Migrate creates or updates all ledger tables.
func Migrate(db *gorm.DB) (err error) {
	tables := []interface{}{
		Binding{},
		Deposit{},
		Order{},
		InstantDeal{},
		Execution{},
		CurrentPrice{},
		Checkpoint{},
	}
	for _, t := range tables {
		err = db.AutoMigrate(t)
		if err != nil {
			return
		}
	}
	return
}
