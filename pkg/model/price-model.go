package model

import "github.com/shopspring/decimal"

// CurrentPrice is a user's standing limit price per side. When set, newly
// converted deposits rest in the book at this price instead of matching
// instantly; changing it re-prices the user's active orders.
type CurrentPrice struct {
	ID int64 `json:"id" gorm:"omitempty; primaryKey;"`

	UserID int64 `json:"userID" gorm:"omitempty; not null; default:0; uniqueindex;"`

	BuyPrice  decimal.NullDecimal `json:"buyPrice" gorm:"omitempty; type:decimal(18,8);"`
	SellPrice decimal.NullDecimal `json:"sellPrice" gorm:"omitempty; type:decimal(18,8);"`

	Model
}
