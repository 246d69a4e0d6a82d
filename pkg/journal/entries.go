package journal

// Entry kinds.
const (
	KindConversion = "conversion"
	KindSettlement = "settlement"
)

// Entry is one journal line. Seq and Ts are assigned by Append.
type Entry struct {
	Seq  int64  `json:"seq"`
	Ts   int64  `json:"ts"`
	Kind string `json:"kind"`

	Conversion *Conversion `json:"conversion,omitempty"`
	Settlement *Settlement `json:"settlement,omitempty"`
}

// Conversion records a confirmed deposit turning into an instant deal
// and/or a resting order. Amounts are in the deposit asset's smallest unit.
type Conversion struct {
	DepositID int64  `json:"depositID"`
	UserID    int64  `json:"userID"`
	Side      string `json:"side"`

	NetAmount int64 `json:"netAmount"`
	Matched   int64 `json:"matched"`
	Rested    int64 `json:"rested"`

	DealID  int64 `json:"dealID,omitempty"`
	OrderID int64 `json:"orderID,omitempty"`

	Price    string `json:"price,omitempty"`
	Donation bool   `json:"donation,omitempty"`

	Fills []Fill `json:"fills,omitempty"`
}

// Fill is one resting order consumed (fully or partially) by a conversion.
type Fill struct {
	OrderID       int64  `json:"orderID"`
	UserID        int64  `json:"userID"`
	BaseAmount    int64  `json:"baseAmount"`
	CounterAmount int64  `json:"counterAmount"`
	Price         string `json:"price"`
}

// Settlement records one completed payout for a deal or an order.
type Settlement struct {
	Kind  string `json:"kind"` // "deal" or "order"
	RefID int64  `json:"refID"`

	UserID int64  `json:"userID"`
	Side   string `json:"side"`

	Amount  int64  `json:"amount"`
	Address string `json:"address"`
	TxRef   string `json:"txRef"`
}
