package xnats

// DepositEvent structure for one observed payment on a deposit address,
// published by the wallet watcher and consumed by ingress
type DepositEvent struct {
	TxID    string `json:"txID"`
	Address string `json:"address"`

	// Amounts in the deposit asset's smallest unit
	GrossAmount int64 `json:"grossAmount"`
	FeeAmount   int64 `json:"feeAmount"`

	Confirmations int64 `json:"confirmations"`
	Time          int64 `json:"time"` // observation time, in nanoseconds
}

// PaymentReq structure for a payout order, sent to the notes wallet via
// request/reply
type PaymentReq struct {
	Address string `json:"address"`
	Amount  int64  `json:"amount"` // note units
}

type PaymentReply struct {
	Code  string `json:"code"` // "", CodeTooSmall, or CodeFailed
	TxRef string `json:"txRef"`
	Error string `json:"error,omitempty"`
}

const (
	CodeTooSmall = "too_small"
	CodeFailed   = "failed"
)

type BalanceReply struct {
	Amount int64  `json:"amount"` // note units
	Error  string `json:"error,omitempty"`
}

type NewAddressReq struct {
	Label string `json:"label"`
}

type NewAddressReply struct {
	Address string `json:"address"`
	Error   string `json:"error,omitempty"`
}

type TxInfoReq struct {
	TxID string `json:"txID"`
}

type TxInfoReply struct {
	Confirmations int64  `json:"confirmations"`
	Error         string `json:"error,omitempty"`
}

// Notice is a human-readable message for a user or the admin channel
type Notice struct {
	UserID int64  `json:"userID,omitempty"`
	Text   string `json:"text"`
	Time   int64  `json:"time"`
}
