// Package chain defines the external money-moving collaborators the
// exchange depends on: the bitcoind node on the BTC side and the headless
// notes wallet on the other. The exchange core only sees these interfaces.
package chain

import (
	"errors"
	"time"

	"notex/pkg/xlog"
)

var logger = xlog.GetLogger()

// ErrAmountTooSmall is returned by a PayoutSender when the backend refuses
// the payment as dust. Settlement treats it as success with a sentinel
// reference instead of a retryable failure.
var ErrAmountTooSmall = errors.New("amount too small")

// PayoutSender submits one outgoing payment and returns the external
// transaction reference. A send is NOT idempotent; the caller must guard
// against double submission.
type PayoutSender interface {
	Send(address string, amount int64) (txref string, err error)
}

// BalanceReader reports the backend's spendable balance in the asset's
// smallest unit.
type BalanceReader interface {
	Balance() (amount int64, err error)
}

// ConfirmationSource reports the current confirmation count of an external
// transaction. The count may go down after a reorg.
type ConfirmationSource interface {
	Confirmations(txID string) (n int64, err error)
}

// AddressAllocator hands out a fresh deposit address.
type AddressAllocator interface {
	NewAddress(label string) (address string, err error)
}

// Tx is one incoming payment found by a scan, amounts in the asset's
// smallest unit, fee as a positive number.
type Tx struct {
	TxID          string
	Address       string
	GrossAmount   int64
	FeeAmount     int64
	Confirmations int64
}

// DepositScanner lists incoming payments since a block checkpoint. It is
// the recovery path behind the push events: anything the push feed missed
// shows up here.
type DepositScanner interface {
	ListSince(blockHash string) (txs []Tx, lastBlock string, err error)
}

const (
	readRetries = 3
	readBackoff = 2 * time.Second
)

// withRetry retries an idempotent read a few times with a fixed pause.
// Only for reads; sends go through exactly once.
func withRetry(what string, fn func() error) (err error) {
	for i := 0; i < readRetries; i++ {
		err = fn()
		if err == nil {
			return
		}
		logger.Warningf("chain %s attempt %d failed with err:%s", what, i+1, err)
		if i < readRetries-1 {
			time.Sleep(readBackoff)
		}
	}
	return
}
