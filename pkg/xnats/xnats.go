// Package xnats holds the NATS message structures and subject names shared
// between the exchange, the wallet watcher and the notes wallet.
package xnats

import (
	"fmt"

	"github.com/nats-io/nats.go"
)

// Subjects. Deposit events flow over JetStream so a restarted exchange
// replays what it missed; notices and wallet request/reply use core NATS.
const (
	SubjDepositAll = "NOTEX.Deposit.*"

	SubjAlert = "NOTEX.Alert"

	SubjWalletPayment    = "WALLET.SendPayment"
	SubjWalletBalance    = "WALLET.Balance"
	SubjWalletNewAddress = "WALLET.NewAddress"
	SubjWalletTxInfo     = "WALLET.TxInfo"
)

func SubjDeposit(side string) string {
	return "NOTEX.Deposit." + side
}

func SubjNotify(userID int64) string {
	return fmt.Sprintf("NOTEX.Notify.%d", userID)
}

func Connect(url string) (nc *nats.Conn, err error) {
	nc, err = nats.Connect(url)
	return
}

func JetStream(nc *nats.Conn) (js nats.JetStreamContext, err error) {
	js, err = nc.JetStream(nats.PublishAsyncMaxPending(256))
	return
}
