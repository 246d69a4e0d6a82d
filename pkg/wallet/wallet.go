// Package wallet is the client side of the headless notes wallet, reached
// over NATS request/reply. It satisfies the same collaborator contracts as
// the bitcoind client, so the exchange core treats both sides alike.
package wallet

import (
	"encoding/json"
	"errors"
	"time"

	"notex/pkg/chain"
	"notex/pkg/config"
	"notex/pkg/xlog"
	"notex/pkg/xnats"

	"github.com/nats-io/nats.go"
)

var logger = xlog.GetLogger()

type Wallet struct {
	NC      *nats.Conn
	Timeout time.Duration
}

func New(nc *nats.Conn, cfg config.Wallet) *Wallet {
	return &Wallet{
		NC:      nc,
		Timeout: time.Duration(cfg.TimeoutSec) * time.Second,
	}
}

func (w *Wallet) request(subj string, req interface{}, reply interface{}) (err error) {
	data, err := json.Marshal(req)
	if err != nil {
		return
	}

	m, err := w.NC.Request(subj, data, w.Timeout)
	if err != nil {
		return
	}

	err = json.Unmarshal(m.Data, reply)
	return
}

func (w *Wallet) Send(address string, amount int64) (txref string, err error) {
	defer func() {
		if err != nil {
			logger.Errorf("wallet Send address:%s, amount:%d failed with err:%s", address, amount, err)
		} else {
			logger.Infof("wallet Send address:%s, amount:%d, txref:%s", address, amount, txref)
		}
	}()

	var reply xnats.PaymentReply
	err = w.request(xnats.SubjWalletPayment, xnats.PaymentReq{
		Address: address,
		Amount:  amount,
	}, &reply)
	if err != nil {
		return
	}

	switch reply.Code {
	case "":
		txref = reply.TxRef
	case xnats.CodeTooSmall:
		err = chain.ErrAmountTooSmall
	default:
		err = errors.New(reply.Error)
	}

	return
}

func (w *Wallet) Balance() (amount int64, err error) {
	var reply xnats.BalanceReply
	err = w.request(xnats.SubjWalletBalance, struct{}{}, &reply)
	if err != nil {
		return
	}
	if reply.Error != "" {
		err = errors.New(reply.Error)
		return
	}

	amount = reply.Amount
	return
}

func (w *Wallet) NewAddress(label string) (address string, err error) {
	defer func() {
		if err != nil {
			logger.Errorf("wallet NewAddress label:%s failed with err:%s", label, err)
		} else {
			logger.Infof("wallet NewAddress label:%s, address:%s", label, address)
		}
	}()

	var reply xnats.NewAddressReply
	err = w.request(xnats.SubjWalletNewAddress, xnats.NewAddressReq{Label: label}, &reply)
	if err != nil {
		return
	}
	if reply.Error != "" {
		err = errors.New(reply.Error)
		return
	}

	address = reply.Address
	return
}

func (w *Wallet) Confirmations(txID string) (n int64, err error) {
	var reply xnats.TxInfoReply
	err = w.request(xnats.SubjWalletTxInfo, xnats.TxInfoReq{TxID: txID}, &reply)
	if err != nil {
		return
	}
	if reply.Error != "" {
		err = errors.New(reply.Error)
		return
	}

	n = reply.Confirmations
	return
}

// contract checks
var (
	_ chain.PayoutSender       = (*Wallet)(nil)
	_ chain.BalanceReader      = (*Wallet)(nil)
	_ chain.AddressAllocator   = (*Wallet)(nil)
	_ chain.ConfirmationSource = (*Wallet)(nil)
)
