package chain

import (
	"strings"

	"notex/pkg/config"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
)

// Bitcoind talks to a bitcoind wallet over JSON-RPC. It implements
// PayoutSender, BalanceReader, ConfirmationSource, AddressAllocator and
// DepositScanner for the BTC side.
type Bitcoind struct {
	Cli *rpcclient.Client
	Net *chaincfg.Params
}

func NewBitcoind(cfg config.Bitcoin) (b *Bitcoind, err error) {
	cli, err := rpcclient.New(&rpcclient.ConnConfig{
		Host:         cfg.Host,
		User:         cfg.User,
		Pass:         cfg.Pass,
		HTTPPostMode: true,
		DisableTLS:   true,
	}, nil)
	if err != nil {
		return
	}

	net := &chaincfg.TestNet3Params
	if cfg.Network == "mainnet" {
		net = &chaincfg.MainNetParams
	}

	b = &Bitcoind{
		Cli: cli,
		Net: net,
	}

	return
}

func (b *Bitcoind) NewAddress(label string) (address string, err error) {
	defer func() {
		if err != nil {
			logger.Errorf("bitcoind NewAddress label:%s failed with err:%s", label, err)
		} else {
			logger.Infof("bitcoind NewAddress label:%s, address:%s", label, address)
		}
	}()

	addr, err := b.Cli.GetNewAddress(label)
	if err != nil {
		return
	}

	address = addr.EncodeAddress()
	return
}

func (b *Bitcoind) Send(address string, amount int64) (txref string, err error) {
	defer func() {
		if err != nil {
			logger.Errorf("bitcoind Send address:%s, amount:%d failed with err:%s", address, amount, err)
		} else {
			logger.Infof("bitcoind Send address:%s, amount:%d, txref:%s", address, amount, txref)
		}
	}()

	addr, err := btcutil.DecodeAddress(address, b.Net)
	if err != nil {
		return
	}

	hash, err := b.Cli.SendToAddress(addr, btcutil.Amount(amount))
	if err != nil {
		if IsTooSmall(err) {
			err = ErrAmountTooSmall
		}
		return
	}

	txref = hash.String()
	return
}

// IsTooSmall classifies a bitcoind send error as a dust refusal.
func IsTooSmall(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "too small") || strings.Contains(s, "dust")
}

func (b *Bitcoind) Balance() (amount int64, err error) {
	err = withRetry("Balance", func() error {
		bal, e := b.Cli.GetBalanceMinConf("*", 1)
		if e != nil {
			return e
		}
		amount = int64(bal)
		return nil
	})
	return
}

func (b *Bitcoind) Confirmations(txID string) (n int64, err error) {
	hash, err := chainhash.NewHashFromStr(txID)
	if err != nil {
		return
	}

	err = withRetry("Confirmations", func() error {
		r, e := b.Cli.GetTransaction(hash)
		if e != nil {
			return e
		}
		n = r.Confirmations
		return nil
	})
	return
}

func (b *Bitcoind) ListSince(blockHash string) (txs []Tx, lastBlock string, err error) {
	var hash *chainhash.Hash
	if blockHash != "" {
		hash, err = chainhash.NewHashFromStr(blockHash)
		if err != nil {
			return
		}
	}

	var r *btcjson.ListSinceBlockResult
	err = withRetry("ListSince", func() error {
		var e error
		r, e = b.Cli.ListSinceBlock(hash)
		return e
	})
	if err != nil {
		return
	}

	for _, t := range r.Transactions {
		if t.Category != "receive" {
			continue
		}

		gross, e := btcutil.NewAmount(t.Amount)
		if e != nil {
			err = e
			return
		}
		var fee int64
		if t.Fee != nil {
			f, e := btcutil.NewAmount(*t.Fee)
			if e != nil {
				err = e
				return
			}
			fee = int64(f)
			if fee < 0 {
				fee = -fee
			}
		}

		txs = append(txs, Tx{
			TxID:          t.TxID,
			Address:       t.Address,
			GrossAmount:   int64(gross),
			FeeAmount:     fee,
			Confirmations: t.Confirmations,
		})
	}

	lastBlock = r.LastBlock
	return
}
