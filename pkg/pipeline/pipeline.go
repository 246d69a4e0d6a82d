// Package pipeline drives a deposit from first observation to conversion.
//
// A deposit is SEEN when the external transaction is first observed,
// CONFIRMED once its confirmation count reaches the threshold, and
// CONVERTED when the one-time conversion into an order or instant deal has
// happened (confirmation_date set). Conversion is serialized by the
// "btc2notes" lock and idempotent, so racing confirmation sources cannot
// double-convert.
package pipeline

import (
	"time"

	"notex/pkg/book"
	"notex/pkg/chain"
	"notex/pkg/config"
	"notex/pkg/journal"
	"notex/pkg/kmutex"
	"notex/pkg/model"
	"notex/pkg/notify"
	"notex/pkg/rates"
	"notex/pkg/xlog"
)

var logger = xlog.GetLogger()

// Worker deposit pipeline worker class
type Worker struct {
	Book     *book.Worker
	Rates    *rates.Oracle
	Notifier *notify.Notifier
	Journal  *journal.Journal
	Locks    *kmutex.Manager

	// chain collaborators keyed by the deposit side: buy-side deposits
	// live on the BTC chain, sell-side ones in the notes wallet
	Alloc   map[int8]chain.AddressAllocator
	Conf    map[int8]chain.ConfirmationSource
	Scanner map[int8]chain.DepositScanner
}

func New(b *book.Worker, r *rates.Oracle, n *notify.Notifier, j *journal.Journal) *Worker {
	return &Worker{
		Book:     b,
		Rates:    r,
		Notifier: n,
		Journal:  j,
		Locks:    kmutex.Shared,

		Alloc:   map[int8]chain.AddressAllocator{},
		Conf:    map[int8]chain.ConfirmationSource{},
		Scanner: map[int8]chain.DepositScanner{},
	}
}

// floor returns the dust floor for side's deposit asset.
func floor(side int8) int64 {
	if side == model.SideBuy {
		return config.Shared.Exchange.MinSatoshis
	}
	return config.Shared.Exchange.MinNoteUnits
}

// StartPolling refreshes confirmation counts until the process exits.
func (w *Worker) StartPolling() {
	interval := time.Duration(config.Shared.Exchange.PollIntervalSec) * time.Second
	round := 0
	for {
		round++
		logger.Debugf("StartPolling round:%d started", round)
		err := w.RefreshConfirmations()
		if err != nil {
			logger.Errorf("StartPolling round:%d failed with err:%s", round, err)
		} else {
			logger.Debugf("StartPolling round:%d done", round)
		}
		time.Sleep(interval)
	}
}

// StartRescan runs the reconciliation scan until the process exits.
func (w *Worker) StartRescan() {
	interval := time.Duration(config.Shared.Exchange.RescanIntervalSec) * time.Second
	round := 0
	for {
		round++
		logger.Infof("StartRescan round:%d started", round)
		err := w.Rescan()
		if err != nil {
			logger.Errorf("StartRescan round:%d failed with err:%s", round, err)
		} else {
			logger.Infof("StartRescan round:%d done", round)
		}
		time.Sleep(interval)
	}
}

func (w *Worker) journalEntry(e journal.Entry) {
	if w.Journal == nil {
		return
	}
	if err := w.Journal.Append(e); err != nil {
		logger.Errorf("pipeline journal append failed with err:%s", err)
	}
}

func (w *Worker) notifyUser(userID int64, text string) {
	if w.Notifier != nil {
		w.Notifier.User(userID, text)
	}
}

func (w *Worker) alertAdmin(text string) {
	if w.Notifier != nil {
		w.Notifier.Admin(text)
	}
}
