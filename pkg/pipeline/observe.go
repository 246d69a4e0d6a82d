package pipeline

import (
	"fmt"
	"time"

	"notex/pkg/chain"
	"notex/pkg/config"
	"notex/pkg/model"
	"notex/pkg/xnats"

	"gorm.io/gorm/clause"
)

// Observe records one deposit event. First observation creates the row
// (deduplicated on binding+txid), later observations simply overwrite the
// confirmation count — a decrease after a chain reorg is expected and not
// an error. Crossing the confirmation threshold triggers conversion.
func (w *Worker) Observe(side int8, ev xnats.DepositEvent) (err error) {
	defer func() {
		if err != nil {
			logger.Errorf("Observe side:%s, tx:%s failed with err:%s", model.SideName(side), ev.TxID, err)
		} else {
			logger.Debugf("Observe side:%s, tx:%s, confirmations:%d done", model.SideName(side), ev.TxID, ev.Confirmations)
		}
	}()

	binding, err := findBindingByAddress(ev.Address)
	if err != nil {
		// a payment to an address we never handed out is an integrity fault
		w.alertAdmin(fmt.Sprintf("deposit tx %s pays unknown address %s (%s side)",
			ev.TxID, ev.Address, model.SideName(side)))
		return
	}
	if binding.Side != side {
		err = fmt.Errorf("binding %d side mismatch", binding.ID)
		w.alertAdmin(fmt.Sprintf("deposit tx %s pays %s address %s via the %s feed",
			ev.TxID, model.SideName(binding.Side), ev.Address, model.SideName(side)))
		return
	}

	db := model.GetMySQL()

	dep := model.Deposit{
		BindingID:     binding.ID,
		TxID:          ev.TxID,
		GrossAmount:   ev.GrossAmount,
		FeeAmount:     ev.FeeAmount,
		NetAmount:     ev.GrossAmount - ev.FeeAmount,
		Confirmations: ev.Confirmations,
	}
	err = db.Model(model.Deposit{}).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "binding_id"}, {Name: "tx_id"}},
			DoNothing: true,
		}).
		Create(&dep).Error
	if err != nil {
		return
	}

	// re-read: the create may have hit an existing row
	err = db.Model(model.Deposit{}).
		Where("`binding_id`=? and `tx_id`=?", binding.ID, ev.TxID).
		Limit(1).Find(&dep).Error
	if err != nil {
		return
	}

	if dep.Converted() {
		return
	}

	if dep.Confirmations != ev.Confirmations {
		err = db.Model(model.Deposit{}).
			Where("`id`=? and `confirmation_date` is null", dep.ID).
			Update("confirmations", ev.Confirmations).Error
		if err != nil {
			return
		}
		dep.Confirmations = ev.Confirmations
	}

	if dep.Confirmations >= config.Shared.Exchange.MinConfirmations {
		err = w.Convert(dep.ID)
	}

	return
}

// RefreshConfirmations polls the chain backends for every unconverted
// deposit and converts the ones that crossed the threshold.
func (w *Worker) RefreshConfirmations() (err error) {
	db := model.GetMySQL()

	var deps []model.Deposit
	err = db.Model(model.Deposit{}).
		Where("`confirmation_date` is null").
		Order("id asc").Find(&deps).Error
	if err != nil {
		return
	}

	for _, dep := range deps {
		var binding model.Binding
		err = db.Model(model.Binding{}).Where("`id`=?", dep.BindingID).Limit(1).Find(&binding).Error
		if err != nil {
			return
		}

		conf := w.Conf[binding.Side]
		if conf == nil {
			continue
		}

		n, e := conf.Confirmations(dep.TxID)
		if e != nil {
			logger.Errorf("RefreshConfirmations tx:%s failed with err:%s", dep.TxID, e)
			continue
		}

		if n != dep.Confirmations {
			e = db.Model(model.Deposit{}).
				Where("`id`=? and `confirmation_date` is null", dep.ID).
				Update("confirmations", n).Error
			if e != nil {
				logger.Errorf("RefreshConfirmations tx:%s update failed with err:%s", dep.TxID, e)
				continue
			}
		}

		if n >= config.Shared.Exchange.MinConfirmations {
			if e = w.Convert(dep.ID); e != nil {
				logger.Errorf("RefreshConfirmations convert deposit:%d failed with err:%s", dep.ID, e)
			}
		}
	}

	return
}

// Rescan lists incoming payments since the last block checkpoint and runs
// them through Observe. This closes the gap between the push feed and
// reality after downtime: a binding that was paid while the service was
// down gets its deposit row synthesized here.
func (w *Worker) Rescan() (err error) {
	for side, scanner := range w.Scanner {
		err = w.rescanSide(side, scanner)
		if err != nil {
			return
		}
	}

	err = saveCheckpoint("pipeline", model.CHECKPOINT_K_LAST_RESCAN, time.Now().Format(time.RFC3339))
	return
}

func (w *Worker) rescanSide(side int8, scanner chain.DepositScanner) (err error) {
	name := model.SideName(side)
	defer func() {
		if err != nil {
			logger.Errorf("rescanSide %s failed with err:%s", name, err)
		} else {
			logger.Infof("rescanSide %s done", name)
		}
	}()

	key := model.CHECKPOINT_K_LAST_BLOCK_HASH + "_" + name
	last, err := loadCheckpoint("pipeline", key)
	if err != nil {
		return
	}

	txs, lastBlock, err := scanner.ListSince(last)
	if err != nil {
		return
	}

	for _, tx := range txs {
		e := w.Observe(side, xnats.DepositEvent{
			TxID:          tx.TxID,
			Address:       tx.Address,
			GrossAmount:   tx.GrossAmount,
			FeeAmount:     tx.FeeAmount,
			Confirmations: tx.Confirmations,
			Time:          time.Now().UnixNano(),
		})
		if e != nil {
			// already alerted inside Observe, keep scanning
			logger.Warningf("rescanSide %s observe tx:%s failed with err:%s", name, tx.TxID, e)
		}
	}

	if lastBlock != "" && lastBlock != last {
		err = saveCheckpoint("pipeline", key, lastBlock)
	}
	return
}

func loadCheckpoint(app, key string) (val string, err error) {
	db := model.GetMySQL()
	var cp model.Checkpoint
	err = db.Model(model.Checkpoint{}).
		Where("`app`=? and `key`=?", app, key).
		Limit(1).Find(&cp).Error
	val = cp.Val
	return
}

func saveCheckpoint(app, key, val string) (err error) {
	db := model.GetMySQL()
	cp := model.Checkpoint{App: app, Key: key, Val: val}
	err = db.Model(model.Checkpoint{}).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "app"}, {Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"val"}),
		}).
		Create(&cp).Error
	return
}
