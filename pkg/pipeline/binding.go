package pipeline

import (
	"errors"
	"fmt"

	"notex/pkg/kmutex"
	"notex/pkg/model"
)

// AssignDepositAddress returns the user's binding for (side, outAddress),
// lazily allocating a fresh deposit address when none exists yet. Address
// allocation runs under the "new_address" lock so two concurrent requests
// never share an address.
func (w *Worker) AssignDepositAddress(userID int64, side int8, outAddress string) (binding model.Binding, err error) {
	defer func() {
		if err != nil {
			logger.Errorf("AssignDepositAddress user:%d, side:%s failed with err:%s",
				userID, model.SideName(side), err)
		} else {
			logger.Infof("AssignDepositAddress user:%d, side:%s, deposit:%s, out:%s",
				userID, model.SideName(side), binding.DepositAddress, binding.OutAddress)
		}
	}()

	if outAddress == "" {
		err = errors.New("empty out address")
		return
	}

	err = w.Locks.With(kmutex.KeyUser(userID), func() error {
		db := model.GetMySQL()

		e := db.Model(model.Binding{}).
			Where("`user_id`=? and `side`=? and `out_address`=?", userID, side, outAddress).
			Limit(1).Find(&binding).Error
		if e != nil {
			return e
		}
		if binding.ID > 0 {
			return nil
		}

		alloc := w.Alloc[side]
		if alloc == nil {
			return errors.New("no address allocator for side")
		}

		return w.Locks.With(kmutex.KeyNewAddress, func() error {
			address, e := alloc.NewAddress(fmt.Sprintf("user_%d_%s", userID, model.SideName(side)))
			if e != nil {
				return e
			}

			binding = model.Binding{
				UserID:         userID,
				Side:           side,
				DepositAddress: address,
				OutAddress:     outAddress,
			}
			return db.Create(&binding).Error
		})
	})

	return
}

// findBindingByAddress resolves a deposit address to its binding.
func findBindingByAddress(address string) (binding model.Binding, err error) {
	db := model.GetMySQL()
	err = db.Model(model.Binding{}).
		Where("`deposit_address`=?", address).
		Limit(1).Find(&binding).Error
	if err != nil {
		return
	}
	if binding.ID == 0 {
		err = errors.New("no binding for address")
	}
	return
}
