// Package kmutex provides named cooperative mutexes. Operations that must
// not interleave share a key; operations under different keys run freely.
// Waiters are granted the lock in FIFO order.
package kmutex

import (
	"fmt"
	"sync"
)

// Well-known lock keys. The data model's at-most-once guarantees depend on
// conflicting operations sharing a key:
//
//	KeyNewAddress serializes deposit-address allocation,
//	KeyConvert serializes deposit -> order/deal conversion,
//	KeySettleBTC / KeySettleNotes serialize payout submission per direction.
const (
	KeyNewAddress  = "new_address"
	KeyConvert     = "btc2notes"
	KeySettleBTC   = "settle_btc"
	KeySettleNotes = "settle_notes"
)

// KeyUser serializes binding and order operations for one user.
func KeyUser(userID int64) string {
	return fmt.Sprintf("user_%d", userID)
}

type Manager struct {
	mu     sync.Mutex
	queues map[string][]chan struct{}
}

var Shared = New()

func New() *Manager {
	return &Manager{
		queues: map[string][]chan struct{}{},
	}
}

// Lock blocks until the key is exclusively held and returns the unlock
// function. Unlock is safe to call more than once; releasing on every exit
// path is the caller's job (use With for the common scoped case).
func (m *Manager) Lock(key string) (unlock func()) {
	ch := make(chan struct{})

	m.mu.Lock()
	q := m.queues[key]
	m.queues[key] = append(q, ch)
	first := len(q) == 0
	m.mu.Unlock()

	if !first {
		<-ch
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			m.unlock(key)
		})
	}
}

func (m *Manager) unlock(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q := m.queues[key]
	if len(q) == 0 {
		return
	}
	q = q[1:]
	if len(q) == 0 {
		delete(m.queues, key)
		return
	}
	m.queues[key] = q
	close(q[0])
}

// With runs fn while holding key, releasing on every exit path.
func (m *Manager) With(key string, fn func() error) error {
	unlock := m.Lock(key)
	defer unlock()
	return fn()
}

// Held reports whether the key is currently locked or contended.
func (m *Manager) Held(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queues[key]) > 0
}
