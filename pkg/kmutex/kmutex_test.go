package kmutex_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"notex/pkg/kmutex"

	"github.com/stretchr/testify/require"
)

func TestLockExcludes(t *testing.T) {
	m := kmutex.New()

	var inside, max int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := m.Lock("k")
			defer unlock()

			mu.Lock()
			inside++
			if inside > max {
				max = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Equal(t, 1, max)
	require.False(t, m.Held("k"))
}

func TestDifferentKeysInterleave(t *testing.T) {
	m := kmutex.New()

	unlockA := m.Lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB := m.Lock("b")
		unlockB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on another key blocked")
	}
}

func TestFIFOOrder(t *testing.T) {
	m := kmutex.New()

	unlock := m.Lock("k")

	var order []int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		i := i
		go func() {
			defer wg.Done()
			u := m.Lock("k")
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			u()
		}()
		// give each goroutine time to enqueue before the next
		time.Sleep(10 * time.Millisecond)
	}

	unlock()
	wg.Wait()

	for i := 1; i < len(order); i++ {
		require.Less(t, order[i-1], order[i])
	}
}

func TestWithReleasesOnError(t *testing.T) {
	m := kmutex.New()

	wantErr := errors.New("boom")
	err := m.With("k", func() error {
		return wantErr
	})
	require.Equal(t, wantErr, err)

	// lock must be free again
	done := make(chan struct{})
	go func() {
		u := m.Lock("k")
		u()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock not released after With error")
	}
}

func TestUnlockIdempotent(t *testing.T) {
	m := kmutex.New()

	unlock := m.Lock("k")
	unlock()
	unlock() // second call must not release someone else's hold

	u2 := m.Lock("k")
	defer u2()
	require.True(t, m.Held("k"))
}
