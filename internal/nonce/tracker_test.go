package nonce

import (
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var (
	wallet1 = common.HexToAddress("0x1234567890123456789012345678901234567890")
	wallet2 = common.HexToAddress("0x2234567890123456789012345678901234567890")
)

func TestTracker_FirstAcquireUsesRemote(t *testing.T) {
	tracker := NewTracker()

	result := tracker.Acquire(wallet1, 1, 7)
	if result.Nonce != 7 {
		t.Errorf("expected nonce 7, got %d", result.Nonce)
	}
	if n, ok := tracker.Reserved(wallet1, 1); !ok || n != 7 {
		t.Errorf("expected reservation 7, got %d (ok=%v)", n, ok)
	}
}

func TestTracker_LaggingRemote(t *testing.T) {
	tracker := NewTracker()
	tracker.Acquire(wallet1, 1, 7)

	// node still reports 7 pending although 7 was just used
	result := tracker.Acquire(wallet1, 1, 7)
	if result.Nonce != 8 {
		t.Errorf("expected nonce 8, got %d", result.Nonce)
	}
}

func TestTracker_RemoteAhead(t *testing.T) {
	tracker := NewTracker()
	tracker.Acquire(wallet1, 1, 7)

	// another client mined several txs from the same account
	result := tracker.Acquire(wallet1, 1, 12)
	if result.Nonce != 12 {
		t.Errorf("expected nonce 12, got %d", result.Nonce)
	}
}

func TestTracker_SeparatesWalletsAndChains(t *testing.T) {
	tracker := NewTracker()
	tracker.Acquire(wallet1, 1, 5)

	if got := tracker.Acquire(wallet2, 1, 0).Nonce; got != 0 {
		t.Errorf("wallet2 expected 0, got %d", got)
	}
	if got := tracker.Acquire(wallet1, 11155111, 3).Nonce; got != 3 {
		t.Errorf("other chain expected 3, got %d", got)
	}
}

func TestTracker_Release(t *testing.T) {
	t.Run("releases latest reservation", func(t *testing.T) {
		tracker := NewTracker()
		tracker.Acquire(wallet1, 1, 4)
		if !tracker.Release(wallet1, 1, 4) {
			t.Fatal("expected release to succeed")
		}
		if got := tracker.Acquire(wallet1, 1, 4).Nonce; got != 4 {
			t.Errorf("expected released nonce 4 to be reused, got %d", got)
		}
	})

	t.Run("skips stale release", func(t *testing.T) {
		tracker := NewTracker()
		tracker.Acquire(wallet1, 1, 4)
		tracker.Acquire(wallet1, 1, 4) // reserves 5
		if tracker.Release(wallet1, 1, 4) {
			t.Error("expected release of non-latest nonce to be skipped")
		}
		if n, _ := tracker.Reserved(wallet1, 1); n != 5 {
			t.Errorf("expected reservation to stay at 5, got %d", n)
		}
	})

	t.Run("release of nonce zero clears tracking", func(t *testing.T) {
		tracker := NewTracker()
		tracker.Acquire(wallet1, 1, 0)
		tracker.Release(wallet1, 1, 0)
		if _, ok := tracker.Reserved(wallet1, 1); ok {
			t.Error("expected no reservation after releasing nonce 0")
		}
	})

	t.Run("unknown wallet", func(t *testing.T) {
		tracker := NewTracker()
		if tracker.Release(wallet2, 1, 0) {
			t.Error("expected release on unknown wallet to be skipped")
		}
	})
}

func TestTracker_ConcurrentAcquireIsUnique(t *testing.T) {
	tracker := NewTracker()
	const n = 50

	var wg sync.WaitGroup
	seen := make(chan uint64, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seen <- tracker.Acquire(wallet1, 1, 10).Nonce
		}()
	}
	wg.Wait()
	close(seen)

	unique := make(map[uint64]bool)
	for nonce := range seen {
		if unique[nonce] {
			t.Fatalf("nonce %d handed out twice", nonce)
		}
		unique[nonce] = true
	}
	for i := uint64(10); i < 10+n; i++ {
		if !unique[i] {
			t.Errorf("expected nonce %d to be handed out", i)
		}
	}
}
