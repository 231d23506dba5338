package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/genoclaw/artifacts-agent/internal/clock"
	"github.com/genoclaw/artifacts-agent/internal/gameapi"
	"github.com/genoclaw/artifacts-agent/internal/gameapitest"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestLedger(t *testing.T, api *gameapitest.Fake) *Ledger {
	t.Helper()
	return New(api, clock.NewFake(time.Unix(0, 0)), zap.NewNop())
}

func TestReserveInvariant(t *testing.T) {
	api := gameapitest.New()
	api.SeedBank("iron_ore", 10)
	l := newTestLedger(t, api)
	if _, err := l.GetBankItems(context.Background(), true); err != nil {
		t.Fatalf("GetBankItems: %v", err)
	}

	id1 := l.Reserve("iron_ore", 6, "alice")
	if id1 == "" {
		t.Fatalf("expected first reservation to succeed")
	}
	id2 := l.Reserve("iron_ore", 5, "bob")
	if id2 != "" {
		t.Fatalf("expected second reservation to fail: 6+5 > bankCount 10")
	}
	if got := l.TotalReserved("iron_ore"); got > l.BankCount("iron_ore") {
		t.Fatalf("invariant violated: reserved %d > bankCount %d", got, l.BankCount("iron_ore"))
	}

	id3 := l.Reserve("iron_ore", 4, "bob")
	if id3 == "" {
		t.Fatalf("expected third reservation (4) to succeed: 6+4 == 10")
	}
	if got := l.TotalReserved("iron_ore"); got != 10 {
		t.Fatalf("TotalReserved = %d, want 10", got)
	}

	l.Release(id1)
	if got := l.TotalReserved("iron_ore"); got != 4 {
		t.Fatalf("TotalReserved after release = %d, want 4", got)
	}
}

func TestReserveManyAllOrNothing(t *testing.T) {
	api := gameapitest.New()
	api.SeedBank("wood", 5)
	api.SeedBank("stone", 2)
	l := newTestLedger(t, api)
	if _, err := l.GetBankItems(context.Background(), true); err != nil {
		t.Fatalf("GetBankItems: %v", err)
	}

	result := l.ReserveMany([]ReserveRequest{{Code: "wood", Quantity: 3}, {Code: "stone", Quantity: 5}}, "alice")
	if result.OK {
		t.Fatalf("expected reserveMany to fail: stone has only 2 available")
	}
	if l.TotalReserved("wood") != 0 || l.TotalReserved("stone") != 0 {
		t.Fatalf("a failed reserveMany must not leave partial reservations")
	}

	result = l.ReserveMany([]ReserveRequest{{Code: "wood", Quantity: 3}, {Code: "stone", Quantity: 2}}, "alice")
	if !result.OK {
		t.Fatalf("expected reserveMany to succeed: %s", result.Reason)
	}
	if len(result.Reservations) != 2 {
		t.Fatalf("expected 2 reservation ids, got %d", len(result.Reservations))
	}
}

func TestGetBankItemsConcurrentRefreshCollapses(t *testing.T) {
	api := gameapitest.New()
	api.SeedBank("feather", 7)
	l := newTestLedger(t, api)
	l.InvalidateBank("test")

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.GetBankItems(context.Background(), false); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := l.BankCount("feather"); got != 7 {
		t.Fatalf("BankCount = %d, want 7", got)
	}
}

func TestApplyBankDeltaWithdrawNeverGoesNegative(t *testing.T) {
	api := gameapitest.New()
	api.SeedBank("copper_ring", 2)
	l := newTestLedger(t, api)
	if _, err := l.GetBankItems(context.Background(), true); err != nil {
		t.Fatalf("GetBankItems: %v", err)
	}
	l.ApplyBankDelta([]gameapi.InventorySlot{{Code: "copper_ring", Quantity: 5}}, Withdraw, "alice")
	if got := l.BankCount("copper_ring"); got != 0 {
		t.Fatalf("BankCount = %d, want 0 (floor at zero)", got)
	}
}

func TestGlobalCountIncludesCharacters(t *testing.T) {
	api := gameapitest.New()
	api.SeedBank("birch_wood", 3)
	l := newTestLedger(t, api)
	if _, err := l.GetBankItems(context.Background(), true); err != nil {
		t.Fatalf("GetBankItems: %v", err)
	}
	l.RegisterCharacter("alice", stubInventory{"birch_wood": 4})
	l.RegisterCharacter("bob", stubInventory{"birch_wood": 1})

	require.Equal(t, 8, l.GlobalCount("birch_wood"), "bank plus both characters' carried inventory")
}

type stubInventory map[string]int

func (s stubInventory) ItemCount(code string) int { return s[code] }
