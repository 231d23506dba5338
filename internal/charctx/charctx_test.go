package charctx

import (
	"context"
	"testing"
	"time"

	"github.com/genoclaw/artifacts-agent/internal/clock"
	"github.com/genoclaw/artifacts-agent/internal/gameapi"
	"github.com/genoclaw/artifacts-agent/internal/gameapitest"
)

func TestApplyActionResultAppliesCooldownAndMergesSnapshot(t *testing.T) {
	api := gameapitest.New()
	clk := clock.NewFake(time.Unix(0, 0))
	cc := New(api, clk, gameapi.PlayerLive{Name: "Worker", HP: 50, MaxHP: 100}, Settings{})

	now := time.Unix(1000, 0)
	cc.ApplyActionResult(now, gameapi.ActionResult{
		Cooldown:  gameapi.Cooldown{TotalSeconds: 5},
		Character: &gameapi.PlayerLive{Name: "Worker", HP: 80, MaxHP: 100},
	})

	if got := cc.CooldownUntil(); !got.Equal(now.Add(5 * time.Second)) {
		t.Fatalf("CooldownUntil = %v, want %v", got, now.Add(5*time.Second))
	}
	if got := cc.Get().HP; got != 80 {
		t.Fatalf("HP = %d, want 80 (merged from echoed snapshot)", got)
	}
}

func TestApplyActionResultWithoutSnapshotKeepsLiveState(t *testing.T) {
	api := gameapitest.New()
	clk := clock.NewFake(time.Unix(0, 0))
	cc := New(api, clk, gameapi.PlayerLive{Name: "Worker", HP: 50, MaxHP: 100}, Settings{})

	cc.ApplyActionResult(time.Unix(1000, 0), gameapi.ActionResult{Cooldown: gameapi.Cooldown{TotalSeconds: 3}})
	if got := cc.Get().HP; got != 50 {
		t.Fatalf("HP = %d, want 50 (no snapshot echoed, so unchanged)", got)
	}
}

func TestItemCountAndHasItem(t *testing.T) {
	api := gameapitest.New()
	clk := clock.NewFake(time.Unix(0, 0))
	cc := New(api, clk, gameapi.PlayerLive{
		Name:      "Worker",
		Inventory: []gameapi.InventorySlot{{Code: "wood", Quantity: 4}},
	}, Settings{})

	if cc.ItemCount("wood") != 4 {
		t.Fatalf("ItemCount(wood) = %d, want 4", cc.ItemCount("wood"))
	}
	if cc.ItemCount("stone") != 0 {
		t.Fatalf("ItemCount(stone) = %d, want 0", cc.ItemCount("stone"))
	}
	if !cc.HasItem("wood", 3) {
		t.Fatalf("expected HasItem(wood, 3) true")
	}
	if cc.HasItem("wood", 5) {
		t.Fatalf("expected HasItem(wood, 5) false")
	}
}

func TestInventoryCounts(t *testing.T) {
	api := gameapitest.New()
	clk := clock.NewFake(time.Unix(0, 0))
	cc := New(api, clk, gameapi.PlayerLive{
		Name:         "Worker",
		InventoryCap: 10,
		Inventory:    []gameapi.InventorySlot{{Code: "wood", Quantity: 4}, {Code: "stone", Quantity: 1}},
	}, Settings{})

	if cc.InventoryCount() != 2 {
		t.Fatalf("InventoryCount = %d, want 2", cc.InventoryCount())
	}
	if cc.InventoryEmptySlots() != 8 {
		t.Fatalf("InventoryEmptySlots = %d, want 8", cc.InventoryEmptySlots())
	}
}

func TestRefreshFetchesMatchingCharacterByName(t *testing.T) {
	api := gameapitest.New()
	api.SeedCharacter(gameapi.PlayerLive{Name: "Worker", HP: 100, MaxHP: 100})
	clk := clock.NewFake(time.Unix(0, 0))
	cc := New(api, clk, gameapi.PlayerLive{Name: "Worker", HP: 10, MaxHP: 100}, Settings{})

	if err := cc.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if got := cc.Get().HP; got != 100 {
		t.Fatalf("HP after Refresh = %d, want 100", got)
	}
}

func TestRefreshUnknownCharacterErrors(t *testing.T) {
	api := gameapitest.New()
	clk := clock.NewFake(time.Unix(0, 0))
	cc := New(api, clk, gameapi.PlayerLive{Name: "Ghost"}, Settings{})
	if err := cc.Refresh(context.Background()); err == nil {
		t.Fatalf("expected Refresh to error when the character is absent from the roster")
	}
}

func TestRefreshStampsLastRefreshFromInjectedClock(t *testing.T) {
	api := gameapitest.New()
	api.SeedCharacter(gameapi.PlayerLive{Name: "Worker", HP: 100, MaxHP: 100})
	clk := clock.NewFake(time.Unix(1000, 0))
	cc := New(api, clk, gameapi.PlayerLive{Name: "Worker", HP: 10, MaxHP: 100}, Settings{})

	if !cc.LastRefresh().IsZero() {
		t.Fatalf("LastRefresh = %v, want zero before any refresh", cc.LastRefresh())
	}

	clk.Advance(30 * time.Second)
	if err := cc.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if got := cc.LastRefresh(); !got.Equal(clk.Now()) {
		t.Fatalf("LastRefresh = %v, want the injected clock's current time %v", got, clk.Now())
	}
}
