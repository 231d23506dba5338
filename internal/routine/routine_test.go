package routine

import (
	"context"
	"testing"
	"time"

	"github.com/genoclaw/artifacts-agent/internal/banktravel"
	"github.com/genoclaw/artifacts-agent/internal/bankops"
	"github.com/genoclaw/artifacts-agent/internal/charctx"
	"github.com/genoclaw/artifacts-agent/internal/clock"
	"github.com/genoclaw/artifacts-agent/internal/gameapi"
	"github.com/genoclaw/artifacts-agent/internal/gameapitest"
	"github.com/genoclaw/artifacts-agent/internal/ledger"
	"go.uber.org/zap"
)

func newTestDeps(t *testing.T, api *gameapitest.Fake, clk clock.Clock) Deps {
	t.Helper()
	log := zap.NewNop()
	led := ledger.New(api, clk, log)
	travel := banktravel.NewPlanner(api, clk, log)
	bank := bankops.New(api, led, travel, nil, clk, log)
	return Deps{API: api, Bank: bank, Travel: travel, Ledger: led, Clock: clk, Log: log}
}

func TestRestCanRunThresholdAndExecuteRecovers(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	api := gameapitest.New()
	api.SeedCharacter(gameapi.PlayerLive{Name: "Worker", HP: 20, MaxHP: 100})
	deps := newTestDeps(t, api, clk)

	cc := charctx.New(api, clk, gameapi.PlayerLive{Name: "Worker", HP: 20, MaxHP: 100},
		charctx.Settings{RestTriggerPct: 30, RestTargetPct: 90})

	r := &Rest{deps: deps}
	ok, err := r.CanRun(context.Background(), cc)
	if err != nil {
		t.Fatalf("CanRun: %v", err)
	}
	if !ok {
		t.Fatalf("expected CanRun true at 20%% HP with a 30%% trigger")
	}

	if err := r.Execute(context.Background(), cc); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if hpPct(cc) < 90 {
		t.Fatalf("expected HP recovered to at least the target, got %.1f%%", hpPct(cc))
	}

	ok, err = r.CanRun(context.Background(), cc)
	if err != nil {
		t.Fatalf("CanRun: %v", err)
	}
	if ok {
		t.Fatalf("expected CanRun false once HP is above the trigger threshold")
	}
}

func TestDepositBankCanRunRespectsThreshold(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	api := gameapitest.New()
	api.SeedCharacter(gameapi.PlayerLive{Name: "Worker", InventoryCap: 10})
	deps := newTestDeps(t, api, clk)

	cc := charctx.New(api, clk, gameapi.PlayerLive{
		Name: "Worker", InventoryCap: 10,
		Inventory: []gameapi.InventorySlot{{Code: "wood", Quantity: 1}},
	}, charctx.Settings{DepositThreshold: 0.9})

	d := &DepositBank{deps: deps}
	ok, err := d.CanRun(context.Background(), cc)
	if err != nil {
		t.Fatalf("CanRun: %v", err)
	}
	if ok {
		t.Fatalf("expected CanRun false: 1/10 slots is below a 90%% threshold")
	}

	full := make([]gameapi.InventorySlot, 9)
	for i := range full {
		full[i] = gameapi.InventorySlot{Code: "item", Quantity: 1}
	}
	cc2 := charctx.New(api, clk, gameapi.PlayerLive{Name: "Worker", InventoryCap: 10, Inventory: full},
		charctx.Settings{DepositThreshold: 0.9})
	ok, err = d.CanRun(context.Background(), cc2)
	if err != nil {
		t.Fatalf("CanRun: %v", err)
	}
	if !ok {
		t.Fatalf("expected CanRun true: 9/10 slots meets a 90%% threshold")
	}
}

func TestBankExpansionCanRunGatesOnCostAndBuffer(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	api := gameapitest.New()
	api.SeedCharacter(gameapi.PlayerLive{Name: "Worker", Gold: 50})
	api.SeedExpansion(5, 100)
	deps := newTestDeps(t, api, clk)
	if _, err := deps.Ledger.GetBankItems(context.Background(), true); err != nil {
		t.Fatalf("GetBankItems: %v", err)
	}

	cc := charctx.New(api, clk, gameapi.PlayerLive{Name: "Worker", Gold: 50}, charctx.Settings{GoldBuffer: 0})
	b := &BankExpansion{deps: deps}

	ok, err := b.CanRun(context.Background(), cc)
	if err != nil {
		t.Fatalf("CanRun: %v", err)
	}
	if ok {
		t.Fatalf("expected CanRun false: 50 gold on hand is less than a 100 cost")
	}

	api.SeedGold(500)
	deps.Ledger.InvalidateBank("test")
	if _, err := deps.Ledger.GetBankItems(context.Background(), true); err != nil {
		t.Fatalf("GetBankItems: %v", err)
	}
	ok, err = b.CanRun(context.Background(), cc)
	if err != nil {
		t.Fatalf("CanRun: %v", err)
	}
	if !ok {
		t.Fatalf("expected CanRun true once bank gold covers the expansion cost")
	}
}

func TestCompleteTaskCanRunRequiresFinishedProgress(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	api := gameapitest.New()
	deps := newTestDeps(t, api, clk)

	incomplete := charctx.New(api, clk, gameapi.PlayerLive{Name: "Worker", Task: gameapi.TaskState{Total: 5, Progress: 3}}, charctx.Settings{})
	complete := charctx.New(api, clk, gameapi.PlayerLive{Name: "Worker", Task: gameapi.TaskState{Total: 5, Progress: 5}}, charctx.Settings{})

	ct := &CompleteTask{deps: deps}
	ok, err := ct.CanRun(context.Background(), incomplete)
	if err != nil {
		t.Fatalf("CanRun: %v", err)
	}
	if ok {
		t.Fatalf("expected CanRun false while progress < total")
	}

	ok, err = ct.CanRun(context.Background(), complete)
	if err != nil {
		t.Fatalf("CanRun: %v", err)
	}
	if !ok {
		t.Fatalf("expected CanRun true once progress reaches total")
	}
}
