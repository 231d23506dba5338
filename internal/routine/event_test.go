package routine

import (
	"context"
	"testing"
	"time"

	"github.com/genoclaw/artifacts-agent/internal/charctx"
	"github.com/genoclaw/artifacts-agent/internal/clock"
	"github.com/genoclaw/artifacts-agent/internal/gamedata"
	"github.com/genoclaw/artifacts-agent/internal/gameapi"
	"github.com/genoclaw/artifacts-agent/internal/gameapitest"
)

type stubEventSource struct {
	events []gameapi.ActiveEvent
}

func (s stubEventSource) ActiveEvents(ctx context.Context) ([]gameapi.ActiveEvent, error) {
	return s.events, nil
}

func strongMonster() gameapi.Monster {
	return gameapi.Monster{Code: "chicken", HP: 10, Attack: gameapi.ElementStats{Fire: 1}}
}

func TestEventCanRunSkipsWhenNoEligibleEventIsActive(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	api := gameapitest.New()
	api.SeedCharacter(gameapi.PlayerLive{Name: "Worker", HP: 100, MaxHP: 100, Attack: gameapi.ElementStats{Fire: 50}})
	deps := newTestDeps(t, api, clk)
	deps.Data = gamedata.NewStatic([]gameapi.Monster{strongMonster()}, nil, nil)
	deps.Events = stubEventSource{} // nothing active

	cc := charctx.New(api, clk, gameapi.PlayerLive{Name: "Worker", HP: 100, MaxHP: 100, Attack: gameapi.ElementStats{Fire: 50}}, charctx.Settings{})
	e := &Event{deps: deps}

	ok, err := e.CanRun(context.Background(), cc)
	if err != nil {
		t.Fatalf("CanRun: %v", err)
	}
	if ok {
		t.Fatalf("expected CanRun false with no active events")
	}
}

func TestEventCanRunRejectsEventEndingTooSoon(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	api := gameapitest.New()
	api.SeedCharacter(gameapi.PlayerLive{Name: "Worker", HP: 100, MaxHP: 100, Attack: gameapi.ElementStats{Fire: 50}})
	deps := newTestDeps(t, api, clk)
	deps.Data = gamedata.NewStatic([]gameapi.Monster{strongMonster()}, nil, nil)
	deps.Events = stubEventSource{events: []gameapi.ActiveEvent{
		{Code: "ev1", MonsterCode: "chicken", ExpiresAt: clk.Now().Add(1 * time.Second)},
	}}

	cc := charctx.New(api, clk, gameapi.PlayerLive{Name: "Worker", HP: 100, MaxHP: 100, Attack: gameapi.ElementStats{Fire: 50}},
		charctx.Settings{EventMinTimeRemaining: 30 * time.Second})
	e := &Event{deps: deps}

	ok, err := e.CanRun(context.Background(), cc)
	if err != nil {
		t.Fatalf("CanRun: %v", err)
	}
	if ok {
		t.Fatalf("expected CanRun false: event expires before the minimum remaining time")
	}
}

func TestEventExecuteMovesThenFightsAnEligibleTarget(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	api := gameapitest.New()
	api.SeedTiles(gameapi.MapTile{Position: gameapi.Position{X: 5, Y: 5}, ContentType: gameapi.ContentMonster, ContentCode: "chicken"})
	api.SeedCharacter(gameapi.PlayerLive{Name: "Worker", HP: 100, MaxHP: 100, Attack: gameapi.ElementStats{Fire: 50}})
	deps := newTestDeps(t, api, clk)
	deps.Data = gamedata.NewStatic([]gameapi.Monster{strongMonster()}, nil, nil)
	deps.Events = stubEventSource{events: []gameapi.ActiveEvent{
		{Code: "ev1", MonsterCode: "chicken", ExpiresAt: clk.Now().Add(time.Hour)},
	}}

	cc := charctx.New(api, clk, gameapi.PlayerLive{Name: "Worker", HP: 100, MaxHP: 100, Attack: gameapi.ElementStats{Fire: 50}}, charctx.Settings{})
	e := &Event{deps: deps}

	if err := e.Execute(context.Background(), cc); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !cc.IsAt(5, 5) {
		t.Fatalf("expected character to move to the event monster's tile, got %+v", cc.Position())
	}
	if len(api.MoveCalls) != 1 {
		t.Fatalf("expected exactly one move call, got %d", len(api.MoveCalls))
	}
}

func TestEventCanRunHonorsCooldownBetweenRuns(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	api := gameapitest.New()
	api.SeedTiles(gameapi.MapTile{Position: gameapi.Position{X: 5, Y: 5}, ContentType: gameapi.ContentMonster, ContentCode: "chicken"})
	api.SeedCharacter(gameapi.PlayerLive{Name: "Worker", HP: 100, MaxHP: 100, Attack: gameapi.ElementStats{Fire: 50}})
	deps := newTestDeps(t, api, clk)
	deps.Data = gamedata.NewStatic([]gameapi.Monster{strongMonster()}, nil, nil)
	deps.Events = stubEventSource{events: []gameapi.ActiveEvent{
		{Code: "ev1", MonsterCode: "chicken", ExpiresAt: clk.Now().Add(time.Hour)},
	}}

	cc := charctx.New(api, clk, gameapi.PlayerLive{Name: "Worker", HP: 100, MaxHP: 100, Attack: gameapi.ElementStats{Fire: 50}},
		charctx.Settings{EventCooldown: time.Minute})
	e := &Event{deps: deps}

	if err := e.Execute(context.Background(), cc); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	ok, err := e.CanRun(context.Background(), cc)
	if err != nil {
		t.Fatalf("CanRun: %v", err)
	}
	if ok {
		t.Fatalf("expected CanRun false immediately after a run, within the event cooldown window")
	}
}
