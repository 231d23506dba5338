package routine

import (
	"context"
	"time"

	"github.com/genoclaw/artifacts-agent/internal/charctx"
	"github.com/genoclaw/artifacts-agent/internal/clock"
	"github.com/genoclaw/artifacts-agent/internal/combat"
	"github.com/genoclaw/artifacts-agent/internal/gameapi"
)

// Event joins a live world event when it is worth fighting, spec.md
// §4.I. One instance is owned by a single character's scheduler loop.
type Event struct {
	deps    Deps
	lastRun time.Time
}

func (e *Event) Name() string  { return "event" }
func (e *Event) Priority() int { return PriorityEvent }

func (e *Event) eligible(ctx context.Context, cc *charctx.Context) (gameapi.ActiveEvent, bool, error) {
	s := cc.Settings()
	if s.EventCooldown > 0 && !e.lastRun.IsZero() && e.deps.Clock.Now().Before(e.lastRun.Add(s.EventCooldown)) {
		return gameapi.ActiveEvent{}, false, nil
	}
	events, err := e.deps.Events.ActiveEvents(ctx)
	if err != nil {
		return gameapi.ActiveEvent{}, false, err
	}
	now := e.deps.Clock.Now()
	for _, ev := range events {
		if ev.ExpiresAt.Sub(now) < s.EventMinTimeRemaining {
			continue
		}
		if s.EventMaxMonsterType > 0 && ev.MonsterType > s.EventMaxMonsterType {
			continue
		}
		monster, ok := e.deps.Data.Monster(ev.MonsterCode)
		if !ok {
			continue
		}
		// The simulator is deterministic (spec.md §4.F), so "winrate" here
		// is binary: a predicted win counts as 100%, a loss as 0%.
		winrate := 0.0
		if combat.CanBeatMonster(cc.Get().Combat(), monster.Combat()) {
			winrate = 100.0
		}
		if winrate < s.EventMinWinratePct {
			continue
		}
		return ev, true, nil
	}
	return gameapi.ActiveEvent{}, false, nil
}

func (e *Event) CanRun(ctx context.Context, cc *charctx.Context) (bool, error) {
	_, ok, err := e.eligible(ctx, cc)
	return ok, err
}

func (e *Event) Execute(ctx context.Context, cc *charctx.Context) error {
	ev, ok, err := e.eligible(ctx, cc)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	tiles, err := e.deps.API.GetMaps(ctx, gameapi.MapsQuery{ContentType: gameapi.ContentMonster})
	if err != nil {
		return err
	}
	var target *gameapi.Position
	for _, t := range tiles {
		if t.ContentCode == ev.MonsterCode {
			p := t.Position
			target = &p
			break
		}
	}
	if target == nil {
		return gameapi.NewDomainError(gameapi.KindNoMapLocation, "event monster has no known map location", nil)
	}
	if !cc.IsAt(target.X, target.Y) {
		res, err := e.deps.API.Move(ctx, cc.Name(), target.X, target.Y)
		if err != nil {
			return err
		}
		cc.ApplyActionResult(e.deps.Clock.Now(), res)
		if err := clock.WaitUntil(ctx, e.deps.Clock, cc.CooldownUntil()); err != nil {
			return err
		}
	}
	outcome, err := e.deps.API.Fight(ctx, cc.Name())
	if err != nil {
		return err
	}
	cc.ApplyActionResult(e.deps.Clock.Now(), outcome.Result)
	e.lastRun = e.deps.Clock.Now()
	return clock.WaitUntil(ctx, e.deps.Clock, cc.CooldownUntil())
}
