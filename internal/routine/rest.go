package routine

import (
	"context"

	"github.com/genoclaw/artifacts-agent/internal/charctx"
	"github.com/genoclaw/artifacts-agent/internal/clock"
)

// Rest rests the character until its HP recovers past the configured
// target percentage, spec.md §4.I.
type Rest struct {
	deps Deps
}

func (r *Rest) Name() string     { return "rest" }
func (r *Rest) Priority() int    { return PriorityRest }

func hpPct(cc *charctx.Context) float64 {
	p := cc.Get()
	if p.MaxHP == 0 {
		return 100
	}
	return float64(p.HP) / float64(p.MaxHP) * 100
}

func (r *Rest) CanRun(ctx context.Context, cc *charctx.Context) (bool, error) {
	return hpPct(cc) <= float64(cc.Settings().RestTriggerPct), nil
}

func (r *Rest) Execute(ctx context.Context, cc *charctx.Context) error {
	target := float64(cc.Settings().RestTargetPct)
	for hpPct(cc) < target {
		res, err := r.deps.API.Rest(ctx, cc.Name())
		if err != nil {
			return err
		}
		cc.ApplyActionResult(r.deps.Clock.Now(), res)
		if err := clock.WaitUntil(ctx, r.deps.Clock, cc.CooldownUntil()); err != nil {
			return err
		}
		if res.Character == nil {
			// fake/collaborator didn't echo a snapshot; refresh explicitly
			// rather than looping forever on a stale HP reading.
			if err := cc.Refresh(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}
