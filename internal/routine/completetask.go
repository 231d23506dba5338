package routine

import (
	"context"

	"github.com/genoclaw/artifacts-agent/internal/charctx"
	"github.com/genoclaw/artifacts-agent/internal/clock"
	"github.com/genoclaw/artifacts-agent/internal/gameapi"
)

// CompleteTask turns in a finished task at the first task-master tile
// GetMaps returns (tiles are not ranked by distance), spec.md §4.I.
type CompleteTask struct {
	deps Deps
}

func (c *CompleteTask) Name() string  { return "complete_task" }
func (c *CompleteTask) Priority() int { return PriorityCompleteTask }

func (c *CompleteTask) CanRun(ctx context.Context, cc *charctx.Context) (bool, error) {
	t := cc.Get().Task
	return t.Total > 0 && t.Progress >= t.Total, nil
}

func (c *CompleteTask) Execute(ctx context.Context, cc *charctx.Context) error {
	tiles, err := c.deps.API.GetMaps(ctx, gameapi.MapsQuery{ContentType: gameapi.ContentTaskMaster})
	if err != nil {
		return err
	}
	if len(tiles) == 0 {
		return gameapi.NewDomainError(gameapi.KindNoMapLocation, "no task-master tile known", nil)
	}
	target := tiles[0].Position
	if !cc.IsAt(target.X, target.Y) {
		res, err := c.deps.API.Move(ctx, cc.Name(), target.X, target.Y)
		if err != nil {
			return err
		}
		cc.ApplyActionResult(c.deps.Clock.Now(), res)
		if err := clock.WaitUntil(ctx, c.deps.Clock, cc.CooldownUntil()); err != nil {
			return err
		}
	}
	res, err := c.deps.API.CompleteTask(ctx, cc.Name())
	if err != nil {
		return err
	}
	cc.ApplyActionResult(c.deps.Clock.Now(), res)
	return nil
}
