// Package banktravel implements the bank travel planner of spec.md §4.D:
// discover accessible bank tiles, choose between a direct walk and a
// teleport-potion shortcut, and execute the winning method.
package banktravel

import (
	"context"
	"fmt"
	"time"

	"github.com/genoclaw/artifacts-agent/internal/charctx"
	"github.com/genoclaw/artifacts-agent/internal/clock"
	"github.com/genoclaw/artifacts-agent/internal/gameapi"
	"go.uber.org/zap"
)

const tileCacheTTL = 5 * time.Minute

// fallbackTile is used when bank-tile discovery fails outright, per
// spec.md §4.D step 1 ("fallback to one hardcoded tile").
var fallbackTile = gameapi.Position{X: 4, Y: 1, MapID: ""}

// travelPotion names a carried item that teleports the character to a
// fixed destination, per spec.md §4.D step 3.
type travelPotion struct {
	code        string
	destination gameapi.Position
}

var travelPotions = []travelPotion{
	{code: "recall_potion", destination: gameapi.Position{X: 0, Y: 0}},
	{code: "forest_bank_potion", destination: gameapi.Position{X: 7, Y: 13}},
}

// Planner discovers bank tiles and drives a character to one.
type Planner struct {
	api   gameapi.Client
	clock clock.Clock
	log   *zap.Logger

	cachedAt time.Time
	tiles    []gameapi.Position
}

// NewPlanner constructs a Planner. One Planner is shared across
// characters since the bank-tile cache is global (spec.md §5).
func NewPlanner(api gameapi.Client, c clock.Clock, log *zap.Logger) *Planner {
	return &Planner{api: api, clock: c, log: log}
}

func (p *Planner) discover(ctx context.Context) ([]gameapi.Position, error) {
	if !p.cachedAt.IsZero() && p.clock.Now().Before(p.cachedAt.Add(tileCacheTTL)) {
		return p.tiles, nil
	}
	tiles, err := p.api.GetMaps(ctx, gameapi.MapsQuery{ContentType: gameapi.ContentBank})
	if err != nil {
		p.log.Warn("bank tile discovery failed, using fallback tile", zap.Error(err))
		return []gameapi.Position{fallbackTile}, nil
	}
	var out []gameapi.Position
	for _, t := range tiles {
		if t.Unconditional() {
			out = append(out, t.Position)
		}
	}
	if len(out) == 0 {
		out = []gameapi.Position{fallbackTile}
	}
	p.tiles = out
	p.cachedAt = p.clock.Now()
	return out, nil
}

func nearestTile(from gameapi.Position, tiles []gameapi.Position) gameapi.Position {
	best := tiles[0]
	bestDist := manhattan(from, best)
	for _, t := range tiles[1:] {
		if d := manhattan(from, t); d < bestDist {
			best, bestDist = t, d
		}
	}
	return best
}

func manhattan(a, b gameapi.Position) int {
	dx, dy := a.X-b.X, a.Y-b.Y
	if dx < 0 {
		dx = -dx
	}
	if dy < 0 {
		dy = -dy
	}
	return dx + dy
}

// method is one candidate way to reach a bank tile.
type method struct {
	potionCode string // "" means direct move
	via        gameapi.Position
	target     gameapi.Position
	seconds    float64
}

// Settings mirrors the travel knobs of charctx.Settings this package
// actually consumes.
type Settings struct {
	Mode                  string
	AllowRecall           bool
	AllowForestBank       bool
	MinSavingsSeconds     float64
	IncludeReturnToOrigin bool
	MoveSecondsPerTile    float64
	ItemUseSeconds        float64
}

func settingsFrom(s charctx.Settings) Settings {
	return Settings{
		Mode:                  s.TravelMode,
		AllowRecall:           s.AllowRecall,
		AllowForestBank:       s.AllowForestBank,
		MinSavingsSeconds:     s.MinSavingsSeconds,
		IncludeReturnToOrigin: s.IncludeReturnToOrigin,
		MoveSecondsPerTile:    s.MoveSecondsPerTile,
		ItemUseSeconds:        s.ItemUseSeconds,
	}
}

// EnsureAtBank moves the character to an accessible bank tile if it is
// not already standing on one, picking the time-optimal method.
func (p *Planner) EnsureAtBank(ctx context.Context, cc *charctx.Context) error {
	tiles, err := p.discover(ctx)
	if err != nil {
		return err
	}

	origin := cc.Position()
	for _, t := range tiles {
		if t.X == origin.X && t.Y == origin.Y {
			return nil
		}
	}

	settings := settingsFrom(cc.Settings())
	nearestFromOrigin := nearestTile(origin, tiles)
	directSeconds := float64(manhattan(origin, nearestFromOrigin)) * settings.MoveSecondsPerTile
	if settings.IncludeReturnToOrigin {
		directSeconds += float64(manhattan(origin, nearestFromOrigin)) * settings.MoveSecondsPerTile
	}

	best := method{target: nearestFromOrigin, seconds: directSeconds}

	if settings.Mode == "smart" {
		for _, tp := range travelPotions {
			if tp.code == "recall_potion" && !settings.AllowRecall {
				continue
			}
			if tp.code == "forest_bank_potion" && !settings.AllowForestBank {
				continue
			}
			if !cc.HasItem(tp.code, 1) {
				continue
			}
			nearestFromDest := nearestTile(tp.destination, tiles)
			seconds := settings.ItemUseSeconds + float64(manhattan(tp.destination, nearestFromDest))*settings.MoveSecondsPerTile
			if settings.IncludeReturnToOrigin {
				seconds += float64(manhattan(nearestFromDest, origin)) * settings.MoveSecondsPerTile
			}
			if seconds < best.seconds {
				best = method{potionCode: tp.code, via: tp.destination, target: nearestFromDest, seconds: seconds}
			}
		}
	}

	if best.potionCode != "" && directSeconds-best.seconds < settings.MinSavingsSeconds {
		best = method{target: nearestFromOrigin, seconds: directSeconds}
	}

	return p.execute(ctx, cc, best, nearestFromOrigin)
}

func (p *Planner) execute(ctx context.Context, cc *charctx.Context, m method, directFallback gameapi.Position) error {
	if m.potionCode != "" {
		res, err := p.api.UseItem(ctx, cc.Name(), m.potionCode, 1)
		if err != nil {
			p.log.Warn("travel potion use failed, falling back to direct move",
				zap.String("character", cc.Name()), zap.String("potion", m.potionCode), zap.Error(err))
			return p.moveTo(ctx, cc, directFallback)
		}
		cc.ApplyActionResult(p.clock.Now(), res)
		if err := clock.WaitUntil(ctx, p.clock, cc.CooldownUntil()); err != nil {
			return err
		}
	}
	return p.moveTo(ctx, cc, m.target)
}

func (p *Planner) moveTo(ctx context.Context, cc *charctx.Context, target gameapi.Position) error {
	if cc.IsAt(target.X, target.Y) {
		return nil
	}
	res, err := p.api.Move(ctx, cc.Name(), target.X, target.Y)
	if err != nil {
		return fmt.Errorf("move %s to (%d,%d): %w", cc.Name(), target.X, target.Y, err)
	}
	cc.ApplyActionResult(p.clock.Now(), res)
	return clock.WaitUntil(ctx, p.clock, cc.CooldownUntil())
}
