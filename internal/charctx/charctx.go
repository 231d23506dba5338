// Package charctx implements the per-character façade of spec.md §4.H: a
// live snapshot plus the handful of read helpers every routine consults,
// and the single write path (applyActionResult) the scheduler uses to
// fold an action's result back in.
package charctx

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/genoclaw/artifacts-agent/internal/clock"
	"github.com/genoclaw/artifacts-agent/internal/gameapi"
)

// Settings is the per-character configuration subtree every routine
// reads from. It is intentionally a plain value (not an interface) since
// spec.md §4.H only asks for a read-only "settings()" accessor — the
// config package owns validation and defaults.
type Settings struct {
	RestTriggerPct   int
	RestTargetPct    int
	DepositThreshold float64 // fraction of capacity

	KeepByCode map[string]int

	GoldBuffer    int
	MaxGoldPct    float64
	CheckInterval time.Duration

	TravelMode            string // "direct" | "smart"
	AllowRecall           bool
	AllowForestBank       bool
	MinSavingsSeconds     float64
	IncludeReturnToOrigin bool
	MoveSecondsPerTile    float64
	ItemUseSeconds        float64

	EventMinTimeRemaining time.Duration
	EventMaxMonsterType   int
	EventMinWinratePct    float64
	EventCooldown         time.Duration
}

// Context is the façade over one character's live state. The zero value
// is not usable; use New.
type Context struct {
	api gameapi.Client
	clk clock.Clock

	mu            sync.Mutex
	name          string
	live          gameapi.PlayerLive
	cooldownUntil time.Time
	lastRefresh   time.Time
	settings      Settings
}

// New constructs a character context from an initial snapshot. clk stamps
// LastRefresh on Refresh, per spec.md §9's injected-clock redesign;
// ApplyActionResult uses the time its caller passes in.
func New(api gameapi.Client, clk clock.Clock, initial gameapi.PlayerLive, settings Settings) *Context {
	return &Context{
		api:      api,
		clk:      clk,
		name:     initial.Name,
		live:     initial,
		settings: settings,
	}
}

// Name returns the character's stable identifier.
func (c *Context) Name() string {
	return c.name
}

// Get returns a copy of the live snapshot. The copy is shallow: its
// Inventory, SkillLevels and Equipment share storage with the context.
func (c *Context) Get() gameapi.PlayerLive {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live
}

// CooldownUntil returns the absolute time the next action is permitted.
func (c *Context) CooldownUntil() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cooldownUntil
}

// LastRefresh returns when the live snapshot was last re-fetched from the
// API (as opposed to merged in from an action result).
func (c *Context) LastRefresh() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastRefresh
}

// Refresh re-fetches this character's snapshot from the API.
func (c *Context) Refresh(ctx context.Context) error {
	all, err := c.api.GetMyCharacters(ctx)
	if err != nil {
		return err
	}
	for _, p := range all {
		if p.Name == c.name {
			c.mu.Lock()
			c.live = p
			c.lastRefresh = c.clk.Now()
			c.mu.Unlock()
			return nil
		}
	}
	return gameapi.NewDomainError(gameapi.KindCatastrophic, fmt.Sprintf("character %q not found in getMyCharacters response", c.name), nil)
}

// IsAt reports whether the character currently occupies (x, y).
func (c *Context) IsAt(x, y int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live.Position.X == x && c.live.Position.Y == y
}

// Position returns the current tile.
func (c *Context) Position() gameapi.Position {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live.Position
}

// ItemCount returns the carried quantity of code (satisfies
// ledger.CharacterInventory).
func (c *Context) ItemCount(code string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.live.Inventory {
		if s.Code == code {
			return s.Quantity
		}
	}
	return 0
}

// HasItem reports whether the character carries at least qty of code. A
// qty of 0 means "at least one".
func (c *Context) HasItem(code string, qty int) bool {
	if qty <= 0 {
		qty = 1
	}
	return c.ItemCount(code) >= qty
}

// InventoryCount returns the number of occupied inventory slots.
func (c *Context) InventoryCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, s := range c.live.Inventory {
		if s.Quantity > 0 {
			n++
		}
	}
	return n
}

// InventoryCapacity returns the total number of inventory slots.
func (c *Context) InventoryCapacity() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live.InventoryCap
}

// InventoryEmptySlots returns the number of unused slots.
func (c *Context) InventoryEmptySlots() int {
	return c.InventoryCapacity() - c.InventoryCount()
}

// SkillLevel returns the character's level in the named skill, or 0 if
// unknown.
func (c *Context) SkillLevel(skill string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live.SkillLevels[skill]
}

// Settings returns the character's configuration subtree.
func (c *Context) Settings() Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

// ApplyActionResult folds an action's cooldown and (optional) refreshed
// snapshot back into the context, per spec.md §4.H.
func (c *Context) ApplyActionResult(now time.Time, res gameapi.ActionResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if res.Cooldown.TotalSeconds > 0 {
		c.cooldownUntil = now.Add(time.Duration(res.Cooldown.TotalSeconds * float64(time.Second)))
	} else if !res.Cooldown.EndsAt.IsZero() {
		c.cooldownUntil = res.Cooldown.EndsAt
	}
	if res.Character != nil {
		c.live = *res.Character
		c.lastRefresh = now
	}
}
