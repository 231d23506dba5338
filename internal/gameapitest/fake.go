// Package gameapitest provides an in-memory fake satisfying
// gameapi.Client, used across the module's test suites instead of
// standing up a real HTTP server. Grounded in the constructor-injected
// fake-dependency style spec.md §9 calls for in place of
// `_setDepsForTests`-style monkey patching.
package gameapitest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/genoclaw/artifacts-agent/internal/gameapi"
)

// Fake is a single-process, mutex-guarded stand-in for the game server.
// Zero value is not usable; use New.
type Fake struct {
	mu sync.Mutex

	bank              map[string]int
	bankGold          int
	nextExpansionCost int
	bankSlots         int

	characters map[string]*gameapi.PlayerLive

	tiles []gameapi.MapTile

	// FailLocationCodes marks item codes whose withdraw always fails with
	// a bank_location error (DepositBank does not consult it) — used to exercise spec.md §8
	// scenario 4 (location errors never invalidate the bank cache).
	FailLocationCodes map[string]bool

	// MoveCalls records every Move(x,y) issued, in order.
	MoveCalls []gameapi.Position
	// WithdrawCalls records every WithdrawBank request, in call order,
	// one entry per call (not per line) — spec.md §8 scenario 1 checks
	// "two withdraw calls in request order".
	WithdrawCalls [][]gameapi.InventorySlot
	DepositCalls  [][]gameapi.InventorySlot

	now time.Time
}

func New() *Fake {
	return &Fake{
		bank:              make(map[string]int),
		characters:        make(map[string]*gameapi.PlayerLive),
		FailLocationCodes: make(map[string]bool),
		now:               time.Now(),
	}
}

// SeedBank sets the bank's starting quantity for a code.
func (f *Fake) SeedBank(code string, qty int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bank[code] = qty
}

func (f *Fake) SeedGold(qty int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bankGold = qty
}

// SeedExpansion sets the bank's reported slot count and next expansion
// cost.
func (f *Fake) SeedExpansion(slots, nextCost int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bankSlots = slots
	f.nextExpansionCost = nextCost
}

// SeedCharacter registers (or replaces) a character snapshot.
func (f *Fake) SeedCharacter(p gameapi.PlayerLive) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := p
	f.characters[p.Name] = &cp
}

// SeedTiles registers the map tiles GetMaps will return.
func (f *Fake) SeedTiles(tiles ...gameapi.MapTile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tiles = append(f.tiles, tiles...)
}

func (f *Fake) cooldown(action string, seconds float64) gameapi.Cooldown {
	return gameapi.Cooldown{TotalSeconds: seconds, EndsAt: f.now.Add(time.Duration(seconds * float64(time.Second))), Action: action}
}

func (f *Fake) GetMyCharacters(ctx context.Context) ([]gameapi.PlayerLive, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]gameapi.PlayerLive, 0, len(f.characters))
	names := make([]string, 0, len(f.characters))
	for n := range f.characters {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		out = append(out, *f.characters[n])
	}
	return out, nil
}

func (f *Fake) GetMyDetails(ctx context.Context) ([]gameapi.PlayerLive, error) {
	return f.GetMyCharacters(ctx)
}

func (f *Fake) GetMaps(ctx context.Context, q gameapi.MapsQuery) ([]gameapi.MapTile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []gameapi.MapTile
	for _, t := range f.tiles {
		if q.ContentType != "" && t.ContentType != q.ContentType {
			continue
		}
		if q.X != nil && t.Position.X != *q.X {
			continue
		}
		if q.Y != nil && t.Position.Y != *q.Y {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (f *Fake) requireChar(name string) (*gameapi.PlayerLive, error) {
	c, ok := f.characters[name]
	if !ok {
		return nil, gameapi.NewDomainError(gameapi.KindCatastrophic, fmt.Sprintf("unknown character %q", name), nil)
	}
	return c, nil
}

func (f *Fake) Move(ctx context.Context, charName string, x, y int) (gameapi.ActionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, err := f.requireChar(charName)
	if err != nil {
		return gameapi.ActionResult{}, err
	}
	c.Position.X, c.Position.Y = x, y
	f.MoveCalls = append(f.MoveCalls, c.Position)
	cp := *c
	return gameapi.ActionResult{Cooldown: f.cooldown("move", 3), Character: &cp}, nil
}

func (f *Fake) Fight(ctx context.Context, charName string) (gameapi.FightOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, err := f.requireChar(charName)
	if err != nil {
		return gameapi.FightOutcome{}, err
	}
	cp := *c
	return gameapi.FightOutcome{Won: true, Turns: 1, Result: gameapi.ActionResult{Cooldown: f.cooldown("fight", 10), Character: &cp}}, nil
}

func (f *Fake) Gather(ctx context.Context, charName string) (gameapi.GatherOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, err := f.requireChar(charName)
	if err != nil {
		return gameapi.GatherOutcome{}, err
	}
	cp := *c
	return gameapi.GatherOutcome{Result: gameapi.ActionResult{Cooldown: f.cooldown("gather", 10), Character: &cp}}, nil
}

func (f *Fake) Craft(ctx context.Context, charName, code string, qty int) (gameapi.ActionResult, error) {
	return f.simpleAction(charName, "craft", 15)
}

func (f *Fake) UseItem(ctx context.Context, charName, code string, qty int) (gameapi.ActionResult, error) {
	return f.simpleAction(charName, "use_item", 3)
}

func (f *Fake) Recycle(ctx context.Context, charName, code string, qty int) (gameapi.ActionResult, error) {
	return f.simpleAction(charName, "recycle", 15)
}

func (f *Fake) Equip(ctx context.Context, charName, code string, slot gameapi.EquipmentSlot) (gameapi.ActionResult, error) {
	return f.simpleAction(charName, "equip", 3)
}

func (f *Fake) Unequip(ctx context.Context, charName string, slot gameapi.EquipmentSlot) (gameapi.ActionResult, error) {
	return f.simpleAction(charName, "unequip", 3)
}

func (f *Fake) Rest(ctx context.Context, charName string) (gameapi.ActionResult, error) {
	f.mu.Lock()
	c, err := f.requireChar(charName)
	if err != nil {
		f.mu.Unlock()
		return gameapi.ActionResult{}, err
	}
	c.HP = c.MaxHP
	cp := *c
	f.mu.Unlock()
	return gameapi.ActionResult{Cooldown: f.cooldown("rest", 1), Character: &cp}, nil
}

func (f *Fake) CompleteTask(ctx context.Context, charName string) (gameapi.ActionResult, error) {
	f.mu.Lock()
	c, err := f.requireChar(charName)
	if err != nil {
		f.mu.Unlock()
		return gameapi.ActionResult{}, err
	}
	c.Task = gameapi.TaskState{}
	cp := *c
	f.mu.Unlock()
	return gameapi.ActionResult{Cooldown: f.cooldown("task_complete", 3), Character: &cp}, nil
}

func (f *Fake) simpleAction(charName, action string, seconds float64) (gameapi.ActionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, err := f.requireChar(charName)
	if err != nil {
		return gameapi.ActionResult{}, err
	}
	cp := *c
	return gameapi.ActionResult{Cooldown: f.cooldown(action, seconds), Character: &cp}, nil
}

func (f *Fake) atBank(c *gameapi.PlayerLive) bool {
	for _, t := range f.tiles {
		if t.ContentType == gameapi.ContentBank && t.Position.X == c.Position.X && t.Position.Y == c.Position.Y && t.Position.MapID == c.Position.MapID {
			return true
		}
	}
	return false
}

func (f *Fake) GetBankItems(ctx context.Context, q gameapi.BankItemsQuery) (gameapi.BankPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	codes := make([]string, 0, len(f.bank))
	for code := range f.bank {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	items := make([]gameapi.InventorySlot, 0, len(codes))
	for _, code := range codes {
		if f.bank[code] <= 0 {
			continue
		}
		items = append(items, gameapi.InventorySlot{Code: code, Quantity: f.bank[code]})
	}
	return gameapi.BankPage{
		Items: items, Gold: f.bankGold, Page: 1, Size: len(items), TotalPages: 1,
		Slots: f.bankSlots, NextExpansionCost: f.nextExpansionCost,
	}, nil
}

func (f *Fake) BuyBankExpansionCost() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nextExpansionCost
}

func (f *Fake) WithdrawBank(ctx context.Context, charName string, items []gameapi.InventorySlot) (gameapi.ActionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, err := f.requireChar(charName)
	if err != nil {
		return gameapi.ActionResult{}, err
	}
	if !f.atBank(c) {
		return gameapi.ActionResult{}, gameapi.NewDomainError(gameapi.KindBankLocation, "bank not found on this map", nil)
	}
	f.WithdrawCalls = append(f.WithdrawCalls, append([]gameapi.InventorySlot(nil), items...))
	for _, it := range items {
		if f.FailLocationCodes[it.Code] {
			return gameapi.ActionResult{}, gameapi.NewDomainError(gameapi.KindBankLocation, "bank not found on this map", nil)
		}
		if f.bank[it.Code] < it.Quantity {
			return gameapi.ActionResult{}, gameapi.NewDomainError(gameapi.KindBankAvailability, fmt.Sprintf("not enough %s in bank", it.Code), nil)
		}
	}
	for _, it := range items {
		f.bank[it.Code] -= it.Quantity
		c.Inventory = append(c.Inventory, it)
	}
	cp := *c
	return gameapi.ActionResult{Cooldown: f.cooldown("withdraw_bank", 3), Character: &cp}, nil
}

func (f *Fake) DepositBank(ctx context.Context, charName string, items []gameapi.InventorySlot) (gameapi.ActionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, err := f.requireChar(charName)
	if err != nil {
		return gameapi.ActionResult{}, err
	}
	if !f.atBank(c) {
		return gameapi.ActionResult{}, gameapi.NewDomainError(gameapi.KindBankLocation, "bank not found on this map", nil)
	}
	f.DepositCalls = append(f.DepositCalls, append([]gameapi.InventorySlot(nil), items...))
	for _, it := range items {
		f.bank[it.Code] += it.Quantity
	}
	cp := *c
	return gameapi.ActionResult{Cooldown: f.cooldown("deposit_bank", 3), Character: &cp}, nil
}

func (f *Fake) DepositGold(ctx context.Context, charName string, qty int) (gameapi.ActionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, err := f.requireChar(charName)
	if err != nil {
		return gameapi.ActionResult{}, err
	}
	if !f.atBank(c) {
		return gameapi.ActionResult{}, gameapi.NewDomainError(gameapi.KindBankLocation, "bank not found on this map", nil)
	}
	f.bankGold += qty
	cp := *c
	return gameapi.ActionResult{Cooldown: f.cooldown("deposit_gold", 3), Character: &cp}, nil
}

func (f *Fake) WithdrawGold(ctx context.Context, charName string, qty int) (gameapi.ActionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, err := f.requireChar(charName)
	if err != nil {
		return gameapi.ActionResult{}, err
	}
	if !f.atBank(c) {
		return gameapi.ActionResult{}, gameapi.NewDomainError(gameapi.KindBankLocation, "bank not found on this map", nil)
	}
	if f.bankGold < qty {
		return gameapi.ActionResult{}, gameapi.NewDomainError(gameapi.KindBankAvailability, "not enough gold in bank", nil)
	}
	f.bankGold -= qty
	cp := *c
	return gameapi.ActionResult{Cooldown: f.cooldown("withdraw_gold", 3), Character: &cp}, nil
}

func (f *Fake) BuyBankExpansion(ctx context.Context, charName string) (gameapi.ActionResult, error) {
	return f.simpleAction(charName, "bank_expansion", 3)
}

func (f *Fake) GetAchievements(ctx context.Context, q gameapi.AchievementsQuery) ([]gameapi.Achievement, error) {
	return nil, nil
}

func (f *Fake) GetAccountAchievements(ctx context.Context, account string, q gameapi.AchievementsQuery) ([]gameapi.Achievement, error) {
	return nil, nil
}

func (f *Fake) WaitForCooldown(ctx context.Context, cd gameapi.Cooldown) error {
	return nil
}
