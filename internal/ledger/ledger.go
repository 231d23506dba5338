// Package ledger implements the process-wide inventory ledger of spec.md
// §4.C: a refreshable bank cache plus a reservation map, serialized so
// concurrent characters never double-count shared bank contents.
package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/genoclaw/artifacts-agent/internal/clock"
	"github.com/genoclaw/artifacts-agent/internal/gameapi"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultTTL = 2 * time.Minute

// Reservation is a non-durable hold against a bank code's availability,
// spec.md §3 "Reservation".
type Reservation struct {
	ID        string
	Code      string
	Quantity  int
	Owner     string
	CreatedAt time.Time
}

// CharacterInventory is the minimal view the ledger needs of a carried
// inventory, to compute globalCount and the includeChar knob of
// availableBankCount without importing charctx.
type CharacterInventory interface {
	ItemCount(code string) int
}

// Ledger is the single process-wide instance spec.md §5 requires: every
// mutation (reserve/release/applyBankDelta) is atomic with respect to
// every other mutation, and readers see a consistent snapshot.
type Ledger struct {
	clock clock.Clock
	log   *zap.Logger
	api   gameapi.Client

	mu           sync.Mutex
	bank         map[string]int // code -> quantity
	gold         int
	reservations map[string]Reservation
	byCode       map[string]map[string]int // code -> reservationID -> qty, for fast sums

	fetchedAt         time.Time
	ttl               time.Duration
	slots             int
	nextExpansionCost int

	// inflight collapses concurrent refreshes into one shared fetch, per
	// spec.md §4.C "concurrent callers share one inflight fetch".
	inflight chan struct{}

	characters map[string]CharacterInventory
}

// New constructs an empty ledger. Call RegisterCharacter for every
// character whose carried inventory should count toward globalCount.
func New(api gameapi.Client, c clock.Clock, log *zap.Logger) *Ledger {
	return &Ledger{
		clock:        c,
		log:          log,
		api:          api,
		bank:         make(map[string]int),
		reservations: make(map[string]Reservation),
		byCode:       make(map[string]map[string]int),
		ttl:          defaultTTL,
		characters:   make(map[string]CharacterInventory),
	}
}

// RegisterCharacter wires a character's live inventory into globalCount.
func (l *Ledger) RegisterCharacter(name string, inv CharacterInventory) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.characters[name] = inv
}

// GetBankItems returns the cached (or freshly fetched) bank contents in
// ascending code order. forceRefresh bypasses the TTL.
func (l *Ledger) GetBankItems(ctx context.Context, forceRefresh bool) ([]gameapi.InventorySlot, error) {
	l.mu.Lock()
	stale := forceRefresh || l.clock.Now().After(l.fetchedAt.Add(l.ttl))
	if !stale {
		items := l.snapshotLocked()
		l.mu.Unlock()
		return items, nil
	}
	if l.inflight != nil {
		ch := l.inflight
		l.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		l.mu.Lock()
		items := l.snapshotLocked()
		l.mu.Unlock()
		return items, nil
	}
	done := make(chan struct{})
	l.inflight = done
	l.mu.Unlock()

	err := l.refresh(ctx)

	l.mu.Lock()
	l.inflight = nil
	close(done)
	items := l.snapshotLocked()
	l.mu.Unlock()
	return items, err
}

func (l *Ledger) snapshotLocked() []gameapi.InventorySlot {
	codes := make([]string, 0, len(l.bank))
	for code := range l.bank {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	out := make([]gameapi.InventorySlot, 0, len(codes))
	for _, code := range codes {
		out = append(out, gameapi.InventorySlot{Code: code, Quantity: l.bank[code]})
	}
	return out
}

func (l *Ledger) refresh(ctx context.Context) error {
	all := make(map[string]int)
	gold := 0
	page := 1
	for {
		resp, err := l.api.GetBankItems(ctx, gameapi.BankItemsQuery{Page: page, Size: 100})
		if err != nil {
			l.log.Warn("bank refresh failed, keeping previous cache", zap.Error(err))
			return err
		}
		for _, it := range resp.Items {
			all[it.Code] += it.Quantity
		}
		gold = resp.Gold
		if page == 1 {
			l.mu.Lock()
			l.slots = resp.Slots
			l.nextExpansionCost = resp.NextExpansionCost
			l.mu.Unlock()
		}
		if page >= resp.TotalPages || resp.TotalPages == 0 {
			break
		}
		page++
	}

	l.mu.Lock()
	l.bank = all
	l.gold = gold
	l.fetchedAt = l.clock.Now()
	l.mu.Unlock()
	return nil
}

// NextExpansionCost returns the cached cost of the next bank slot
// expansion, as last reported by the bank items endpoint.
func (l *Ledger) NextExpansionCost() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.nextExpansionCost
}

// BankSlots returns the cached total bank slot count.
func (l *Ledger) BankSlots() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.slots
}

// InvalidateBank sets the TTL to zero so the next GetBankItems refreshes.
func (l *Ledger) InvalidateBank(reason string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fetchedAt = time.Time{}
	if l.log != nil {
		l.log.Debug("bank cache invalidated", zap.String("reason", reason))
	}
}

// BankCount returns the cached quantity for code.
func (l *Ledger) BankCount(code string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.bank[code]
}

// BankGold returns the cached bank gold total.
func (l *Ledger) BankGold() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.gold
}

func (l *Ledger) reservedLocked(code string) int {
	sum := 0
	for _, qty := range l.byCode[code] {
		sum += qty
	}
	return sum
}

// AvailableBankCount implements spec.md §4.C's formula:
//
//	bankCount(code) - Σ reservations(code) + (inventoryCount(includeChar, code) if set)
func (l *Ledger) AvailableBankCount(code, includeChar string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	avail := l.bank[code] - l.reservedLocked(code)
	if includeChar != "" {
		if inv, ok := l.characters[includeChar]; ok {
			avail += inv.ItemCount(code)
		}
	}
	return avail
}

// GlobalCount returns bank quantity plus every registered character's
// carried quantity for code — spec.md §4.C: "used by recycler-style
// logic to judge 'do we ever have one?'".
func (l *Ledger) GlobalCount(code string) int {
	l.mu.Lock()
	total := l.bank[code]
	invs := make([]CharacterInventory, 0, len(l.characters))
	for _, inv := range l.characters {
		invs = append(invs, inv)
	}
	l.mu.Unlock()
	for _, inv := range invs {
		total += inv.ItemCount(code)
	}
	return total
}

// Reserve atomically checks availability and records a reservation,
// returning "" on failure. Owner is typically the claiming character's
// name.
func (l *Ledger) Reserve(code string, qty int, owner string) string {
	if qty <= 0 {
		return ""
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	avail := l.bank[code] - l.reservedLocked(code)
	if avail < qty {
		return ""
	}
	return l.reserveLocked(code, qty, owner)
}

func (l *Ledger) reserveLocked(code string, qty int, owner string) string {
	id := uuid.NewString()
	l.reservations[id] = Reservation{ID: id, Code: code, Quantity: qty, Owner: owner, CreatedAt: l.clock.Now()}
	if l.byCode[code] == nil {
		l.byCode[code] = make(map[string]int)
	}
	l.byCode[code][id] = qty
	return id
}

// ReserveRequest is one line of a reserveMany call.
type ReserveRequest struct {
	Code     string
	Quantity int
}

// ReserveManyResult is the all-or-nothing outcome of ReserveMany.
type ReserveManyResult struct {
	OK           bool
	Reservations []string
	Reason       string
}

// ReserveMany reserves every line atomically: if any single line cannot
// be reserved, no reservation is persisted (spec.md §4.C).
func (l *Ledger) ReserveMany(requests []ReserveRequest, owner string) ReserveManyResult {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Merge duplicate codes within the request so a single call asking
	// for the same code twice is checked against combined demand.
	need := make(map[string]int)
	order := make([]string, 0, len(requests))
	for _, r := range requests {
		if r.Quantity <= 0 {
			continue
		}
		if _, seen := need[r.Code]; !seen {
			order = append(order, r.Code)
		}
		need[r.Code] += r.Quantity
	}
	for _, code := range order {
		avail := l.bank[code] - l.reservedLocked(code)
		if avail < need[code] {
			return ReserveManyResult{OK: false, Reason: fmt.Sprintf("insufficient %s: need %d, have %d available", code, need[code], avail)}
		}
	}
	ids := make([]string, 0, len(order))
	for _, code := range order {
		ids = append(ids, l.reserveLocked(code, need[code], owner))
	}
	return ReserveManyResult{OK: true, Reservations: ids}
}

// Release drops a reservation. Idempotent.
func (l *Ledger) Release(reservationID string) {
	if reservationID == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	res, ok := l.reservations[reservationID]
	if !ok {
		return
	}
	delete(l.reservations, reservationID)
	if m := l.byCode[res.Code]; m != nil {
		delete(m, reservationID)
		if len(m) == 0 {
			delete(l.byCode, res.Code)
		}
	}
}

// Direction of a bank delta.
type Direction int

const (
	Withdraw Direction = iota
	Deposit
)

// ApplyBankDelta mutates the cache to reflect a completed withdraw or
// deposit. On withdraw, if owner held a reservation for (code, qty) it is
// also decremented from the reservation so release() afterward is a
// clean no-op rather than double-subtracting.
func (l *Ledger) ApplyBankDelta(items []gameapi.InventorySlot, dir Direction, owner string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, it := range items {
		switch dir {
		case Withdraw:
			l.bank[it.Code] -= it.Quantity
			if l.bank[it.Code] < 0 {
				l.bank[it.Code] = 0
			}
			remaining := it.Quantity
			for id, qty := range l.byCode[it.Code] {
				res := l.reservations[id]
				if remaining <= 0 || res.Owner != owner {
					continue
				}
				take := min(qty, remaining)
				remaining -= take
				res.Quantity -= take
				l.byCode[it.Code][id] = res.Quantity
				l.reservations[id] = res
				if res.Quantity == 0 {
					delete(l.reservations, id)
					delete(l.byCode[it.Code], id)
				}
			}
		case Deposit:
			l.bank[it.Code] += it.Quantity
		}
	}
}

// ApplyBankGoldDelta mutates the cached gold total.
func (l *Ledger) ApplyBankGoldDelta(qty int, dir Direction) {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch dir {
	case Withdraw:
		l.gold -= qty
		if l.gold < 0 {
			l.gold = 0
		}
	case Deposit:
		l.gold += qty
	}
}

// TotalReserved returns Σ reservations(code) — exposed for tests
// verifying the invariant of spec.md §8.
func (l *Ledger) TotalReserved(code string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reservedLocked(code)
}
