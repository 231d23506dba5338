// Package orderboard implements the persistent cross-character work
// queue of spec.md §4.G: a single JSON file is the source of truth, with
// an in-memory mirror flushed after every mutation.
package orderboard

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/genoclaw/artifacts-agent/internal/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SourceType is one of the three ways an order's item can be produced.
type SourceType string

const (
	SourceGather SourceType = "gather"
	SourceFight  SourceType = "fight"
	SourceCraft  SourceType = "craft"
)

// Status is the lifecycle stage of an Order.
type Status string

const (
	StatusOpen      Status = "open"
	StatusClaimed   Status = "claimed"
	StatusFulfilled Status = "fulfilled"
)

// Claim is the exclusive, time-bounded lease one character holds on an
// order, spec.md §3 "Lease".
type Claim struct {
	CharName      string    `json:"charName"`
	LeaseExpiresAt time.Time `json:"leaseExpiresAt"`
}

// Order is a cross-character request for a quantity of an item from a
// specific source, spec.md §3 "Order".
type Order struct {
	ID            string     `json:"id"`
	ItemCode      string     `json:"itemCode"`
	SourceType    SourceType `json:"sourceType"`
	SourceCode    string     `json:"sourceCode"`
	RequesterName string     `json:"requesterName"`
	RecipeCode    string     `json:"recipeCode,omitempty"`
	GatherSkill   string     `json:"gatherSkill,omitempty"`
	SourceLevel   int        `json:"sourceLevel"`
	RequestedQty  int        `json:"requestedQty"`
	RemainingQty  int        `json:"remainingQty"`
	Status        Status     `json:"status"`
	Claim         *Claim     `json:"claim,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// BlockEntry is one per-character skip decision, spec.md §3 "Block
// Registry".
type BlockEntry struct {
	Reason string    `json:"reason"`
	Until  time.Time `json:"until,omitempty"` // zero means permanent-within-run
}

// BlockReason enumerates the reasons spec.md §4.I names.
const (
	BlockInsufficientSkill  = "insufficient_skill"
	BlockNoMapLocation      = "no_map_location"
	BlockEventOnlyNotActive = "event_only_not_active"
	BlockMissingGatherSource = "missing_gather_source"
)

// DefaultBlockDuration is applied to BlockMissingGatherSource, the one
// reason spec.md §3 marks as time-bounded by default rather than
// permanent-within-run.
const DefaultBlockDuration = 10 * time.Minute

type document struct {
	Orders []*Order                          `json:"orders"`
	Blocks map[string]map[string]BlockEntry `json:"blocks"` // charName -> orderID -> entry
}

// Board is the in-memory mirror of the order board JSON file. All
// methods are safe for concurrent use; mutations are serialized and
// flushed to disk before returning (spec.md §5: "file writes are full
// rewrite through a temp file + rename").
type Board struct {
	mu   sync.Mutex
	path string
	clk  clock.Clock
	log  *zap.Logger

	orders map[string]*Order
	blocks map[string]map[string]BlockEntry
}

// Open loads (or creates empty) the order board at path, compacting any
// stale claims whose lease has already expired back to open — spec.md
// §4.G "initializeOrderBoard".
func Open(path string, clk clock.Clock, log *zap.Logger) (*Board, error) {
	b := &Board{
		path:   path,
		clk:    clk,
		log:    log,
		orders: make(map[string]*Order),
		blocks: make(map[string]map[string]BlockEntry),
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var doc document
		if jsonErr := json.Unmarshal(data, &doc); jsonErr != nil {
			return nil, fmt.Errorf("parse order board %s: %w", path, jsonErr)
		}
		for _, o := range doc.Orders {
			b.orders[o.ID] = o
		}
		if doc.Blocks != nil {
			b.blocks = doc.Blocks
		}
	case os.IsNotExist(err):
		// start empty
	default:
		return nil, fmt.Errorf("read order board %s: %w", path, err)
	}

	now := clk.Now()
	changed := false
	for _, o := range b.orders {
		if o.Status == StatusClaimed && o.Claim != nil && !o.Claim.LeaseExpiresAt.After(now) {
			o.Status = StatusOpen
			o.Claim = nil
			changed = true
		}
	}
	if changed {
		if err := b.flushLocked(); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (b *Board) flushLocked() error {
	orders := make([]*Order, 0, len(b.orders))
	for _, o := range b.orders {
		orders = append(orders, o)
	}
	doc := document{Orders: orders, Blocks: b.blocks}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal order board: %w", err)
	}

	dir := filepath.Dir(b.path)
	tmp, err := os.CreateTemp(dir, ".orderboard-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp order board: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp order board: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp order board: %w", err)
	}
	if err := os.Rename(tmpPath, b.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename order board into place: %w", err)
	}
	return nil
}

// CreateOrMergeRequest describes a new unit of demand for an item.
type CreateOrMergeRequest struct {
	RequesterName string
	ItemCode      string
	SourceType    SourceType
	SourceCode    string
	RecipeCode    string
	GatherSkill   string
	SourceLevel   int
	Quantity      int
}

// CreateOrMerge inserts a new order, or — if an open/claimed order already
// exists for the same (itemCode, sourceType, sourceCode) — increments its
// requested and remaining quantities instead. Merging never re-assigns
// the existing order's ID (spec.md §4.G invariant: "Order IDs are stable
// across restarts and across merges").
func (b *Board) CreateOrMerge(req CreateOrMergeRequest) (*Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, o := range b.orders {
		if o.Status == StatusFulfilled {
			continue
		}
		if o.ItemCode == req.ItemCode && o.SourceType == req.SourceType && o.SourceCode == req.SourceCode {
			o.RequestedQty += req.Quantity
			o.RemainingQty += req.Quantity
			if err := b.flushLocked(); err != nil {
				return nil, err
			}
			return o, nil
		}
	}

	o := &Order{
		ID:            uuid.NewString(),
		ItemCode:      req.ItemCode,
		SourceType:    req.SourceType,
		SourceCode:    req.SourceCode,
		RequesterName: req.RequesterName,
		RecipeCode:    req.RecipeCode,
		GatherSkill:   req.GatherSkill,
		SourceLevel:   req.SourceLevel,
		RequestedQty:  req.Quantity,
		RemainingQty:  req.Quantity,
		Status:        StatusOpen,
		CreatedAt:     b.clk.Now(),
	}
	b.orders[o.ID] = o
	if err := b.flushLocked(); err != nil {
		return nil, err
	}
	return o, nil
}

// ClaimOrder atomically claims order id for charName if it is open, or
// claimed under a lease that has already expired. Returns nil if the
// claim could not be taken.
func (b *Board) ClaimOrder(id, charName string, leaseDuration time.Duration) (*Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	o, ok := b.orders[id]
	if !ok {
		return nil, nil
	}
	now := b.clk.Now()
	available := o.Status == StatusOpen || (o.Status == StatusClaimed && o.Claim != nil && !o.Claim.LeaseExpiresAt.After(now))
	if !available {
		return nil, nil
	}
	o.Status = StatusClaimed
	o.Claim = &Claim{CharName: charName, LeaseExpiresAt: now.Add(leaseDuration)}
	if err := b.flushLocked(); err != nil {
		return nil, err
	}
	cp := *o
	return &cp, nil
}

// ReleaseClaim reverts order id to open if it is still claimed by
// charName. Idempotent.
func (b *Board) ReleaseClaim(id, charName string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.orders[id]
	if !ok || o.Claim == nil || o.Claim.CharName != charName {
		return nil
	}
	o.Status = StatusOpen
	o.Claim = nil
	return b.flushLocked()
}

// DepositLine is one deposited item, as reported by bankops after a
// successful deposit.
type DepositLine struct {
	Code     string
	Quantity int
}

// Contribution records one order's credit from a deposit, returned by
// RecordDeposits for the caller (bankops) to log or surface on the
// status bus.
type Contribution struct {
	OrderID       string
	ItemCode      string
	Quantity      int
	Status        Status
	Opportunistic bool
}

// RecordDeposits is the deposit hook of spec.md §4.G: for each deposited
// line, credit it against matching orders, preferring ones claimed by
// charName and falling back to open orders opportunistically. Spilling
// continues until the line is exhausted or no matching order remains
// with RemainingQty > 0.
func (b *Board) RecordDeposits(charName string, items []DepositLine) ([]Contribution, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var contributions []Contribution
	changed := false

	for _, line := range items {
		remaining := line.Quantity
		if remaining <= 0 {
			continue
		}

		var claimed, open []*Order
		for _, o := range b.orders {
			if o.ItemCode != line.Code || o.RemainingQty <= 0 {
				continue
			}
			if o.Status == StatusClaimed && o.Claim != nil && o.Claim.CharName == charName {
				claimed = append(claimed, o)
			} else if o.Status == StatusOpen {
				open = append(open, o)
			}
		}
		candidates := append(claimed, open...)

		for _, o := range candidates {
			if remaining <= 0 {
				break
			}
			take := o.RemainingQty
			if take > remaining {
				take = remaining
			}
			opportunistic := !(o.Status == StatusClaimed && o.Claim != nil && o.Claim.CharName == charName)
			o.RemainingQty -= take
			remaining -= take
			changed = true
			if o.RemainingQty == 0 {
				o.Status = StatusFulfilled
				o.Claim = nil
			}
			contributions = append(contributions, Contribution{
				OrderID:       o.ID,
				ItemCode:      o.ItemCode,
				Quantity:      take,
				Status:        o.Status,
				Opportunistic: opportunistic,
			})
		}
	}

	if changed {
		if err := b.flushLocked(); err != nil {
			return contributions, err
		}
	}
	return contributions, nil
}

// Snapshot is a defensive copy of the board for status-bus consumption.
type Snapshot struct {
	Orders []Order
}

// GetSnapshot returns a deep, defensive copy of every order.
func (b *Board) GetSnapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Order, 0, len(b.orders))
	for _, o := range b.orders {
		cp := *o
		if o.Claim != nil {
			c := *o.Claim
			cp.Claim = &c
		}
		out = append(out, cp)
	}
	return Snapshot{Orders: out}
}

// BlockForCharacter records a per-character skip decision for orderID.
// A zero until means permanent-within-run.
func (b *Board) BlockForCharacter(charName, orderID, reason string, until time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.blocks[charName] == nil {
		b.blocks[charName] = make(map[string]BlockEntry)
	}
	b.blocks[charName][orderID] = BlockEntry{Reason: reason, Until: until}
	return b.flushLocked()
}

// IsBlocked reports whether charName is currently blocked from orderID.
func (b *Board) IsBlocked(charName, orderID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	entry, ok := b.blocks[charName][orderID]
	if !ok {
		return false
	}
	if entry.Until.IsZero() {
		return true
	}
	return b.clk.Now().Before(entry.Until)
}

// OpenOrdersFor returns every open order not blocked for this character,
// for the skill-rotation routine to scan. It does not check whether the
// character can work the order's item.
func (b *Board) OpenOrdersFor(charName string) []Order {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Order
	for _, o := range b.orders {
		if o.Status != StatusOpen {
			continue
		}
		if entry, ok := b.blocks[charName][o.ID]; ok {
			if entry.Until.IsZero() || b.clk.Now().Before(entry.Until) {
				continue
			}
		}
		out = append(out, *o)
	}
	return out
}
