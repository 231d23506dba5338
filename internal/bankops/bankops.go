// Package bankops implements the location-guarded batch bank operations
// of spec.md §4.E: withdraw with a reservation-retry ladder, deposit (the
// order-board's feed), deposit-all, and gold transfers.
package bankops

import (
	"context"
	"fmt"

	"github.com/genoclaw/artifacts-agent/internal/banktravel"
	"github.com/genoclaw/artifacts-agent/internal/charctx"
	"github.com/genoclaw/artifacts-agent/internal/clock"
	"github.com/genoclaw/artifacts-agent/internal/gameapi"
	"github.com/genoclaw/artifacts-agent/internal/ledger"
	"github.com/genoclaw/artifacts-agent/internal/orderboard"
	"go.uber.org/zap"
)

// Mode controls how Withdraw treats a line it cannot fill completely.
type Mode string

const (
	ModePartial Mode = "partial"
	ModeStrict  Mode = "strict"
)

// Line is one requested code/quantity pair.
type Line struct {
	Code     string
	Quantity int
}

// SkipReason is a human-readable note attached to a line that was not
// withdrawn in full (or at all).
type SkipReason struct {
	Code   string
	Reason string
}

// WithdrawRequest is the input to Withdraw.
type WithdrawRequest struct {
	Lines             []Line
	Mode              Mode
	RetryStaleOnce    bool
	ThrowOnAllSkipped bool
}

// WithdrawOutcome is the result of a Withdraw call.
type WithdrawOutcome struct {
	Withdrawn []gameapi.InventorySlot
	Skipped   []SkipReason
}

// Ops ties together the ledger, bank-travel planner, and (optionally) the
// order board's deposit hook.
type Ops struct {
	api    gameapi.Client
	ledger *ledger.Ledger
	travel *banktravel.Planner
	board  *orderboard.Board // nil disables the deposit hook
	clock  clock.Clock
	log    *zap.Logger
}

// New constructs an Ops. board may be nil.
func New(api gameapi.Client, l *ledger.Ledger, travel *banktravel.Planner, board *orderboard.Board, c clock.Clock, log *zap.Logger) *Ops {
	return &Ops{api: api, ledger: l, travel: travel, board: board, clock: c, log: log}
}

func normalize(lines []Line) []Line {
	merged := make(map[string]int)
	var order []string
	for _, l := range lines {
		if l.Quantity <= 0 {
			continue
		}
		if _, ok := merged[l.Code]; !ok {
			order = append(order, l.Code)
		}
		merged[l.Code] += l.Quantity
	}
	out := make([]Line, 0, len(order))
	for _, code := range order {
		out = append(out, Line{Code: code, Quantity: merged[code]})
	}
	return out
}

// plan is the per-line withdrawal amount after availability and slot
// checks. A line present in both plan and skip notes is a partial fill.
func (o *Ops) buildPlan(cc *charctx.Context, lines []Line, mode Mode) ([]gameapi.InventorySlot, []SkipReason) {
	emptySlots := cc.InventoryEmptySlots()
	carried := make(map[string]bool)
	for _, s := range cc.Get().Inventory {
		if s.Quantity > 0 {
			carried[s.Code] = true
		}
	}

	var plan []gameapi.InventorySlot
	var skipped []SkipReason

	for _, line := range lines {
		avail := o.ledger.AvailableBankCount(line.Code, "")
		qty := line.Quantity
		if qty > avail {
			qty = avail
		}
		if qty <= 0 {
			skipped = append(skipped, SkipReason{Code: line.Code, Reason: fmt.Sprintf("not enough %s in bank", line.Code)})
			continue
		}

		needsNewSlot := !carried[line.Code]
		if needsNewSlot && emptySlots <= 0 {
			skipped = append(skipped, SkipReason{Code: line.Code, Reason: "no inventory slot available"})
			continue
		}

		if qty < line.Quantity {
			if mode == ModeStrict {
				skipped = append(skipped, SkipReason{Code: line.Code, Reason: fmt.Sprintf("insufficient stock: strict mode requires %d, only %d available", line.Quantity, qty)})
				continue
			}
			skipped = append(skipped, SkipReason{Code: line.Code, Reason: fmt.Sprintf("partial fill %d/%d", qty, line.Quantity)})
		}

		plan = append(plan, gameapi.InventorySlot{Code: line.Code, Quantity: qty})
		if needsNewSlot {
			carried[line.Code] = true
			emptySlots--
		}
	}
	return plan, skipped
}

type reservedLine struct {
	line gameapi.InventorySlot
	id   string
}

// reserveAll tries reserveMany for the whole plan; if that fails it falls
// back to reserving each line individually so partial successes still
// land, per spec.md §4.E step 5.
func (o *Ops) reserveAll(owner string, plan []gameapi.InventorySlot) (reserved []reservedLine, skipped []SkipReason) {
	requests := make([]ledger.ReserveRequest, 0, len(plan))
	for _, l := range plan {
		requests = append(requests, ledger.ReserveRequest{Code: l.Code, Quantity: l.Quantity})
	}
	result := o.ledger.ReserveMany(requests, owner)
	if result.OK {
		for i, l := range plan {
			reserved = append(reserved, reservedLine{line: l, id: result.Reservations[i]})
		}
		return reserved, nil
	}

	for _, l := range plan {
		id := o.ledger.Reserve(l.Code, l.Quantity, owner)
		if id == "" {
			skipped = append(skipped, SkipReason{Code: l.Code, Reason: fmt.Sprintf("reservation failed: %s", result.Reason)})
			continue
		}
		reserved = append(reserved, reservedLine{line: l, id: id})
	}
	return reserved, skipped
}

// Withdraw implements spec.md §4.E's withdraw ladder.
func (o *Ops) Withdraw(ctx context.Context, cc *charctx.Context, req WithdrawRequest) (WithdrawOutcome, error) {
	lines := normalize(req.Lines)

	outcome, staleSmelling, err := o.attemptWithdraw(ctx, cc, lines, req.Mode, req.RetryStaleOnce)
	if err != nil {
		return outcome, err
	}

	if len(outcome.Withdrawn) == 0 && staleSmelling {
		outcome, _, err = o.attemptWithdraw(ctx, cc, lines, req.Mode, req.RetryStaleOnce)
		if err != nil {
			return outcome, err
		}
	}

	if req.ThrowOnAllSkipped && len(outcome.Withdrawn) == 0 {
		return outcome, gameapi.NewDomainError(gameapi.KindBankAvailability, "withdraw: all lines skipped", nil)
	}
	return outcome, nil
}

func (o *Ops) attemptWithdraw(ctx context.Context, cc *charctx.Context, lines []Line, mode Mode, retryStaleOnce bool) (WithdrawOutcome, bool, error) {
	if err := o.travel.EnsureAtBank(ctx, cc); err != nil {
		return WithdrawOutcome{}, false, err
	}
	if _, err := o.ledger.GetBankItems(ctx, false); err != nil {
		o.log.Warn("bank refresh before withdraw failed", zap.Error(err))
	}

	plan, skipped := o.buildPlan(cc, lines, mode)
	if len(plan) == 0 {
		return WithdrawOutcome{Skipped: skipped}, false, nil
	}

	reserved, reserveSkips := o.reserveAll(cc.Name(), plan)
	if len(reserved) == 0 && len(reserveSkips) == len(plan) && retryStaleOnce {
		if _, err := o.ledger.GetBankItems(ctx, true); err != nil {
			o.log.Warn("stale-retry bank refresh failed", zap.Error(err))
		}
		plan, skipped2 := o.buildPlan(cc, lines, mode)
		skipped = append(skipped, skipped2...)
		if len(plan) > 0 {
			reserved, reserveSkips = o.reserveAll(cc.Name(), plan)
		}
	}
	skipped = append(skipped, reserveSkips...)

	var withdrawn []gameapi.InventorySlot
	staleSmelling := len(reserveSkips) > 0

	for _, rl := range reserved {
		res, err := o.api.WithdrawBank(ctx, cc.Name(), []gameapi.InventorySlot{rl.line})
		if err != nil {
			o.ledger.Release(rl.id)
			kind := gameapi.KindOf(err)
			switch kind {
			case gameapi.KindBankAvailability:
				o.ledger.InvalidateBank("withdraw reported insufficient stock")
				staleSmelling = true
				skipped = append(skipped, SkipReason{Code: rl.line.Code, Reason: err.Error()})
			case gameapi.KindBankLocation:
				skipped = append(skipped, SkipReason{Code: rl.line.Code, Reason: err.Error()})
			default:
				return WithdrawOutcome{Withdrawn: withdrawn, Skipped: skipped}, staleSmelling, err
			}
			continue
		}
		cc.ApplyActionResult(o.clock.Now(), res)
		o.ledger.ApplyBankDelta([]gameapi.InventorySlot{rl.line}, ledger.Withdraw, cc.Name())
		o.ledger.Release(rl.id)
		withdrawn = append(withdrawn, rl.line)
		if err := clock.WaitUntil(ctx, o.clock, cc.CooldownUntil()); err != nil {
			return WithdrawOutcome{Withdrawn: withdrawn, Skipped: skipped}, staleSmelling, err
		}
	}

	return WithdrawOutcome{Withdrawn: withdrawn, Skipped: skipped}, staleSmelling, nil
}

// DepositOutcome is the result of a Deposit call.
type DepositOutcome struct {
	Deposited     []gameapi.InventorySlot
	Contributions []orderboard.Contribution
}

// Deposit deposits the given lines, then feeds them into the order
// board's deposit hook (spec.md §4.E: "Deposit (items)").
func (o *Ops) Deposit(ctx context.Context, cc *charctx.Context, lines []Line) (DepositOutcome, error) {
	lines = normalize(lines)
	if len(lines) == 0 {
		return DepositOutcome{}, nil
	}
	if err := o.travel.EnsureAtBank(ctx, cc); err != nil {
		return DepositOutcome{}, err
	}

	var deposited []gameapi.InventorySlot
	for _, l := range lines {
		item := gameapi.InventorySlot{Code: l.Code, Quantity: l.Quantity}
		res, err := o.api.DepositBank(ctx, cc.Name(), []gameapi.InventorySlot{item})
		if err != nil {
			return DepositOutcome{Deposited: deposited}, err
		}
		cc.ApplyActionResult(o.clock.Now(), res)
		o.ledger.ApplyBankDelta([]gameapi.InventorySlot{item}, ledger.Deposit, cc.Name())
		deposited = append(deposited, item)
		if err := clock.WaitUntil(ctx, o.clock, cc.CooldownUntil()); err != nil {
			return DepositOutcome{Deposited: deposited}, err
		}
	}

	var contributions []orderboard.Contribution
	if o.board != nil && len(deposited) > 0 {
		depositLines := make([]orderboard.DepositLine, 0, len(deposited))
		for _, d := range deposited {
			depositLines = append(depositLines, orderboard.DepositLine{Code: d.Code, Quantity: d.Quantity})
		}
		var err error
		contributions, err = o.board.RecordDeposits(cc.Name(), depositLines)
		if err != nil {
			o.log.Warn("order board deposit hook failed", zap.Error(err))
		}
	}

	return DepositOutcome{Deposited: deposited, Contributions: contributions}, nil
}

// DepositAll walks the carried inventory and deposits everything beyond
// the per-code amounts named in keepByCode, per spec.md §4.E.
func (o *Ops) DepositAll(ctx context.Context, cc *charctx.Context, keepByCode map[string]int) (DepositOutcome, error) {
	var lines []Line
	for _, slot := range cc.Get().Inventory {
		keep := keepByCode[slot.Code]
		qty := slot.Quantity - keep
		if qty > 0 {
			lines = append(lines, Line{Code: slot.Code, Quantity: qty})
		}
	}
	return o.Deposit(ctx, cc, lines)
}

// WithdrawGold withdraws qty gold from the bank.
func (o *Ops) WithdrawGold(ctx context.Context, cc *charctx.Context, qty int) error {
	if qty <= 0 {
		return nil
	}
	if err := o.travel.EnsureAtBank(ctx, cc); err != nil {
		return err
	}
	res, err := o.api.WithdrawGold(ctx, cc.Name(), qty)
	if err != nil {
		return err
	}
	cc.ApplyActionResult(o.clock.Now(), res)
	o.ledger.ApplyBankGoldDelta(qty, ledger.Withdraw)
	return clock.WaitUntil(ctx, o.clock, cc.CooldownUntil())
}

// DepositGold deposits qty gold into the bank.
func (o *Ops) DepositGold(ctx context.Context, cc *charctx.Context, qty int) error {
	if qty <= 0 {
		return nil
	}
	if err := o.travel.EnsureAtBank(ctx, cc); err != nil {
		return err
	}
	res, err := o.api.DepositGold(ctx, cc.Name(), qty)
	if err != nil {
		return err
	}
	cc.ApplyActionResult(o.clock.Now(), res)
	o.ledger.ApplyBankGoldDelta(qty, ledger.Deposit)
	return clock.WaitUntil(ctx, o.clock, cc.CooldownUntil())
}
