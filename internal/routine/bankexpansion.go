package routine

import (
	"context"
	"time"

	"github.com/genoclaw/artifacts-agent/internal/charctx"
)

// BankExpansion buys one more bank slot when affordable, spec.md §4.I.
// One instance is owned by a single character's scheduler loop, so
// lastCheck needs no synchronization.
type BankExpansion struct {
	deps      Deps
	lastCheck time.Time
}

func (b *BankExpansion) Name() string  { return "bank_expansion" }
func (b *BankExpansion) Priority() int { return PriorityBankExpansion }

func (b *BankExpansion) CanRun(ctx context.Context, cc *charctx.Context) (bool, error) {
	s := cc.Settings()
	if s.CheckInterval > 0 {
		if !b.lastCheck.IsZero() && b.deps.Clock.Now().Before(b.lastCheck.Add(s.CheckInterval)) {
			return false, nil
		}
	}
	b.lastCheck = b.deps.Clock.Now()

	cost := b.deps.Ledger.NextExpansionCost()
	if cost <= 0 {
		return false, nil
	}
	available := cc.Get().Gold + b.deps.Ledger.BankGold() - s.GoldBuffer
	if available < cost {
		return false, nil
	}
	if s.MaxGoldPct > 0 {
		totalGold := cc.Get().Gold + b.deps.Ledger.BankGold()
		if float64(cost) > s.MaxGoldPct*float64(totalGold) {
			return false, nil
		}
	}
	return true, nil
}

func (b *BankExpansion) Execute(ctx context.Context, cc *charctx.Context) error {
	cost := b.deps.Ledger.NextExpansionCost()
	onChar := cc.Get().Gold
	if onChar < cost {
		if err := b.deps.Bank.WithdrawGold(ctx, cc, cost-onChar); err != nil {
			return err
		}
	}
	if err := b.deps.Travel.EnsureAtBank(ctx, cc); err != nil {
		return err
	}
	res, err := b.deps.API.BuyBankExpansion(ctx, cc.Name())
	if err != nil {
		return err
	}
	cc.ApplyActionResult(b.deps.Clock.Now(), res)
	return nil
}
