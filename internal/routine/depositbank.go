package routine

import (
	"context"

	"github.com/genoclaw/artifacts-agent/internal/charctx"
)

// DepositBank deposits the carried inventory once it crosses the
// configured fill threshold, spec.md §4.I.
type DepositBank struct {
	deps Deps
}

func (d *DepositBank) Name() string  { return "deposit_bank" }
func (d *DepositBank) Priority() int { return PriorityDepositBank }

func (d *DepositBank) CanRun(ctx context.Context, cc *charctx.Context) (bool, error) {
	cap := cc.InventoryCapacity()
	if cap == 0 {
		return false, nil
	}
	threshold := cc.Settings().DepositThreshold
	return float64(cc.InventoryCount()) >= threshold*float64(cap), nil
}

func (d *DepositBank) Execute(ctx context.Context, cc *charctx.Context) error {
	s := cc.Settings()
	if _, err := d.deps.Bank.DepositAll(ctx, cc, s.KeepByCode); err != nil {
		return err
	}
	if gold := cc.Get().Gold; gold > 0 {
		if err := d.deps.Bank.DepositGold(ctx, cc, gold); err != nil {
			return err
		}
	}
	return nil
}
