package routine

import (
	"time"

	"context"

	"github.com/genoclaw/artifacts-agent/internal/bankops"
	"github.com/genoclaw/artifacts-agent/internal/charctx"
	"github.com/genoclaw/artifacts-agent/internal/clock"
	"github.com/genoclaw/artifacts-agent/internal/combat"
	"github.com/genoclaw/artifacts-agent/internal/gameapi"
	"github.com/genoclaw/artifacts-agent/internal/orderboard"
)

// orderLeaseDuration bounds how long a character may hold an order claim
// before the lease expires; after that ClaimOrder accepts a new claimant
// and Open compacts the claim back to open.
const orderLeaseDuration = 10 * time.Minute

// SkillRotation is the lowest-priority routine (priority 5). It works the
// order board only: CanRun is true only while the board holds an open
// order not blocked for this character. Combat, gathering, crafting, task
// and achievement targets outside the order board are not selected.
type SkillRotation struct {
	deps Deps
}

func (s *SkillRotation) Name() string  { return "skill_rotation" }
func (s *SkillRotation) Priority() int { return PrioritySkillRotation }

func (s *SkillRotation) CanRun(ctx context.Context, cc *charctx.Context) (bool, error) {
	return len(s.deps.Board.OpenOrdersFor(cc.Name())) > 0, nil
}

func (s *SkillRotation) Execute(ctx context.Context, cc *charctx.Context) error {
	for _, o := range s.deps.Board.OpenOrdersFor(cc.Name()) {
		ok, blockReason := s.checkEligible(ctx, cc, o)
		if !ok {
			if blockReason != "" {
				until := time.Time{}
				if blockReason == orderboard.BlockMissingGatherSource {
					until = s.deps.Clock.Now().Add(orderboard.DefaultBlockDuration)
				}
				if err := s.deps.Board.BlockForCharacter(cc.Name(), o.ID, blockReason, until); err != nil {
					return err
				}
			}
			continue
		}

		claimed, err := s.deps.Board.ClaimOrder(o.ID, cc.Name(), orderLeaseDuration)
		if err != nil {
			return err
		}
		if claimed == nil {
			continue // another character won the race
		}

		if err := s.work(ctx, cc, *claimed); err != nil {
			_ = s.deps.Board.ReleaseClaim(claimed.ID, cc.Name())
			return err
		}
		return nil
	}
	return nil
}

// checkEligible implements spec.md §4.I's order eligibility + block
// reasons: skill insufficient, event-only with no active event, no known
// map location.
func (s *SkillRotation) checkEligible(ctx context.Context, cc *charctx.Context, o orderboard.Order) (bool, string) {
	switch o.SourceType {
	case orderboard.SourceGather:
		if cc.SkillLevel(o.GatherSkill) < o.SourceLevel {
			return false, orderboard.BlockInsufficientSkill
		}
		src, ok := s.deps.Data.GatherSource(o.ItemCode)
		if !ok || src.Code != o.SourceCode {
			return false, orderboard.BlockMissingGatherSource
		}
		if src.EventCode != "" && !s.eventActive(ctx, src.EventCode) {
			return false, orderboard.BlockEventOnlyNotActive
		}
		return true, ""
	case orderboard.SourceFight:
		monster, ok := s.deps.Data.Monster(o.SourceCode)
		if !ok {
			return false, orderboard.BlockNoMapLocation
		}
		if !combat.CanBeatMonster(cc.Get().Combat(), monster.Combat()) {
			return false, orderboard.BlockInsufficientSkill
		}
		return true, ""
	case orderboard.SourceCraft:
		recipe, ok := s.deps.Data.Recipe(o.ItemCode)
		if !ok {
			return false, orderboard.BlockMissingGatherSource
		}
		if cc.SkillLevel(recipe.Skill) < recipe.Level {
			return false, orderboard.BlockInsufficientSkill
		}
		if recipe.EventCode != "" && !s.eventActive(ctx, recipe.EventCode) {
			return false, orderboard.BlockEventOnlyNotActive
		}
		return true, ""
	default:
		return false, ""
	}
}

// eventActive reports whether code names a currently active world event.
// A nil EventSource (no deployment-provided events feed) means no
// event-only order can ever be eligible.
func (s *SkillRotation) eventActive(ctx context.Context, code string) bool {
	if s.deps.Events == nil {
		return false
	}
	active, err := s.deps.Events.ActiveEvents(ctx)
	if err != nil {
		return false
	}
	for _, e := range active {
		if e.Code == code {
			return true
		}
	}
	return false
}

func (s *SkillRotation) work(ctx context.Context, cc *charctx.Context, o orderboard.Order) error {
	switch o.SourceType {
	case orderboard.SourceGather:
		return s.gather(ctx, cc, o)
	case orderboard.SourceFight:
		return s.fight(ctx, cc, o)
	case orderboard.SourceCraft:
		return s.craft(ctx, cc, o)
	}
	return nil
}

func (s *SkillRotation) moveTo(ctx context.Context, cc *charctx.Context, pos gameapi.Position) error {
	if cc.IsAt(pos.X, pos.Y) {
		return nil
	}
	res, err := s.deps.API.Move(ctx, cc.Name(), pos.X, pos.Y)
	if err != nil {
		return err
	}
	cc.ApplyActionResult(s.deps.Clock.Now(), res)
	return clock.WaitUntil(ctx, s.deps.Clock, cc.CooldownUntil())
}

func (s *SkillRotation) gather(ctx context.Context, cc *charctx.Context, o orderboard.Order) error {
	tiles, err := s.deps.API.GetMaps(ctx, gameapi.MapsQuery{ContentType: gameapi.ContentResource})
	if err != nil {
		return err
	}
	var target *gameapi.Position
	for _, t := range tiles {
		if t.ContentCode == o.SourceCode {
			p := t.Position
			target = &p
			break
		}
	}
	if target == nil {
		return s.deps.Board.BlockForCharacter(cc.Name(), o.ID, orderboard.BlockNoMapLocation, time.Time{})
	}
	if err := s.moveTo(ctx, cc, *target); err != nil {
		return err
	}
	out, err := s.deps.API.Gather(ctx, cc.Name())
	if err != nil {
		return err
	}
	cc.ApplyActionResult(s.deps.Clock.Now(), out.Result)
	if err := clock.WaitUntil(ctx, s.deps.Clock, cc.CooldownUntil()); err != nil {
		return err
	}
	return s.depositAndRelease(ctx, cc, o, out.Items)
}

func (s *SkillRotation) fight(ctx context.Context, cc *charctx.Context, o orderboard.Order) error {
	tiles, err := s.deps.API.GetMaps(ctx, gameapi.MapsQuery{ContentType: gameapi.ContentMonster})
	if err != nil {
		return err
	}
	var target *gameapi.Position
	for _, t := range tiles {
		if t.ContentCode == o.SourceCode {
			p := t.Position
			target = &p
			break
		}
	}
	if target == nil {
		return s.deps.Board.BlockForCharacter(cc.Name(), o.ID, orderboard.BlockNoMapLocation, time.Time{})
	}
	if err := s.moveTo(ctx, cc, *target); err != nil {
		return err
	}
	out, err := s.deps.API.Fight(ctx, cc.Name())
	if err != nil {
		return err
	}
	cc.ApplyActionResult(s.deps.Clock.Now(), out.Result)
	if err := clock.WaitUntil(ctx, s.deps.Clock, cc.CooldownUntil()); err != nil {
		return err
	}
	return s.depositAndRelease(ctx, cc, o, out.Drops)
}

func (s *SkillRotation) craft(ctx context.Context, cc *charctx.Context, o orderboard.Order) error {
	res, err := s.deps.API.Craft(ctx, cc.Name(), o.ItemCode, 1)
	if err != nil {
		return err
	}
	cc.ApplyActionResult(s.deps.Clock.Now(), res)
	if err := clock.WaitUntil(ctx, s.deps.Clock, cc.CooldownUntil()); err != nil {
		return err
	}
	return s.depositAndRelease(ctx, cc, o, []gameapi.InventorySlot{{Code: o.ItemCode, Quantity: 1}})
}

func (s *SkillRotation) depositAndRelease(ctx context.Context, cc *charctx.Context, o orderboard.Order, produced []gameapi.InventorySlot) error {
	qty := 0
	for _, it := range produced {
		if it.Code == o.ItemCode {
			qty += it.Quantity
		}
	}
	if qty > 0 {
		if _, err := s.deps.Bank.Deposit(ctx, cc, []bankops.Line{{Code: o.ItemCode, Quantity: qty}}); err != nil {
			return err
		}
	}
	return s.deps.Board.ReleaseClaim(o.ID, cc.Name())
}
