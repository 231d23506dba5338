// Package routine implements the routine set of spec.md §4.I: named
// behaviors with canRun/execute and a fixed priority, selected by the
// per-character scheduler (§4.J).
package routine

import (
	"context"

	"github.com/genoclaw/artifacts-agent/internal/banktravel"
	"github.com/genoclaw/artifacts-agent/internal/bankops"
	"github.com/genoclaw/artifacts-agent/internal/charctx"
	"github.com/genoclaw/artifacts-agent/internal/clock"
	"github.com/genoclaw/artifacts-agent/internal/gamedata"
	"github.com/genoclaw/artifacts-agent/internal/gameapi"
	"github.com/genoclaw/artifacts-agent/internal/ledger"
	"github.com/genoclaw/artifacts-agent/internal/orderboard"
	"go.uber.org/zap"
)

// Fixed priorities, per spec.md §4.I.
const (
	PriorityRest          = 100
	PriorityEvent         = 90
	PriorityDepositBank   = 50
	PriorityBankExpansion = 45
	PriorityCompleteTask  = 45
	PrioritySkillRotation = 5
)

// EventSource supplies the currently active world events the Event
// routine consults; spec.md does not define this endpoint's shape beyond
// "consult an active-events list", so it is kept as a narrow seam here.
type EventSource interface {
	ActiveEvents(ctx context.Context) ([]gameapi.ActiveEvent, error)
}

// Routine is one named behavior in the scheduler's priority list.
type Routine interface {
	Name() string
	Priority() int
	CanRun(ctx context.Context, cc *charctx.Context) (bool, error)
	Execute(ctx context.Context, cc *charctx.Context) error
}

// Deps bundles every collaborator a routine may need, mirroring the
// interface-per-capability Deps style used for wiring handlers across the
// corpus. Fields left nil simply disable routines that need them (e.g. a
// deployment with no EventSource skips the Event routine).
type Deps struct {
	API    gameapi.Client
	Bank   *bankops.Ops
	Travel *banktravel.Planner
	Board  *orderboard.Board
	Ledger *ledger.Ledger
	Data   gamedata.Catalogue
	Events EventSource
	Clock  clock.Clock
	Log    *zap.Logger
}

// DefaultSet returns the standard routine list in the priority order the
// scheduler expects (descending), wiring in only the routines whose
// required collaborator is present in deps.
func DefaultSet(deps Deps) []Routine {
	set := []Routine{
		&Rest{deps: deps},
	}
	if deps.Events != nil && deps.Data != nil {
		set = append(set, &Event{deps: deps})
	}
	if deps.Bank != nil {
		set = append(set, &DepositBank{deps: deps})
	}
	if deps.Bank != nil && deps.Ledger != nil && deps.Travel != nil {
		set = append(set, &BankExpansion{deps: deps})
	}
	set = append(set, &CompleteTask{deps: deps})
	if deps.Board != nil && deps.Data != nil && deps.Bank != nil {
		set = append(set, &SkillRotation{deps: deps})
	}
	return set
}
