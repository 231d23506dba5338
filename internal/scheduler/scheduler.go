// Package scheduler implements the per-character worker loop of spec.md
// §4.J: wait for cooldown, refresh if stale, run the highest-priority
// routine that can run, and apply the error-handling policy of §7.
package scheduler

import (
	"context"
	"sort"
	"time"

	"github.com/genoclaw/artifacts-agent/internal/charctx"
	"github.com/genoclaw/artifacts-agent/internal/clock"
	"github.com/genoclaw/artifacts-agent/internal/gameapi"
	"github.com/genoclaw/artifacts-agent/internal/retry"
	"github.com/genoclaw/artifacts-agent/internal/routine"
	"go.uber.org/zap"
)

// staleAfter is the implicit "stale character snapshot" threshold spec.md
// §9 leaves open, defaulted here to 30 seconds.
const staleAfter = 30 * time.Second

// idlePoll is how long the loop sleeps when no routine ran this tick.
const idlePoll = 1 * time.Second

// Status is the scheduler's own view of a character's health, surfaced to
// the status bus per spec.md §7's "running/starting/stopping/unknown"
// vocabulary plus a stale flag.
type Status string

const (
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
	StatusUnknown  Status = "unknown"
)

// Snapshot is the per-character state the status bus reads.
type Snapshot struct {
	Name      string
	Status    Status
	Stale     bool
	LastError string
}

// Worker drives one character's routine loop.
type Worker struct {
	cc       *charctx.Context
	routines []routine.Routine
	clock    clock.Clock
	log      *zap.Logger

	status    Status
	stale     bool
	lastError string
}

// NewWorker builds a worker for one character. routines should already be
// sorted or will be sorted internally by descending priority.
func NewWorker(cc *charctx.Context, routines []routine.Routine, c clock.Clock, log *zap.Logger) *Worker {
	sorted := append([]routine.Routine(nil), routines...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority() > sorted[j].Priority() })
	return &Worker{cc: cc, routines: sorted, clock: c, log: log, status: StatusStarting}
}

// Snapshot returns a defensive copy of the worker's current status.
func (w *Worker) Snapshot() Snapshot {
	return Snapshot{Name: w.cc.Name(), Status: w.status, Stale: w.stale, LastError: w.lastError}
}

// Run executes the loop of spec.md §4.J until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	w.status = StatusRunning
	defer func() { w.status = StatusStopping }()

	forceRefresh := true
	for {
		if ctx.Err() != nil {
			return
		}

		if err := clock.WaitUntil(ctx, w.clock, w.cc.CooldownUntil()); err != nil {
			return
		}

		if forceRefresh || w.clock.Now().Sub(w.cc.LastRefresh()) > staleAfter {
			if err := w.cc.Refresh(ctx); err != nil {
				w.handleError(ctx, err)
				forceRefresh = true
				continue
			}
			forceRefresh = false
			w.stale = false
		}

		ran, err := w.tick(ctx)
		if err != nil {
			w.handleError(ctx, err)
			forceRefresh = true
			continue
		}
		if !ran {
			if err := w.clock.Sleep(ctx, idlePoll); err != nil {
				return
			}
		}
	}
}

func (w *Worker) tick(ctx context.Context) (bool, error) {
	for _, r := range w.routines {
		can, err := r.CanRun(ctx, w.cc)
		if err != nil {
			return false, err
		}
		if !can {
			continue
		}
		if err := r.Execute(ctx, w.cc); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

// handleError applies the error-handling policy of spec.md §7: retryable
// network/timeout errors wait out the backoff ladder in-line; everything
// else marks the character stale and moves on.
func (w *Worker) handleError(ctx context.Context, err error) {
	w.lastError = err.Error()
	if gameapi.IsRetryableNetwork(err) {
		w.log.Warn("retryable error, backing off", zap.String("character", w.cc.Name()), zap.Error(err))
		for _, delay := range retry.Backoff {
			if sleepErr := w.clock.Sleep(ctx, delay); sleepErr != nil {
				return
			}
		}
		return
	}
	w.stale = true
	w.log.Error("unhandled error in character loop, marking stale", zap.String("character", w.cc.Name()), zap.Error(err))
}
