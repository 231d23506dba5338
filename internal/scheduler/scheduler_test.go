package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/genoclaw/artifacts-agent/internal/charctx"
	"github.com/genoclaw/artifacts-agent/internal/clock"
	"github.com/genoclaw/artifacts-agent/internal/gameapi"
	"github.com/genoclaw/artifacts-agent/internal/gameapitest"
	"github.com/genoclaw/artifacts-agent/internal/retry"
	"github.com/genoclaw/artifacts-agent/internal/routine"
	"go.uber.org/zap"
)

type fakeRoutine struct {
	name     string
	priority int
	canRun   bool
	ran      *[]string
	err      error
}

func (f *fakeRoutine) Name() string  { return f.name }
func (f *fakeRoutine) Priority() int { return f.priority }
func (f *fakeRoutine) CanRun(ctx context.Context, cc *charctx.Context) (bool, error) {
	return f.canRun, nil
}
func (f *fakeRoutine) Execute(ctx context.Context, cc *charctx.Context) error {
	*f.ran = append(*f.ran, f.name)
	return f.err
}

func newTestWorker(t *testing.T, routines []routine.Routine) (*Worker, clock.Clock) {
	t.Helper()
	clk := clock.NewFake(time.Unix(0, 0))
	api := gameapitest.New()
	api.SeedCharacter(gameapi.PlayerLive{Name: "Worker"})
	cc := charctx.New(api, clk, gameapi.PlayerLive{Name: "Worker"}, charctx.Settings{})
	return NewWorker(cc, routines, clk, zap.NewNop()), clk
}

func TestTickRunsHighestPriorityRunnableRoutine(t *testing.T) {
	var ran []string
	routines := []routine.Routine{
		&fakeRoutine{name: "low", priority: 1, canRun: true, ran: &ran},
		&fakeRoutine{name: "high", priority: 100, canRun: true, ran: &ran},
		&fakeRoutine{name: "mid", priority: 50, canRun: false, ran: &ran},
	}
	w, _ := newTestWorker(t, routines)

	ok, err := w.tick(context.Background())
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if !ok {
		t.Fatalf("expected tick to report a routine ran")
	}
	if len(ran) != 1 || ran[0] != "high" {
		t.Fatalf("expected the highest-priority runnable routine to execute, got %+v", ran)
	}
}

func TestTickReturnsFalseWhenNothingCanRun(t *testing.T) {
	var ran []string
	routines := []routine.Routine{
		&fakeRoutine{name: "a", priority: 10, canRun: false, ran: &ran},
	}
	w, _ := newTestWorker(t, routines)

	ok, err := w.tick(context.Background())
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if ok {
		t.Fatalf("expected tick to report nothing ran")
	}
	if len(ran) != 0 {
		t.Fatalf("expected no routine executed, got %+v", ran)
	}
}

func TestNewWorkerSortsRoutinesByDescendingPriority(t *testing.T) {
	var ran []string
	routines := []routine.Routine{
		&fakeRoutine{name: "low", priority: 1, canRun: true, ran: &ran},
		&fakeRoutine{name: "high", priority: 100, canRun: true, ran: &ran},
	}
	w, _ := newTestWorker(t, routines)
	if w.routines[0].Name() != "high" || w.routines[1].Name() != "low" {
		t.Fatalf("expected routines sorted descending by priority, got %+v", w.routines)
	}
}

func TestHandleErrorMarksStaleOnNonRetryableError(t *testing.T) {
	w, _ := newTestWorker(t, nil)
	w.handleError(context.Background(), gameapi.NewDomainError(gameapi.KindCatastrophic, "boom", nil))
	snap := w.Snapshot()
	if !snap.Stale {
		t.Fatalf("expected a catastrophic error to mark the worker stale")
	}
	if snap.LastError == "" {
		t.Fatalf("expected LastError to be recorded")
	}
}

func TestHandleErrorBacksOffOnRetryableNetworkError(t *testing.T) {
	w, clk := newTestWorker(t, nil)
	fake := clk.(*clock.Fake)
	start := fake.Now()

	w.handleError(context.Background(), gameapi.NewDomainError(gameapi.KindNetwork, "connection reset", nil))

	elapsed := fake.Now().Sub(start)
	var wantTotal time.Duration
	for _, d := range retry.Backoff {
		wantTotal += d
	}
	if elapsed != wantTotal {
		t.Fatalf("expected the fake clock to advance by the full backoff ladder (%v), got %v", wantTotal, elapsed)
	}
	if w.Snapshot().Stale {
		t.Fatalf("expected a retryable network error not to mark the worker stale")
	}
}
