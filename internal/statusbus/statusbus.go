// Package statusbus implements the status HTTP surface of spec.md §6: a
// JSON snapshot endpoint, an SSE event stream, config read/write with
// optimistic concurrency, control operations, and (conditionally)
// sandbox operations. Routing follows the chi sub-router style used
// elsewhere in the example corpus.
package statusbus

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/genoclaw/artifacts-agent/internal/clock"
	"github.com/genoclaw/artifacts-agent/internal/ledger"
	"github.com/genoclaw/artifacts-agent/internal/orderboard"
	"github.com/genoclaw/artifacts-agent/internal/scheduler"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// CharacterView is one row of the UI snapshot's characters array.
type CharacterView struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Stale  bool   `json:"stale"`
}

// OrderRow is one row of the UI snapshot's orders array.
type OrderRow struct {
	ID           string `json:"id"`
	ItemCode     string `json:"itemCode"`
	Status       string `json:"status"`
	RequestedQty int    `json:"requestedQty"`
	RemainingQty int    `json:"remainingQty"`
	ClaimedBy    string `json:"claimedBy,omitempty"`
}

// BankSummary is the UI snapshot's bank field.
type BankSummary struct {
	Gold int `json:"gold"`
}

// Snapshot is the full `GET /api/ui/snapshot` body.
type Snapshot struct {
	Characters []CharacterView `json:"characters"`
	Orders     []OrderRow      `json:"orders"`
	Bank       BankSummary     `json:"bank"`
}

// Sources is every read-only collaborator the bus aggregates into a
// Snapshot.
type Sources struct {
	Scheduler *scheduler.Manager
	Board     *orderboard.Board
	Ledger    *ledger.Ledger
}

func (s Sources) snapshot() Snapshot {
	var out Snapshot
	for _, w := range s.Scheduler.Snapshots() {
		out.Characters = append(out.Characters, CharacterView{Name: w.Name, Status: string(w.Status), Stale: w.Stale})
	}
	for _, o := range s.Board.GetSnapshot().Orders {
		claimedBy := ""
		if o.Claim != nil {
			claimedBy = o.Claim.CharName
		}
		out.Orders = append(out.Orders, OrderRow{
			ID: o.ID, ItemCode: o.ItemCode, Status: string(o.Status),
			RequestedQty: o.RequestedQty, RemainingQty: o.RemainingQty, ClaimedBy: claimedBy,
		})
	}
	out.Bank = BankSummary{Gold: s.Ledger.BankGold()}
	return out
}

// Bus holds the broadcast state: the latest snapshot, plus the set of
// live SSE subscriber channels, per spec.md §9's "broadcast channel"
// redesign of the source's dashboard push.
type Bus struct {
	sources Sources
	clk     clock.Clock
	log     *zap.Logger

	cfgPath string

	mu          sync.Mutex
	subscribers map[chan Snapshot]struct{}

	controlMu sync.Mutex
	controls  map[string]controlStatus

	sandbox SandboxOps // nil disables /api/sandbox/*
}

type controlStatus struct {
	Operation string    `json:"operation"`
	State     string    `json:"state"` // "pending" | "done" | "failed"
	StartedAt time.Time `json:"startedAt"`
	Message   string    `json:"message,omitempty"`
}

// SandboxOps is the narrow seam for `/api/sandbox/*`, registered only
// when the upstream game server is a sandbox instance (spec.md §6).
type SandboxOps interface {
	GiveGold(charName string, qty int) error
	GiveItem(charName, code string, qty int) error
	GiveXP(charName, skill string, qty int) error
	SpawnEvent(code string) error
	ResetAccount() error
}

// New constructs a Bus. sandbox may be nil to disable sandbox routes. clk
// backs every timestamp the bus records (control StartedAt), per spec.md
// §9's injected-clock redesign.
func New(sources Sources, cfgPath string, sandbox SandboxOps, clk clock.Clock, log *zap.Logger) *Bus {
	return &Bus{
		sources:     sources,
		clk:         clk,
		log:         log,
		cfgPath:     cfgPath,
		subscribers: make(map[chan Snapshot]struct{}),
		controls:    make(map[string]controlStatus),
		sandbox:     sandbox,
	}
}

// Publish pushes a fresh snapshot to every live SSE subscriber. Callers
// (typically a small ticker goroutine) own the cadence.
func (b *Bus) Publish() {
	snap := b.sources.snapshot()
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subscribers {
		select {
		case ch <- snap:
		default:
			// slow subscriber: drop rather than block the publisher.
		}
	}
}

func (b *Bus) subscribe() chan Snapshot {
	ch := make(chan Snapshot, 4)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Bus) unsubscribe(ch chan Snapshot) {
	b.mu.Lock()
	delete(b.subscribers, ch)
	b.mu.Unlock()
	close(ch)
}

// Router builds the chi router serving every endpoint of spec.md §6.
func (b *Bus) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/api", func(api chi.Router) {
		api.Get("/ui/snapshot", b.handleSnapshot)
		api.Get("/ui/events", b.handleEvents)
		api.Get("/config", b.handleGetConfig)
		api.Post("/config", b.handlePostConfig)
		api.Post("/control/{op}", b.handleControl)
		api.Get("/control/status", b.handleControlStatus)
		if b.sandbox != nil {
			api.Post("/sandbox/give-gold", b.handleSandbox("give-gold"))
			api.Post("/sandbox/give-item", b.handleSandbox("give-item"))
			api.Post("/sandbox/give-xp", b.handleSandbox("give-xp"))
			api.Post("/sandbox/spawn-event", b.handleSandbox("spawn-event"))
			api.Post("/sandbox/reset-account", b.handleSandbox("reset-account"))
		}
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (b *Bus) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, b.sources.snapshot())
}

func (b *Bus) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := b.subscribe()
	defer b.unsubscribe(ch)

	writeSSE(w, "snapshot", b.sources.snapshot())
	flusher.Flush()

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case snap := <-ch:
			writeSSE(w, "snapshot", snap)
			flusher.Flush()
		case <-heartbeat.C:
			_, _ = w.Write([]byte("event: heartbeat\ndata: \n\n"))
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, event string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_, _ = w.Write([]byte("event: " + event + "\ndata: "))
	_, _ = w.Write(data)
	_, _ = w.Write([]byte("\n\n"))
}
