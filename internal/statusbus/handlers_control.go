package statusbus

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type controlAcceptedResponse struct {
	Operation string `json:"operation"`
	State     string `json:"state"`
}

// handleControl implements `POST /api/control/{restart|clear-order-board|clear-gear-state}`:
// spec.md §6 describes this as 202-Accepted-plus-poll. handleControl only
// records the operation as pending; it does not perform the work itself,
// and ResolveControl records the outcome.
func (b *Bus) handleControl(w http.ResponseWriter, r *http.Request) {
	op := chi.URLParam(r, "op")
	switch op {
	case "restart", "clear-order-board", "clear-gear-state":
	default:
		http.Error(w, "unknown control operation: "+op, http.StatusNotFound)
		return
	}

	b.controlMu.Lock()
	b.controls[op] = controlStatus{Operation: op, State: "pending", StartedAt: b.clk.Now()}
	b.controlMu.Unlock()

	writeJSON(w, http.StatusAccepted, controlAcceptedResponse{Operation: op, State: "pending"})
}

func (b *Bus) handleControlStatus(w http.ResponseWriter, r *http.Request) {
	b.controlMu.Lock()
	out := make([]controlStatus, 0, len(b.controls))
	for _, s := range b.controls {
		out = append(out, s)
	}
	b.controlMu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

// ResolveControl records the outcome of an operation previously accepted
// by handleControl, for GET /api/control/status to report. cmd/agent does
// not call it, so an operation accepted there stays pending.
func (b *Bus) ResolveControl(op string, failed bool, message string) {
	b.controlMu.Lock()
	defer b.controlMu.Unlock()
	s := b.controls[op]
	if failed {
		s.State = "failed"
	} else {
		s.State = "done"
	}
	s.Message = message
	b.controls[op] = s
}

func (b *Bus) handleSandbox(op string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body map[string]json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "malformed request body", http.StatusBadRequest)
			return
		}
		if err := b.dispatchSandbox(op, body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

type sandboxCharQty struct {
	CharName string `json:"charName"`
	Code     string `json:"code"`
	Skill    string `json:"skill"`
	Quantity int    `json:"quantity"`
}

func (b *Bus) dispatchSandbox(op string, body map[string]json.RawMessage) error {
	var args sandboxCharQty
	if raw, ok := body["args"]; ok {
		_ = json.Unmarshal(raw, &args)
	} else {
		for k, v := range body {
			switch k {
			case "charName":
				_ = json.Unmarshal(v, &args.CharName)
			case "code":
				_ = json.Unmarshal(v, &args.Code)
			case "skill":
				_ = json.Unmarshal(v, &args.Skill)
			case "quantity":
				_ = json.Unmarshal(v, &args.Quantity)
			}
		}
	}

	switch op {
	case "give-gold":
		return b.sandbox.GiveGold(args.CharName, args.Quantity)
	case "give-item":
		return b.sandbox.GiveItem(args.CharName, args.Code, args.Quantity)
	case "give-xp":
		return b.sandbox.GiveXP(args.CharName, args.Skill, args.Quantity)
	case "spawn-event":
		return b.sandbox.SpawnEvent(args.Code)
	case "reset-account":
		return b.sandbox.ResetAccount()
	}
	return nil
}
