package statusbus

import (
	"encoding/json"
	"net/http"
	"os"

	"github.com/genoclaw/artifacts-agent/internal/config"
)

type getConfigResponse struct {
	RawJSON     string `json:"rawJson"`
	IfMatchHash string `json:"ifMatchHash"`
	ConfigPath  string `json:"configPath"`
	UpdatedAtMs int64  `json:"updatedAtMs"`
}

func (b *Bus) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	data, err := os.ReadFile(b.cfgPath)
	if err != nil {
		http.Error(w, "config not readable: "+err.Error(), http.StatusInternalServerError)
		return
	}
	var cfg config.Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		writeJSON(w, http.StatusOK, getConfigResponse{RawJSON: string(data), ConfigPath: b.cfgPath})
		return
	}
	hash, _ := config.Hash(cfg)
	info, statErr := os.Stat(b.cfgPath)
	var updatedAt int64
	if statErr == nil {
		updatedAt = info.ModTime().UnixMilli()
	}
	writeJSON(w, http.StatusOK, getConfigResponse{
		RawJSON: string(data), IfMatchHash: hash, ConfigPath: b.cfgPath, UpdatedAtMs: updatedAt,
	})
}

type postConfigRequest struct {
	Config      config.Config `json:"config"`
	RawJSON     string        `json:"rawJson"`
	IfMatchHash string        `json:"ifMatchHash"`
}

type postConfigResponse struct {
	IfMatchHash string `json:"ifMatchHash"`
}

type validationErrorResponse struct {
	Errors []config.FieldError `json:"errors"`
}

func (b *Bus) handlePostConfig(w http.ResponseWriter, r *http.Request) {
	var req postConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, validationErrorResponse{
			Errors: []config.FieldError{{Path: "", Message: "malformed request body: " + err.Error()}},
		})
		return
	}

	existing, err := os.ReadFile(b.cfgPath)
	if err == nil {
		var current config.Config
		if jsonErr := json.Unmarshal(existing, &current); jsonErr == nil {
			currentHash, _ := config.Hash(current)
			if req.IfMatchHash != "" && req.IfMatchHash != currentHash {
				http.Error(w, "config has changed since last read", http.StatusConflict)
				return
			}
		}
	}

	normalized := config.Normalize(req.Config)
	if errs := config.Validate(normalized); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, validationErrorResponse{Errors: errs})
		return
	}

	if err := config.Save(b.cfgPath, normalized); err != nil {
		http.Error(w, "failed to save config: "+err.Error(), http.StatusInternalServerError)
		return
	}

	newHash, _ := config.Hash(normalized)
	writeJSON(w, http.StatusOK, postConfigResponse{IfMatchHash: newHash})
}
