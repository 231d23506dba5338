// Package config implements the agent's JSON configuration file: a
// defaults-plus-overlay load (adapted from the teacher's TOML
// defaults()-then-unmarshal pattern), an idempotent Normalize pass, and a
// SHA-256 content hash used for optimistic-concurrency saves from the
// status bus (spec.md §6).
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// CharacterConfig is one character's roster entry plus its behavior
// settings.
type CharacterConfig struct {
	Name     string         `json:"name"`
	Settings SettingsConfig `json:"settings"`
}

// SettingsConfig mirrors charctx.Settings in a JSON-friendly, documented
// shape with defaults filled by Normalize.
type SettingsConfig struct {
	RestTriggerPct   int            `json:"restTriggerPct"`
	RestTargetPct    int            `json:"restTargetPct"`
	DepositThreshold float64        `json:"depositThreshold"`
	KeepByCode       map[string]int `json:"keepByCode"`

	GoldBuffer           int     `json:"goldBuffer"`
	MaxGoldPct           float64 `json:"maxGoldPct"`
	CheckIntervalSeconds int     `json:"checkIntervalSeconds"`

	TravelMode string `json:"travelMode"`
	// AllowRecall and AllowForestBank default to true: a pointer (rather
	// than bool) lets normalizeSettings tell "omitted from the file" apart
	// from "explicitly disabled".
	AllowRecall           *bool   `json:"allowRecall,omitempty"`
	AllowForestBank       *bool   `json:"allowForestBank,omitempty"`
	MinSavingsSeconds     float64 `json:"minSavingsSeconds"`
	IncludeReturnToOrigin bool    `json:"includeReturnToOrigin"`
	MoveSecondsPerTile    float64 `json:"moveSecondsPerTile"`
	ItemUseSeconds        float64 `json:"itemUseSeconds"`

	EventMinTimeRemainingSeconds int     `json:"eventMinTimeRemainingSeconds"`
	EventMaxMonsterType          int     `json:"eventMaxMonsterType"`
	EventMinWinratePct           float64 `json:"eventMinWinratePct"`
	EventCooldownSeconds         int     `json:"eventCooldownSeconds"`
}

// Config is the root document, unmarshaled over a defaulted value so any
// field the file omits still has a sane value.
type Config struct {
	Characters []CharacterConfig `json:"characters"`

	OrderBoardPath      string `json:"orderBoardPath"`
	GameDataFixturePath string `json:"gameDataFixturePath,omitempty"`

	StatusBindAddress string `json:"statusBindAddress"`
	SandboxEnabled    bool   `json:"sandboxEnabled"`

	Logging LoggingConfig `json:"logging"`
}

// LoggingConfig controls the ambient zap logger (internal/logging).
type LoggingConfig struct {
	Format string `json:"format"` // "json" | "console"
	Level  string `json:"level"`  // "debug" | "info" | "warn" | "error"
}

// FieldError is one validation failure, reported over the status HTTP
// API as {path, message} per spec.md §6.
type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func defaults() Config {
	return Config{
		OrderBoardPath:    "orders.json",
		StatusBindAddress: "127.0.0.1:8080",
		Logging:           LoggingConfig{Format: "console", Level: "info"},
	}
}

func defaultSettings() SettingsConfig {
	allowRecall, allowForestBank := true, true
	return SettingsConfig{
		RestTriggerPct:               30,
		RestTargetPct:                90,
		DepositThreshold:             0.9,
		KeepByCode:                   map[string]int{},
		GoldBuffer:                   0,
		MaxGoldPct:                   1.0,
		CheckIntervalSeconds:         300,
		TravelMode:                   "smart",
		AllowRecall:                  &allowRecall,
		AllowForestBank:              &allowForestBank,
		MinSavingsSeconds:            5,
		MoveSecondsPerTile:           1,
		ItemUseSeconds:               3,
		EventMinTimeRemainingSeconds: 60,
		EventMaxMonsterType:          3,
		EventMinWinratePct:           100,
		EventCooldownSeconds:         0,
	}
}

// Load reads path, overlaying its contents on top of defaults(). A
// missing file is not an error: it yields pure defaults, letting a first
// run start from nothing.
func Load(path string) (Config, error) {
	cfg := defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Normalize(cfg), nil
		}
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return Normalize(cfg), nil
}

// Normalize fills every character's settings with defaultSettings()
// where the file left a zero value, and is idempotent: Normalize applied
// twice yields the same result (spec.md §8).
func Normalize(c Config) Config {
	out := c
	out.Characters = make([]CharacterConfig, len(c.Characters))
	for i, ch := range c.Characters {
		out.Characters[i] = CharacterConfig{Name: ch.Name, Settings: normalizeSettings(ch.Settings)}
	}
	if out.OrderBoardPath == "" {
		out.OrderBoardPath = "orders.json"
	}
	if out.StatusBindAddress == "" {
		out.StatusBindAddress = "127.0.0.1:8080"
	}
	if out.Logging.Format == "" {
		out.Logging.Format = "console"
	}
	if out.Logging.Level == "" {
		out.Logging.Level = "info"
	}
	return out
}

func normalizeSettings(s SettingsConfig) SettingsConfig {
	d := defaultSettings()
	if s.RestTriggerPct == 0 {
		s.RestTriggerPct = d.RestTriggerPct
	}
	if s.RestTargetPct == 0 {
		s.RestTargetPct = d.RestTargetPct
	}
	if s.DepositThreshold == 0 {
		s.DepositThreshold = d.DepositThreshold
	}
	if s.KeepByCode == nil {
		s.KeepByCode = d.KeepByCode
	}
	if s.MaxGoldPct == 0 {
		s.MaxGoldPct = d.MaxGoldPct
	}
	if s.CheckIntervalSeconds == 0 {
		s.CheckIntervalSeconds = d.CheckIntervalSeconds
	}
	if s.TravelMode == "" {
		s.TravelMode = d.TravelMode
	}
	if s.AllowRecall == nil {
		s.AllowRecall = d.AllowRecall
	}
	if s.AllowForestBank == nil {
		s.AllowForestBank = d.AllowForestBank
	}
	if s.MinSavingsSeconds == 0 {
		s.MinSavingsSeconds = d.MinSavingsSeconds
	}
	if s.MoveSecondsPerTile == 0 {
		s.MoveSecondsPerTile = d.MoveSecondsPerTile
	}
	if s.ItemUseSeconds == 0 {
		s.ItemUseSeconds = d.ItemUseSeconds
	}
	if s.EventMinTimeRemainingSeconds == 0 {
		s.EventMinTimeRemainingSeconds = d.EventMinTimeRemainingSeconds
	}
	if s.EventMaxMonsterType == 0 {
		s.EventMaxMonsterType = d.EventMaxMonsterType
	}
	if s.EventMinWinratePct == 0 {
		s.EventMinWinratePct = d.EventMinWinratePct
	}
	return s
}

// Validate returns every field-level problem found in c. An empty slice
// means c is acceptable to save.
func Validate(c Config) []FieldError {
	var errs []FieldError
	seen := make(map[string]bool)
	for i, ch := range c.Characters {
		if ch.Name == "" {
			errs = append(errs, FieldError{Path: fmt.Sprintf("characters[%d].name", i), Message: "name must not be empty"})
			continue
		}
		if seen[ch.Name] {
			errs = append(errs, FieldError{Path: fmt.Sprintf("characters[%d].name", i), Message: "duplicate character name"})
		}
		seen[ch.Name] = true
		if ch.Settings.RestTriggerPct < 0 || ch.Settings.RestTriggerPct > 100 {
			errs = append(errs, FieldError{Path: fmt.Sprintf("characters[%d].settings.restTriggerPct", i), Message: "must be between 0 and 100"})
		}
		if ch.Settings.RestTargetPct < ch.Settings.RestTriggerPct {
			errs = append(errs, FieldError{Path: fmt.Sprintf("characters[%d].settings.restTargetPct", i), Message: "must be >= restTriggerPct"})
		}
	}
	if c.OrderBoardPath == "" {
		errs = append(errs, FieldError{Path: "orderBoardPath", Message: "must not be empty"})
	}
	return errs
}

// Hash returns the SHA-256 hex digest of c's canonical JSON encoding,
// used as the ifMatchHash optimistic-concurrency token (spec.md §6).
func Hash(c Config) (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Save writes c to path via a temp-file-plus-rename, mirroring the order
// board's persistence discipline (spec.md §5).
func Save(path string, c Config) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".config-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename config into place: %w", err)
	}
	return nil
}

// DurationSeconds converts one of the package's ...Seconds int fields
// into a time.Duration, for callers wiring a SettingsConfig into
// charctx.Settings.
func DurationSeconds(n int) time.Duration { return time.Duration(n) * time.Second }
