// Command agent runs the autonomous multi-character game-playing agent:
// it loads configuration, wires the shared ledger and order board, spins
// up one scheduler worker per configured character, and serves the
// status bus until an OS signal requests shutdown.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/genoclaw/artifacts-agent/internal/bankops"
	"github.com/genoclaw/artifacts-agent/internal/banktravel"
	"github.com/genoclaw/artifacts-agent/internal/charctx"
	"github.com/genoclaw/artifacts-agent/internal/clock"
	"github.com/genoclaw/artifacts-agent/internal/config"
	"github.com/genoclaw/artifacts-agent/internal/gamedata"
	"github.com/genoclaw/artifacts-agent/internal/gameapi"
	"github.com/genoclaw/artifacts-agent/internal/ledger"
	"github.com/genoclaw/artifacts-agent/internal/logging"
	"github.com/genoclaw/artifacts-agent/internal/orderboard"
	"github.com/genoclaw/artifacts-agent/internal/routine"
	"github.com/genoclaw/artifacts-agent/internal/scheduler"
	"github.com/genoclaw/artifacts-agent/internal/statusbus"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the agent's JSON config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "agent:", err)
		os.Exit(1)
	}
}

// gameClient is the production seam named in spec.md §1 as out of scope:
// the real HTTP implementation against the game server. A deployment
// wires its own gameapi.Client here; newGameClient is the single place
// that decision is made so the rest of main stays collaborator-agnostic.
func newGameClient(baseURL, token string) gameapi.Client {
	panic("newGameClient: no HTTP implementation wired — supply a gameapi.Client for your deployment")
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logging.New(logging.Format(cfg.Logging.Format), cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer log.Sync()

	realClock := clock.Real{}

	api := newGameClient(os.Getenv("GAME_API_BASE_URL"), os.Getenv("GAME_API_TOKEN"))

	board, err := orderboard.Open(cfg.OrderBoardPath, realClock, log)
	if err != nil {
		return fmt.Errorf("open order board: %w", err)
	}

	led := ledger.New(api, realClock, log)

	var data gamedata.Catalogue
	if cfg.GameDataFixturePath != "" {
		data, err = gamedata.LoadStaticFixture(cfg.GameDataFixturePath)
		if err != nil {
			return fmt.Errorf("load gamedata fixture: %w", err)
		}
	} else {
		data = gamedata.NewStatic(nil, nil, nil)
	}

	travel := banktravel.NewPlanner(api, realClock, log)
	bank := bankops.New(api, led, travel, board, realClock, log)

	live, err := api.GetMyCharacters(context.Background())
	if err != nil {
		return fmt.Errorf("fetch initial character roster: %w", err)
	}
	liveByName := make(map[string]gameapi.PlayerLive, len(live))
	for _, p := range live {
		liveByName[p.Name] = p
	}

	var workers []*scheduler.Worker
	for _, chCfg := range cfg.Characters {
		p, ok := liveByName[chCfg.Name]
		if !ok {
			log.Warn("configured character not present in account roster, skipping", zap.String("character", chCfg.Name))
			continue
		}
		settings := settingsFromConfig(chCfg.Settings)
		cc := charctx.New(api, realClock, p, settings)
		led.RegisterCharacter(chCfg.Name, cc)

		deps := routine.Deps{
			API: api, Bank: bank, Travel: travel, Board: board,
			Ledger: led, Data: data, Clock: realClock, Log: log,
		}
		routines := routine.DefaultSet(deps)
		workers = append(workers, scheduler.NewWorker(cc, routines, realClock, log))
	}

	manager := scheduler.NewManager(workers)

	bus := statusbus.New(statusbus.Sources{Scheduler: manager, Board: board, Ledger: led}, configPath, nil, realClock, log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	manager.Start(ctx)

	publishTicker := time.NewTicker(2 * time.Second)
	defer publishTicker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-publishTicker.C:
				bus.Publish()
			}
		}
	}()

	server := &http.Server{Addr: cfg.StatusBindAddress, Handler: bus.Router()}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("status bus server failed", zap.Error(err))
		}
	}()

	log.Info("agent started", zap.Int("characters", len(workers)), zap.String("statusBind", cfg.StatusBindAddress))

	<-ctx.Done()
	log.Info("shutdown signal received, draining workers")

	manager.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("status bus shutdown error", zap.Error(err))
	}

	log.Info("agent stopped")
	return nil
}

// boolOrDefault dereferences an optional bool, falling back to def. Callers
// pass settings that already went through config.Normalize, so p is never
// nil in practice; the fallback only guards a caller that skips Normalize.
func boolOrDefault(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

func settingsFromConfig(s config.SettingsConfig) charctx.Settings {
	return charctx.Settings{
		RestTriggerPct:        s.RestTriggerPct,
		RestTargetPct:         s.RestTargetPct,
		DepositThreshold:      s.DepositThreshold,
		KeepByCode:            s.KeepByCode,
		GoldBuffer:            s.GoldBuffer,
		MaxGoldPct:            s.MaxGoldPct,
		CheckInterval:         config.DurationSeconds(s.CheckIntervalSeconds),
		TravelMode:            s.TravelMode,
		AllowRecall:           boolOrDefault(s.AllowRecall, true),
		AllowForestBank:       boolOrDefault(s.AllowForestBank, true),
		MinSavingsSeconds:     s.MinSavingsSeconds,
		IncludeReturnToOrigin: s.IncludeReturnToOrigin,
		MoveSecondsPerTile:    s.MoveSecondsPerTile,
		ItemUseSeconds:        s.ItemUseSeconds,
		EventMinTimeRemaining: config.DurationSeconds(s.EventMinTimeRemainingSeconds),
		EventMaxMonsterType:   s.EventMaxMonsterType,
		EventMinWinratePct:    s.EventMinWinratePct,
		EventCooldown:         config.DurationSeconds(s.EventCooldownSeconds),
	}
}
