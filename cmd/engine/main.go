// Command engine is the trader-engine process entrypoint: wires
// Config, Logger, Store, EventBus, Vault client and Engine/API server
// together, grounded on the teacher's main.go composition-root
// pattern.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	osignal "os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/paperdesk/trader-engine/internal/api"
	"github.com/paperdesk/trader-engine/internal/config"
	"github.com/paperdesk/trader-engine/internal/domain"
	"github.com/paperdesk/trader-engine/internal/eventbus"
	"github.com/paperdesk/trader-engine/internal/ledgerstore"
	"github.com/paperdesk/trader-engine/internal/logging"
	"github.com/paperdesk/trader-engine/internal/scheduler"
	"github.com/paperdesk/trader-engine/internal/signal"
	"github.com/paperdesk/trader-engine/internal/vault"
)

var errUnavailable = errors.New("engine: no price feed configured")

func main() {
	configPath := flag.String("config", "", "path to JSON config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	log := logging.New(logging.Config{
		Level:      cfg.Logging.Level,
		Output:     cfg.Logging.Output,
		Component:  "engine",
		JSONFormat: cfg.Logging.JSONFormat,
	})
	logging.SetDefault(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := buildStore(ctx, cfg)
	if err != nil {
		log.Fatal("building store", "error", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	bus := eventbus.New(redisClient, eventbus.Config{
		HeartbeatInterval:            cfg.Engine.HeartbeatInterval,
		SubscriberBackpressureWindow: cfg.Engine.SubscriberBackpressureWindow,
	})

	if cfg.Vault.Address != "" {
		if _, err := vault.New(cfg.Vault.Address, cfg.Vault.Token, cfg.Vault.MountPath); err != nil {
			log.Warn("vault client unavailable, falling back to default fee model", "error", err)
		}
	}

	// ML/RL/Sentiment are wired as unavailable placeholders until real
	// model/policy/analyzer collaborators are configured — Available()
	// reports false, so the aggregator's insufficient-data bailout (not
	// a panic) is what a trader sees until they're filled in.
	sources := []signal.Source{
		signal.NewTechnical(),
		signal.NewML(nil, nil),
		signal.NewRL(nil, nil),
		signal.NewSentiment(nil, nil),
	}

	eng := scheduler.New(scheduler.Config{
		TickTimeout:          cfg.Engine.TickTimeout,
		SourceTimeout:        cfg.Engine.SourceTimeout,
		PriceTimeout:         cfg.Engine.PriceTimeout,
		OutcomeBackfillEvery: cfg.Engine.OutcomeBackfillEvery,
		CandleLookback:       200,
		MarketCloseJobAt:     cfg.Engine.MarketCloseJobAt,
		OvernightFeesAt:      cfg.Engine.OvernightFeesAt,
	}, store, bus, sources, noopPriceFeed{}, log.WithComponent("scheduler"))

	if err := eng.Start(ctx); err != nil {
		log.Fatal("starting engine", "error", err)
	}

	server := api.New(store, eng, bus, cfg.Server.CORSOrigins, log.WithComponent("api"))
	httpServer := &http.Server{Addr: cfg.Server.Addr, Handler: server.Handler()}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server failed", "error", err)
		}
	}()

	log.Info("trader-engine started", "addr", cfg.Server.Addr)

	sigCh := make(chan os.Signal, 1)
	osignal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	eng.Stop()
}

func buildStore(ctx context.Context, cfg *config.Config) (ledgerstore.Store, error) {
	if cfg.Database.Host == "" {
		return ledgerstore.NewMemstore(), nil
	}
	dsn := "postgres://" + cfg.Database.User + ":" + cfg.Database.Password + "@" + cfg.Database.Host + "/" + cfg.Database.Database
	return ledgerstore.Connect(ctx, dsn)
}

// noopPriceFeed is a placeholder PriceFeed used until a real market
// data collaborator is wired in; it always reports unavailable data.
type noopPriceFeed struct{}

func (noopPriceFeed) Quote(ctx context.Context, symbol string) (domain.Quote, error) {
	return domain.Quote{}, errUnavailable
}

func (noopPriceFeed) Candles(ctx context.Context, symbol string, lookback int) ([]domain.Candle, error) {
	return nil, errUnavailable
}
