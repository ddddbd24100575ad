package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/tanpawarit/loan-assistant/agent/agents/orchestrator"
	contractx "github.com/tanpawarit/loan-assistant/agent/contract"
	documentx "github.com/tanpawarit/loan-assistant/agent/document"
	"github.com/tanpawarit/loan-assistant/agent/identity"
	"github.com/tanpawarit/loan-assistant/agent/llm"
	statex "github.com/tanpawarit/loan-assistant/agent/state"
	configx "github.com/tanpawarit/loan-assistant/pkg/config"
	_ "github.com/tanpawarit/loan-assistant/pkg/logger/autoload"
	"github.com/tanpawarit/loan-assistant/pkg/metrics"
	qstashx "github.com/tanpawarit/loan-assistant/pkg/qstash"
	"github.com/tanpawarit/loan-assistant/server"
)

type AppConfig struct {
	HTTPAddr        string        `envconfig:"HTTP_ADDR" default:":8000"`
	SessionBackend  string        `envconfig:"SESSION_BACKEND" default:"memory"`
	IdentityBackend string        `envconfig:"IDENTITY_BACKEND" default:"memory"`
	SeedFile        string        `envconfig:"SEED_FILE" default:"data/customers.yaml"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

func (c *AppConfig) Validate() error {
	switch c.SessionBackend {
	case "memory", "upstash":
	default:
		return fmt.Errorf("unknown session backend %q", c.SessionBackend)
	}
	switch c.IdentityBackend {
	case "memory", "postgres":
	default:
		return fmt.Errorf("unknown identity backend %q", c.IdentityBackend)
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appCfg := configx.MustNew[AppConfig]("LOAN")

	sessions, err := newSessionStore(appCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("session store")
	}

	ids, closeIDs, err := newIdentityStore(ctx, appCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("identity store")
	}
	defer closeIDs()

	docs, err := documentx.NewSanctionLetterGenerator(*configx.MustNew[documentx.Config]("LOAN"))
	if err != nil {
		log.Fatal().Err(err).Msg("document generator")
	}

	replier, err := llm.New(ctx, *configx.MustNew[llm.Config]("LLM"))
	if err != nil {
		log.Warn().Err(err).Msg("fallback replier unavailable, using canned replies")
		replier = llm.Disabled{}
	}

	var retrier contractx.EffectRetrier
	qstashCfg := configx.MustNew[qstashx.Config]("QSTASH")
	if qstashCfg.Enabled() {
		retrier = qstashx.NewEffectRetrier(qstashx.MustNew(*qstashCfg), qstashCfg.Destination)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	orch, err := orchestrator.New(orchestrator.Deps{
		Store:     sessions,
		Identity:  ids,
		Documents: docs,
		Replier:   replier,
		Retrier:   retrier,
		Metrics:   metrics.New(reg),
	}, orchestrator.Config{})
	if err != nil {
		log.Fatal().Err(err).Msg("orchestrator")
	}

	srv := &http.Server{
		Addr: appCfg.HTTPAddr,
		Handler: server.New(orch,
			server.WithDocumentDir(docs.Dir()),
			server.WithGatherer(reg),
			server.WithHealthCheck(func(ctx context.Context) error {
				return statex.Ping(ctx, sessions)
			}),
		).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", appCfg.HTTPAddr).
			Str("sessions", appCfg.SessionBackend).
			Str("identity", appCfg.IdentityBackend).
			Bool("llm", replier.Available()).
			Bool("qstash", retrier != nil).
			Msg("loan assistant listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), appCfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown")
	}
}

func newSessionStore(appCfg *AppConfig) (statex.Store, error) {
	if appCfg.SessionBackend != "upstash" {
		return statex.NewMemoryStore(), nil
	}
	cfg := configx.MustNew[statex.UpstashRedisConfig]("UPSTASH_REDIS")
	return statex.NewUpstashRedisStore(*cfg)
}

func newIdentityStore(ctx context.Context, appCfg *AppConfig) (identity.Store, func(), error) {
	seed := map[string]*contractx.Profile{}
	if appCfg.SeedFile != "" {
		loaded, err := identity.LoadSeed(appCfg.SeedFile)
		if err != nil {
			return nil, nil, err
		}
		seed = loaded
	}

	if appCfg.IdentityBackend != "postgres" {
		log.Info().Int("customers", len(seed)).Msg("identity store in memory")
		return identity.NewMemoryStore(identity.WithSeed(seed)), func() {}, nil
	}

	store, err := identity.NewPostgresStore(*configx.MustNew[identity.PostgresConfig]("POSTGRES"))
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := store.Close(); err != nil {
			log.Warn().Err(err).Msg("close identity store")
		}
	}

	if err := store.Migrate(ctx); err != nil {
		closeFn()
		return nil, nil, err
	}
	if err := store.Seed(ctx, seed); err != nil {
		closeFn()
		return nil, nil, err
	}
	return store, closeFn, nil
}
