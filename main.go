package main

import (
	"context"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"

	orchestratorx "github.com/bancoagil/agent/agent/agents/orchestrator"
	specialistx "github.com/bancoagil/agent/agent/agents/specialist"
	llmx "github.com/bancoagil/agent/agent/llm"
	repox "github.com/bancoagil/agent/agent/repo"
	rulesx "github.com/bancoagil/agent/agent/rules"
	statex "github.com/bancoagil/agent/agent/state"
	toolx "github.com/bancoagil/agent/agent/tool"
	triagex "github.com/bancoagil/agent/agent/triage"
	configx "github.com/bancoagil/agent/pkg/config"
	_ "github.com/bancoagil/agent/pkg/logger/autoload"
	ratesx "github.com/bancoagil/agent/pkg/rates"
	serverx "github.com/bancoagil/agent/server"
)

type AppConfig struct {
	DatabaseDriver string `envconfig:"DATABASE_DRIVER" split_words:"true" default:"sqlite"`
	SQLitePath     string `envconfig:"SQLITE_PATH" split_words:"true" default:"bancoagil.db"`
	SeedOnStart    bool   `envconfig:"SEED_ON_START" split_words:"true" default:"true"`
	StateStore     string `envconfig:"STATE_STORE" split_words:"true" default:"memory"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	appCfg := configx.MustNew[AppConfig]("")

	repo := mustRepository(*appCfg)
	defer repo.Close()

	if appCfg.SeedOnStart {
		if err := repo.Seed(ctx); err != nil {
			log.Fatal().Err(err).Msg("seed customer base")
		}
	}

	engine := rulesx.NewEngine(repo)

	ratesCfg := configx.MustNew[ratesx.Config]("FRANKFURTER")
	ratesClient := ratesx.MustNew(*ratesCfg)

	gateway, err := toolx.NewGateway(engine, ratesClient)
	if err != nil {
		log.Fatal().Err(err).Msg("build tool gateway")
	}

	llmCfg := configx.MustNew[llmx.Config]("OPENROUTER")
	registry, err := specialistx.NewRegistry(ctx, *llmCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("build oracle registry")
	}

	triageCfg := configx.MustNew[triagex.Config]("TRIAGE")
	router, err := triagex.NewRouter(registry, *triageCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("build triage router")
	}

	store := mustStateStore(*appCfg)

	orchCfg := configx.MustNew[orchestratorx.Config]("ORCHESTRATOR")
	orch, err := orchestratorx.New(store, router, registry, gateway, *orchCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("build orchestrator")
	}

	srvCfg := configx.MustNew[serverx.Config]("SERVER")
	srv, err := serverx.New(*srvCfg, orch, repo)
	if err != nil {
		log.Fatal().Err(err).Msg("build http server")
	}

	if err := srv.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("http server stopped")
	}
	log.Info().Msg("shutdown complete")
}

func mustRepository(cfg AppConfig) repox.Repository {
	switch strings.ToLower(strings.TrimSpace(cfg.DatabaseDriver)) {
	case "postgres":
		pgCfg := configx.MustNew[repox.PostgresConfig]("POSTGRES")
		repo, err := repox.NewPostgres(*pgCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("open postgres")
		}
		return repo
	case "sqlite", "":
		repo, err := repox.NewSQLite(cfg.SQLitePath)
		if err != nil {
			log.Fatal().Err(err).Msg("open sqlite")
		}
		return repo
	default:
		log.Fatal().Str("driver", cfg.DatabaseDriver).Msg("unknown database driver")
		return nil
	}
}

func mustStateStore(cfg AppConfig) statex.Store {
	switch strings.ToLower(strings.TrimSpace(cfg.StateStore)) {
	case "redis":
		redisCfg := configx.MustNew[statex.UpstashRedisConfig]("UPSTASH_REDIS")
		store, err := statex.NewUpstashRedisStore(*redisCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("open redis state store")
		}
		return store
	default:
		return statex.NewMemoryStore()
	}
}
