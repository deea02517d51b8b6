package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"stratforge/adapters/deploy"
	"stratforge/adapters/excel"
	"stratforge/adapters/llm"
	"stratforge/adapters/llm/heuristic"
	"stratforge/adapters/market"
	"stratforge/adapters/postgres"
	"stratforge/ai"
	"stratforge/app"
	"stratforge/internal"
	"stratforge/internal/config"
	"stratforge/internal/errors"
	"stratforge/internal/testkit"
	"stratforge/ports"
	"stratforge/score"
	"stratforge/validate"
)

// defaultUniverse backs local runs when no universe file is configured
var defaultUniverse = []string{
	"AGG", "EEM", "EFA", "GLD", "IWM", "QQQ", "SPY", "TLT", "VNQ", "XLE",
}

// pipeline bundles everything a command needs, plus the cleanup hook
type pipeline struct {
	driver *app.Driver
	runs   ports.RunRepository
	cfg    *config.Config
	close  func()
}

// buildPipeline wires the full driver from configuration. Without a
// DATABASE_URL it falls back to in-memory stores, which still exercises the
// whole pipeline but loses resume across processes.
func buildPipeline(ctx context.Context) (*pipeline, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := internal.DefaultLogger

	policy, err := config.LoadPolicy(cfg.Paths.PolicyFile)
	if err != nil {
		return nil, err
	}

	engine := validate.NewEngine(policy.Validation)
	scorer, err := score.NewScorer(policy.Scoring.DimensionWeights())
	if err != nil {
		return nil, err
	}

	generator := buildGenerator(cfg)
	retry := app.NewRetryController(engine, generator, logger)

	universe := defaultUniverse
	if cfg.Paths.UniverseFile != "" {
		universe, err = excel.NewUniverseReader(cfg.Paths.UniverseFile).Read()
		if err != nil {
			return nil, err
		}
	}

	var provider ports.ContextProviderPort
	if cfg.Market.Endpoint != "" {
		provider = market.NewHTTPProvider(cfg.Market.Endpoint, logger)
	} else {
		provider = market.NewStaticProvider(json.RawMessage(`{"regime":"unspecified"}`))
	}

	var deployer ports.DeployerPort
	if cfg.Deploy.Endpoint != "" {
		deployer = deploy.NewHTTPDeployer(cfg.Deploy.Endpoint, cfg.Deploy.APIKey, logger)
	} else {
		logger.Warn("[Setup] DEPLOY_ENDPOINT not set, deployments are accepted locally")
		deployer = &testkit.AcceptAllDeployer{}
	}

	checkpoints, runs, cleanup, err := buildStores(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	driverCfg := app.DriverConfig{
		MaxConcurrent: cfg.Pipeline.MaxConcurrent,
		CallTimeout:   cfg.Pipeline.CallTimeout,
		Threshold:     policy.Scoring.Threshold,
		Floors:        policy.Scoring.DimensionFloors(),
		Guidance: ports.GenerationGuidance{
			AllowedFrequencies: policy.Validation.AllowedFrequencies,
			ConcentrationLimit: policy.Validation.ConcentrationBlocking,
		},
	}

	driver := app.NewDriver(driverCfg, engine, scorer, retry, generator,
		provider, checkpoints, runs, deployer, universe, logger)

	return &pipeline{driver: driver, runs: runs, cfg: cfg, close: cleanup}, nil
}

// buildGenerator selects the generation backend by provider name
func buildGenerator(cfg *config.Config) ports.GeneratorPort {
	if cfg.AI.Provider == "heuristic" {
		return heuristic.NewGenerator()
	}
	return llm.NewGeneratorAdapter(ai.ClientConfig{
		APIKey:      cfg.AI.OpenAIKey,
		BaseURL:     cfg.AI.BaseURL,
		Model:       cfg.AI.OpenAIModel,
		Temperature: cfg.AI.Temperature,
		MaxTokens:   cfg.AI.MaxTokens,
		Timeout:     cfg.AI.Timeout,
	})
}

// buildStores connects Postgres when configured, in-memory otherwise
func buildStores(ctx context.Context, cfg *config.Config, logger *internal.Logger) (ports.CheckpointStore, ports.RunRepository, func(), error) {
	if cfg.Database.URL == "" {
		logger.Warn("[Setup] DATABASE_URL not set, using in-memory stores (no cross-process resume)")
		kit := testkit.NewTestKit()
		return kit.Checkpoints, kit.Runs, func() {}, nil
	}

	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "failed to connect to database")
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		db.Close()
		return nil, nil, nil, err
	}

	cleanup := func() { db.Close() }
	return postgres.NewCheckpointRepository(db), postgres.NewRunRepository(db), cleanup, nil
}

// openRunRepository connects only the read side, for status and serve
func openRunRepository(ctx context.Context) (ports.RunRepository, *config.Config, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}
	if cfg.Database.URL == "" {
		return nil, nil, nil, fmt.Errorf("DATABASE_URL is required for this command")
	}

	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "failed to connect to database")
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		db.Close()
		return nil, nil, nil, err
	}
	return postgres.NewRunRepository(db), cfg, func() { db.Close() }, nil
}
