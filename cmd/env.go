package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/check-cli/internal/config"
	"github.com/sells-group/check-cli/internal/engine"
	"github.com/sells-group/check-cli/internal/ingest"
	"github.com/sells-group/check-cli/internal/model"
	"github.com/sells-group/check-cli/internal/ocr"
	"github.com/sells-group/check-cli/internal/pipeline"
	"github.com/sells-group/check-cli/internal/preprocess"
	"github.com/sells-group/check-cli/internal/resilience"
	"github.com/sells-group/check-cli/internal/stage"
	"github.com/sells-group/check-cli/internal/store"
	"github.com/sells-group/check-cli/internal/validate"
	"github.com/sells-group/check-cli/internal/vision"
)

// appEnv holds the store and pipeline shared by the process, serve and
// worker commands.
type appEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
	Breakers *resilience.Breakers
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context, c *config.Config) (store.Store, error) {
	switch c.Store.Driver {
	case "sqlite":
		return store.NewSQLite(c.Store.SQLitePath)
	case "postgres":
		return store.NewPostgres(ctx, c.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: c.Store.MaxConns,
			MinConns: c.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", c.Store.Driver)
	}
}

func retryConfig(c *config.Config) resilience.RetryConfig {
	return resilience.NewRetryConfig(c.Resilience.MaxAttempts, c.Resilience.InitialBackoffMs, c.Resilience.MaxBackoffMs)
}

// initEngines builds both extraction engines, each behind its own timeout,
// retry policy and circuit breaker.
func initEngines(c *config.Config, breakers *resilience.Breakers) (engine.Engine, engine.Engine, error) {
	rec, err := ocr.NewRecognizer(c.OCR)
	if err != nil {
		return nil, nil, err
	}
	m, err := vision.NewModel(c.Vision)
	if err != nil {
		return nil, nil, err
	}

	retry := retryConfig(c)
	timeout := c.Pipeline.EngineTimeout()
	a := engine.Guard(ocr.NewEngine(rec), model.SourceEngineA, timeout, breakers.Get(string(model.SourceEngineA)), retry)
	b := engine.Guard(vision.NewEngine(m, c.Vision.RequestsPerMinute), model.SourceEngineB, timeout, breakers.Get(string(model.SourceEngineB)), retry)

	zap.L().Info("engines ready",
		zap.String("engine_a", a.Name()),
		zap.String("engine_b", b.Name()),
		zap.Duration("timeout", timeout),
	)
	return a, b, nil
}

// initPipeline validates config for mode, opens and migrates the store and
// builds the Pipeline. events may be nil. Callers should defer env.Close().
func initPipeline(ctx context.Context, c *config.Config, mode string, events chan<- stage.Event) (*appEnv, error) {
	if err := c.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx, c)
	if err != nil {
		return nil, err
	}
	env := &appEnv{Store: st}

	if err := st.Migrate(ctx); err != nil {
		env.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	tenants, err := config.LoadTenants(c.TenantsFile)
	if err != nil {
		env.Close()
		return nil, err
	}

	env.Breakers = resilience.NewBreakers(resilience.NewCircuitBreakerConfig(c.Resilience.FailureThreshold, c.Resilience.ResetTimeoutSecs))
	engineA, engineB, err := initEngines(c, env.Breakers)
	if err != nil {
		env.Close()
		return nil, err
	}

	loader := ingest.NewLoader(ingest.OptionsFromConfig(c.Pipeline, retryConfig(c)))
	validator := validate.New(st, c.Review.Thresholds())

	opts := []pipeline.Option{pipeline.WithTenants(tenants)}
	if events != nil {
		opts = append(opts, pipeline.WithEvents(events))
	}
	env.Pipeline = pipeline.New(c, st, loader, preprocess.New(c.Pipeline), engineA, engineB, validator, opts...)
	return env, nil
}
