// Package app assembles the store, model backend, pipelines and session
// service from a loaded configuration. Both the HTTP server and the
// practice command run on top of it.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/abhisek/prepwise/internal/api"
	"github.com/abhisek/prepwise/internal/config"
	"github.com/abhisek/prepwise/internal/evaluation"
	"github.com/abhisek/prepwise/internal/llm"
	"github.com/abhisek/prepwise/internal/metrics"
	"github.com/abhisek/prepwise/internal/provider"
	"github.com/abhisek/prepwise/internal/questiongen"
	"github.com/abhisek/prepwise/internal/session"
	"github.com/abhisek/prepwise/internal/store"
)

// App holds the wired services. Close releases the store.
type App struct {
	Config    config.Config
	Log       zerolog.Logger
	Store     *store.Store
	Metrics   *metrics.Metrics
	Provider  *provider.LLM
	Sessions  *session.Service
	Generator *questiongen.Pipeline
	Evaluator *evaluation.Pipeline
}

// Options customizes New.
type Options struct {
	// Mock serves the "mock" backend, mainly for tests.
	Mock *llm.MockProvider

	// Store is used instead of opening cfg.Store.
	Store *store.Store
}

// New validates cfg and builds every service. The provider is created
// once here and shared by both pipelines.
func New(ctx context.Context, cfg config.Config, log zerolog.Logger, opts Options) (*App, error) {
	if err := cfg.LLM.Validate(); err != nil {
		return nil, fmt.Errorf("llm config: %w", err)
	}

	st := opts.Store
	if st == nil {
		var err error
		if st, err = store.Open(ctx, cfg.Store); err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
	}

	a, err := build(ctx, cfg, log, st, opts)
	if err != nil {
		if opts.Store == nil {
			err = errors.Join(err, st.Close())
		}
		return nil, err
	}
	return a, nil
}

func build(ctx context.Context, cfg config.Config, log zerolog.Logger, st *store.Store, opts Options) (*App, error) {
	m := metrics.New()

	backend, err := llm.NewProvider(ctx, cfg.LLM,
		llm.WithEventRepo(st.EventRepo()),
		llm.WithLogger(log),
		llm.WithObserver(m.LLMObserver()),
		llm.WithMock(opts.Mock),
	)
	if err != nil {
		return nil, err
	}
	prov := provider.New(backend, provider.WithMaxTokens(cfg.LLM.MaxTokens))

	gen, err := questiongen.New(prov, st.Questions(), cfg.Generation,
		questiongen.WithLogger(log),
		questiongen.WithMetrics(m),
	)
	if err != nil {
		return nil, err
	}
	ev := evaluation.NewEvaluator(prov, cfg.Evaluation,
		evaluation.WithLogger(log),
		evaluation.WithMetrics(m),
	)

	log.Info().Str("provider", cfg.LLM.Provider).Str("model", prov.ModelID()).
		Str("store", st.Dialect()).Msg("services ready")

	return &App{
		Config:    cfg,
		Log:       log,
		Store:     st,
		Metrics:   m,
		Provider:  prov,
		Sessions:  session.NewService(session.ReposFrom(st), log, m),
		Generator: gen,
		Evaluator: evaluation.NewPipeline(ev, st.Questions(), st.Answers(), log, m),
	}, nil
}

// APIDeps returns the dependencies of the HTTP server.
func (a *App) APIDeps() api.Deps {
	return api.Deps{
		Sessions:  a.Sessions,
		Generator: a.Generator,
		Evaluator: a.Evaluator,
		Questions: a.Store.Questions(),
		Answers:   a.Store.Answers(),
		Health:    a.Store.Ping,
		Metrics:   a.Metrics,
		Log:       a.Log,
	}
}

// Close closes the store.
func (a *App) Close() error {
	return a.Store.Close()
}
