package llm

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/abhisek/prepwise/internal/store"
)

// FactoryOption customizes NewProvider.
type FactoryOption func(*factory)

type factory struct {
	repo    store.EventRepo
	log     zerolog.Logger
	observe Observer
	mock    *MockProvider
}

// WithEventRepo records every request in repo.
func WithEventRepo(repo store.EventRepo) FactoryOption {
	return func(f *factory) { f.repo = repo }
}

// WithLogger sets the logger of the logging decorator.
func WithLogger(log zerolog.Logger) FactoryOption {
	return func(f *factory) { f.log = log }
}

// WithObserver reports every finished request to fn.
func WithObserver(fn Observer) FactoryOption {
	return func(f *factory) { f.observe = fn }
}

// WithMock makes the "mock" backend serve from m.
func WithMock(m *MockProvider) FactoryOption {
	return func(f *factory) { f.mock = m }
}

// NewProvider creates a Provider from configuration.
// It returns the provider wrapped with logging middleware. Retries live in
// the pipelines, which know which failures are worth another attempt.
func NewProvider(ctx context.Context, cfg Config, opts ...FactoryOption) (Provider, error) {
	f := factory{log: zerolog.Nop()}
	for _, o := range opts {
		o(&f)
	}

	var base Provider
	var err error

	switch cfg.Provider {
	case "anthropic":
		base, err = NewAnthropicProvider(cfg.Anthropic)
	case "openai":
		base, err = NewOpenAIProvider(cfg.OpenAI)
	case "gemini":
		base, err = NewGeminiProvider(ctx, cfg.Gemini)
	case "openrouter":
		base, err = NewOpenRouterProvider(cfg.OpenRouter)
	case "mock":
		if f.mock != nil {
			base = f.mock
		} else {
			base = NewMockProvider()
		}
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s provider: %w", cfg.Provider, err)
	}

	return WithLogging(base, cfg.Provider, f.repo, f.log, f.observe), nil
}
