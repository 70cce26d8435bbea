// Package provider exposes the three model capabilities the pipelines
// depend on. Backends are swapped through configuration; pipelines only
// ever see the Provider interface.
package provider

import (
	"context"
	"encoding/json"
	"iter"

	"github.com/abhisek/prepwise/internal/llm"
	"github.com/abhisek/prepwise/internal/prompt"
	"github.com/abhisek/prepwise/internal/quiz"
)

// Provider generates questions and evaluates answers.
// Errors are returned as-is; callers treat every error as a provider failure.
type Provider interface {
	// GenerateQuestion returns the model's raw text for one question.
	GenerateQuestion(ctx context.Context, params quiz.GenerationParams) (string, error)

	// GenerateQuestionStream yields the raw text in ordered chunks.
	GenerateQuestionStream(ctx context.Context, params quiz.GenerationParams) iter.Seq2[string, error]

	// EvaluateAnswer returns the model's verdict as JSON. The payload is
	// not validated and may still be wrapped in a code fence.
	EvaluateAnswer(ctx context.Context, params quiz.EvaluationParams) (json.RawMessage, error)

	// ModelID identifies the model for persisted rows.
	ModelID() string
}

// LLM implements Provider on top of a single llm backend.
type LLM struct {
	backend     llm.Provider
	maxTokens   int
	temperature float64
}

// Option configures an LLM provider.
type Option func(*LLM)

// WithMaxTokens caps every response.
func WithMaxTokens(n int) Option {
	return func(p *LLM) { p.maxTokens = n }
}

// WithTemperature sets sampling temperature for generation. Evaluation
// always runs at temperature 0.
func WithTemperature(t float64) Option {
	return func(p *LLM) { p.temperature = t }
}

// New wraps backend.
func New(backend llm.Provider, opts ...Option) *LLM {
	p := &LLM{backend: backend, maxTokens: 1024, temperature: 0.7}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *LLM) GenerateQuestion(ctx context.Context, params quiz.GenerationParams) (string, error) {
	resp, err := p.backend.Generate(llm.WithPurpose(ctx, llm.PurposeQuestion), p.questionRequest(params))
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func (p *LLM) GenerateQuestionStream(ctx context.Context, params quiz.GenerationParams) iter.Seq2[string, error] {
	return p.backend.Stream(llm.WithPurpose(ctx, llm.PurposeQuestion), p.questionRequest(params))
}

func (p *LLM) EvaluateAnswer(ctx context.Context, params quiz.EvaluationParams) (json.RawMessage, error) {
	rendered := prompt.Evaluation(params)
	req := llm.UserPrompt(rendered.System, rendered.User, p.maxTokens)
	req.JSON = true

	resp, err := p.backend.Generate(llm.WithPurpose(ctx, llm.PurposeEvaluation), req)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(resp.Content), nil
}

func (p *LLM) ModelID() string {
	return p.backend.ModelID()
}

func (p *LLM) questionRequest(params quiz.GenerationParams) llm.Request {
	rendered := prompt.Question(params.Topics, params.Difficulty, params.Types)
	req := llm.UserPrompt(rendered.System, rendered.User, p.maxTokens)
	req.JSON = true
	req.Temperature = p.temperature
	return req
}
