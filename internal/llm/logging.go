package llm

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/abhisek/prepwise/internal/store"
)

// ErrStreamAbandoned is recorded when the consumer stops reading a stream
// before it ends.
var ErrStreamAbandoned = errors.New("stream abandoned by consumer")

// Observer is told about every finished request. It feeds metrics.
type Observer func(purpose, model string, latency time.Duration, usage Usage, err error)

// LoggingProvider is a decorator that records every LLM request as an event.
type LoggingProvider struct {
	inner     Provider
	name      string
	eventRepo store.EventRepo
	log       zerolog.Logger
	observe   Observer
}

// WithLogging wraps a Provider with event logging. A nil repo only logs.
func WithLogging(p Provider, name string, repo store.EventRepo, log zerolog.Logger, observe Observer) Provider {
	return &LoggingProvider{inner: p, name: name, eventRepo: repo, log: log, observe: observe}
}

func (l *LoggingProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	resp, err := l.inner.Generate(ctx, req)

	data := store.LLMRequestEventData{
		Model:       l.inner.ModelID(),
		RequestBody: serializeRequest(req),
	}
	var usage Usage
	if resp != nil {
		usage = resp.Usage
		data.Model = resp.Model
		data.ResponseBody = resp.Content
	}
	l.record(ctx, data, time.Since(start), usage, err)

	return resp, err
}

// Stream records one event once the stream ends. Token usage is not
// reported by every backend while streaming, so it is left at zero.
func (l *LoggingProvider) Stream(ctx context.Context, req Request) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		start := time.Now()
		var (
			out    strings.Builder
			err    error
			broken bool
		)
		for chunk, cerr := range l.inner.Stream(ctx, req) {
			if cerr != nil {
				err = cerr
				yield("", cerr)
				break
			}
			out.WriteString(chunk)
			if !yield(chunk, nil) {
				broken = true
				break
			}
		}
		if broken && err == nil {
			err = ctx.Err()
			if err == nil {
				err = ErrStreamAbandoned
			}
		}

		data := store.LLMRequestEventData{
			Model:        l.inner.ModelID(),
			RequestBody:  serializeRequest(req),
			ResponseBody: out.String(),
		}
		l.record(ctx, data, time.Since(start), Usage{}, err)
	}
}

func (l *LoggingProvider) ModelID() string {
	return l.inner.ModelID()
}

func (l *LoggingProvider) record(ctx context.Context, data store.LLMRequestEventData, latency time.Duration, usage Usage, err error) {
	purpose := PurposeFrom(ctx)
	data.Provider = l.name
	data.Purpose = purpose
	data.LatencyMs = latency.Milliseconds()
	data.InputTokens = usage.InputTokens
	data.OutputTokens = usage.OutputTokens
	data.Success = err == nil
	if err != nil {
		data.ErrorMessage = err.Error()
	}

	ev := l.log.Debug()
	if err != nil {
		ev = l.log.Warn().Err(err)
	}
	ev.Str("provider", l.name).
		Str("model", data.Model).
		Str("purpose", purpose).
		Int64("latency_ms", data.LatencyMs).
		Int("input_tokens", usage.InputTokens).
		Int("output_tokens", usage.OutputTokens).
		Msg("llm request")

	if l.observe != nil {
		l.observe(purpose, data.Model, latency, usage, err)
	}

	if l.eventRepo == nil {
		return
	}
	// The event is recorded even when the caller's context is gone.
	if logErr := l.eventRepo.AppendLLMRequest(context.WithoutCancel(ctx), data); logErr != nil {
		l.log.Warn().Err(logErr).Msg("failed to log LLM request event")
	}
}

// serializeRequest builds a readable representation of the LLM request.
func serializeRequest(req Request) string {
	var b strings.Builder

	if req.System != "" {
		b.WriteString("[system]\n")
		b.WriteString(req.System)
		b.WriteString("\n\n")
	}

	for _, m := range req.Messages {
		b.WriteString(fmt.Sprintf("[%s]\n", m.Role))
		b.WriteString(m.Content)
		b.WriteString("\n\n")
	}

	if req.JSON {
		b.WriteString("[format: json]\n")
	}

	return b.String()
}
