package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/prepwise/internal/api"
	"github.com/abhisek/prepwise/internal/config"
	"github.com/abhisek/prepwise/internal/llm"
	"github.com/abhisek/prepwise/internal/quiz"
	"github.com/abhisek/prepwise/internal/store"
)

func testConfig(t *testing.T) config.Config {
	cfg := config.Default()
	cfg.LLM.Provider = "mock"
	cfg.Store = store.Config{Driver: store.DriverSQLite, DSN: filepath.Join(t.TempDir(), "app.db")}
	cfg.Generation.BaseDelay = 0
	cfg.Evaluation.BaseDelay = 0
	return cfg
}

func TestNew_RejectsMissingKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.LLM.Provider = "anthropic"
	cfg.LLM.Anthropic.APIKey = ""

	_, err := New(context.Background(), cfg, zerolog.Nop(), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PREPWISE_LLM_ANTHROPIC_API_KEY")
}

func TestNew_WiresPipelines(t *testing.T) {
	ctx := context.Background()
	mock := llm.NewMockProvider(
		llm.MockResponse{Content: `{"title":"Explain Go slices","body":"Describe how a Go slice header relates to its backing array and what happens to both when append grows past capacity.","type":"theoretical","difficulty":"normal","topic":"Go"}`},
		llm.MockResponse{Content: `{"reasoning":"Covers the slice header.","score":90,"feedback":"Clear and complete.","modelAnswer":"A slice is a view over an array."}`},
	)
	a, err := New(ctx, testConfig(t), zerolog.Nop(), Options{Mock: mock})
	require.NoError(t, err)
	defer a.Close()

	sess, err := a.Sessions.Create(ctx, quiz.Session{
		Topics:        []string{"Go"},
		Difficulty:    quiz.Normal,
		QuestionTypes: []quiz.QuestionType{quiz.Theoretical},
		QuestionCount: 5,
	})
	require.NoError(t, err)

	params, err := a.Sessions.GenerationParams(ctx, sess.ID, 0)
	require.NoError(t, err)
	q, err := a.Generator.Generate(ctx, params, 0)
	require.NoError(t, err)
	assert.Equal(t, "mock", q.ModelID)

	// Every backend call lands in the event log.
	events, err := a.Store.EventRepo().QueryLLMEvents(ctx, store.QueryOpts{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, llm.PurposeQuestion, events[0].Purpose)

	srv := api.New(config.ServerConfig{GinMode: "test"}, a.APIDeps())
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
