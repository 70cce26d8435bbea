package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/prepwise/internal/config"
	"github.com/abhisek/prepwise/internal/evaluation"
	"github.com/abhisek/prepwise/internal/llm"
	"github.com/abhisek/prepwise/internal/metrics"
	"github.com/abhisek/prepwise/internal/provider"
	"github.com/abhisek/prepwise/internal/questiongen"
	"github.com/abhisek/prepwise/internal/quiz"
	"github.com/abhisek/prepwise/internal/session"
	"github.com/abhisek/prepwise/internal/store"
)

const (
	questionJSON = `{"title":"Explain Go slices","body":"Describe how a Go slice header relates to its backing array and what happens to both when append grows past capacity.","type":"theoretical","difficulty":"normal","topic":"Go"}`
	verdictJSON  = `{"reasoning":"Covers the slice header and growth.","score":82,"feedback":"Mention amortized cost.","modelAnswer":"A slice is a view over an array."}`
)

func noSleep(context.Context, time.Duration) error { return nil }

type testEnv struct {
	srv   *Server
	mock  *llm.MockProvider
	store *store.Store
}

func newTestEnv(t *testing.T, cfg config.ServerConfig) *testEnv {
	t.Helper()
	ctx := context.Background()

	st, err := store.OpenSQLite(ctx, filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	mock := llm.NewMockProvider()
	prov := provider.New(mock)
	m := metrics.New()

	gen, err := questiongen.New(prov, st.Questions(), questiongen.DefaultConfig(),
		questiongen.WithSleep(noSleep), questiongen.WithMetrics(m))
	require.NoError(t, err)
	ev := evaluation.NewEvaluator(prov, evaluation.DefaultConfig(), evaluation.WithSleep(noSleep))

	cfg.GinMode = gin.TestMode
	srv := New(cfg, Deps{
		Sessions:  session.NewService(session.ReposFrom(st), zerolog.Nop(), m),
		Generator: gen,
		Evaluator: evaluation.NewPipeline(ev, st.Questions(), st.Answers(), zerolog.Nop(), m),
		Questions: st.Questions(),
		Answers:   st.Answers(),
		Health:    st.Ping,
		Metrics:   m,
		Log:       zerolog.Nop(),
	})
	return &testEnv{srv: srv, mock: mock, store: st}
}

type envelope struct {
	Data     json.RawMessage `json:"data"`
	Error    *ErrorBody      `json:"error"`
	Metadata Metadata        `json:"metadata"`
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func (e *testEnv) createSession(t *testing.T) sessionView {
	t.Helper()
	rec, env := e.do(t, http.MethodPost, "/api/v1/sessions", map[string]any{
		"ownerId":       "u1",
		"topics":        []string{"Go"},
		"difficulty":    "normal",
		"questionTypes": []string{"theoretical"},
		"questionCount": 5,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[sessionView](t, env.Data)
}

func (e *testEnv) generate(t *testing.T, sessionID string, index int) questionView {
	t.Helper()
	e.mock.AddResponse(llm.MockResponse{Content: questionJSON})
	rec, env := e.do(t, http.MethodPost, "/api/v1/sessions/"+sessionID+"/questions/"+strconv.Itoa(index), nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[questionView](t, env.Data)
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t, config.ServerConfig{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, "req-123", env.Metadata.RequestID)
	assert.Nil(t, env.Error)
}

func TestHealth_StoreDown(t *testing.T) {
	e := newTestEnv(t, config.ServerConfig{})
	require.NoError(t, e.store.Close())

	rec, env := e.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, ErrUnavailable, env.Error.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	e := newTestEnv(t, config.ServerConfig{})
	e.do(t, http.MethodGet, "/health", nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `prepwise_http_requests_total{endpoint="/health",method="GET",status="200"} 1`)
}

func TestCreateSession_Validation(t *testing.T) {
	e := newTestEnv(t, config.ServerConfig{})

	rec, env := e.do(t, http.MethodPost, "/api/v1/sessions", map[string]any{
		"topics":        []string{"Go"},
		"difficulty":    "expert",
		"questionTypes": []string{"coding"},
		"questionCount": 7,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, ErrValidation, env.Error.Code)
	assert.Contains(t, env.Error.Fields, "difficulty")
	assert.Contains(t, env.Error.Fields, "questionCount")

	rec, env = e.do(t, http.MethodPost, "/api/v1/sessions", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, ErrInvalidPayload, env.Error.Code)
}

func TestSessionFlow(t *testing.T) {
	e := newTestEnv(t, config.ServerConfig{})
	sess := e.createSession(t)
	assert.Equal(t, quiz.SessionInProgress, sess.Status)

	q := e.generate(t, sess.ID, 0)
	assert.Equal(t, "Explain Go slices", q.Title)
	assert.Equal(t, "v1.0", q.PromptVersion)

	// A filled slot is returned as is without calling the model.
	calls := e.mock.CallCount()
	rec, env := e.do(t, http.MethodPost, "/api/v1/sessions/"+sess.ID+"/questions/0", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, q.ID, decode[questionView](t, env.Data).ID)
	assert.Equal(t, calls, e.mock.CallCount())

	e.mock.AddResponse(llm.MockResponse{Content: verdictJSON})
	rec, env = e.do(t, http.MethodPost, "/api/v1/sessions/"+sess.ID+"/answers", map[string]any{
		"questionIndex": 0,
		"userAnswer":    "  A slice points at an array.  ",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	a := decode[answerView](t, env.Data)
	assert.Equal(t, quiz.AnswerCompleted, a.Status)
	require.NotNil(t, a.Score)
	assert.Equal(t, 82, *a.Score)
	assert.Equal(t, "A slice points at an array.", a.UserAnswer)
	assert.NotContains(t, string(env.Data), "reasoning")
	assert.NotContains(t, string(env.Data), "Covers the slice header")

	rec, env = e.do(t, http.MethodPost, "/api/v1/sessions/"+sess.ID+"/answers/1/skip", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	skipped := decode[answerView](t, env.Data)
	assert.Equal(t, quiz.AnswerSkipped, skipped.Status)
	assert.Nil(t, skipped.QuestionID)

	rec, env = e.do(t, http.MethodGet, "/api/v1/sessions/"+sess.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	d := decode[detailView](t, env.Data)
	assert.Len(t, d.Questions, 1)
	assert.Len(t, d.Answers, 2)
	assert.Equal(t, 2, d.Progress.Answered)
	require.NotNil(t, d.Progress.Next)
	assert.Equal(t, 2, *d.Progress.Next)

	rec, env = e.do(t, http.MethodPost, "/api/v1/sessions/"+sess.ID+"/complete", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sum := decode[quiz.Summary](t, env.Data)
	assert.Equal(t, 41, sum.FinalScore)
	assert.Equal(t, quiz.Beginner, sum.RecommendedDifficulty)

	rec, env = e.do(t, http.MethodGet, "/api/v1/sessions/"+sess.ID+"/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, sum, decode[quiz.Summary](t, env.Data))

	rec, env = e.do(t, http.MethodGet, "/api/v1/sessions?ownerId=u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]sessionView](t, env.Data), 1)
}

func TestGenerate_Exhausted(t *testing.T) {
	e := newTestEnv(t, config.ServerConfig{})
	sess := e.createSession(t)
	for range 3 {
		e.mock.AddResponse(llm.MockResponse{Content: "Here is a question about Go."})
	}

	rec, env := e.do(t, http.MethodPost, "/api/v1/sessions/"+sess.ID+"/questions/0", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, ErrGenerationFailed, env.Error.Code)
	assert.Equal(t, 3, e.mock.CallCount())
}

func TestGenerate_MaxAttemptsQuery(t *testing.T) {
	e := newTestEnv(t, config.ServerConfig{})
	sess := e.createSession(t)
	e.mock.AddResponse(llm.MockResponse{Content: "nope"})

	rec, _ := e.do(t, http.MethodPost, "/api/v1/sessions/"+sess.ID+"/questions/0?maxAttempts=1", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, 1, e.mock.CallCount())

	rec, _ = e.do(t, http.MethodPost, "/api/v1/sessions/"+sess.ID+"/questions/0?maxAttempts=11", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerate_SlotErrors(t *testing.T) {
	e := newTestEnv(t, config.ServerConfig{})
	sess := e.createSession(t)

	tests := []struct {
		name   string
		path   string
		status int
		code   ErrCode
	}{
		{"unknown session", "/api/v1/sessions/missing/questions/0", http.StatusNotFound, ErrNotFound},
		{"index out of range", "/api/v1/sessions/" + sess.ID + "/questions/5", http.StatusBadRequest, ErrValidation},
		{"bad index", "/api/v1/sessions/" + sess.ID + "/questions/x", http.StatusBadRequest, ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := e.do(t, http.MethodPost, tt.path, nil)
			assert.Equal(t, tt.status, rec.Code)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}

	_, _ = e.do(t, http.MethodPost, "/api/v1/sessions/"+sess.ID+"/complete", nil)
	rec, env := e.do(t, http.MethodPost, "/api/v1/sessions/"+sess.ID+"/questions/0", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, ErrSessionClosed, env.Error.Code)
}

func TestSubmit_EvaluationFailedThenReevaluate(t *testing.T) {
	e := newTestEnv(t, config.ServerConfig{})
	sess := e.createSession(t)
	e.generate(t, sess.ID, 0)

	for range 3 {
		e.mock.AddResponse(llm.MockResponse{Err: &llm.ErrProviderUnavailable{Err: assert.AnError}})
	}
	rec, env := e.do(t, http.MethodPost, "/api/v1/sessions/"+sess.ID+"/answers", map[string]any{
		"questionIndex": 0,
		"userAnswer":    "A slice points at an array.",
	})
	require.Equal(t, http.StatusBadGateway, rec.Code, rec.Body.String())
	require.NotNil(t, env.Error)
	assert.Equal(t, ErrEvaluationFailed, env.Error.Code)
	failed := decode[answerView](t, env.Data)
	assert.Equal(t, quiz.AnswerEvaluationFailed, failed.Status)
	assert.Nil(t, failed.Score)

	e.mock.AddResponse(llm.MockResponse{Content: verdictJSON})
	rec, env = e.do(t, http.MethodPost, "/api/v1/answers/"+failed.ID+"/reevaluate", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	a := decode[answerView](t, env.Data)
	assert.Equal(t, quiz.AnswerCompleted, a.Status)
	require.NotNil(t, a.Score)
	assert.Equal(t, 82, *a.Score)

	rec, env = e.do(t, http.MethodPost, "/api/v1/answers/"+failed.ID+"/reevaluate", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, ErrNotReevaluable, env.Error.Code)

	// The slot already holds an answer.
	rec, env = e.do(t, http.MethodPost, "/api/v1/sessions/"+sess.ID+"/answers", map[string]any{
		"questionIndex": 0,
		"userAnswer":    "again",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, ErrConflict, env.Error.Code)
}

func TestSubmit_Validation(t *testing.T) {
	e := newTestEnv(t, config.ServerConfig{})
	sess := e.createSession(t)

	rec, env := e.do(t, http.MethodPost, "/api/v1/sessions/"+sess.ID+"/answers", map[string]any{
		"userAnswer": "no index",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Contains(t, env.Error.Fields, "questionIndex")

	// No question generated for the slot yet.
	rec, env = e.do(t, http.MethodPost, "/api/v1/sessions/"+sess.ID+"/answers", map[string]any{
		"questionIndex": 3,
		"userAnswer":    "early",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, ErrNotFound, env.Error.Code)
}

func TestSkip_KeepsExistingAnswer(t *testing.T) {
	e := newTestEnv(t, config.ServerConfig{})
	sess := e.createSession(t)
	e.generate(t, sess.ID, 0)
	e.mock.AddResponse(llm.MockResponse{Content: verdictJSON})
	rec, _ := e.do(t, http.MethodPost, "/api/v1/sessions/"+sess.ID+"/answers", map[string]any{
		"questionIndex": 0,
		"userAnswer":    "answered",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, env := e.do(t, http.MethodPost, "/api/v1/sessions/"+sess.ID+"/answers/0/skip", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, quiz.AnswerCompleted, decode[answerView](t, env.Data).Status)
}

func TestRateLimit(t *testing.T) {
	e := newTestEnv(t, config.ServerConfig{RateLimit: 0.001, RateBurst: 1})

	rec, _ := e.do(t, http.MethodPost, "/api/v1/sessions/missing/questions/0", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, env := e.do(t, http.MethodPost, "/api/v1/sessions/missing/questions/0", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, ErrRateLimitExceeded, env.Error.Code)

	// Routes that do not call the model are not limited.
	rec, _ = e.do(t, http.MethodGet, "/api/v1/sessions/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimiterSweep(t *testing.T) {
	now := time.Unix(1000, 0)
	rl := newRateLimiter(1, 1)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.allow("a"))
	assert.False(t, rl.allow("a"))
	assert.True(t, rl.allow("b"))

	now = now.Add(2 * time.Second)
	assert.True(t, rl.allow("a"))

	now = now.Add(time.Hour)
	rl.sweep()
	assert.Empty(t, rl.visitors)
}

func TestWorkContext(t *testing.T) {
	e := newTestEnv(t, config.ServerConfig{})
	base, stopServer := context.WithCancel(context.Background())
	e.srv.base = base

	reqCtx, disconnect := context.WithCancel(context.Background())
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/", nil).WithContext(reqCtx)

	ctx, cancel := e.srv.work(c)
	defer cancel()

	disconnect()
	assert.NoError(t, ctx.Err(), "client disconnect must not cancel pipeline work")

	stopServer()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("server shutdown did not cancel pipeline work")
	}
}

func TestStreamQuestion(t *testing.T) {
	e := newTestEnv(t, config.ServerConfig{})
	sess := e.createSession(t)
	e.mock.ChunkSize = 16
	e.mock.AddResponse(llm.MockResponse{Content: questionJSON})

	ts := httptest.NewServer(e.srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/v1/sessions/" + sess.ID + "/questions/0/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var chunks strings.Builder
	var final streamMessage
	for {
		var m streamMessage
		require.NoError(t, conn.ReadJSON(&m))
		if m.Type != streamChunk {
			final = m
			break
		}
		chunks.WriteString(m.Chunk)
	}

	assert.Equal(t, questionJSON, chunks.String())
	require.Equal(t, streamQuestion, final.Type)
	require.NotNil(t, final.Question)
	assert.Equal(t, "Explain Go slices", final.Question.Title)

	stored, err := e.store.Questions().GetByIndex(context.Background(), sess.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, final.Question.ID, stored.ID)
}

func TestStreamQuestion_InvalidOutput(t *testing.T) {
	e := newTestEnv(t, config.ServerConfig{})
	sess := e.createSession(t)
	e.mock.AddResponse(llm.MockResponse{Content: "not a question"})

	ts := httptest.NewServer(e.srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/v1/sessions/" + sess.ID + "/questions/0/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var m streamMessage
	require.NoError(t, conn.ReadJSON(&m))
	assert.Equal(t, streamChunk, m.Type)
	require.NoError(t, conn.ReadJSON(&m))
	assert.Equal(t, streamError, m.Type)
	require.NotNil(t, m.Error)
	assert.Equal(t, ErrGenerationFailed, m.Error.Code)
}

func TestStreamQuestion_UnknownSession(t *testing.T) {
	e := newTestEnv(t, config.ServerConfig{})
	ts := httptest.NewServer(e.srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/v1/sessions/missing/questions/0/stream"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
