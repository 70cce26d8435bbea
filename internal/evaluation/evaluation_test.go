package evaluation

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/prepwise/internal/llm"
	"github.com/abhisek/prepwise/internal/provider"
	"github.com/abhisek/prepwise/internal/quiz"
	"github.com/abhisek/prepwise/internal/store"
)

const validVerdict = `{"reasoning":"Covers the slice header and growth.","score":82,"feedback":"Mention amortized cost.","modelAnswer":"A slice is a view over an array."}`

type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *sleepRecorder) Sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waits = append(s.waits, d)
	return nil
}

func testParams() quiz.EvaluationParams {
	return quiz.EvaluationParams{
		Question:     "Explain Go slices\n\nDescribe how a slice relates to its backing array.",
		QuestionType: quiz.Theoretical,
		Difficulty:   quiz.Normal,
		Topic:        "Go",
		UserAnswer:   "A slice is a pointer, a length and a capacity.",
	}
}

func TestEvaluateWithRetry_FailTwiceThenSucceed(t *testing.T) {
	mock := llm.NewMockProvider(
		llm.MockResponse{Err: &llm.ErrProviderUnavailable{Err: errors.New("503")}},
		llm.MockResponse{Err: &llm.ErrRateLimit{}},
		llm.MockResponse{Content: validVerdict},
	)
	sleep := &sleepRecorder{}
	ev := NewEvaluator(provider.New(mock), DefaultConfig(), WithSleep(sleep.Sleep))

	res, err := ev.EvaluateWithRetry(context.Background(), testParams())
	require.NoError(t, err)
	assert.Equal(t, 82, res.Score)
	assert.Equal(t, 3, mock.CallCount())

	require.Len(t, sleep.waits, 2)
	assert.GreaterOrEqual(t, sleep.waits[0], 1000*time.Millisecond)
	assert.LessOrEqual(t, sleep.waits[0], 1100*time.Millisecond)
	assert.GreaterOrEqual(t, sleep.waits[1], 2000*time.Millisecond)
	assert.LessOrEqual(t, sleep.waits[1], 2200*time.Millisecond)
}

func TestEvaluateWithRetry_Jitter(t *testing.T) {
	mock := llm.NewMockProvider(
		llm.MockResponse{Content: "{}"},
		llm.MockResponse{Content: validVerdict},
	)
	sleep := &sleepRecorder{}
	ev := NewEvaluator(provider.New(mock), DefaultConfig(),
		WithSleep(sleep.Sleep),
		WithRand(func() float64 { return 0.999 }),
	)

	_, err := ev.EvaluateWithRetry(context.Background(), testParams())
	require.NoError(t, err)
	require.Len(t, sleep.waits, 1)
	assert.InDelta(t, float64(1099*time.Millisecond), float64(sleep.waits[0]), float64(time.Millisecond))
}

func TestEvaluateWithRetry_AlwaysTimesOut(t *testing.T) {
	mock := llm.NewMockProvider(
		llm.MockResponse{Content: validVerdict, Delay: time.Minute},
		llm.MockResponse{Content: validVerdict, Delay: time.Minute},
		llm.MockResponse{Content: validVerdict, Delay: time.Minute},
	)
	cfg := DefaultConfig()
	cfg.Timeout = 20 * time.Millisecond
	ev := NewEvaluator(provider.New(mock), cfg, WithSleep((&sleepRecorder{}).Sleep))

	start := time.Now()
	_, err := ev.EvaluateWithRetry(context.Background(), testParams())
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second, "timed-out calls must not be awaited")

	var ex *quiz.ExhaustedError
	require.ErrorAs(t, err, &ex)
	assert.Equal(t, 3, ex.Attempts)
	assert.Equal(t, quiz.KindTimeout, quiz.KindOf(ex.Last))
	assert.Equal(t, "evaluation failed after 3 attempts: evaluation timed out after 20ms", err.Error())
	assert.Equal(t, 3, mock.CallCount())
}

func TestTimeoutMessage(t *testing.T) {
	ev := NewEvaluator(provider.New(llm.NewMockProvider()), DefaultConfig())
	assert.Equal(t, "evaluation timed out after 30s", ev.timedOut().Error())
}

func TestEvaluateWithRetry_MalformedExhausted(t *testing.T) {
	mock := llm.NewMockProvider(
		llm.MockResponse{Content: `{"reasoning":"short","score":101,"feedback":"x","modelAnswer":"y"}`},
		llm.MockResponse{Content: `{"score":"80"}`},
		llm.MockResponse{Content: "I think it is fine."},
	)
	ev := NewEvaluator(provider.New(mock), DefaultConfig(), WithSleep((&sleepRecorder{}).Sleep))

	_, err := ev.EvaluateWithRetry(context.Background(), testParams())
	require.True(t, quiz.IsExhausted(err), "got %v", err)
	var ex *quiz.ExhaustedError
	require.ErrorAs(t, err, &ex)
	assert.Equal(t, quiz.KindMalformed, quiz.KindOf(ex.Last))
}

func TestEvaluateWithRetry_ParentCancelled(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Content: validVerdict, Delay: time.Minute})
	ev := NewEvaluator(provider.New(mock), DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)

	_, err := ev.EvaluateWithRetry(ctx, testParams())
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, quiz.IsExhausted(err))
	assert.Equal(t, 1, mock.CallCount())
}

func TestEvaluateWithRetry_UsesZeroTemperatureAndJSON(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Content: "```json\n" + validVerdict + "\n```"})
	ev := NewEvaluator(provider.New(mock), DefaultConfig())

	_, err := ev.EvaluateWithRetry(context.Background(), testParams())
	require.NoError(t, err)
	req := mock.LastCall()
	assert.True(t, req.JSON)
	assert.Zero(t, req.Temperature)
}

// Pipeline

type fixture struct {
	store    *store.Store
	mock     *llm.MockProvider
	pipeline *Pipeline
	session  *quiz.Session
}

func newFixture(t *testing.T, answers func(store.AnswerRepo) store.AnswerRepo) *fixture {
	t.Helper()
	ctx := context.Background()
	s, err := store.OpenSQLite(ctx, filepath.Join(t.TempDir(), "eval.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	sess := &quiz.Session{
		Topics:        []string{"Go"},
		Difficulty:    quiz.Normal,
		QuestionTypes: []quiz.QuestionType{quiz.Theoretical},
		QuestionCount: 5,
	}
	require.NoError(t, s.Sessions().Create(ctx, sess))
	require.NoError(t, s.Questions().Insert(ctx, &quiz.Question{
		SessionID: sess.ID,
		Index:     0,
		GeneratedQuestion: quiz.GeneratedQuestion{
			Title:      "Explain Go slices",
			Body:       "Describe how a Go slice header relates to its backing array and what happens on append.",
			Type:       quiz.Theoretical,
			Difficulty: quiz.Normal,
			Topic:      "Go",
		},
		PromptVersion: "v1.0",
		ModelID:       "mock",
	}))

	repo := s.Answers()
	if answers != nil {
		repo = answers(repo)
	}
	mock := llm.NewMockProvider()
	ev := NewEvaluator(provider.New(mock), DefaultConfig(), WithSleep((&sleepRecorder{}).Sleep))
	return &fixture{
		store:    s,
		mock:     mock,
		pipeline: NewPipeline(ev, s.Questions(), repo, zerolog.Nop(), nil),
		session:  sess,
	}
}

func TestSubmit_Completed(t *testing.T) {
	f := newFixture(t, nil)
	f.mock.AddResponse(llm.MockResponse{Content: validVerdict})

	a, err := f.pipeline.Submit(context.Background(), SubmitParams{SessionID: f.session.ID, QuestionIndex: 0, UserAnswer: "  header plus array  "})
	require.NoError(t, err)
	assert.Equal(t, quiz.AnswerCompleted, a.Status)
	require.NotNil(t, a.Score)
	assert.Equal(t, 82, *a.Score)
	assert.Equal(t, "header plus array", a.UserAnswer)
	assert.Equal(t, "v1.0", a.EvalPromptVersion)
	assert.Equal(t, "mock", a.ModelID)
	assert.NotNil(t, a.QuestionID)

	assert.Contains(t, f.mock.LastCall().Messages[0].Content, "header plus array")
}

func TestSubmit_FailedThenReevaluated(t *testing.T) {
	f := newFixture(t, nil)
	for range 3 {
		f.mock.AddResponse(llm.MockResponse{Err: &llm.ErrProviderUnavailable{}})
	}

	a, err := f.pipeline.Submit(context.Background(), SubmitParams{SessionID: f.session.ID, QuestionIndex: 0, UserAnswer: "no idea"})
	require.True(t, quiz.IsExhausted(err), "got %v", err)
	require.NotNil(t, a)
	assert.Equal(t, quiz.AnswerEvaluationFailed, a.Status)

	stored, err := f.store.Answers().Get(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, quiz.AnswerEvaluationFailed, stored.Status)
	assert.Nil(t, stored.Score)

	f.mock.AddResponse(llm.MockResponse{Content: validVerdict})
	re, err := f.pipeline.Reevaluate(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, quiz.AnswerCompleted, re.Status)
	assert.Equal(t, a.ID, re.ID)

	_, err = f.pipeline.Reevaluate(context.Background(), a.ID)
	assert.ErrorIs(t, err, ErrNotReevaluable)
}

func TestSubmit_UnknownQuestion(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.pipeline.Submit(context.Background(), SubmitParams{SessionID: f.session.ID, QuestionIndex: 4, UserAnswer: "x"})
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Zero(t, f.mock.CallCount())
}

type failingMarkFailed struct {
	store.AnswerRepo
}

func (failingMarkFailed) MarkFailed(context.Context, string) error {
	return errors.New("database is locked")
}

func TestSubmit_MarkFailedErrorIsDropped(t *testing.T) {
	f := newFixture(t, func(r store.AnswerRepo) store.AnswerRepo { return failingMarkFailed{r} })
	for range 3 {
		f.mock.AddResponse(llm.MockResponse{Content: "nope"})
	}

	a, err := f.pipeline.Submit(context.Background(), SubmitParams{SessionID: f.session.ID, QuestionIndex: 0, UserAnswer: "x"})
	require.True(t, quiz.IsExhausted(err), "evaluation error must win, got %v", err)
	assert.Equal(t, quiz.AnswerPending, a.Status)

	stored, err := f.store.Answers().Get(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, quiz.AnswerPending, stored.Status, "pending row survives")
}
