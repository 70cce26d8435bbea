package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/abhisek/prepwise/internal/evaluation"
	"github.com/abhisek/prepwise/internal/quiz"
	"github.com/abhisek/prepwise/internal/session"
	"github.com/abhisek/prepwise/internal/store"
)

type createSessionRequest struct {
	OwnerID       string   `json:"ownerId" binding:"max=128"`
	Topics        []string `json:"topics" binding:"required,min=1,max=10,dive,required,max=100"`
	Difficulty    string   `json:"difficulty" binding:"required,oneof=beginner normal advanced"`
	QuestionTypes []string `json:"questionTypes" binding:"required,min=1,dive,oneof=coding theoretical"`
	QuestionCount int      `json:"questionCount" binding:"required,oneof=5 10 20"`
}

type listSessionsQuery struct {
	OwnerID string `form:"ownerId"`
	Limit   int    `form:"limit" binding:"omitempty,min=1,max=100"`
}

type generateQuery struct {
	MaxAttempts int `form:"maxAttempts" binding:"omitempty,min=1,max=10"`
}

type submitAnswerRequest struct {
	QuestionIndex *int   `json:"questionIndex" binding:"required,min=0"`
	UserAnswer    string `json:"userAnswer" binding:"max=20000"`
}

func (s *Server) listSessions(c *gin.Context) {
	var q listSessionsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		failWith(c, http.StatusBadRequest, ErrValidation, translate(err), nil)
		return
	}
	if q.Limit == 0 {
		q.Limit = 20
	}

	sessions, err := s.deps.Sessions.List(c.Request.Context(), q.OwnerID, q.Limit)
	if err != nil {
		s.failErr(c, err, "", nil)
		return
	}
	out := make([]sessionView, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, newSessionView(sess))
	}
	success(c, http.StatusOK, out)
}

func (s *Server) createSession(c *gin.Context) {
	var req createSessionRequest
	if !bind(c, &req) {
		return
	}

	sess := quiz.Session{
		OwnerID:       req.OwnerID,
		Topics:        req.Topics,
		Difficulty:    quiz.Difficulty(req.Difficulty),
		QuestionCount: req.QuestionCount,
	}
	for _, t := range req.QuestionTypes {
		sess.QuestionTypes = append(sess.QuestionTypes, quiz.QuestionType(t))
	}

	created, err := s.deps.Sessions.Create(c.Request.Context(), sess)
	if err != nil {
		s.failErr(c, err, "", nil)
		return
	}
	success(c, http.StatusCreated, newSessionView(*created))
}

func (s *Server) getSession(c *gin.Context) {
	d, err := s.deps.Sessions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.failErr(c, err, "", nil)
		return
	}
	success(c, http.StatusOK, newDetailView(d))
}

// generateQuestion fills a slot. A slot that already holds a question
// returns it unchanged.
func (s *Server) generateQuestion(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}
	var q generateQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		failWith(c, http.StatusBadRequest, ErrValidation, translate(err), nil)
		return
	}

	sessionID := c.Param("id")
	params, err := s.deps.Sessions.GenerationParams(c.Request.Context(), sessionID, index)
	if err != nil {
		s.failErr(c, err, "", nil)
		return
	}

	existing, err := s.deps.Questions.GetByIndex(c.Request.Context(), sessionID, index)
	if err == nil {
		success(c, http.StatusOK, newQuestionView(*existing))
		return
	}
	if !errors.Is(err, store.ErrNotFound) {
		s.failErr(c, err, "", nil)
		return
	}

	ctx, cancel := s.work(c)
	defer cancel()
	question, err := s.deps.Generator.Generate(ctx, params, q.MaxAttempts)
	if err != nil {
		s.failErr(c, err, ErrGenerationFailed, nil)
		return
	}
	success(c, http.StatusCreated, newQuestionView(*question))
}

func (s *Server) submitAnswer(c *gin.Context) {
	var req submitAnswerRequest
	if !bind(c, &req) {
		return
	}

	sessionID := c.Param("id")
	if _, err := s.deps.Sessions.OpenSlot(c.Request.Context(), sessionID, *req.QuestionIndex); err != nil {
		s.failErr(c, err, "", nil)
		return
	}

	ctx, cancel := s.work(c)
	defer cancel()
	a, err := s.deps.Evaluator.Submit(ctx, evaluation.SubmitParams{
		SessionID:     sessionID,
		QuestionIndex: *req.QuestionIndex,
		UserAnswer:    req.UserAnswer,
	})
	s.answerResult(c, a, err, http.StatusCreated)
}

func (s *Server) reevaluateAnswer(c *gin.Context) {
	ctx, cancel := s.work(c)
	defer cancel()
	a, err := s.deps.Evaluator.Reevaluate(ctx, c.Param("id"))
	s.answerResult(c, a, err, http.StatusOK)
}

// answerResult writes an evaluation outcome. A failed evaluation still
// carries the stored answer so the client can re-evaluate it.
func (s *Server) answerResult(c *gin.Context, a *quiz.Answer, err error, status int) {
	if err != nil {
		var data any
		if a != nil {
			data = newAnswerView(*a)
		}
		s.failErr(c, err, ErrEvaluationFailed, data)
		return
	}
	success(c, status, newAnswerView(*a))
}

func (s *Server) skipAnswer(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}
	sessionID := c.Param("id")
	ctx := c.Request.Context()

	if _, err := s.deps.Sessions.OpenSlot(ctx, sessionID, index); err != nil {
		s.failErr(c, err, "", nil)
		return
	}
	if err := s.deps.Sessions.InsertSkippedAnswer(ctx, session.SkipParams{
		SessionID:     sessionID,
		QuestionIndex: index,
	}); err != nil {
		s.failErr(c, err, "", nil)
		return
	}

	// The slot may have been answered before the skip arrived.
	a, err := s.deps.Answers.GetByIndex(ctx, sessionID, index)
	if err != nil {
		s.failErr(c, err, "", nil)
		return
	}
	success(c, http.StatusOK, newAnswerView(*a))
}

func (s *Server) completeSession(c *gin.Context) {
	ctx, cancel := s.work(c)
	defer cancel()
	sum, err := s.deps.Sessions.CompleteQuizSession(ctx, c.Param("id"))
	if err != nil {
		s.failErr(c, err, "", nil)
		return
	}
	success(c, http.StatusOK, sum)
}

func (s *Server) sessionSummary(c *gin.Context) {
	sum, err := s.deps.Sessions.Summary(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.failErr(c, err, "", nil)
		return
	}
	success(c, http.StatusOK, sum)
}

func indexParam(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		failWith(c, http.StatusBadRequest, ErrValidation,
			map[string]string{"index": "index must be a non-negative integer"}, nil)
		return 0, false
	}
	return index, true
}
