package api

import (
	"time"

	"github.com/abhisek/prepwise/internal/quiz"
	"github.com/abhisek/prepwise/internal/session"
)

type sessionView struct {
	ID            string              `json:"id"`
	OwnerID       string              `json:"ownerId,omitempty"`
	Topics        []string            `json:"topics"`
	Difficulty    quiz.Difficulty     `json:"difficulty"`
	QuestionTypes []quiz.QuestionType `json:"questionTypes"`
	QuestionCount int                 `json:"questionCount"`
	Status        quiz.SessionStatus  `json:"status"`
	CreatedAt     time.Time           `json:"createdAt"`
	UpdatedAt     time.Time           `json:"updatedAt"`
}

func newSessionView(s quiz.Session) sessionView {
	return sessionView{
		ID:            s.ID,
		OwnerID:       s.OwnerID,
		Topics:        s.Topics,
		Difficulty:    s.Difficulty,
		QuestionTypes: s.QuestionTypes,
		QuestionCount: s.QuestionCount,
		Status:        s.Status,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
}

type questionView struct {
	ID             string            `json:"id"`
	SessionID      string            `json:"sessionId"`
	Index          int               `json:"index"`
	Title          string            `json:"title"`
	Body           string            `json:"body"`
	Type           quiz.QuestionType `json:"type"`
	Difficulty     quiz.Difficulty   `json:"difficulty"`
	Topic          string            `json:"topic"`
	ExpectedFormat *string           `json:"expectedFormat,omitempty"`
	PromptVersion  string            `json:"promptVersion"`
	ModelID        string            `json:"modelId"`
	CreatedAt      time.Time         `json:"createdAt"`
}

func newQuestionView(q quiz.Question) questionView {
	return questionView{
		ID:             q.ID,
		SessionID:      q.SessionID,
		Index:          q.Index,
		Title:          q.Title,
		Body:           q.Body,
		Type:           q.Type,
		Difficulty:     q.Difficulty,
		Topic:          q.Topic,
		ExpectedFormat: q.ExpectedFormat,
		PromptVersion:  q.PromptVersion,
		ModelID:        q.ModelID,
		CreatedAt:      q.CreatedAt,
	}
}

type answerView struct {
	ID                string            `json:"id"`
	SessionID         string            `json:"sessionId"`
	QuestionID        *string           `json:"questionId"`
	QuestionIndex     int               `json:"questionIndex"`
	UserAnswer        string            `json:"userAnswer"`
	Status            quiz.AnswerStatus `json:"status"`
	Score             *int              `json:"score"`
	Feedback          string            `json:"feedback,omitempty"`
	ModelAnswer       string            `json:"modelAnswer,omitempty"`
	EvalPromptVersion string            `json:"evalPromptVersion,omitempty"`
	ModelID           string            `json:"modelId,omitempty"`
	CreatedAt         time.Time         `json:"createdAt"`
	EvaluatedAt       *time.Time        `json:"evaluatedAt,omitempty"`
}

func newAnswerView(a quiz.Answer) answerView {
	return answerView{
		ID:                a.ID,
		SessionID:         a.SessionID,
		QuestionID:        a.QuestionID,
		QuestionIndex:     a.QuestionIndex,
		UserAnswer:        a.UserAnswer,
		Status:            a.Status,
		Score:             a.Score,
		Feedback:          a.Feedback,
		ModelAnswer:       a.ModelAnswer,
		EvalPromptVersion: a.EvalPromptVersion,
		ModelID:           a.ModelID,
		CreatedAt:         a.CreatedAt,
		EvaluatedAt:       a.EvaluatedAt,
	}
}

type progressView struct {
	Total     int  `json:"total"`
	Generated int  `json:"generated"`
	Answered  int  `json:"answered"`
	Skipped   int  `json:"skipped"`
	Failed    int  `json:"failed"`
	Next      *int `json:"next"`
}

type detailView struct {
	Session   sessionView    `json:"session"`
	Questions []questionView `json:"questions"`
	Answers   []answerView   `json:"answers"`
	Progress  progressView   `json:"progress"`
}

func newDetailView(d *session.Detail) detailView {
	v := detailView{
		Session:   newSessionView(d.Session),
		Questions: make([]questionView, 0, len(d.Questions)),
		Answers:   make([]answerView, 0, len(d.Answers)),
	}
	for _, q := range d.Questions {
		v.Questions = append(v.Questions, newQuestionView(q))
	}
	for _, a := range d.Answers {
		v.Answers = append(v.Answers, newAnswerView(a))
	}

	p := session.ProgressOf(d)
	v.Progress = progressView{
		Total:     p.Total,
		Generated: p.Generated,
		Answered:  p.Answered,
		Skipped:   p.Skipped,
		Failed:    p.Failed,
	}
	if !p.Done() {
		v.Progress.Next = &p.Next
	}
	return v
}
