package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/abhisek/prepwise/internal/evaluation"
	"github.com/abhisek/prepwise/internal/quiz"
	"github.com/abhisek/prepwise/internal/session"
	"github.com/abhisek/prepwise/internal/store"
)

// classify maps a service error to a status and code. pipeline is the
// code used for pipeline failures; empty outside pipeline routes.
func classify(err error, pipeline ErrCode) (int, ErrCode) {
	var qe *quiz.Error
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, ErrNotFound
	case errors.Is(err, store.ErrDuplicate), errors.Is(err, store.ErrInvalidTransition):
		return http.StatusConflict, ErrConflict
	case errors.Is(err, session.ErrNotInProgress):
		return http.StatusConflict, ErrSessionClosed
	case errors.Is(err, evaluation.ErrNotReevaluable):
		return http.StatusConflict, ErrNotReevaluable
	case errors.Is(err, session.ErrInvalidSession), errors.Is(err, session.ErrIndexOutOfRange):
		return http.StatusBadRequest, ErrValidation
	case pipeline != "" && quiz.IsExhausted(err):
		return http.StatusBadGateway, pipeline
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, ErrUnavailable
	case pipeline != "" && errors.As(err, &qe):
		// A single streamed attempt fails without exhausting retries.
		return http.StatusBadGateway, pipeline
	}
	return http.StatusInternalServerError, ErrInternal
}

// failErr writes the error response for err. data is attached to the
// envelope, e.g. the answer whose evaluation failed.
func (s *Server) failErr(c *gin.Context, err error, pipeline ErrCode, data any) {
	status, code := classify(err, pipeline)

	var fields map[string]string
	if status == http.StatusBadRequest {
		fields = map[string]string{"detail": err.Error()}
	}

	ev := s.log.Warn()
	if status >= http.StatusInternalServerError {
		ev = s.log.Error()
	}
	ev.Err(err).Str("request_id", c.GetString(contextKeyRequestID)).
		Str("code", string(code)).Msg("request failed")

	failWith(c, status, code, fields, data)
}
