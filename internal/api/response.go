package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ErrCode identifies an API error independently of its message.
type ErrCode string

const (
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"
	ErrNotFound       ErrCode = "NOT_FOUND"
	ErrConflict       ErrCode = "CONFLICT"
	ErrSessionClosed  ErrCode = "SESSION_CLOSED"
	ErrNotReevaluable ErrCode = "NOT_REEVALUABLE"

	// Terminal pipeline failures. The client may offer a retry.
	ErrGenerationFailed ErrCode = "GENERATION_FAILED"
	ErrEvaluationFailed ErrCode = "EVALUATION_FAILED"

	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"
	ErrUnavailable       ErrCode = "SERVICE_UNAVAILABLE"
	ErrInternal          ErrCode = "INTERNAL_ERROR"
)

var messages = map[ErrCode]string{
	ErrValidation:        "Validation failed. Check the request fields.",
	ErrInvalidPayload:    "The request body is not valid JSON.",
	ErrNotFound:          "Resource not found.",
	ErrConflict:          "The resource already exists or is in a conflicting state.",
	ErrSessionClosed:     "The session is no longer in progress.",
	ErrNotReevaluable:    "Only pending or failed answers can be re-evaluated.",
	ErrGenerationFailed:  "Question generation failed. Please retry.",
	ErrEvaluationFailed:  "Answer evaluation failed. Please retry.",
	ErrRateLimitExceeded: "Too many requests. Please try again later.",
	ErrUnavailable:       "The service is unavailable.",
	ErrInternal:          "Internal server error.",
}

// Message returns the default message for code.
func Message(code ErrCode) string {
	if m, ok := messages[code]; ok {
		return m
	}
	return "Unexpected error."
}

// Response is the envelope of every JSON response.
type Response struct {
	Data     any        `json:"data"`
	Error    *ErrorBody `json:"error,omitempty"`
	Metadata Metadata   `json:"metadata"`
}

// ErrorBody describes a failed request.
type ErrorBody struct {
	Code    ErrCode           `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Metadata carries request tracing.
type Metadata struct {
	RequestID string `json:"request_id"`
	Timestamp string `json:"timestamp"`
}

// contextKeyRequestID is the gin context key for the request ID.
const contextKeyRequestID = "request_id"

// RequestID reuses the client's X-Request-ID or assigns a new one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(contextKeyRequestID, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

func success(c *gin.Context, status int, data any) {
	c.JSON(status, Response{Data: data, Metadata: metadata(c)})
}

func fail(c *gin.Context, status int, code ErrCode) {
	failWith(c, status, code, nil, nil)
}

// failWith sends an error with optional field details and data, e.g. the
// failed answer so the client can re-evaluate it.
func failWith(c *gin.Context, status int, code ErrCode, fields map[string]string, data any) {
	c.AbortWithStatusJSON(status, Response{
		Data:     data,
		Error:    &ErrorBody{Code: code, Message: Message(code), Fields: fields},
		Metadata: metadata(c),
	})
}

func metadata(c *gin.Context) Metadata {
	id := c.GetString(contextKeyRequestID)
	if id == "" {
		id = uuid.NewString()
	}
	return Metadata{
		RequestID: id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}
