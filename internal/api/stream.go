package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// Stream message types.
const (
	streamChunk    = "chunk"
	streamQuestion = "question"
	streamError    = "error"
)

type streamMessage struct {
	Type     string        `json:"type"`
	Chunk    string        `json:"chunk,omitempty"`
	Question *questionView `json:"question,omitempty"`
	Error    *ErrorBody    `json:"error,omitempty"`
}

// newUpgrader accepts any origin when allowed is empty or "*".
func newUpgrader(allowed []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, o := range allowed {
				if o == "*" || strings.EqualFold(o, origin) {
					return true
				}
			}
			return len(allowed) == 0
		},
	}
}

// streamQuestion runs one streamed generation attempt over a WebSocket.
// Raw chunks are sent as they arrive, followed by the stored question or
// an error. Session and slot problems are reported before the upgrade as
// regular JSON errors.
func (s *Server) streamQuestion(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}
	sessionID := c.Param("id")
	params, err := s.deps.Sessions.GenerationParams(c.Request.Context(), sessionID, index)
	if err != nil {
		s.failErr(c, err, "", nil)
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	log := s.log.With().Str("session_id", sessionID).Int("question_index", index).Logger()

	// Drain control frames; a closed connection fails the next write.
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	send := func(m streamMessage) error {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(m)
	}

	ctx, cancel := s.work(c)
	defer cancel()

	q, err := s.deps.Generator.Stream(ctx, params, func(chunk string) error {
		return send(streamMessage{Type: streamChunk, Chunk: chunk})
	})
	if err != nil {
		_, code := classify(err, ErrGenerationFailed)
		log.Warn().Err(err).Str("code", string(code)).Msg("streamed generation failed")
		_ = send(streamMessage{Type: streamError, Error: &ErrorBody{
			Code:    code,
			Message: Message(code),
		}})
	} else {
		v := newQuestionView(*q)
		_ = send(streamMessage{Type: streamQuestion, Question: &v})
	}

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
