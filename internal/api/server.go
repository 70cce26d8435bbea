// Package api serves practice sessions over HTTP and WebSocket.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/abhisek/prepwise/internal/config"
	"github.com/abhisek/prepwise/internal/evaluation"
	"github.com/abhisek/prepwise/internal/metrics"
	"github.com/abhisek/prepwise/internal/questiongen"
	"github.com/abhisek/prepwise/internal/session"
	"github.com/abhisek/prepwise/internal/store"
)

// Deps are the services behind the routes.
type Deps struct {
	Sessions  *session.Service
	Generator *questiongen.Pipeline
	Evaluator *evaluation.Pipeline
	Questions store.QuestionRepo
	Answers   store.AnswerRepo

	// Health reports whether the store is reachable. Optional.
	Health func(context.Context) error

	// Metrics is optional. When set, /metrics is served.
	Metrics *metrics.Metrics
	Log     zerolog.Logger
}

// Server is the HTTP front end.
type Server struct {
	cfg      config.ServerConfig
	deps     Deps
	log      zerolog.Logger
	limiter  *rateLimiter
	upgrader websocket.Upgrader
	engine   *gin.Engine

	// base outlives requests; pipeline work is bound to it instead of the
	// request so disconnecting clients do not abort evaluations.
	base context.Context
}

// New builds the server and its routes.
func New(cfg config.ServerConfig, deps Deps) *Server {
	setupValidator()
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	s := &Server{
		cfg:      cfg,
		deps:     deps,
		log:      deps.Log.With().Str("component", "api").Logger(),
		upgrader: newUpgrader(cfg.AllowedOrigins),
		base:     context.Background(),
	}
	if cfg.RateLimit > 0 {
		s.limiter = newRateLimiter(cfg.RateLimit, cfg.RateBurst)
	}
	s.engine = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on cfg.Addr until ctx is done, then shuts down gracefully.
// In-flight pipeline work is cancelled once the shutdown timeout passes.
func (s *Server) Run(ctx context.Context) error {
	base, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.base = base

	if s.limiter != nil {
		go s.limiter.run(base.Done())
	}

	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.cfg.Addr).Msg("listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, stop := context.WithTimeout(context.Background(), timeout)
	defer stop()

	s.log.Info().Dur("timeout", timeout).Msg("shutting down")
	return srv.Shutdown(shutdownCtx)
}

// work returns a context for pipeline calls made on behalf of c. It keeps
// the request's values, ignores its cancellation and ends with the server.
func (s *Server) work(c *gin.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(c.Request.Context()))
	stop := context.AfterFunc(s.base, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(s.cfg.AllowedOrigins) == 0 || (len(s.cfg.AllowedOrigins) == 1 && s.cfg.AllowedOrigins[0] == "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = s.cfg.AllowedOrigins
	}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	r.Use(cors.New(corsConfig))

	r.Use(RequestID())
	r.Use(requestLogger(s.log))
	if s.deps.Metrics != nil {
		r.Use(s.deps.Metrics.Middleware())
		r.GET("/metrics", gin.WrapH(s.deps.Metrics.Handler()))
	}

	r.GET("/health", s.health)

	limited := func(h gin.HandlerFunc) []gin.HandlerFunc {
		if s.limiter == nil {
			return []gin.HandlerFunc{h}
		}
		return []gin.HandlerFunc{s.limiter.middleware(), h}
	}

	v1 := r.Group("/api/v1")
	{
		v1.GET("/sessions", s.listSessions)
		v1.POST("/sessions", s.createSession)
		v1.GET("/sessions/:id", s.getSession)
		v1.POST("/sessions/:id/questions/:index", limited(s.generateQuestion)...)
		v1.POST("/sessions/:id/answers", limited(s.submitAnswer)...)
		v1.POST("/sessions/:id/answers/:index/skip", s.skipAnswer)
		v1.POST("/sessions/:id/complete", s.completeSession)
		v1.GET("/sessions/:id/summary", s.sessionSummary)
		v1.POST("/answers/:id/reevaluate", limited(s.reevaluateAnswer)...)
	}

	r.GET("/ws/v1/sessions/:id/questions/:index/stream", limited(s.streamQuestion)...)

	r.NoRoute(func(c *gin.Context) {
		fail(c, http.StatusNotFound, ErrNotFound)
	})
	return r
}

func (s *Server) health(c *gin.Context) {
	if s.deps.Health != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Health(ctx); err != nil {
			s.log.Warn().Err(err).Msg("health check failed")
			fail(c, http.StatusServiceUnavailable, ErrUnavailable)
			return
		}
	}
	success(c, http.StatusOK, gin.H{"status": "ok"})
}

func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		ev := log.Debug()
		switch {
		case status >= http.StatusInternalServerError:
			ev = log.Error()
		case status >= http.StatusBadRequest:
			ev = log.Info()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Str("request_id", c.GetString(contextKeyRequestID)).
			Msg("http request")
	}
}
