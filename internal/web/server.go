package web

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/hpungsan/objective/internal/config"
	"github.com/hpungsan/objective/internal/notify"
	"github.com/hpungsan/objective/internal/ops"
)

// Trigger is the part of the judgement trigger the HTTP API drives.
type Trigger interface {
	PageLoaded() bool
	Manual(ctx context.Context) error
}

// Server is the HTTP API the browser extension talks to.
type Server struct {
	router     chi.Router
	httpServer *http.Server
}

// NewServer wires the JSON API under /api/v1, the event stream at /ws and
// a health check.
func NewServer(cfg *config.Config, engine *ops.Engine, trig Trigger, hub *notify.Hub, version string) *Server {
	router := chi.NewRouter()

	router.Use(chimw.RequestID)
	router.Use(chimw.Recoverer)
	router.Use(requestLogger)
	router.Use(securityHeaders)
	router.Use(cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}).Handler)

	router.Route("/api/v1", func(r chi.Router) {
		apiConfig := huma.DefaultConfig("Objective API", version)
		apiConfig.Servers = []*huma.Server{
			{URL: "/api/v1"},
		}
		api := humachi.New(r, apiConfig)
		Register(api, engine, trig)
	})

	router.Get("/ws", hub.ServeWS(&websocket.AcceptOptions{
		OriginPatterns: originPatterns(cfg.AllowedOrigins),
	}))

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	return &Server{
		router: router,
		httpServer: &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start listens until Shutdown is called.
func (s *Server) Start(_ context.Context) error {
	log.Info().Str("component", "web").Str("addr", s.httpServer.Addr).Msg("http api listening")
	if strings.HasPrefix(s.httpServer.Addr, "0.0.0.0") || strings.HasPrefix(s.httpServer.Addr, ":") {
		log.Warn().Str("component", "web").Msg("binding to all interfaces; the API may be reachable from the network")
	}

	if err := s.httpServer.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("web.Start: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("web.Shutdown: %w", err)
	}
	return nil
}

// originPatterns converts CORS origins to websocket host patterns.
// Extension origins such as chrome-extension://<id> match on their id.
func originPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		if i := strings.Index(o, "://"); i >= 0 {
			o = o[i+3:]
		}
		if o != "" {
			patterns = append(patterns, o)
		}
	}
	return patterns
}

// securityHeaders adds security-related HTTP headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// requestLogger logs one line per request at debug level.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		log.Debug().
			Str("component", "web").
			Str("request_id", chimw.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}
