package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/shouni/go-st-localizer/pkg/binder"
	"github.com/shouni/go-st-localizer/pkg/host"
	"github.com/shouni/go-st-localizer/pkg/localizer"
)

// Config holds server configuration.
type Config struct {
	Addr        string
	SettingsKey string // key the browser-side settings blob is stored under
	AllowAll    bool   // allow all CORS origins (dev mode)
}

// Server は、ローカライザを HTTP 越しに使えるようにするサーバーなのだ。
// ホストの状態とチャットのドキュメントをメモリ上に持ち、ブラウザ側の拡張から
// 描画やイベントを受け取って Binder を動かすのだ。
type Server struct {
	cfg        Config
	builder    *localizer.Builder
	state      *host.State
	doc        *host.HTMLDocument
	binder     *binder.Binder
	logger     *slog.Logger
	router     chi.Router
	httpServer *http.Server
}

// New creates a new server with all dependencies.
func New(cfg Config, builder *localizer.Builder, state *host.State, doc *host.HTMLDocument, b *binder.Binder, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:     cfg,
		builder: builder,
		state:   state,
		doc:     doc,
		binder:  b,
		logger:  logger,
	}
	s.router = s.buildRouter()
	return s
}

// buildRouter creates and configures the chi router with all routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	corsOpts := cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if s.cfg.AllowAll {
		corsOpts.AllowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(corsOpts))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
			"binder": s.binder.State().String(),
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/localize/map", s.handleMap)
		r.Post("/localize/html", s.handleHTML)
		r.Delete("/cache", s.handleClearCache)

		r.Put("/host/characters/{id}", s.handlePutCharacter)
		r.Put("/host/active", s.handleSetActive)
		r.Put("/host/settings", s.handlePutSettings)

		r.Get("/chat", s.handleGetChat)
		r.Get("/chat/messages/{mesid}", s.handleGetMessage)
		r.Put("/chat/messages/{mesid}", s.handleRenderMessage)

		r.Post("/events", s.handleEvent)
	})

	return r
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

// Start begins listening on the configured address.
func (s *Server) Start(ctx context.Context) error {
	s.binder.Start(ctx)

	s.httpServer = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info("ローカライザのサーバーを起動するのだ", "addr", s.cfg.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
