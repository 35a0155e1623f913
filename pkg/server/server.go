// Package server exposes the relay pipeline over HTTP with Fiber.
//
// Handlers return Go errors; the app's ErrorHandler is the only place that
// turns them into status codes and {error, fallback} bodies.
package server

import (
	"context"
	"log/slog"
	"os"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"

	"github.com/teslashibe/voice-relay/pkg/clips"
	"github.com/teslashibe/voice-relay/pkg/hub"
	"github.com/teslashibe/voice-relay/pkg/relay"
)

// Config configures the HTTP server.
type Config struct {
	// Addr is the listen address, e.g. ":8000".
	Addr string

	// StaticDir holds the browser client. Skipped when it does not exist.
	StaticDir string

	// BodyLimit caps request bodies. Keep it above the pipeline's audio
	// limit so oversized uploads get the pipeline's 413 body.
	BodyLimit int

	// AccessLog enables per-request logging.
	AccessLog bool

	Logger *slog.Logger
}

// DefaultConfig returns the defaults used by cmd/relay.
func DefaultConfig() Config {
	return Config{
		Addr:      ":8000",
		StaticDir: "./static",
		BodyLimit: 64 << 20,
	}
}

// Server is the relay HTTP surface.
type Server struct {
	app      *fiber.App
	cfg      Config
	pipeline *relay.Pipeline
	clips    *clips.Store
	hub      *hub.Hub
	logger   *slog.Logger
}

// New builds the Fiber app. clipStore must be the store the pipeline
// writes to; h may be nil to disable /ws/events.
func New(p *relay.Pipeline, clipStore *clips.Store, h *hub.Hub, cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.BodyLimit <= 0 {
		cfg.BodyLimit = DefaultConfig().BodyLimit
	}

	s := &Server{
		cfg:      cfg,
		pipeline: p,
		clips:    clipStore,
		hub:      h,
		logger:   cfg.Logger.With("component", "server"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "voice-relay",
		DisableStartupMessage: true,
		BodyLimit:             cfg.BodyLimit,
		ErrorHandler:          s.handleError,
	})

	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	if cfg.AccessLog {
		app.Use(logger.New())
	}
	app.Use(cors.New())

	app.Get("/health", s.handleHealth)
	app.Get("/metrics", s.handleMetrics)
	app.Get("/audio/:id", s.handleAudio)

	app.Post("/transcribe/file", s.handleTranscribe)
	app.Post("/generate-audio", s.handleGenerateAudio)
	app.Post("/generate-error-audio", s.handleErrorAudio)
	app.Post("/tts/echo", s.handleEcho)
	app.Post("/llm/query", s.handleQuery)
	app.Post("/llm/query/text", s.handleQueryText)

	agent := app.Group("/agent")
	agent.Post("/chat/:session_id", s.handleChat)
	agent.Get("/history/:session_id", s.handleHistory)
	agent.Delete("/history/:session_id", s.handleClearHistory)
	agent.Get("/sessions", s.handleSessions)

	if h != nil {
		app.Use("/ws", func(c *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		})
		app.Get("/ws/events", h.Handler())

		p.OnResult(func(ev relay.Event) {
			if err := h.BroadcastJSON(ev); err != nil {
				s.logger.Warn("event broadcast failed", "error", err)
			}
		})
	}

	if info, err := os.Stat(cfg.StaticDir); err == nil && info.IsDir() {
		app.Static("/", cfg.StaticDir)
	}

	s.app = app
	return s
}

// App returns the Fiber app, for tests and custom listeners.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start listens on the configured address. It blocks until Shutdown.
func (s *Server) Start() error {
	s.logger.Info("listening", "addr", s.cfg.Addr)
	return s.app.Listen(s.cfg.Addr)
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
