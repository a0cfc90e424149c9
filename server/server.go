// Package server exposes the translation pipeline over HTTP and websockets.
package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/websocket/v2"
	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"

	"github.com/mrsingh-rishi/voice-translate/output"
	"github.com/mrsingh-rishi/voice-translate/pipeline"
	"github.com/mrsingh-rishi/voice-translate/types"
	"github.com/mrsingh-rishi/voice-translate/workers"
)

const (
	defaultRequestTimeout = 60 * time.Second
	bodyLimit             = 16 << 20
)

type Options struct {
	Runner     *pipeline.Runner
	Dispatcher *workers.Dispatcher
	Hub        *output.Hub

	CaptionLanguages []string
	Synthesis        pipeline.SynthesisPolicy
	Voice            string
	ChunkWindow      time.Duration
	// RequestTimeout bounds how long a request waits for its chunk.
	RequestTimeout time.Duration
	// TokenSecret enables bearer token checks when non-empty.
	TokenSecret string
	Logger      *slog.Logger
}

type Server struct {
	ctx    context.Context
	cancel context.CancelFunc

	app        *fiber.App
	runner     *pipeline.Runner
	dispatcher *workers.Dispatcher
	hub        *output.Hub
	schema     *jsonschema.Schema

	captionLanguages []string
	synthesis        pipeline.SynthesisPolicy
	voice            string
	window           time.Duration
	requestTimeout   time.Duration
	secret           string
	logger           *slog.Logger
}

func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	reflector := jsonschema.Reflector{DoNotReference: true}
	s := &Server{
		ctx:              ctx,
		cancel:           cancel,
		runner:           opts.Runner,
		dispatcher:       opts.Dispatcher,
		hub:              opts.Hub,
		schema:           reflector.Reflect(&types.ProcessRequest{}),
		captionLanguages: opts.CaptionLanguages,
		synthesis:        opts.Synthesis,
		voice:            opts.Voice,
		window:           opts.ChunkWindow,
		requestTimeout:   timeout,
		secret:           opts.TokenSecret,
		logger:           logger.With("component", "server"),
	}
	s.app = fiber.New(fiber.Config{
		DisableStartupMessage: true,
		BodyLimit:             bodyLimit,
		ErrorHandler:          s.handleError,
	})
	s.routes()
	return s
}

func (s *Server) routes() {
	app := s.app
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(s.logRequests)

	app.Get("/healthz", s.handleHealth)

	api := app.Group("/api", s.requireToken)
	api.Post("/translation/process", s.handleProcess)
	api.Get("/translation/schema", s.handleSchema)
	api.Post("/room-caption/process", s.handleCaption)
	api.Post("/transcription/process", s.handleTranscription)
	api.Delete("/speakers/:speakerId", s.handleLeave)

	app.Use("/ws", s.requireToken, func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/rooms/:roomId", websocket.New(s.serveRoom))
	app.Get("/ws/stream", websocket.New(s.serveStream))
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App { return s.app }

func (s *Server) Listen(addr string) error {
	s.logger.Info("http server listening", "addr", addr)
	return s.app.Listen(addr)
}

// Shutdown ends live streams and stops accepting requests.
func (s *Server) Shutdown(timeout time.Duration) error {
	s.cancel()
	return s.app.ShutdownWithTimeout(timeout)
}

func (s *Server) logRequests(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	s.logger.Debug("request",
		"method", c.Method(),
		"path", c.Path(),
		"status", c.Response().StatusCode(),
		"request_id", c.GetRespHeader(fiber.HeaderXRequestID),
		"duration", time.Since(start),
	)
	return err
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(types.ErrorResponse{OK: false, Error: err.Error()})
}
