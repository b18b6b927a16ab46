// Package server exposes the assistant over HTTP.
package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/veract/salesmind/internal/orchestrator"
	"github.com/veract/salesmind/internal/router"
)

// HealthChecker reports backing-store liveness.
type HealthChecker interface {
	Health() error
}

// Server serves the chat API over fiber.
type Server struct {
	app    *fiber.App
	orch   *orchestrator.Orchestrator
	router *router.Router
	health HealthChecker
}

// ChatRequest is the POST /api/v1/chat body. A missing session id starts
// a fresh session.
type ChatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// ResetRequest is the POST /api/v1/reset body.
type ResetRequest struct {
	SessionID string `json:"session_id"`
}

// New builds the HTTP server around the orchestrator.
func New(orch *orchestrator.Orchestrator, rt *router.Router, health HealthChecker) *Server {
	s := &Server{
		app: fiber.New(fiber.Config{
			AppName:               "salesmind",
			DisableStartupMessage: true,
		}),
		orch:   orch,
		router: rt,
		health: health,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Get("/healthz", s.handleHealth)

	v1 := s.app.Group("/api/v1")
	v1.Post("/chat", s.handleChat)
	v1.Post("/reset", s.handleReset)
	v1.Get("/stats", s.handleStats)
}

// Listen blocks serving on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	log.Info().Str("addr", addr).Msg("http server listening")
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) handleChat(c *fiber.Ctx) error {
	var req ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	resp, err := s.orch.Submit(c.Context(), req.SessionID, req.Message)
	if err != nil {
		if errors.Is(err, orchestrator.ErrEmptyUtterance) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "message is required",
			})
		}
		log.Error().Err(err).Str("session_id", req.SessionID).Msg("turn failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal error",
		})
	}
	return c.JSON(resp)
}

func (s *Server) handleReset(c *fiber.Ctx) error {
	var req ResetRequest
	if err := c.BodyParser(&req); err != nil || req.SessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "session_id is required",
		})
	}
	s.orch.Reset(c.Context(), req.SessionID)
	return c.JSON(fiber.Map{"session_id": req.SessionID, "reset": true})
}

func (s *Server) handleStats(c *fiber.Ctx) error {
	return c.JSON(s.router.GetStats())
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	if err := s.health.Health(); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "degraded", "error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{"status": "ok"})
}
