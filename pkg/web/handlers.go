package web

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-hunter/internal/config"
	"github.com/teslashibe/go-hunter/pkg/loop"
	"github.com/teslashibe/go-hunter/pkg/store"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 500
)

func errorJSON(c *fiber.Ctx, status int, err error) error {
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

// handleStatus returns the last loop status
func (s *Server) handleStatus(c *fiber.Ctx) error {
	if st, ok := s.Status(); ok {
		return c.JSON(st)
	}
	return c.JSON(loop.Status{
		Mode:  s.deps.Control.Mode().String(),
		Phase: "IDLE",
		Track: "SEARCHING",
		Held:  []string{},
	})
}

// handleGetConfig returns the active configuration. Secrets are not
// serialized.
func (s *Server) handleGetConfig(c *fiber.Ctx) error {
	return c.JSON(s.deps.Config.Current())
}

// handleReloadConfig re-reads the config file. An invalid file leaves
// the active config in place.
func (s *Server) handleReloadConfig(c *fiber.Ctx) error {
	if s.deps.Config.Path() == "" {
		return errorJSON(c, fiber.StatusConflict, errors.New("no config file to reload"))
	}
	if err := s.deps.Config.Reload(); err != nil {
		status := fiber.StatusInternalServerError
		if errors.Is(err, config.ErrInvalidConfig) || errors.Is(err, config.ErrLoadConfig) {
			status = fiber.StatusUnprocessableEntity
		}
		s.lg.Warn("config reload rejected", "error", err)
		return errorJSON(c, status, err)
	}
	s.lg.Info("config reloaded", "path", s.deps.Config.Path())
	return c.JSON(s.deps.Config.Current())
}

// handleGetSequence describes the recorded sequence
func (s *Server) handleGetSequence(c *fiber.Ctx) error {
	return c.JSON(s.deps.Sequences.SequenceInfo())
}

// handleClearSequence deletes the recorded sequence
func (s *Server) handleClearSequence(c *fiber.Ctx) error {
	if err := s.deps.Sequences.ClearSequence(); err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// HistoryResponse is the body of GET /api/history.
type HistoryResponse struct {
	Sessions []store.Session `json:"sessions"`
	Cycles   []store.Cycle   `json:"cycles"`
}

// handleHistory returns recent sessions and cycles
func (s *Server) handleHistory(c *fiber.Ctx) error {
	if s.deps.History == nil {
		return errorJSON(c, fiber.StatusNotFound, errors.New("history disabled"))
	}
	limit := defaultHistoryLimit
	if q := c.Query("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 1 {
			return errorJSON(c, fiber.StatusBadRequest, errors.New("limit must be a positive integer"))
		}
		limit = min(n, maxHistoryLimit)
	}

	ctx := c.UserContext()
	sessions, err := s.deps.History.RecentSessions(ctx, limit)
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, err)
	}
	cycles, err := s.deps.History.RecentCycles(ctx, limit)
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, err)
	}
	if sessions == nil {
		sessions = []store.Session{}
	}
	if cycles == nil {
		cycles = []store.Cycle{}
	}
	return c.JSON(HistoryResponse{Sessions: sessions, Cycles: cycles})
}

// handleControl queues a loop command: toggle, start, stop, record or exit.
func (s *Server) handleControl(c *fiber.Ctx) error {
	cmd, err := loop.ParseCommand(c.Params("cmd"))
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err)
	}
	if err := s.deps.Control.Enqueue(cmd); err != nil {
		if cmd != loop.CmdStop {
			return errorJSON(c, fiber.StatusServiceUnavailable, err)
		}
		s.deps.Control.RequestStop()
	}
	s.lg.Info("dashboard command", "cmd", cmd.String())
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"command": cmd.String(),
		"mode":    s.deps.Control.Mode().String(),
	})
}
