package api

import (
	"time"

	"github.com/gmsas95/doclens/internal/pipeline"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func (s *Server) handleIndex(c *fiber.Ctx) error {
	c.Type("html", "utf-8")
	return c.SendString(indexPage)
}

func (s *Server) handleProcess(c *fiber.Ctx) error {
	c.Type("html", "utf-8")

	file, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).SendString(errorFragment("file is required"))
	}
	format := c.FormValue("format")
	if format == "" {
		return c.Status(fiber.StatusBadRequest).SendString(errorFragment("format is required"))
	}

	body, err := file.Open()
	if err != nil {
		s.logger.Error("Failed to open upload", zap.Error(err))
		return c.SendString(errorFragment("failed to read upload"))
	}
	defer body.Close()

	outcome := s.processor.Process(c.UserContext(), pipeline.Request{
		Filename: file.Filename,
		Body:     body,
		Format:   format,
	})

	switch outcome.Kind {
	case pipeline.OutcomeArtifact:
		a := outcome.Artifact
		c.Attachment(a.Filename)
		c.Set(fiber.HeaderContentType, a.ContentType)
		return c.Send(a.Data)
	case pipeline.OutcomeNoTables:
		return c.SendString(noTablesFragment())
	default:
		return c.SendString(errorFragment(outcome.Message))
	}
}

func (s *Server) handleHistory(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	if limit <= 0 || limit > 1000 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "limit must be between 1 and 1000"})
	}

	runs, err := s.history.Recent(c.UserContext(), limit)
	if err != nil {
		s.logger.Error("Failed to list history", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to list history"})
	}

	return c.JSON(runs)
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	snap := s.metrics.Snapshot()
	return c.JSON(fiber.Map{
		"status":    "healthy",
		"version":   Version,
		"uptime":    time.Since(s.started).Round(time.Second).String(),
		"runs":      snap.RunsTotal,
		"timestamp": time.Now().Unix(),
	})
}
