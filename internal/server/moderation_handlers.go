package server

import (
	"guestbook/internal/middleware"
	"guestbook/internal/models"

	"github.com/gofiber/fiber/v2"
)

// ReviewRequest is the body of a review decision.
type ReviewRequest struct {
	Approved *bool `json:"approved"`
}

// ListAdminComments lists comments in the requested state, oldest first (admin)
func (s *Server) ListAdminComments(c *fiber.Ctx) error {
	state := models.CommentState(c.Query("state"))
	if state == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("state is required"))
	}

	comments, err := s.moderation.ListByState(c.UserContext(), state, c.QueryInt("limit", 0))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(comments)
}

// GetAdminComment returns a comment in any state (admin)
func (s *Server) GetAdminComment(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	comment, err := s.moderation.Get(c.UserContext(), id)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(comment)
}

// ReviewComment records a human decision on a comment awaiting review (admin)
func (s *Server) ReviewComment(c *fiber.Ctx) error {
	ctx := c.UserContext()

	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req ReviewRequest
	if parseErr := c.BodyParser(&req); parseErr != nil || req.Approved == nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("approved must be true or false"))
	}

	comment, err := s.moderation.Decide(ctx, id, *req.Approved)
	if err != nil {
		if comment == nil {
			return respondServiceError(c, err)
		}
		// The decision is stored; only the follow-up message is missing.
		middleware.Logger.WarnContext(ctx, "review follow-up not enqueued",
			"comment_id", id,
			"error", err.Error(),
		)
	}
	return c.JSON(comment)
}

// RequeueComment schedules another moderation pass for a comment (admin)
func (s *Server) RequeueComment(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	comment, err := s.moderation.Requeue(c.UserContext(), id, nil)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(comment)
}
