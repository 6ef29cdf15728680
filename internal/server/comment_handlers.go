package server

import (
	"strings"

	"guestbook/internal/models"
	"guestbook/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetConferences lists every conference (public)
func (s *Server) GetConferences(c *fiber.Ctx) error {
	conferences, err := s.comments.ListConferences(c.UserContext())
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(conferences)
}

// GetConferenceComments returns the published comments of a conference (public)
func (s *Server) GetConferenceComments(c *fiber.Ctx) error {
	page := parsePagination(c, defaultPaginationLimit)

	comments, err := s.comments.ListPublished(c.UserContext(), c.Params("slug"), page.Limit, page.Offset)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"comments": comments,
		"limit":    page.Limit,
		"offset":   page.Offset,
	})
}

// SubmitComment accepts a comment for moderation (public)
func (s *Server) SubmitComment(c *fiber.Ctx) error {
	slug := c.Params("slug")

	maxUpload := int64(s.config.ImageMaxUploadSizeMB) * 1024 * 1024
	if maxUpload <= 0 {
		maxUpload = service.DefaultImageMaxUploadSizeMB * 1024 * 1024
	}
	photo, err := readPhoto(c, maxUpload)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Invalid photo upload"))
	}

	comment, err := s.comments.Submit(c.UserContext(), service.SubmitCommentInput{
		ConferenceSlug: slug,
		Author:         c.FormValue("author"),
		Text:           c.FormValue("text"),
		Email:          c.FormValue("email"),
		Photo:          photo,
		Context: map[string]string{
			models.ContextUserIP:    c.IP(),
			models.ContextUserAgent: c.Get(fiber.HeaderUserAgent),
			models.ContextReferrer:  c.Get(fiber.HeaderReferer),
			models.ContextPermalink: s.permalink(slug),
		},
	})
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(comment)
}

// GetComment returns a published comment (public)
func (s *Server) GetComment(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	comment, err := s.comments.GetPublished(c.UserContext(), id)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(comment)
}

func (s *Server) permalink(slug string) string {
	return strings.TrimRight(s.config.SiteURL, "/") + "/conference/" + slug
}
