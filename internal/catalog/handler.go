package catalog

import (
	"github.com/gofiber/fiber/v2"

	"github.com/emandor/quiz_service/internal/apperr"
	"github.com/emandor/quiz_service/internal/httpx"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) GetCategories(c *fiber.Ctx) error {
	cats, err := h.svc.Categories(c.UserContext())
	if err == nil && len(cats) == 0 {
		err = apperr.ErrNotFound
	}
	if err != nil {
		return httpx.FailError(c, err, httpx.Messages{
			apperr.ErrNotFound: "No categories found",
			apperr.ErrStore:    "Error fetching categories",
		})
	}
	return httpx.OK(c, fiber.Map{"categories": cats})
}

func (h *Handler) GetQuestions(c *fiber.Ctx) error {
	name, qs, err := h.svc.Questions(c.UserContext(), int64(c.QueryInt("category_id")))
	if err != nil {
		return httpx.FailError(c, err, httpx.Messages{
			apperr.ErrNotFound: "No questions found for this category",
			apperr.ErrStore:    "Error fetching questions",
		})
	}
	return httpx.OK(c, fiber.Map{
		"category_name":   name,
		"total_questions": len(qs),
		"questions":       qs,
	})
}
