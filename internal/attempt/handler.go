package attempt

import (
	"github.com/gofiber/fiber/v2"

	"github.com/emandor/quiz_service/internal/apperr"
	"github.com/emandor/quiz_service/internal/httpx"
	"github.com/emandor/quiz_service/internal/middleware"
)

type Handler struct {
	tracker *Tracker
}

func NewHandler(t *Tracker) *Handler {
	return &Handler{tracker: t}
}

var badBody = apperr.Invalid("Invalid request body")

func (h *Handler) SaveProgress(c *fiber.Ctx) error {
	var in ProgressInput
	if err := c.BodyParser(&in); err != nil {
		return httpx.Fail(c, badBody, nil)
	}
	if err := h.tracker.SaveProgress(c.UserContext(), middleware.CurrentSession(c), in); err != nil {
		return httpx.Fail(c, err, httpx.Messages{apperr.ErrStore: "Failed to save progress"})
	}
	return httpx.OK(c, fiber.Map{"message": "Progress saved"})
}

func (h *Handler) GetProgress(c *fiber.Ctx) error {
	sess := middleware.CurrentSession(c)
	p, ok, err := h.tracker.LoadProgress(c.UserContext(), sess.UserID, int64(c.QueryInt("category_id")))
	if err != nil {
		return httpx.Fail(c, err, nil)
	}
	if !ok {
		return httpx.OK(c, fiber.Map{"has_progress": false})
	}
	return httpx.OK(c, fiber.Map{"has_progress": true, "progress": p})
}

type clearRequest struct {
	CategoryID int64 `json:"category_id"`
}

func (h *Handler) ClearProgress(c *fiber.Ctx) error {
	sess := middleware.CurrentSession(c)
	var req clearRequest
	if err := c.BodyParser(&req); err != nil {
		return httpx.Fail(c, badBody, nil)
	}
	if err := h.tracker.ClearProgress(c.UserContext(), sess.UserID, req.CategoryID); err != nil {
		return httpx.Fail(c, err, nil)
	}
	return httpx.OK(c, fiber.Map{"message": "Progress cleared"})
}

// SaveResults accepts guests; a session, when present, also updates the user's stats.
func (h *Handler) SaveResults(c *fiber.Ctx) error {
	var in FinalizeInput
	if err := c.BodyParser(&in); err != nil {
		return httpx.FailError(c, apperr.Invalid("Invalid data provided"), nil)
	}
	id, err := h.tracker.FinalizeResult(c.UserContext(), middleware.CurrentSession(c), in)
	if err != nil {
		return httpx.FailError(c, err, httpx.Messages{apperr.ErrStore: "Failed to save results"})
	}
	return httpx.OK(c, fiber.Map{"message": "Results saved successfully", "result_id": id})
}
