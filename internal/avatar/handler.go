package avatar

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/emandor/quiz_service/internal/apperr"
	"github.com/emandor/quiz_service/internal/httpx"
	"github.com/emandor/quiz_service/internal/middleware"
	"github.com/emandor/quiz_service/internal/model"
	"github.com/emandor/quiz_service/internal/telemetry"
)

const formField = "profile_picture"

// Profiles is the part of auth.Service the upload handler needs.
type Profiles interface {
	SetProfilePicture(ctx context.Context, userID int64, picture string) (*model.User, error)
	SyncSession(ctx context.Context, sess *model.Session, u *model.User) error
}

type Handler struct {
	store    *Store
	profiles Profiles
}

func NewHandler(store *Store, profiles Profiles) *Handler {
	return &Handler{store: store, profiles: profiles}
}

// Upload expects a multipart file in the profile_picture field. Size and type
// are checked by middleware.FileUploadValidator before this runs.
func (h *Handler) Upload(c *fiber.Ctx) error {
	sess := middleware.CurrentSession(c)
	log := telemetry.Module("avatar").With().
		Str("req_id", middleware.RequestIDFrom(c)).
		Int64("user_id", sess.UserID).
		Logger()

	fh, err := c.FormFile(formField)
	if err != nil {
		return httpx.Fail(c, apperr.Invalid("Profile picture is required"), nil)
	}
	f, err := fh.Open()
	if err != nil {
		return httpx.Fail(c, apperr.Invalid("Cannot open file"), nil)
	}
	defer f.Close()

	path, err := h.store.Save(f)
	if errors.Is(err, ErrBadImage) {
		return httpx.Fail(c, apperr.Invalid("Invalid image"), nil)
	}
	if err != nil {
		log.Error().Err(err).Msg("avatar_save_failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "Failed to save picture"})
	}

	u, err := h.profiles.SetProfilePicture(c.UserContext(), sess.UserID, path)
	if err != nil {
		return httpx.Fail(c, err, nil)
	}
	if err := h.profiles.SyncSession(c.UserContext(), sess, u); err != nil {
		log.Warn().Err(err).Msg("session_sync_failed")
	}
	log.Info().Str("path", path).Msg("avatar_updated")
	return httpx.OK(c, fiber.Map{"message": "Profile picture updated", "profile_picture": path})
}
