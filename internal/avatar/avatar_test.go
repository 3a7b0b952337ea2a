package avatar

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emandor/quiz_service/internal/middleware"
	"github.com/emandor/quiz_service/internal/model"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	im := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			im.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, im))
	return buf.Bytes()
}

func TestSaveCropsToSquare(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, 64)

	path, err := s.Save(bytes.NewReader(pngBytes(t, 300, 120)))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(path, URLPrefix))

	im, err := imaging.Open(filepath.Join(dir, strings.TrimPrefix(path, URLPrefix)))
	require.NoError(t, err)
	assert.Equal(t, 64, im.Bounds().Dx())
	assert.Equal(t, 64, im.Bounds().Dy())

	again, err := s.Save(bytes.NewReader(pngBytes(t, 300, 120)))
	require.NoError(t, err)
	assert.Equal(t, path, again)
}

func TestSaveRejectsGarbage(t *testing.T) {
	_, err := NewStore(t.TempDir(), 64).Save(strings.NewReader("not an image"))
	assert.ErrorIs(t, err, ErrBadImage)
}

type fakeProfiles struct {
	picture string
	synced  bool
}

func (f *fakeProfiles) SetProfilePicture(_ context.Context, userID int64, picture string) (*model.User, error) {
	f.picture = picture
	return &model.User{ID: userID, ProfilePicture: picture}, nil
}

func (f *fakeProfiles) SyncSession(_ context.Context, sess *model.Session, u *model.User) error {
	f.synced = sess.UserID == u.ID
	return nil
}

type oneSession struct{}

func (oneSession) Resolve(_ context.Context, sid string) *model.Session {
	if sid == "good" {
		return &model.Session{ID: sid, UserID: 7}
	}
	return nil
}

func TestUploadHandler(t *testing.T) {
	profiles := &fakeProfiles{}
	h := NewHandler(NewStore(t.TempDir(), 32), profiles)

	app := fiber.New()
	app.Use(middleware.LoadSession("quiz_sid", oneSession{}, nil))
	app.Post("/api/profile_picture", middleware.RequireSession(), h.Upload)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("profile_picture", "me.png")
	require.NoError(t, err)
	_, err = fw.Write(pngBytes(t, 50, 50))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/profile_picture", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.AddCookie(&http.Cookie{Name: "quiz_sid", Value: "good"})
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	raw, _ := io.ReadAll(resp.Body)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, profiles.picture, out["profile_picture"])
	assert.True(t, profiles.synced)
}

func TestUploadHandlerMissingFile(t *testing.T) {
	h := NewHandler(NewStore(t.TempDir(), 32), &fakeProfiles{})
	app := fiber.New()
	app.Use(middleware.LoadSession("quiz_sid", oneSession{}, nil))
	app.Post("/api/profile_picture", middleware.RequireSession(), h.Upload)

	req := httptest.NewRequest(http.MethodPost, "/api/profile_picture", nil)
	req.AddCookie(&http.Cookie{Name: "quiz_sid", Value: "good"})
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
