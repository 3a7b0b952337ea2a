package catalog

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emandor/quiz_service/internal/apperr"
	"github.com/emandor/quiz_service/internal/model"
	"github.com/emandor/quiz_service/internal/store/memstore"
)

func seeded() *memstore.Store {
	repo := memstore.New()
	repo.SeedCategory(model.Category{ID: 1, Name: "General Knowledge", Description: "trivia"},
		model.Question{ID: 1, QuestionText: "Capital of France?", OptionA: "Paris", CorrectAnswer: "A"},
		model.Question{ID: 2, QuestionText: "2+2?", OptionA: "4", CorrectAnswer: "A"},
	)
	repo.SeedCategory(model.Category{ID: 2, Name: "Science"})
	return repo
}

func TestQuestions(t *testing.T) {
	svc := NewService(seeded().Catalog())
	ctx := context.Background()

	name, qs, err := svc.Questions(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "General Knowledge", name)
	assert.Len(t, qs, 2)

	_, _, err = svc.Questions(ctx, 2)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, _, err = svc.Questions(ctx, 0)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestCategoriesReflectStoreChanges(t *testing.T) {
	repo := seeded()
	svc := NewService(repo.Catalog())
	ctx := context.Background()

	cats, err := svc.Categories(ctx)
	require.NoError(t, err)
	require.Len(t, cats, 2)
	assert.Equal(t, 2, cats[0].QuestionCount)

	repo.SeedCategory(model.Category{ID: 3, Name: "History"},
		model.Question{ID: 3, QuestionText: "First moon landing?", OptionA: "1969", CorrectAnswer: "A"},
	)
	cats, err = svc.Categories(ctx)
	require.NoError(t, err)
	require.Len(t, cats, 3)
	assert.Equal(t, "History", cats[2].Name)
	assert.Equal(t, 1, cats[2].QuestionCount)
}

func get(t *testing.T, app *fiber.App, path string) (int, map[string]any) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil), -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	require.NoError(t, json.Unmarshal(raw, &out))
	return resp.StatusCode, out
}

func TestHandlers(t *testing.T) {
	h := NewHandler(NewService(seeded().Catalog()))
	app := fiber.New()
	app.Get("/api/get_categories", h.GetCategories)
	app.Get("/api/get_questions", h.GetQuestions)

	code, body := get(t, app, "/api/get_categories")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["categories"], 2)

	_, body = get(t, app, "/api/get_questions?category_id=1")
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "General Knowledge", body["category_name"])
	assert.EqualValues(t, 2, body["total_questions"])
	q := body["questions"].([]any)[0].(map[string]any)
	assert.Contains(t, q, "question_text")
	assert.Contains(t, q, "category_name")

	code, body = get(t, app, "/api/get_questions?category_id=abc")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Invalid category ID", body["error"])

	code, body = get(t, app, "/api/get_questions?category_id=2")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "No questions found for this category", body["error"])
}

func TestEmptyCatalog(t *testing.T) {
	h := NewHandler(NewService(memstore.New().Catalog()))
	app := fiber.New()
	app.Get("/api/get_categories", h.GetCategories)

	code, body := get(t, app, "/api/get_categories")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "No categories found", body["error"])
}
