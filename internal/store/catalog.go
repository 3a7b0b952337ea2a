package store

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/emandor/quiz_service/internal/model"
)

type catalogRepo struct {
	q sqlx.ExtContext
}

func (r catalogRepo) Categories(ctx context.Context) ([]model.Category, error) {
	cats := []model.Category{}
	err := sqlx.SelectContext(ctx, r.q, &cats, `
		SELECT c.id, c.name, COALESCE(c.description, '') AS description, COUNT(q.id) AS question_count
		FROM categories c
		LEFT JOIN questions q ON c.id = q.category_id
		GROUP BY c.id, c.name, c.description
		ORDER BY c.id`)
	if err != nil {
		return nil, mapErr("categories", err)
	}
	return cats, nil
}

// Questions returns the category's questions in random order.
func (r catalogRepo) Questions(ctx context.Context, categoryID int64) ([]model.Question, error) {
	qs := []model.Question{}
	err := sqlx.SelectContext(ctx, r.q, &qs, `
		SELECT
			q.id, q.category_id, q.question_text,
			COALESCE(q.option_a, '') AS option_a,
			COALESCE(q.option_b, '') AS option_b,
			COALESCE(q.option_c, '') AS option_c,
			COALESCE(q.option_d, '') AS option_d,
			COALESCE(q.correct_answer, '') AS correct_answer,
			COALESCE(q.text_answer, '') AS text_answer,
			COALESCE(q.explanation, '') AS explanation,
			q.question_type,
			c.name AS category_name
		FROM questions q
		JOIN categories c ON q.category_id = c.id
		WHERE q.category_id = ?
		ORDER BY RAND()`, categoryID)
	if err != nil {
		return nil, mapErr("questions", err)
	}
	return qs, nil
}
