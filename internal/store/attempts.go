package store

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/emandor/quiz_service/internal/model"
)

type attemptRepo struct {
	q sqlx.ExtContext
}

func (r attemptRepo) UpsertProgress(ctx context.Context, p *model.Progress) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO user_progress
			(user_id, category_id, current_question, total_questions, score, user_answers, questions_data, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, NOW())
		ON DUPLICATE KEY UPDATE
			current_question = VALUES(current_question),
			total_questions = VALUES(total_questions),
			score = VALUES(score),
			user_answers = VALUES(user_answers),
			questions_data = VALUES(questions_data),
			last_updated = NOW()`,
		p.UserID, p.CategoryID, p.CurrentQuestion, p.TotalQuestions, p.Score, p.UserAnswers, p.Questions)
	return mapErr("upsert progress", err)
}

func (r attemptRepo) Progress(ctx context.Context, userID, categoryID int64) (*model.Progress, error) {
	var p model.Progress
	err := sqlx.GetContext(ctx, r.q, &p, `
		SELECT user_id, category_id, current_question, total_questions, score, user_answers, questions_data, last_updated
		FROM user_progress
		WHERE user_id = ? AND category_id = ?
		LIMIT 1`, userID, categoryID)
	if err != nil {
		return nil, mapErr("load progress", err)
	}
	return &p, nil
}

func (r attemptRepo) DeleteProgress(ctx context.Context, userID, categoryID int64) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM user_progress WHERE user_id = ? AND category_id = ?`, userID, categoryID)
	return mapErr("delete progress", err)
}

func (r attemptRepo) InsertResult(ctx context.Context, res *model.Result) (int64, error) {
	out, err := r.q.ExecContext(ctx, `
		INSERT INTO results (user_id, user_name, category_id, score, total_questions, created_at)
		VALUES (?, ?, ?, ?, ?, NOW())`,
		res.UserID, res.UserName, res.CategoryID, res.Score, res.TotalQuestions)
	if err != nil {
		return 0, mapErr("insert result", err)
	}
	id, err := out.LastInsertId()
	if err != nil {
		return 0, mapErr("insert result id", err)
	}
	return id, nil
}

// UpsertCategoryStat folds one finished attempt into the running summary in a
// single statement. Bests and the completed flag only ever move upwards.
func (r attemptRepo) UpsertCategoryStat(ctx context.Context, userID, categoryID int64, score, total int) error {
	pct := model.Percentage(score, total)
	completed := pct >= model.CompletionThreshold
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO user_category_stats
			(user_id, category_id, attempts, best_score, best_percentage, total_questions_answered, correct_answers, last_attempt, completed)
		VALUES (?, ?, 1, ?, ?, ?, ?, NOW(), ?)
		ON DUPLICATE KEY UPDATE
			attempts = attempts + 1,
			best_score = GREATEST(best_score, VALUES(best_score)),
			best_percentage = GREATEST(best_percentage, VALUES(best_percentage)),
			total_questions_answered = total_questions_answered + VALUES(total_questions_answered),
			correct_answers = correct_answers + VALUES(correct_answers),
			last_attempt = NOW(),
			completed = GREATEST(completed, VALUES(completed))`,
		userID, categoryID, score, pct, total, score, completed)
	return mapErr("upsert category stat", err)
}

const statColumns = `s.user_id, s.category_id, COALESCE(c.name, '') AS category_name, s.attempts, s.best_score,
	s.best_percentage, s.total_questions_answered, s.correct_answers, s.last_attempt, s.completed`

func (r attemptRepo) CategoryStat(ctx context.Context, userID, categoryID int64) (*model.CategoryStat, error) {
	var st model.CategoryStat
	err := sqlx.GetContext(ctx, r.q, &st, `
		SELECT `+statColumns+`
		FROM user_category_stats s
		LEFT JOIN categories c ON c.id = s.category_id
		WHERE s.user_id = ? AND s.category_id = ?`, userID, categoryID)
	if err != nil {
		return nil, mapErr("category stat", err)
	}
	return &st, nil
}

func (r attemptRepo) CategoryStats(ctx context.Context, userID int64) ([]model.CategoryStat, error) {
	stats := []model.CategoryStat{}
	err := sqlx.SelectContext(ctx, r.q, &stats, `
		SELECT `+statColumns+`
		FROM user_category_stats s
		LEFT JOIN categories c ON c.id = s.category_id
		WHERE s.user_id = ?
		ORDER BY s.category_id`, userID)
	if err != nil {
		return nil, mapErr("category stats", err)
	}
	return stats, nil
}
