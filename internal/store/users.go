package store

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/emandor/quiz_service/internal/model"
)

type userRepo struct {
	q sqlx.ExtContext
}

const userColumns = `id, username, email, password, full_name, profile_picture, date_joined, last_login, total_quizzes`

func (r userRepo) Create(ctx context.Context, u *model.User) (int64, error) {
	res, err := r.q.ExecContext(ctx, `
		INSERT INTO users (username, email, password, full_name, profile_picture, date_joined)
		VALUES (?, ?, ?, ?, ?, NOW())`,
		u.Username, u.Email, u.PasswordHash, u.FullName, u.ProfilePicture)
	if err != nil {
		return 0, mapErr("insert user", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, mapErr("insert user id", err)
	}
	return id, nil
}

func (r userRepo) UsernameTaken(ctx context.Context, username string) (bool, error) {
	var n int
	err := sqlx.GetContext(ctx, r.q, &n, `SELECT COUNT(*) FROM users WHERE username = ?`, username)
	return n > 0, mapErr("check username", err)
}

func (r userRepo) EmailTaken(ctx context.Context, email string, exceptID int64) (bool, error) {
	var n int
	err := sqlx.GetContext(ctx, r.q, &n, `SELECT COUNT(*) FROM users WHERE email = ? AND id <> ?`, email, exceptID)
	return n > 0, mapErr("check email", err)
}

func (r userRepo) ByID(ctx context.Context, id int64) (*model.User, error) {
	return r.one(ctx, "user by id", `SELECT `+userColumns+` FROM users WHERE id = ? LIMIT 1`, id)
}

func (r userRepo) ByLogin(ctx context.Context, login string) (*model.User, error) {
	return r.one(ctx, "user by login",
		`SELECT `+userColumns+` FROM users WHERE username = ? OR email = ? LIMIT 1`, login, login)
}

func (r userRepo) ByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.one(ctx, "user by email", `SELECT `+userColumns+` FROM users WHERE email = ? LIMIT 1`, email)
}

func (r userRepo) ByUsernameAndEmail(ctx context.Context, username, email string) (*model.User, error) {
	return r.one(ctx, "user by username and email",
		`SELECT `+userColumns+` FROM users WHERE username = ? AND email = ? LIMIT 1`, username, email)
}

func (r userRepo) one(ctx context.Context, op, query string, args ...any) (*model.User, error) {
	var u model.User
	if err := sqlx.GetContext(ctx, r.q, &u, query, args...); err != nil {
		return nil, mapErr(op, err)
	}
	return &u, nil
}

func (r userRepo) TouchLastLogin(ctx context.Context, id int64) error {
	_, err := r.q.ExecContext(ctx, `UPDATE users SET last_login = NOW() WHERE id = ?`, id)
	return mapErr("touch last login", err)
}

func (r userRepo) UpdatePassword(ctx context.Context, id int64, hash string) error {
	return r.execOne(ctx, "update password", `UPDATE users SET password = ? WHERE id = ?`, hash, id)
}

func (r userRepo) UpdateProfile(ctx context.Context, id int64, fullName, email, picture string) error {
	_, err := r.q.ExecContext(ctx,
		`UPDATE users SET full_name = ?, email = ?, profile_picture = ? WHERE id = ?`,
		fullName, email, picture, id)
	return mapErr("update profile", err)
}

func (r userRepo) IncrementQuizzes(ctx context.Context, id int64) error {
	return r.execOne(ctx, "increment quizzes", `UPDATE users SET total_quizzes = total_quizzes + 1 WHERE id = ?`, id)
}

// execOne fails with ErrNotFound when the statement touched no row.
func (r userRepo) execOne(ctx context.Context, op, query string, args ...any) error {
	res, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return mapErr(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapErr(op, err)
	}
	if n == 0 {
		return mapErr(op, sql.ErrNoRows)
	}
	return nil
}

func (r userRepo) Profile(ctx context.Context, id int64) (*model.Profile, error) {
	var p model.Profile
	err := sqlx.GetContext(ctx, r.q, &p, `
		SELECT
			u.id, u.username, u.email, u.full_name, u.profile_picture, u.date_joined, u.total_quizzes,
			COUNT(DISTINCT r.category_id) AS categories_attempted,
			COALESCE(ROUND(AVG(r.score / r.total_questions * 100), 2), 0) AS average_score,
			COALESCE(MAX(r.score / r.total_questions * 100), 0) AS best_score,
			COALESCE(SUM(CASE WHEN r.score = r.total_questions THEN 1 ELSE 0 END), 0) AS perfect_scores,
			(
				SELECT COUNT(DISTINCT c.category_id)
				FROM results c
				WHERE c.user_id = u.id AND (c.score / c.total_questions * 100) >= 70
			) AS categories_completed
		FROM users u
		LEFT JOIN results r ON u.id = r.user_id
		WHERE u.id = ?
		GROUP BY u.id`, id)
	if err != nil {
		return nil, mapErr("profile", err)
	}
	return &p, nil
}

func (r userRepo) RecordSession(ctx context.Context, sid string, userID int64, meta model.SessionMeta) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO user_sessions (id, user_id, ip, user_agent, created_at) VALUES (?, ?, ?, ?, NOW())`,
		sid, userID, meta.IP, meta.UserAgent)
	return mapErr("record session", err)
}
