package store

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emandor/quiz_service/internal/apperr"
	"github.com/emandor/quiz_service/internal/model"
)

func newMock(t *testing.T) (*MySQL, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(sqlx.NewDb(db, "mysql")), mock
}

func q(s string) string { return regexp.QuoteMeta(s) }

func TestCreateUserMapsDuplicateKeys(t *testing.T) {
	repo, mock := newMock(t)
	ctx := context.Background()

	mock.ExpectExec(q("INSERT INTO users")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'ana' for key 'users.uq_users_username'"})
	_, err := repo.Users().Create(ctx, &model.User{Username: "ana"})
	assert.ErrorIs(t, err, apperr.ErrDuplicateUsername)

	mock.ExpectExec(q("INSERT INTO users")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'a@x.io' for key 'users.uq_users_email'"})
	_, err = repo.Users().Create(ctx, &model.User{Username: "bob", Email: "a@x.io"})
	assert.ErrorIs(t, err, apperr.ErrDuplicateEmail)

	mock.ExpectExec(q("INSERT INTO users")).
		WithArgs("carl", "c@x.io", "hash", "Carl", "apple.png").
		WillReturnResult(sqlmock.NewResult(42, 1))
	id, err := repo.Users().Create(ctx, &model.User{
		Username: "carl", Email: "c@x.io", PasswordHash: "hash", FullName: "Carl", ProfilePicture: "apple.png",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestByLoginNotFound(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery(q("FROM users WHERE username = ? OR email = ?")).
		WithArgs("ghost", "ghost").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	_, err := repo.Users().ByLogin(context.Background(), "ghost")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestByLoginScansUser(t *testing.T) {
	repo, mock := newMock(t)
	joined := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	rows := sqlmock.NewRows([]string{
		"id", "username", "email", "password", "full_name", "profile_picture", "date_joined", "last_login", "total_quizzes",
	}).AddRow(7, "ana", "ana@x.io", "$2a$10$hash", "Ana", "apple.png", joined, nil, 3)
	mock.ExpectQuery(q("FROM users WHERE username = ? OR email = ?")).WithArgs("ana@x.io", "ana@x.io").WillReturnRows(rows)

	u, err := repo.Users().ByLogin(context.Background(), "ana@x.io")
	require.NoError(t, err)
	assert.Equal(t, int64(7), u.ID)
	assert.Equal(t, "$2a$10$hash", u.PasswordHash)
	assert.Equal(t, joined, u.DateJoined)
	assert.False(t, u.LastLogin.Valid)
	assert.Equal(t, 3, u.TotalQuizzes)
}

func TestIncrementQuizzesMissingUser(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectExec(q("UPDATE users SET total_quizzes = total_quizzes + 1")).
		WithArgs(int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.Users().IncrementQuizzes(context.Background(), 9)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpsertCategoryStatIsSingleStatement(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectExec(q("INSERT INTO user_category_stats")+".*"+q("ON DUPLICATE KEY UPDATE")+".*"+
		q("attempts = attempts + 1")+".*"+q("best_percentage = GREATEST(best_percentage, VALUES(best_percentage))")+".*"+
		q("completed = GREATEST(completed, VALUES(completed))")).
		WithArgs(int64(1), int64(2), 6, 60.0, 10, 6, false).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Attempts().UpsertCategoryStat(context.Background(), 1, 2, 6, 10))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertProgress(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectExec(q("INSERT INTO user_progress")+".*"+q("ON DUPLICATE KEY UPDATE")).
		WithArgs(int64(1), int64(2), 3, 10, 2, `{"0":"A"}`, `[{"id":1}]`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Attempts().UpsertProgress(context.Background(), &model.Progress{
		UserID: 1, CategoryID: 2, CurrentQuestion: 3, TotalQuestions: 10, Score: 2,
		UserAnswers: model.JSON(`{"0":"A"}`), Questions: model.JSON(`[{"id":1}]`),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTxCommits(t *testing.T) {
	repo, mock := newMock(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(q("INSERT INTO results")).WillReturnResult(sqlmock.NewResult(11, 1))
	mock.ExpectExec(q("UPDATE users SET total_quizzes")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("INSERT INTO user_category_stats")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("DELETE FROM user_progress")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	var resultID int64
	err := repo.WithTx(ctx, func(tx Repository) error {
		var err error
		resultID, err = tx.Attempts().InsertResult(ctx, &model.Result{
			UserID: sql.NullInt64{Int64: 1, Valid: true}, UserName: "ana", CategoryID: 2, Score: 7, TotalQuestions: 10,
		})
		if err != nil {
			return err
		}
		if err := tx.Users().IncrementQuizzes(ctx, 1); err != nil {
			return err
		}
		if err := tx.Attempts().UpsertCategoryStat(ctx, 1, 2, 7, 10); err != nil {
			return err
		}
		return tx.Attempts().DeleteProgress(ctx, 1, 2)
	})
	require.NoError(t, err)
	assert.Equal(t, int64(11), resultID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTxRollsBackOnError(t *testing.T) {
	repo, mock := newMock(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(q("INSERT INTO results")).WillReturnResult(sqlmock.NewResult(12, 1))
	mock.ExpectExec(q("INSERT INTO user_category_stats")).WillReturnError(errors.New("lock wait timeout"))
	mock.ExpectRollback()

	err := repo.WithTx(ctx, func(tx Repository) error {
		if _, err := tx.Attempts().InsertResult(ctx, &model.Result{UserName: "ana", CategoryID: 2, Score: 1, TotalQuestions: 2}); err != nil {
			return err
		}
		return tx.Attempts().UpsertCategoryStat(ctx, 1, 2, 1, 2)
	})
	assert.ErrorIs(t, err, apperr.ErrStore)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCategories(t *testing.T) {
	repo, mock := newMock(t)

	rows := sqlmock.NewRows([]string{"id", "name", "description", "question_count"}).
		AddRow(1, "General Knowledge", "trivia", 2).
		AddRow(2, "Science", "", 0)
	mock.ExpectQuery(q("FROM categories c")).WillReturnRows(rows)

	cats, err := repo.Catalog().Categories(context.Background())
	require.NoError(t, err)
	require.Len(t, cats, 2)
	assert.Equal(t, "Science", cats[1].Name)
	assert.Equal(t, 2, cats[0].QuestionCount)
}
