// Package store is the MySQL credential and attempt store.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/emandor/quiz_service/internal/apperr"
	"github.com/emandor/quiz_service/internal/model"
)

// Repository groups the table-level repositories and the transactional boundary.
type Repository interface {
	Users() UserRepository
	Attempts() AttemptRepository
	Catalog() CatalogRepository

	// WithTx runs fn against a repository bound to one transaction.
	// fn returning an error rolls every write back.
	WithTx(ctx context.Context, fn func(Repository) error) error
}

type UserRepository interface {
	Create(ctx context.Context, u *model.User) (int64, error)
	UsernameTaken(ctx context.Context, username string) (bool, error)
	EmailTaken(ctx context.Context, email string, exceptID int64) (bool, error)
	ByID(ctx context.Context, id int64) (*model.User, error)
	ByLogin(ctx context.Context, login string) (*model.User, error)
	ByEmail(ctx context.Context, email string) (*model.User, error)
	ByUsernameAndEmail(ctx context.Context, username, email string) (*model.User, error)
	TouchLastLogin(ctx context.Context, id int64) error
	UpdatePassword(ctx context.Context, id int64, hash string) error
	UpdateProfile(ctx context.Context, id int64, fullName, email, picture string) error
	IncrementQuizzes(ctx context.Context, id int64) error
	Profile(ctx context.Context, id int64) (*model.Profile, error)
	RecordSession(ctx context.Context, sid string, userID int64, meta model.SessionMeta) error
}

type AttemptRepository interface {
	UpsertProgress(ctx context.Context, p *model.Progress) error
	Progress(ctx context.Context, userID, categoryID int64) (*model.Progress, error)
	DeleteProgress(ctx context.Context, userID, categoryID int64) error
	InsertResult(ctx context.Context, r *model.Result) (int64, error)
	UpsertCategoryStat(ctx context.Context, userID, categoryID int64, score, total int) error
	CategoryStat(ctx context.Context, userID, categoryID int64) (*model.CategoryStat, error)
	CategoryStats(ctx context.Context, userID int64) ([]model.CategoryStat, error)
}

type CatalogRepository interface {
	Categories(ctx context.Context) ([]model.Category, error)
	Questions(ctx context.Context, categoryID int64) ([]model.Question, error)
}

// MySQL implements Repository. q is either the pool or the open transaction.
type MySQL struct {
	db *sqlx.DB
	q  sqlx.ExtContext
	tx *sqlx.Tx
}

func New(db *sqlx.DB) *MySQL {
	return &MySQL{db: db, q: db}
}

func (m *MySQL) Users() UserRepository       { return userRepo{q: m.q} }
func (m *MySQL) Attempts() AttemptRepository { return attemptRepo{q: m.q} }
func (m *MySQL) Catalog() CatalogRepository  { return catalogRepo{q: m.q} }

func (m *MySQL) WithTx(ctx context.Context, fn func(Repository) error) (err error) {
	if m.tx != nil {
		return fn(m)
	}
	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return apperr.Store("begin tx", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(&MySQL{db: m.db, q: tx, tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	if err = tx.Commit(); err != nil {
		return apperr.Store("commit tx", err)
	}
	return nil
}

const errDuplicateEntry = 1062

// mapErr turns driver errors into the apperr kinds the services check for.
func mapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.ErrNotFound
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == errDuplicateEntry {
		switch {
		case strings.Contains(me.Message, "uq_users_username"):
			return apperr.ErrDuplicateUsername
		case strings.Contains(me.Message, "uq_users_email"):
			return apperr.ErrDuplicateEmail
		}
	}
	return apperr.Store(op, err)
}
