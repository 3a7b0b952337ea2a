// Package attempt records in-flight quiz progress and finished results.
//
// Finishing a quiz as a signed-in user touches four rows (the result, the
// user's quiz counter, the per-category stat and the saved progress). They are
// written in one transaction so a failure leaves none of them changed.
package attempt

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/emandor/quiz_service/internal/apperr"
	"github.com/emandor/quiz_service/internal/model"
	"github.com/emandor/quiz_service/internal/store"
	"github.com/emandor/quiz_service/internal/telemetry"
	"github.com/emandor/quiz_service/internal/validate"
)

const (
	anonymousName   = "Anonymous"
	maxUserNameLen  = 100
	emptyAnswerList = "[]"
)

type Tracker struct {
	repo store.Repository
}

func NewTracker(repo store.Repository) *Tracker {
	return &Tracker{repo: repo}
}

type ProgressInput struct {
	CategoryID      int64      `json:"category_id"`
	CurrentQuestion int        `json:"current_question" validate:"min=0"`
	TotalQuestions  int        `json:"total_questions" validate:"min=0"`
	Score           int        `json:"score" validate:"min=0"`
	UserAnswers     model.JSON `json:"user_answers"`
	Questions       model.JSON `json:"questions"`
}

// SaveProgress upserts the snapshot for (user, category).
func (t *Tracker) SaveProgress(ctx context.Context, sess *model.Session, in ProgressInput) error {
	if sess == nil {
		return apperr.ErrUnauthenticated
	}
	if in.CategoryID <= 0 {
		return apperr.Invalid("Invalid category ID")
	}
	if err := validate.Struct(in, ""); err != nil {
		return err
	}
	return t.repo.Attempts().UpsertProgress(ctx, &model.Progress{
		UserID:          sess.UserID,
		CategoryID:      in.CategoryID,
		CurrentQuestion: in.CurrentQuestion,
		TotalQuestions:  in.TotalQuestions,
		Score:           in.Score,
		UserAnswers:     orEmptyList(in.UserAnswers),
		Questions:       orEmptyList(in.Questions),
	})
}

// LoadProgress returns the saved snapshot; ok is false when there is none.
func (t *Tracker) LoadProgress(ctx context.Context, userID, categoryID int64) (*model.Progress, bool, error) {
	if categoryID <= 0 {
		return nil, false, apperr.Invalid("Invalid category ID")
	}
	p, err := t.repo.Attempts().Progress(ctx, userID, categoryID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return p, true, nil
}

// ClearProgress drops the snapshot. Clearing a missing one is not an error.
func (t *Tracker) ClearProgress(ctx context.Context, userID, categoryID int64) error {
	if categoryID <= 0 {
		return apperr.Invalid("Invalid category ID")
	}
	return t.repo.Attempts().DeleteProgress(ctx, userID, categoryID)
}

type FinalizeInput struct {
	UserName       string `json:"user_name"`
	CategoryID     int64  `json:"category_id"`
	Score          int    `json:"score"`
	TotalQuestions int    `json:"total_questions"`
}

// FinalizeResult stores a finished attempt. Guests only get the result row.
func (t *Tracker) FinalizeResult(ctx context.Context, sess *model.Session, in FinalizeInput) (int64, error) {
	if in.CategoryID <= 0 || in.TotalQuestions <= 0 || in.Score < 0 || in.Score > in.TotalQuestions {
		return 0, apperr.Invalid("Invalid data provided")
	}
	res := &model.Result{
		UserName:       userName(in.UserName),
		CategoryID:     in.CategoryID,
		Score:          in.Score,
		TotalQuestions: in.TotalQuestions,
	}

	log := telemetry.Module("attempt").With().Int64("category_id", res.CategoryID).Logger()

	if sess == nil {
		id, err := t.repo.Attempts().InsertResult(ctx, res)
		if err != nil {
			return 0, err
		}
		log.Info().Int64("result_id", id).Bool("guest", true).Msg("result_saved")
		return id, nil
	}

	res.UserID = sql.NullInt64{Int64: sess.UserID, Valid: true}
	var id int64
	err := t.repo.WithTx(ctx, func(tx store.Repository) error {
		var err error
		if id, err = tx.Attempts().InsertResult(ctx, res); err != nil {
			return err
		}
		if err := tx.Users().IncrementQuizzes(ctx, sess.UserID); err != nil {
			return err
		}
		if err := tx.Attempts().UpsertCategoryStat(ctx, sess.UserID, res.CategoryID, res.Score, res.TotalQuestions); err != nil {
			return err
		}
		return tx.Attempts().DeleteProgress(ctx, sess.UserID, res.CategoryID)
	})
	if err != nil {
		return 0, err
	}

	log.Info().
		Int64("result_id", id).
		Int64("user_id", sess.UserID).
		Float64("pct", res.Percentage()).
		Msg("result_saved")
	return id, nil
}

func userName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return anonymousName
	}
	if utf8.RuneCountInString(s) > maxUserNameLen {
		s = string([]rune(s)[:maxUserNameLen])
	}
	return s
}

func orEmptyList(j model.JSON) model.JSON {
	if len(j) == 0 || string(j) == "null" {
		return model.JSON(emptyAnswerList)
	}
	return j
}
