package model

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"time"
)

type Category struct {
	ID            int64  `db:"id" json:"id"`
	Name          string `db:"name" json:"name"`
	Description   string `db:"description" json:"description"`
	QuestionCount int    `db:"question_count" json:"question_count"`
}

type Question struct {
	ID            int64  `db:"id" json:"id"`
	CategoryID    int64  `db:"category_id" json:"-"`
	QuestionText  string `db:"question_text" json:"question_text"`
	OptionA       string `db:"option_a" json:"option_a"`
	OptionB       string `db:"option_b" json:"option_b"`
	OptionC       string `db:"option_c" json:"option_c"`
	OptionD       string `db:"option_d" json:"option_d"`
	CorrectAnswer string `db:"correct_answer" json:"correct_answer"`
	TextAnswer    string `db:"text_answer" json:"text_answer"`
	Explanation   string `db:"explanation" json:"explanation"`
	QuestionType  string `db:"question_type" json:"question_type"`
	CategoryName  string `db:"category_name" json:"category_name"`
}

// Progress is a resumable in-flight attempt, one per (user, category).
type Progress struct {
	UserID          int64     `db:"user_id" json:"-"`
	CategoryID      int64     `db:"category_id" json:"category_id"`
	CurrentQuestion int       `db:"current_question" json:"current_question"`
	TotalQuestions  int       `db:"total_questions" json:"total_questions"`
	Score           int       `db:"score" json:"score"`
	UserAnswers     JSON      `db:"user_answers" json:"user_answers"`
	Questions       JSON      `db:"questions_data" json:"questions"`
	LastUpdated     time.Time `db:"last_updated" json:"last_updated"`
}

type Result struct {
	ID             int64         `db:"id" json:"id"`
	UserID         sql.NullInt64 `db:"user_id" json:"-"`
	UserName       string        `db:"user_name" json:"user_name"`
	CategoryID     int64         `db:"category_id" json:"category_id"`
	Score          int           `db:"score" json:"score"`
	TotalQuestions int           `db:"total_questions" json:"total_questions"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
}

// Percentage is score/total as a percentage rounded to two decimals.
func (r Result) Percentage() float64 {
	return Percentage(r.Score, r.TotalQuestions)
}

// CategoryStat is the per-user per-category running summary.
type CategoryStat struct {
	UserID                 int64     `db:"user_id" json:"-"`
	CategoryID             int64     `db:"category_id" json:"category_id"`
	CategoryName           string    `db:"category_name" json:"category_name,omitempty"`
	Attempts               int       `db:"attempts" json:"attempts"`
	BestScore              int       `db:"best_score" json:"best_score"`
	BestPercentage         float64   `db:"best_percentage" json:"best_percentage"`
	TotalQuestionsAnswered int       `db:"total_questions_answered" json:"total_questions_answered"`
	CorrectAnswers         int       `db:"correct_answers" json:"correct_answers"`
	LastAttempt            time.Time `db:"last_attempt" json:"last_attempt"`
	Completed              bool      `db:"completed" json:"completed"`
}

// CompletionThreshold is the percentage at which a category counts as completed.
const CompletionThreshold = 70.0

func Percentage(score, total int) float64 {
	if total <= 0 {
		return 0
	}
	p := float64(score) / float64(total) * 100
	return float64(int64(p*100+0.5)) / 100
}

// JSON is an opaque JSON document kept as raw bytes in a JSON column.
type JSON []byte

func (j JSON) Value() (driver.Value, error) {
	if len(j) == 0 {
		return "null", nil
	}
	return string(j), nil
}

func (j *JSON) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*j = nil
	case []byte:
		*j = append((*j)[:0], v...)
	case string:
		*j = JSON(v)
	default:
		return errors.New("model.JSON: unsupported scan type")
	}
	return nil
}

func (j JSON) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

func (j *JSON) UnmarshalJSON(b []byte) error {
	*j = append((*j)[:0], b...)
	return nil
}
