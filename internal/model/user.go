package model

import (
	"database/sql"
	"time"
)

// DefaultPicture is the avatar assigned when registration omits one.
const DefaultPicture = "apple.png"

type User struct {
	ID             int64        `db:"id" json:"id"`
	Username       string       `db:"username" json:"username"`
	Email          string       `db:"email" json:"email"`
	PasswordHash   string       `db:"password" json:"-"`
	FullName       string       `db:"full_name" json:"full_name"`
	ProfilePicture string       `db:"profile_picture" json:"profile_picture"`
	DateJoined     time.Time    `db:"date_joined" json:"date_joined"`
	LastLogin      sql.NullTime `db:"last_login" json:"-"`
	TotalQuizzes   int          `db:"total_quizzes" json:"total_quizzes"`
}

// Profile is the read model behind get_user_profile.
type Profile struct {
	ID                  int64          `db:"id" json:"id"`
	Username            string         `db:"username" json:"username"`
	Email               string         `db:"email" json:"email"`
	FullName            string         `db:"full_name" json:"full_name"`
	ProfilePicture      string         `db:"profile_picture" json:"profile_picture"`
	DateJoined          time.Time      `db:"date_joined" json:"date_joined"`
	TotalQuizzes        int            `db:"total_quizzes" json:"total_quizzes"`
	CategoriesAttempted int            `db:"categories_attempted" json:"categories_attempted"`
	AverageScore        float64        `db:"average_score" json:"average_score"`
	BestScore           float64        `db:"best_score" json:"best_score"`
	PerfectScores       int            `db:"perfect_scores" json:"perfect_scores"`
	CategoriesCompleted int            `db:"categories_completed" json:"categories_completed"`
	CategoryStats       []CategoryStat `db:"-" json:"category_stats"`
}
