// Package memstore is an in-memory store.Repository for tests only.
// WithTx serializes transactions and restores a whole-state snapshot on error,
// which also discards writes made outside the transaction meanwhile.
package memstore

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/emandor/quiz_service/internal/apperr"
	"github.com/emandor/quiz_service/internal/model"
	"github.com/emandor/quiz_service/internal/store"
)

// ErrInjected is a convenience error for Fail hooks.
var ErrInjected = errors.New("injected failure")

type key struct{ user, category int64 }

type state struct {
	users      map[int64]model.User
	progress   map[key]model.Progress
	results    []model.Result
	stats      map[key]model.CategoryStat
	categories []model.Category
	questions  []model.Question
	sessions   map[string]int64
	nextUser   int64
	nextResult int64
}

func (s *state) clone() *state {
	c := &state{
		users:      make(map[int64]model.User, len(s.users)),
		progress:   make(map[key]model.Progress, len(s.progress)),
		results:    append([]model.Result(nil), s.results...),
		stats:      make(map[key]model.CategoryStat, len(s.stats)),
		categories: append([]model.Category(nil), s.categories...),
		questions:  append([]model.Question(nil), s.questions...),
		sessions:   make(map[string]int64, len(s.sessions)),
		nextUser:   s.nextUser,
		nextResult: s.nextResult,
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.progress {
		c.progress[k] = v
	}
	for k, v := range s.stats {
		c.stats[k] = v
	}
	for k, v := range s.sessions {
		c.sessions[k] = v
	}
	return c
}

type Store struct {
	mu   sync.Mutex
	txMu sync.Mutex
	st   *state

	// Fail, when set, is consulted before every write; a non-nil return aborts it.
	Fail func(op string) error
}

func New() *Store {
	return &Store{st: &state{
		users:    map[int64]model.User{},
		progress: map[key]model.Progress{},
		stats:    map[key]model.CategoryStat{},
		sessions: map[string]int64{},
	}}
}

// SeedCategory adds a category with the given questions.
func (s *Store) SeedCategory(c model.Category, qs ...model.Question) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range qs {
		q.CategoryID = c.ID
		q.CategoryName = c.Name
		s.st.questions = append(s.st.questions, q)
	}
	s.st.categories = append(s.st.categories, c)
}

// Results returns a copy of every stored result.
func (s *Store) Results() []model.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Result(nil), s.st.results...)
}

// SessionCount returns how many sessions were recorded for the user.
func (s *Store) SessionCount(userID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, uid := range s.st.sessions {
		if uid == userID {
			n++
		}
	}
	return n
}

func (s *Store) Users() store.UserRepository       { return users{s} }
func (s *Store) Attempts() store.AttemptRepository { return attempts{s} }
func (s *Store) Catalog() store.CatalogRepository  { return catalog{s} }

func (s *Store) WithTx(ctx context.Context, fn func(store.Repository) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snap := s.st.clone()
	s.mu.Unlock()

	if err := fn(s); err != nil {
		s.mu.Lock()
		s.st = snap
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) write(op string, fn func(st *state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		if err := s.Fail(op); err != nil {
			return apperr.Store(op, err)
		}
	}
	return fn(s.st)
}

func (s *Store) read(fn func(st *state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.st)
}

type users struct{ s *Store }

func (r users) Create(_ context.Context, u *model.User) (int64, error) {
	var id int64
	err := r.s.write("insert user", func(st *state) error {
		for _, e := range st.users {
			if e.Username == u.Username {
				return apperr.ErrDuplicateUsername
			}
			if e.Email == u.Email {
				return apperr.ErrDuplicateEmail
			}
		}
		st.nextUser++
		id = st.nextUser
		nu := *u
		nu.ID = id
		nu.DateJoined = time.Now()
		st.users[id] = nu
		return nil
	})
	return id, err
}

func (r users) UsernameTaken(_ context.Context, username string) (bool, error) {
	found := false
	_ = r.s.read(func(st *state) error {
		for _, u := range st.users {
			if u.Username == username {
				found = true
			}
		}
		return nil
	})
	return found, nil
}

func (r users) EmailTaken(_ context.Context, email string, exceptID int64) (bool, error) {
	found := false
	_ = r.s.read(func(st *state) error {
		for _, u := range st.users {
			if u.Email == email && u.ID != exceptID {
				found = true
			}
		}
		return nil
	})
	return found, nil
}

func (r users) find(match func(model.User) bool) (*model.User, error) {
	var out *model.User
	_ = r.s.read(func(st *state) error {
		ids := make([]int64, 0, len(st.users))
		for id := range st.users {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, id := range ids {
			if u := st.users[id]; match(u) {
				out = &u
				return nil
			}
		}
		return nil
	})
	if out == nil {
		return nil, apperr.ErrNotFound
	}
	return out, nil
}

func (r users) ByID(_ context.Context, id int64) (*model.User, error) {
	return r.find(func(u model.User) bool { return u.ID == id })
}

func (r users) ByLogin(_ context.Context, login string) (*model.User, error) {
	return r.find(func(u model.User) bool { return u.Username == login || u.Email == login })
}

func (r users) ByEmail(_ context.Context, email string) (*model.User, error) {
	return r.find(func(u model.User) bool { return u.Email == email })
}

func (r users) ByUsernameAndEmail(_ context.Context, username, email string) (*model.User, error) {
	return r.find(func(u model.User) bool { return u.Username == username && u.Email == email })
}

func (r users) update(op string, id int64, fn func(u *model.User)) error {
	return r.s.write(op, func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return apperr.ErrNotFound
		}
		fn(&u)
		st.users[id] = u
		return nil
	})
}

func (r users) TouchLastLogin(_ context.Context, id int64) error {
	return r.update("touch last login", id, func(u *model.User) {
		u.LastLogin = sql.NullTime{Time: time.Now(), Valid: true}
	})
}

func (r users) UpdatePassword(_ context.Context, id int64, hash string) error {
	return r.update("update password", id, func(u *model.User) { u.PasswordHash = hash })
}

func (r users) UpdateProfile(_ context.Context, id int64, fullName, email, picture string) error {
	return r.s.write("update profile", func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return nil
		}
		for _, o := range st.users {
			if o.ID != id && o.Email == email {
				return apperr.ErrDuplicateEmail
			}
		}
		u.FullName, u.Email, u.ProfilePicture = fullName, email, picture
		st.users[id] = u
		return nil
	})
}

func (r users) IncrementQuizzes(_ context.Context, id int64) error {
	return r.update("increment quizzes", id, func(u *model.User) { u.TotalQuizzes++ })
}

func (r users) Profile(_ context.Context, id int64) (*model.Profile, error) {
	var p *model.Profile
	err := r.s.read(func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return apperr.ErrNotFound
		}
		p = &model.Profile{
			ID: u.ID, Username: u.Username, Email: u.Email, FullName: u.FullName,
			ProfilePicture: u.ProfilePicture, DateJoined: u.DateJoined, TotalQuizzes: u.TotalQuizzes,
		}
		attempted, completed := map[int64]bool{}, map[int64]bool{}
		var sum float64
		var n int
		for _, res := range st.results {
			if !res.UserID.Valid || res.UserID.Int64 != id {
				continue
			}
			pct := float64(res.Score) / float64(res.TotalQuestions) * 100
			attempted[res.CategoryID] = true
			if pct >= model.CompletionThreshold {
				completed[res.CategoryID] = true
			}
			if pct > p.BestScore {
				p.BestScore = pct
			}
			if res.Score == res.TotalQuestions {
				p.PerfectScores++
			}
			sum += pct
			n++
		}
		if n > 0 {
			p.AverageScore = float64(int64(sum/float64(n)*100+0.5)) / 100
		}
		p.CategoriesAttempted = len(attempted)
		p.CategoriesCompleted = len(completed)
		return nil
	})
	return p, err
}

func (r users) RecordSession(_ context.Context, sid string, userID int64, _ model.SessionMeta) error {
	return r.s.write("record session", func(st *state) error {
		st.sessions[sid] = userID
		return nil
	})
}

type attempts struct{ s *Store }

func (r attempts) UpsertProgress(_ context.Context, p *model.Progress) error {
	return r.s.write("upsert progress", func(st *state) error {
		np := *p
		np.UserAnswers = append(model.JSON(nil), p.UserAnswers...)
		np.Questions = append(model.JSON(nil), p.Questions...)
		np.LastUpdated = time.Now()
		st.progress[key{p.UserID, p.CategoryID}] = np
		return nil
	})
}

func (r attempts) Progress(_ context.Context, userID, categoryID int64) (*model.Progress, error) {
	var out *model.Progress
	_ = r.s.read(func(st *state) error {
		if p, ok := st.progress[key{userID, categoryID}]; ok {
			out = &p
		}
		return nil
	})
	if out == nil {
		return nil, apperr.ErrNotFound
	}
	return out, nil
}

func (r attempts) DeleteProgress(_ context.Context, userID, categoryID int64) error {
	return r.s.write("delete progress", func(st *state) error {
		delete(st.progress, key{userID, categoryID})
		return nil
	})
}

func (r attempts) InsertResult(_ context.Context, res *model.Result) (int64, error) {
	var id int64
	err := r.s.write("insert result", func(st *state) error {
		st.nextResult++
		id = st.nextResult
		nr := *res
		nr.ID = id
		nr.CreatedAt = time.Now()
		st.results = append(st.results, nr)
		return nil
	})
	return id, err
}

func (r attempts) UpsertCategoryStat(_ context.Context, userID, categoryID int64, score, total int) error {
	return r.s.write("upsert category stat", func(st *state) error {
		pct := model.Percentage(score, total)
		k := key{userID, categoryID}
		cur, ok := st.stats[k]
		if !ok {
			cur = model.CategoryStat{UserID: userID, CategoryID: categoryID}
		}
		cur.Attempts++
		cur.BestScore = max(cur.BestScore, score)
		cur.BestPercentage = max(cur.BestPercentage, pct)
		cur.TotalQuestionsAnswered += total
		cur.CorrectAnswers += score
		cur.LastAttempt = time.Now()
		cur.Completed = cur.Completed || pct >= model.CompletionThreshold
		for _, c := range st.categories {
			if c.ID == categoryID {
				cur.CategoryName = c.Name
			}
		}
		st.stats[k] = cur
		return nil
	})
}

func (r attempts) CategoryStat(_ context.Context, userID, categoryID int64) (*model.CategoryStat, error) {
	var out *model.CategoryStat
	_ = r.s.read(func(st *state) error {
		if c, ok := st.stats[key{userID, categoryID}]; ok {
			out = &c
		}
		return nil
	})
	if out == nil {
		return nil, apperr.ErrNotFound
	}
	return out, nil
}

func (r attempts) CategoryStats(_ context.Context, userID int64) ([]model.CategoryStat, error) {
	out := []model.CategoryStat{}
	_ = r.s.read(func(st *state) error {
		for k, v := range st.stats {
			if k.user == userID {
				out = append(out, v)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CategoryID < out[j].CategoryID })
	return out, nil
}

type catalog struct{ s *Store }

func (r catalog) Categories(_ context.Context) ([]model.Category, error) {
	out := []model.Category{}
	_ = r.s.read(func(st *state) error {
		for _, c := range st.categories {
			c.QuestionCount = 0
			for _, q := range st.questions {
				if q.CategoryID == c.ID {
					c.QuestionCount++
				}
			}
			out = append(out, c)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r catalog) Questions(_ context.Context, categoryID int64) ([]model.Question, error) {
	out := []model.Question{}
	_ = r.s.read(func(st *state) error {
		for _, q := range st.questions {
			if q.CategoryID == categoryID {
				out = append(out, q)
			}
		}
		return nil
	})
	return out, nil
}

var _ store.Repository = (*Store)(nil)
