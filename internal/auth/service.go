package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"github.com/emandor/quiz_service/internal/apperr"
	"github.com/emandor/quiz_service/internal/model"
	"github.com/emandor/quiz_service/internal/store"
	"github.com/emandor/quiz_service/internal/telemetry"
	"github.com/emandor/quiz_service/internal/validate"
)

// Sessions is the part of session.Manager the auth service drives.
type Sessions interface {
	Create(ctx context.Context, u *model.User, meta model.SessionMeta) (*model.Session, error)
	Resolve(ctx context.Context, sid string) (*model.Session, error)
	Refresh(ctx context.Context, s *model.Session) error
	Destroy(ctx context.Context, sid string) error
}

type Service struct {
	repo       store.Repository
	sessions   Sessions
	bcryptCost int
}

func NewService(repo store.Repository, sessions Sessions, bcryptCost int) *Service {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{repo: repo, sessions: sessions, bcryptCost: bcryptCost}
}

type RegisterInput struct {
	Username       string `json:"username" validate:"required,max=50"`
	Email          string `json:"email" validate:"required,max=255"`
	Password       string `json:"password" validate:"required"`
	FullName       string `json:"full_name" validate:"required,max=100"`
	ProfilePicture string `json:"profile_picture" validate:"max=255"`
}

func (in *RegisterInput) normalize() {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)
	in.ProfilePicture = strings.TrimSpace(in.ProfilePicture)
	if in.ProfilePicture == "" {
		in.ProfilePicture = model.DefaultPicture
	}
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (int64, error) {
	in.normalize()
	if in.Username == "" || in.Email == "" || in.Password == "" || in.FullName == "" {
		return 0, apperr.Invalid("All fields are required")
	}
	if err := validate.Struct(in, ""); err != nil {
		return 0, err
	}

	users := s.repo.Users()
	taken, err := users.UsernameTaken(ctx, in.Username)
	if err != nil {
		return 0, err
	}
	if taken {
		return 0, apperr.ErrDuplicateUsername
	}
	if taken, err = users.EmailTaken(ctx, in.Email, 0); err != nil {
		return 0, err
	}
	if taken {
		return 0, apperr.ErrDuplicateEmail
	}

	hash, err := s.hash(in.Password)
	if err != nil {
		return 0, err
	}
	// the unique keys still decide a race between two registrations
	id, err := users.Create(ctx, &model.User{
		Username:       in.Username,
		Email:          in.Email,
		PasswordHash:   hash,
		FullName:       in.FullName,
		ProfilePicture: in.ProfilePicture,
	})
	if err != nil {
		return 0, err
	}

	log := telemetry.Module("auth")
	log.Info().Int64("user_id", id).Str("username", in.Username).Msg("user_registered")
	return id, nil
}

// Login authenticates by username or email and opens a new session.
func (s *Service) Login(ctx context.Context, login, password string, meta model.SessionMeta) (*model.Session, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, apperr.Invalid("Please enter both username and password")
	}

	u, err := s.repo.Users().ByLogin(ctx, login)
	if err != nil {
		return nil, err
	}
	if !checkPassword(u.PasswordHash, password) {
		return nil, apperr.ErrInvalidCredentials
	}
	return s.openSession(ctx, u, meta)
}

// LoginVerified opens a session for the account owning email. The caller has
// already proven control of the address.
func (s *Service) LoginVerified(ctx context.Context, email string, meta model.SessionMeta) (*model.Session, error) {
	u, err := s.repo.Users().ByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, err
	}
	return s.openSession(ctx, u, meta)
}

func (s *Service) openSession(ctx context.Context, u *model.User, meta model.SessionMeta) (*model.Session, error) {
	if err := s.repo.Users().TouchLastLogin(ctx, u.ID); err != nil {
		return nil, err
	}
	sess, err := s.sessions.Create(ctx, u, meta)
	if err != nil {
		return nil, err
	}
	log := telemetry.Module("auth")
	log.Info().Int64("user_id", u.ID).Str("ip", meta.IP).Msg("login_ok")
	return sess, nil
}

// Logout destroys the session; unknown ids are ignored.
func (s *Service) Logout(ctx context.Context, sid string) error {
	if sid == "" {
		return nil
	}
	return s.sessions.Destroy(ctx, sid)
}

// Resolve returns the session for sid, or nil for a guest. Store failures
// are logged and also treated as guest.
func (s *Service) Resolve(ctx context.Context, sid string) *model.Session {
	if sid == "" {
		return nil
	}
	sess, err := s.sessions.Resolve(ctx, sid)
	if err != nil {
		if !errors.Is(err, apperr.ErrUnauthenticated) {
			log := telemetry.Module("auth")
			log.Error().Err(err).Msg("session_resolve_failed")
		}
		return nil
	}
	return sess
}

// CurrentUser returns the user behind sid. A missing or stale session, or a
// session whose user no longer exists, reports false.
func (s *Service) CurrentUser(ctx context.Context, sid string) (*model.User, bool) {
	sess := s.Resolve(ctx, sid)
	if sess == nil {
		return nil, false
	}
	u, err := s.repo.Users().ByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			_ = s.sessions.Destroy(ctx, sid)
		}
		return nil, false
	}
	return u, true
}

func (s *Service) ChangePassword(ctx context.Context, userID int64, oldPassword, newPassword string) error {
	if oldPassword == "" || newPassword == "" {
		return apperr.Invalid("All fields are required")
	}
	u, err := s.repo.Users().ByID(ctx, userID)
	if err != nil {
		return err
	}
	if !checkPassword(u.PasswordHash, oldPassword) {
		return apperr.ErrInvalidCredentials
	}
	if len(newPassword) < apperr.MinPasswordLen {
		return apperr.ErrWeakPassword
	}
	return s.setPassword(ctx, u.ID, newPassword)
}

// ResetPassword sets a new password for the account matching both username and email.
func (s *Service) ResetPassword(ctx context.Context, username, email, newPassword string) error {
	username, email = strings.TrimSpace(username), strings.TrimSpace(email)
	if username == "" || email == "" || newPassword == "" {
		return apperr.Invalid("All fields are required")
	}
	if len(newPassword) < apperr.MinPasswordLen {
		return apperr.ErrWeakPassword
	}
	u, err := s.repo.Users().ByUsernameAndEmail(ctx, username, email)
	if err != nil {
		return err
	}
	if err := s.setPassword(ctx, u.ID, newPassword); err != nil {
		return err
	}
	log := telemetry.Module("auth")
	log.Info().Int64("user_id", u.ID).Msg("password_reset")
	return nil
}

func (s *Service) setPassword(ctx context.Context, userID int64, password string) error {
	hash, err := s.hash(password)
	if err != nil {
		return err
	}
	return s.repo.Users().UpdatePassword(ctx, userID, hash)
}

type ProfileInput struct {
	FullName       string `json:"full_name" validate:"required,max=100"`
	Email          string `json:"email" validate:"required,email,max=255"`
	ProfilePicture string `json:"profile_picture" validate:"max=255"`
}

// UpdateProfile changes name, email and picture. An empty picture keeps the current one.
func (s *Service) UpdateProfile(ctx context.Context, userID int64, in ProfileInput) (*model.User, error) {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = strings.TrimSpace(in.Email)
	in.ProfilePicture = strings.TrimSpace(in.ProfilePicture)
	if err := validate.Struct(in, ""); err != nil {
		return nil, err
	}

	users := s.repo.Users()
	u, err := users.ByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if in.ProfilePicture == "" {
		in.ProfilePicture = u.ProfilePicture
	}
	if in.Email != u.Email {
		taken, err := users.EmailTaken(ctx, in.Email, userID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, apperr.ErrDuplicateEmail
		}
	}
	if err := users.UpdateProfile(ctx, userID, in.FullName, in.Email, in.ProfilePicture); err != nil {
		return nil, err
	}
	u.FullName, u.Email, u.ProfilePicture = in.FullName, in.Email, in.ProfilePicture
	return u, nil
}

// SetProfilePicture replaces only the picture, keeping name and email.
func (s *Service) SetProfilePicture(ctx context.Context, userID int64, picture string) (*model.User, error) {
	users := s.repo.Users()
	u, err := users.ByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := users.UpdateProfile(ctx, userID, u.FullName, u.Email, picture); err != nil {
		return nil, err
	}
	u.ProfilePicture = picture
	return u, nil
}

// SyncSession copies the user's display fields into the live session.
func (s *Service) SyncSession(ctx context.Context, sess *model.Session, u *model.User) error {
	if sess == nil {
		return nil
	}
	sess.Username, sess.FullName, sess.ProfilePicture = u.Username, u.FullName, u.ProfilePicture
	return s.sessions.Refresh(ctx, sess)
}

// Profile loads the aggregate view and per-category stats concurrently.
func (s *Service) Profile(ctx context.Context, userID int64) (*model.Profile, error) {
	var (
		p     *model.Profile
		stats []model.CategoryStat
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		p, err = s.repo.Users().Profile(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		stats, err = s.repo.Attempts().CategoryStats(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	p.CategoryStats = stats
	return p, nil
}

func (s *Service) hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", apperr.Invalid("Password is too long")
	}
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
