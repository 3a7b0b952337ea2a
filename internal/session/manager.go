// Package session keeps cookie-keyed login sessions in redis.
//
// A client is either anonymous (no cookie, unknown or expired token) or
// authenticated (token resolves to a stored session). Sessions expire after
// the configured TTL of inactivity; every successful Resolve extends it.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/emandor/quiz_service/internal/apperr"
	"github.com/emandor/quiz_service/internal/model"
	"github.com/emandor/quiz_service/internal/telemetry"
)

const (
	keyPrefix = "sess:"
	idBytes   = 16
)

// Recorder stores the audit row for a newly created session.
type Recorder interface {
	RecordSession(ctx context.Context, sid string, userID int64, meta model.SessionMeta) error
}

type Manager struct {
	rdb *redis.Client
	rec Recorder
	ttl time.Duration
	now func() time.Time
}

func NewManager(rdb *redis.Client, rec Recorder, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Manager{rdb: rdb, rec: rec, ttl: ttl, now: time.Now}
}

func (m *Manager) Create(ctx context.Context, u *model.User, meta model.SessionMeta) (*model.Session, error) {
	sid, err := newID()
	if err != nil {
		return nil, err
	}
	s := &model.Session{
		ID:             sid,
		UserID:         u.ID,
		Username:       u.Username,
		FullName:       u.FullName,
		ProfilePicture: u.ProfilePicture,
		CreatedAt:      m.now().UTC(),
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	if err := m.rdb.Set(ctx, keyPrefix+sid, b, m.ttl).Err(); err != nil {
		return nil, apperr.Store("save session", err)
	}

	if m.rec != nil {
		if err := m.rec.RecordSession(ctx, sid, u.ID, meta); err != nil {
			log := telemetry.Module("session").With().Int64("user_id", u.ID).Logger()
			log.Error().Err(err).Msg("record_session_failed")
		}
	}
	return s, nil
}

// Resolve maps a token to its session. Anything short of a stored, well-formed
// session yields apperr.ErrUnauthenticated; redis failures yield apperr.ErrStore.
func (m *Manager) Resolve(ctx context.Context, sid string) (*model.Session, error) {
	if !validID(sid) {
		return nil, apperr.ErrUnauthenticated
	}
	key := keyPrefix + sid
	val, err := m.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperr.ErrUnauthenticated
	}
	if err != nil {
		return nil, apperr.Store("load session", err)
	}

	var s model.Session
	if err := json.Unmarshal(val, &s); err != nil || s.UserID <= 0 {
		_ = m.rdb.Del(ctx, key).Err()
		return nil, apperr.ErrUnauthenticated
	}
	s.ID = sid

	if err := m.rdb.Expire(ctx, key, m.ttl).Err(); err != nil {
		log := telemetry.Module("session")
		log.Warn().Err(err).Msg("session_touch_failed")
	}
	return &s, nil
}

// Refresh rewrites the cached profile fields and keeps the remaining TTL.
func (m *Manager) Refresh(ctx context.Context, s *model.Session) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	err = m.rdb.SetArgs(ctx, keyPrefix+s.ID, b, redis.SetArgs{KeepTTL: true, Mode: "XX"}).Err()
	if errors.Is(err, redis.Nil) {
		return apperr.ErrUnauthenticated
	}
	if err != nil {
		return apperr.Store("refresh session", err)
	}
	return nil
}

// Destroy removes the session. Unknown or malformed ids are a no-op.
func (m *Manager) Destroy(ctx context.Context, sid string) error {
	if !validID(sid) {
		return nil
	}
	if err := m.rdb.Del(ctx, keyPrefix+sid).Err(); err != nil {
		return apperr.Store("destroy session", err)
	}
	return nil
}

func newID() (string, error) {
	b := make([]byte, idBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func validID(sid string) bool {
	if len(sid) != idBytes*2 {
		return false
	}
	_, err := hex.DecodeString(sid)
	return err == nil
}
