package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"alquiler_floripa/internal/domain"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUnauthenticated    = errors.New("not authenticated")
)

const sessionPrefix = "session:"

type Session struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AuthService checks the single admin account and keeps sessions in the cache.
type AuthService struct {
	email string
	hash  []byte
	cache domain.Cache
	ttl   time.Duration
	now   func() time.Time
}

func NewAuthService(email, bcryptHash string, c domain.Cache, ttl time.Duration) *AuthService {
	return &AuthService{email: strings.ToLower(strings.TrimSpace(email)), hash: []byte(bcryptHash), cache: c, ttl: ttl, now: time.Now}
}

func (a *AuthService) Login(ctx context.Context, email, password string) (Session, error) {
	if len(a.hash) == 0 || a.email == "" {
		return Session{}, ErrInvalidCredentials
	}
	if strings.ToLower(strings.TrimSpace(email)) != a.email {
		// keep timing comparable to a wrong password
		_ = bcrypt.CompareHashAndPassword(a.hash, []byte(password))
		return Session{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(a.hash, []byte(password)); err != nil {
		return Session{}, ErrInvalidCredentials
	}
	now := a.now()
	s := Session{ID: uuid.NewString(), Email: a.email, CreatedAt: now, ExpiresAt: now.Add(a.ttl)}
	if err := a.cache.Set(ctx, sessionPrefix+s.ID, s, int(a.ttl.Seconds())); err != nil {
		return Session{}, err
	}
	return s, nil
}

func (a *AuthService) Session(ctx context.Context, id string) (Session, error) {
	if id == "" {
		return Session{}, ErrUnauthenticated
	}
	var s Session
	ok, err := a.cache.Get(ctx, sessionPrefix+id, &s)
	if err != nil {
		return Session{}, err
	}
	if !ok || !a.now().Before(s.ExpiresAt) {
		return Session{}, ErrUnauthenticated
	}
	return s, nil
}

func (a *AuthService) Logout(ctx context.Context, id string) error {
	return a.cache.Del(ctx, sessionPrefix+id)
}
