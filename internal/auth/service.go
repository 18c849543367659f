// Package auth handles user registration, password sign-in and the session
// tokens that carry the signed-in user id on later requests.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ledgerly/internal/core"
	"ledgerly/internal/storage"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
)

// UserStore is the slice of the user repository auth needs.
type UserStore interface {
	Get(ctx context.Context, id string) (core.User, error)
	FindByEmail(ctx context.Context, email string) (core.User, error)
	Save(ctx context.Context, u core.User) error
}

type Service struct {
	users  UserStore
	tokens *Tokens
	cost   int
}

type Option func(*Service)

// WithBcryptCost overrides the hashing cost; tests use bcrypt.MinCost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

func NewService(users UserStore, tokens *Tokens, opts ...Option) *Service {
	s := &Service{users: users, tokens: tokens, cost: bcrypt.DefaultCost}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Session is what a successful register or sign-in hands back to the client.
type Session struct {
	UserID    string    `json:"userId"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (s *Service) Register(ctx context.Context, email, password string) (Session, error) {
	email = core.NormalizeEmail(email)
	if err := core.ValidateCredentials(email, password); err != nil {
		return Session{}, err
	}

	_, err := s.users.FindByEmail(ctx, email)
	if err == nil {
		return Session{}, ErrEmailTaken
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return Session{}, fmt.Errorf("check email: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}

	user := core.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.Save(ctx, user); err != nil {
		return Session{}, fmt.Errorf("save user: %w", err)
	}

	slog.InfoContext(ctx, "User registered", "user_id", user.ID)
	return s.session(user.ID)
}

// SignIn checks the password and returns a session for the user. Unknown
// e-mail and wrong password are indistinguishable to the caller.
func (s *Service) SignIn(ctx context.Context, email, password string) (Session, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, fmt.Errorf("find user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		slog.WarnContext(ctx, "Failed sign-in", "user_id", user.ID)
		return Session{}, ErrInvalidCredentials
	}
	return s.session(user.ID)
}

// User loads the profile of a signed-in user.
func (s *Service) User(ctx context.Context, id string) (core.User, error) {
	return s.users.Get(ctx, id)
}

func (s *Service) Tokens() *Tokens { return s.tokens }

func (s *Service) session(userID string) (Session, error) {
	token, exp, err := s.tokens.Issue(userID)
	if err != nil {
		return Session{}, err
	}
	return Session{UserID: userID, Token: token, ExpiresAt: exp}, nil
}
