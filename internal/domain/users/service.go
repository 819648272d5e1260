package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/Togather-Foundation/agenda/internal/sanitize"
	"github.com/Togather-Foundation/agenda/internal/validation"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// Error types for user domain operations
var (
	ErrInvalidInput       = validation.ErrInvalidInput
	ErrUserNotFound       = errors.New("user not found")
	ErrUsernameTaken      = errors.New("username is already taken")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// Messages shown on the registration form.
const (
	MsgCredentialsRequired = "Username and password required"
	MsgUsernameTooLong     = "Username must be at most 150 characters"
	MsgPasswordTooLong     = "Password must be at most 72 bytes"
)

var registrationMessages = validation.Messages{
	"Username.notblank": MsgCredentialsRequired,
	"Password.notblank": MsgCredentialsRequired,
	"Username.max":      MsgUsernameTooLong,
}

type registration struct {
	Username string `validate:"notblank,max=150"`
	Password string `validate:"notblank"`
}

// Service handles account registration and credential checks.
type Service struct {
	repo       Repository
	bcryptCost int
	// dummyHash is compared against when the username is unknown so that
	// Verify costs one bcrypt comparison on every path.
	dummyHash []byte
	logger    zerolog.Logger
}

// NewService creates a new user service instance
func NewService(repo Repository, bcryptCost int, logger zerolog.Logger) *Service {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("agenda-placeholder-password"), bcryptCost)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to precompute placeholder hash")
	}
	return &Service{
		repo:       repo,
		bcryptCost: bcryptCost,
		dummyHash:  dummy,
		logger:     logger.With().Str("component", "users").Logger(),
	}
}

// NormalizeUsername trims whitespace and strips markup so that registration
// and login agree on the stored form.
func NormalizeUsername(username string) string {
	return sanitize.Line(username)
}

// Register creates an account. The username is normalized first; a username
// that already exists yields ErrUsernameTaken.
func (s *Service) Register(ctx context.Context, username, password string) (*User, error) {
	username = NormalizeUsername(username)
	if err := validation.Struct(registration{Username: username, Password: password}, registrationMessages); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, validation.NewInputError("password", MsgPasswordTooLong)
		}
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.repo.CreateUser(ctx, username, string(hash))
	if err != nil {
		if errors.Is(err, ErrUsernameTaken) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info().Int64("user_id", user.ID).Str("username", user.Username).Msg("user registered")
	return user, nil
}

// Verify returns the user whose stored hash accepts password. Unknown
// usernames and wrong passwords both yield ErrInvalidCredentials.
func (s *Service) Verify(ctx context.Context, username, password string) (*User, error) {
	username = NormalizeUsername(username)

	var user *User
	if username != "" {
		found, err := s.repo.GetUserByUsername(ctx, username)
		switch {
		case err == nil:
			user = found
		case !errors.Is(err, ErrUserNotFound):
			return nil, fmt.Errorf("failed to look up user: %w", err)
		}
	}

	if user == nil {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.Debug().Int64("user_id", user.ID).Msg("password mismatch")
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// Get retrieves a user by id.
func (s *Service) Get(ctx context.Context, id int64) (*User, error) {
	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}
