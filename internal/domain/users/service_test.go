package users

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Togather-Foundation/agenda/internal/validation"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// memoryRepository is an in-memory Repository with the same uniqueness
// contract as the SQL backends.
type memoryRepository struct {
	mu     sync.Mutex
	nextID int64
	byName map[string]*User

	lookupErr error
	lookups   int
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{byName: make(map[string]*User)}
}

func (m *memoryRepository) CreateUser(_ context.Context, username, passwordHash string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byName[username]; ok {
		return nil, ErrUsernameTaken
	}
	m.nextID++
	u := &User{ID: m.nextID, Username: username, PasswordHash: passwordHash, CreatedAt: time.Now().UTC()}
	m.byName[username] = u
	return u, nil
}

func (m *memoryRepository) GetUserByUsername(_ context.Context, username string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	u, ok := m.byName[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func (m *memoryRepository) GetUserByID(_ context.Context, id int64) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byName {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, ErrUserNotFound
}

func newTestService(repo Repository) *Service {
	return NewService(repo, bcrypt.MinCost, zerolog.Nop())
}

func TestRegister_Success(t *testing.T) {
	repo := newMemoryRepository()
	svc := newTestService(repo)

	user, err := svc.Register(context.Background(), "  alice  ", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.NotEqual(t, "secret1", user.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("secret1")))
}

func TestRegister_InvalidInput(t *testing.T) {
	svc := newTestService(newMemoryRepository())

	tests := []struct {
		name     string
		username string
		password string
		wantMsg  string
	}{
		{"empty username", "", "secret1", MsgCredentialsRequired},
		{"whitespace username", "   ", "secret1", MsgCredentialsRequired},
		{"markup only username", "<b></b>", "secret1", MsgCredentialsRequired},
		{"empty password", "alice", "", MsgCredentialsRequired},
		{"blank password", "alice", "   ", MsgCredentialsRequired},
		{"username too long", strings.Repeat("a", MaxUsernameLength+1), "secret1", MsgUsernameTooLong},
		{"password too long for bcrypt", "alice", strings.Repeat("p", 73), MsgPasswordTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tt.username, tt.password)
			require.ErrorIs(t, err, ErrInvalidInput)
			assert.Equal(t, tt.wantMsg, validation.Message(err))
		})
	}
}

func TestRegister_MaxLengthUsernameAccepted(t *testing.T) {
	svc := newTestService(newMemoryRepository())
	_, err := svc.Register(context.Background(), strings.Repeat("a", MaxUsernameLength), "secret1")
	require.NoError(t, err)
}

func TestRegister_DuplicateUsername(t *testing.T) {
	svc := newTestService(newMemoryRepository())
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "secret1")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "alice", "other-password")
	require.ErrorIs(t, err, ErrUsernameTaken)

	// The first account keeps its credentials.
	user, err := svc.Verify(ctx, "alice", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)

	_, err = svc.Verify(ctx, "alice", "other-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegister_ConcurrentDuplicates(t *testing.T) {
	svc := newTestService(newMemoryRepository())

	const attempts = 8
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Register(context.Background(), "bob", "secret1")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, taken int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrUsernameTaken):
			taken++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, attempts-1, taken)
}

func TestRegister_RepositoryFailure(t *testing.T) {
	repo := &failingRepository{err: errors.New("disk full")}
	svc := newTestService(repo)

	_, err := svc.Register(context.Background(), "alice", "secret1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), "disk full")
}

func TestVerify(t *testing.T) {
	repo := newMemoryRepository()
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "secret1")
	require.NoError(t, err)

	tests := []struct {
		name     string
		username string
		password string
		wantErr  error
	}{
		{"correct", "alice", "secret1", nil},
		{"username is trimmed", " alice ", "secret1", nil},
		{"wrong password", "alice", "wrong", ErrInvalidCredentials},
		{"empty password", "alice", "", ErrInvalidCredentials},
		{"unknown user", "mallory", "secret1", ErrInvalidCredentials},
		{"empty username", "", "secret1", ErrInvalidCredentials},
		{"case sensitive", "Alice", "secret1", ErrInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := svc.Verify(ctx, tt.username, tt.password)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, user)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "alice", user.Username)
		})
	}
}

func TestVerify_LookupFailureIsNotCredentialError(t *testing.T) {
	repo := newMemoryRepository()
	repo.lookupErr = errors.New("connection reset")
	svc := newTestService(repo)

	_, err := svc.Verify(context.Background(), "alice", "secret1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
}

func TestGet(t *testing.T) {
	svc := newTestService(newMemoryRepository())
	ctx := context.Background()

	created, err := svc.Register(ctx, "alice", "secret1")
	require.NoError(t, err)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Username, got.Username)

	_, err = svc.Get(ctx, created.ID+100)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

type failingRepository struct {
	err error
}

func (f *failingRepository) CreateUser(context.Context, string, string) (*User, error) {
	return nil, f.err
}

func (f *failingRepository) GetUserByUsername(context.Context, string) (*User, error) {
	return nil, f.err
}

func (f *failingRepository) GetUserByID(context.Context, int64) (*User, error) {
	return nil, f.err
}
