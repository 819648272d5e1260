package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/rs/zerolog"
)

const tokenBytes = 32

// Options configures a Manager. HashKey signs cookies and BlockKey encrypts
// them; both come from auth.DeriveKeys.
type Options struct {
	CookieName string
	TTL        time.Duration
	Secure     bool
	HashKey    []byte
	BlockKey   []byte
}

// Manager binds authenticated users to browser sessions and carries flash
// messages across redirects.
type Manager struct {
	store      Store
	cookieName string
	flashName  string
	ttl        time.Duration
	secure     bool
	codec      *securecookie.SecureCookie
	flashCodec *securecookie.SecureCookie
	logger     zerolog.Logger
	now        func() time.Time
}

func NewManager(store Store, opts Options, logger zerolog.Logger) *Manager {
	codec := securecookie.New(opts.HashKey, opts.BlockKey)
	codec.MaxAge(int(opts.TTL / time.Second))

	flashCodec := securecookie.New(opts.HashKey, opts.BlockKey)
	flashCodec.SetSerializer(securecookie.JSONEncoder{})
	flashCodec.MaxAge(int(time.Hour / time.Second))

	return &Manager{
		store:      store,
		cookieName: opts.CookieName,
		flashName:  opts.CookieName + "_flash",
		ttl:        opts.TTL,
		secure:     opts.Secure,
		codec:      codec,
		flashCodec: flashCodec,
		logger:     logger.With().Str("component", "session").Logger(),
		now:        time.Now,
	}
}

// Login starts a new session for userID and writes its cookie. A session
// already attached to r is discarded first so a pre-login token can never be
// promoted.
func (m *Manager) Login(ctx context.Context, w http.ResponseWriter, r *http.Request, userID int64) error {
	if token, ok := m.token(r); ok {
		if err := m.store.DeleteSession(ctx, hashToken(token)); err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("failed to discard previous session: %w", err)
		}
	}

	token, err := generateToken()
	if err != nil {
		return fmt.Errorf("failed to generate session token: %w", err)
	}

	now := m.now().UTC()
	rec := Record{
		TokenHash: hashToken(token),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	if err := m.store.CreateSession(ctx, rec); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}

	encoded, err := m.codec.Encode(m.cookieName, token)
	if err != nil {
		return fmt.Errorf("failed to encode session cookie: %w", err)
	}
	http.SetCookie(w, m.cookie(m.cookieName, encoded, m.ttl))
	return nil
}

// CurrentIdentity returns the user bound to r's session. A missing, forged,
// unknown or expired session yields ok == false with a nil error; expired
// rows are deleted on the way.
func (m *Manager) CurrentIdentity(ctx context.Context, r *http.Request) (userID int64, ok bool, err error) {
	token, found := m.token(r)
	if !found {
		return 0, false, nil
	}

	hash := hashToken(token)
	rec, err := m.store.GetSession(ctx, hash)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to load session: %w", err)
	}

	if rec.Expired(m.now()) {
		if err := m.store.DeleteSession(ctx, hash); err != nil && !errors.Is(err, ErrNotFound) {
			m.logger.Warn().Err(err).Msg("failed to delete expired session")
		}
		return 0, false, nil
	}
	return rec.UserID, true, nil
}

// Logout deletes the session bound to r, if any, and expires the cookie.
func (m *Manager) Logout(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if token, ok := m.token(r); ok {
		if err := m.store.DeleteSession(ctx, hashToken(token)); err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("failed to delete session: %w", err)
		}
	}
	http.SetCookie(w, m.expired(m.cookieName))
	return nil
}

// DeleteExpired purges sessions that expired before now.
func (m *Manager) DeleteExpired(ctx context.Context) (int64, error) {
	n, err := m.store.DeleteExpiredSessions(ctx, m.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return n, nil
}

// AddFlash queues messages for the next request that calls Flashes. Messages
// already pending on r are kept.
func (m *Manager) AddFlash(w http.ResponseWriter, r *http.Request, messages ...string) error {
	pending := m.readFlashes(r)
	pending = append(pending, messages...)

	encoded, err := m.flashCodec.Encode(m.flashName, pending)
	if err != nil {
		return fmt.Errorf("failed to encode flash cookie: %w", err)
	}
	http.SetCookie(w, m.cookie(m.flashName, encoded, 0))
	return nil
}

// Flashes returns the pending messages on r and clears them.
func (m *Manager) Flashes(w http.ResponseWriter, r *http.Request) []string {
	if _, err := r.Cookie(m.flashName); err != nil {
		return nil
	}
	http.SetCookie(w, m.expired(m.flashName))
	return m.readFlashes(r)
}

func (m *Manager) readFlashes(r *http.Request) []string {
	c, err := r.Cookie(m.flashName)
	if err != nil {
		return nil
	}
	var messages []string
	if err := m.flashCodec.Decode(m.flashName, c.Value, &messages); err != nil {
		m.logger.Debug().Err(err).Msg("discarding undecodable flash cookie")
		return nil
	}
	return messages
}

func (m *Manager) token(r *http.Request) (string, bool) {
	c, err := r.Cookie(m.cookieName)
	if err != nil || c.Value == "" {
		return "", false
	}
	var token string
	if err := m.codec.Decode(m.cookieName, c.Value, &token); err != nil {
		m.logger.Debug().Err(err).Msg("rejecting undecodable session cookie")
		return "", false
	}
	return token, token != ""
}

// cookie builds an HttpOnly, SameSite=Lax cookie. A zero lifetime makes a
// browser-session cookie.
func (m *Manager) cookie(name, value string, lifetime time.Duration) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
	if lifetime > 0 {
		c.Expires = m.now().Add(lifetime)
		c.MaxAge = int(lifetime / time.Second)
	}
	return c
}

func (m *Manager) expired(name string) *http.Cookie {
	c := m.cookie(name, "", 0)
	c.MaxAge = -1
	c.Expires = time.Unix(0, 0)
	return c
}

func generateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
