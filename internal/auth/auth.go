// Package auth issues and verifies session tokens, hashes passwords and
// answers whether a user is an administrator.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// CookieName is the session cookie.
const CookieName = "agrismart_session"

// SessionTTL is how long a session stays valid.
const SessionTTL = 7 * 24 * time.Hour

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

var (
	// ErrNoSession is returned when a request carries no token.
	ErrNoSession = errors.New("no session")
	// ErrInvalidSession is returned for a malformed, forged or expired token.
	ErrInvalidSession = errors.New("invalid or expired session")
	// ErrWeakPassword is returned for passwords below MinPasswordLength.
	ErrWeakPassword = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
)

// Claims is the session token payload.
type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// Config configures a Manager.
type Config struct {
	Secret       string
	AdminUserIDs []string
	CookieSecure bool
	TTL          time.Duration
}

// Manager signs sessions and checks admin membership.
type Manager struct {
	secret  []byte
	admins  []string
	secure  bool
	ttl     time.Duration
	nowFunc func() time.Time
}

// NewManager creates a Manager. The secret must be at least 32 bytes.
func NewManager(cfg *Config) (*Manager, error) {
	if cfg == nil {
		return nil, errors.New("auth config cannot be nil")
	}
	if len(cfg.Secret) < 32 {
		return nil, errors.New("jwt secret must be at least 32 characters")
	}

	admins := make([]string, 0, len(cfg.AdminUserIDs))
	for _, id := range cfg.AdminUserIDs {
		if id = strings.TrimSpace(id); id != "" {
			admins = append(admins, id)
		}
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = SessionTTL
	}
	return &Manager{
		secret:  []byte(cfg.Secret),
		admins:  admins,
		secure:  cfg.CookieSecure,
		ttl:     ttl,
		nowFunc: time.Now,
	}, nil
}

// IsAdmin reports whether userID is on the configured allow-list. It is the
// only authority on admin access.
func (m *Manager) IsAdmin(userID string) bool {
	return userID != "" && slices.Contains(m.admins, userID)
}

// Issue signs a session token for a user.
func (m *Manager) Issue(userID, email string) (string, time.Time, error) {
	now := m.nowFunc()
	exp := now.Add(m.ttl)
	claims := Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "agrismart",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign session: %w", err)
	}
	return signed, exp, nil
}

// Parse verifies a token and returns its claims.
func (m *Manager) Parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.nowFunc),
		jwt.WithIssuer("agrismart"),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidSession
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || claims.UserID == "" {
		return nil, ErrInvalidSession
	}
	return claims, nil
}

// FromRequest reads the token from the session cookie or, failing that,
// from a Bearer Authorization header.
func (m *Manager) FromRequest(r *http.Request) (*Claims, error) {
	var tokenStr string
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		tokenStr = c.Value
	} else if h := r.Header.Get("Authorization"); h != "" {
		scheme, tok, ok := strings.Cut(h, " ")
		if !ok || !strings.EqualFold(scheme, "bearer") {
			return nil, ErrInvalidSession
		}
		tokenStr = strings.TrimSpace(tok)
	}
	if tokenStr == "" {
		return nil, ErrNoSession
	}
	return m.Parse(tokenStr)
}

// SetCookie writes the session cookie.
func (m *Manager) SetCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(time.Until(expires).Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie.
func (m *Manager) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// HashPassword validates and hashes a password.
func HashPassword(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Session is the authenticated caller of a request.
type Session struct {
	UserID string
	Email  string
	Admin  bool
}

type ctxKey int

const sessionKey ctxKey = iota

// WithSession stores s in ctx.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// SessionFrom returns the session stored in ctx, if any.
func SessionFrom(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey).(*Session)
	return s, ok && s != nil
}
