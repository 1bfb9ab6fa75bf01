package api

import (
	"context"
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"github.com/julienschmidt/httprouter"

	"agrismart.dev/agrismart/internal/auth"
	"agrismart.dev/agrismart/internal/models"
)

var (
	errBadCredentials = errors.New("invalid email or password")
	errEmailTaken     = errors.New("email already registered")
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// register creates the account and returns it with a fresh session token.
func (s *Server) register(ctx context.Context, in credentials) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if _, err := mail.ParseAddress(email); err != nil || !strings.Contains(email, "@") {
		return nil, invalid("a valid email is required")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, invalid("name is required")
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	u := &models.User{Email: email, PasswordHash: hash, Name: name}
	if err := s.config.Users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, models.ErrDuplicate) {
			return nil, invalid("%s", errEmailTaken.Error())
		}
		return nil, err
	}

	s.syncAdminFlag(ctx, u)
	return u, nil
}

// login checks the credentials.
func (s *Server) login(ctx context.Context, in credentials) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || in.Password == "" {
		return nil, invalid("email and password are required")
	}

	u, err := s.config.Users.UserByEmail(ctx, email)
	if errors.Is(err, models.ErrNotFound) {
		return nil, errBadCredentials
	}
	if err != nil {
		return nil, err
	}
	if !auth.CheckPassword(u.PasswordHash, in.Password) {
		return nil, errBadCredentials
	}

	s.syncAdminFlag(ctx, u)
	return u, nil
}

// syncAdminFlag mirrors the allow-list into the stored user record.
func (s *Server) syncAdminFlag(ctx context.Context, u *models.User) {
	admin := s.auth.IsAdmin(u.ID.Hex())
	if u.IsAdmin == admin {
		return
	}
	if err := s.config.Users.SetAdminFlag(ctx, u.ID, admin); err != nil {
		s.logger.Warn("failed to update admin flag", "user_id", u.ID.Hex(), "error", err)
		return
	}
	u.IsAdmin = admin
}

// startSession issues the token and writes the cookie.
func (s *Server) startSession(w http.ResponseWriter, u *models.User) (string, error) {
	token, expires, err := s.auth.Issue(u.ID.Hex(), u.Email)
	if err != nil {
		return "", err
	}
	s.auth.SetCookie(w, token, expires)
	return token, nil
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var in credentials
	if err := decode(w, r, &in); err != nil {
		s.fail(w, r, err)
		return
	}

	u, err := s.register(r.Context(), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	token, err := s.startSession(w, u)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	ok(w, http.StatusCreated, envelope{
		"user":     u,
		"is_admin": s.auth.IsAdmin(u.ID.Hex()),
		"token":    token,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var in credentials
	if err := decode(w, r, &in); err != nil {
		s.fail(w, r, err)
		return
	}

	u, err := s.login(r.Context(), in)
	if errors.Is(err, errBadCredentials) {
		s.metrics.AuthFailure("bad_credentials")
		RespondWithError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}

	token, err := s.startSession(w, u)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	ok(w, http.StatusOK, envelope{
		"user":     u,
		"is_admin": s.auth.IsAdmin(u.ID.Hex()),
		"token":    token,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	s.auth.ClearCookie(w)
	ok(w, http.StatusOK, nil)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, _ httprouter.Params, c *caller) {
	u, err := s.config.Users.UserByID(r.Context(), c.ID)
	if errors.Is(err, models.ErrNotFound) {
		// The account was deleted after the token was issued.
		s.auth.ClearCookie(w)
		RespondWithError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, envelope{"user": u, "is_admin": c.Admin})
}
