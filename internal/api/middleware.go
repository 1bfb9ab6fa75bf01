package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/time/rate"

	"agrismart.dev/agrismart/internal/auth"
	"agrismart.dev/agrismart/internal/models"
	"agrismart.dev/agrismart/pkg/logger"
)

// RequestIDHeader carries the per-request correlation id.
const RequestIDHeader = "X-Request-ID"

// statusRecorder remembers the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// requestContext assigns a request id and attaches a request-scoped logger.
func (s *Server) requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		l := s.logger.With("request_id", id)
		next.ServeHTTP(w, r.WithContext(logger.IntoContext(r.Context(), l)))
	})
}

// logRequests logs every finished request.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.FromContext(r.Context(), s.logger).Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(started),
		)
	})
}

// recoverPanics turns a handler panic into a 500.
func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rv := recover(); rv != nil {
				if rv == http.ErrAbortHandler {
					panic(rv)
				}
				logger.FromContext(r.Context(), s.logger).Error("panic recovered",
					"panic", fmt.Sprint(rv),
					"stack", string(debug.Stack()),
				)
				RespondWithError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// securityHeaders sets the browser hardening headers.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-XSS-Protection", "1; mode=block")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// instrument records request metrics under the route pattern.
func (s *Server) instrument(route string, h httprouter.Handle) httprouter.Handle {
	if s.metrics == nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		s.metrics.HTTPRequestsInFlight.Inc()
		defer s.metrics.HTTPRequestsInFlight.Dec()

		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r, ps)
		s.metrics.ObserveRequest(r.Method, route, rec.status, started)
	}
}

// caller is the authenticated user of a request.
type caller struct {
	ID    primitive.ObjectID
	Email string
	Admin bool
}

// callerHandle is a route that needs a signed-in user.
type callerHandle func(http.ResponseWriter, *http.Request, httprouter.Params, *caller)

// identify resolves the session of r and confirms its account still exists.
// Admin rights come from the configured allow-list on every request.
func (s *Server) identify(r *http.Request) (*caller, *http.Request, error) {
	claims, err := s.auth.FromRequest(r)
	if err != nil {
		return nil, r, err
	}
	id, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return nil, r, auth.ErrInvalidSession
	}
	if err := s.accounts.check(r.Context(), s.config.Users, id); err != nil {
		return nil, r, err
	}
	c := &caller{ID: id, Email: claims.Email, Admin: s.auth.IsAdmin(claims.UserID)}
	ctx := auth.WithSession(r.Context(), &auth.Session{UserID: claims.UserID, Email: c.Email, Admin: c.Admin})
	return c, r.WithContext(ctx), nil
}

// authed rejects requests without a valid session with 401.
func (s *Server) authed(h callerHandle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		c, r, err := s.identify(r)
		if errors.Is(err, errAccountLookup) {
			s.fail(w, r, err)
			return
		}
		if err != nil {
			s.metrics.AuthFailure("unauthenticated")
			RespondWithError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		h(w, r, ps, c)
	}
}

// admin additionally rejects non-admins with 403.
func (s *Server) admin(h callerHandle) httprouter.Handle {
	return s.authed(func(w http.ResponseWriter, r *http.Request, ps httprouter.Params, c *caller) {
		if !c.Admin {
			s.metrics.AuthFailure("not_admin")
			RespondWithError(w, http.StatusForbidden, "admin access required")
			return
		}
		h(w, r, ps, c)
	})
}

// page redirects visitors without a session to the sign-in page.
func (s *Server) page(h callerHandle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		c, r, err := s.identify(r)
		if errors.Is(err, errAccountLookup) {
			s.fail(w, r, err)
			return
		}
		if err != nil {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		h(w, r, ps, c)
	}
}

// accountTTL bounds how long a confirmed account is trusted before the user
// store is asked again. Deletions through this server take effect at once.
const accountTTL = 30 * time.Second

var errAccountLookup = errors.New("failed to look up account")

// accountCache remembers accounts recently confirmed to exist.
type accountCache struct {
	mu   sync.Mutex
	seen map[primitive.ObjectID]time.Time
}

func newAccountCache() *accountCache {
	return &accountCache{seen: map[primitive.ObjectID]time.Time{}}
}

// check returns auth.ErrInvalidSession when the account behind a session
// has been deleted.
func (a *accountCache) check(ctx context.Context, users UserStore, id primitive.ObjectID) error {
	now := time.Now()
	a.mu.Lock()
	seen, ok := a.seen[id]
	a.mu.Unlock()
	if ok && now.Sub(seen) < accountTTL {
		return nil
	}

	if _, err := users.UserByID(ctx, id); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			a.forget(id)
			return auth.ErrInvalidSession
		}
		return fmt.Errorf("%w: %w", errAccountLookup, err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.seen[id] = now
	if len(a.seen) > 4096 {
		for k, t := range a.seen {
			if now.Sub(t) >= accountTTL {
				delete(a.seen, k)
			}
		}
	}
	return nil
}

func (a *accountCache) forget(id primitive.ObjectID) {
	a.mu.Lock()
	delete(a.seen, id)
	a.mu.Unlock()
}

// throttled applies the per-IP sign-in limiter.
func (s *Server) throttled(h httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if !s.limiter.allow(clientIP(r)) {
			s.metrics.AuthFailure("rate_limited")
			w.Header().Set("Retry-After", "60")
			RespondWithError(w, http.StatusTooManyRequests, "too many attempts, try again later")
			return
		}
		h(w, r, ps)
	}
}

// ipLimiter keeps one token bucket per client address.
type ipLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   rate.Limit
	burst   int
	swept   time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const limiterIdle = 10 * time.Minute

func newIPLimiter(limit rate.Limit, burst int) *ipLimiter {
	return &ipLimiter{
		buckets: make(map[string]*bucket),
		limit:   limit,
		burst:   burst,
		swept:   time.Now(),
	}
}

func (l *ipLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Sub(l.swept) > limiterIdle {
		for k, b := range l.buckets {
			if now.Sub(b.lastSeen) > limiterIdle {
				delete(l.buckets, k)
			}
		}
		l.swept = now
	}

	b, found := l.buckets[ip]
	if !found {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[ip] = b
	}
	b.lastSeen = now
	return b.limiter.Allow()
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
