package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"agrismart.dev/agrismart/internal/auth"
	"agrismart.dev/agrismart/internal/models"
	"agrismart.dev/agrismart/internal/recommend"
	"agrismart.dev/agrismart/pkg/logger"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

var (
	// ErrActiveCycleExists is returned when a field already holds a cycle in
	// planning, planted or growing state.
	ErrActiveCycleExists = errors.New("field already has an active crop cycle")
	// ErrFieldInUse is returned when deleting a field with an active cycle.
	ErrFieldInUse = errors.New("cannot delete a field with an active crop cycle")

	errForbidden = errors.New("forbidden")
)

// validationError is a client mistake reported as 400 with its message.
type validationError struct {
	msg string
}

func (e *validationError) Error() string { return e.msg }

func invalid(format string, args ...any) error {
	return &validationError{msg: fmt.Sprintf(format, args...)}
}

// envelope is the body of every JSON response.
type envelope map[string]any

// RespondWithJSON writes v as a JSON response.
// A value that cannot be encoded becomes a 500 instead of an empty body.
func RespondWithJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"success":false,"error":"internal server error"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

// RespondWithError writes {"success":false,"error":msg}.
func RespondWithError(w http.ResponseWriter, status int, msg string) {
	RespondWithJSON(w, status, envelope{"success": false, "error": msg})
}

func ok(w http.ResponseWriter, status int, body envelope) {
	if body == nil {
		body = envelope{}
	}
	body["success"] = true
	RespondWithJSON(w, status, body)
}

// fail maps err to a status code. Unexpected errors are logged and hidden.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var ve *validationError
	switch {
	case errors.As(err, &ve):
		RespondWithError(w, http.StatusBadRequest, ve.msg)
	case errors.Is(err, models.ErrNotFound):
		RespondWithError(w, http.StatusNotFound, "not found")
	case errors.Is(err, errForbidden):
		s.metrics.AuthFailure("forbidden")
		RespondWithError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, ErrActiveCycleExists), errors.Is(err, ErrFieldInUse):
		RespondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrDuplicate):
		RespondWithError(w, http.StatusBadRequest, "record already exists")
	case errors.Is(err, auth.ErrWeakPassword):
		RespondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, recommend.ErrInvalidInput):
		RespondWithError(w, http.StatusBadRequest, err.Error())
	default:
		logger.FromContext(r.Context(), s.logger).Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		RespondWithError(w, http.StatusInternalServerError, "internal server error")
	}
}

// decode reads a JSON body into dst.
func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return invalid("request body too large")
		case errors.Is(err, io.EOF):
			return invalid("request body is empty")
		default:
			return invalid("invalid JSON body")
		}
	}
	return nil
}

// idParam parses a hex ObjectID path parameter. A malformed id cannot name
// a record, so it is reported as not found.
func idParam(ps httprouter.Params, name string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(ps.ByName(name))
	if err != nil {
		return primitive.NilObjectID, models.ErrNotFound
	}
	return id, nil
}

// uintParam parses a numeric path parameter.
func uintParam(ps httprouter.Params, name string) (uint, error) {
	n, err := strconv.ParseUint(ps.ByName(name), 10, 64)
	if err != nil || n == 0 {
		return 0, models.ErrNotFound
	}
	return uint(n), nil
}

// queryID parses an optional ObjectID query parameter.
func queryID(r *http.Request, name string) (*primitive.ObjectID, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return nil, nil
	}
	id, err := primitive.ObjectIDFromHex(v)
	if err != nil {
		return nil, invalid("%s is not a valid id", name)
	}
	return &id, nil
}

// queryFloat parses an optional float query parameter.
func queryFloat(r *http.Request, name string) (*float64, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return nil, nil
	}
	f, ok := parseFinite(v)
	if !ok {
		return nil, invalid("%s must be a number", name)
	}
	return &f, nil
}

// parseFinite parses v and refuses NaN and the infinities, which ParseFloat
// accepts but JSON cannot carry.
func parseFinite(v string) (float64, bool) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// queryLimit parses an optional positive limit capped at max.
func queryLimit(r *http.Request, def, ceiling int) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get("limit"))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, invalid("limit must be a positive integer")
	}
	return min(n, ceiling), nil
}

// Date accepts RFC 3339 timestamps and plain YYYY-MM-DD dates.
type Date struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	t, err := parseDate(s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return t, nil
}

// timePtr returns the time of an optional Date.
func timePtr(d *Date) *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time
	return &t
}
