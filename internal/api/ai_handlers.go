package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"

	"agrismart.dev/agrismart/internal/gemini"
	"agrismart.dev/agrismart/internal/models"
	"agrismart.dev/agrismart/pkg/logger"
)

// MaxImageBytes bounds disease detection uploads.
const MaxImageBytes = 10 << 20

const archiveTimeout = 30 * time.Second

func (s *Server) handleDiseaseDetection(w http.ResponseWriter, r *http.Request, _ httprouter.Params, c *caller) {
	if s.config.Disease == nil || !s.config.Disease.Configured() {
		RespondWithJSON(w, http.StatusServiceUnavailable, envelope{
			"success":    false,
			"configured": false,
			"error":      "disease detection is not configured",
		})
		return
	}

	data, contentType, err := readImage(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	diagnosis, err := s.config.Disease.DetectDisease(r.Context(), data)
	if errors.Is(err, gemini.ErrUnreadableImage) {
		s.fail(w, r, invalid("image could not be decoded"))
		return
	}
	if err != nil {
		logger.FromContext(r.Context(), s.logger).Error("disease detection failed", "error", err)
		RespondWithError(w, http.StatusInternalServerError, "disease detection failed")
		return
	}

	if s.config.Archive != nil {
		ctx := context.WithoutCancel(r.Context())
		s.background.Go(func() { s.archiveImage(ctx, c.ID.Hex(), data, contentType) })
	}

	ok(w, http.StatusOK, envelope{"configured": true, "diagnosis": diagnosis})
}

// readImage extracts the "image" part and checks it is a JPEG or PNG of at
// most MaxImageBytes.
func readImage(w http.ResponseWriter, r *http.Request) ([]byte, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxImageBytes+(1<<20))
	if err := r.ParseMultipartForm(MaxImageBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, "", invalid("image must be at most 10 MiB")
		}
		return nil, "", invalid("expected a multipart form with an image")
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		return nil, "", invalid("image is required")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, MaxImageBytes+1))
	if err != nil {
		return nil, "", invalid("failed to read image")
	}
	if len(data) > MaxImageBytes {
		return nil, "", invalid("image must be at most 10 MiB")
	}

	contentType := http.DetectContentType(data)
	if contentType != "image/jpeg" && contentType != "image/png" {
		return nil, "", invalid("image must be a JPEG or PNG")
	}
	return data, contentType, nil
}

func (s *Server) archiveImage(ctx context.Context, userID string, data []byte, contentType string) {
	ctx, cancel := context.WithTimeout(ctx, archiveTimeout)
	defer cancel()

	log := logger.FromContext(ctx, s.logger)
	uri, err := s.config.Archive.Store(ctx, userID, data, contentType)
	if err != nil {
		log.Warn("failed to archive disease image", "error", err)
		return
	}
	log.Debug("disease image archived", "uri", uri)
}

type smsRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleSendSMS(w http.ResponseWriter, r *http.Request, _ httprouter.Params, c *caller) {
	if s.config.SMS == nil || !s.config.SMS.Configured() {
		RespondWithJSON(w, http.StatusOK, envelope{
			"success":    false,
			"configured": false,
			"message":    "SMS notifications are not configured",
		})
		return
	}

	var in smsRequest
	if err := decode(w, r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	msg := strings.TrimSpace(in.Message)
	if msg == "" {
		s.fail(w, r, invalid("message is required"))
		return
	}

	profile, err := s.config.Users.ProfileByUser(r.Context(), c.ID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		s.fail(w, r, err)
		return
	}
	if profile == nil || profile.Phone == "" {
		s.fail(w, r, invalid("add a phone number to your profile first"))
		return
	}

	id, err := s.config.SMS.Send(r.Context(), profile.Phone, msg)
	if err != nil {
		logger.FromContext(r.Context(), s.logger).Error("failed to send SMS", "error", err)
		RespondWithError(w, http.StatusInternalServerError, "failed to send SMS")
		return
	}
	ok(w, http.StatusOK, envelope{"configured": true, "message_id": id})
}
