package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/acrylic/rights/models"
	"github.com/acrylic/rights/store"
	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	requestIDKey = "request_id"
	artistKey    = "artist"

	RequestIDHeader = "X-Request-ID"
	// ArtistHeader carries the authenticated artist's uuid, set by the
	// upstream gateway.
	ArtistHeader = "X-Artist-ID"
)

func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > 64 {
			id = "req_" + uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func requestLogger(c *gin.Context, l *log.Logger) *log.Logger {
	return l.With("request_id", c.GetString(requestIDKey))
}

// Logger logs one line per request once it has been served.
func Logger(l *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		logger := requestLogger(c, l)
		args := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency", time.Since(start).Round(time.Microsecond),
		}
		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("request", args...)
		case status >= http.StatusBadRequest:
			logger.Warn("request", args...)
		default:
			logger.Info("request", args...)
		}
	}
}

func Recovery(l *log.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, err any) {
		requestLogger(c, l).Error("panic serving request", "err", err)
		writeError(c, http.StatusInternalServerError, "internal_error", "Internal server error.", nil)
	})
}

type ArtistLookup interface {
	ArtistByUUID(ctx context.Context, uuid string) (*models.Artist, error)
}

// RequireArtist resolves the acting artist from ArtistHeader.
func RequireArtist(s ArtistLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(ArtistHeader)
		if id == "" {
			writeError(c, http.StatusUnauthorized, "not_authenticated", "Authentication credentials were not provided.", nil)
			return
		}
		artist, err := s.ArtistByUUID(c.Request.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			writeError(c, http.StatusForbidden, "permission_denied", "You do not have permission to perform this action.", nil)
			return
		}
		if err != nil {
			writeError(c, http.StatusInternalServerError, "internal_error", "Internal server error.", nil)
			return
		}
		c.Set(artistKey, artist)
		c.Next()
	}
}

func currentArtist(c *gin.Context) *models.Artist {
	return c.MustGet(artistKey).(*models.Artist)
}
