package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/acrylic/rights/models"
	"github.com/acrylic/rights/store"
	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
)

type Store interface {
	ArtistLookup
	CreateSplitSheet(ctx context.Context, artist *models.Artist, in store.SplitSheetInput) (*models.SplitSheet, error)
	UpdateSplitSheet(ctx context.Context, artistID uint, uuid string, patch store.SplitSheetPatch) (*models.SplitSheet, error)
	ArtistSplitSheet(ctx context.Context, artistID uint, uuid string) (*models.SplitSheet, error)
	ListSplitSheets(ctx context.Context, artistID uint, opts store.ListOptions) ([]models.SplitSheet, int64, error)
	EnqueueSignatureRequest(ctx context.Context, sheetID uint) error
	CreateTrack(ctx context.Context, artist *models.Artist, in store.TrackInput) (*models.Track, error)
	TrackByISRC(ctx context.Context, isrc string) (*models.Track, error)
	TracksByArtistName(ctx context.Context, name string) ([]models.Track, error)
	Ping(ctx context.Context) error
}

// Mounter adds routes that live outside this package, such as the webhook
// receivers.
type Mounter interface {
	Routes(r gin.IRouter)
}

type Handler struct {
	store Store
	log   *log.Logger
}

func New(s Store, l *log.Logger) *Handler {
	return &Handler{store: s, log: l}
}

// SetupRouter builds the HTTP API. Serving it is left to the caller.
func SetupRouter(s Store, l *log.Logger, extra ...Mounter) *gin.Engine {
	h := New(s, l.WithPrefix("http"))

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(RequestID(), Logger(h.log), Recovery(h.log))
	r.NoRoute(func(c *gin.Context) {
		writeError(c, http.StatusNotFound, "not_found", "Not found.", nil)
	})
	r.NoMethod(func(c *gin.Context) {
		writeError(c, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed.", nil)
	})

	r.GET("/healthz", h.Health)
	r.GET("/tracks/:isrc", h.GetByISRC)
	r.GET("/tracks-by-artist/:artist", h.GetByArtistName)

	mine := r.Group("/my-artist", RequireArtist(s))
	mine.POST("/tracks/", h.CreateTrack)
	mine.GET("/split-sheets/", h.ListSplitSheets)
	mine.POST("/split-sheets/", h.CreateSplitSheet)
	mine.GET("/split-sheets/:uuid/", h.GetSplitSheet)
	mine.PUT("/split-sheets/:uuid/", h.UpdateSplitSheet)
	mine.PATCH("/split-sheets/:uuid/", h.UpdateSplitSheet)
	mine.POST("/split-sheets/:uuid/request-signatures/", h.RequestSignatures)

	for _, m := range extra {
		m.Routes(r)
	}
	return r
}

func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		requestLogger(c, h.log).Error("health check failed", "err", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
