package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/acrylic/rights/models"
	"github.com/acrylic/rights/store"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type splitResponse struct {
	UUID    string     `json:"uuid"`
	Name    string     `json:"name"`
	Email   string     `json:"email"`
	Percent string     `json:"percent"`
	Role    string     `json:"role"`
	Signed  *time.Time `json:"signed"`
	PROName string     `json:"pro_name,omitempty"`
	IPI     *uint64    `json:"ipi,omitempty"`
}

type splitSheetResponse struct {
	UUID               string          `json:"uuid"`
	Track              *string         `json:"track"`
	ISRC               string          `json:"isrc"`
	TrackName          string          `json:"track_name"`
	TrackCoverImage    string          `json:"track_cover_image"`
	Status             string          `json:"status"`
	SignatureRequestID string          `json:"signature_request_id"`
	Signed             *time.Time      `json:"signed"`
	LastError          string          `json:"last_error"`
	LastErrorAt        *time.Time      `json:"last_error_at"`
	MasterSplits       []splitResponse `json:"master_splits"`
	PublishingSplits   []splitResponse `json:"publishing_splits"`
	Created            time.Time       `json:"created"`
	Updated            time.Time       `json:"updated"`
}

func percent(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func newSplitSheetResponse(s *models.SplitSheet) splitSheetResponse {
	resp := splitSheetResponse{
		UUID:               s.UUID,
		ISRC:               s.EffectiveISRC(),
		TrackName:          s.DisplayTrackName(),
		TrackCoverImage:    s.TrackCoverImage,
		Status:             string(s.Status),
		SignatureRequestID: s.SignatureRequestID,
		Signed:             s.Signed,
		LastError:          s.LastError,
		LastErrorAt:        s.LastErrorAt,
		MasterSplits:       make([]splitResponse, 0, len(s.MasterSplits)),
		PublishingSplits:   make([]splitResponse, 0, len(s.PublishingSplits)),
		Created:            s.Created,
		Updated:            s.Updated,
	}
	if s.Track != nil {
		resp.Track = &s.Track.UUID
		if resp.TrackCoverImage == "" {
			resp.TrackCoverImage = s.Track.ImageURL
		}
	}
	for _, m := range s.MasterSplits {
		resp.MasterSplits = append(resp.MasterSplits, splitResponse{
			UUID: m.UUID, Name: m.Name, Email: m.Email, Percent: percent(m.Percent), Role: string(m.Role), Signed: m.Signed,
		})
	}
	for _, p := range s.PublishingSplits {
		resp.PublishingSplits = append(resp.PublishingSplits, splitResponse{
			UUID: p.UUID, Name: p.Name, Email: p.Email, Percent: percent(p.Percent), Role: string(p.Role), Signed: p.Signed,
			PROName: p.PROName, IPI: p.IPI,
		})
	}
	return resp
}

func queryInt(c *gin.Context, key string) (int, bool) {
	v := c.Query(key)
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		writeError(c, http.StatusBadRequest, "validation_error", "A positive integer is required.", gin.H{key: v})
		return 0, false
	}
	return n, true
}

// ListSplitSheets handles GET /my-artist/split-sheets/.
func (h *Handler) ListSplitSheets(c *gin.Context) {
	artist := currentArtist(c)
	opts := store.ListOptions{
		ISRC:     c.Query("isrc"),
		Search:   c.Query("search"),
		Ordering: c.Query("ordering"),
	}
	var ok bool
	if opts.Page, ok = queryInt(c, "page"); !ok {
		return
	}
	if opts.PageSize, ok = queryInt(c, "page_size"); !ok {
		return
	}
	if v := c.Query("is_signed"); v != "" {
		signed, err := strconv.ParseBool(v)
		if err != nil {
			writeError(c, http.StatusBadRequest, "validation_error", "is_signed must be true or false.", gin.H{"is_signed": v})
			return
		}
		opts.IsSigned = &signed
	}

	opts.Normalize()
	sheets, total, err := h.store.ListSplitSheets(c.Request.Context(), artist.ID, opts)
	if err != nil {
		h.respondError(c, err)
		return
	}
	results := make([]splitSheetResponse, 0, len(sheets))
	for i := range sheets {
		results = append(results, newSplitSheetResponse(&sheets[i]))
	}
	c.JSON(http.StatusOK, gin.H{
		"count":     total,
		"page":      opts.Page,
		"page_size": opts.PageSize,
		"results":   results,
	})
}

// CreateSplitSheet handles POST /my-artist/split-sheets/.
func (h *Handler) CreateSplitSheet(c *gin.Context) {
	var in store.SplitSheetInput
	if err := c.ShouldBindJSON(&in); err != nil {
		invalidJSON(c, err)
		return
	}
	sheet, err := h.store.CreateSplitSheet(c.Request.Context(), currentArtist(c), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newSplitSheetResponse(sheet))
}

// GetSplitSheet handles GET /my-artist/split-sheets/:uuid/.
func (h *Handler) GetSplitSheet(c *gin.Context) {
	sheet, err := h.store.ArtistSplitSheet(c.Request.Context(), currentArtist(c).ID, c.Param("uuid"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newSplitSheetResponse(sheet))
}

// UpdateSplitSheet handles PUT and PATCH /my-artist/split-sheets/:uuid/.
func (h *Handler) UpdateSplitSheet(c *gin.Context) {
	var patch store.SplitSheetPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		invalidJSON(c, err)
		return
	}
	sheet, err := h.store.UpdateSplitSheet(c.Request.Context(), currentArtist(c).ID, c.Param("uuid"), patch)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newSplitSheetResponse(sheet))
}

// RequestSignatures handles POST /my-artist/split-sheets/:uuid/request-signatures/.
// The request itself runs as a background job.
func (h *Handler) RequestSignatures(c *gin.Context) {
	ctx := c.Request.Context()
	sheet, err := h.store.ArtistSplitSheet(ctx, currentArtist(c).ID, c.Param("uuid"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.store.EnqueueSignatureRequest(ctx, sheet.ID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"detail": "Split sheet signatures requested."})
}
