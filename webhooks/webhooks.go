// Package webhooks receives signature provider callbacks. Every event is
// authenticated before any record is touched.
package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/acrylic/rights/events"
	"github.com/acrylic/rights/hellosign"
	"github.com/acrylic/rights/models"
	"github.com/acrylic/rights/signwell"
	"github.com/acrylic/rights/store"
	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
)

const maxBodyBytes = 5 << 20

type Store interface {
	ResolveSignatureRequest(ctx context.Context, provider, requestID string) (*models.SignatureRequest, error)
	SplitSheet(ctx context.Context, id uint) (*models.SplitSheet, error)
	MarkSplitSheetSigned(ctx context.Context, id uint, at time.Time) (bool, error)
	MarkSplitSheetExpired(ctx context.Context, id uint, requestID string) (bool, error)
	SignDocument(ctx context.Context, id uint, at time.Time) (*models.Document, bool, error)
}

type SignWellVerifier interface {
	VerifyWebhookSignature(eventType, eventTimestamp, providedHash string) bool
}

type HelloSignVerifier interface {
	Verify(eventTime, eventType, eventHash string) bool
}

type Handler struct {
	store     Store
	signwell  SignWellVerifier
	hellosign HelloSignVerifier
	publisher events.Publisher
	log       *log.Logger
	now       func() time.Time
}

func New(s Store, sw SignWellVerifier, hs HelloSignVerifier, pub events.Publisher, l *log.Logger) *Handler {
	if pub == nil {
		pub = events.Noop{}
	}
	return &Handler{
		store:     s,
		signwell:  sw,
		hellosign: hs,
		publisher: pub,
		log:       l.WithPrefix("webhooks"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Routes mounts the webhook endpoints. Only POST is routed; the engine
// answers other methods with 405 when HandleMethodNotAllowed is set.
func (h *Handler) Routes(r gin.IRouter) {
	g := r.Group("/legal/webhooks")
	g.POST("/signwell/", h.SignWell)
	g.POST("/hellosign/", h.HelloSign)
}

func success(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func badRequest(c *gin.Context) {
	c.JSON(http.StatusBadRequest, gin.H{"status": "bad request"})
}

func serverError(c *gin.Context) {
	c.JSON(http.StatusInternalServerError, gin.H{"status": "error"})
}

func readBody(c *gin.Context) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
}

// rawString accepts a JSON string or number and returns its text.
func rawString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

type signwellPayload struct {
	Event struct {
		Type string          `json:"type"`
		Time json.RawMessage `json:"time"`
		Hash string          `json:"hash"`
	} `json:"event"`
	Data struct {
		Object struct {
			ID string `json:"id"`
		} `json:"object"`
	} `json:"data"`
}

// SignWell handles POST /legal/webhooks/signwell/.
func (h *Handler) SignWell(c *gin.Context) {
	body, err := readBody(c)
	if err != nil {
		h.log.Warn("failed to read signwell webhook", "err", err)
		badRequest(c)
		return
	}
	var p signwellPayload
	if err := json.Unmarshal(body, &p); err != nil {
		h.log.Warn("malformed signwell webhook", "err", err)
		badRequest(c)
		return
	}
	if !h.signwell.VerifyWebhookSignature(p.Event.Type, rawString(p.Event.Time), p.Event.Hash) {
		h.log.Warn("rejected signwell webhook with invalid signature", "type", p.Event.Type, "ip", c.ClientIP())
		badRequest(c)
		return
	}

	l := h.log.With("provider", signwell.Provider, "type", p.Event.Type, "request_id", p.Data.Object.ID)
	ctx := c.Request.Context()
	switch p.Event.Type {
	case "document_completed":
		err = h.completed(ctx, l, signwell.Provider, p.Data.Object.ID, h.now())
	case "document_expired":
		err = h.expired(ctx, l, signwell.Provider, p.Data.Object.ID)
	default:
		l.Debug("ignoring event")
	}
	if err != nil {
		l.Error("failed to apply webhook", "err", err)
		serverError(c)
		return
	}
	success(c)
}

type hellosignSignature struct {
	SignedAt json.RawMessage `json:"signed_at"`
}

type hellosignPayload struct {
	// Event is either the event type or an object carrying type, time and
	// hash.
	Event              json.RawMessage `json:"event"`
	EventTime          json.RawMessage `json:"event_time"`
	EventHash          string          `json:"event_hash"`
	SignatureRequestID string          `json:"signature_request_id"`
	SignatureRequest   struct {
		SignatureRequestID string               `json:"signature_request_id"`
		Signatures         []hellosignSignature `json:"signatures"`
	} `json:"signature_request"`
}

type hellosignEvent struct {
	EventType string          `json:"event_type"`
	EventTime json.RawMessage `json:"event_time"`
	EventHash string          `json:"event_hash"`
}

func (p hellosignPayload) fields() (eventType, eventTime, eventHash string) {
	var ev hellosignEvent
	if err := json.Unmarshal(p.Event, &ev); err == nil {
		return ev.EventType, rawString(ev.EventTime), ev.EventHash
	}
	return rawString(p.Event), rawString(p.EventTime), p.EventHash
}

func (p hellosignPayload) requestID() string {
	if p.SignatureRequestID != "" {
		return p.SignatureRequestID
	}
	return p.SignatureRequest.SignatureRequestID
}

// signedAt returns the last non-empty signed_at, in unix seconds.
func (p hellosignPayload) signedAt() (time.Time, bool) {
	var at time.Time
	var ok bool
	for _, s := range p.SignatureRequest.Signatures {
		v := rawString(s.SignedAt)
		if v == "" {
			continue
		}
		sec, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		at, ok = time.Unix(sec, 0).UTC(), true
	}
	return at, ok
}

// HelloSign handles POST /legal/webhooks/hellosign/.
func (h *Handler) HelloSign(c *gin.Context) {
	body, err := readBody(c)
	if err != nil {
		h.log.Warn("failed to read hellosign webhook", "err", err)
		badRequest(c)
		return
	}
	var p hellosignPayload
	if err := json.Unmarshal(body, &p); err != nil {
		h.log.Warn("malformed hellosign webhook", "err", err)
		badRequest(c)
		return
	}
	eventType, eventTime, eventHash := p.fields()
	if !h.hellosign.Verify(eventTime, eventType, eventHash) {
		h.log.Warn("rejected hellosign webhook with invalid hash", "type", eventType, "ip", c.ClientIP())
		badRequest(c)
		return
	}

	l := h.log.With("provider", hellosign.Provider, "type", eventType, "request_id", p.requestID())
	switch eventType {
	case "signature_request_signed", "signature_request_all_signed":
		at, ok := p.signedAt()
		if !ok {
			l.Info("no signing time in event")
			break
		}
		if err := h.completed(c.Request.Context(), l, hellosign.Provider, p.requestID(), at); err != nil {
			l.Error("failed to apply webhook", "err", err)
			serverError(c)
			return
		}
	default:
		l.Debug("ignoring event")
	}
	success(c)
}

func (h *Handler) completed(ctx context.Context, l *log.Logger, provider, requestID string, at time.Time) error {
	ref, err := h.store.ResolveSignatureRequest(ctx, provider, requestID)
	if errors.Is(err, store.ErrNotFound) {
		l.Warn("no record for signature request")
		return nil
	}
	if err != nil {
		return err
	}

	switch ref.Kind {
	case models.KindDocument:
		doc, signed, err := h.store.SignDocument(ctx, ref.EntityID, at)
		if err != nil {
			return err
		}
		if !signed {
			l.Info("document already signed", "document", doc.UUID)
			return nil
		}
		l.Info("document signed", "document", doc.UUID)
		h.publisher.Publish(ctx, events.DocumentSigned, doc.UUID, events.DocumentData{
			UUID:   doc.UUID,
			Type:   string(doc.Type),
			Signed: doc.Signed,
		})
	case models.KindSplitSheet:
		ok, err := h.store.MarkSplitSheetSigned(ctx, ref.EntityID, at)
		if err != nil {
			return err
		}
		if !ok {
			l.Info("split sheet not pending, signature ignored", "split_sheet", ref.EntityID)
			return nil
		}
		h.publishSheet(ctx, l, events.SplitSheetSigned, ref.EntityID)
	}
	return nil
}

func (h *Handler) expired(ctx context.Context, l *log.Logger, provider, requestID string) error {
	ref, err := h.store.ResolveSignatureRequest(ctx, provider, requestID)
	if errors.Is(err, store.ErrNotFound) {
		l.Warn("no record for signature request")
		return nil
	}
	if err != nil {
		return err
	}
	if ref.Kind != models.KindSplitSheet {
		return nil
	}
	ok, err := h.store.MarkSplitSheetExpired(ctx, ref.EntityID, requestID)
	if err != nil {
		return err
	}
	if !ok {
		l.Info("split sheet not pending on this request, expiry ignored", "split_sheet", ref.EntityID)
		return nil
	}
	h.publishSheet(ctx, l, events.SplitSheetExpired, ref.EntityID)
	return nil
}

func (h *Handler) publishSheet(ctx context.Context, l *log.Logger, eventType string, id uint) {
	sheet, err := h.store.SplitSheet(ctx, id)
	if err != nil {
		l.Warn("failed to load split sheet for event", "split_sheet", id, "err", err)
		return
	}
	l.Info("split sheet updated", "split_sheet", sheet.UUID, "status", sheet.Status)
	h.publisher.Publish(ctx, eventType, sheet.UUID, events.SplitSheetData{
		UUID:               sheet.UUID,
		ISRC:               sheet.EffectiveISRC(),
		Status:             string(sheet.Status),
		SignatureRequestID: sheet.SignatureRequestID,
		Signed:             sheet.Signed,
	})
}
