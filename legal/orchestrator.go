// Package legal requests signatures for split sheets and artist contracts
// and keeps their status in step with the signature provider.
package legal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/acrylic/rights/events"
	"github.com/acrylic/rights/models"
	"github.com/acrylic/rights/pdf"
	"github.com/acrylic/rights/signwell"
	"github.com/acrylic/rights/store"
	"github.com/charmbracelet/log"
)

type Provider interface {
	RequestSignatures(ctx context.Context, files []signwell.File, recipients []signwell.Recipient, subject, message string) (*signwell.Response, error)
	GetDocument(ctx context.Context, id string) (*signwell.Document, error)
}

type Renderer interface {
	RenderSplitSheet(sheet *models.SplitSheet) ([]byte, error)
	RenderContract(artist *models.Artist, user *models.User) ([]byte, error)
}

type Store interface {
	SplitSheet(ctx context.Context, id uint) (*models.SplitSheet, error)
	MarkSplitSheetPending(ctx context.Context, id uint, provider, requestID string) (bool, error)
	RecordSplitSheetFailure(ctx context.Context, id uint, msg string, at time.Time) error
	MarkSplitSheetSigned(ctx context.Context, id uint, at time.Time) (bool, error)
	MarkSplitSheetExpired(ctx context.Context, id uint, requestID string) (bool, error)
	PendingSplitSheets(ctx context.Context, limit int) ([]models.SplitSheet, error)
	ArtistWithAccount(ctx context.Context, id uint) (*models.Artist, error)
	ContractDocument(ctx context.Context, userID uint, name string) (*models.Document, error)
	MarkDocumentRequested(ctx context.Context, id uint, provider, requestID string) error
}

type Outcome int

const (
	Requested Outcome = iota
	ProviderRejected
	NetworkError
	NotFound
	Skipped
	Failed
	// Unrecorded means the provider accepted the request but it could not be
	// recorded locally. Resubmitting would send signers a second document.
	Unrecorded
)

func (o Outcome) String() string {
	switch o {
	case Requested:
		return "requested"
	case ProviderRejected:
		return "provider_rejected"
	case NetworkError:
		return "network_error"
	case NotFound:
		return "not_found"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	case Unrecorded:
		return "unrecorded"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Result describes what happened to one signature request.
type Result struct {
	Outcome    Outcome
	RequestID  string
	StatusCode int
	Err        error
}

func (r Result) String() string {
	s := r.Outcome.String()
	if r.RequestID != "" {
		s += " (request " + r.RequestID + ")"
	}
	if r.Err != nil {
		s += ": " + r.Err.Error()
	}
	return s
}

// maxErrorBody bounds how much of a provider error body is kept on a sheet.
const maxErrorBody = 500

type Orchestrator struct {
	provider  Provider
	renderer  Renderer
	store     Store
	publisher events.Publisher
	log       *log.Logger
	now       func() time.Time
}

func NewOrchestrator(p Provider, r Renderer, s Store, pub events.Publisher, l *log.Logger) *Orchestrator {
	if pub == nil {
		pub = events.Noop{}
	}
	return &Orchestrator{
		provider:  p,
		renderer:  r,
		store:     s,
		publisher: pub,
		log:       l.WithPrefix("legal"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Recipients lists every distinct signer of sheet: master splits first, then
// publishing splits. Emails are compared trimmed and case-insensitively; the
// first name seen for an email is kept.
func Recipients(sheet *models.SplitSheet) []signwell.Recipient {
	seen := make(map[string]bool)
	var out []signwell.Recipient
	add := func(s models.Split) {
		email := strings.TrimSpace(s.Email)
		key := strings.ToLower(email)
		if key == "" || seen[key] {
			return
		}
		seen[key] = true
		out = append(out, signwell.Recipient{Email: email, Name: s.Name})
	}
	for _, m := range sheet.MasterSplits {
		add(m.Split)
	}
	for _, p := range sheet.PublishingSplits {
		add(p.Split)
	}
	return out
}

// RequestSplitSheetSignatures renders the split sheet, submits it to the
// provider and moves the sheet to PENDING on success. Failures are recorded
// on the sheet and leave its status unchanged.
func (o *Orchestrator) RequestSplitSheetSignatures(ctx context.Context, id uint) Result {
	l := o.log.With("split_sheet", id)

	sheet, err := o.store.SplitSheet(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return Result{Outcome: NotFound, Err: err}
	}
	if err != nil {
		return Result{Outcome: Failed, Err: fmt.Errorf("load split sheet: %w", err)}
	}
	if !sheet.Status.Requestable() {
		l.Info("split sheet is final, not requesting signatures", "status", sheet.Status)
		return Result{Outcome: Skipped}
	}

	content, err := o.renderer.RenderSplitSheet(sheet)
	if err != nil {
		return o.fail(ctx, l, sheet.ID, Result{Outcome: Failed, Err: fmt.Errorf("render split sheet: %w", err)})
	}

	isrc := sheet.EffectiveISRC()
	subject := "Sign split sheet for track " + isrc
	message := fmt.Sprintf("Please sign the split sheet of the track with ISRC %s.\n\nBest,\nAcrylic.LA", isrc)
	files := []signwell.File{{Name: "split-sheet-" + isrc + ".pdf", Content: content}}
	recipients := Recipients(sheet)

	resp, err := o.provider.RequestSignatures(ctx, files, recipients, subject, message)
	if err != nil {
		return o.fail(ctx, l, sheet.ID, Result{Outcome: NetworkError, Err: err})
	}
	if !resp.Created() {
		return o.fail(ctx, l, sheet.ID, Result{
			Outcome:    ProviderRejected,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("provider returned %d: %s", resp.StatusCode, truncate(string(resp.Body), maxErrorBody)),
		})
	}
	requestID, err := resp.DocumentID()
	if err != nil {
		return o.fail(ctx, l, sheet.ID, Result{
			Outcome:    Unrecorded,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%w: %s", err, truncate(string(resp.Body), maxErrorBody)),
		})
	}

	ok, err := o.store.MarkSplitSheetPending(ctx, sheet.ID, signwell.Provider, requestID)
	if err != nil {
		return o.fail(ctx, l, sheet.ID, Result{
			Outcome:    Unrecorded,
			RequestID:  requestID,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("record request: %w", err),
		})
	}
	if !ok {
		l.Warn("split sheet finalized while requesting signatures", "request_id", requestID)
		return Result{Outcome: Skipped, RequestID: requestID, StatusCode: resp.StatusCode}
	}

	l.Info("signatures requested", "request_id", requestID, "recipients", len(recipients))
	o.publisher.Publish(ctx, events.SplitSheetPending, sheet.UUID, events.SplitSheetData{
		UUID:               sheet.UUID,
		ISRC:               isrc,
		Status:             string(models.StatusPending),
		SignatureRequestID: requestID,
	})
	return Result{Outcome: Requested, RequestID: requestID, StatusCode: resp.StatusCode}
}

func (o *Orchestrator) fail(ctx context.Context, l *log.Logger, id uint, r Result) Result {
	l.Error("signature request failed", "outcome", r.Outcome, "err", r.Err)
	if err := o.store.RecordSplitSheetFailure(ctx, id, r.String(), o.now()); err != nil {
		l.Error("failed to record signature failure", "err", err)
	}
	return r
}

// RequestContractSignature sends the representation agreement to the
// artist's user. Artists without a user, or whose contract is already
// signed, are skipped.
func (o *Orchestrator) RequestContractSignature(ctx context.Context, artistID uint) Result {
	l := o.log.With("artist", artistID)

	artist, err := o.store.ArtistWithAccount(ctx, artistID)
	if errors.Is(err, store.ErrNotFound) {
		return Result{Outcome: NotFound, Err: err}
	}
	if err != nil {
		return Result{Outcome: Failed, Err: fmt.Errorf("load artist: %w", err)}
	}
	if artist.User == nil {
		l.Info("artist has no user, not requesting contract")
		return Result{Outcome: Skipped}
	}
	if artist.User.Account != nil && artist.User.Account.ContractSigned != nil {
		l.Info("contract already signed")
		return Result{Outcome: Skipped}
	}

	content, err := o.renderer.RenderContract(artist, artist.User)
	if err != nil {
		return Result{Outcome: Failed, Err: fmt.Errorf("render contract: %w", err)}
	}
	doc, err := o.store.ContractDocument(ctx, artist.User.ID, pdf.ContractName)
	if err != nil {
		return Result{Outcome: Failed, Err: err}
	}

	subject := "Sign the " + pdf.ContractName
	message := fmt.Sprintf("Please sign the Acrylic.la %s.\n\nBest,\nAcrylic.LA", pdf.ContractName)
	files := []signwell.File{{Name: "artist-contract-" + artist.UUID + ".pdf", Content: content}}
	recipients := []signwell.Recipient{{Email: artist.User.Email, Name: artist.User.FullName()}}

	resp, err := o.provider.RequestSignatures(ctx, files, recipients, subject, message)
	if err != nil {
		l.Error("contract request failed", "err", err)
		return Result{Outcome: NetworkError, Err: err}
	}
	if !resp.Created() {
		err := fmt.Errorf("provider returned %d: %s", resp.StatusCode, truncate(string(resp.Body), maxErrorBody))
		l.Error("contract request rejected", "err", err)
		return Result{Outcome: ProviderRejected, StatusCode: resp.StatusCode, Err: err}
	}
	requestID, err := resp.DocumentID()
	if err != nil {
		r := Result{
			Outcome:    Unrecorded,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%w: %s", err, truncate(string(resp.Body), maxErrorBody)),
		}
		l.Error("contract request accepted without a document id", "document", doc.UUID, "err", r.Err)
		return r
	}
	if err := o.store.MarkDocumentRequested(ctx, doc.ID, signwell.Provider, requestID); err != nil {
		r := Result{Outcome: Unrecorded, RequestID: requestID, StatusCode: resp.StatusCode, Err: fmt.Errorf("record request: %w", err)}
		l.Error("contract request accepted but not recorded", "document", doc.UUID, "request_id", requestID, "err", err)
		return r
	}

	l.Info("contract signature requested", "document", doc.UUID, "request_id", requestID)
	return Result{Outcome: Requested, RequestID: requestID, StatusCode: resp.StatusCode}
}

// truncate cuts s to at most n bytes on a rune boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
