// Package events publishes split sheet and document lifecycle changes as
// CloudEvents.
package events

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
)

const (
	SplitSheetPending = "la.acrylic.split_sheet.pending"
	SplitSheetSigned  = "la.acrylic.split_sheet.signed"
	SplitSheetExpired = "la.acrylic.split_sheet.expired"
	DocumentSigned    = "la.acrylic.document.signed"
)

const sendTimeout = 5 * time.Second

// Publisher emits an event. Delivery failures are the publisher's concern
// and are never returned to callers.
type Publisher interface {
	Publish(ctx context.Context, eventType, subject string, data any)
}

type SplitSheetData struct {
	UUID               string     `json:"uuid"`
	ISRC               string     `json:"isrc,omitempty"`
	Status             string     `json:"status"`
	SignatureRequestID string     `json:"signature_request_id,omitempty"`
	Signed             *time.Time `json:"signed,omitempty"`
}

type DocumentData struct {
	UUID   string     `json:"uuid"`
	Type   string     `json:"type"`
	Signed *time.Time `json:"signed,omitempty"`
}

type Noop struct{}

func (Noop) Publish(context.Context, string, string, any) {}

// HTTP sends events in binary content mode to a single sink URL.
type HTTP struct {
	client cloudevents.Client
	sink   string
	source string
	log    *log.Logger
}

func NewHTTP(sink, source string, l *log.Logger) (*HTTP, error) {
	c, err := cloudevents.NewClientHTTP()
	if err != nil {
		return nil, fmt.Errorf("failed to create cloudevents client: %w", err)
	}
	return &HTTP{client: c, sink: sink, source: source, log: l.WithPrefix("events")}, nil
}

// New returns an HTTP publisher for sink, or Noop when sink is empty.
func New(sink, source string, l *log.Logger) (Publisher, error) {
	if sink == "" {
		return Noop{}, nil
	}
	return NewHTTP(sink, source, l)
}

func (p *HTTP) Publish(ctx context.Context, eventType, subject string, data any) {
	e := cloudevents.NewEvent()
	e.SetID(uuid.NewString())
	e.SetSource(p.source)
	e.SetType(eventType)
	e.SetSubject(subject)
	e.SetTime(time.Now().UTC())
	if err := e.SetData(cloudevents.ApplicationJSON, data); err != nil {
		p.log.Error("failed to encode event", "type", eventType, "subject", subject, "err", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sendTimeout)
	defer cancel()
	ctx = cloudevents.ContextWithTarget(ctx, p.sink)

	if result := p.client.Send(ctx, e); !cloudevents.IsACK(result) {
		p.log.Warn("event not delivered", "type", eventType, "subject", subject, "err", result)
		return
	}
	p.log.Debug("event published", "type", eventType, "subject", subject, "id", e.ID())
}
