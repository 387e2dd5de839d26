package events

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
)

func TestHTTPPublish(t *testing.T) {
	var mu sync.Mutex
	var headers http.Header
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		headers = r.Header.Clone()
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	p, err := New(srv.URL, "acrylic/rights", log.New(io.Discard))
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}
	p.Publish(context.Background(), SplitSheetSigned, "sheet-uuid", SplitSheetData{UUID: "sheet-uuid", Status: "SIGNED"})

	mu.Lock()
	defer mu.Unlock()
	if got := headers.Get("Ce-Type"); got != SplitSheetSigned {
		t.Errorf("expected ce-type %s, got %q", SplitSheetSigned, got)
	}
	if got := headers.Get("Ce-Source"); got != "acrylic/rights" {
		t.Errorf("expected ce-source, got %q", got)
	}
	if got := headers.Get("Ce-Subject"); got != "sheet-uuid" {
		t.Errorf("expected ce-subject, got %q", got)
	}
	var data SplitSheetData
	if err := json.Unmarshal(body, &data); err != nil {
		t.Fatalf("decode body %s: %v", body, err)
	}
	if data.UUID != "sheet-uuid" || data.Status != "SIGNED" {
		t.Errorf("unexpected data %+v", data)
	}
}

func TestHTTPPublishUnreachableSink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	p, err := NewHTTP(url, "acrylic/rights", log.New(io.Discard))
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}
	p.Publish(context.Background(), DocumentSigned, "doc", DocumentData{UUID: "doc"})
}

func TestNewWithoutSink(t *testing.T) {
	p, err := New("", "acrylic/rights", log.New(io.Discard))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, ok := p.(Noop); !ok {
		t.Errorf("expected Noop publisher, got %T", p)
	}
}
