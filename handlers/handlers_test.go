package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/acrylic/rights/config"
	"github.com/acrylic/rights/models"
	"github.com/acrylic/rights/store"
	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fixture struct {
	store  *store.Store
	router *gin.Engine
	artist *models.Artist
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := config.OpenDB(config.DatabaseConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "rights.db")}, nil)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := config.Migrate(db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	s := store.New(db)
	artist, err := s.OnboardArtist(context.Background(), store.OnboardInput{
		Email:      "mara@example.com",
		FirstName:  "Mara",
		ArtistName: "Mara Vale",
	})
	if err != nil {
		t.Fatalf("onboard artist: %v", err)
	}
	return &fixture{store: s, router: SetupRouter(s, log.New(io.Discard)), artist: artist}
}

func (f *fixture) do(t *testing.T, method, path string, body any, artist bool) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if artist {
		req.Header.Set(ArtistHeader, f.artist.UUID)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func sheetBody() gin.H {
	return gin.H{
		"isrc":       "usrc17607839",
		"track_name": "Night Drive",
		"master_splits": []gin.H{
			{"name": "Mara Vale", "email": "mara@example.com", "percent": "60"},
			{"name": "Jon Reyes", "email": "jon@example.com", "percent": "40", "role": "producer"},
		},
		"publishing_splits": []gin.H{
			{"name": "Mara Vale", "email": "mara@example.com", "percent": "100", "pro_name": "ASCAP"},
		},
	}
}

func TestHealth(t *testing.T) {
	f := setup(t)
	w := f.do(t, http.MethodGet, "/healthz", nil, false)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Header().Get(RequestIDHeader) == "" {
		t.Error("expected a request id header")
	}
}

func TestAuthentication(t *testing.T) {
	f := setup(t)

	t.Run("Missing Header", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/my-artist/split-sheets/", nil, false)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", w.Code)
		}
		resp := decode[ErrorResponse](t, w)
		if resp.Error.Code != "not_authenticated" || resp.RequestID == "" {
			t.Errorf("unexpected error body %+v", resp)
		}
	})

	t.Run("Unknown Artist", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/my-artist/split-sheets/", nil)
		req.Header.Set(ArtistHeader, "6a0c1c9e-0000-4000-8000-000000000000")
		w := httptest.NewRecorder()
		f.router.ServeHTTP(w, req)
		if w.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", w.Code)
		}
	})
}

func TestSplitSheetEndpoints(t *testing.T) {
	f := setup(t)

	w := f.do(t, http.MethodPost, "/my-artist/split-sheets/", sheetBody(), true)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	created := decode[splitSheetResponse](t, w)
	if created.Status != "CREATED" || created.ISRC != "USRC17607839" {
		t.Errorf("unexpected sheet %+v", created)
	}
	if len(created.MasterSplits) != 2 || created.MasterSplits[0].Percent != "60.00" {
		t.Fatalf("unexpected master splits %+v", created.MasterSplits)
	}
	if created.MasterSplits[0].Role != "artist" || created.PublishingSplits[0].Role != "songwriter" {
		t.Errorf("expected default roles, got %q and %q", created.MasterSplits[0].Role, created.PublishingSplits[0].Role)
	}

	t.Run("Retrieve", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/my-artist/split-sheets/"+created.UUID+"/", nil, true)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		if got := decode[splitSheetResponse](t, w); got.UUID != created.UUID {
			t.Errorf("expected %s, got %s", created.UUID, got.UUID)
		}
	})

	t.Run("Retrieve Unknown", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/my-artist/split-sheets/6a0c1c9e-0000-4000-8000-000000000000/", nil, true)
		if w.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", w.Code)
		}
	})

	t.Run("Totals Over 100", func(t *testing.T) {
		body := sheetBody()
		body["isrc"] = "USRC17607840"
		body["master_splits"] = []gin.H{
			{"name": "A", "email": "a@example.com", "percent": "70"},
			{"name": "B", "email": "b@example.com", "percent": "40"},
		}
		w := f.do(t, http.MethodPost, "/my-artist/split-sheets/", body, true)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", w.Code)
		}
		resp := decode[ErrorResponse](t, w)
		if resp.Error.Code != "validation_error" {
			t.Errorf("unexpected code %q", resp.Error.Code)
		}
	})

	t.Run("Invalid JSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/my-artist/split-sheets/", bytes.NewBufferString("{"))
		req.Header.Set(ArtistHeader, f.artist.UUID)
		w := httptest.NewRecorder()
		f.router.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", w.Code)
		}
	})

	t.Run("Patch Track Name", func(t *testing.T) {
		w := f.do(t, http.MethodPatch, "/my-artist/split-sheets/"+created.UUID+"/", gin.H{"track_name": "Night Drive (Edit)"}, true)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
		got := decode[splitSheetResponse](t, w)
		if got.TrackName != "Night Drive (Edit)" || len(got.MasterSplits) != 2 {
			t.Errorf("unexpected sheet after patch %+v", got)
		}
	})

	t.Run("List", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/my-artist/split-sheets/?is_signed=false&search=night", nil, true)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		var resp struct {
			Count    int64                `json:"count"`
			Page     int                  `json:"page"`
			PageSize int                  `json:"page_size"`
			Results  []splitSheetResponse `json:"results"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.Count != 1 || len(resp.Results) != 1 || resp.Page != 1 || resp.PageSize != store.DefaultPageSize {
			t.Errorf("unexpected page %+v", resp)
		}
	})

	t.Run("List Bad Params", func(t *testing.T) {
		for _, q := range []string{"?page=zero", "?page_size=-1", "?is_signed=maybe", "?ordering=name"} {
			w := f.do(t, http.MethodGet, "/my-artist/split-sheets/"+q, nil, true)
			if w.Code != http.StatusBadRequest {
				t.Errorf("%s: expected 400, got %d", q, w.Code)
			}
		}
	})

	t.Run("Request Signatures", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/my-artist/split-sheets/"+created.UUID+"/request-signatures/", nil, true)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		var n int64
		f.store.DB().Table("jobs").Where("kind = ?", store.KindRequestSignatures).Count(&n)
		if n != 1 {
			t.Errorf("expected one signature job, got %d", n)
		}
	})

	t.Run("Signed Sheet Is Read Only", func(t *testing.T) {
		var sheet models.SplitSheet
		if err := f.store.DB().Where("uuid = ?", created.UUID).First(&sheet).Error; err != nil {
			t.Fatalf("load sheet: %v", err)
		}
		if _, err := f.store.MarkSplitSheetPending(context.Background(), sheet.ID, "signwell", "doc-1"); err != nil {
			t.Fatalf("mark pending: %v", err)
		}
		if _, err := f.store.MarkSplitSheetSigned(context.Background(), sheet.ID, sheet.Created); err != nil {
			t.Fatalf("mark signed: %v", err)
		}
		w := f.do(t, http.MethodPut, "/my-artist/split-sheets/"+created.UUID+"/", gin.H{"track_name": "Other"}, true)
		if w.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", w.Code)
		}
	})

	t.Run("Method Not Allowed", func(t *testing.T) {
		w := f.do(t, http.MethodDelete, "/my-artist/split-sheets/"+created.UUID+"/", nil, true)
		if w.Code != http.StatusMethodNotAllowed {
			t.Fatalf("expected 405, got %d", w.Code)
		}
	})
}

func TestTrackEndpoints(t *testing.T) {
	f := setup(t)

	w := f.do(t, http.MethodPost, "/my-artist/tracks/", gin.H{"isrc": "gbaym0000123", "title": "Low Tide"}, true)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	created := decode[TrackResponse](t, w)
	if created.ISRC != "GBAYM0000123" || created.Artist != "Mara Vale" {
		t.Errorf("unexpected track %+v", created)
	}

	t.Run("Duplicate", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/my-artist/tracks/", gin.H{"isrc": "GBAYM0000123"}, true)
		if w.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", w.Code)
		}
	})

	t.Run("Bad ISRC", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/my-artist/tracks/", gin.H{"isrc": "nope"}, true)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", w.Code)
		}
	})

	t.Run("By ISRC", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/tracks/gbaym0000123", nil, false)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		if got := decode[TrackResponse](t, w); got.Title != "Low Tide" {
			t.Errorf("unexpected title %q", got.Title)
		}
		if w := f.do(t, http.MethodGet, "/tracks/USXXX0000000", nil, false); w.Code != http.StatusNotFound {
			t.Errorf("expected 404 for unknown isrc, got %d", w.Code)
		}
	})

	t.Run("By Artist", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/tracks-by-artist/vale", nil, false)
		if got := decode[[]TrackResponse](t, w); len(got) != 1 {
			t.Errorf("expected 1 track, got %d", len(got))
		}
		w = f.do(t, http.MethodGet, "/tracks-by-artist/nobody", nil, false)
		if w.Body.String() != "[]" {
			t.Errorf("expected empty list, got %s", w.Body.String())
		}
	})
}
