package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/acrylic/rights/models"
)

func TestCreateSplitSheet(t *testing.T) {
	ctx := context.Background()

	t.Run("With Splits", func(t *testing.T) {
		s := newTestStore(t)
		artist := seedArtist(t, s, "ana@example.com", "Ana")

		sheet, err := s.CreateSplitSheet(ctx, artist, SplitSheetInput{
			ISRC:      "usee10001993",
			TrackName: " Late Night Drive ",
			MasterSplits: []SplitInput{
				{Name: "Ana", Email: "ana@example.com", Percent: pct("60")},
				{Name: "Label", Email: "label@example.com", Percent: pct("40"), Role: "label"},
			},
			PublishingSplits: []SplitInput{
				{Name: "Bo", Email: "bo@example.com", Percent: pct("100"), PROName: "BMI"},
			},
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if sheet.Status != models.StatusCreated || sheet.UUID == "" {
			t.Errorf("unexpected sheet %+v", sheet)
		}
		if sheet.ISRC != "USEE10001993" || sheet.TrackName != "Late Night Drive" {
			t.Errorf("expected normalized isrc and name, got %q %q", sheet.ISRC, sheet.TrackName)
		}
		if len(sheet.MasterSplits) != 2 || len(sheet.PublishingSplits) != 1 {
			t.Fatalf("expected splits to be stored, got %d/%d", len(sheet.MasterSplits), len(sheet.PublishingSplits))
		}
		if sheet.MasterSplits[0].Role != models.MasterRoleArtist || sheet.MasterSplits[1].Role != models.MasterRoleLabel {
			t.Errorf("unexpected master roles %s %s", sheet.MasterSplits[0].Role, sheet.MasterSplits[1].Role)
		}
		if sheet.PublishingSplits[0].Role != models.PublishingRoleSongwriter {
			t.Errorf("expected default songwriter role, got %s", sheet.PublishingSplits[0].Role)
		}
		if kinds := jobKinds(t, s); len(kinds) != 1 || kinds[0] != KindLoadSplitSheetSpotify {
			t.Errorf("expected spotify job enqueued, got %v", kinds)
		}
	})

	t.Run("No Splits", func(t *testing.T) {
		s := newTestStore(t)
		artist := seedArtist(t, s, "ana@example.com", "Ana")
		sheet, err := s.CreateSplitSheet(ctx, artist, SplitSheetInput{TrackName: "Demo"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(sheet.MasterSplits) != 0 || len(sheet.PublishingSplits) != 0 {
			t.Errorf("expected no splits")
		}
		if kinds := jobKinds(t, s); len(kinds) != 0 {
			t.Errorf("expected no job without isrc, got %v", kinds)
		}
	})

	t.Run("Totals Over One Hundred", func(t *testing.T) {
		s := newTestStore(t)
		artist := seedArtist(t, s, "ana@example.com", "Ana")
		_, err := s.CreateSplitSheet(ctx, artist, SplitSheetInput{
			ISRC: "USEE10001993",
			MasterSplits: []SplitInput{
				{Name: "Ana", Email: "ana@example.com", Percent: pct("60")},
				{Name: "Bo", Email: "bo@example.com", Percent: pct("40.01")},
			},
		})
		assertValidation(t, err, "master_splits")
		if n := countRows(t, s, &models.SplitSheet{}); n != 0 {
			t.Errorf("expected nothing persisted, got %d sheets", n)
		}
		if kinds := jobKinds(t, s); len(kinds) != 0 {
			t.Errorf("expected no job, got %v", kinds)
		}
	})

	t.Run("Invalid Input", func(t *testing.T) {
		s := newTestStore(t)
		artist := seedArtist(t, s, "ana@example.com", "Ana")

		_, err := s.CreateSplitSheet(ctx, artist, SplitSheetInput{ISRC: "NOT-AN-ISRC"})
		assertValidation(t, err, "isrc")

		_, err = s.CreateSplitSheet(ctx, artist, SplitSheetInput{
			MasterSplits: []SplitInput{{Name: "Ana", Email: "not-an-email", Percent: pct("10")}},
		})
		assertValidation(t, err, "master_splits[0].email")

		_, err = s.CreateSplitSheet(ctx, artist, SplitSheetInput{
			PublishingSplits: []SplitInput{{Name: "Ana", Email: "ana@example.com", Percent: pct("10"), Role: "drummer"}},
		})
		assertValidation(t, err, "publishing_splits[0].role")

		_, err = s.CreateSplitSheet(ctx, artist, SplitSheetInput{
			PublishingSplits: []SplitInput{{Name: "Ana", Email: "ana@example.com", Percent: pct("10.005")}},
		})
		assertValidation(t, err, "publishing_splits[0].percent")
	})

	t.Run("Names Must Print", func(t *testing.T) {
		s := newTestStore(t)
		artist := seedArtist(t, s, "ana@example.com", "Ana")

		_, err := s.CreateSplitSheet(ctx, artist, SplitSheetInput{TrackName: "晴天"})
		assertValidation(t, err, "track_name")

		_, err = s.CreateSplitSheet(ctx, artist, SplitSheetInput{
			MasterSplits: []SplitInput{{Name: "周杰伦", Email: "jay@example.com", Percent: pct("10")}},
		})
		assertValidation(t, err, "master_splits[0].name")

		sheet, err := s.CreateSplitSheet(ctx, artist, SplitSheetInput{
			TrackName:    "Café del Mar",
			MasterSplits: []SplitInput{{Name: "Beyoncé", Email: "b@example.com", Percent: pct("10")}},
		})
		if err != nil {
			t.Fatalf("expected accented names to be accepted, got %v", err)
		}

		name := "晴天"
		_, err = s.UpdateSplitSheet(ctx, artist.ID, sheet.UUID, SplitSheetPatch{TrackName: &name})
		assertValidation(t, err, "track_name")
	})

	t.Run("Track Ownership", func(t *testing.T) {
		s := newTestStore(t)
		ana := seedArtist(t, s, "ana@example.com", "Ana")
		bo := seedArtist(t, s, "bo@example.com", "Bo")
		track := seedTrack(t, s, bo, "USEE10001993", "Bo's Song")

		_, err := s.CreateSplitSheet(ctx, ana, SplitSheetInput{Track: track.UUID})
		assertValidation(t, err, "track")

		sheet, err := s.CreateSplitSheet(ctx, bo, SplitSheetInput{Track: track.UUID})
		if err != nil {
			t.Fatalf("expected owner to link track, got %v", err)
		}
		if sheet.Track == nil || sheet.DisplayTrackName() != "Bo's Song" || sheet.EffectiveISRC() != "USEE10001993" {
			t.Errorf("expected linked track, got %+v", sheet.Track)
		}

		_, err = s.CreateSplitSheet(ctx, bo, SplitSheetInput{Track: track.UUID})
		if !errors.Is(err, ErrConflict) {
			t.Errorf("expected ErrConflict for second sheet on track, got %v", err)
		}
	})
}

func TestUpdateSplitSheet(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*Store, *models.Artist, *models.SplitSheet) {
		s := newTestStore(t)
		artist := seedArtist(t, s, "ana@example.com", "Ana")
		sheet, err := s.CreateSplitSheet(ctx, artist, SplitSheetInput{
			TrackName: "Old",
			MasterSplits: []SplitInput{
				{Name: "Ana", Email: "ana@example.com", Percent: pct("50")},
				{Name: "Bo", Email: "bo@example.com", Percent: pct("50")},
			},
			PublishingSplits: []SplitInput{
				{Name: "Cy", Email: "cy@example.com", Percent: pct("100")},
			},
		})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		return s, artist, sheet
	}

	t.Run("Full Set Semantics", func(t *testing.T) {
		s, artist, sheet := setup(t)
		name := "New"
		master := []SplitInput{
			{UUID: sheet.MasterSplits[0].UUID, Name: "Ana R", Email: "ana@example.com", Percent: pct("70")},
			{Name: "Dee", Email: "dee@example.com", Percent: pct("30"), Role: "producer"},
		}
		got, err := s.UpdateSplitSheet(ctx, artist.ID, sheet.UUID, SplitSheetPatch{TrackName: &name, MasterSplits: &master})
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if got.TrackName != "New" {
			t.Errorf("expected track name updated, got %q", got.TrackName)
		}
		if len(got.MasterSplits) != 2 {
			t.Fatalf("expected 2 master splits, got %d", len(got.MasterSplits))
		}
		if got.MasterSplits[0].UUID != sheet.MasterSplits[0].UUID || got.MasterSplits[0].Name != "Ana R" || !got.MasterSplits[0].Percent.Equal(pct("70")) {
			t.Errorf("expected first split updated in place, got %+v", got.MasterSplits[0])
		}
		if got.MasterSplits[1].Name != "Dee" || got.MasterSplits[1].Role != models.MasterRoleProducer {
			t.Errorf("expected new split created, got %+v", got.MasterSplits[1])
		}
		if len(got.PublishingSplits) != 1 || got.PublishingSplits[0].UUID != sheet.PublishingSplits[0].UUID {
			t.Errorf("expected absent publishing list to be untouched")
		}
	})

	t.Run("Empty List Deletes All", func(t *testing.T) {
		s, artist, sheet := setup(t)
		empty := []SplitInput{}
		got, err := s.UpdateSplitSheet(ctx, artist.ID, sheet.UUID, SplitSheetPatch{PublishingSplits: &empty})
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if len(got.PublishingSplits) != 0 || len(got.MasterSplits) != 2 {
			t.Errorf("unexpected splits %d/%d", len(got.MasterSplits), len(got.PublishingSplits))
		}
	})

	t.Run("Post Write Totals Roll Back", func(t *testing.T) {
		s, artist, sheet := setup(t)
		master := []SplitInput{
			{UUID: sheet.MasterSplits[0].UUID, Name: "Ana", Email: "ana@example.com", Percent: pct("50")},
			{UUID: sheet.MasterSplits[1].UUID, Name: "Bo", Email: "bo@example.com", Percent: pct("50")},
			{Name: "Extra", Email: "extra@example.com", Percent: pct("1")},
		}
		_, err := s.UpdateSplitSheet(ctx, artist.ID, sheet.UUID, SplitSheetPatch{MasterSplits: &master})
		assertValidation(t, err, "master_splits")
		if n := countRows(t, s, &models.MasterSplit{}); n != 2 {
			t.Errorf("expected rollback to keep 2 master splits, got %d", n)
		}
	})

	t.Run("Percent Checked Before Write", func(t *testing.T) {
		for _, tc := range []struct {
			name    string
			percent string
		}{
			{"Three Decimals", "10.125"},
			{"Too Large", "1000"},
			{"Negative", "-1"},
		} {
			t.Run(tc.name, func(t *testing.T) {
				s, artist, sheet := setup(t)
				master := []SplitInput{
					{UUID: sheet.MasterSplits[0].UUID, Name: "Ana", Email: "ana@example.com", Percent: pct(tc.percent)},
				}
				_, err := s.UpdateSplitSheet(ctx, artist.ID, sheet.UUID, SplitSheetPatch{MasterSplits: &master})
				assertValidation(t, err, "master_splits[0].percent")
				got, _ := s.SplitSheet(ctx, sheet.ID)
				if len(got.MasterSplits) != 2 || !got.MasterSplits[0].Percent.Equal(pct("50")) {
					t.Errorf("expected splits untouched, got %+v", got.MasterSplits)
				}
			})
		}
	})

	t.Run("Foreign Split", func(t *testing.T) {
		s, artist, sheet := setup(t)
		master := []SplitInput{
			{UUID: sheet.PublishingSplits[0].UUID, Name: "Cy", Email: "cy@example.com", Percent: pct("10")},
		}
		_, err := s.UpdateSplitSheet(ctx, artist.ID, sheet.UUID, SplitSheetPatch{MasterSplits: &master})
		assertValidation(t, err, "master_splits[0].uuid")
	})

	t.Run("Other Artist", func(t *testing.T) {
		s, _, sheet := setup(t)
		other := seedArtist(t, s, "zed@example.com", "Zed")
		name := "Hijack"
		if _, err := s.UpdateSplitSheet(ctx, other.ID, sheet.UUID, SplitSheetPatch{TrackName: &name}); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Signed Is Locked", func(t *testing.T) {
		s, artist, sheet := setup(t)
		_, _ = s.MarkSplitSheetPending(ctx, sheet.ID, "signwell", "req-1")
		_, _ = s.MarkSplitSheetSigned(ctx, sheet.ID, time.Now())
		name := "Changed"
		if _, err := s.UpdateSplitSheet(ctx, artist.ID, sheet.UUID, SplitSheetPatch{TrackName: &name}); !errors.Is(err, ErrConflict) {
			t.Errorf("expected ErrConflict, got %v", err)
		}
	})
}

func TestListSplitSheets(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	artist := seedArtist(t, s, "ana@example.com", "Ana")
	other := seedArtist(t, s, "bo@example.com", "Bo")
	track := seedTrack(t, s, artist, "GBAYE0601498", "Catalog Anthem")

	inputs := []SplitSheetInput{
		{ISRC: "USEE10001993", TrackName: "Late Night Drive"},
		{ISRC: "USEE10001994", TrackName: "Morning Run"},
		{Track: track.UUID},
	}
	var sheets []*models.SplitSheet
	for _, in := range inputs {
		sheet, err := s.CreateSplitSheet(ctx, artist, in)
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		sheets = append(sheets, sheet)
	}
	if _, err := s.CreateSplitSheet(ctx, other, SplitSheetInput{ISRC: "USEE10001995"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, _ = s.MarkSplitSheetPending(ctx, sheets[0].ID, "signwell", "req-1")
	_, _ = s.MarkSplitSheetSigned(ctx, sheets[0].ID, time.Now())

	signed, unsigned := true, false
	tests := []struct {
		name  string
		opts  ListOptions
		total int64
		first string
	}{
		{"All For Artist", ListOptions{}, 3, sheets[2].UUID},
		{"Oldest First", ListOptions{Ordering: "created"}, 3, sheets[0].UUID},
		{"ISRC Contains", ListOptions{ISRC: "usee1000199"}, 2, sheets[1].UUID},
		{"Signed", ListOptions{IsSigned: &signed}, 1, sheets[0].UUID},
		{"Unsigned", ListOptions{IsSigned: &unsigned}, 2, sheets[2].UUID},
		{"Search Track Name", ListOptions{Search: "morning"}, 1, sheets[1].UUID},
		{"Search Linked Track", ListOptions{Search: "anthem"}, 1, sheets[2].UUID},
		{"Search Track UUID", ListOptions{Search: track.UUID}, 1, sheets[2].UUID},
		{"Second Page", ListOptions{Page: 2, PageSize: 2}, 3, sheets[0].UUID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, total, err := s.ListSplitSheets(ctx, artist.ID, tt.opts)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if total != tt.total {
				t.Errorf("expected total %d, got %d", tt.total, total)
			}
			if len(got) == 0 || got[0].UUID != tt.first {
				t.Errorf("expected first result %s, got %+v", tt.first, got)
			}
		})
	}

	t.Run("Invalid Ordering", func(t *testing.T) {
		_, _, err := s.ListSplitSheets(ctx, artist.ID, ListOptions{Ordering: "isrc; DROP TABLE"})
		assertValidation(t, err, "ordering")
	})
}

func TestFillSplitSheetTrackInfo(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	artist := seedArtist(t, s, "ana@example.com", "Ana")
	sheet, err := s.CreateSplitSheet(ctx, artist, SplitSheetInput{ISRC: "USEE10001993", TrackName: "Mine"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.FillSplitSheetTrackInfo(ctx, sheet.ID, "From Spotify", "https://i.scdn.co/image/abc"); err != nil {
		t.Fatalf("fill: %v", err)
	}
	got, _ := s.SplitSheet(ctx, sheet.ID)
	if got.TrackName != "Mine" {
		t.Errorf("expected existing name kept, got %q", got.TrackName)
	}
	if got.TrackCoverImage != "https://i.scdn.co/image/abc" {
		t.Errorf("expected cover filled, got %q", got.TrackCoverImage)
	}
}
