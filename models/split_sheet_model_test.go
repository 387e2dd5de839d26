package models

import "testing"

func TestSplitSheetDisplayTrackName(t *testing.T) {
	t.Run("Without Track", func(t *testing.T) {
		s := SplitSheet{TrackName: "Late Night Drive"}
		if got := s.DisplayTrackName(); got != "Late Night Drive" {
			t.Errorf("expected free-text name, got %q", got)
		}
	})

	t.Run("With Track", func(t *testing.T) {
		s := SplitSheet{
			TrackName: "ignored",
			Track:     &Track{Name: "Catalog Name", ISRC: "USEE10001993"},
			ISRC:      "GBAYE0601498",
		}
		if got := s.DisplayTrackName(); got != "Catalog Name" {
			t.Errorf("expected track name, got %q", got)
		}
		if got := s.EffectiveISRC(); got != "USEE10001993" {
			t.Errorf("expected track ISRC, got %q", got)
		}
	})

	t.Run("ISRC Fallback", func(t *testing.T) {
		s := SplitSheet{ISRC: "GBAYE0601498"}
		if got := s.EffectiveISRC(); got != "GBAYE0601498" {
			t.Errorf("expected sheet ISRC, got %q", got)
		}
	})
}

func TestUserFullName(t *testing.T) {
	if got := (User{FirstName: "Ana", LastName: "Ruiz"}).FullName(); got != "Ana Ruiz" {
		t.Errorf("got %q", got)
	}
	if got := (User{FirstName: "Ana"}).FullName(); got != "Ana" {
		t.Errorf("got %q", got)
	}
}
