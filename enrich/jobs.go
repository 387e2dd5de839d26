package enrich

import (
	"context"
	"errors"

	"github.com/acrylic/rights/jobs"
	"github.com/acrylic/rights/models"
	"github.com/acrylic/rights/store"
	"github.com/charmbracelet/log"
)

type Store interface {
	SplitSheet(ctx context.Context, id uint) (*models.SplitSheet, error)
	FillSplitSheetTrackInfo(ctx context.Context, id uint, name, cover string) error
	Track(ctx context.Context, id uint) (*models.Track, error)
	FillTrackSpotify(ctx context.Context, trackID uint, info store.SpotifyTrackInfo) error
}

type Registrar interface {
	Register(kind string, h jobs.Handler)
}

type Enricher struct {
	catalog Catalog
	store   Store
	log     *log.Logger
}

func New(c Catalog, s Store, l *log.Logger) *Enricher {
	return &Enricher{catalog: c, store: s, log: l.WithPrefix("enrich")}
}

func (e *Enricher) Register(r Registrar) {
	r.Register(store.KindLoadSplitSheetSpotify, e.handleSplitSheet)
	r.Register(store.KindLoadTrackSpotifyID, e.handleTrack)
}

func (e *Enricher) handleSplitSheet(ctx context.Context, payload []byte) error {
	var p store.SplitSheetJob
	if err := jobs.Bind(payload, &p); err != nil {
		return err
	}
	return e.LoadSplitSheet(ctx, p.SplitSheetID)
}

func (e *Enricher) handleTrack(ctx context.Context, payload []byte) error {
	var p store.TrackJob
	if err := jobs.Bind(payload, &p); err != nil {
		return err
	}
	return e.LoadTrack(ctx, p.TrackID)
}

// LoadSplitSheet fills a sheet's track name and cover image from Spotify
// when either is missing.
func (e *Enricher) LoadSplitSheet(ctx context.Context, id uint) error {
	l := e.log.With("split_sheet", id)
	sheet, err := e.store.SplitSheet(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		l.Warn("split sheet no longer exists")
		return nil
	}
	if err != nil {
		return err
	}
	isrc := sheet.EffectiveISRC()
	if isrc == "" || (sheet.TrackName != "" && sheet.TrackCoverImage != "") {
		return nil
	}

	m, err := e.catalog.FindByISRC(ctx, isrc)
	if errors.Is(err, ErrNoMatch) {
		l.Info("no spotify match", "isrc", isrc)
		return nil
	}
	if err != nil {
		return err
	}
	if err := e.store.FillSplitSheetTrackInfo(ctx, id, m.Name, m.ImageURL); err != nil {
		return err
	}
	l.Info("loaded spotify data", "isrc", isrc, "spotify_id", m.SpotifyID)
	return nil
}

// LoadTrack sets a catalog track's Spotify id, plus any missing metadata.
func (e *Enricher) LoadTrack(ctx context.Context, id uint) error {
	l := e.log.With("track", id)
	track, err := e.store.Track(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		l.Warn("track no longer exists")
		return nil
	}
	if err != nil {
		return err
	}
	if track.SpotifyID != "" {
		return nil
	}

	m, err := e.catalog.FindByISRC(ctx, track.ISRC)
	if errors.Is(err, ErrNoMatch) {
		l.Info("no spotify match", "isrc", track.ISRC)
		return nil
	}
	if err != nil {
		return err
	}
	err = e.store.FillTrackSpotify(ctx, id, store.SpotifyTrackInfo{
		SpotifyID:       m.SpotifyID,
		Name:            m.Name,
		ImageURL:        m.ImageURL,
		Popularity:      m.Popularity,
		ArtistSpotifyID: m.ArtistSpotifyID,
	})
	if err != nil {
		return err
	}
	l.Info("loaded spotify id", "isrc", track.ISRC, "spotify_id", m.SpotifyID)
	return nil
}
