// Package enrich fills catalog and split sheet metadata from Spotify.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/zmb3/spotify"
	"golang.org/x/oauth2/clientcredentials"
)

var ErrNoMatch = errors.New("no spotify track matches isrc")

// Match is the metadata taken from a Spotify track.
type Match struct {
	SpotifyID       string
	Name            string
	ImageURL        string
	Popularity      int
	ArtistSpotifyID string
}

type Catalog interface {
	FindByISRC(ctx context.Context, isrc string) (*Match, error)
}

type SpotifyCatalog struct {
	client spotify.Client
}

// NewSpotifyCatalog authenticates with the client credentials flow. The
// token is refreshed by the underlying HTTP client.
func NewSpotifyCatalog(ctx context.Context, clientID, clientSecret string) *SpotifyCatalog {
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotify.TokenURL,
	}
	return &SpotifyCatalog{client: spotify.NewClient(cfg.Client(ctx))}
}

func (c *SpotifyCatalog) FindByISRC(ctx context.Context, isrc string) (*Match, error) {
	results, err := c.client.Search("isrc:"+isrc, spotify.SearchTypeTrack)
	if err != nil {
		return nil, fmt.Errorf("failed to search for track: %w", err)
	}
	if results.Tracks == nil {
		return nil, ErrNoMatch
	}
	track := pickTrack(results.Tracks.Tracks, isrc)
	if track == nil {
		return nil, ErrNoMatch
	}
	m := matchFromTrack(*track)
	return &m, nil
}

// pickTrack returns the most popular result whose ISRC equals isrc.
func pickTrack(tracks []spotify.FullTrack, isrc string) *spotify.FullTrack {
	var best *spotify.FullTrack
	for i := range tracks {
		t := &tracks[i]
		if !strings.EqualFold(t.ExternalIDs["isrc"], isrc) {
			continue
		}
		if best == nil || t.Popularity > best.Popularity {
			best = t
		}
	}
	return best
}

func matchFromTrack(t spotify.FullTrack) Match {
	m := Match{
		SpotifyID:  string(t.ID),
		Name:       t.Name,
		Popularity: t.Popularity,
	}
	if len(t.Album.Images) > 0 {
		m.ImageURL = t.Album.Images[0].URL
	}
	if len(t.Artists) > 0 {
		m.ArtistSpotifyID = string(t.Artists[0].ID)
	}
	return m
}
