package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/acrylic/rights/jobs"
	"github.com/acrylic/rights/models"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"
)

func (s *Store) ArtistByUUID(ctx context.Context, uuid string) (*models.Artist, error) {
	var artist models.Artist
	if err := s.db.WithContext(ctx).Where("uuid = ?", uuid).First(&artist).Error; err != nil {
		return nil, notFound(err)
	}
	return &artist, nil
}

// ArtistWithAccount loads an artist together with its user and account.
func (s *Store) ArtistWithAccount(ctx context.Context, id uint) (*models.Artist, error) {
	var artist models.Artist
	if err := s.db.WithContext(ctx).Preload("User.Account").First(&artist, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &artist, nil
}

// OnboardArtist creates the user, account and artist for a new signing and
// schedules the representation contract.
func (s *Store) OnboardArtist(ctx context.Context, in OnboardInput) (*models.Artist, error) {
	if err := validateStruct("", in); err != nil {
		return nil, err
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))

	var artist models.Artist
	err := s.tx(ctx, func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.User{}).Where("email = ?", email).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: a user with email %s already exists", ErrConflict, email)
		}

		user := models.User{
			Email:     email,
			FirstName: strings.TrimSpace(in.FirstName),
			LastName:  strings.TrimSpace(in.LastName),
			Account:   &models.Account{},
		}
		if err := tx.Create(&user).Error; err != nil {
			return fmt.Errorf("create user: %w", err)
		}

		name := strings.TrimSpace(in.ArtistName)
		artist = models.Artist{
			UserID:     &user.ID,
			Name:       name,
			Slug:       Slugify(name),
			SpotifyURL: in.SpotifyURL,
			SpotifyID:  spotifyIDFromURL(in.SpotifyURL),
		}
		if err := tx.Create(&artist).Error; err != nil {
			return fmt.Errorf("create artist: %w", err)
		}
		return jobs.Enqueue(tx, KindRequestContract, ArtistJob{ArtistID: artist.ID})
	})
	if err != nil {
		return nil, err
	}
	return &artist, nil
}

// Slugify lowercases s, strips accents and joins the remaining words with
// hyphens.
func Slugify(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	plain, _, err := transform.String(t, s)
	if err != nil {
		plain = s
	}
	plain = cases.Lower(language.Und).String(plain)

	var b strings.Builder
	dash := false
	for _, r := range plain {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	slug := strings.TrimSuffix(b.String(), "-")
	if len(slug) > 100 {
		slug = strings.TrimSuffix(slug[:100], "-")
	}
	return slug
}

// spotifyIDFromURL extracts the id from an open.spotify.com artist URL.
func spotifyIDFromURL(u string) string {
	const marker = "/artist/"
	i := strings.Index(u, marker)
	if i < 0 {
		return ""
	}
	id := u[i+len(marker):]
	if j := strings.IndexAny(id, "/?#"); j >= 0 {
		id = id[:j]
	}
	return id
}

// CreateTrack adds a catalog track for artist and schedules the Spotify id
// lookup.
func (s *Store) CreateTrack(ctx context.Context, artist *models.Artist, in TrackInput) (*models.Track, error) {
	if err := validateStruct("", in); err != nil {
		return nil, err
	}
	isrc := strings.ToUpper(strings.TrimSpace(in.ISRC))
	if err := models.ValidateISRC(isrc); err != nil {
		return nil, err
	}

	track := models.Track{ISRC: isrc, ArtistID: artist.ID, Name: strings.TrimSpace(in.Name)}
	err := s.tx(ctx, func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Track{}).Where("artist_id = ? AND isrc = ?", artist.ID, isrc).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: track %s already exists", ErrConflict, isrc)
		}
		if err := tx.Create(&track).Error; err != nil {
			return fmt.Errorf("create track: %w", err)
		}
		return jobs.Enqueue(tx, KindLoadTrackSpotifyID, TrackJob{TrackID: track.ID})
	})
	if err != nil {
		return nil, err
	}
	return &track, nil
}

func (s *Store) TrackByISRC(ctx context.Context, isrc string) (*models.Track, error) {
	var track models.Track
	err := s.db.WithContext(ctx).Preload("Artist").
		Where("isrc = ?", strings.ToUpper(isrc)).
		Order("id").
		First(&track).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &track, nil
}

func (s *Store) Track(ctx context.Context, id uint) (*models.Track, error) {
	var track models.Track
	if err := s.db.WithContext(ctx).Preload("Artist").First(&track, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &track, nil
}

// TracksByArtistName matches artist names containing name, ignoring case.
func (s *Store) TracksByArtistName(ctx context.Context, name string) ([]models.Track, error) {
	var tracks []models.Track
	err := s.db.WithContext(ctx).
		Preload("Artist").
		Joins("JOIN artists ON artists.id = tracks.artist_id").
		Where("LOWER(artists.name) LIKE ?", "%"+strings.ToLower(name)+"%").
		Order("tracks.popularity DESC, tracks.id").
		Find(&tracks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve tracks: %w", err)
	}
	return tracks, nil
}

// SpotifyTrackInfo is what enrichment learned about a track.
type SpotifyTrackInfo struct {
	SpotifyID       string
	Name            string
	ImageURL        string
	Popularity      int
	ArtistSpotifyID string
}

// FillTrackSpotify writes info onto the track and its artist. Only empty
// columns are written, so repeated runs leave earlier values in place.
func (s *Store) FillTrackSpotify(ctx context.Context, trackID uint, info SpotifyTrackInfo) error {
	return s.tx(ctx, func(tx *gorm.DB) error {
		var track models.Track
		if err := tx.First(&track, trackID).Error; err != nil {
			return notFound(err)
		}
		updates := map[string]any{}
		if track.SpotifyID == "" && info.SpotifyID != "" {
			updates["spotify_id"] = info.SpotifyID
		}
		if track.Name == "" && info.Name != "" {
			updates["name"] = info.Name
		}
		if track.ImageURL == "" && info.ImageURL != "" {
			updates["image_url"] = info.ImageURL
		}
		if track.Popularity == 0 && info.Popularity > 0 {
			updates["popularity"] = info.Popularity
		}
		if len(updates) > 0 {
			if err := tx.Model(&track).Updates(updates).Error; err != nil {
				return fmt.Errorf("update track: %w", err)
			}
		}
		if info.ArtistSpotifyID == "" {
			return nil
		}
		err := tx.Model(&models.Artist{}).
			Where("id = ? AND (spotify_id = '' OR spotify_id IS NULL)", track.ArtistID).
			Update("spotify_id", info.ArtistSpotifyID).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("update artist: %w", err)
		}
		return nil
	})
}
