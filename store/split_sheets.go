package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/acrylic/rights/jobs"
	"github.com/acrylic/rights/models"
	"gorm.io/gorm"
)

func preloadSheet(db *gorm.DB) *gorm.DB {
	return db.Preload("Track").
		Preload("MasterSplits", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("PublishingSplits", func(db *gorm.DB) *gorm.DB { return db.Order("id") })
}

// CreateSplitSheet stores a new split sheet with its splits for artist.
func (s *Store) CreateSplitSheet(ctx context.Context, artist *models.Artist, in SplitSheetInput) (*models.SplitSheet, error) {
	if err := validateStruct("", in); err != nil {
		return nil, err
	}
	if err := validateSplits("master_splits", in.MasterSplits); err != nil {
		return nil, err
	}
	if err := validateSplits("publishing_splits", in.PublishingSplits); err != nil {
		return nil, err
	}
	in.ISRC = strings.ToUpper(strings.TrimSpace(in.ISRC))
	if in.ISRC != "" {
		if err := models.ValidateISRC(in.ISRC); err != nil {
			return nil, err
		}
	}

	sheet := &models.SplitSheet{
		ArtistID:        artist.ID,
		ISRC:            in.ISRC,
		TrackName:       strings.TrimSpace(in.TrackName),
		TrackCoverImage: in.TrackCoverImage,
		Status:          models.StatusCreated,
	}
	for i, m := range in.MasterSplits {
		role, err := masterRole(fmt.Sprintf("master_splits[%d].role", i), m.Role)
		if err != nil {
			return nil, err
		}
		sheet.MasterSplits = append(sheet.MasterSplits, models.MasterSplit{Split: m.split(), Role: role})
	}
	for i, p := range in.PublishingSplits {
		role, err := publishingRole(fmt.Sprintf("publishing_splits[%d].role", i), p.Role)
		if err != nil {
			return nil, err
		}
		sheet.PublishingSplits = append(sheet.PublishingSplits, models.PublishingSplit{
			Split:   p.split(),
			Role:    role,
			PROName: strings.TrimSpace(p.PROName),
			IPI:     p.IPI,
		})
	}

	err := s.tx(ctx, func(tx *gorm.DB) error {
		if in.Track != "" {
			track, err := linkableTrack(tx, artist.ID, in.Track)
			if err != nil {
				return err
			}
			sheet.TrackID = &track.ID
		}
		if err := models.ValidateSplitTotals(sheet.MasterSplits, sheet.PublishingSplits); err != nil {
			return err
		}
		if err := tx.Create(sheet).Error; err != nil {
			return fmt.Errorf("create split sheet: %w", err)
		}
		if sheet.TrackID == nil && sheet.ISRC != "" {
			return jobs.Enqueue(tx, KindLoadSplitSheetSpotify, SplitSheetJob{SplitSheetID: sheet.ID})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.SplitSheet(ctx, sheet.ID)
}

// linkableTrack loads the track with the given uuid and checks that artist
// owns it and that no other split sheet claims it.
func linkableTrack(tx *gorm.DB, artistID uint, trackUUID string) (*models.Track, error) {
	var track models.Track
	if err := tx.Where("uuid = ?", trackUUID).First(&track).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &models.ValidationError{Field: "track", Message: "track does not exist"}
		}
		return nil, err
	}
	if track.ArtistID != artistID {
		return nil, &models.ValidationError{Field: "track", Message: "track does not belong to this artist"}
	}
	var n int64
	if err := tx.Model(&models.SplitSheet{}).Where("track_id = ?", track.ID).Count(&n).Error; err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, fmt.Errorf("%w: track already has a split sheet", ErrConflict)
	}
	return &track, nil
}

// UpdateSplitSheet applies patch to the artist's split sheet. The percent
// totals are checked against the resulting set before commit.
func (s *Store) UpdateSplitSheet(ctx context.Context, artistID uint, uuid string, patch SplitSheetPatch) (*models.SplitSheet, error) {
	if err := validateStruct("", patch); err != nil {
		return nil, err
	}
	if patch.MasterSplits != nil {
		if err := validateSplits("master_splits", *patch.MasterSplits); err != nil {
			return nil, err
		}
	}
	if patch.PublishingSplits != nil {
		if err := validateSplits("publishing_splits", *patch.PublishingSplits); err != nil {
			return nil, err
		}
	}

	var id uint
	err := s.tx(ctx, func(tx *gorm.DB) error {
		var sheet models.SplitSheet
		if err := tx.Where("uuid = ? AND artist_id = ?", uuid, artistID).First(&sheet).Error; err != nil {
			return notFound(err)
		}
		if sheet.Status == models.StatusSigned {
			return fmt.Errorf("%w: signed split sheets cannot be changed", ErrConflict)
		}
		id = sheet.ID

		updates := map[string]any{}
		if patch.TrackName != nil {
			updates["track_name"] = strings.TrimSpace(*patch.TrackName)
		}
		if patch.TrackCoverImage != nil {
			updates["track_cover_image"] = *patch.TrackCoverImage
		}
		if len(updates) > 0 {
			if err := tx.Model(&sheet).Updates(updates).Error; err != nil {
				return fmt.Errorf("update split sheet: %w", err)
			}
		}

		if patch.MasterSplits != nil {
			if err := syncMasterSplits(tx, sheet.ID, *patch.MasterSplits); err != nil {
				return err
			}
		}
		if patch.PublishingSplits != nil {
			if err := syncPublishingSplits(tx, sheet.ID, *patch.PublishingSplits); err != nil {
				return err
			}
		}

		var master []models.MasterSplit
		var publishing []models.PublishingSplit
		if err := tx.Where("split_sheet_id = ?", sheet.ID).Find(&master).Error; err != nil {
			return err
		}
		if err := tx.Where("split_sheet_id = ?", sheet.ID).Find(&publishing).Error; err != nil {
			return err
		}
		return models.ValidateSplitTotals(master, publishing)
	})
	if err != nil {
		return nil, err
	}
	return s.SplitSheet(ctx, id)
}

func syncMasterSplits(tx *gorm.DB, sheetID uint, in []SplitInput) error {
	var existing []models.MasterSplit
	if err := tx.Where("split_sheet_id = ?", sheetID).Find(&existing).Error; err != nil {
		return err
	}
	byUUID := make(map[string]*models.MasterSplit, len(existing))
	for i := range existing {
		byUUID[existing[i].UUID] = &existing[i]
	}

	keep := make(map[string]bool, len(in))
	for i, item := range in {
		field := fmt.Sprintf("master_splits[%d]", i)
		role, err := masterRole(field+".role", item.Role)
		if err != nil {
			return err
		}
		if item.UUID == "" {
			split := models.MasterSplit{SplitSheetID: sheetID, Split: item.split(), Role: role}
			if err := tx.Create(&split).Error; err != nil {
				return fmt.Errorf("create master split: %w", err)
			}
			continue
		}
		current, ok := byUUID[item.UUID]
		if !ok {
			return &models.ValidationError{Field: field + ".uuid", Message: "split does not belong to this split sheet"}
		}
		keep[item.UUID] = true
		split := item.split()
		err = tx.Model(current).Updates(map[string]any{
			"name":    split.Name,
			"email":   split.Email,
			"percent": split.Percent,
			"role":    role,
		}).Error
		if err != nil {
			return fmt.Errorf("update master split: %w", err)
		}
	}

	for _, e := range existing {
		if keep[e.UUID] {
			continue
		}
		if err := tx.Delete(&models.MasterSplit{}, e.ID).Error; err != nil {
			return fmt.Errorf("delete master split: %w", err)
		}
	}
	return nil
}

func syncPublishingSplits(tx *gorm.DB, sheetID uint, in []SplitInput) error {
	var existing []models.PublishingSplit
	if err := tx.Where("split_sheet_id = ?", sheetID).Find(&existing).Error; err != nil {
		return err
	}
	byUUID := make(map[string]*models.PublishingSplit, len(existing))
	for i := range existing {
		byUUID[existing[i].UUID] = &existing[i]
	}

	keep := make(map[string]bool, len(in))
	for i, item := range in {
		field := fmt.Sprintf("publishing_splits[%d]", i)
		role, err := publishingRole(field+".role", item.Role)
		if err != nil {
			return err
		}
		if item.UUID == "" {
			split := models.PublishingSplit{
				SplitSheetID: sheetID,
				Split:        item.split(),
				Role:         role,
				PROName:      strings.TrimSpace(item.PROName),
				IPI:          item.IPI,
			}
			if err := tx.Create(&split).Error; err != nil {
				return fmt.Errorf("create publishing split: %w", err)
			}
			continue
		}
		current, ok := byUUID[item.UUID]
		if !ok {
			return &models.ValidationError{Field: field + ".uuid", Message: "split does not belong to this split sheet"}
		}
		keep[item.UUID] = true
		split := item.split()
		err = tx.Model(current).Updates(map[string]any{
			"name":     split.Name,
			"email":    split.Email,
			"percent":  split.Percent,
			"role":     role,
			"pro_name": strings.TrimSpace(item.PROName),
			"ipi":      item.IPI,
		}).Error
		if err != nil {
			return fmt.Errorf("update publishing split: %w", err)
		}
	}

	for _, e := range existing {
		if keep[e.UUID] {
			continue
		}
		if err := tx.Delete(&models.PublishingSplit{}, e.ID).Error; err != nil {
			return fmt.Errorf("delete publishing split: %w", err)
		}
	}
	return nil
}

// SplitSheet loads a split sheet by primary key with its track and splits.
func (s *Store) SplitSheet(ctx context.Context, id uint) (*models.SplitSheet, error) {
	var sheet models.SplitSheet
	if err := preloadSheet(s.db.WithContext(ctx)).First(&sheet, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &sheet, nil
}

func (s *Store) SplitSheetByUUID(ctx context.Context, uuid string) (*models.SplitSheet, error) {
	var sheet models.SplitSheet
	if err := preloadSheet(s.db.WithContext(ctx)).Where("uuid = ?", uuid).First(&sheet).Error; err != nil {
		return nil, notFound(err)
	}
	return &sheet, nil
}

// ArtistSplitSheet loads a split sheet by uuid, scoped to artistID.
func (s *Store) ArtistSplitSheet(ctx context.Context, artistID uint, uuid string) (*models.SplitSheet, error) {
	var sheet models.SplitSheet
	err := preloadSheet(s.db.WithContext(ctx)).
		Where("uuid = ? AND artist_id = ?", uuid, artistID).
		First(&sheet).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &sheet, nil
}

type ListOptions struct {
	ISRC     string
	IsSigned *bool
	Search   string
	Ordering string
	Page     int
	PageSize int
}

const (
	DefaultPageSize = 25
	MaxPageSize     = 100
)

var orderings = map[string]string{
	"created":  "split_sheets.created ASC, split_sheets.id ASC",
	"-created": "split_sheets.created DESC, split_sheets.id DESC",
	"updated":  "split_sheets.updated ASC, split_sheets.id ASC",
	"-updated": "split_sheets.updated DESC, split_sheets.id DESC",
}

// Normalize applies the default page and clamps the page size.
func (o *ListOptions) Normalize() {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.PageSize < 1 {
		o.PageSize = DefaultPageSize
	}
	if o.PageSize > MaxPageSize {
		o.PageSize = MaxPageSize
	}
}

// ListSplitSheets returns one page of the artist's split sheets and the
// total number of matches.
func (s *Store) ListSplitSheets(ctx context.Context, artistID uint, opts ListOptions) ([]models.SplitSheet, int64, error) {
	order, ok := orderings[opts.Ordering]
	if opts.Ordering == "" {
		order, ok = orderings["-created"], true
	}
	if !ok {
		return nil, 0, &models.ValidationError{Field: "ordering", Message: fmt.Sprintf("%q is not a valid ordering", opts.Ordering)}
	}
	opts.Normalize()

	q := s.db.WithContext(ctx).Model(&models.SplitSheet{}).
		Joins("LEFT JOIN tracks ON tracks.id = split_sheets.track_id").
		Where("split_sheets.artist_id = ?", artistID)
	if opts.ISRC != "" {
		q = q.Where("LOWER(split_sheets.isrc) LIKE ?", "%"+strings.ToLower(opts.ISRC)+"%")
	}
	if opts.IsSigned != nil {
		if *opts.IsSigned {
			q = q.Where("split_sheets.signed IS NOT NULL")
		} else {
			q = q.Where("split_sheets.signed IS NULL")
		}
	}
	if term := strings.TrimSpace(opts.Search); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		q = q.Where(
			"LOWER(split_sheets.isrc) LIKE ? OR LOWER(split_sheets.track_name) LIKE ? OR LOWER(tracks.name) LIKE ? OR tracks.uuid = ?",
			like, like, like, term,
		)
	}

	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count split sheets: %w", err)
	}

	var sheets []models.SplitSheet
	err := preloadSheet(q).
		Select("split_sheets.*").
		Order(order).
		Offset((opts.Page - 1) * opts.PageSize).
		Limit(opts.PageSize).
		Find(&sheets).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list split sheets: %w", err)
	}
	return sheets, total, nil
}

// RecentSplitSheets lists split sheets across all artists, newest first.
func (s *Store) RecentSplitSheets(ctx context.Context, status models.SplitSheetStatus, limit int) ([]models.SplitSheet, error) {
	q := s.db.WithContext(ctx).Preload("Track").Preload("Artist").Order("created DESC, id DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var sheets []models.SplitSheet
	if err := q.Find(&sheets).Error; err != nil {
		return nil, err
	}
	return sheets, nil
}

// PendingSplitSheets returns sheets awaiting signatures at a provider.
func (s *Store) PendingSplitSheets(ctx context.Context, limit int) ([]models.SplitSheet, error) {
	q := s.db.WithContext(ctx).
		Preload("Track").
		Where("status = ? AND signature_request_id <> ''", models.StatusPending).
		Order("id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var sheets []models.SplitSheet
	if err := q.Find(&sheets).Error; err != nil {
		return nil, err
	}
	return sheets, nil
}

// EnqueueSignatureRequest schedules a signature request for the sheet.
func (s *Store) EnqueueSignatureRequest(ctx context.Context, sheetID uint) error {
	return jobs.Enqueue(s.db.WithContext(ctx), KindRequestSignatures, SplitSheetJob{SplitSheetID: sheetID})
}

// FillSplitSheetTrackInfo sets the track name and cover image where they are
// still empty.
func (s *Store) FillSplitSheetTrackInfo(ctx context.Context, id uint, name, cover string) error {
	return s.tx(ctx, func(tx *gorm.DB) error {
		if name != "" {
			err := tx.Model(&models.SplitSheet{}).
				Where("id = ? AND (track_name = '' OR track_name IS NULL)", id).
				Update("track_name", name).Error
			if err != nil {
				return err
			}
		}
		if cover != "" {
			err := tx.Model(&models.SplitSheet{}).
				Where("id = ? AND (track_cover_image = '' OR track_cover_image IS NULL)", id).
				Update("track_cover_image", cover).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}
