package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/acrylic/rights/models"
	"gorm.io/gorm"
)

var requestableStatuses = []models.SplitSheetStatus{models.StatusCreated, models.StatusPending}

// MarkSplitSheetPending records a provider request id and moves the sheet to
// PENDING. It reports false when the sheet has meanwhile reached a terminal
// status, in which case nothing is written.
func (s *Store) MarkSplitSheetPending(ctx context.Context, id uint, provider, requestID string) (bool, error) {
	var updated bool
	err := s.tx(ctx, func(tx *gorm.DB) error {
		res := tx.Model(&models.SplitSheet{}).
			Where("id = ? AND status IN ?", id, requestableStatuses).
			Updates(map[string]any{
				"status":               models.StatusPending,
				"signature_request_id": requestID,
				"last_error":           "",
				"last_error_at":        nil,
			})
		if res.Error != nil {
			return fmt.Errorf("mark split sheet pending: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}
		updated = true
		return indexRequest(tx, provider, requestID, models.KindSplitSheet, id)
	})
	return updated, err
}

func indexRequest(tx *gorm.DB, provider, requestID string, kind models.EntityKind, entityID uint) error {
	row := models.SignatureRequest{
		Provider:  provider,
		RequestID: requestID,
		Kind:      kind,
		EntityID:  entityID,
	}
	if err := tx.Create(&row).Error; err != nil {
		return fmt.Errorf("index signature request %s: %w", requestID, err)
	}
	return nil
}

// RecordSplitSheetFailure stores the last provider or rendering failure on
// the sheet without touching its status.
func (s *Store) RecordSplitSheetFailure(ctx context.Context, id uint, msg string, at time.Time) error {
	at = at.UTC()
	return s.db.WithContext(ctx).Model(&models.SplitSheet{}).
		Where("id = ?", id).
		Updates(map[string]any{"last_error": msg, "last_error_at": &at}).Error
}

// MarkSplitSheetSigned moves a pending sheet to SIGNED. The first recorded
// signing time wins; later deliveries report false.
func (s *Store) MarkSplitSheetSigned(ctx context.Context, id uint, at time.Time) (bool, error) {
	at = at.UTC()
	res := s.db.WithContext(ctx).Model(&models.SplitSheet{}).
		Where("id = ? AND signed IS NULL AND status = ?", id, models.StatusPending).
		Updates(map[string]any{"status": models.StatusSigned, "signed": &at})
	if res.Error != nil {
		return false, fmt.Errorf("mark split sheet signed: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// MarkSplitSheetExpired expires a pending sheet, but only while requestID is
// still its current request. Expiry of a superseded request reports false.
func (s *Store) MarkSplitSheetExpired(ctx context.Context, id uint, requestID string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.SplitSheet{}).
		Where("id = ? AND status = ? AND signature_request_id = ?", id, models.StatusPending, requestID).
		Update("status", models.StatusExpired)
	if res.Error != nil {
		return false, fmt.Errorf("mark split sheet expired: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ResolveSignatureRequest finds the record a provider request id was issued
// for. Records requested before the index existed are found through their
// signature_request_id column, documents first.
func (s *Store) ResolveSignatureRequest(ctx context.Context, provider, requestID string) (*models.SignatureRequest, error) {
	if requestID == "" {
		return nil, ErrNotFound
	}
	db := s.db.WithContext(ctx)

	var row models.SignatureRequest
	err := db.Where("provider = ? AND request_id = ?", provider, requestID).First(&row).Error
	if err == nil {
		return &row, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var doc models.Document
	err = db.Select("id").Where("signature_request_id = ?", requestID).First(&doc).Error
	if err == nil {
		return &models.SignatureRequest{Provider: provider, RequestID: requestID, Kind: models.KindDocument, EntityID: doc.ID}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var sheet models.SplitSheet
	err = db.Select("id").Where("signature_request_id = ?", requestID).First(&sheet).Error
	if err == nil {
		return &models.SignatureRequest{Provider: provider, RequestID: requestID, Kind: models.KindSplitSheet, EntityID: sheet.ID}, nil
	}
	return nil, notFound(err)
}

// ContractDocument returns the user's outstanding contract document,
// creating it when none exists yet.
func (s *Store) ContractDocument(ctx context.Context, userID uint, name string) (*models.Document, error) {
	var doc models.Document
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND type = ? AND signed IS NULL", userID, models.DocumentContract).
		Order("id DESC").
		First(&doc).Error
	if err == nil {
		return &doc, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	doc = models.Document{UserID: userID, Name: name, Type: models.DocumentContract}
	if err := s.db.WithContext(ctx).Create(&doc).Error; err != nil {
		return nil, fmt.Errorf("create contract document: %w", err)
	}
	return &doc, nil
}

func (s *Store) MarkDocumentRequested(ctx context.Context, id uint, provider, requestID string) error {
	return s.tx(ctx, func(tx *gorm.DB) error {
		res := tx.Model(&models.Document{}).
			Where("id = ? AND signed IS NULL", id).
			Update("signature_request_id", requestID)
		if res.Error != nil {
			return fmt.Errorf("mark document requested: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return indexRequest(tx, provider, requestID, models.KindDocument, id)
	})
}

// SignDocument records the document's signing time and copies it onto the
// owner's account as the contract signing time. Only the first call for a
// document has an effect.
func (s *Store) SignDocument(ctx context.Context, id uint, at time.Time) (*models.Document, bool, error) {
	at = at.UTC()
	var doc models.Document
	var signed bool
	err := s.tx(ctx, func(tx *gorm.DB) error {
		if err := tx.First(&doc, id).Error; err != nil {
			return notFound(err)
		}
		res := tx.Model(&models.Document{}).
			Where("id = ? AND signed IS NULL", id).
			Update("signed", &at)
		if res.Error != nil {
			return fmt.Errorf("sign document: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}
		signed = true
		doc.Signed = &at
		err := tx.Model(&models.Account{}).
			Where("user_id = ?", doc.UserID).
			Update("contract_signed", &at).Error
		if err != nil {
			return fmt.Errorf("update account contract: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &doc, signed, nil
}
