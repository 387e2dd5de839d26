package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type SplitSheetStatus string

const (
	StatusCreated SplitSheetStatus = "CREATED"
	StatusPending SplitSheetStatus = "PENDING"
	StatusSigned  SplitSheetStatus = "SIGNED"
	StatusExpired SplitSheetStatus = "EXPIRED"
)

// Terminal reports whether no further transition is possible.
func (s SplitSheetStatus) Terminal() bool {
	return s == StatusSigned || s == StatusExpired
}

// Requestable reports whether signatures may be (re)requested.
func (s SplitSheetStatus) Requestable() bool {
	return s == StatusCreated || s == StatusPending
}

type SplitSheet struct {
	Base
	ArtistID  uint    `json:"-" gorm:"index"`
	Artist    *Artist `json:"-"`
	TrackID   *uint   `json:"-" gorm:"uniqueIndex"`
	Track     *Track  `json:"track,omitempty"`
	ISRC      string  `json:"isrc" gorm:"size:12;index"`
	TrackName string  `json:"track_name" gorm:"size:150"`
	// cover art when no catalog track is linked
	TrackCoverImage string `json:"track_cover_image"`

	Status             SplitSheetStatus `json:"status" gorm:"size:20;index"`
	SignatureRequestID string           `json:"signature_request_id" gorm:"size:50;index"`
	Signed             *time.Time       `json:"signed" gorm:"index"`
	LastError          string           `json:"last_error"`
	LastErrorAt        *time.Time       `json:"last_error_at"`

	MasterSplits     []MasterSplit     `json:"master_splits"`
	PublishingSplits []PublishingSplit `json:"publishing_splits"`
}

// DisplayTrackName returns the linked catalog track's name, falling back to
// the free-text name given at creation.
func (s SplitSheet) DisplayTrackName() string {
	if s.Track != nil {
		return s.Track.Name
	}
	return s.TrackName
}

// EffectiveISRC prefers the linked track's ISRC.
func (s SplitSheet) EffectiveISRC() string {
	if s.Track != nil && s.Track.ISRC != "" {
		return s.Track.ISRC
	}
	return s.ISRC
}

// Split holds the columns common to master and publishing shares.
type Split struct {
	Name    string          `json:"name" gorm:"size:250"`
	Email   string          `json:"email" gorm:"size:254"`
	Percent decimal.Decimal `json:"percent" gorm:"type:decimal(5,2)"`
	Signed  *time.Time      `json:"signed"`
}

type MasterRole string

const (
	MasterRoleArtist   MasterRole = "artist"
	MasterRoleProducer MasterRole = "producer"
	MasterRoleLabel    MasterRole = "label"
	MasterRoleOther    MasterRole = "other"
)

type MasterSplit struct {
	Base
	Split
	SplitSheetID uint       `json:"-" gorm:"index"`
	Role         MasterRole `json:"role" gorm:"size:20"`
}

type PublishingRole string

const (
	PublishingRoleSongwriter PublishingRole = "songwriter"
	PublishingRoleComposer   PublishingRole = "composer"
	PublishingRoleProducer   PublishingRole = "producer"
	PublishingRoleLyricist   PublishingRole = "lyricist"
	PublishingRoleRemixer    PublishingRole = "remixer"
	PublishingRoleOther      PublishingRole = "other"
)

type PublishingSplit struct {
	Base
	Split
	SplitSheetID uint           `json:"-" gorm:"index"`
	Role         PublishingRole `json:"role" gorm:"size:20"`
	PROName      string         `json:"pro_name" gorm:"column:pro_name;size:200"`
	IPI          *uint64        `json:"ipi" gorm:"column:ipi"`
}
