package models

type Track struct {
	Base
	ISRC          string  `json:"isrc" gorm:"size:12;index"`
	ArtistID      uint    `json:"-" gorm:"index"`
	Artist        *Artist `json:"artist,omitempty"`
	Name          string  `json:"title" gorm:"size:250"`
	ImageURL      string  `json:"image_uri"`
	Popularity    int     `json:"popularity"`
	SpotifyID     string  `json:"spotify_id" gorm:"size:30;index"`
	ChartmetricID string  `json:"chartmetric_id" gorm:"size:30"`
}

type Artist struct {
	Base
	UserID        *uint   `json:"-" gorm:"uniqueIndex"`
	User          *User   `json:"-"`
	Name          string  `json:"name" gorm:"size:250;index"`
	Slug          string  `json:"slug" gorm:"size:100"`
	ImageURL      string  `json:"image_uri"`
	SpotifyURL    string  `json:"spotify_url"`
	SpotifyID     string  `json:"spotify_id" gorm:"size:30;index"`
	ChartmetricID string  `json:"chartmetric_id" gorm:"size:30"`
	HubspotID     string  `json:"hubspot_id" gorm:"size:30"`
	Tracks        []Track `json:"-" gorm:"foreignKey:ArtistID"`
}
