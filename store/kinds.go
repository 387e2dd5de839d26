package store

// Job kinds enqueued by the store and consumed by legal and enrich.
const (
	KindRequestSignatures     = "split_sheet.request_signatures"
	KindRequestContract       = "artist.request_contract"
	KindLoadSplitSheetSpotify = "split_sheet.load_spotify"
	KindLoadTrackSpotifyID    = "track.load_spotify_id"
)

type SplitSheetJob struct {
	SplitSheetID uint `json:"split_sheet_id"`
}

type ArtistJob struct {
	ArtistID uint `json:"artist_id"`
}

type TrackJob struct {
	TrackID uint `json:"track_id"`
}
