package handlers

import (
	"net/http"

	"github.com/acrylic/rights/models"
	"github.com/acrylic/rights/store"
	"github.com/gin-gonic/gin"
)

type TrackResponse struct {
	UUID       string `json:"uuid"`
	ISRC       string `json:"isrc"`
	ImageURI   string `json:"image_uri"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Popularity int    `json:"popularity"`
	SpotifyID  string `json:"spotify_id"`
}

func newTrackResponse(track *models.Track) TrackResponse {
	resp := TrackResponse{
		UUID:       track.UUID,
		ISRC:       track.ISRC,
		ImageURI:   track.ImageURL,
		Title:      track.Name,
		Popularity: track.Popularity,
		SpotifyID:  track.SpotifyID,
	}
	if track.Artist != nil {
		resp.Artist = track.Artist.Name
	}
	return resp
}

// CreateTrack godoc
// @Summary Add a catalog track
// @Description Stores a track for the current artist and schedules its Spotify lookup.
// @Tags tracks
// @Accept json
// @Produce json
// @Success 201 {object} TrackResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /my-artist/tracks/ [post]
func (h *Handler) CreateTrack(c *gin.Context) {
	var in store.TrackInput
	if err := c.ShouldBindJSON(&in); err != nil {
		invalidJSON(c, err)
		return
	}
	artist := currentArtist(c)
	track, err := h.store.CreateTrack(c.Request.Context(), artist, in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	track.Artist = artist
	c.JSON(http.StatusCreated, newTrackResponse(track))
}

// GetByISRC godoc
// @Summary Get track details by ISRC
// @Tags tracks
// @Produce json
// @Param isrc path string true "ISRC code of the track"
// @Success 200 {object} TrackResponse
// @Failure 404 {object} ErrorResponse
// @Router /tracks/{isrc} [get]
func (h *Handler) GetByISRC(c *gin.Context) {
	track, err := h.store.TrackByISRC(c.Request.Context(), c.Param("isrc"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newTrackResponse(track))
}

// GetByArtistName godoc
// @Summary Get tracks by artist name
// @Description Matches artist names containing the given text, ignoring case.
// @Tags tracks
// @Produce json
// @Param artist path string true "Artist name to search for"
// @Success 200 {array} TrackResponse
// @Failure 500 {object} ErrorResponse
// @Router /tracks-by-artist/{artist} [get]
func (h *Handler) GetByArtistName(c *gin.Context) {
	tracks, err := h.store.TracksByArtistName(c.Request.Context(), c.Param("artist"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	response := make([]TrackResponse, 0, len(tracks))
	for i := range tracks {
		response = append(response, newTrackResponse(&tracks[i]))
	}
	c.JSON(http.StatusOK, response)
}
