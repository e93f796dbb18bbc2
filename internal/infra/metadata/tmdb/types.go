package tmdb

import (
	"strconv"
	"strings"

	"stream-resolver/internal/domain"
)

// FindResponse is the payload of GET /find/{external_id}.
type FindResponse struct {
	MovieResults []MovieResult `json:"movie_results"`
	TVResults    []TVResult    `json:"tv_results"`
}

// MovieResult is a movie entry as returned by the find and movie endpoints.
type MovieResult struct {
	ID            int    `json:"id"`
	Title         string `json:"title"`
	OriginalTitle string `json:"original_title"`
	ReleaseDate   string `json:"release_date"`
}

// ToDomain converts a MovieResult to domain.Metadata.
func (m MovieResult) ToDomain() *domain.Metadata {
	return &domain.Metadata{
		Title:         m.Title,
		OriginalTitle: m.OriginalTitle,
		Year:          yearOf(m.ReleaseDate),
	}
}

// TVResult is a series entry as returned by the find and tv endpoints.
type TVResult struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	OriginalName string `json:"original_name"`
	FirstAirDate string `json:"first_air_date"`
}

// ToDomain converts a TVResult to domain.Metadata.
func (t TVResult) ToDomain() *domain.Metadata {
	return &domain.Metadata{
		Title:         t.Name,
		OriginalTitle: t.OriginalName,
		Year:          yearOf(t.FirstAirDate),
	}
}

// yearOf extracts the year of a "YYYY-MM-DD" date, 0 if missing.
func yearOf(date string) int {
	if len(date) < 4 {
		return 0
	}
	y, err := strconv.Atoi(strings.TrimSpace(date[:4]))
	if err != nil {
		return 0
	}

	return y
}
