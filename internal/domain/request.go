// Package domain contains the core entities and pure resolution logic.
// This package has no external dependencies (only stdlib).
package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Kind represents the kind of content being resolved.
type Kind string

const (
	KindMovie  Kind = "movie"
	KindSeries Kind = "series"
)

var (
	// ErrInvalidContentID is returned when a content id does not match its kind.
	ErrInvalidContentID = errors.New("invalid content id")

	// ErrUnknownKind is returned for kinds other than movie and series.
	ErrUnknownKind = errors.New("unknown content kind")
)

// ParseKind converts a raw string into a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindMovie:
		return KindMovie, nil
	case KindSeries:
		return KindSeries, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// ContentRequest identifies the content to resolve.
// Season and Episode are set if and only if Kind is KindSeries.
type ContentRequest struct {
	ContentID   string // raw id as received, e.g. "tt0111161:1:2"
	CanonicalID string // id without season/episode suffix
	Kind        Kind
	Season      int
	Episode     int
}

// ParseContentRequest builds a ContentRequest from a kind and a raw content id.
//
// Movies:  "<id>"
// Series:  "<id>:<season>:<episode>" with positive decimal season/episode
func ParseContentRequest(kind Kind, contentID string) (ContentRequest, error) {
	contentID = strings.TrimSpace(contentID)
	if contentID == "" {
		return ContentRequest{}, fmt.Errorf("%w: empty", ErrInvalidContentID)
	}

	switch kind {
	case KindMovie:
		return ContentRequest{
			ContentID:   contentID,
			CanonicalID: contentID,
			Kind:        KindMovie,
		}, nil
	case KindSeries:
		parts := strings.Split(contentID, ":")
		if len(parts) != 3 || parts[0] == "" {
			return ContentRequest{}, fmt.Errorf("%w: %q is not <id>:<season>:<episode>", ErrInvalidContentID, contentID)
		}
		season, err := positiveInt(parts[1])
		if err != nil {
			return ContentRequest{}, fmt.Errorf("%w: season %q", ErrInvalidContentID, parts[1])
		}
		episode, err := positiveInt(parts[2])
		if err != nil {
			return ContentRequest{}, fmt.Errorf("%w: episode %q", ErrInvalidContentID, parts[2])
		}

		return ContentRequest{
			ContentID:   contentID,
			CanonicalID: parts[0],
			Kind:        KindSeries,
			Season:      season,
			Episode:     episode,
		}, nil
	default:
		return ContentRequest{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// IsSeries returns true if the request targets an episode.
func (r ContentRequest) IsSeries() bool {
	return r.Kind == KindSeries
}

// CacheKey returns the kind-qualified cache key for this request.
func (r ContentRequest) CacheKey() string {
	return string(r.Kind) + ":" + r.ContentID
}

func positiveInt(s string) (int, error) {
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("not a decimal: %q", s)
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, fmt.Errorf("not positive: %d", n)
	}

	return n, nil
}
