// Package dto provides Data Transfer Objects for HTTP requests and responses.
package dto

import "stream-resolver/internal/domain"

// StreamRequest represents the path parameters of a stream lookup.
type StreamRequest struct {
	Type string `params:"type" json:"type" validate:"required,content_kind"`
	ID   string `params:"id" json:"id" validate:"required,max=200"`
}

// ToContentRequest converts StreamRequest to a domain.ContentRequest.
// Series ids must carry the season and episode suffix.
func (r *StreamRequest) ToContentRequest() (domain.ContentRequest, error) {
	kind, err := domain.ParseKind(r.Type)
	if err != nil {
		return domain.ContentRequest{}, err
	}

	return domain.ParseContentRequest(kind, r.ID)
}
