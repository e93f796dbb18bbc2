package dto

import (
	"stream-resolver/internal/app/service"
	"stream-resolver/internal/domain"
)

// QualityResponse represents one manifest rendition.
type QualityResponse struct {
	URL       string `json:"url"`
	Label     string `json:"label"`
	Bandwidth int    `json:"bandwidth,omitempty"`
	Height    int    `json:"height,omitempty"`
}

// QualityInfoResponse holds manifest quality metadata.
type QualityInfoResponse struct {
	Variants []QualityResponse `json:"variants"`
	Highest  *QualityResponse  `json:"highest,omitempty"`
}

// StreamResponse represents a single resolved stream.
type StreamResponse struct {
	ProviderName string               `json:"provider_name"`
	DisplayTitle string               `json:"display_title"`
	StreamURL    string               `json:"stream_url"`
	RefererURL   string               `json:"referer_url"`
	QualityInfo  *QualityInfoResponse `json:"quality_info,omitempty"`
	ContentID    string               `json:"content_id"`
}

// StreamsResponse is the body of a stream lookup. Streams is never null.
type StreamsResponse struct {
	Streams []StreamResponse `json:"streams"`
}

// FromResolvedStream converts domain.ResolvedStream to StreamResponse.
func FromResolvedStream(s domain.ResolvedStream) StreamResponse {
	resp := StreamResponse{
		ProviderName: s.ProviderName,
		DisplayTitle: s.DisplayTitle,
		StreamURL:    s.StreamURL,
		RefererURL:   s.RefererURL,
		ContentID:    s.ContentID,
	}

	if s.QualityInfo != nil {
		info := &QualityInfoResponse{
			Variants: make([]QualityResponse, len(s.QualityInfo.Variants)),
		}
		for i, v := range s.QualityInfo.Variants {
			info.Variants[i] = fromVariant(v)
		}
		if s.QualityInfo.Highest != nil {
			highest := fromVariant(*s.QualityInfo.Highest)
			info.Highest = &highest
		}
		resp.QualityInfo = info
	}

	return resp
}

// FromResolvedStreams converts a result sequence to StreamsResponse.
func FromResolvedStreams(streams []domain.ResolvedStream) StreamsResponse {
	resp := StreamsResponse{
		Streams: make([]StreamResponse, len(streams)),
	}
	for i, s := range streams {
		resp.Streams[i] = FromResolvedStream(s)
	}

	return resp
}

func fromVariant(v domain.QualityVariant) QualityResponse {
	return QualityResponse{
		URL:       v.URL,
		Label:     v.Label,
		Bandwidth: v.Bandwidth,
		Height:    v.Height,
	}
}

// ProvidersResponse lists configured providers in declaration order.
type ProvidersResponse struct {
	Providers []string `json:"providers"`
}

// RefreshResponse represents the result of a manual cache refresh.
type RefreshResponse struct {
	Key     string           `json:"key"`
	Count   int              `json:"count"`
	Streams []StreamResponse `json:"streams"`
}

// ProviderResultResponse represents one provider's contribution to a run.
type ProviderResultResponse struct {
	Provider string `json:"provider"`
	Count    int    `json:"count"`
	Duration string `json:"duration"`
	Error    string `json:"error,omitempty"`
}

// DiagnoseResponse represents an uncached run with per-provider outcomes.
type DiagnoseResponse struct {
	Results []ProviderResultResponse `json:"results"`
	Summary DiagnoseSummary          `json:"summary"`
	Streams []StreamResponse         `json:"streams"`
}

// DiagnoseSummary holds summary of a diagnostic run.
type DiagnoseSummary struct {
	TotalStreams  int `json:"total_streams"`
	ProvidersOK   int `json:"providers_ok"`
	ProvidersFail int `json:"providers_fail"`
}

// FromProviderResults converts a ResolveAll outcome to DiagnoseResponse.
func FromProviderResults(streams []domain.ResolvedStream, results []service.ProviderResult) DiagnoseResponse {
	resp := DiagnoseResponse{
		Results: make([]ProviderResultResponse, len(results)),
		Streams: FromResolvedStreams(streams).Streams,
	}

	for i, r := range results {
		errMsg := ""
		if r.Error != nil {
			errMsg = r.Error.Error()
			resp.Summary.ProvidersFail++
		} else {
			resp.Summary.TotalStreams += r.Count
			resp.Summary.ProvidersOK++
		}

		resp.Results[i] = ProviderResultResponse{
			Provider: r.Provider,
			Count:    r.Count,
			Duration: r.Duration.String(),
			Error:    errMsg,
		}
	}

	return resp
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string      `json:"error"`
	Code    string      `json:"code,omitempty"`
	Details interface{} `json:"details,omitempty"`
}
