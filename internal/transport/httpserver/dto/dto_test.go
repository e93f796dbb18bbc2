package dto

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stream-resolver/internal/app/service"
	"stream-resolver/internal/domain"
	"stream-resolver/internal/validator"
)

func TestStreamRequest_ToContentRequest(t *testing.T) {
	tests := []struct {
		name    string
		req     StreamRequest
		want    domain.ContentRequest
		wantErr error
	}{
		{
			name: "movie",
			req:  StreamRequest{Type: "movie", ID: "tt0111161"},
			want: domain.ContentRequest{ContentID: "tt0111161", CanonicalID: "tt0111161", Kind: domain.KindMovie},
		},
		{
			name: "series",
			req:  StreamRequest{Type: "series", ID: "tt0903747:2:5"},
			want: domain.ContentRequest{
				ContentID: "tt0903747:2:5", CanonicalID: "tt0903747",
				Kind: domain.KindSeries, Season: 2, Episode: 5,
			},
		},
		{
			name:    "series missing episode",
			req:     StreamRequest{Type: "series", ID: "tt0903747:2"},
			wantErr: domain.ErrInvalidContentID,
		},
		{
			name:    "unknown kind",
			req:     StreamRequest{Type: "anime", ID: "x"},
			wantErr: domain.ErrUnknownKind,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.req.ToContentRequest()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStreamRequest_Validation(t *testing.T) {
	v := validator.New()

	assert.NoError(t, v.Validate(&StreamRequest{Type: "movie", ID: "tt1"}))
	assert.Error(t, v.Validate(&StreamRequest{Type: "tv", ID: "tt1"}))
	assert.Error(t, v.Validate(&StreamRequest{Type: "movie"}))
}

func TestFromResolvedStreams_NeverNil(t *testing.T) {
	resp := FromResolvedStreams(nil)

	assert.NotNil(t, resp.Streams)
	assert.Empty(t, resp.Streams)
}

func TestFromResolvedStream_CopiesQuality(t *testing.T) {
	hi := domain.QualityVariant{URL: "https://cdn.test/1080.m3u8", Label: "1080p", Height: 1080, Bandwidth: 5000000}
	s := domain.ResolvedStream{
		ProviderName: "vidsrc",
		StreamURL:    "https://cdn.test/master.m3u8",
		QualityInfo: &domain.ManifestInfo{
			Variants: []domain.QualityVariant{{URL: "https://cdn.test/480.m3u8", Label: "480p", Height: 480}, hi},
			Highest:  &hi,
		},
	}

	got := FromResolvedStream(s)

	require.NotNil(t, got.QualityInfo)
	assert.Len(t, got.QualityInfo.Variants, 2)
	assert.Equal(t, "1080p", got.QualityInfo.Highest.Label)
	assert.Equal(t, 5000000, got.QualityInfo.Highest.Bandwidth)
}

func TestFromProviderResults_Summary(t *testing.T) {
	results := []service.ProviderResult{
		{Provider: "vidsrc", Count: 2, Duration: time.Second},
		{Provider: "4khdhub", Error: errors.New("timeout")},
	}

	got := FromProviderResults(nil, results)

	assert.Equal(t, DiagnoseSummary{TotalStreams: 2, ProvidersOK: 1, ProvidersFail: 1}, got.Summary)
	assert.Equal(t, "1s", got.Results[0].Duration)
	assert.Equal(t, "timeout", got.Results[1].Error)
}
