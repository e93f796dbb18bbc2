package vidsrc

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"stream-resolver/internal/domain"
	"stream-resolver/internal/infra/provider"
)

const (
	embedBase = "https://embed.example"
	hopBase   = "https://cloud.example"
)

type fakeAnalyzer struct {
	mu   sync.Mutex
	urls []string
}

func (f *fakeAnalyzer) Analyze(_ context.Context, streamURL, _ string) *domain.ManifestInfo {
	f.mu.Lock()
	f.urls = append(f.urls, streamURL)
	f.mu.Unlock()

	v := domain.QualityVariant{URL: streamURL, Label: "1080p", Height: 1080}

	return &domain.ManifestInfo{Variants: []domain.QualityVariant{v}, Highest: &v}
}

func newTestClient(analyzer domain.ManifestAnalyzer) *Client {
	c := New(Config{
		Client: provider.ClientConfig{
			BaseURL: embedBase,
			Timeout: 2 * time.Second,
			CB: provider.CBConfig{
				MaxRequests:  1,
				Interval:     time.Minute,
				Timeout:      time.Minute,
				FailureRatio: 0.6,
			},
		},
		DefaultHopBase: "https://fallback.example",
		MaxConcurrency: 2,
		Stagger:        time.Millisecond,
	}, analyzer, zap.NewNop())
	httpmock.ActivateNonDefault(c.client.GetClient())

	return c
}

func embedHTML(iframe string, hashes ...string) string {
	html := `<html><head><title>The Shawshank Redemption</title></head><body>`
	if iframe != "" {
		html += `<iframe id="player_iframe" src="` + iframe + `"></iframe>`
	}
	html += `<div class="serversList">`
	for i, h := range hashes {
		html += `<div class="server" data-hash="` + h + `">Server ` + string(rune('A'+i)) + `</div>`
	}

	return html + `</div></body></html>`
}

func movieRequest(t *testing.T) domain.ContentRequest {
	t.Helper()
	req, err := domain.ParseContentRequest(domain.KindMovie, "tt0111161")
	require.NoError(t, err)

	return req
}

func TestResolve_OneServerTimesOut(t *testing.T) {
	defer httpmock.DeactivateAndReset()
	analyzer := &fakeAnalyzer{}
	c := newTestClient(analyzer)

	httpmock.RegisterResponder("GET", embedBase+"/embed/movie/tt0111161",
		httpmock.NewStringResponder(200, embedHTML("//cloud.example/rcp/h1", "h1", "h2")))
	httpmock.RegisterResponder("GET", hopBase+"/rcp/h1",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, embedBase+"/embed/movie/tt0111161", req.Header.Get("Referer"))
			return httpmock.NewStringResponse(200, `<script>var player = { src: '/prorcp/x' };</script>`), nil
		})
	httpmock.RegisterResponder("GET", hopBase+"/prorcp/x",
		httpmock.NewStringResponder(200, `<script>new Playerjs({ id: 'p', file: 'https://cdn.example/a/master.m3u8' });</script>`))
	httpmock.RegisterResponder("GET", hopBase+"/rcp/h2",
		httpmock.NewErrorResponder(context.DeadlineExceeded))

	streams, err := c.Resolve(context.Background(), movieRequest(t))
	require.NoError(t, err)
	require.Len(t, streams, 1)

	s := streams[0]
	assert.Equal(t, Name, s.ProviderName)
	assert.Equal(t, "https://cdn.example/a/master.m3u8", s.StreamURL)
	assert.Equal(t, hopBase+"/", s.RefererURL)
	assert.Equal(t, "tt0111161", s.ContentID)
	assert.Equal(t, "The Shawshank Redemption\nServer A 1080p", s.DisplayTitle)
	require.NotNil(t, s.QualityInfo)
	assert.Equal(t, []string{"https://cdn.example/a/master.m3u8"}, analyzer.urls)
}

func TestResolve_DirectSourceAndFallbackBase(t *testing.T) {
	defer httpmock.DeactivateAndReset()
	c := newTestClient(nil)

	httpmock.RegisterResponder("GET", embedBase+"/embed/tv/tt0903747/1-2",
		httpmock.NewStringResponder(200, embedHTML("", "h1", "h2")))
	httpmock.RegisterResponder("GET", "https://fallback.example/rcp/h1",
		httpmock.NewStringResponder(200, `src: '//media.example/v/index.m3u8'`))
	httpmock.RegisterResponder("GET", "https://fallback.example/rcp/h2",
		httpmock.NewStringResponder(200, `src: '/player/iframe.html'`))

	req, err := domain.ParseContentRequest(domain.KindSeries, "tt0903747:1:2")
	require.NoError(t, err)

	streams, err := c.Resolve(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, streams, 1)
	assert.Equal(t, "https://media.example/v/index.m3u8", streams[0].StreamURL)
	assert.Nil(t, streams[0].QualityInfo)
}

func TestResolve_KeepsServerOrder(t *testing.T) {
	defer httpmock.DeactivateAndReset()
	c := newTestClient(nil)

	httpmock.RegisterResponder("GET", embedBase+"/embed/movie/tt0111161",
		httpmock.NewStringResponder(200, embedHTML("https://cloud.example/rcp/a", "a", "b", "c")))
	for _, h := range []string{"a", "b", "c"} {
		httpmock.RegisterResponder("GET", hopBase+"/rcp/"+h,
			httpmock.NewStringResponder(200, `src: 'https://cdn.example/`+h+`.m3u8'`))
	}

	streams, err := c.Resolve(context.Background(), movieRequest(t))
	require.NoError(t, err)
	require.Len(t, streams, 3)
	for i, h := range []string{"a", "b", "c"} {
		assert.Equal(t, "https://cdn.example/"+h+".m3u8", streams[i].StreamURL)
	}
}

func TestResolve_EmbedFailureYieldsEmpty(t *testing.T) {
	defer httpmock.DeactivateAndReset()
	c := newTestClient(nil)

	httpmock.RegisterResponder("GET", embedBase+"/embed/movie/tt0111161",
		httpmock.NewStringResponder(404, "not found"))

	streams, err := c.Resolve(context.Background(), movieRequest(t))
	require.NoError(t, err)
	assert.Empty(t, streams)
}

func TestParseEmbed(t *testing.T) {
	page, err := parseEmbed(embedHTML("//cloud.example/rcp/h1", "h1", "", "h3"))
	require.NoError(t, err)

	assert.Equal(t, "The Shawshank Redemption", page.Title)
	assert.Equal(t, hopBase, page.HopBase)
	require.Len(t, page.Servers, 2)
	assert.Equal(t, "h1", page.Servers[0].OpaqueHandle)
	assert.Equal(t, "h3", page.Servers[1].OpaqueHandle)
}

func TestExtractors(t *testing.T) {
	src, ok := extractRCPSource(`foo src:   '/prorcp/abc' bar`)
	require.True(t, ok)
	assert.Equal(t, "/prorcp/abc", src)
	assert.True(t, isProrcp(src))

	_, ok = extractRCPSource(`src: ''`)
	assert.False(t, ok)

	file, ok := extractProrcpFile(`file: 'https://cdn.example/x.m3u8'`)
	require.True(t, ok)
	assert.True(t, looksPlayable(file))
	assert.False(t, looksPlayable("/relative.m3u8"))
	assert.False(t, looksPlayable("https://cdn.example/page.html"))
}
