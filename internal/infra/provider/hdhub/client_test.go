package hdhub

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"stream-resolver/internal/domain"
	"stream-resolver/internal/infra/provider"
)

const siteBase = "https://hdhub.example"

type fakeMetadata struct {
	meta *domain.Metadata
	err  error
}

func (f fakeMetadata) Lookup(context.Context, domain.ContentRequest) (*domain.Metadata, error) {
	return f.meta, f.err
}

type rejectDead struct{}

func (rejectDead) Validate(_ context.Context, rawURL string) bool {
	return !strings.Contains(rawURL, "dead")
}

func newTestClient(meta domain.MetadataLookup) *Client {
	c := New(Config{
		Client: provider.ClientConfig{
			BaseURL: siteBase,
			Timeout: 2 * time.Second,
			CB: provider.CBConfig{
				MaxRequests:  1,
				Interval:     time.Minute,
				Timeout:      time.Minute,
				FailureRatio: 0.6,
			},
		},
		MaxConcurrency: 2,
	}, meta, rejectDead{}, zap.NewNop())
	httpmock.ActivateNonDefault(c.client.GetClient())

	return c
}

func b64(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

func rot13(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return 'a' + (r-'a'+13)%26
		case r >= 'A' && r <= 'Z':
			return 'A' + (r-'A'+13)%26
		}
		return r
	}, s)
}

func redirectPage(payload string) string {
	return fmt.Sprintf(`<html><body><script>s('o','%s',180);</script></body></html>`, payload)
}

func searchPage(cards ...[3]string) string {
	html := `<div class="card-grid">`
	for _, c := range cards {
		html += fmt.Sprintf(`<a class="movie-card" href="%s"><h3 class="movie-card-title">%s</h3><p class="movie-card-meta">%s</p></a>`, c[0], c[1], c[2])
	}

	return html + `</div>`
}

func TestResolve_Movie(t *testing.T) {
	defer httpmock.DeactivateAndReset()
	c := newTestClient(fakeMetadata{meta: &domain.Metadata{Title: "Inception", Year: 2010}})

	httpmock.RegisterResponderWithQuery("GET", siteBase+"/", map[string]string{"s": "Inception"},
		httpmock.NewStringResponder(200, searchPage(
			[3]string{"/inception-bts/", "Inception Behind the Scenes", "2011"},
			[3]string{"/inception-2010/", "Inception", "2010 • Movie"},
		)))
	httpmock.RegisterResponder("GET", siteBase+"/inception-2010/",
		httpmock.NewStringResponder(200, `<span class="badge">Movie</span>
<div class="download-item"><div class="file-title">Inception.2010.2160p.WEB-DL</div>
  <a href="https://gadgets.example/?id=good">Download 2160p</a></div>
<div class="download-item"><div class="file-title">Inception 1080p</div>
  <a href="https://gadgets.example/?id=bad">Download 1080p</a></div>
<div class="download-item"><div class="file-title">Inception 720p</div>
  <a href="https://hubdrive.example/file/7">HubDrive</a></div>`))

	// Redirect pages: one valid payload, one corrupted at the rot13/base64 layer.
	record := fmt.Sprintf(`{"o":%q}`, b64("https://hubcloud.example/drive/xyz"))
	httpmock.RegisterResponderWithQuery("GET", "https://gadgets.example/", "id=good",
		httpmock.NewStringResponder(200, redirectPage(b64(b64(rot13(b64(record)))))))
	httpmock.RegisterResponderWithQuery("GET", "https://gadgets.example/", "id=bad",
		httpmock.NewStringResponder(200, redirectPage(b64(b64("!!!notbase64")))))

	httpmock.RegisterResponder("GET", "https://hubcloud.example/drive/xyz",
		httpmock.NewStringResponder(200, `<a id="download" href="/dl/xyz">Generate</a>`))
	httpmock.RegisterResponder("GET", "https://hubcloud.example/dl/xyz",
		httpmock.NewStringResponder(200, `<div class="card-header">Inception.2010.2160p.mkv</div>
<a class="btn" href="https://fsl.example/files/Inception.2160p.mkv">Download [FSL Server]</a>
<a class="btn" href="https://buzz.example/abc">Download [BuzzServer]</a>
<a class="btn" href="https://pixeldrain.example/u/pd1">Download [PixelDrain]</a>
<a class="btn" href="https://t.me/channel">Join Telegram</a>
<a class="btn" href="https://dead.example/x.mkv">Download [Mirror]</a>`))
	httpmock.RegisterResponder("GET", "https://buzz.example/abc/download",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "https://buzz.example/abc", req.Header.Get("Referer"))
			resp := httpmock.NewStringResponse(200, "")
			resp.Header.Set("hx-redirect", "/dl/final.mkv")
			return resp, nil
		})
	httpmock.RegisterResponder("HEAD", "https://pixeldrain.example/api/file/pd1",
		func(*http.Request) (*http.Response, error) {
			resp := httpmock.NewStringResponse(200, "")
			resp.Header.Set("Content-Disposition", `attachment; filename="Inception PD.mkv"`)
			return resp, nil
		})

	httpmock.RegisterResponder("GET", "https://hubdrive.example/file/7",
		httpmock.NewStringResponder(200, `<a class="btn btn-primary btn-user btn-success1 m-1" href="https://hubcloud.example/drive/other">Download</a>`))
	httpmock.RegisterResponder("GET", "https://hubcloud.example/drive/other",
		httpmock.NewStringResponder(200, `<div class="card-header">Inception 720p</div>
<a class="btn" href="https://fsl.example/files/Inception.720p.mkv">Download [FSL Server]</a>`))

	req, err := domain.ParseContentRequest(domain.KindMovie, "tt1375666")
	require.NoError(t, err)

	streams, err := c.Resolve(context.Background(), req)
	require.NoError(t, err)

	urls := make([]string, 0, len(streams))
	for _, s := range streams {
		urls = append(urls, s.StreamURL)
		assert.Equal(t, Name, s.ProviderName)
		assert.Equal(t, "tt1375666", s.ContentID)
	}
	assert.Equal(t, []string{
		"https://fsl.example/files/Inception.2160p.mkv",
		"https://buzz.example/dl/final.mkv",
		"https://pixeldrain.example/api/file/pd1?download",
		"https://fsl.example/files/Inception.720p.mkv",
	}, urls)

	assert.Equal(t, "4KHDHub | Download [FSL Server] | 2160p\nInception.2160p.mkv", streams[0].DisplayTitle)
	assert.Equal(t, "https://hubcloud.example/", streams[0].RefererURL)
	assert.Equal(t, "4KHDHub | Download [PixelDrain] | 2160p\nInception PD.mkv", streams[2].DisplayTitle)
	assert.Equal(t, "4KHDHub | Download [FSL Server] | 720p\nInception.720p.mkv", streams[3].DisplayTitle)
}

func TestResolve_SeriesEpisodeMissing(t *testing.T) {
	defer httpmock.DeactivateAndReset()
	c := newTestClient(fakeMetadata{meta: &domain.Metadata{Title: "The Show", Year: 2020}})

	httpmock.RegisterResponderWithQuery("GET", siteBase+"/", map[string]string{"s": "The Show"},
		httpmock.NewStringResponder(200, searchPage(
			[3]string{"/the-show-2020/", "The Show (2020)", "2020 • Series"},
			[3]string{"/the-other-show/", "The Other Show", "2018 • Series"},
		)))
	httpmock.RegisterResponder("GET", siteBase+"/the-show-2020/",
		httpmock.NewStringResponder(200, `<span class="badge">Series</span>
<div class="season-item"><div class="season-title">Season 1</div>
  <div class="episode-item"><div class="episode-title">Episode 1</div>
    <a class="download-link" href="https://hubcloud.example/drive/s1e1">Download</a></div>
</div>`))

	req, err := domain.ParseContentRequest(domain.KindSeries, "tt0111161:1:2")
	require.NoError(t, err)

	streams, err := c.Resolve(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, streams)

	info := httpmock.GetCallCountInfo()
	assert.Equal(t, 1, info["GET "+siteBase+"/the-show-2020/"])
	assert.Zero(t, info["GET https://hubcloud.example/drive/s1e1"])
}

func TestResolve_NoMatch(t *testing.T) {
	defer httpmock.DeactivateAndReset()
	c := newTestClient(fakeMetadata{meta: &domain.Metadata{Title: "Completely Different", Year: 1999}})

	httpmock.RegisterResponderWithQuery("GET", siteBase+"/", map[string]string{"s": "Completely Different"},
		httpmock.NewStringResponder(200, searchPage([3]string{"/x/", "Another Title", "2001"})))

	req, err := domain.ParseContentRequest(domain.KindMovie, "tt1")
	require.NoError(t, err)

	streams, err := c.Resolve(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, streams)
}

func TestResolve_MetadataFailure(t *testing.T) {
	defer httpmock.DeactivateAndReset()

	for _, meta := range []fakeMetadata{{err: errors.New("tmdb down")}, {}} {
		c := newTestClient(meta)
		req, err := domain.ParseContentRequest(domain.KindMovie, "tt1")
		require.NoError(t, err)

		streams, err := c.Resolve(context.Background(), req)
		require.NoError(t, err)
		assert.Empty(t, streams)
	}
	assert.Zero(t, httpmock.GetTotalCallCount())
}
