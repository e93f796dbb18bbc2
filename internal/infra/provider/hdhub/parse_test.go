package hdhub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildQueries(t *testing.T) {
	tests := []struct {
		name   string
		titles []string
		want   []string
	}{
		{
			name:   "plain title",
			titles: []string{"The Show"},
			want:   []string{"The Show"},
		},
		{
			name:   "punctuation and year",
			titles: []string{"Spider-Man: No Way Home (2021)"},
			want: []string{
				"Spider-Man: No Way Home (2021)",
				"Spider Man No Way Home 2021",
				"Spider-Man: No Way Home",
			},
		},
		{
			name:   "original title deduplicated",
			titles: []string{"Amélie", "amélie", ""},
			want:   []string{"Amélie"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildQueries(tt.titles...))
		})
	}
}

func TestParseSearchResults(t *testing.T) {
	got := parseSearchResults(searchPage(
		[3]string{"/a/", "Alpha", "2019 • 1080p"},
		[3]string{"https://other.example/b", "Beta", "no year"},
		[3]string{"/c/", "", "2020"},
	), siteBase)

	require.Len(t, got, 2)
	assert.Equal(t, siteBase+"/a/", got[0].URL)
	assert.Equal(t, 2019, got[0].Year)
	assert.Equal(t, "https://other.example/b", got[1].URL)
	assert.Zero(t, got[1].Year)
}

func TestParseContent_Series(t *testing.T) {
	page, err := parseContent(`<span class="badge">TV Series</span>
<div class="season-item"><div class="season-title">S02</div>
  <div class="episode-item"><div class="episode-title">Episode 03</div>
    <a class="download-link" href="/go/1">720p</a>
    <a class="download-link" href="/go/2">1080p</a>
  </div>
  <div class="episode-item"><div class="episode-title">Trailer</div>
    <a class="download-link" href="/go/3">x</a>
  </div>
</div>`, siteBase)
	require.NoError(t, err)

	assert.True(t, page.Series)
	links := page.Links(2, 3)
	require.Len(t, links, 2)
	assert.Equal(t, siteBase+"/go/1", links[0].URL)
	assert.Equal(t, "1080p", links[1].Label)
	assert.Nil(t, page.Links(2, 4))
	assert.Nil(t, page.Links(1, 3))
}

func TestParseContent_Movie(t *testing.T) {
	page, err := parseContent(`<span class="badge">Movie</span>
<div class="download-item"><a href="https://x.example/1">One</a><a href="javascript:void(0)">Bad</a></div>`, siteBase)
	require.NoError(t, err)

	assert.False(t, page.Series)
	require.Len(t, page.Links(0, 0), 1)
}

func TestParseContent_SeriesBadge(t *testing.T) {
	tests := []struct {
		badges string
		series bool
	}{
		{`<span class="badge">TV-MA</span><span class="badge">Movie</span>`, false},
		{`<span class="badge">HDTV</span>`, false},
		{`<span class="badge">TV Show</span>`, true},
		{`<span class="badge">Web Series</span>`, true},
	}

	for _, tt := range tests {
		t.Run(tt.badges, func(t *testing.T) {
			page, err := parseContent(tt.badges, siteBase)
			require.NoError(t, err)
			assert.Equal(t, tt.series, page.Series)
		})
	}
}

func TestQuality(t *testing.T) {
	assert.Equal(t, "2160p", quality("Movie.2010.2160p.WEB-DL"))
	assert.Equal(t, "720p", quality("Movie 720P x264"))
	assert.Equal(t, "1080p", quality("Movie WEB-DL"))
}

func TestPixeldrainDirect(t *testing.T) {
	assert.Equal(t, "https://pixeldrain.com/api/file/abc?download", pixeldrainDirect("https://pixeldrain.com/u/abc"))
	assert.Equal(t, "https://pixeldrain.com/l/abc", pixeldrainDirect("https://pixeldrain.com/l/abc"))
}

func TestCleanHeader(t *testing.T) {
	assert.Equal(t, "Movie 2020 1080p mkv", cleanHeader(`Movie: 2020 / 1080p | mkv`))
}
