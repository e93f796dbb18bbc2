package hdhub

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"stream-resolver/internal/infra/provider"
)

var (
	seasonRE  = regexp.MustCompile(`(?i)(?:season|s)\s*0*(\d+)`)
	episodeRE = regexp.MustCompile(`(?i)(?:episode|ep|e)\s*0*(\d+)`)

	// Whole words only, so rating badges like "TV-MA" stay movies.
	seriesBadgeRE = regexp.MustCompile(`(?i)\b(?:series|tv\s+shows?)\b`)
)

// downloadLink is one link listed on a content page.
type downloadLink struct {
	URL    string
	Label  string
	Header string // text of the enclosing item, used as a filename fallback
}

// contentPage is a parsed movie or series page.
type contentPage struct {
	Series   bool
	Movie    []downloadLink
	Episodes map[int]map[int][]downloadLink // season -> episode -> links
}

// Links returns the links for a movie, or for season/episode of a series.
// A missing episode yields nil.
func (p *contentPage) Links(season, episode int) []downloadLink {
	if !p.Series {
		return p.Movie
	}

	return p.Episodes[season][episode]
}

func parseContent(body, base string) (*contentPage, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, err
	}

	page := &contentPage{}
	doc.Find(".badge").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if seriesBadgeRE.MatchString(s.Text()) {
			page.Series = true

			return false
		}

		return true
	})

	if !page.Series {
		doc.Find(".download-item").Each(func(_ int, item *goquery.Selection) {
			header := itemHeader(item)
			item.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
				if l, ok := newLink(base, a, header); ok {
					page.Movie = append(page.Movie, l)
				}
			})
		})

		return page, nil
	}

	page.Episodes = make(map[int]map[int][]downloadLink)
	doc.Find(".season-item").Each(func(_ int, season *goquery.Selection) {
		sn, ok := number(seasonRE, season.Find(".season-title").First().Text())
		if !ok {
			return
		}

		season.Find(".episode-item").Each(func(_ int, ep *goquery.Selection) {
			en, ok := number(episodeRE, ep.Find(".episode-title").First().Text())
			if !ok {
				return
			}
			header := itemHeader(ep)
			ep.Find("a.download-link").Each(func(_ int, a *goquery.Selection) {
				l, ok := newLink(base, a, header)
				if !ok {
					return
				}
				if page.Episodes[sn] == nil {
					page.Episodes[sn] = make(map[int][]downloadLink)
				}
				page.Episodes[sn][en] = append(page.Episodes[sn][en], l)
			})
		})
	})

	return page, nil
}

func newLink(base string, a *goquery.Selection, header string) (downloadLink, bool) {
	href, _ := a.Attr("href")
	u, err := provider.ResolveURL(base, href)
	if err != nil || !strings.HasPrefix(u, "http") {
		return downloadLink{}, false
	}

	return downloadLink{
		URL:    u,
		Label:  strings.TrimSpace(a.Text()),
		Header: header,
	}, true
}

func itemHeader(item *goquery.Selection) string {
	for _, sel := range []string{".file-title", ".episode-title", ".download-header"} {
		if t := strings.TrimSpace(item.Find(sel).First().Text()); t != "" {
			return t
		}
	}

	return ""
}

func number(re *regexp.Regexp, s string) (int, bool) {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 {
		return 0, false
	}

	return n, true
}
