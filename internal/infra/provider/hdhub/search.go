package hdhub

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"stream-resolver/internal/domain"
	"stream-resolver/internal/infra/provider"
)

var (
	metaYearRE  = regexp.MustCompile(`(19|20)\d{2}`)
	parenYearRE = regexp.MustCompile(`\(\s*(19|20)\d{2}\s*\)`)
	punctRE     = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
)

// BuildQueries returns the search strings tried for a title, in the order
// they are run: each title as-is, without punctuation, without a
// parenthesized year. Duplicates and empty strings are dropped.
func BuildQueries(titles ...string) []string {
	seen := make(map[string]struct{})
	queries := make([]string, 0, 3*len(titles))

	add := func(q string) {
		q = strings.Join(strings.Fields(q), " ")
		if q == "" {
			return
		}
		key := strings.ToLower(q)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		queries = append(queries, q)
	}

	for _, t := range titles {
		add(t)
		add(punctRE.ReplaceAllString(t, " "))
		add(parenYearRE.ReplaceAllString(t, " "))
	}

	return queries
}

// parseSearchResults reads result cards in page order.
func parseSearchResults(body, base string) []domain.SearchCandidate {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil
	}

	var out []domain.SearchCandidate
	doc.Find(".card-grid a.movie-card").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		link, err := provider.ResolveURL(base, href)
		if err != nil {
			return
		}
		title := strings.TrimSpace(s.Find("h3.movie-card-title").First().Text())
		if title == "" {
			return
		}

		out = append(out, domain.SearchCandidate{
			Title: title,
			URL:   link,
			Year:  parseYear(s.Find("p.movie-card-meta").First().Text()),
		})
	})

	return out
}

func parseYear(meta string) int {
	m := metaYearRE.FindString(meta)
	if m == "" {
		return 0
	}
	y, _ := strconv.Atoi(m)

	return y
}
