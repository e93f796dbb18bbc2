package vidsrc

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"stream-resolver/internal/domain"
	"stream-resolver/internal/infra/provider"
)

var (
	rcpSourceRE  = regexp.MustCompile(`src:\s*'([^']*)'`)
	prorcpFileRE = regexp.MustCompile(`file:\s*'([^']*)'`)
)

// embedPage is what the embed document tells us about one content id.
type embedPage struct {
	Title   string
	Servers []domain.ServerDescriptor
	HopBase string // origin of the player iframe, empty if not found
}

func parseEmbed(body string) (*embedPage, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, err
	}

	page := &embedPage{
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
	}

	doc.Find(".serversList .server").Each(func(i int, s *goquery.Selection) {
		hash, ok := s.Attr("data-hash")
		hash = strings.TrimSpace(hash)
		if !ok || hash == "" {
			return
		}
		label := strings.TrimSpace(s.Text())
		if label == "" {
			label = fmt.Sprintf("Server %d", i+1)
		}
		page.Servers = append(page.Servers, domain.ServerDescriptor{
			Label:        label,
			OpaqueHandle: hash,
		})
	})

	if src, ok := doc.Find("#player_iframe").Attr("src"); ok {
		if origin, ok := provider.Origin(src); ok {
			page.HopBase = origin
		}
	}

	return page, nil
}

// extractRCPSource returns the inline source reference of an RCP page.
func extractRCPSource(body string) (string, bool) {
	return firstGroup(rcpSourceRE, body)
}

// extractProrcpFile returns the media file reference of a PRORCP page.
func extractProrcpFile(body string) (string, bool) {
	return firstGroup(prorcpFileRE, body)
}

func firstGroup(re *regexp.Regexp, body string) (string, bool) {
	m := re.FindStringSubmatch(body)
	if len(m) < 2 || strings.TrimSpace(m[1]) == "" {
		return "", false
	}

	return strings.TrimSpace(m[1]), true
}

// isProrcp reports whether ref points to the second-stage resource.
func isProrcp(ref string) bool {
	return strings.Contains(ref, "/prorcp/")
}

// looksPlayable reports whether ref is a fully-qualified media link.
func looksPlayable(ref string) bool {
	lower := strings.ToLower(ref)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") && !strings.HasPrefix(lower, "//") {
		return false
	}

	return strings.Contains(lower, ".m3u8") || strings.Contains(lower, ".mp4")
}
