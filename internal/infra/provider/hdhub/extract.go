package hdhub

import (
	"context"
	"fmt"
	"mime"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"stream-resolver/internal/infra/provider"
	"stream-resolver/internal/redirect"
)

const (
	defaultQuality = "1080p"
	hubdriveButton = ".btn.btn-primary.btn-user.btn-success1.m-1"
)

var (
	qualityRE    = regexp.MustCompile(`(\d{3,4})[pP]`)
	unsafeNameRE = regexp.MustCompile(`[\\/:*?"<>|]+`)
	pixeldrainRE = regexp.MustCompile(`^/u/([^/?#]+)`)
)

// extracted is a final download link found on a file host.
type extracted struct {
	URL      string
	Label    string
	Quality  string
	Filename string
	Referer  string
}

// extractLink follows one content-page link to its final download links.
// Every failure yields nil.
func (c *Client) extractLink(ctx context.Context, link downloadLink) []extracted {
	target := link.URL

	if redirect.HasMarker(target) {
		page, err := provider.GetPage(ctx, c.client, target, nil)
		if err != nil {
			c.logger.Debug("redirect page fetch failed", zap.String("url", target), zap.Error(err))

			return nil
		}
		decoded, ok := redirect.Decode(page.Body)
		if !ok {
			c.logger.Debug("redirect payload undecodable", zap.String("url", target))

			return nil
		}
		target = decoded
	}

	host := strings.ToLower(hostOf(target))
	switch {
	case strings.Contains(host, "hubdrive"):
		return c.hubdrive(ctx, target, link.Header)
	case strings.Contains(host, "hubcloud"):
		return c.hubcloud(ctx, target, link.Header)
	default:
		c.logger.Debug("no extractor for host", zap.String("url", target))

		return nil
	}
}

// hubdrive exposes a single download button which may point at hubcloud.
func (c *Client) hubdrive(ctx context.Context, pageURL, fallbackHeader string) []extracted {
	doc, err := c.document(ctx, pageURL, nil)
	if err != nil {
		c.logger.Debug("hubdrive fetch failed", zap.String("url", pageURL), zap.Error(err))

		return nil
	}

	href, _ := doc.Find(hubdriveButton).First().Attr("href")
	href, err = provider.ResolveURL(pageURL, href)
	if err != nil {
		return nil
	}
	if strings.Contains(strings.ToLower(hostOf(href)), "hubcloud") {
		return c.hubcloud(ctx, href, fallbackHeader)
	}

	header := firstText(doc, ".card-header", fallbackHeader)
	origin, _ := provider.Origin(pageURL)

	return []extracted{{
		URL:      href,
		Label:    "HubDrive",
		Quality:  quality(header),
		Filename: c.filename(ctx, href, header),
		Referer:  origin + "/",
	}}
}

// hubcloud exposes a list of named buttons. BuzzServer needs one more hop
// whose target is read from the hx-redirect response header.
func (c *Client) hubcloud(ctx context.Context, pageURL, fallbackHeader string) []extracted {
	doc, err := c.document(ctx, pageURL, nil)
	if err != nil {
		c.logger.Debug("hubcloud fetch failed", zap.String("url", pageURL), zap.Error(err))

		return nil
	}

	if next, ok := doc.Find("#download").First().Attr("href"); ok && strings.TrimSpace(next) != "" {
		nextURL, err := provider.ResolveURL(pageURL, next)
		if err == nil && nextURL != pageURL {
			doc, err = c.document(ctx, nextURL, map[string]string{"Referer": pageURL})
			if err != nil {
				c.logger.Debug("hubcloud download page fetch failed", zap.String("url", nextURL), zap.Error(err))

				return nil
			}
			pageURL = nextURL
		}
	}

	header := firstText(doc, ".card-header", fallbackHeader)
	q := quality(header)
	origin, _ := provider.Origin(pageURL)

	var out []extracted
	doc.Find("a.btn").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href, err := provider.ResolveURL(pageURL, href)
		if err != nil || !strings.HasPrefix(href, "http") {
			return
		}
		label := strings.Join(strings.Fields(s.Text()), " ")
		lower := strings.ToLower(label + " " + href)
		if strings.Contains(lower, "t.me/") || strings.Contains(lower, "telegram") {
			return
		}

		final := href
		switch {
		case strings.Contains(lower, "buzzserver"):
			final, err = c.buzzRedirect(ctx, href)
			if err != nil {
				c.logger.Debug("buzzserver hop failed", zap.String("url", href), zap.Error(err))

				return
			}
		case strings.Contains(lower, "pixeldrain"):
			final = pixeldrainDirect(href)
		}

		if label == "" {
			label = "Download"
		}
		out = append(out, extracted{
			URL:      final,
			Label:    label,
			Quality:  q,
			Filename: c.filename(ctx, final, header),
			Referer:  origin + "/",
		})
	})

	return out
}

// buzzRedirect requests href/download and makes the hx-redirect header
// absolute against href's origin.
func (c *Client) buzzRedirect(ctx context.Context, href string) (string, error) {
	r, err := c.client.R().
		SetContext(ctx).
		SetHeader("Referer", href).
		Get(strings.TrimRight(href, "/") + "/download")
	if err != nil {
		return "", err
	}

	target := strings.TrimSpace(r.Header().Get("hx-redirect"))
	if target == "" {
		return "", fmt.Errorf("no hx-redirect header (status %d)", r.StatusCode())
	}
	origin, ok := provider.Origin(href)
	if !ok {
		return "", fmt.Errorf("invalid buzzserver url %q", href)
	}

	return provider.ResolveURL(origin+"/", target)
}

// pixeldrainDirect turns a /u/<id> viewer link into the API download link.
func pixeldrainDirect(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	m := pixeldrainRE.FindStringSubmatch(u.Path)
	if m == nil {
		return href
	}

	return u.Scheme + "://" + u.Host + "/api/file/" + m[1] + "?download"
}

// filename prefers the HEAD content-disposition, then the URL's last path
// segment when it looks like a file, then the cleaned page header.
func (c *Client) filename(ctx context.Context, link, header string) string {
	r, err := c.client.R().SetContext(ctx).Head(link)
	if err == nil && !r.IsError() {
		if cd := r.Header().Get("Content-Disposition"); cd != "" {
			if _, params, err := mime.ParseMediaType(cd); err == nil && params["filename"] != "" {
				return params["filename"]
			}
		}
	}

	if u, err := url.Parse(link); err == nil {
		if seg, err := url.PathUnescape(path.Base(u.Path)); err == nil && strings.Contains(seg, ".") {
			return seg
		}
	}

	return cleanHeader(header)
}

func (c *Client) document(ctx context.Context, pageURL string, headers map[string]string) (*goquery.Document, error) {
	page, err := provider.GetPage(ctx, c.client, pageURL, headers)
	if err != nil {
		return nil, err
	}

	return goquery.NewDocumentFromReader(strings.NewReader(page.Body))
}

// quality returns the first "<digits>p" token of header, or 1080p.
func quality(header string) string {
	m := qualityRE.FindStringSubmatch(header)
	if m == nil {
		return defaultQuality
	}

	return m[1] + "p"
}

func cleanHeader(header string) string {
	header = unsafeNameRE.ReplaceAllString(header, " ")

	return strings.Join(strings.Fields(header), " ")
}

func firstText(doc *goquery.Document, sel, fallback string) string {
	if t := strings.TrimSpace(doc.Find(sel).First().Text()); t != "" {
		return t
	}

	return fallback
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	return u.Host
}
