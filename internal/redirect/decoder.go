// Package redirect decodes obfuscated redirect payloads embedded in
// intermediate link-protection pages.
//
// The page stores the destination as fragments passed to known inline script
// calls. Fragments are concatenated in document order and then unwrapped:
//
//	base64 -> base64 -> rot13 -> base64 -> JSON {"o": base64(url)} -> base64
//
// Every layer is a total function returning ok=false on malformed input, so a
// corrupted payload yields no URL instead of an error.
package redirect

import (
	"encoding/base64"
	"encoding/json"
	"net/url"
	"regexp"
	"strings"
)

// fragmentRE matches both known call signatures; submatch 1 or 2 holds the fragment.
var fragmentRE = regexp.MustCompile(`s\('o','([A-Za-z0-9+/=]+)'|ck\('_wp_http_\d+','([^']+)'`)

// Marker is the query parameter that flags a link as an indirect redirect.
const Marker = "id"

// Decode turns a protection page (or raw script text) into the destination
// URL. ok is false when no fragment is found or any layer fails.
func Decode(page string) (string, bool) {
	payload, ok := Fragments(page)
	if !ok {
		return "", false
	}

	return DecodePayload(payload)
}

// Fragments extracts and concatenates all payload fragments in document order.
func Fragments(page string) (string, bool) {
	matches := fragmentRE.FindAllStringSubmatch(page, -1)
	if len(matches) == 0 {
		return "", false
	}

	var sb strings.Builder
	for _, m := range matches {
		if m[1] != "" {
			sb.WriteString(m[1])
		} else {
			sb.WriteString(m[2])
		}
	}

	return sb.String(), sb.Len() > 0
}

// DecodePayload applies the fixed layer sequence to a concatenated payload.
func DecodePayload(payload string) (string, bool) {
	s, ok := unbase64(payload)
	if !ok {
		return "", false
	}
	if s, ok = unbase64(s); !ok {
		return "", false
	}
	s = rot13(s)
	if s, ok = unbase64(s); !ok {
		return "", false
	}

	field, ok := recordField(s, "o")
	if !ok {
		return "", false
	}
	target, ok := unbase64(field)
	if !ok {
		return "", false
	}

	return absoluteURL(target)
}

// HasMarker reports whether link is an indirect redirect needing Decode.
func HasMarker(link string) bool {
	u, err := url.Parse(link)
	if err != nil {
		return false
	}

	return u.Query().Get(Marker) != ""
}

func unbase64(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		b, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
		if err != nil {
			return "", false
		}
	}

	return string(b), true
}

func rot13(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return 'a' + (r-'a'+13)%26
		case r >= 'A' && r <= 'Z':
			return 'A' + (r-'A'+13)%26
		default:
			return r
		}
	}, s)
}

func recordField(s, name string) (string, bool) {
	var record map[string]any
	if err := json.Unmarshal([]byte(s), &record); err != nil {
		return "", false
	}
	v, ok := record[name].(string)
	if !ok || v == "" {
		return "", false
	}

	return v, true
}

func absoluteURL(s string) (string, bool) {
	s = strings.TrimSpace(s)
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}

	return s, true
}
