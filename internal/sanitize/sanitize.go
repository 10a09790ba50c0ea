// Package sanitize cleans admin input before it is stored or echoed into
// page markup.
package sanitize

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

var (
	strict = bluemonday.StrictPolicy()

	octetRe   = regexp.MustCompile(`%[a-fA-F0-9]{2}`)
	spaceRe   = regexp.MustCompile(`[\r\n\t ]+`)
	controlRe = regexp.MustCompile(`[\x00-\x1F\x7F]`)
	keyRe     = regexp.MustCompile(`[^a-z0-9_\-]`)
)

// Text strips markup, percent-encoded octets and control characters from a
// single-line value and collapses runs of whitespace.
func Text(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ToValidUTF8(s, "")
	s = html.UnescapeString(strict.Sanitize(s))
	for octetRe.MatchString(s) {
		s = octetRe.ReplaceAllString(s, "")
	}
	s = spaceRe.ReplaceAllString(s, " ")
	s = controlRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// Control removes control characters only.
func Control(s string) string {
	return controlRe.ReplaceAllString(strings.ToValidUTF8(s, ""), "")
}

// Key lower-cases s and drops everything outside [a-z0-9_-].
func Key(s string) string {
	return keyRe.ReplaceAllString(strings.ToLower(s), "")
}

// URL returns s as an absolute http(s) URL, or "" when it cannot be one.
// A bare host gets an http scheme.
func URL(s string) string {
	s = strings.TrimSpace(controlRe.ReplaceAllString(s, ""))
	s = strings.ReplaceAll(s, " ", "%20")
	if s == "" {
		return ""
	}
	if !strings.Contains(s, "://") && !strings.HasPrefix(s, "/") && !strings.HasPrefix(s, "#") && !strings.HasPrefix(s, "?") {
		s = "http://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return ""
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return ""
	}
	if u.Host == "" {
		return ""
	}
	return u.String()
}

// Truthy reports whether a form value switches a checkbox on.
func Truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "0", "false", "off", "no":
		return false
	}
	return true
}
