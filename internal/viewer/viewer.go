// Package viewer reads the identity of the visitor a page was rendered for.
//
// The origin describes the viewer in the Pixelflow-Viewer response header,
// an RFC 8941 dictionary:
//
//	Pixelflow-Viewer: logged-in, roles=("editor" "author")
//
// The header is internal to the origin and proxy and never reaches the browser.
package viewer

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/dunglas/httpsfv"
)

// Header is the response header carrying the viewer dictionary.
const Header = "Pixelflow-Viewer"

// Viewer is the visitor as seen by WordPress.
type Viewer struct {
	LoggedIn bool
	Roles    []string
}

// HasRole reports whether the viewer has any of roles.
func (v Viewer) HasRole(roles ...string) bool {
	for _, have := range v.Roles {
		for _, want := range roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

// Parse decodes a Pixelflow-Viewer header value. An empty header is an
// anonymous viewer.
//
// Examples:
//   - logged-in                          → logged in, no roles
//   - logged-in, roles=("shop_manager")  → logged in, shop_manager
//   - logged-in=?0                       → anonymous
func Parse(header string) (Viewer, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return Viewer{}, nil
	}

	dict, err := httpsfv.UnmarshalDictionary([]string{header})
	if err != nil {
		return Viewer{}, fmt.Errorf("invalid %s header: %w", Header, err)
	}

	var v Viewer
	if member, ok := dict.Get("logged-in"); ok {
		item, ok := member.(httpsfv.Item)
		if !ok {
			return Viewer{}, fmt.Errorf("logged-in must be an item")
		}
		loggedIn, ok := item.Value.(bool)
		if !ok {
			return Viewer{}, fmt.Errorf("logged-in must be a boolean")
		}
		v.LoggedIn = loggedIn
	}

	if member, ok := dict.Get("roles"); ok {
		roles, err := roleList(member)
		if err != nil {
			return Viewer{}, err
		}
		v.Roles = roles
		if len(roles) > 0 {
			v.LoggedIn = true
		}
	}
	return v, nil
}

// roleList accepts an inner list of strings or tokens, or a single item.
func roleList(member httpsfv.Member) ([]string, error) {
	var items []httpsfv.Item
	switch m := member.(type) {
	case httpsfv.InnerList:
		items = m.Items
	case httpsfv.Item:
		items = []httpsfv.Item{m}
	default:
		return nil, fmt.Errorf("roles must be a list")
	}

	roles := make([]string, 0, len(items))
	for _, item := range items {
		switch val := item.Value.(type) {
		case string:
			roles = append(roles, val)
		case httpsfv.Token:
			roles = append(roles, string(val))
		default:
			return nil, fmt.Errorf("role must be a string or token, got %T", item.Value)
		}
	}
	return roles, nil
}

// Take parses and removes the viewer header from h. A malformed header
// is still removed and reported as an anonymous viewer with the error.
func Take(h http.Header) (Viewer, error) {
	raw := strings.Join(h.Values(Header), ", ")
	h.Del(Header)
	return Parse(raw)
}
