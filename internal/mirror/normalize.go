// Package mirror recognises pixeldrain download URLs in their historical
// shapes and rewrites them into the canonical direct-download form.
package mirror

import "regexp"

// Host is the mirror provider whose links are eligible for normalisation.
const Host = "pixeldrain.com"

// The provider has exposed files under several path shapes over time.
// Ordered: the canonical shape is matched first so normalisation is
// idempotent, query strings are tolerated on every shape.
var patterns = []*regexp.Regexp{
	regexp.MustCompile(`^https?://pixeldrain\.com/api/filesystem/([a-zA-Z0-9]+)`),
	regexp.MustCompile(`^https?://pixeldrain\.com/[du]/([a-zA-Z0-9]+)`),
}

// Normalize rewrites a recognised pixeldrain URL into
// https://pixeldrain.com/api/filesystem/<id>?attach. Input that matches
// no known shape (including malformed or non-provider URLs) is returned
// unchanged so the caller always has something to try.
func Normalize(raw string) string {
	for _, pat := range patterns {
		if m := pat.FindStringSubmatch(raw); m != nil {
			return "https://" + Host + "/api/filesystem/" + m[1] + "?attach"
		}
	}
	return raw
}

// IsMirror reports whether the URL points at the mirror provider.
func IsMirror(raw string) bool {
	return hostPattern.MatchString(raw)
}

var hostPattern = regexp.MustCompile(`^https?://(?:[a-z0-9-]+\.)?pixeldrain\.com/`)
