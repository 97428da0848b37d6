package scanner

import (
	"net/url"
	"strings"
)

// aliasSegments are path prefixes that sites put before the username,
// e.g. https://www.reddit.com/user/alice.
var aliasSegments = map[string]bool{
	"user":  true,
	"users": true,
	"u":     true,
}

// ExtractUsername pulls the probable username out of a profile URL.
// Query parameters and fragments are ignored. The username is the
// segment after a user/users/u prefix, otherwise the first path
// segment, falling back to the text after the last slash. It never
// fails; worst case the input comes back unchanged.
func ExtractUsername(rawURL string) string {
	trimmed := rawURL
	if i := strings.IndexAny(trimmed, "?#"); i >= 0 {
		trimmed = trimmed[:i]
	}

	if parsed, err := url.Parse(trimmed); err == nil {
		segments := splitPath(parsed.Path)
		if len(segments) > 0 {
			if aliasSegments[segments[0]] && len(segments) > 1 {
				return segments[1]
			}
			return segments[0]
		}
	}

	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}

func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}
