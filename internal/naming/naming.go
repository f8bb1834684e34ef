package naming

import (
	"net/url"
	"strings"
)

const (
	fallbackSlug = "index"
	rootFilename = "home.pdf"
	unknownName  = "unknown_page.pdf"
)

// Normalize converts one URL path segment into a filesystem-safe token.
// Runs of anything outside [a-z0-9] collapse to a single underscore, so the
// result is stable under repeated application.
func Normalize(segment string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(segment) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
			pendingSep = false
		default:
			pendingSep = true
		}
	}
	if b.Len() == 0 {
		return fallbackSlug
	}
	return b.String()
}

// Derive builds the output filename for a page from its path position under
// the site root. The site root itself maps to home.pdf.
func Derive(pageURL, siteRoot string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return unknownName
	}

	path := u.Path
	if root, err := url.Parse(siteRoot); err == nil {
		rootPath := strings.TrimSuffix(root.Path, "/")
		if rootPath != "" && strings.HasPrefix(path, rootPath) {
			path = path[len(rootPath):]
		}
	}

	segments := make([]string, 0, 4)
	for _, seg := range strings.Split(path, "/") {
		if seg == "" {
			continue
		}
		segments = append(segments, Normalize(seg))
	}

	if len(segments) == 0 {
		return rootFilename
	}
	return strings.Join(segments, "_") + ".pdf"
}
