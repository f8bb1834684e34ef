package discover

import (
	"net/url"
	"strings"
)

var trackingParams = []string{
	"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content",
	"fbclid", "gclid", "msclkid", "mc_cid", "mc_eid",
}

// NormalizeURL resolves href against base and strips fragment, tracking
// params and trailing-slash variance. The result is the identity key used by
// the frontier; an empty string means "not a page link".
func NormalizeURL(href string, base *url.URL) string {
	if href == "" || strings.HasPrefix(href, "#") ||
		strings.HasPrefix(href, "javascript:") ||
		strings.HasPrefix(href, "mailto:") ||
		strings.HasPrefix(href, "tel:") {
		return ""
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}

	resolved := base.ResolveReference(u)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}

	resolved.Fragment = ""
	resolved.Path = strings.TrimSuffix(resolved.Path, "/")
	stripTrackingParams(resolved)

	return resolved.String()
}

// NormalizeSeed puts an absolute URL through the same cleanup discovered
// links receive, so the configured site root shares one identity with links
// pointing back at it.
func NormalizeSeed(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.Fragment = ""
	u.Path = strings.TrimSuffix(u.Path, "/")
	stripTrackingParams(u)
	return u.String()
}

func stripTrackingParams(u *url.URL) {
	if u.RawQuery == "" {
		return
	}
	q := u.Query()
	for _, p := range trackingParams {
		q.Del(p)
	}
	u.RawQuery = q.Encode()
}
