package discover

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// navSelectors are tried in order against a loaded page. They mirror the menu
// structures Google Sites emits across its themes; the first selector that
// matches any anchors wins, and the remaining ones are never consulted.
var navSelectors = []string{
	"nav ul li a",
	"[role='navigation'] a",
	".navigation a",
	"aside a",
	".sidebar a",
	"a[href*='sites.google.com']",
}

// Discoverer extracts in-site navigation links from rendered pages.
type Discoverer struct {
	siteRoot *url.URL
	logger   *zap.Logger
}

// New builds a discoverer bound to one site root for the run.
func New(siteRoot string, logger *zap.Logger) (*Discoverer, error) {
	root, err := url.Parse(siteRoot)
	if err != nil {
		return nil, fmt.Errorf("invalid site root %q: %w", siteRoot, err)
	}
	if root.Scheme == "" || root.Host == "" {
		return nil, fmt.Errorf("site root %q must be an absolute http(s) URL", siteRoot)
	}
	return &Discoverer{siteRoot: root, logger: logger}, nil
}

// Discover returns the de-duplicated in-site links found on one page, in
// document order. An empty result is valid: leaf pages have no children.
func (d *Discoverer) Discover(html, baseURL string) []string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		d.logger.Warn("unparseable page", zap.String("url", baseURL), zap.Error(err))
		return nil
	}

	for _, selector := range navSelectors {
		raw := hrefs(doc.Find(selector))
		if len(raw) == 0 {
			continue
		}
		d.logger.Debug("menu heuristic matched",
			zap.String("selector", selector), zap.Int("anchors", len(raw)))
		return d.normalize(raw, base)
	}

	// No recognizable menu on this page; fall back to every anchor.
	return d.normalize(extractAnchors(html), base)
}

// InSite reports whether a normalized URL falls under the site root.
func (d *Discoverer) InSite(link string) bool {
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	if u.Scheme != d.siteRoot.Scheme || u.Host != d.siteRoot.Host {
		return false
	}
	rootPath := strings.TrimSuffix(d.siteRoot.Path, "/")
	return u.Path == rootPath || strings.HasPrefix(u.Path, rootPath+"/")
}

func hrefs(sel *goquery.Selection) []string {
	out := make([]string, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			out = append(out, href)
		}
	})
	return out
}

// normalize resolves, cleans and filters raw hrefs down to unique in-site
// page URLs. Cross-page de-duplication belongs to the frontier, not here.
func (d *Discoverer) normalize(raw []string, base *url.URL) []string {
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, href := range raw {
		link := NormalizeURL(href, base)
		if link == "" || seen[link] || !d.InSite(link) {
			continue
		}
		seen[link] = true
		out = append(out, link)
	}
	return out
}
