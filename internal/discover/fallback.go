package discover

import (
	"strings"

	"golang.org/x/net/html"
)

// extractAnchors walks the whole DOM for <a href> attributes. It is the
// last-resort heuristic for pages whose menus match none of the structural
// selectors.
func extractAnchors(htmlContent string) []string {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return nil
	}

	out := make([]string, 0)

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key == "href" {
					out = append(out, attr.Val)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(doc)
	return out
}
