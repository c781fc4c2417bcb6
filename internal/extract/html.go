package extract

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// HTML extracts the human-visible text of an HTML or XHTML document,
// dropping script and style content and collapsing whitespace.
type HTML struct{}

func (HTML) Extract(content []byte, _ string) (string, error) {
	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return "", err
	}
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript":
				return
			}
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " "), nil
}
