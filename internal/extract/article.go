// Package extract pulls article text and links out of wiki HTML.
package extract

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// DefaultContainerClass is the class of the MediaWiki article body.
const DefaultContainerClass = "mw-parser-output"

// Result is what Article found in a page.
type Result struct {
	// Found reports whether the article container exists. When false, Text and Links are empty.
	Found bool
	// Text is the container's visible text nodes, trimmed and joined with "\n".
	Text string
	// Links are the raw href values of anchors inside the container, in document order.
	Links []string
}

// Article parses an HTML document and extracts the text and links of the first div
// whose class list contains containerClass.
func Article(r io.Reader, containerClass string) (*Result, error) {
	if containerClass == "" {
		containerClass = DefaultContainerClass
	}
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	container := findContainer(doc, containerClass)
	if container == nil {
		return &Result{}, nil
	}

	var parts []string
	var links []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
			return
		case html.ElementNode:
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript:
				return
			case atom.A:
				if href, ok := attr(n, "href"); ok {
					links = append(links, href)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for c := container.FirstChild; c != nil; c = c.NextSibling {
		walk(c)
	}
	return &Result{Found: true, Text: strings.Join(parts, "\n"), Links: links}, nil
}

func findContainer(n *html.Node, class string) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == atom.Div && hasClass(n, class) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findContainer(c, class); found != nil {
			return found
		}
	}
	return nil
}

func hasClass(n *html.Node, class string) bool {
	v, ok := attr(n, "class")
	if !ok {
		return false
	}
	for _, c := range strings.Fields(v) {
		if c == class {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}
