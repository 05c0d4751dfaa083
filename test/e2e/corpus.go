// Package e2e runs the scrape, index and answer pipeline end to end against a fake wiki
// and a fake OpenAI API.
package e2e

import (
	"fmt"
	"html"
	"strings"
)

// StartPath is the page the crawl starts from.
const StartPath = "/wiki/Items"

// BrokenPath is linked from the start page but always fails to fetch.
const BrokenPath = "/wiki/Broken_Item"

// WikiPage is one article served by the fake wiki.
type WikiPage struct {
	Path  string
	Title string
	// Lines become one paragraph each inside the article container.
	Lines []string
	// Links are hrefs placed inside the article container, in order.
	Links []string
	// NoContainer serves the page without the article container.
	NoContainer bool
}

// QueryTestCase is a question whose top retrieved chunk must come from ExpectedPage.
type QueryTestCase struct {
	Query        string
	ExpectedPage string
	Description  string
}

// Corpus holds the fake wiki's pages and the retrieval cases run against it.
type Corpus struct {
	Pages     []WikiPage
	TestCases []QueryTestCase
	byPath    map[string]WikiPage
}

type item struct {
	slug   string
	title  string
	rarity string
	effect string
	query  string
}

var items = []item{
	{"Soldier's_Syringe", "Soldier's Syringe", "common",
		"Increases attack speed by 15% per stack.", "How much attack speed does the syringe give?"},
	{"Tougher_Times", "Tougher Times", "common",
		"Grants a 15% chance to block incoming damage, scaling hyperbolically.", "What is the chance to block damage?"},
	{"Bustling_Fungus", "Bustling Fungus", "common",
		"After standing still for one second, heal nearby allies in a fungal zone.", "Which item heals while standing still?"},
	{"Ukulele", "Ukulele", "uncommon",
		"Grants a 25% chance to fire chain lightning that arcs between enemies.", "What fires chain lightning?"},
	{"Brilliant_Behemoth", "Brilliant Behemoth", "legendary",
		"All attacks explode for 60% total damage in a radius.", "Which legendary makes attacks explode?"},
	{"Gesture_of_the_Drowned", "Gesture of the Drowned", "lunar",
		"Reduces equipment cooldown but forces the equipment to activate automatically.", "What lunar item reduces equipment cooldown?"},
}

// BuildCorpus returns the item hub, one page per item, a page without an article
// container and the retrieval cases.
func BuildCorpus() *Corpus {
	hub := WikiPage{
		Path:  StartPath,
		Title: "Items",
		Lines: []string{
			"Items are collected during a run to grow stronger.",
			"Items come in common, uncommon, legendary and lunar tiers.",
		},
	}
	var pages []WikiPage
	var cases []QueryTestCase
	for _, it := range items {
		path := "/wiki/" + it.slug
		hub.Links = append(hub.Links, path)
		pages = append(pages, WikiPage{
			Path:  path,
			Title: it.title,
			Lines: []string{
				fmt.Sprintf("%s is a %s item.", it.title, it.rarity),
				it.effect,
			},
			Links: []string{StartPath, "/wiki/Special:Random"},
		})
		cases = append(cases, QueryTestCase{
			Query:        it.query,
			ExpectedPage: path,
			Description:  it.slug,
		})
	}
	hub.Links = append(hub.Links, BrokenPath, "/wiki/Special:AllPages", "https://example.org/wiki/Elsewhere", "/wiki/Changelog")
	pages = append(pages, WikiPage{Path: "/wiki/Changelog", Title: "Changelog", NoContainer: true})

	c := &Corpus{
		Pages:     append([]WikiPage{hub}, pages...),
		TestCases: cases,
		byPath:    make(map[string]WikiPage),
	}
	for _, p := range c.Pages {
		c.byPath[p.Path] = p
	}
	return c
}

// Page returns the page served at path.
func (c *Corpus) Page(path string) (WikiPage, bool) {
	p, ok := c.byPath[path]
	return p, ok
}

// CrawlOrder is the breadth-first visitation order from StartPath, including the broken page.
func (c *Corpus) CrawlOrder() []string {
	order := []string{StartPath}
	order = append(order, c.byPath[StartPath].Links...)
	out := order[:0]
	for _, p := range order {
		if strings.HasPrefix(p, "/wiki/") && !strings.HasPrefix(p, "/wiki/Special") {
			out = append(out, p)
		}
	}
	return out
}

// HTML renders p as a MediaWiki-like document with navigation outside the article.
func (p WikiPage) HTML() string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html><html><head><title>")
	b.WriteString(html.EscapeString(p.Title))
	b.WriteString("</title><style>.x{color:red}</style></head><body>")
	b.WriteString(`<nav><a href="/wiki/Special:Search">Search</a><a href="/wiki/Main_Page">Main</a></nav>`)
	if !p.NoContainer {
		b.WriteString(`<div class="mw-body"><div class="mw-parser-output">`)
		for _, line := range p.Lines {
			b.WriteString("<p>")
			b.WriteString(html.EscapeString(line))
			b.WriteString("</p>")
		}
		b.WriteString("<script>var tracking = 1;</script><ul>")
		for _, l := range p.Links {
			fmt.Fprintf(&b, `<li><a href="%s">%s</a></li>`, html.EscapeString(l), html.EscapeString(l))
		}
		b.WriteString("</ul></div></div>")
	}
	b.WriteString("</body></html>")
	return b.String()
}

// Text is the article text the scraper should extract from p.
func (p WikiPage) Text() string {
	if p.NoContainer {
		return ""
	}
	return strings.Join(append(append([]string(nil), p.Lines...), p.Links...), "\n")
}
