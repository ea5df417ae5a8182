package scrape

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// TruncationMarker is appended when page text is cut to the limit.
const TruncationMarker = "[Content truncated...]"

// boilerplate elements are removed before text extraction.
const boilerplate = "script, style, nav, footer, header, aside, form, noscript, iframe, svg"

// mainSelectors are tried in order; the first with enough text wins.
var mainSelectors = []string{"main", "article", "[role=main]", "#content"}

// minMainChars is the smallest main-area text preferred over the body.
const minMainChars = 200

var blockTags = map[string]bool{
	"p": true, "div": true, "section": true, "article": true, "main": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"li": true, "ul": true, "ol": true, "tr": true, "table": true, "br": true,
	"dd": true, "dt": true, "blockquote": true, "address": true,
}

// ExtractContent decodes an HTML body in its declared charset and returns
// the page title and its main-content text, truncated to maxChars runes
// when maxChars > 0.
func ExtractContent(body []byte, contentType string, maxChars int) (string, string, error) {
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return "", "", eris.Wrap(err, "scrape: decode charset")
	}
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", "", eris.Wrap(err, "scrape: parse html")
	}

	title := collapse(doc.Find("title").First().Text())
	doc.Find(boilerplate).Remove()

	root := doc.Find("body")
	for _, sel := range mainSelectors {
		s := doc.Find(sel).First()
		if s.Length() > 0 && utf8.RuneCountInString(strings.TrimSpace(s.Text())) >= minMainChars {
			root = s
			break
		}
	}
	if root.Length() == 0 {
		root = doc.Selection
	}

	return title, Truncate(textOf(root), maxChars), nil
}

// textOf renders a selection as plain text, one line per block element.
func textOf(sel *goquery.Selection) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			b.WriteByte(' ')
			return
		case html.ElementNode:
			if blockTags[n.Data] {
				b.WriteByte('\n')
				defer b.WriteByte('\n')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return collapseLines(b.String())
}

// collapseLines squeezes whitespace within lines and drops blank lines.
func collapseLines(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, l := range lines {
		if l = collapse(l); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate cuts s to limit runes and appends the truncation marker.
// limit <= 0 disables truncation.
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:limit])) + "\n\n" + TruncationMarker
}
