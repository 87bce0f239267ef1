package ingest

import (
	"bytes"
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

const noiseSelector = "head, script, style, noscript, template, svg"

// blockTags start a new element. Text directly inside a block, outside any
// nested block, forms one element; inline tags join their parent's text.
var blockTags = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true, "body": true,
	"caption": true, "dd": true, "details": true, "div": true, "dl": true, "dt": true,
	"fieldset": true, "figcaption": true, "figure": true, "footer": true, "form": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"header": true, "hr": true, "html": true, "li": true, "main": true, "nav": true,
	"ol": true, "p": true, "pre": true, "section": true, "summary": true, "table": true,
	"tbody": true, "td": true, "tfoot": true, "th": true, "thead": true, "tr": true, "ul": true,
}

// HTMLExtractor partitions HTML into block elements in document order.
type HTMLExtractor struct {
	Readability bool
}

func (h *HTMLExtractor) Extract(_ context.Context, raw *Raw) (*Extracted, error) {
	source := raw.Data
	if h.Readability {
		if article := readableHTML(raw); article != "" {
			source = []byte(article)
		}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(source))
	if err != nil {
		return nil, extractionError(raw, "text/html", "could not parse HTML", err)
	}
	doc.Find(noiseSelector).Remove()

	var p partitioner
	for _, n := range doc.Nodes {
		p.walk(n)
	}
	p.flush()

	if len(p.elements) == 0 {
		return nil, extractionError(raw, "text/html", "no readable content", nil)
	}
	return &Extracted{Elements: p.elements}, nil
}

// partitioner accumulates a block's own text until the next block boundary.
type partitioner struct {
	buf      strings.Builder
	elements []string
}

func (p *partitioner) walk(n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			p.buf.WriteString(c.Data)
		case html.ElementNode:
			switch {
			case c.Data == "br":
				p.buf.WriteByte('\n')
			case blockTags[c.Data]:
				p.flush()
				p.walk(c)
				p.flush()
			default:
				p.walk(c)
			}
		}
	}
}

func (p *partitioner) flush() {
	if text := strings.TrimSpace(p.buf.String()); text != "" {
		p.elements = append(p.elements, text)
	}
	p.buf.Reset()
}

// readableHTML returns the main article HTML, or "" when readability finds nothing.
func readableHTML(raw *Raw) string {
	pageURL, err := url.Parse(raw.Locator)
	if err != nil || DetectSource(raw.Locator) != SourceURL {
		pageURL = &url.URL{Scheme: "file", Path: raw.Locator}
	}

	article, err := readability.FromReader(bytes.NewReader(raw.Data), pageURL)
	if err != nil || strings.TrimSpace(article.TextContent) == "" {
		return ""
	}
	return article.Content
}
