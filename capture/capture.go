// CLAUDE:SUMMARY CapturedPage model and HTML metadata extraction: title, meta/og description, image inventory.
// Package capture models a captured page view and extracts its metadata
// from raw HTML: title, description, OpenGraph fields, and a bounded,
// ordered inventory of absolute image URLs.
package capture

import (
	"fmt"
	stdhtml "html"
	"net/url"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
	"github.com/dyatlov/go-opengraph/opengraph"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"

	"github.com/webclip/clipd/notion"
)

// MaxImages bounds the captured image inventory.
const MaxImages = 15

// Page is one captured page view. It is ephemeral: the UI produces it,
// the clipper consumes it, nothing persists it as-is.
type Page struct {
	URL          string   `json:"url"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Image        string   `json:"image,omitempty"`
	Type         string   `json:"type,omitempty"`
	SelectedText string   `json:"selected_text,omitempty"`
	Images       []string `json:"images,omitempty"`
}

var stripPolicy = bluemonday.StrictPolicy()

// CleanText strips any markup from s and unescapes HTML entities,
// yielding plain text safe to store as a property value.
func CleanText(s string) string {
	return strings.TrimSpace(stdhtml.UnescapeString(stripPolicy.Sanitize(s)))
}

// FromHTML extracts page metadata from raw HTML, resolving image URLs
// against pageURL. It mirrors what the extension's content script reads
// from a live document.
func FromHTML(rawHTML, pageURL string) (*Page, error) {
	node, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("capture: parse html: %w", err)
	}
	doc := goquery.NewDocumentFromNode(node)

	og := opengraph.NewOpenGraph()
	if err := og.ProcessHTML(strings.NewReader(rawHTML)); err != nil {
		return nil, fmt.Errorf("capture: opengraph: %w", err)
	}

	p := &Page{URL: pageURL}

	p.Title = strings.TrimSpace(doc.Find("title").First().Text())
	if p.Title == "" {
		p.Title = strings.TrimSpace(og.Title)
	}

	p.Description = metaContent(doc, "description")
	if p.Description == "" {
		p.Description = strings.TrimSpace(og.Description)
	}

	p.Image = metaContent(doc, "image")
	if p.Image == "" && len(og.Images) > 0 {
		p.Image = og.Images[0].URL
	}

	p.Type = og.Type

	base, _ := url.Parse(pageURL)
	doc.Find("img").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		src, ok := sel.Attr("src")
		if !ok || src == "" {
			return true
		}
		abs := resolveURL(base, src)
		if abs == "" {
			return true
		}
		p.Images = append(p.Images, abs)
		return len(p.Images) < MaxImages
	})

	return p, nil
}

// metaContent reads <meta name=...> or <meta property=...> content.
func metaContent(doc *goquery.Document, name string) string {
	sel := doc.Find(fmt.Sprintf(`meta[name=%q], meta[property=%q]`, name, name))
	return strings.TrimSpace(sel.First().AttrOr("content", ""))
}

// resolveURL makes src absolute against base and keeps only http(s) URLs.
func resolveURL(base *url.URL, src string) string {
	ref, err := url.Parse(strings.TrimSpace(src))
	if err != nil {
		return ""
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}
	if ref.Scheme != "http" && ref.Scheme != "https" {
		return ""
	}
	return ref.String()
}

// MarkdownBody converts the page body to markdown, for use as a
// description fallback when the document carries no usable metadata.
func MarkdownBody(rawHTML string) (string, error) {
	md, err := htmltomarkdown.ConvertString(rawHTML)
	if err != nil {
		return "", fmt.Errorf("capture: html to markdown: %w", err)
	}
	return strings.TrimSpace(md), nil
}

// PageData maps the capture onto store properties, prefixing the
// description with the user's note when present. The page's content
// type becomes the single tag; selected text becomes the highlight.
func (p *Page) PageData(note string) notion.PageData {
	desc := CleanText(p.Description)
	if note != "" {
		if desc != "" {
			desc = note + "\n\n" + desc
		} else {
			desc = note
		}
	}

	var tags []string
	if p.Type != "" {
		tags = []string{p.Type}
	}

	return notion.PageData{
		URL:         p.URL,
		Title:       p.Title,
		Description: desc,
		Tags:        tags,
		Highlights:  CleanText(p.SelectedText),
	}
}
