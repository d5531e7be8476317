package docpipe

import (
	"bytes"
	"context"
	stdhtml "html"
	"regexp"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var hiddenStylePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)display\s*:\s*none`),
	regexp.MustCompile(`(?i)visibility\s*:\s*hidden`),
}

// boilerplate elements are dropped with their whole subtree before any text
// is collected, so page chrome never reaches the extracted text.
var boilerplate = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Nav:      true,
	atom.Header:   true,
	atom.Footer:   true,
	atom.Noscript: true,
	atom.Template: true,
}

// htmlExtractor turns an HTML page into one line of normalised text.
type htmlExtractor struct {
	strip *bluemonday.Policy
	md    *converter.Converter // nil when Markdown rendering is off
}

func newHTMLExtractor(markdown bool) *htmlExtractor {
	h := &htmlExtractor{
		strip: bluemonday.StrictPolicy().AddSpaceWhenStrippingTag(true),
	}
	if markdown {
		h.md = converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		)
	}
	return h
}

// Extract removes boilerplate blocks, strips the remaining tags, decodes
// entities and collapses whitespace.
func (h *htmlExtractor) Extract(_ context.Context, data []byte) (*Document, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, parseError(FormatHTML, err)
	}
	removeBoilerplate(doc)

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return nil, parseError(FormatHTML, err)
	}
	cleaned := buf.String()

	out := &Document{Text: htmlToText(h.strip, cleaned)}
	if h.md != nil {
		if md, err := h.md.ConvertString(cleaned); err == nil {
			out.Markdown = strings.TrimSpace(md)
		}
	}
	return out, nil
}

// htmlToText strips every tag, decodes entities and collapses whitespace.
func htmlToText(p *bluemonday.Policy, s string) string {
	// The policy escapes the text it keeps; decode once to get literals.
	text := stdhtml.UnescapeString(p.Sanitize(s))
	return collapseWhitespace(text)
}

// collapseWhitespace replaces every whitespace run (including NBSP) by one space.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// removeBoilerplate detaches boilerplate and hidden subtrees in place.
func removeBoilerplate(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.ElementNode && (boilerplate[c.DataAtom] || hasHiddenStyle(c)) {
			n.RemoveChild(c)
		} else if c.Type == html.CommentNode {
			n.RemoveChild(c)
		} else {
			removeBoilerplate(c)
		}
		c = next
	}
}

func hasHiddenStyle(n *html.Node) bool {
	for _, a := range n.Attr {
		if a.Key != "style" {
			continue
		}
		for _, pat := range hiddenStylePatterns {
			if pat.MatchString(a.Val) {
				return true
			}
		}
	}
	return false
}
