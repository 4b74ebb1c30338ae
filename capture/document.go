package capture

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/tdewolff/minify/v2"
	minifycss "github.com/tdewolff/minify/v2/css"
	minifyhtml "github.com/tdewolff/minify/v2/html"
	minifyjs "github.com/tdewolff/minify/v2/js"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Document wraps one parsed page tree plus the base URL used to resolve
// relative references. All mutation is in place; a Document is owned by a
// single capture session.
type Document struct {
	root *html.Node
	base *url.URL
}

// NewDocument parses markup and binds it to a base URL.
func NewDocument(markup, baseURL string) (*Document, error) {
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url %q: %w", baseURL, err)
	}
	return &Document{root: root, base: base}, nil
}

// Root returns the document root node.
func (d *Document) Root() *html.Node { return d.root }

// BaseURL returns the document's base URL.
func (d *Document) BaseURL() *url.URL { return d.base }

// Resolve turns ref into an absolute URL against the document base.
// Returns "" when ref cannot be parsed.
func (d *Document) Resolve(ref string) string {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return ""
	}
	return d.base.ResolveReference(u).String()
}

// Select returns, in document order, every element matching at least one of
// the selectors. Duplicates across selectors collapse to one entry.
func (d *Document) Select(selectors ...string) []*html.Node {
	return d.SelectExcluding(selectors, nil)
}

// SelectExcluding returns elements matching any include selector and none of
// the exclude selectors, in document order.
func (d *Document) SelectExcluding(include, exclude []string) []*html.Node {
	inc := compileGroup(include)
	if len(inc) == 0 {
		return nil
	}
	exc := compileGroup(exclude)
	var out []*html.Node
	walkElements(d.root, func(n *html.Node) {
		if !matchesAny(n, inc) {
			return
		}
		if matchesAny(n, exc) {
			return
		}
		out = append(out, n)
	})
	return out
}

// First returns the first element matching selector, or nil.
func (d *Document) First(selector string) *html.Node {
	nodes := d.Select(selector)
	if len(nodes) == 0 {
		return nil
	}
	return nodes[0]
}

// SetRoot crops the document: the body's rendered content is replaced with
// the subtree of the first element matching selector.
func (d *Document) SetRoot(selector string) error {
	target := d.First(selector)
	if target == nil {
		return fmt.Errorf("set root: no element matches %q", selector)
	}
	body := findElement(d.root, atom.Body)
	if body == nil {
		return fmt.Errorf("set root: document has no body")
	}
	if target.Parent != nil {
		target.Parent.RemoveChild(target)
	}
	for body.FirstChild != nil {
		body.RemoveChild(body.FirstChild)
	}
	body.AppendChild(target)
	return nil
}

// OuterHTML serializes a single node subtree.
func (d *Document) OuterHTML(n *html.Node) string {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return ""
	}
	return buf.String()
}

// Serialize renders the whole document: a doctype declaration followed by
// minified markup. Minification (including embedded CSS and script) is best
// effort; on any failure the unminified form is returned.
func (d *Document) Serialize() string {
	var buf bytes.Buffer
	if err := html.Render(&buf, d.root); err != nil {
		return ""
	}
	out := buf.String()
	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(out)), "<!doctype") {
		out = "<!DOCTYPE html>" + out
	}
	if min, err := pageMinifier.String("text/html", out); err == nil {
		return min
	}
	return out
}

var pageMinifier = newMinifier()

func newMinifier() *minify.M {
	m := minify.New()
	m.Add("text/html", &minifyhtml.Minifier{
		KeepDocumentTags: true,
		KeepEndTags:      true,
		KeepQuotes:       true,
	})
	m.AddFunc("text/css", minifycss.Minify)
	m.AddFuncRegexp(regexp.MustCompile("^(application|text)/(x-)?(java|ecma)script$"), minifyjs.Minify)
	return m
}

// minifyCSS compacts a stylesheet, falling back to the input on error.
func minifyCSS(text string) string {
	if min, err := pageMinifier.String("text/css", text); err == nil {
		return min
	}
	return text
}

func compileGroup(selectors []string) []cascadia.Sel {
	var out []cascadia.Sel
	for _, raw := range selectors {
		s := strings.TrimSpace(raw)
		if s == "" {
			continue
		}
		group, err := cascadia.ParseGroup(s)
		if err != nil {
			continue
		}
		out = append(out, group...)
	}
	return out
}

func matchesAny(n *html.Node, sels []cascadia.Sel) bool {
	for _, sel := range sels {
		if sel.Match(n) {
			return true
		}
	}
	return false
}

func walkElements(n *html.Node, fn func(*html.Node)) {
	if n.Type == html.ElementNode {
		fn(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkElements(c, fn)
	}
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

func getAttr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, name) {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, name string) bool {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, name) {
			return true
		}
	}
	return false
}

func setAttr(n *html.Node, name, val string) {
	for i, a := range n.Attr {
		if strings.EqualFold(a.Key, name) {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: name, Val: val})
}

func removeAttr(n *html.Node, name string) {
	for i, a := range n.Attr {
		if strings.EqualFold(a.Key, name) {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}
