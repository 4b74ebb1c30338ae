package capture

import (
	"context"
	"log"
	"net/url"
	"regexp"
	"strings"

	cssast "github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"
	"golang.org/x/net/html"
)

// StyleSheet is one extracted stylesheet. SourceURL is empty for inline
// style blocks. Created at extraction, mutated once by Optimize, then
// treated as immutable.
type StyleSheet struct {
	Node          *html.Node
	SourceURL     string
	RawText       string
	OptimizedText string
	// AssetURLs lists the absolute url(...) references found during
	// optimization, unique, in document order.
	AssetURLs []string
}

// StylesheetPipeline extracts, optimizes and rewrites stylesheets. Linked
// sheets resolve their url(...) references against the sheet's own location,
// inline blocks against the page base.
type StylesheetPipeline struct {
	fetcher Fetcher
	logger  *log.Logger
}

// NewStylesheetPipeline builds a pipeline over the given fetch capability.
func NewStylesheetPipeline(f Fetcher, logger *log.Logger) *StylesheetPipeline {
	if logger == nil {
		logger = log.Default()
	}
	return &StylesheetPipeline{fetcher: f, logger: logger}
}

// ExtractInline wraps inline style text as a one-element sheet.
func (p *StylesheetPipeline) ExtractInline(text string) *StyleSheet {
	return &StyleSheet{RawText: text}
}

// ExtractLinked fetches a linked stylesheet.
func (p *StylesheetPipeline) ExtractLinked(ctx context.Context, sheetURL string) (*StyleSheet, error) {
	text, err := p.fetcher.FetchText(ctx, sheetURL)
	if err != nil {
		return nil, err
	}
	return &StyleSheet{SourceURL: sheetURL, RawText: text}, nil
}

// Collect walks the document in order and extracts every stylesheet: inline
// style blocks and link[rel=stylesheet] references. A sheet that fails to
// fetch is skipped; it never blocks its siblings.
func (p *StylesheetPipeline) Collect(ctx context.Context, doc *Document) []*StyleSheet {
	var sheets []*StyleSheet
	for _, n := range doc.Select("style", "link[rel~=stylesheet]") {
		if n.Data == "style" {
			var text strings.Builder
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.TextNode {
					text.WriteString(c.Data)
				}
			}
			sheet := p.ExtractInline(text.String())
			sheet.Node = n
			sheets = append(sheets, sheet)
			continue
		}
		href := strings.TrimSpace(getAttr(n, "href"))
		if href == "" || strings.HasPrefix(strings.ToLower(href), "data:") {
			continue
		}
		abs := doc.Resolve(href)
		if abs == "" {
			continue
		}
		sheet, err := p.ExtractLinked(ctx, abs)
		if err != nil {
			p.logger.Printf("CSS skip %s: %v", abs, err)
			continue
		}
		sheet.Node = n
		sheets = append(sheets, sheet)
	}
	return sheets
}

// Optimize rewrites every url(...) reference in the sheet to its resolved
// absolute form, records the references for later embedding, and minifies
// the result. Minification is best effort; a sheet the minifier rejects
// keeps its rewritten-but-unminified text.
func (p *StylesheetPipeline) Optimize(sheet *StyleSheet, pageBase *url.URL) {
	base := pageBase
	if sheet.SourceURL != "" {
		if u, err := url.Parse(sheet.SourceURL); err == nil {
			base = u
		}
	}
	rewritten, assets := rewriteCSSURLs(sheet.RawText, base)
	sheet.AssetURLs = assets
	sheet.OptimizedText = minifyCSS(rewritten)
}

var cssURLPattern = regexp.MustCompile(`(?i)url\(\s*('[^']*'|"[^"]*"|[^'"()\s]+)\s*\)`)

// rewriteCSSURLs resolves every url(...) token against base and returns the
// rewritten text plus the ordered unique list of absolute references.
// Structure-aware enumeration goes through the CSS parser when possible so
// that only real declaration values are collected; the textual substitution
// itself is positional and keeps the sheet byte-comparable outside the
// rewritten tokens.
func rewriteCSSURLs(text string, base *url.URL) (string, []string) {
	seen := make(map[string]struct{})
	var assets []string
	record := func(abs string) {
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		assets = append(assets, abs)
	}

	out := cssURLPattern.ReplaceAllStringFunc(text, func(match string) string {
		inner := trimCSSQuotes(cssURLPattern.FindStringSubmatch(match)[1])
		if skipCSSRef(inner) {
			return match
		}
		abs := resolveAgainst(base, inner)
		if abs == "" {
			return match
		}
		record(abs)
		return "url(" + quoteCSSURL(abs) + ")"
	})

	// Re-enumerate through the parser when the sheet is well formed; parse
	// failure keeps the positional scan's list (isolation, not an error).
	if parsed, err := parser.Parse(text); err == nil {
		ordered := collectParsedRefs(parsed.Rules, base)
		if len(ordered) == len(assets) {
			assets = ordered
		}
	}
	return out, assets
}

func collectParsedRefs(rules []*cssast.Rule, base *url.URL) []string {
	seen := make(map[string]struct{})
	var assets []string
	var walk func([]*cssast.Rule)
	walk = func(list []*cssast.Rule) {
		for _, rule := range list {
			if rule == nil {
				continue
			}
			if rule.EmbedsRules() {
				walk(rule.Rules)
				continue
			}
			values := make([]string, 0, len(rule.Declarations)+1)
			if rule.Kind == cssast.AtRule {
				values = append(values, rule.Prelude)
			}
			for _, decl := range rule.Declarations {
				if decl != nil {
					values = append(values, decl.Value)
				}
			}
			for _, v := range values {
				for _, m := range cssURLPattern.FindAllStringSubmatch(v, -1) {
					inner := trimCSSQuotes(m[1])
					if skipCSSRef(inner) {
						continue
					}
					abs := resolveAgainst(base, inner)
					if abs == "" {
						continue
					}
					if _, dup := seen[abs]; dup {
						continue
					}
					seen[abs] = struct{}{}
					assets = append(assets, abs)
				}
			}
		}
	}
	walk(rules)
	return assets
}

func skipCSSRef(ref string) bool {
	r := strings.ToLower(strings.TrimSpace(ref))
	return r == "" || strings.HasPrefix(r, "data:") || strings.HasPrefix(r, "#")
}

func trimCSSQuotes(v string) string {
	v = strings.TrimSpace(v)
	if len(v) >= 2 && (v[0] == '\'' || v[0] == '"') && v[len(v)-1] == v[0] {
		return v[1 : len(v)-1]
	}
	return v
}

func quoteCSSURL(abs string) string {
	if strings.ContainsAny(abs, "'() ") {
		return `"` + abs + `"`
	}
	return abs
}

func resolveAgainst(base *url.URL, ref string) string {
	if base == nil {
		return ref
	}
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return ""
	}
	return base.ResolveReference(u).String()
}
