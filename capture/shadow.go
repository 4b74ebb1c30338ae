package capture

import (
	"bytes"
	"log"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ShadowDOMAttr carries a placeholder's serialized shadow-tree markup. The
// restore script re-attaches it as a live shadow root at artifact load.
const ShadowDOMAttr = "data-shadow-dom"

// ShadowDomOptimizer rewrites the style blocks captured inside shadow
// placeholders through the stylesheet pipeline.
type ShadowDomOptimizer struct {
	doc      *Document
	pipeline *StylesheetPipeline
	logger   *log.Logger
}

// NewShadowDomOptimizer binds an optimizer to a document and pipeline.
func NewShadowDomOptimizer(doc *Document, pipeline *StylesheetPipeline, logger *log.Logger) *ShadowDomOptimizer {
	if logger == nil {
		logger = log.Default()
	}
	return &ShadowDomOptimizer{doc: doc, pipeline: pipeline, logger: logger}
}

// Run processes every shadow placeholder concurrently: parse the recorded
// markup, pull the style blocks out in document order, optimize them, append
// the optimized blocks back and re-serialize into the attribute. Placeholders
// without recorded content are skipped. The returned sets list each
// placeholder's asset references, in placeholder document order, for the
// data-URL embedder.
func (o *ShadowDomOptimizer) Run() [][]string {
	placeholders := o.doc.Select("[" + ShadowDOMAttr + "]")
	if len(placeholders) == 0 {
		return nil
	}
	type result struct {
		markup string
		assets []string
		ok     bool
	}
	results := make([]result, len(placeholders))
	var wg sync.WaitGroup
	for i, n := range placeholders {
		content := getAttr(n, ShadowDOMAttr)
		if strings.TrimSpace(content) == "" {
			continue
		}
		wg.Add(1)
		go func(i int, content string) {
			defer wg.Done()
			markup, assets, err := o.optimizeShadowMarkup(content)
			if err != nil {
				o.logger.Printf("SHADOW skip: %v", err)
				return
			}
			results[i] = result{markup: markup, assets: assets, ok: true}
		}(i, content)
	}
	wg.Wait()

	var sets [][]string
	for i, n := range placeholders {
		if !results[i].ok {
			continue
		}
		setAttr(n, ShadowDOMAttr, results[i].markup)
		if len(results[i].assets) > 0 {
			sets = append(sets, results[i].assets)
		}
	}
	return sets
}

// optimizeShadowMarkup rewrites one placeholder's recorded markup. Style
// extraction order is fixed at collection time; optimization may complete in
// any order, the texts array keeps the re-append in document order.
func (o *ShadowDomOptimizer) optimizeShadowMarkup(content string) (string, []string, error) {
	container := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(strings.NewReader(content), container)
	if err != nil {
		return "", nil, err
	}
	for _, n := range nodes {
		container.AppendChild(n)
	}

	var styles []*html.Node
	walkElements(container, func(n *html.Node) {
		if n.DataAtom == atom.Style {
			styles = append(styles, n)
		}
	})
	texts := make([]string, len(styles))
	for i, s := range styles {
		var b strings.Builder
		for c := s.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				b.WriteString(c.Data)
			}
		}
		texts[i] = b.String()
		s.Parent.RemoveChild(s)
	}

	sheets := make([]*StyleSheet, len(texts))
	var wg sync.WaitGroup
	for i, text := range texts {
		wg.Add(1)
		go func(i int, text string) {
			defer wg.Done()
			sheet := o.pipeline.ExtractInline(text)
			o.pipeline.Optimize(sheet, o.doc.BaseURL())
			sheets[i] = sheet
		}(i, text)
	}
	wg.Wait()

	var assets []string
	for _, sheet := range sheets {
		style := &html.Node{Type: html.ElementNode, Data: "style", DataAtom: atom.Style}
		style.AppendChild(&html.Node{Type: html.TextNode, Data: sheet.OptimizedText})
		container.AppendChild(style)
		assets = append(assets, sheet.AssetURLs...)
	}

	var buf bytes.Buffer
	for c := container.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return "", nil, err
		}
	}
	return buf.String(), assets, nil
}
