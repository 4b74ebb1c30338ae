package capture

import (
	"strings"
	"testing"
)

func TestShadowOptimizeRewritesStyles(t *testing.T) {
	shadowHTML := `<style>.a { color: red; }</style><p>text</p><style>.b { color: blue; }</style>`
	doc, err := NewDocument(
		`<html><body><div data-shadow-dom='`+shadowHTML+`'></div></body></html>`,
		"https://example.com/")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	p := NewStylesheetPipeline(newFakeFetcher(), nil)
	NewShadowDomOptimizer(doc, p, nil).Run()

	got := getAttr(doc.First("["+ShadowDOMAttr+"]"), ShadowDOMAttr)
	if !strings.Contains(got, "<p>text</p>") {
		t.Fatalf("content lost: %q", got)
	}
	// Styles re-appended at the end, minified, in document order.
	iA := strings.Index(got, ".a{color:red}")
	iB := strings.Index(got, ".b{color:blue}")
	if iA == -1 || iB == -1 {
		t.Fatalf("optimized styles missing: %q", got)
	}
	if iA > iB {
		t.Fatalf("style order not preserved: %q", got)
	}
	if iP := strings.Index(got, "<p>"); iP > iA {
		t.Fatalf("styles should follow content after re-append: %q", got)
	}
}

func TestShadowOptimizeCollectsAssets(t *testing.T) {
	shadowHTML := `<style>.bg { background: url(/shadow.png); }</style>`
	doc, err := NewDocument(
		`<html><body><div data-shadow-dom='`+shadowHTML+`'></div></body></html>`,
		"https://example.com/page/")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	p := NewStylesheetPipeline(newFakeFetcher(), nil)
	sets := NewShadowDomOptimizer(doc, p, nil).Run()
	if len(sets) != 1 || len(sets[0]) != 1 || sets[0][0] != "https://example.com/shadow.png" {
		t.Fatalf("asset sets: %v", sets)
	}
}

func TestShadowOptimizeSkipsEmptyContent(t *testing.T) {
	doc, err := NewDocument(
		`<html><body><div data-shadow-dom=""></div><div data-shadow-dom="  "></div></body></html>`,
		"https://example.com/")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	p := NewStylesheetPipeline(newFakeFetcher(), nil)
	if sets := NewShadowDomOptimizer(doc, p, nil).Run(); sets != nil {
		t.Fatalf("expected no asset sets, got %v", sets)
	}
	if got := getAttr(doc.First("["+ShadowDOMAttr+"]"), ShadowDOMAttr); got != "" {
		t.Fatalf("empty placeholder mutated: %q", got)
	}
}

func TestShadowOptimizeManyPlaceholders(t *testing.T) {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 0; i < 8; i++ {
		b.WriteString(`<div data-shadow-dom='<style>.x { opacity: 1; }</style><span>s</span>'></div>`)
	}
	b.WriteString("</body></html>")
	doc, err := NewDocument(b.String(), "https://example.com/")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	p := NewStylesheetPipeline(newFakeFetcher(), nil)
	NewShadowDomOptimizer(doc, p, nil).Run()
	for _, n := range doc.Select("[" + ShadowDOMAttr + "]") {
		got := getAttr(n, ShadowDOMAttr)
		if !strings.Contains(got, ".x{opacity:1}") || !strings.Contains(got, "<span>s</span>") {
			t.Fatalf("placeholder not optimized: %q", got)
		}
	}
}
