package capture

import (
	"strings"
	"testing"
)

const docFixture = `<!DOCTYPE html>
<html><head><title>t</title></head><body>
<div id="main"><img src="a.png"><a href="x"></a></div>
<link rel="stylesheet" href="s.css">
<link rel="canonical" href="c">
</body></html>`

func TestSelectUnionAndExclusion(t *testing.T) {
	doc, err := NewDocument(docFixture, "https://example.com/page/")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	got := doc.Select("img", "a")
	if len(got) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(got))
	}
	if got[0].Data != "img" || got[1].Data != "a" {
		t.Fatalf("expected document order img,a got %s,%s", got[0].Data, got[1].Data)
	}

	links := doc.SelectExcluding([]string{"link[href]"}, []string{"link[rel~=canonical]"})
	if len(links) != 1 {
		t.Fatalf("expected 1 link after exclusion, got %d", len(links))
	}
	if getAttr(links[0], "rel") != "stylesheet" {
		t.Fatalf("wrong link survived exclusion: %s", getAttr(links[0], "rel"))
	}
}

func TestSelectDeduplicatesAcrossSelectors(t *testing.T) {
	doc, err := NewDocument(`<div class="a b"></div>`, "https://example.com/")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := doc.Select(".a", ".b", "div"); len(got) != 1 {
		t.Fatalf("expected union dedup to 1 node, got %d", len(got))
	}
}

func TestResolve(t *testing.T) {
	doc, err := NewDocument("<p></p>", "https://example.com/dir/page.html")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := doc.Resolve("../img.png"); got != "https://example.com/img.png" {
		t.Fatalf("resolve: got %s", got)
	}
	if got := doc.Resolve("https://other.net/x"); got != "https://other.net/x" {
		t.Fatalf("absolute passthrough: got %s", got)
	}
}

func TestSerializeEmitsDoctypeAndMinifies(t *testing.T) {
	doc, err := NewDocument("<html><head></head><body>  <p>  hi  </p>  </body></html>", "https://example.com/")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	out := doc.Serialize()
	if !strings.HasPrefix(strings.ToLower(out), "<!doctype") {
		t.Fatalf("missing doctype prefix: %q", out[:20])
	}
	if strings.Contains(out, "<p>  hi") {
		t.Fatalf("markup not minified: %q", out)
	}
}

func TestSetRootCropsToSubtree(t *testing.T) {
	doc, err := NewDocument(`<html><body><nav>menu</nav><article id="keep"><p>body</p></article></body></html>`, "https://example.com/")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := doc.SetRoot("#keep"); err != nil {
		t.Fatalf("set root: %v", err)
	}
	out := doc.Serialize()
	if strings.Contains(out, "<nav>") {
		t.Fatalf("cropped content still present: %q", out)
	}
	if !strings.Contains(out, `id="keep"`) {
		t.Fatalf("kept subtree missing: %q", out)
	}
}

func TestSetRootNoMatch(t *testing.T) {
	doc, err := NewDocument("<p></p>", "https://example.com/")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := doc.SetRoot("#missing"); err == nil {
		t.Fatal("expected error for missing selector")
	}
}

func TestMinifyCSSFallsBackOnBadInput(t *testing.T) {
	if got := minifyCSS(".a { color: red; }"); got != ".a{color:red}" {
		t.Fatalf("minify: got %q", got)
	}
	// Best effort: output is never empty for non-empty input.
	if got := minifyCSS("@not-css {{{"); got == "" {
		t.Fatal("expected fallback text, got empty")
	}
}
