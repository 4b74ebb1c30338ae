package capture

import (
	"strings"
	"testing"
)

func TestFrameEmbedSplicesCapture(t *testing.T) {
	markup := `<html><body>
<iframe src="https://example.com/widget" data-frame-uuid="abc-123"></iframe>
</body></html>`
	doc, err := NewDocument(markup, "https://example.com/")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	NewFrameEmbedder(doc, nil).Embed([]FrameCapture{
		{UUID: "abc-123", HTML: "<html><body><p>inner</p></body></html>"},
	})

	frame := doc.First("iframe")
	if frame == nil {
		t.Fatal("iframe gone")
	}
	if hasAttr(frame, FrameUUIDAttr) {
		t.Fatal("correlation tag should be removed")
	}
	if hasAttr(frame, "src") {
		t.Fatal("live src should be removed")
	}
	if got := getAttr(frame, OrigSrcAttr); got != "https://example.com/widget" {
		t.Fatalf("provenance: %q", got)
	}
	if !strings.Contains(getAttr(frame, "srcdoc"), "<p>inner</p>") {
		t.Fatalf("srcdoc: %q", getAttr(frame, "srcdoc"))
	}
}

func TestFrameEmbedMissingPlaceholderDropped(t *testing.T) {
	doc, err := NewDocument("<html><body></body></html>", "https://example.com/")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	// Must not panic or mutate anything.
	NewFrameEmbedder(doc, nil).Embed([]FrameCapture{{UUID: "nope", HTML: "<p></p>"}})
	if doc.First("iframe") != nil {
		t.Fatal("no iframe expected")
	}
}

func TestFrameEmbedEmptyUUIDIgnored(t *testing.T) {
	markup := `<html><body><iframe data-frame-uuid=""></iframe></body></html>`
	doc, err := NewDocument(markup, "https://example.com/")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	NewFrameEmbedder(doc, nil).Embed([]FrameCapture{{UUID: "", HTML: "<p>x</p>"}})
	if hasAttr(doc.First("iframe"), "srcdoc") {
		t.Fatal("empty uuid must not match")
	}
}
