package capture

import (
	"fmt"
	"log"
	"strings"
)

// FrameUUIDAttr correlates a placeholder iframe with a prior capture of the
// nested document.
const FrameUUIDAttr = "data-frame-uuid"

// FrameCapture is the serialized result of an earlier, independent capture
// of a nested frame document.
type FrameCapture struct {
	UUID string
	HTML string
}

// FrameEmbedder splices previously captured frame documents into their
// placeholder elements as inert deferred content.
type FrameEmbedder struct {
	doc    *Document
	logger *log.Logger
}

// NewFrameEmbedder binds an embedder to a document.
func NewFrameEmbedder(doc *Document, logger *log.Logger) *FrameEmbedder {
	if logger == nil {
		logger = log.Default()
	}
	return &FrameEmbedder{doc: doc, logger: logger}
}

// Embed locates every capture's placeholder, moves the captured markup into
// srcdoc and disarms the live reference. A capture whose placeholder is
// missing is dropped; the page structure may have changed between passes.
func (f *FrameEmbedder) Embed(captures []FrameCapture) {
	for _, c := range captures {
		if strings.TrimSpace(c.UUID) == "" {
			continue
		}
		sel := fmt.Sprintf(`iframe[%s=%q]`, FrameUUIDAttr, c.UUID)
		n := f.doc.First(sel)
		if n == nil {
			f.logger.Printf("FRAME drop %s: placeholder not found", c.UUID)
			continue
		}
		removeAttr(n, FrameUUIDAttr)
		if src := strings.TrimSpace(getAttr(n, "src")); src != "" {
			setAttr(n, OrigSrcAttr, src)
		}
		removeAttr(n, "src")
		setAttr(n, "srcdoc", c.HTML)
	}
}
