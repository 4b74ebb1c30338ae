package capture

import (
	"context"
	"log"
	"strings"

	"golang.org/x/net/html"
)

// Provenance attributes keep the pre-rewrite reference in the serialized
// artifact for downstream consumers.
const (
	OrigSrcAttr  = "data-orig-src"
	OrigHrefAttr = "data-orig-href"
)

var rewriteInclude = []string{"[src]", "link[href]"}

// Anchors and plain containers never carry persistable resources; relation
// links point at siblings of the page, not content; stylesheet links and
// frames are owned by their dedicated pipeline stages.
var rewriteExclude = []string{
	"a",
	"iframe",
	"frame",
	"link[rel~=alternate]",
	"link[rel~=canonical]",
	"link[rel~=prev]",
	"link[rel~=next]",
	"link[rel~=stylesheet]",
}

// Rewrite records one applied reference rewrite.
type Rewrite struct {
	Attr     string
	Original string
	Current  string
}

// Rewriter resolves resource-bearing attributes against the document base,
// queues them into a ResourceStore as one batch, and rewrites the live
// attributes to local references once the batch settles.
type Rewriter struct {
	doc    *Document
	store  *ResourceStore
	logger *log.Logger

	// NoStoring records provenance and normalizes references without
	// fetching or rewriting to local paths.
	NoStoring bool

	rewrites []Rewrite
}

// NewRewriter binds a rewriter to a document and store.
func NewRewriter(doc *Document, store *ResourceStore, logger *log.Logger) *Rewriter {
	if logger == nil {
		logger = log.Default()
	}
	return &Rewriter{doc: doc, store: store, logger: logger}
}

// Rewrites returns the rewrites applied by the last Run call.
func (r *Rewriter) Rewrites() []Rewrite { return r.rewrites }

// Run walks the tree once, submits all discovered resources as one batch and
// waits for the batch to settle. Per-resource failures come back as errors;
// the affected attributes keep their absolute URL so the artifact degrades
// to a live external reference.
func (r *Rewriter) Run(ctx context.Context) []error {
	r.rewrites = nil
	for _, n := range r.doc.SelectExcluding(rewriteInclude, rewriteExclude) {
		r.visit(n)
	}
	if r.NoStoring {
		return nil
	}
	return r.store.Process(ctx)
}

func (r *Rewriter) visit(n *html.Node) {
	attr := "src"
	prov := OrigSrcAttr
	if !hasAttr(n, "src") {
		attr = "href"
		prov = OrigHrefAttr
	}
	val := strings.TrimSpace(getAttr(n, attr))
	if val == "" || strings.HasPrefix(strings.ToLower(val), "data:") {
		return
	}
	// Already rewritten in an earlier pass.
	if hasAttr(n, prov) {
		return
	}
	if hasAttr(n, "srcset") {
		// Responsive hints would need every candidate rewritten; the primary
		// source stays authoritative instead.
		removeAttr(n, "srcset")
	}

	setAttr(n, prov, val)
	abs := r.doc.Resolve(val)
	if abs == "" {
		return
	}
	setAttr(n, attr, abs)
	if r.NoStoring {
		return
	}
	node, attrName, original := n, attr, val
	r.store.Enqueue(abs, func(localRef string) {
		setAttr(node, attrName, localRef)
		r.rewrites = append(r.rewrites, Rewrite{Attr: attrName, Original: original, Current: localRef})
	})
}
