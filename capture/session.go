package capture

import (
	"context"
	"fmt"
	"log"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Externals bundles the capabilities a session consumes.
type Externals struct {
	Fetcher Fetcher
	Store   Persister
	Media   MediaResolver
	Logger  *log.Logger
}

// Artifact is the final product of one capture session.
type Artifact struct {
	// HTML is the serialized document, doctype first.
	HTML string
	// Rewrites lists every attribute rewrite applied in place.
	Rewrites []Rewrite
	// DataList holds the embedded asset entries shipped in the bootstrap
	// script.
	DataList []DataListEntry
	// Errors collects the non-fatal per-resource failures of the run.
	Errors []error
}

// Session owns one document tree for the duration of a capture run. The
// tree is mutated in place by every stage and serialized once at the end.
type Session struct {
	doc      *Document
	opts     Options
	ext      Externals
	store    *ResourceStore
	pipeline *StylesheetPipeline
	embedder *DataURLEmbedder
	logger   *log.Logger
}

// NewSession parses the markup, runs registered plugins over the fresh
// document and prepares the pipeline stages.
func NewSession(markup, baseURL string, opts Options, ext Externals) (*Session, error) {
	if ext.Fetcher == nil {
		return nil, fmt.Errorf("new session: fetcher is required")
	}
	if ext.Store == nil && !opts.NoStoring {
		return nil, fmt.Errorf("new session: store is required unless NoStoring is set")
	}
	if ext.Logger == nil {
		ext.Logger = log.Default()
	}
	doc, err := NewDocument(markup, baseURL)
	if err != nil {
		return nil, err
	}
	runPlugins(doc)
	return &Session{
		doc:      doc,
		opts:     opts,
		ext:      ext,
		store:    NewResourceStore(ext.Store, ext.Logger),
		pipeline: NewStylesheetPipeline(ext.Fetcher, ext.Logger),
		embedder: NewDataURLEmbedder(ext.Fetcher, ext.Logger),
		logger:   ext.Logger,
	}, nil
}

// Document exposes the owned tree, e.g. to plugins registered per session
// or to callers inspecting the result of a stage.
func (s *Session) Document() *Document { return s.doc }

// Capture runs the full pipeline and serializes the artifact. frames are
// prior captures of nested documents to splice into their placeholders.
// Per-resource failures degrade the affected reference and are reported in
// Artifact.Errors; only a broken document is fatal.
func (s *Session) Capture(ctx context.Context, frames []FrameCapture) (*Artifact, error) {
	art := &Artifact{}

	if s.opts.CropSelector != "" {
		if err := s.doc.SetRoot(s.opts.CropSelector); err != nil {
			return nil, err
		}
	}

	rewriter := NewRewriter(s.doc, s.store, s.logger)
	rewriter.NoStoring = s.opts.NoStoring
	art.Errors = append(art.Errors, rewriter.Run(ctx)...)
	art.Rewrites = rewriter.Rewrites()

	sheets := s.pipeline.Collect(ctx, s.doc)
	var cssTexts []string
	var assetSets [][]string
	for _, sheet := range sheets {
		s.pipeline.Optimize(sheet, s.doc.BaseURL())
		s.applySheet(sheet)
		cssTexts = append(cssTexts, sheet.OptimizedText)
		if len(sheet.AssetURLs) > 0 {
			assetSets = append(assetSets, sheet.AssetURLs)
		}
	}

	shadow := NewShadowDomOptimizer(s.doc, s.pipeline, s.logger)
	assetSets = append(assetSets, shadow.Run()...)

	frames, frameErrs := s.captureFrames(ctx, frames)
	art.Errors = append(art.Errors, frameErrs...)
	NewFrameEmbedder(s.doc, s.logger).Embed(frames)

	if s.opts.TweetID != "" {
		NewVideoEmbedder(s.doc, s.ext.Media, s.logger).Embed(ctx, s.opts.TweetID)
	}

	var extra string
	if s.opts.EmbedDataURLs {
		art.Errors = append(art.Errors, s.embedder.Add(ctx, assetSets, s.doc.BaseURL())...)
		art.DataList = s.embedder.Entries()
		extra = DataListScript(art.DataList, cssTexts)
	}
	InjectRestoreScript(s.doc, extra)

	art.HTML = s.doc.Serialize()
	return art, nil
}

// captureFrames runs the pipeline over each captured frame document so the
// spliced markup is as self-contained as the page itself. The store and
// embedder are shared, so a resource referenced by both the page and a frame
// is fetched and recorded once. A frame that cannot be captured keeps its
// raw markup and degrades to live references.
func (s *Session) captureFrames(ctx context.Context, frames []FrameCapture) ([]FrameCapture, []error) {
	if len(frames) == 0 {
		return frames, nil
	}
	var errs []error
	out := make([]FrameCapture, 0, len(frames))
	for _, fc := range frames {
		doc, err := NewDocument(fc.HTML, s.frameBase(fc.UUID))
		if err != nil {
			s.logger.Printf("FRAME raw %s: %v", fc.UUID, err)
			out = append(out, fc)
			continue
		}
		nested := &Session{
			doc:      doc,
			opts:     Options{NoStoring: s.opts.NoStoring, EmbedDataURLs: s.opts.EmbedDataURLs},
			ext:      s.ext,
			store:    s.store,
			pipeline: s.pipeline,
			embedder: s.embedder,
			logger:   s.logger,
		}
		art, err := nested.Capture(ctx, nil)
		if err != nil {
			s.logger.Printf("FRAME raw %s: %v", fc.UUID, err)
			out = append(out, fc)
			continue
		}
		errs = append(errs, art.Errors...)
		out = append(out, FrameCapture{UUID: fc.UUID, HTML: art.HTML})
	}
	return out, errs
}

// frameBase resolves a frame document's base URL from its placeholder's src,
// falling back to the page base.
func (s *Session) frameBase(uuid string) string {
	n := s.doc.First(fmt.Sprintf(`iframe[%s=%q]`, FrameUUIDAttr, uuid))
	if n != nil {
		if src := strings.TrimSpace(getAttr(n, "src")); src != "" {
			if abs := s.doc.Resolve(src); abs != "" {
				return abs
			}
		}
	}
	return s.doc.BaseURL().String()
}

// applySheet writes a sheet's optimized text back into the tree: inline
// blocks get their text replaced, linked sheets become inline style
// elements carrying the original href as provenance.
func (s *Session) applySheet(sheet *StyleSheet) {
	n := sheet.Node
	if n == nil {
		return
	}
	if n.Data == "style" {
		for n.FirstChild != nil {
			n.RemoveChild(n.FirstChild)
		}
		n.AppendChild(&html.Node{Type: html.TextNode, Data: sheet.OptimizedText})
		return
	}
	style := &html.Node{Type: html.ElementNode, Data: "style", DataAtom: atom.Style}
	if href := getAttr(n, "href"); href != "" {
		setAttr(style, OrigHrefAttr, href)
	}
	style.AppendChild(&html.Node{Type: html.TextNode, Data: sheet.OptimizedText})
	parent := n.Parent
	if parent == nil {
		return
	}
	parent.InsertBefore(style, n)
	parent.RemoveChild(n)
}
