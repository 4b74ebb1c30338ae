package capture

import (
	"context"
	"log"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Thumbnail URL markers distinguishing the two placeholder kinds.
const (
	gifThumbMarker   = "tweet_video_thumb"
	videoThumbMarker = "ext_tw_video_thumb"
)

// videoAncestorDepth is a structural precondition on the expected markup:
// the playable element replaces the wrapper exactly three ancestors above
// the matched thumbnail image. Pages that nest the thumbnail differently
// are left untouched.
const videoAncestorDepth = 3

// VideoEmbedder swaps known placeholder thumbnails for playable media
// elements using an externally resolved media URL.
type VideoEmbedder struct {
	doc      *Document
	resolver MediaResolver
	logger   *log.Logger
}

// NewVideoEmbedder binds an embedder to a document and resolver.
func NewVideoEmbedder(doc *Document, resolver MediaResolver, logger *log.Logger) *VideoEmbedder {
	if logger == nil {
		logger = log.Default()
	}
	return &VideoEmbedder{doc: doc, resolver: resolver, logger: logger}
}

// Embed detects at most one thumbnail kind for the tweet: a muted-loop gif
// thumb or a full video thumb. On a successful lookup the surrounding
// wrapper becomes a video element; a lookup yielding nothing leaves the
// thumbnail as is.
func (v *VideoEmbedder) Embed(ctx context.Context, tweetID string) {
	if v.resolver == nil || tweetID == "" {
		return
	}
	if thumb := v.doc.First(`img[src*="` + gifThumbMarker + `"]`); thumb != nil {
		v.replace(ctx, tweetID, thumb, true)
		return
	}
	if thumb := v.doc.First(`img[src*="` + videoThumbMarker + `"]`); thumb != nil {
		v.replace(ctx, tweetID, thumb, false)
	}
}

func (v *VideoEmbedder) replace(ctx context.Context, tweetID string, thumb *html.Node, gif bool) {
	media, err := v.resolver.ResolveTweetMedia(ctx, tweetID)
	if err != nil {
		v.logger.Printf("VIDEO lookup %s: %v", tweetID, err)
		return
	}
	if media == nil || media.URL == "" {
		return
	}
	target := thumb
	for i := 0; i < videoAncestorDepth; i++ {
		target = target.Parent
		if target == nil || target.Type != html.ElementNode {
			v.logger.Printf("VIDEO skip %s: unexpected thumbnail nesting", tweetID)
			return
		}
	}

	video := &html.Node{
		Type:     html.ElementNode,
		Data:     "video",
		DataAtom: atom.Video,
		Attr: []html.Attribute{
			{Key: "src", Val: media.URL},
			{Key: "poster", Val: getAttr(thumb, "src")},
			{Key: "playsinline", Val: ""},
		},
	}
	if gif {
		setAttr(video, "autoplay", "")
		setAttr(video, "loop", "")
		setAttr(video, "muted", "")
	} else {
		setAttr(video, "controls", "")
		setAttr(video, "preload", "none")
	}
	parent := target.Parent
	parent.InsertBefore(video, target)
	parent.RemoveChild(target)
}
