package capture

import (
	"os"
	"strings"
)

// Options controls one capture session.
type Options struct {
	// NoStoring records provenance and normalizes references without
	// fetching content. Used when only relationship metadata is wanted.
	NoStoring bool
	// EmbedDataURLs inlines CSS-referenced assets as base64 data in the
	// artifact's bootstrap script.
	EmbedDataURLs bool
	// CropSelector, when set, restricts the artifact to the first matching
	// element's subtree.
	CropSelector string
	// TweetID enables playable-media replacement of tweet thumbnails.
	TweetID string
}

// DefaultOptions populates options from environment variables.
func DefaultOptions() Options {
	return Options{
		NoStoring:     envBool("PAGEVAULT_NO_STORE"),
		EmbedDataURLs: !envBool("PAGEVAULT_NO_EMBED"),
		CropSelector:  strings.TrimSpace(os.Getenv("PAGEVAULT_CROP")),
		TweetID:       strings.TrimSpace(os.Getenv("PAGEVAULT_TWEET_ID")),
	}
}

func envBool(key string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
