package capture

import (
	"context"
	"fmt"
)

// Fetcher retrieves external resource content for the pipeline.
type Fetcher interface {
	// FetchText retrieves textual content (stylesheets, documents).
	FetchText(ctx context.Context, url string) (string, error)
	// FetchBytes retrieves binary content plus its declared media type.
	FetchBytes(ctx context.Context, url string) ([]byte, string, error)
}

// Persister durably saves one fetched resource and returns a stable local
// reference. The filesystem layout is the implementation's concern.
type Persister interface {
	Persist(ctx context.Context, url string) (string, error)
}

// TweetMedia is the result of an external media-URL lookup.
type TweetMedia struct {
	URL string
}

// MediaResolver looks up the playable media URL for a tweet. A nil result
// with nil error means the tweet has no resolvable media.
type MediaResolver interface {
	ResolveTweetMedia(ctx context.Context, tweetID string) (*TweetMedia, error)
}

// FetchError reports a failed resource retrieval.
type FetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// StoreError reports a failed persist of a fetched resource.
type StoreError struct {
	URL string
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("store %s: %v", e.URL, e.Err) }

func (e *StoreError) Unwrap() error { return e.Err }
