package capture

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log"
	"net/url"
)

// DataListEntry pairs an original resource URL with its inline base64 form.
type DataListEntry struct {
	URL     string
	DataURL string
}

// DataURLEmbedder converts referenced assets into inline base64 payloads.
// Entries are deduplicated by original URL across the whole capture,
// including across nested documents sharing the same asset.
type DataURLEmbedder struct {
	fetcher Fetcher
	logger  *log.Logger
	seen    map[string]struct{}
	entries []DataListEntry
}

// NewDataURLEmbedder builds an embedder over the given fetch capability.
func NewDataURLEmbedder(f Fetcher, logger *log.Logger) *DataURLEmbedder {
	if logger == nil {
		logger = log.Default()
	}
	return &DataURLEmbedder{fetcher: f, logger: logger, seen: make(map[string]struct{})}
}

// Add embeds every URL across the given sets, in set-iteration order, with
// cross-set duplicates collapsed to a single entry. Relative URLs resolve
// against base. A fetch failure skips that entry and is reported; siblings
// are unaffected.
func (e *DataURLEmbedder) Add(ctx context.Context, sets [][]string, base *url.URL) []error {
	var errs []error
	for _, set := range sets {
		for _, raw := range set {
			abs := resolveAgainst(base, raw)
			if abs == "" {
				abs = raw
			}
			if _, dup := e.seen[abs]; dup {
				continue
			}
			body, mediaType, err := e.fetcher.FetchBytes(ctx, abs)
			if err != nil {
				e.logger.Printf("EMBED skip %s: %v", abs, err)
				errs = append(errs, err)
				continue
			}
			e.seen[abs] = struct{}{}
			e.entries = append(e.entries, DataListEntry{
				URL:     abs,
				DataURL: "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(body),
			})
		}
	}
	return errs
}

// Entries returns the flat ordered data list accumulated so far.
func (e *DataURLEmbedder) Entries() []DataListEntry { return e.entries }

// DataListScript serializes the data list and the parallel raw CSS texts
// into literal array expressions evaluable at artifact-load time:
//
//	const dataList = [[url, dataURL], ...];
//	const cssTexts = [cssText, ...];
//
// JSON escaping is a subset of JavaScript string literal syntax, so the
// emitted text is directly usable in a script element.
func DataListScript(entries []DataListEntry, cssTexts []string) string {
	pairs := make([][2]string, len(entries))
	for i, e := range entries {
		pairs[i] = [2]string{e.URL, e.DataURL}
	}
	pairsJSON, err := json.Marshal(pairs)
	if err != nil {
		pairsJSON = []byte("[]")
	}
	if cssTexts == nil {
		cssTexts = []string{}
	}
	textsJSON, err := json.Marshal(cssTexts)
	if err != nil {
		textsJSON = []byte("[]")
	}
	return "const dataList = " + string(pairsJSON) + ";\nconst cssTexts = " + string(textsJSON) + ";"
}
