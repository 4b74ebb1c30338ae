package capture

import (
	"context"
	"fmt"
	"sync"
)

// fakeFetcher serves canned bodies keyed by URL.
type fakeFetcher struct {
	mu    sync.Mutex
	texts map[string]string
	bytes map[string][]byte
	types map[string]string
	calls map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		texts: make(map[string]string),
		bytes: make(map[string][]byte),
		types: make(map[string]string),
		calls: make(map[string]int),
	}
}

func (f *fakeFetcher) FetchText(ctx context.Context, url string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[url]++
	text, ok := f.texts[url]
	if !ok {
		return "", &FetchError{URL: url, Status: 404}
	}
	return text, nil
}

func (f *fakeFetcher) FetchBytes(ctx context.Context, url string) ([]byte, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[url]++
	body, ok := f.bytes[url]
	if !ok {
		return nil, "", &FetchError{URL: url, Status: 404}
	}
	mt := f.types[url]
	if mt == "" {
		mt = "application/octet-stream"
	}
	return body, mt, nil
}

func (f *fakeFetcher) fetchCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

// fakePersister returns deterministic local refs and counts persists.
type fakePersister struct {
	mu    sync.Mutex
	fail  map[string]bool
	calls map[string]int
	seq   int
}

func newFakePersister() *fakePersister {
	return &fakePersister{fail: make(map[string]bool), calls: make(map[string]int)}
}

func (p *fakePersister) Persist(ctx context.Context, url string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[url]++
	if p.fail[url] {
		return "", &StoreError{URL: url, Err: fmt.Errorf("forced failure")}
	}
	p.seq++
	return fmt.Sprintf("resources/r%d.bin", p.seq), nil
}

func (p *fakePersister) persistCount(url string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[url]
}

func (p *fakePersister) totalPersists() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.calls {
		n += c
	}
	return n
}
