package capture

import (
	"context"
	"log"
	"sync"
)

const maxConcurrentPersists = 8

// ResourceTask names one absolute URL and the callback to run once the
// resource has a local reference. Consumed exactly once by the store.
type ResourceTask struct {
	URL        string
	OnResolved func(localRef string)
}

// ResourceStore batches resource acquisition. Within a session every unique
// absolute URL is fetched and persisted at most once; all tasks naming the
// same URL share the resulting local reference.
type ResourceStore struct {
	persister Persister
	logger    *log.Logger

	mu      sync.Mutex
	records map[string]string
	tasks   []ResourceTask
}

// NewResourceStore wraps a Persister in batch machinery.
func NewResourceStore(p Persister, logger *log.Logger) *ResourceStore {
	if logger == nil {
		logger = log.Default()
	}
	return &ResourceStore{
		persister: p,
		logger:    logger,
		records:   make(map[string]string),
	}
}

// Enqueue registers a task for the next Process call.
func (s *ResourceStore) Enqueue(url string, onResolved func(localRef string)) {
	if url == "" {
		return
	}
	s.mu.Lock()
	s.tasks = append(s.tasks, ResourceTask{URL: url, OnResolved: onResolved})
	s.mu.Unlock()
}

// Pending reports the number of queued tasks.
func (s *ResourceStore) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// LocalRef returns the local reference already recorded for url, if any.
func (s *ResourceStore) LocalRef(url string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ref, ok := s.records[url]
	return ref, ok
}

// Process settles the current batch: each unique URL is persisted once (URLs
// resolved in an earlier batch are reused, not refetched), then every
// callback fires exactly once with the shared local reference. Persist
// failures are reported per task and never abort sibling tasks; the
// callbacks of failed URLs are simply not invoked. Callbacks run on the
// calling goroutine, so tree mutation stays single-threaded.
func (s *ResourceStore) Process(ctx context.Context) []error {
	s.mu.Lock()
	batch := s.tasks
	s.tasks = nil
	s.mu.Unlock()
	if len(batch) == 0 {
		return nil
	}

	var unique []string
	seen := make(map[string]struct{}, len(batch))
	for _, t := range batch {
		if _, dup := seen[t.URL]; dup {
			continue
		}
		seen[t.URL] = struct{}{}
		s.mu.Lock()
		_, cached := s.records[t.URL]
		s.mu.Unlock()
		if !cached {
			unique = append(unique, t.URL)
		}
	}

	type outcome struct {
		ref string
		err error
	}
	results := make([]outcome, len(unique))
	sem := make(chan struct{}, maxConcurrentPersists)
	var wg sync.WaitGroup
	for i, u := range unique {
		wg.Add(1)
		go func(i int, u string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			ref, err := s.persister.Persist(ctx, u)
			results[i] = outcome{ref: ref, err: err}
		}(i, u)
	}
	wg.Wait()

	var errs []error
	failed := make(map[string]error)
	s.mu.Lock()
	for i, u := range unique {
		if results[i].err != nil {
			failed[u] = results[i].err
			continue
		}
		s.records[u] = results[i].ref
	}
	s.mu.Unlock()

	for _, u := range unique {
		if err, bad := failed[u]; bad {
			s.logger.Printf("STORE fail %s: %v", u, err)
		}
	}

	for _, t := range batch {
		if err, bad := failed[t.URL]; bad {
			errs = append(errs, err)
			continue
		}
		ref, ok := s.LocalRef(t.URL)
		if !ok || t.OnResolved == nil {
			continue
		}
		t.OnResolved(ref)
	}
	return errs
}
