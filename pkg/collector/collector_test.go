package collector

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"testing"

	"github.com/Zerr0-C00L/YTS-RD/pkg/identifier"
)

// fakeFetcher serves canned pages and records fetch order.
type fakeFetcher struct {
	mu      sync.Mutex
	pages   map[int][]string
	failing map[int]bool
	fetched []int
}

func (f *fakeFetcher) FetchPage(ctx context.Context, page, totalPages int) (*identifier.Set, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, page)
	f.mu.Unlock()

	if f.failing[page] {
		return identifier.NewSet(), fmt.Errorf("page %d: retries exhausted", page)
	}
	return identifier.FromSlice(f.pages[page]), nil
}

func TestCollect_UnionsAllPages(t *testing.T) {
	fetcher := &fakeFetcher{
		pages: map[int][]string{
			1: {"a1", "a2"},
			2: {"b1"},
			3: {"c1", "A2"}, // duplicate of a2, different case
		},
	}
	c := NewCatalog(fetcher, Config{MaxConcurrency: 2})

	set, failed, err := c.Collect(context.Background(), 1, 3, 3)
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if len(failed) != 0 {
		t.Errorf("failed pages = %v, want none", failed)
	}
	if set.Len() != 4 {
		t.Errorf("set.Len() = %d, want 4 after dedup", set.Len())
	}
	for _, h := range []string{"a1", "a2", "b1", "c1"} {
		if !set.Contains(h) {
			t.Errorf("set missing %s", h)
		}
	}

	sort.Ints(fetcher.fetched)
	if !reflect.DeepEqual(fetcher.fetched, []int{1, 2, 3}) {
		t.Errorf("fetched pages = %v, want [1 2 3]", fetcher.fetched)
	}
}

func TestCollect_FailedPageDegrades(t *testing.T) {
	fetcher := &fakeFetcher{
		pages: map[int][]string{
			1: {"a1"},
			3: {"c1"},
		},
		failing: map[int]bool{2: true},
	}
	c := NewCatalog(fetcher, DefaultConfig())

	set, failed, err := c.Collect(context.Background(), 1, 3, 3)
	if err != nil {
		t.Fatalf("Collect() error = %v, failed pages must not abort", err)
	}
	if !reflect.DeepEqual(failed, []int{2}) {
		t.Errorf("failed pages = %v, want [2]", failed)
	}
	if set.Len() != 2 || !set.Contains("a1") || !set.Contains("c1") {
		t.Errorf("set = %v, want a1+c1", set.Slice())
	}
}

func TestCollect_Idempotent(t *testing.T) {
	pages := map[int][]string{1: {"x1", "x2"}, 2: {"y1"}}

	first, _, err := NewCatalog(&fakeFetcher{pages: pages}, DefaultConfig()).
		Collect(context.Background(), 1, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	second, _, err := NewCatalog(&fakeFetcher{pages: pages}, DefaultConfig()).
		Collect(context.Background(), 1, 2, 2)
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(first.Slice(), second.Slice()) {
		t.Errorf("collections differ: %v vs %v", first.Slice(), second.Slice())
	}
}

func TestCollect_EmptyRange(t *testing.T) {
	c := NewCatalog(&fakeFetcher{}, DefaultConfig())

	set, failed, err := c.Collect(context.Background(), 5, 4, 10)
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if set.Len() != 0 || len(failed) != 0 {
		t.Errorf("empty range should collect nothing, got %d hashes", set.Len())
	}
}

func TestCollect_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fetcher := &fakeFetcher{pages: map[int][]string{1: {"a"}, 2: {"b"}}}
	c := NewCatalog(fetcher, Config{MaxConcurrency: 1})

	_, failed, err := c.Collect(ctx, 1, 2, 2)
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	// All pages fail with the context error instead of hanging.
	if len(failed) != 2 {
		t.Errorf("failed pages = %v, want both", failed)
	}
}
