package search

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/renderinc/content-schedule/internal/storage"
)

var now = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func at(t time.Time) *time.Time { return &t }

func openTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := Open(filepath.Join(t.TempDir(), "bleve"))
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	t.Cleanup(func() { idx.Close() })
	return idx
}

func indexDocs(t *testing.T, idx *Index, docs ...*storage.Document) {
	t.Helper()
	for _, doc := range docs {
		if err := idx.IndexDocument(NewIndexedDocument(doc)); err != nil {
			t.Fatalf("index %s: %v", doc.ID, err)
		}
	}
}

func doc(id string, embargo, expire *time.Time) *storage.Document {
	return &storage.Document{
		ID:           id,
		Title:        "Kubernetes runbook " + id,
		Content:      "How to restart the kubernetes cluster",
		URL:          "https://docs.example.com/" + id,
		Topics:       `["ops"]`,
		EmbargoUntil: embargo,
		ExpireAfter:  expire,
	}
}

func resultIDs(results []*SearchResult) map[string]*SearchResult {
	out := make(map[string]*SearchResult, len(results))
	for _, r := range results {
		out[r.ID] = r
	}
	return out
}

func TestSearchWindowFilter(t *testing.T) {
	idx := openTestIndex(t)
	indexDocs(t, idx,
		doc("open", nil, nil),
		doc("embargoed", at(now.Add(time.Hour)), nil),
		doc("lifted", at(now.Add(-time.Hour)), nil),
		doc("expired", nil, at(now.Add(-time.Hour))),
		doc("expiring", nil, at(now.Add(time.Hour))),
		doc("boundary", at(now), nil),
	)

	all, err := idx.Search("kubernetes", 20, nil)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(all) != 6 {
		t.Fatalf("expected 6 unfiltered results, got %d", len(all))
	}

	visible, err := idx.Search("kubernetes", 20, &WindowFilter{Now: now})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	got := resultIDs(visible)
	for _, id := range []string{"open", "lifted", "expiring"} {
		if got[id] == nil {
			t.Fatalf("expected %s in results, got %v", id, got)
		}
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 visible results, got %d", len(got))
	}

	expiring := got["expiring"]
	if expiring.EmbargoUntil != nil {
		t.Fatalf("expected no embargo on result, got %v", expiring.EmbargoUntil)
	}
	if expiring.ExpireAfter == nil || !expiring.ExpireAfter.Equal(now.Add(time.Hour)) {
		t.Fatalf("expected expiry %v, got %v", now.Add(time.Hour), expiring.ExpireAfter)
	}
}

func TestRebuildIndexesLiveDocuments(t *testing.T) {
	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	for _, d := range []*storage.Document{doc("a", nil, nil), doc("b", nil, nil), doc("draft-only", nil, nil)} {
		d.ContentHash = "h"
		d.UpdatedAt = now
		d.SyncedAt = now
		if err := db.Upsert(d); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	for _, id := range []string{"a", "b"} {
		if err := db.Publish(id, now); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}

	idx := openTestIndex(t)
	indexDocs(t, idx, doc("stale", nil, nil))

	var calls int
	if err := idx.Rebuild(db, func(current, total int) { calls++ }); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 progress calls, got %d", calls)
	}

	count, err := idx.Count()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 indexed documents, got %d", count)
	}
}

func TestSearchResultIsRecord(t *testing.T) {
	r := &SearchResult{ExpireAfter: at(now)}
	embargo, expire := r.Schedule()
	if embargo != nil || expire == nil {
		t.Fatalf("unexpected window %v / %v", embargo, expire)
	}
	if !r.IsPublished() || r.RecordType() != storage.RecordTypeDocument {
		t.Fatal("expected search results to be published documents")
	}
}
