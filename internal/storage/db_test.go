package storage

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/renderinc/content-schedule/internal/versioning"
	"github.com/renderinc/content-schedule/internal/visibility"
)

var now = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func at(t time.Time) *time.Time { return &t }

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newDoc(id string, embargo, expire *time.Time) *Document {
	return &Document{
		ID:           id,
		Title:        "Doc " + id,
		Content:      "# " + id,
		ContentHash:  "hash-" + id,
		UpdatedAt:    now.Add(-time.Hour),
		SyncedAt:     now,
		EmbargoUntil: embargo,
		ExpireAfter:  expire,
	}
}

func mustUpsert(t *testing.T, db *DB, docs ...*Document) {
	t.Helper()
	for _, doc := range docs {
		if err := db.Upsert(doc); err != nil {
			t.Fatalf("upsert %s: %v", doc.ID, err)
		}
	}
}

func mustPublish(t *testing.T, db *DB, ids ...string) {
	t.Helper()
	for _, id := range ids {
		if err := db.Publish(id, now); err != nil {
			t.Fatalf("publish %s: %v", id, err)
		}
	}
}

func ids(docs []*Document) map[string]bool {
	out := make(map[string]bool, len(docs))
	for _, doc := range docs {
		out[doc.ID] = true
	}
	return out
}

func TestUpsertAndGet(t *testing.T) {
	db := openTestDB(t)

	embargo := at(now.Add(24 * time.Hour))
	mustUpsert(t, db, newDoc("a", embargo, nil))

	doc, err := db.Get(versioning.Draft, "a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc == nil {
		t.Fatal("expected draft document")
	}
	if doc.EmbargoUntil == nil || !doc.EmbargoUntil.Equal(*embargo) {
		t.Fatalf("expected embargo %v, got %v", embargo, doc.EmbargoUntil)
	}
	if doc.ExpireAfter != nil {
		t.Fatalf("expected no expiry, got %v", doc.ExpireAfter)
	}
	if doc.Published {
		t.Fatal("expected unpublished draft")
	}

	live, err := db.Get(versioning.Live, "a")
	if err != nil {
		t.Fatalf("get live: %v", err)
	}
	if live != nil {
		t.Fatal("expected no live snapshot before publish")
	}

	missing, err := db.Get(versioning.Draft, "missing")
	if err != nil || missing != nil {
		t.Fatalf("expected nil, nil for missing doc, got %v, %v", missing, err)
	}
}

func TestPublishCopiesDraft(t *testing.T) {
	db := openTestDB(t)
	mustUpsert(t, db, newDoc("a", nil, at(now.Add(time.Hour))))
	mustPublish(t, db, "a")

	live, err := db.Get(versioning.Live, "a")
	if err != nil || live == nil {
		t.Fatalf("expected live doc, got %v, %v", live, err)
	}
	if !live.Published {
		t.Fatal("expected live doc to report published")
	}
	if live.PublishedAt == nil || !live.PublishedAt.Equal(now) {
		t.Fatalf("expected published_at %v, got %v", now, live.PublishedAt)
	}

	draft, err := db.Get(versioning.Draft, "a")
	if err != nil {
		t.Fatalf("get draft: %v", err)
	}
	if !draft.Published {
		t.Fatal("expected draft to see live snapshot")
	}

	// Editing the draft window leaves the live snapshot alone.
	if err := db.SetSchedule("a", at(now.Add(48*time.Hour)), nil); err != nil {
		t.Fatalf("set schedule: %v", err)
	}
	live, _ = db.Get(versioning.Live, "a")
	if live.EmbargoUntil != nil {
		t.Fatalf("expected live embargo unchanged, got %v", live.EmbargoUntil)
	}
	mustPublish(t, db, "a")
	live, _ = db.Get(versioning.Live, "a")
	if live.EmbargoUntil == nil || live.ExpireAfter != nil {
		t.Fatalf("expected republished window, got %v / %v", live.EmbargoUntil, live.ExpireAfter)
	}

	published, err := db.IsPublished("a")
	if err != nil || !published {
		t.Fatalf("expected published, got %v, %v", published, err)
	}
	if err := db.Unpublish("a"); err != nil {
		t.Fatalf("unpublish: %v", err)
	}
	published, err = db.IsPublished("a")
	if err != nil || published {
		t.Fatalf("expected unpublished, got %v, %v", published, err)
	}
}

func TestMissingDocumentUpdates(t *testing.T) {
	db := openTestDB(t)

	if err := db.Publish("nope", now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound from publish, got %v", err)
	}
	if err := db.Unpublish("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound from unpublish, got %v", err)
	}
	if err := db.SetSchedule("nope", nil, nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound from set schedule, got %v", err)
	}
}

func TestListAppliesVisibilityPredicate(t *testing.T) {
	db := openTestDB(t)

	mustUpsert(t, db,
		newDoc("open", nil, nil),
		newDoc("embargoed", at(now.Add(time.Hour)), nil),
		newDoc("embargo-lifted", at(now.Add(-time.Hour)), nil),
		newDoc("expired", nil, at(now.Add(-time.Second))),
		newDoc("expiring", nil, at(now.Add(time.Second))),
		newDoc("inverted", at(now.Add(time.Hour)), at(now.Add(-time.Hour))),
	)
	archived := newDoc("archived", nil, nil)
	archived.ArchivedAt = at(now.Add(-time.Hour))
	mustUpsert(t, db, archived)
	mustPublish(t, db, "open", "embargoed", "embargo-lifted", "expired", "expiring", "inverted", "archived")

	q := &Query{Stage: versioning.Live}
	if p := visibility.BuildPredicate(TableFor(q.Stage), now, visibility.AccessContext{}); p != nil {
		q.Where(p.SQL, p.Args...)
	}
	docs, err := db.List(q)
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	got := ids(docs)
	want := []string{"open", "embargo-lifted", "expiring"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for _, id := range want {
		if !got[id] {
			t.Fatalf("expected %s in %v", id, got)
		}
	}
}

func TestListPredicateIsConjoined(t *testing.T) {
	db := openTestDB(t)

	mustUpsert(t, db, newDoc("a", nil, nil), newDoc("b", nil, nil), newDoc("c", at(now.Add(time.Hour)), nil))

	q := &Query{Stage: versioning.Draft}
	q.Where("title <> ?", "Doc b")
	p := visibility.BuildPredicate(TableFor(q.Stage), now, visibility.AccessContext{Stage: versioning.Draft})
	if p == nil {
		t.Fatal("expected predicate for unprivileged draft stage")
	}
	q.Where(p.SQL, p.Args...)

	docs, err := db.List(q)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != "a" {
		t.Fatalf("expected only a, got %v", ids(docs))
	}
}

func TestListWithoutPredicateShowsEverything(t *testing.T) {
	db := openTestDB(t)

	mustUpsert(t, db, newDoc("a", at(now.Add(time.Hour)), nil), newDoc("b", nil, at(now.Add(-time.Hour))))

	admin := visibility.AccessContext{Administrative: true, Stage: versioning.Draft}
	q := &Query{Stage: versioning.Draft, Limit: 10}
	if p := visibility.BuildPredicate(TableFor(q.Stage), now, admin); p != nil {
		t.Fatalf("expected no predicate for admin, got %q", p.SQL)
	}
	docs, err := db.List(q)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 docs, got %d", len(docs))
	}
}

func TestPredicateMatchesAcrossTimeZones(t *testing.T) {
	db := openTestDB(t)

	zone := time.FixedZone("UTC+9", 9*60*60)
	mustUpsert(t, db, newDoc("a", at(now.Add(-time.Minute).In(zone)), nil))

	q := &Query{Stage: versioning.Draft}
	p := visibility.BuildPredicate(DraftTable, now, visibility.AccessContext{})
	q.Where(p.SQL, p.Args...)
	docs, err := db.List(q)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected embargo in another zone to be lifted, got %d docs", len(docs))
	}
}

func TestCountAndContentHash(t *testing.T) {
	db := openTestDB(t)
	mustUpsert(t, db, newDoc("a", nil, nil), newDoc("b", nil, nil))
	mustPublish(t, db, "a")

	if n, err := db.Count(versioning.Draft); err != nil || n != 2 {
		t.Fatalf("expected 2 drafts, got %d, %v", n, err)
	}
	if n, err := db.Count(versioning.Live); err != nil || n != 1 {
		t.Fatalf("expected 1 live, got %d, %v", n, err)
	}

	hash, err := db.GetContentHash("a")
	if err != nil || hash != "hash-a" {
		t.Fatalf("expected hash-a, got %q, %v", hash, err)
	}
	hash, err = db.GetContentHash("missing")
	if err != nil || hash != "" {
		t.Fatalf("expected empty hash, got %q, %v", hash, err)
	}
}

func TestAnnouncements(t *testing.T) {
	db := openTestDB(t)

	for _, a := range []*Announcement{
		{ID: "now", Title: "Now", Body: "b", CreatedAt: now.Add(-time.Hour)},
		{ID: "later", Title: "Later", Body: "b", CreatedAt: now, EmbargoUntil: at(now.Add(time.Hour))},
		{ID: "gone", Title: "Gone", Body: "b", CreatedAt: now, ExpireAfter: at(now.Add(-time.Hour))},
	} {
		if err := db.UpsertAnnouncement(a); err != nil {
			t.Fatalf("upsert announcement: %v", err)
		}
	}

	all, err := db.ListAnnouncements(nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 announcements, got %d", len(all))
	}

	q := &Query{}
	p := visibility.BuildPredicate(AnnouncementTable, now, visibility.AccessContext{})
	q.Where(p.SQL, p.Args...)
	visible, err := db.ListAnnouncements(q)
	if err != nil {
		t.Fatalf("list visible: %v", err)
	}
	if len(visible) != 1 || visible[0].ID != "now" {
		t.Fatalf("expected only the current announcement, got %d", len(visible))
	}
	if !visible[0].IsPublished() || IsVersioned(visible[0].RecordType()) {
		t.Fatal("expected announcements to be unversioned and published")
	}
}
