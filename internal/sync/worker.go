package sync

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/renderinc/content-schedule/internal/search"
	"github.com/renderinc/content-schedule/internal/storage"
	"github.com/renderinc/content-schedule/internal/versioning"
)

// Worker imports manifest documents into storage and the search index
type Worker struct {
	db          *storage.DB
	index       *search.Index // nil skips indexing
	concurrency int
	now         func() time.Time
}

// NewWorker creates a new sync worker
func NewWorker(db *storage.DB, index *search.Index, concurrency int) *Worker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Worker{
		db:          db,
		index:       index,
		concurrency: concurrency,
		now:         time.Now,
	}
}

// Stats holds sync statistics
type Stats struct {
	TotalDocs     int
	NewDocs       int
	UpdatedDocs   int
	SkippedDocs   int
	PublishedDocs int
	Announcements int
	Errors        int
	Duration      time.Duration
}

// Sync imports every entry of m
func (w *Worker) Sync(ctx context.Context, m *Manifest) (*Stats, error) {
	startTime := w.now()
	stats := &Stats{TotalDocs: len(m.Documents)}

	log.Printf("Syncing %d documents and %d announcements...\n", len(m.Documents), len(m.Announcements))

	// 1. Announcements are small and unversioned; write them inline
	for i := range m.Announcements {
		a := &m.Announcements[i]
		err := w.db.UpsertAnnouncement(&storage.Announcement{
			ID:           a.ID,
			Title:        a.Title,
			Body:         a.Body,
			CreatedAt:    startTime,
			EmbargoUntil: a.EmbargoUntil,
			ExpireAfter:  a.ExpireAfter,
		})
		if err != nil {
			log.Printf("Error syncing announcement %s: %v\n", a.ID, err)
			stats.Errors++
			continue
		}
		stats.Announcements++
	}

	// 2. Documents go through a worker pool
	docChan := make(chan *ManifestDocument, len(m.Documents))
	for i := range m.Documents {
		docChan <- &m.Documents[i]
	}
	close(docChan)

	var wg sync.WaitGroup
	var mu sync.Mutex

	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for doc := range docChan {
				if ctx.Err() != nil {
					return
				}
				if err := w.syncDocument(doc, startTime, stats, &mu); err != nil {
					log.Printf("Error syncing document %s (%s): %v\n", doc.ID, doc.Title, err)
					mu.Lock()
					stats.Errors++
					mu.Unlock()
				}
			}
		}()
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return stats, fmt.Errorf("sync interrupted: %w", err)
	}

	stats.Duration = w.now().Sub(startTime)
	log.Printf("Sync complete: %d new, %d updated, %d skipped, %d published, %d errors in %v\n",
		stats.NewDocs, stats.UpdatedDocs, stats.SkippedDocs, stats.PublishedDocs, stats.Errors, stats.Duration)

	return stats, nil
}

// contentHash covers every field an import can change, so a schedule-only
// edit is not skipped
func contentHash(doc *ManifestDocument) string {
	h := md5.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00%s\x00%s\x00%v\x00", doc.Title, doc.Content, doc.AuthorName, doc.AuthorEmail, doc.URL, doc.Topics)
	for _, t := range []*time.Time{doc.ArchivedAt, doc.EmbargoUntil, doc.ExpireAfter} {
		if t != nil {
			fmt.Fprint(h, t.UTC().Format(time.RFC3339Nano))
		}
		fmt.Fprint(h, "\x00")
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// syncDocument syncs a single document
func (w *Worker) syncDocument(entry *ManifestDocument, syncedAt time.Time, stats *Stats, mu *sync.Mutex) error {
	// 1. Check if anything has changed
	hash := contentHash(entry)
	existingHash, err := w.db.GetContentHash(entry.ID)
	if err != nil {
		return fmt.Errorf("get content hash: %w", err)
	}

	changed := existingHash != hash
	if !changed {
		if !entry.Publish {
			mu.Lock()
			stats.SkippedDocs++
			mu.Unlock()
			return nil
		}
		published, err := w.db.IsPublished(entry.ID)
		if err != nil {
			return fmt.Errorf("check published: %w", err)
		}
		if published {
			mu.Lock()
			stats.SkippedDocs++
			mu.Unlock()
			return nil // No changes, skip
		}
	}

	// 2. Store the draft
	if changed {
		topicsJSON, err := json.Marshal(entry.Topics)
		if err != nil {
			return fmt.Errorf("marshal topics: %w", err)
		}

		updatedAt := entry.UpdatedAt
		if updatedAt.IsZero() {
			updatedAt = syncedAt
		}

		doc := &storage.Document{
			ID:           entry.ID,
			Title:        entry.Title,
			Content:      entry.Content,
			ContentHash:  hash,
			AuthorName:   entry.AuthorName,
			AuthorEmail:  entry.AuthorEmail,
			URL:          entry.URL,
			Topics:       string(topicsJSON),
			UpdatedAt:    updatedAt,
			ArchivedAt:   entry.ArchivedAt,
			SyncedAt:     syncedAt,
			EmbargoUntil: entry.EmbargoUntil,
			ExpireAfter:  entry.ExpireAfter,
		}
		if err := w.db.Upsert(doc); err != nil {
			return fmt.Errorf("upsert document: %w", err)
		}
	}

	// 3. Publish and index the live snapshot
	if entry.Publish {
		if err := w.publish(entry.ID, syncedAt); err != nil {
			return err
		}
	}

	// 4. Update stats
	mu.Lock()
	switch {
	case !changed:
	case existingHash == "":
		stats.NewDocs++
	default:
		stats.UpdatedDocs++
	}
	if entry.Publish {
		stats.PublishedDocs++
	}
	mu.Unlock()

	log.Printf("✓ Synced: %s\n", entry.Title)
	return nil
}

// publish copies the draft to live and refreshes its index entry
func (w *Worker) publish(id string, at time.Time) error {
	if err := w.db.Publish(id, at); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return IndexLive(w.db, w.index, id)
}

// IndexLive refreshes the index entry of id from its live snapshot,
// removing it when the document is not live or archived
func IndexLive(db *storage.DB, index *search.Index, id string) error {
	if index == nil {
		return nil
	}
	live, err := db.Get(versioning.Live, id)
	if err != nil {
		return fmt.Errorf("get live document: %w", err)
	}
	if live == nil || live.ArchivedAt != nil {
		if err := index.Delete(id); err != nil {
			return fmt.Errorf("delete from index: %w", err)
		}
		return nil
	}
	if err := index.IndexDocument(search.NewIndexedDocument(live)); err != nil {
		return fmt.Errorf("index document: %w", err)
	}
	return nil
}
