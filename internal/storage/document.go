package storage

import (
	"encoding/json"
	"time"
)

// Record types stored in this database
const (
	RecordTypeDocument     = "document"
	RecordTypeAnnouncement = "announcement"
)

// IsVersioned reports whether a record type is staged through draft and live
// tables. Documents are; announcements are written straight to the public
// table.
func IsVersioned(recordType string) bool {
	return recordType == RecordTypeDocument
}

// Document represents a content document in either stage
type Document struct {
	ID           string     `db:"id" json:"id"`
	Title        string     `db:"title" json:"title"`
	Content      string     `db:"content" json:"-"` // Markdown
	ContentHash  string     `db:"content_hash" json:"-"`
	AuthorName   string     `db:"author_name" json:"author_name,omitempty"`
	AuthorEmail  string     `db:"author_email" json:"author_email,omitempty"`
	URL          string     `db:"url" json:"url,omitempty"`
	Topics       string     `db:"topics" json:"topics,omitempty"` // JSON array
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
	PublishedAt  *time.Time `db:"published_at" json:"published_at,omitempty"` // last publish, NULL if never
	ArchivedAt   *time.Time `db:"archived_at" json:"archived_at,omitempty"`   // NULL if not archived
	SyncedAt     time.Time  `db:"synced_at" json:"synced_at"`                 // When we imported
	EmbargoUntil *time.Time `db:"embargo_until" json:"embargo_until,omitempty"`
	ExpireAfter  *time.Time `db:"expire_after" json:"expire_after,omitempty"`
	Published    bool       `db:"-" json:"published"` // a live snapshot exists
}

// TopicNames decodes the stored topics; malformed JSON yields none
func (d *Document) TopicNames() []string {
	if d.Topics == "" {
		return nil
	}
	var names []string
	if err := json.Unmarshal([]byte(d.Topics), &names); err != nil {
		return nil
	}
	return names
}

// RecordType implements schedule.Record
func (d *Document) RecordType() string { return RecordTypeDocument }

// Schedule implements schedule.Record
func (d *Document) Schedule() (embargoUntil, expireAfter *time.Time) {
	return d.EmbargoUntil, d.ExpireAfter
}

// IsPublished implements schedule.Record
func (d *Document) IsPublished() bool { return d.Published }

// Announcement is a short notice that is never staged: whatever is saved
// is public, subject only to its schedule window
type Announcement struct {
	ID           string     `db:"id" json:"id"`
	Title        string     `db:"title" json:"title"`
	Body         string     `db:"body" json:"body"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	EmbargoUntil *time.Time `db:"embargo_until" json:"embargo_until,omitempty"`
	ExpireAfter  *time.Time `db:"expire_after" json:"expire_after,omitempty"`
}

// RecordType implements schedule.Record
func (a *Announcement) RecordType() string { return RecordTypeAnnouncement }

// Schedule implements schedule.Record
func (a *Announcement) Schedule() (embargoUntil, expireAfter *time.Time) {
	return a.EmbargoUntil, a.ExpireAfter
}

// IsPublished implements schedule.Record
func (a *Announcement) IsPublished() bool { return true }
