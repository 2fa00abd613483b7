package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/renderinc/content-schedule/internal/versioning"
)

// Table names
const (
	DraftTable        = "documents"
	LiveTable         = "documents_live"
	AnnouncementTable = "announcements"
)

// ErrNotFound is returned by updates that target a missing record
var ErrNotFound = errors.New("not found")

// documentColumns is shared by both stage tables so Publish can copy rows
const documentColumns = `id, title, content, content_hash, author_name, author_email,
	url, topics, updated_at, published_at, archived_at, synced_at,
	embargo_until, expire_after`

// DB wraps SQLite database operations
type DB struct {
	db *sql.DB
}

// TableFor returns the document table holding stage
func TableFor(stage versioning.Stage) string {
	if stage == versioning.Draft {
		return DraftTable
	}
	return LiveTable
}

// Open opens or creates a SQLite database
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable foreign keys and WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	storage := &DB{db: db}

	// Initialize schema
	if err := storage.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return storage, nil
}

// Close closes the database
func (d *DB) Close() error {
	return d.db.Close()
}

// initSchema creates tables if they don't exist
func (d *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		content TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		author_name TEXT NOT NULL DEFAULT '',
		author_email TEXT NOT NULL DEFAULT '',
		url TEXT NOT NULL DEFAULT '',
		topics TEXT NOT NULL DEFAULT '',
		updated_at TIMESTAMP NOT NULL,
		published_at TIMESTAMP,
		archived_at TIMESTAMP,
		synced_at TIMESTAMP NOT NULL,
		embargo_until TIMESTAMP,
		expire_after TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS documents_live (
		id TEXT PRIMARY KEY REFERENCES documents(id) ON DELETE CASCADE,
		title TEXT NOT NULL,
		content TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		author_name TEXT NOT NULL DEFAULT '',
		author_email TEXT NOT NULL DEFAULT '',
		url TEXT NOT NULL DEFAULT '',
		topics TEXT NOT NULL DEFAULT '',
		updated_at TIMESTAMP NOT NULL,
		published_at TIMESTAMP,
		archived_at TIMESTAMP,
		synced_at TIMESTAMP NOT NULL,
		embargo_until TIMESTAMP,
		expire_after TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS announcements (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		body TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		embargo_until TIMESTAMP,
		expire_after TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_updated ON documents(updated_at);
	CREATE INDEX IF NOT EXISTS idx_archived ON documents(archived_at);
	CREATE INDEX IF NOT EXISTS idx_hash ON documents(content_hash);
	CREATE INDEX IF NOT EXISTS idx_window ON documents(embargo_until, expire_after);
	CREATE INDEX IF NOT EXISTS idx_live_window ON documents_live(embargo_until, expire_after);
	CREATE INDEX IF NOT EXISTS idx_announcement_window ON announcements(embargo_until, expire_after);
	`

	_, err := d.db.Exec(schema)
	return err
}

// Upsert inserts or updates the draft of a document. Publication state is
// left alone; use Publish to copy the draft to the live table.
func (d *DB) Upsert(doc *Document) error {
	query := `
	INSERT INTO documents (
		id, title, content, content_hash, author_name, author_email,
		url, topics, updated_at, archived_at, synced_at,
		embargo_until, expire_after
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		title = excluded.title,
		content = excluded.content,
		content_hash = excluded.content_hash,
		author_name = excluded.author_name,
		author_email = excluded.author_email,
		url = excluded.url,
		topics = excluded.topics,
		updated_at = excluded.updated_at,
		archived_at = excluded.archived_at,
		synced_at = excluded.synced_at,
		embargo_until = excluded.embargo_until,
		expire_after = excluded.expire_after
	`

	_, err := d.db.Exec(query,
		doc.ID, doc.Title, doc.Content, doc.ContentHash, doc.AuthorName, doc.AuthorEmail,
		doc.URL, doc.Topics, bindValue(doc.UpdatedAt), bindValue(doc.ArchivedAt), bindValue(doc.SyncedAt),
		bindValue(doc.EmbargoUntil), bindValue(doc.ExpireAfter),
	)
	return err
}

// selectDocuments returns the SELECT prefix for a stage table. Draft rows
// report whether a live snapshot exists.
func selectDocuments(stage versioning.Stage) string {
	table := TableFor(stage)
	published := "1"
	if stage == versioning.Draft {
		published = `EXISTS(SELECT 1 FROM documents_live l WHERE l.id = "documents"."id")`
	}
	return fmt.Sprintf("SELECT %s, %s FROM %q", documentColumns, published, table)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*Document, error) {
	doc := &Document{}
	var publishedAt, archivedAt, embargo, expire sql.NullTime
	err := row.Scan(
		&doc.ID, &doc.Title, &doc.Content, &doc.ContentHash, &doc.AuthorName, &doc.AuthorEmail,
		&doc.URL, &doc.Topics, &doc.UpdatedAt, &publishedAt, &archivedAt, &doc.SyncedAt,
		&embargo, &expire, &doc.Published,
	)
	if err != nil {
		return nil, err
	}
	doc.PublishedAt = nullTime(publishedAt)
	doc.ArchivedAt = nullTime(archivedAt)
	doc.EmbargoUntil = nullTime(embargo)
	doc.ExpireAfter = nullTime(expire)
	return doc, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

// Get retrieves a document by ID from the given stage
func (d *DB) Get(stage versioning.Stage, id string) (*Document, error) {
	query := selectDocuments(stage) + ` WHERE id = ?`

	doc, err := scanDocument(d.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return doc, nil
}

// List retrieves documents matching q (non-archived by default)
func (d *DB) List(q *Query) ([]*Document, error) {
	if q == nil {
		q = &Query{}
	}
	archived := ""
	if !q.IncludeArchived {
		archived = fmt.Sprintf("%q.archived_at IS NULL", TableFor(q.Stage))
	}
	where, args := q.whereClause(archived)

	query := selectDocuments(q.Stage) + where + " ORDER BY updated_at DESC"
	if q.Limit > 0 {
		query += " LIMIT " + strconv.Itoa(q.Limit)
	}

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}

	return docs, rows.Err()
}

// Count returns the number of non-archived documents in a stage
func (d *DB) Count(stage versioning.Stage) (int, error) {
	var count int
	err := d.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %q WHERE archived_at IS NULL", TableFor(stage))).Scan(&count)
	return count, err
}

// GetContentHash retrieves just the content hash for a document
func (d *DB) GetContentHash(id string) (string, error) {
	var hash string
	err := d.db.QueryRow("SELECT content_hash FROM documents WHERE id = ?", id).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return hash, err
}

// SetSchedule replaces the schedule window of a draft. Either bound may be
// nil to clear it. The live snapshot keeps its window until republished.
func (d *DB) SetSchedule(id string, embargoUntil, expireAfter *time.Time) error {
	res, err := d.db.Exec(
		"UPDATE documents SET embargo_until = ?, expire_after = ? WHERE id = ?",
		bindValue(embargoUntil), bindValue(expireAfter), id,
	)
	if err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}
	return requireRow(res, id)
}

// Publish copies the draft of id to the live table
func (d *DB) Publish(id string, at time.Time) error {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("begin publish: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec("UPDATE documents SET published_at = ? WHERE id = ?", bindValue(at), id)
	if err != nil {
		return fmt.Errorf("stamp draft: %w", err)
	}
	if err := requireRow(res, id); err != nil {
		return err
	}

	copySQL := fmt.Sprintf("INSERT OR REPLACE INTO documents_live (%s) SELECT %s FROM documents WHERE id = ?",
		documentColumns, documentColumns)
	if _, err := tx.Exec(copySQL, id); err != nil {
		return fmt.Errorf("copy to live: %w", err)
	}

	return tx.Commit()
}

// Unpublish removes the live snapshot of id; the draft is kept
func (d *DB) Unpublish(id string) error {
	res, err := d.db.Exec("DELETE FROM documents_live WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete live: %w", err)
	}
	return requireRow(res, id)
}

// IsPublished reports whether id has a live snapshot
func (d *DB) IsPublished(id string) (bool, error) {
	var exists bool
	err := d.db.QueryRow("SELECT EXISTS(SELECT 1 FROM documents_live WHERE id = ?)", id).Scan(&exists)
	return exists, err
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	return nil
}
