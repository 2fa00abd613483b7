package storage

import (
	"database/sql"
	"strconv"
)

// UpsertAnnouncement inserts or updates an announcement
func (d *DB) UpsertAnnouncement(a *Announcement) error {
	query := `
	INSERT INTO announcements (id, title, body, created_at, embargo_until, expire_after)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		title = excluded.title,
		body = excluded.body,
		embargo_until = excluded.embargo_until,
		expire_after = excluded.expire_after
	`

	_, err := d.db.Exec(query,
		a.ID, a.Title, a.Body, bindValue(a.CreatedAt), bindValue(a.EmbargoUntil), bindValue(a.ExpireAfter),
	)
	return err
}

// ListAnnouncements returns announcements matching q, newest first. Stage
// and IncludeArchived do not apply.
func (d *DB) ListAnnouncements(q *Query) ([]*Announcement, error) {
	if q == nil {
		q = &Query{}
	}
	where, args := q.whereClause()

	query := `SELECT id, title, body, created_at, embargo_until, expire_after FROM "announcements"` +
		where + " ORDER BY created_at DESC"
	if q.Limit > 0 {
		query += " LIMIT " + strconv.Itoa(q.Limit)
	}

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Announcement
	for rows.Next() {
		a := &Announcement{}
		var embargo, expire sql.NullTime
		if err := rows.Scan(&a.ID, &a.Title, &a.Body, &a.CreatedAt, &embargo, &expire); err != nil {
			return nil, err
		}
		a.EmbargoUntil = nullTime(embargo)
		a.ExpireAfter = nullTime(expire)
		out = append(out, a)
	}

	return out, rows.Err()
}
