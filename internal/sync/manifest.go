package sync

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Manifest is the import file format
type Manifest struct {
	Documents     []ManifestDocument     `json:"documents"`
	Announcements []ManifestAnnouncement `json:"announcements"`
}

// ManifestDocument is one document entry in a manifest
type ManifestDocument struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Content      string     `json:"content"` // Markdown
	AuthorName   string     `json:"author_name"`
	AuthorEmail  string     `json:"author_email"`
	URL          string     `json:"url"`
	Topics       []string   `json:"topics"`
	UpdatedAt    time.Time  `json:"updated_at"`
	ArchivedAt   *time.Time `json:"archived_at"`
	EmbargoUntil *time.Time `json:"embargo_until"`
	ExpireAfter  *time.Time `json:"expire_after"`
	Publish      bool       `json:"publish"` // copy to live after saving
}

// ManifestAnnouncement is one announcement entry in a manifest
type ManifestAnnouncement struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Body         string     `json:"body"`
	EmbargoUntil *time.Time `json:"embargo_until"`
	ExpireAfter  *time.Time `json:"expire_after"`
}

// LoadManifest reads and validates a manifest file
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal manifest: %w", err)
	}

	seen := make(map[string]bool, len(m.Documents))
	for i, doc := range m.Documents {
		if doc.ID == "" {
			return nil, fmt.Errorf("document %d: missing id", i)
		}
		if doc.Title == "" {
			return nil, fmt.Errorf("document %s: missing title", doc.ID)
		}
		if seen[doc.ID] {
			return nil, fmt.Errorf("document %s: duplicate id", doc.ID)
		}
		seen[doc.ID] = true
	}
	for i, a := range m.Announcements {
		if a.ID == "" {
			return nil, fmt.Errorf("announcement %d: missing id", i)
		}
	}

	return &m, nil
}
