package search

import (
	"fmt"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/renderinc/content-schedule/internal/storage"
	"github.com/renderinc/content-schedule/internal/versioning"
)

// Open-ended window bounds, in unix milliseconds. Bleve cannot match a
// missing field, so unset bounds are indexed as values every real
// timestamp falls between.
const (
	openStart float64 = -1e15
	openEnd   float64 = 1e15
)

// Index wraps a Bleve search index of live documents
type Index struct {
	index bleve.Index
}

// IndexedDocument represents a document in the search index
type IndexedDocument struct {
	ID           string
	Title        string
	Content      string
	Author       string
	Topics       []string
	UpdatedAt    time.Time
	URL          string
	EmbargoUntil float64 // unix millis, openStart when unset
	ExpireAfter  float64 // unix millis, openEnd when unset
}

// SearchResult represents a search result
type SearchResult struct {
	ID           string              `json:"id"`
	Title        string              `json:"title"`
	Author       string              `json:"author,omitempty"`
	URL          string              `json:"url,omitempty"`
	Score        float64             `json:"score"`
	EmbargoUntil *time.Time          `json:"embargo_until,omitempty"`
	ExpireAfter  *time.Time          `json:"expire_after,omitempty"`
	Fragments    map[string][]string `json:"fragments,omitempty"` // Highlighted snippets
}

// RecordType implements schedule.Record; the index only holds documents
func (r *SearchResult) RecordType() string { return storage.RecordTypeDocument }

// Schedule implements schedule.Record
func (r *SearchResult) Schedule() (embargoUntil, expireAfter *time.Time) {
	return r.EmbargoUntil, r.ExpireAfter
}

// IsPublished implements schedule.Record; only live snapshots are indexed
func (r *SearchResult) IsPublished() bool { return true }

// WindowFilter restricts results to documents visible at Now
type WindowFilter struct {
	Now time.Time
}

// Open opens or creates a Bleve index
func Open(path string) (*Index, error) {
	var idx bleve.Index
	var err error

	// Try to open existing index
	idx, err = bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		// Create new index with custom mapping
		indexMapping := buildIndexMapping()
		idx, err = bleve.New(path, indexMapping)
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}

	return &Index{index: idx}, nil
}

// buildIndexMapping creates a custom index mapping with title boosting
func buildIndexMapping() mapping.IndexMapping {
	// Create a text field mapping with standard analyzer
	textFieldMapping := bleve.NewTextFieldMapping()

	titleFieldMapping := bleve.NewTextFieldMapping()
	titleFieldMapping.Analyzer = "en" // English analyzer for better stemming

	// Create document mapping
	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("ID", bleve.NewTextFieldMapping())
	docMapping.AddFieldMappingsAt("Title", titleFieldMapping)
	docMapping.AddFieldMappingsAt("Content", textFieldMapping)
	docMapping.AddFieldMappingsAt("Author", bleve.NewTextFieldMapping())
	docMapping.AddFieldMappingsAt("URL", bleve.NewTextFieldMapping())
	docMapping.AddFieldMappingsAt("EmbargoUntil", bleve.NewNumericFieldMapping())
	docMapping.AddFieldMappingsAt("ExpireAfter", bleve.NewNumericFieldMapping())

	// Create index mapping
	indexMapping := bleve.NewIndexMapping()
	indexMapping.AddDocumentMapping("_default", docMapping)

	return indexMapping
}

// Close closes the index
func (i *Index) Close() error {
	return i.index.Close()
}

// NewIndexedDocument converts a stored document to its index form
func NewIndexedDocument(doc *storage.Document) *IndexedDocument {
	return &IndexedDocument{
		ID:           doc.ID,
		Title:        doc.Title,
		Content:      doc.Content,
		Author:       doc.AuthorName,
		Topics:       doc.TopicNames(),
		UpdatedAt:    doc.UpdatedAt,
		URL:          doc.URL,
		EmbargoUntil: toMillis(doc.EmbargoUntil, openStart),
		ExpireAfter:  toMillis(doc.ExpireAfter, openEnd),
	}
}

// IndexDocument adds or updates a document in the index
func (i *Index) IndexDocument(doc *IndexedDocument) error {
	return i.index.Index(doc.ID, doc)
}

// Delete removes a document from the index
func (i *Index) Delete(id string) error {
	return i.index.Delete(id)
}

// Search performs a search query with fuzzy matching. A non-nil window
// drops documents that are embargoed or expired at window.Now.
func (i *Index) Search(queryStr string, limit int, window *WindowFilter) ([]*SearchResult, error) {
	// Parse query string (supports quotes, boolean operators, fuzzy ~)
	var q query.Query = bleve.NewQueryStringQuery(queryStr)
	if window != nil {
		q = bleve.NewConjunctionQuery(q, windowQuery(window.Now))
	}

	// Create search request with highlighting
	search := bleve.NewSearchRequestOptions(q, limit, 0, false)
	search.Highlight = bleve.NewHighlightWithStyle("html")
	search.Fields = []string{"Title", "Author", "URL", "EmbargoUntil", "ExpireAfter"}

	// Execute search
	results, err := i.index.Search(search)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	// Convert to our result type
	var searchResults []*SearchResult
	for _, hit := range results.Hits {
		result := &SearchResult{
			ID:        hit.ID,
			Score:     hit.Score,
			Fragments: hit.Fragments,
		}

		// Extract fields
		if title, ok := hit.Fields["Title"].(string); ok {
			result.Title = title
		}
		if author, ok := hit.Fields["Author"].(string); ok {
			result.Author = author
		}
		if url, ok := hit.Fields["URL"].(string); ok {
			result.URL = url
		}
		if v, ok := hit.Fields["EmbargoUntil"].(float64); ok {
			result.EmbargoUntil = fromMillis(v)
		}
		if v, ok := hit.Fields["ExpireAfter"].(float64); ok {
			result.ExpireAfter = fromMillis(v)
		}

		searchResults = append(searchResults, result)
	}

	return searchResults, nil
}

// windowQuery matches EmbargoUntil < now AND ExpireAfter > now, the same
// bounds the SQL listing predicate applies
func windowQuery(now time.Time) query.Query {
	n := float64(now.UnixMilli())
	exclusive := false

	embargo := bleve.NewNumericRangeInclusiveQuery(nil, &n, nil, &exclusive)
	embargo.SetField("EmbargoUntil")

	expiry := bleve.NewNumericRangeInclusiveQuery(&n, nil, &exclusive, nil)
	expiry.SetField("ExpireAfter")

	return bleve.NewConjunctionQuery(embargo, expiry)
}

// Rebuild replaces the index contents with the live documents in db
func (i *Index) Rebuild(db *storage.DB, progress func(current, total int)) error {
	docs, err := db.List(&storage.Query{Stage: versioning.Live}) // Don't include archived
	if err != nil {
		return fmt.Errorf("list documents: %w", err)
	}

	if err := i.clear(); err != nil {
		return err
	}

	const batchSize = 100
	batch := i.index.NewBatch()
	for n, doc := range docs {
		indexDoc := NewIndexedDocument(doc)
		if err := batch.Index(indexDoc.ID, indexDoc); err != nil {
			return fmt.Errorf("batch index %s: %w", doc.ID, err)
		}

		if batch.Size() >= batchSize {
			if err := i.index.Batch(batch); err != nil {
				return fmt.Errorf("commit batch: %w", err)
			}
			batch = i.index.NewBatch()
		}
		if progress != nil {
			progress(n+1, len(docs))
		}
	}

	if err := i.index.Batch(batch); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}

	return nil
}

// clear deletes every document currently in the index
func (i *Index) clear() error {
	count, err := i.index.DocCount()
	if err != nil {
		return fmt.Errorf("count documents: %w", err)
	}
	if count == 0 {
		return nil
	}

	req := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), int(count), 0, false)
	res, err := i.index.Search(req)
	if err != nil {
		return fmt.Errorf("list indexed documents: %w", err)
	}

	batch := i.index.NewBatch()
	for _, hit := range res.Hits {
		batch.Delete(hit.ID)
	}
	if err := i.index.Batch(batch); err != nil {
		return fmt.Errorf("delete batch: %w", err)
	}
	return nil
}

// Count returns the number of documents in the index
func (i *Index) Count() (uint64, error) {
	return i.index.DocCount()
}

func toMillis(t *time.Time, unset float64) float64 {
	if t == nil {
		return unset
	}
	return float64(t.UnixMilli())
}

func fromMillis(v float64) *time.Time {
	if v <= openStart || v >= openEnd {
		return nil
	}
	t := time.UnixMilli(int64(v)).UTC()
	return &t
}
