package web

import (
	"crypto/subtle"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"

	"github.com/renderinc/content-schedule/internal/schedule"
	"github.com/renderinc/content-schedule/internal/search"
	"github.com/renderinc/content-schedule/internal/storage"
	"github.com/renderinc/content-schedule/internal/versioning"
	"github.com/renderinc/content-schedule/internal/visibility"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static/*
var staticFS embed.FS

const (
	// PreviewTokenHeader carries the token granting elevated view privilege
	PreviewTokenHeader = "X-Preview-Token"
	// AdminTokenHeader carries the back-office token
	AdminTokenHeader = "X-Admin-Token"
	// LangParam selects the label language
	LangParam = "lang"
	// StageParam selects the draft or live snapshot
	StageParam = "stage"
)

// Options configures a Server
type Options struct {
	AdminToken   string
	PreviewToken string
	Locale       language.Tag
	Location     *time.Location
	Clock        func() time.Time
}

type Server struct {
	db           *storage.DB
	idx          *search.Index
	evaluator    *schedule.Evaluator
	labeler      *schedule.Labeler
	templates    *template.Template
	adminToken   string
	previewToken string
	locale       language.Tag
	clock        func() time.Time
}

func NewServer(db *storage.DB, idx *search.Index, opts Options) (*Server, error) {
	// Parse templates
	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("error parsing templates: %w", err)
	}

	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	locale := opts.Locale
	if locale == language.Und {
		locale = language.English
	}

	return &Server{
		db:           db,
		idx:          idx,
		evaluator:    schedule.NewEvaluator(storage.IsVersioned),
		labeler:      schedule.NewLabeler(opts.Location),
		templates:    tmpl,
		adminToken:   opts.AdminToken,
		previewToken: opts.PreviewToken,
		locale:       schedule.MatchTag(locale),
		clock:        clock,
	}, nil
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Static files
	mux.Handle("/static/", http.FileServer(http.FS(staticFS)))

	// Routes
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/api/docs", s.handleListDocs)
	mux.HandleFunc("/api/doc", s.handleGetDoc)
	mux.HandleFunc("/api/search", s.handleSearch)
	mux.HandleFunc("/api/announcements", s.handleAnnouncements)
	mux.HandleFunc("/admin/", s.requireAdmin(s.handleAdmin))
	mux.HandleFunc("/health", s.handleHealth)

	return mux
}

// accessContext describes a public request. Only callers holding the
// preview token may read the draft stage; everyone else is served live.
func (s *Server) accessContext(r *http.Request) visibility.AccessContext {
	ctx := visibility.AccessContext{
		ElevatedViewPrivilege: tokenMatches(s.previewToken, r.Header.Get(PreviewTokenHeader)),
		Stage:                 versioning.StageFromContext(r.Context()),
	}
	if stage, ok := versioning.ParseStage(r.URL.Query().Get(StageParam)); ok {
		ctx.Stage = stage
	}
	if !ctx.ElevatedViewPrivilege {
		ctx.Stage = versioning.Live
	}
	return ctx
}

// requireAdmin guards back-office routes with the admin token
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get(AdminTokenHeader)
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		if !tokenMatches(s.adminToken, token) {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func tokenMatches(want, got string) bool {
	if want == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(want), []byte(got)) == 1
}

// resolveTag picks the label language from ?lang=, then Accept-Language
func (s *Server) resolveTag(r *http.Request) language.Tag {
	if lang := strings.TrimSpace(r.URL.Query().Get(LangParam)); lang != "" {
		if tag, err := language.Parse(lang); err == nil {
			return schedule.MatchTag(tag)
		}
	}
	if header := r.Header.Get("Accept-Language"); header != "" {
		if tags, _, err := language.ParseAcceptLanguage(header); err == nil && len(tags) > 0 {
			return schedule.MatchTag(tags[0])
		}
	}
	return s.locale
}

// listDocuments lists a stage with the visibility predicate for ctx ANDed in
func (s *Server) listDocuments(ctx visibility.AccessContext, now time.Time, limit int) ([]*storage.Document, error) {
	q := &storage.Query{Stage: ctx.Stage, Limit: limit}
	if p := visibility.BuildPredicate(storage.TableFor(ctx.Stage), now, ctx); p != nil {
		q.Where(p.SQL, p.Args...)
	}
	return s.db.List(q)
}

// docView is the JSON and template shape of a document row
type docView struct {
	*storage.Document
	Status schedule.Status `json:"status"`
	Label  string          `json:"label,omitempty"`
	Flags  []schedule.Flag `json:"flags,omitempty"`
	Cell   StatusCell      `json:"-"`
}

func (s *Server) docViews(docs []*storage.Document, now time.Time, tag language.Tag) []docView {
	views := make([]docView, 0, len(docs))
	for _, doc := range docs {
		window := s.evaluator.Window(doc)
		status := schedule.Evaluate(window, now)
		views = append(views, docView{
			Document: doc,
			Status:   status,
			Label:    s.labeler.LabelFor(status, window, tag),
			Flags:    s.labeler.Flags(window, now, tag),
			Cell:     s.statusCell(doc, status, window, tag),
		})
	}
	return views
}

func parseLimit(r *http.Request, def int) int {
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			return l
		}
	}
	return def
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	now := s.clock()
	ctx := s.accessContext(r)
	tag := s.resolveTag(r)

	docs, err := s.listDocuments(ctx, now, 50)
	if err != nil {
		log.Printf("Error listing documents: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	data := map[string]interface{}{
		"Stage":     ctx.Stage.String(),
		"Documents": s.docViews(docs, now, tag),
	}

	if err := s.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		log.Printf("Error rendering template: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (s *Server) handleListDocs(w http.ResponseWriter, r *http.Request) {
	now := s.clock()
	ctx := s.accessContext(r)

	docs, err := s.listDocuments(ctx, now, parseLimit(r, 20))
	if err != nil {
		http.Error(w, fmt.Sprintf("Error listing documents: %v", err), http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]interface{}{
		"stage":     ctx.Stage.String(),
		"documents": s.docViews(docs, now, s.resolveTag(r)),
	})
}

// archivedDecision hides archived documents outside the back office
func archivedDecision(doc *storage.Document, ctx visibility.AccessContext) visibility.Decision {
	if ctx.Administrative || doc.ArchivedAt == nil {
		return visibility.NoOpinion
	}
	return visibility.Deny
}

func (s *Server) handleGetDoc(w http.ResponseWriter, r *http.Request) {
	docID := r.URL.Query().Get("id")
	if docID == "" {
		http.Error(w, "Missing id parameter", http.StatusBadRequest)
		return
	}

	now := s.clock()
	ctx := s.accessContext(r)

	// Retrieve document from the requested stage
	doc, err := s.db.Get(ctx.Stage, docID)
	if err != nil {
		http.Error(w, fmt.Sprintf("Error retrieving document: %v", err), http.StatusInternalServerError)
		return
	}

	// Hidden documents look missing
	if doc == nil || !visibility.Combine(true,
		visibility.CanView(s.evaluator.Window(doc), now, ctx),
		archivedDecision(doc, ctx),
	) {
		http.Error(w, "Document not found", http.StatusNotFound)
		return
	}

	// Return markdown content
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Write([]byte(doc.Content))
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		// Return empty state HTML
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<div class="empty-state">
			<p>Start typing to search published documents</p>
		</div>`)
		return
	}

	now := s.clock()
	tag := s.resolveTag(r)

	// The index only holds live snapshots
	ctx := s.accessContext(r)
	ctx.Stage = versioning.Live

	var window *search.WindowFilter
	if visibility.Enforced(ctx) {
		window = &search.WindowFilter{Now: now}
	}

	results, err := s.idx.Search(query, parseLimit(r, 20), window)
	if err != nil {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, `<div class="error">
			<strong>Error:</strong> Search failed: %v
		</div>`, template.HTMLEscapeString(err.Error()))
		return
	}

	// Render results as HTML
	w.Header().Set("Content-Type", "text/html")

	if len(results) == 0 {
		fmt.Fprintf(w, `<div class="no-results">
			<p>No results found for "<strong>%s</strong>"</p>
			<p class="hint">Try different keywords or use fuzzy search with ~ suffix</p>
		</div>`, template.HTMLEscapeString(query))
		return
	}

	// Results header
	fmt.Fprintf(w, `<div class="results-header">
		<p>Found <strong>%d</strong> results for "<strong>%s</strong>"</p>
	</div>`, len(results), template.HTMLEscapeString(query))

	// Render each result
	for i, result := range results {
		// Extract preview from fragments
		preview := ""
		if fragments, ok := result.Fragments["Content"]; ok && len(fragments) > 0 {
			preview = fragments[0]
		}

		fmt.Fprintf(w, `<div class="result-card">
			<div class="result-number">%d</div>
			<div class="result-content">
				<h3><a href="%s" target="_blank" rel="noopener">%s</a></h3>`,
			i+1,
			template.HTMLEscapeString(result.URL),
			template.HTMLEscapeString(result.Title))

		if label := s.labeler.Label(s.evaluator.Window(result), now, tag); label != "" {
			fmt.Fprintf(w, `<p class="result-schedule">%s</p>`, template.HTMLEscapeString(label))
		}

		if result.Author != "" {
			fmt.Fprintf(w, `<p class="result-meta">By %s</p>`, template.HTMLEscapeString(result.Author))
		}

		if preview != "" {
			fmt.Fprintf(w, `<p class="result-preview">%s</p>`, template.HTML(preview))
		}

		fmt.Fprintf(w, `<div class="result-footer">
				<span class="result-score">Score: %.3f</span>
			</div>
		</div>
	</div>`, result.Score)
	}
}

// announcementView is the JSON shape of an announcement
type announcementView struct {
	*storage.Announcement
	Status schedule.Status `json:"status"`
	Label  string          `json:"label,omitempty"`
}

func (s *Server) handleAnnouncements(w http.ResponseWriter, r *http.Request) {
	now := s.clock()
	ctx := s.accessContext(r)
	tag := s.resolveTag(r)

	q := &storage.Query{Limit: parseLimit(r, 20)}
	if p := visibility.BuildPredicate(storage.AnnouncementTable, now, ctx); p != nil {
		q.Where(p.SQL, p.Args...)
	}
	items, err := s.db.ListAnnouncements(q)
	if err != nil {
		http.Error(w, fmt.Sprintf("Error listing announcements: %v", err), http.StatusInternalServerError)
		return
	}

	views := make([]announcementView, 0, len(items))
	for _, a := range items {
		window := s.evaluator.Window(a)
		status := schedule.Evaluate(window, now)
		views = append(views, announcementView{
			Announcement: a,
			Status:       status,
			Label:        s.labeler.LabelFor(status, window, tag),
		})
	}

	writeJSON(w, map[string]interface{}{"announcements": views})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	draftCount, _ := s.db.Count(versioning.Draft)
	liveCount, _ := s.db.Count(versioning.Live)
	indexCount, _ := s.idx.Count()

	writeJSON(w, map[string]interface{}{
		"status":             "ok",
		"documents_draft":    draftCount,
		"documents_live":     liveCount,
		"documents_in_index": indexCount,
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}
