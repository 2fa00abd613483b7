package web

import (
	"log"
	"net/http"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/renderinc/content-schedule/internal/schedule"
	"github.com/renderinc/content-schedule/internal/storage"
	"github.com/renderinc/content-schedule/internal/versioning"
	"github.com/renderinc/content-schedule/internal/visibility"
)

func init() {
	en := language.English
	message.SetString(en, "admin.status.published", "Published")
	message.SetString(en, "admin.status.draft", "Saved as draft on %s")

	de := language.German
	message.SetString(de, "admin.status.published", "Veröffentlicht")
	message.SetString(de, "admin.status.draft", "Als Entwurf gespeichert am %s")
}

// statusIcons maps each status to the icon classes of the admin grid
var statusIcons = map[schedule.Status]string{
	schedule.Embargoed: "font-icon-clock mr-2 text-danger",
	schedule.Expired:   "font-icon-box mr-2",
	schedule.Expiring:  "font-icon-check-mark-circle text-success mr-2",
	schedule.Published: "font-icon-check-mark-circle text-success mr-2",
	schedule.Draft:     "font-icon-edit mr-2 text-info",
}

// StatusCell is the rendered Status column of the admin grid
type StatusCell struct {
	Status    string
	IconClass string
	Label     string
}

// statusCell renders the Status column. Drafts and published rows have no
// schedule label, so they are worded here from the document's own dates.
func (s *Server) statusCell(doc *storage.Document, status schedule.Status, window schedule.Window, tag language.Tag) StatusCell {
	label := s.labeler.LabelFor(status, window, tag)
	if label == "" {
		p := message.NewPrinter(tag)
		switch status {
		case schedule.Draft:
			label = p.Sprintf("admin.status.draft", s.labeler.FormatDate(doc.UpdatedAt, tag))
		case schedule.Published:
			label = p.Sprintf("admin.status.published")
		}
	}
	return StatusCell{
		Status:    status.String(),
		IconClass: statusIcons[status],
		Label:     label,
	}
}

// handleAdmin renders the back-office grid. The administrative context
// bypasses the schedule window so editors see every record.
func (s *Server) handleAdmin(w http.ResponseWriter, r *http.Request) {
	now := s.clock()
	tag := s.resolveTag(r)

	ctx := visibility.AccessContext{Administrative: true, Stage: versioning.Draft}
	if stage, ok := versioning.ParseStage(r.URL.Query().Get(StageParam)); ok {
		ctx.Stage = stage
	}

	docs, err := s.listDocuments(ctx, now, 0)
	if err != nil {
		log.Printf("Error listing documents: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	data := map[string]interface{}{
		"Stage":     ctx.Stage.String(),
		"Documents": s.docViews(docs, now, tag),
	}

	if err := s.templates.ExecuteTemplate(w, "admin.html", data); err != nil {
		log.Printf("Error rendering template: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
