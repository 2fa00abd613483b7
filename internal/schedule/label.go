package schedule

import (
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const datePlaceholder = "{date}"

// DefaultTemplates maps statuses to the message keys of their labels.
// Draft and Published have none: callers word those themselves.
func DefaultTemplates() map[Status]string {
	return map[Status]string{
		Embargoed: KeyLabelEmbargoed,
		Expired:   KeyLabelExpired,
		Expiring:  KeyLabelExpiring,
	}
}

// Labeler renders status labels and flags for a locale
type Labeler struct {
	// Templates holds a message key or literal template per status
	Templates map[Status]string
	// Location is the zone dates are rendered in
	Location *time.Location
}

// NewLabeler returns a labeler with the default templates rendering in loc
func NewLabeler(loc *time.Location) *Labeler {
	if loc == nil {
		loc = time.UTC
	}
	return &Labeler{Templates: DefaultTemplates(), Location: loc}
}

// Label evaluates w at now and returns the localized label, or "" when the
// status has no template
func (l *Labeler) Label(w Window, now time.Time, tag language.Tag) string {
	return l.LabelFor(Evaluate(w, now), w, tag)
}

// LabelFor renders the label for an already evaluated status
func (l *Labeler) LabelFor(status Status, w Window, tag language.Tag) string {
	tmpl, ok := l.Templates[status]
	if !ok || tmpl == "" {
		return ""
	}
	tag = MatchTag(tag)
	text := message.NewPrinter(tag).Sprintf(tmpl)
	return strings.ReplaceAll(text, datePlaceholder, l.formatDate(relevantTime(status, w), tag))
}

// Flag is a short badge for list views
type Flag struct {
	Key   string `json:"key"`
	Text  string `json:"text"`
	Title string `json:"title"`
}

// Flags returns the schedule badges for w at now. Drafts carry none since
// scheduling only applies to published content.
func (l *Labeler) Flags(w Window, now time.Time, tag language.Tag) []Flag {
	status := Evaluate(w, now)

	var shortKey, helpKey string
	switch status {
	case Embargoed:
		shortKey, helpKey = keyFlagEmbargoedShort, keyFlagEmbargoedHelp
	case Expired:
		shortKey, helpKey = keyFlagExpiredShort, keyFlagExpiredHelp
	case Expiring:
		shortKey, helpKey = keyFlagExpiringShort, keyFlagExpiringHelp
	default:
		return nil
	}

	tag = MatchTag(tag)
	p := message.NewPrinter(tag)
	date := l.formatDate(relevantTime(status, w), tag)
	return []Flag{{
		Key:   "schedule_" + status.String(),
		Text:  p.Sprintf(shortKey),
		Title: strings.ReplaceAll(p.Sprintf(helpKey), datePlaceholder, date),
	}}
}

// FormatDate renders t in the labeler's zone using the layout of tag
func (l *Labeler) FormatDate(t time.Time, tag language.Tag) string {
	return l.formatDate(&t, MatchTag(tag))
}

func (l *Labeler) formatDate(t *time.Time, tag language.Tag) string {
	if t == nil {
		return ""
	}
	base, _ := tag.Base()
	layout, ok := dateLayouts[base.String()]
	if !ok {
		layout = dateLayouts["en"]
	}
	loc := l.Location
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(layout)
}
