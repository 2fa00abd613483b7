// Package visibility enforces schedule windows at the data-access boundary.
// Administrative surfaces and privileged draft previews bypass the window;
// everything else only sees records that are neither embargoed nor expired.
package visibility

import (
	"fmt"
	"time"

	"github.com/renderinc/content-schedule/internal/schedule"
	"github.com/renderinc/content-schedule/internal/versioning"
)

// Column names of the persisted schedule window
const (
	EmbargoColumn = "embargo_until"
	ExpiryColumn  = "expire_after"
)

// AccessContext describes who is asking and for which snapshot
type AccessContext struct {
	Administrative        bool // back-office or editing surface
	ElevatedViewPrivilege bool // may view non-public content
	Stage                 versioning.Stage
}

// Decision is a single contributor's answer to an access check
type Decision int

const (
	NoOpinion Decision = iota
	Allow
	Deny
)

// String returns the decision name
func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Deny:
		return "deny"
	default:
		return "no-opinion"
	}
}

// Bool returns the decision as a boolean; ok is false for NoOpinion
func (d Decision) Bool() (value, ok bool) {
	switch d {
	case Allow:
		return true, true
	case Deny:
		return false, true
	default:
		return false, false
	}
}

// Combine merges decisions the way the access-control layer does: any Deny
// denies, otherwise any Allow allows, otherwise def applies.
func Combine(def bool, decisions ...Decision) bool {
	allowed := false
	for _, d := range decisions {
		switch d {
		case Deny:
			return false
		case Allow:
			allowed = true
		}
	}
	if allowed {
		return true
	}
	return def
}

// Enforced reports whether the schedule window applies to ctx
func Enforced(ctx AccessContext) bool {
	if ctx.Administrative {
		return false
	}
	return ctx.Stage == versioning.Live || !ctx.ElevatedViewPrivilege
}

// CanView decides single-record access at now
func CanView(w schedule.Window, now time.Time, ctx AccessContext) Decision {
	if !Enforced(ctx) {
		return NoOpinion
	}
	if schedule.IsEmbargoed(w, now) || schedule.HasExpired(w, now) {
		return Deny
	}
	return Allow
}

// Predicate is a SQL fragment with its positional arguments
type Predicate struct {
	SQL  string
	Args []any
}

// BuildPredicate returns the window restriction for rows of table, or nil
// when ctx bypasses the window. now is bound once for both comparisons.
func BuildPredicate(table string, now time.Time, ctx AccessContext) *Predicate {
	if !Enforced(ctx) {
		return nil
	}
	embargo := fmt.Sprintf(`"%s"."%s"`, table, EmbargoColumn)
	expiry := fmt.Sprintf(`"%s"."%s"`, table, ExpiryColumn)
	return &Predicate{
		SQL: fmt.Sprintf("(%s < ? OR %s IS NULL) AND (%s > ? OR %s IS NULL)",
			embargo, embargo, expiry, expiry),
		Args: []any{now, now},
	}
}
