package storage

import (
	"strings"
	"time"

	"github.com/renderinc/content-schedule/internal/versioning"
)

// Query describes a listing. Extra conditions added with Where are ANDed
// with the listing's own filters.
type Query struct {
	Stage           versioning.Stage
	IncludeArchived bool
	Limit           int // 0 = unlimited

	where []string
	args  []any
}

// Where adds a condition. Time arguments are bound in UTC so they compare
// chronologically against stored values.
func (q *Query) Where(clause string, args ...any) *Query {
	if strings.TrimSpace(clause) == "" {
		return q
	}
	q.where = append(q.where, "("+clause+")")
	for _, arg := range args {
		q.args = append(q.args, bindValue(arg))
	}
	return q
}

// whereClause joins base conditions and Where conditions with AND
func (q *Query) whereClause(base ...string) (string, []any) {
	var conds []string
	for _, c := range base {
		if c != "" {
			conds = append(conds, c)
		}
	}
	conds = append(conds, q.where...)
	if len(conds) == 0 {
		return "", q.args
	}
	return " WHERE " + strings.Join(conds, " AND "), q.args
}

// bindValue normalizes timestamps to UTC; the driver stores time.Time as
// text and only same-zone text sorts chronologically.
func bindValue(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.UTC()
	case *time.Time:
		if t == nil {
			return nil
		}
		return t.UTC()
	default:
		return v
	}
}
