package schedule

import (
	"sync"
	"time"
)

// Record is anything carrying a schedule window
type Record interface {
	RecordType() string
	Schedule() (embargoUntil, expireAfter *time.Time)
	IsPublished() bool
}

// Evaluator turns records into windows, memoizing whether each record type
// takes part in draft/live staging
type Evaluator struct {
	resolve   func(recordType string) bool
	versioned sync.Map // record type -> bool
}

// NewEvaluator creates an evaluator. resolve reports whether a record type is
// versioned; it is called at most a few times per type and must be stable.
func NewEvaluator(resolve func(recordType string) bool) *Evaluator {
	if resolve == nil {
		resolve = func(string) bool { return false }
	}
	return &Evaluator{resolve: resolve}
}

// IsVersioned returns the memoized capability for recordType. Concurrent
// first lookups may both call resolve; they store the same answer.
func (e *Evaluator) IsVersioned(recordType string) bool {
	if v, ok := e.versioned.Load(recordType); ok {
		return v.(bool)
	}
	versioned := e.resolve(recordType)
	e.versioned.Store(recordType, versioned)
	return versioned
}

// Window builds the schedule window for r
func (e *Evaluator) Window(r Record) Window {
	embargo, expire := r.Schedule()
	return Window{
		EmbargoUntil: embargo,
		ExpireAfter:  expire,
		Published:    r.IsPublished(),
		Versioned:    e.IsVersioned(r.RecordType()),
	}
}

// Status evaluates r at now
func (e *Evaluator) Status(r Record, now time.Time) Status {
	return Evaluate(e.Window(r), now)
}
