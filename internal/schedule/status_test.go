package schedule

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func date(year int, month time.Month, day int) *time.Time {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &t
}

var now = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name   string
		window Window
		want   Status
	}{
		{
			name:   "future embargo on unversioned record",
			window: Window{EmbargoUntil: date(2099, 1, 1), Published: true},
			want:   Embargoed,
		},
		{
			name:   "past expiry",
			window: Window{ExpireAfter: date(2020, 1, 1), Published: true},
			want:   Expired,
		},
		{
			name:   "future expiry",
			window: Window{ExpireAfter: date(2099, 1, 1)},
			want:   Expiring,
		},
		{
			name:   "draft dominates past embargo",
			window: Window{EmbargoUntil: date(2020, 1, 1), Versioned: true},
			want:   Draft,
		},
		{
			name:   "draft dominates future embargo and past expiry",
			window: Window{EmbargoUntil: date(2099, 1, 1), ExpireAfter: date(2020, 1, 1), Versioned: true},
			want:   Draft,
		},
		{
			name:   "no window",
			window: Window{Published: true, Versioned: true},
			want:   Published,
		},
		{
			name:   "past embargo only",
			window: Window{EmbargoUntil: date(2020, 1, 1), Published: true},
			want:   Published,
		},
		{
			name:   "past embargo with future expiry",
			window: Window{EmbargoUntil: date(2020, 1, 1), ExpireAfter: date(2099, 1, 1)},
			want:   Expiring,
		},
		{
			name:   "embargo after expiry while embargoed",
			window: Window{EmbargoUntil: date(2099, 1, 1), ExpireAfter: date(2098, 1, 1)},
			want:   Embargoed,
		},
		{
			name:   "embargo after expiry once both passed",
			window: Window{EmbargoUntil: date(2022, 1, 1), ExpireAfter: date(2021, 1, 1)},
			want:   Expired,
		},
		{
			name:   "embargo equal to now is lifted",
			window: Window{EmbargoUntil: &now},
			want:   Published,
		},
		{
			name:   "expiry equal to now is neither expired nor expiring",
			window: Window{ExpireAfter: &now},
			want:   Published,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Evaluate(tt.window, now); got != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestEvaluateDraftRegardlessOfTimestamps(t *testing.T) {
	stamps := []*time.Time{nil, date(2020, 1, 1), date(2099, 1, 1), &now}
	for _, embargo := range stamps {
		for _, expire := range stamps {
			w := Window{EmbargoUntil: embargo, ExpireAfter: expire, Versioned: true}
			if got := Evaluate(w, now); got != Draft {
				t.Fatalf("expected draft for embargo=%v expire=%v, got %s", embargo, expire, got)
			}
		}
	}
}

func TestEvaluateUnversionedIgnoresPublishedFlag(t *testing.T) {
	w := Window{Published: false, Versioned: false}
	if got := Evaluate(w, now); got != Published {
		t.Fatalf("expected published, got %s", got)
	}
}

func TestStatusNames(t *testing.T) {
	for _, status := range []Status{Published, Draft, Embargoed, Expired, Expiring} {
		parsed, ok := ParseStatus(status.String())
		if !ok || parsed != status {
			t.Fatalf("expected %s to round trip, got %s (ok=%v)", status, parsed, ok)
		}
	}
	if _, ok := ParseStatus("archived"); ok {
		t.Fatal("expected unknown status name to fail")
	}
	if got := Status(42).String(); got != "unknown" {
		t.Fatalf("expected unknown, got %q", got)
	}
}

type fakeRecord struct {
	kind      string
	embargo   *time.Time
	expire    *time.Time
	published bool
}

func (r fakeRecord) RecordType() string                 { return r.kind }
func (r fakeRecord) Schedule() (*time.Time, *time.Time) { return r.embargo, r.expire }
func (r fakeRecord) IsPublished() bool                  { return r.published }

func TestEvaluatorMemoizesCapability(t *testing.T) {
	var calls atomic.Int32
	e := NewEvaluator(func(recordType string) bool {
		calls.Add(1)
		return recordType == "document"
	})

	draft := fakeRecord{kind: "document", embargo: date(2099, 1, 1)}
	if got := e.Status(draft, now); got != Draft {
		t.Fatalf("expected draft, got %s", got)
	}
	notice := fakeRecord{kind: "announcement", embargo: date(2099, 1, 1)}
	if got := e.Status(notice, now); got != Embargoed {
		t.Fatalf("expected embargoed, got %s", got)
	}

	for i := 0; i < 10; i++ {
		e.IsVersioned("document")
		e.IsVersioned("announcement")
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("expected 2 resolve calls, got %d", got)
	}
}

func TestEvaluatorConcurrentLookups(t *testing.T) {
	e := NewEvaluator(func(recordType string) bool { return recordType == "document" })

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				if !e.IsVersioned("document") {
					t.Error("expected document to be versioned")
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestEvaluatorNilResolver(t *testing.T) {
	e := NewEvaluator(nil)
	if e.IsVersioned("document") {
		t.Fatal("expected nil resolver to report unversioned")
	}
}
