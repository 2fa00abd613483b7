package schedule

import "time"

// Status is the single visibility state derived from a schedule window
type Status int

const (
	Published Status = iota
	Draft
	Embargoed
	Expired
	Expiring
)

var statusNames = map[Status]string{
	Published: "published",
	Draft:     "draft",
	Embargoed: "embargoed",
	Expired:   "expired",
	Expiring:  "expiring",
}

// String returns the machine name of the status
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// MarshalText encodes the status by name so JSON responses stay readable
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ParseStatus maps a machine name back to its Status
func ParseStatus(name string) (Status, bool) {
	for status, n := range statusNames {
		if n == name {
			return status, true
		}
	}
	return Published, false
}

// Window is the schedule attached to a record plus the versioning facts
// needed to interpret it
type Window struct {
	EmbargoUntil *time.Time // hidden while now < EmbargoUntil
	ExpireAfter  *time.Time // hidden while now > ExpireAfter
	Published    bool
	Versioned    bool
}

// Evaluate derives the status of w at now. Checks run in priority order and
// the first match wins: a versioned record that is not published is a draft
// whatever its timestamps say.
func Evaluate(w Window, now time.Time) Status {
	switch {
	case w.Versioned && !w.Published:
		return Draft
	case IsEmbargoed(w, now):
		return Embargoed
	case HasExpired(w, now):
		return Expired
	case IsScheduledToExpire(w, now):
		return Expiring
	default:
		return Published
	}
}

// IsEmbargoed reports whether the embargo is set and still in the future
func IsEmbargoed(w Window, now time.Time) bool {
	return w.EmbargoUntil != nil && now.Before(*w.EmbargoUntil)
}

// HasExpired reports whether the expiry is set and already in the past
func HasExpired(w Window, now time.Time) bool {
	return w.ExpireAfter != nil && now.After(*w.ExpireAfter)
}

// IsScheduledToExpire reports whether the expiry is set and still ahead
func IsScheduledToExpire(w Window, now time.Time) bool {
	return w.ExpireAfter != nil && now.Before(*w.ExpireAfter)
}

// relevantTime returns the timestamp a status label refers to
func relevantTime(status Status, w Window) *time.Time {
	switch status {
	case Embargoed:
		return w.EmbargoUntil
	case Expired, Expiring:
		return w.ExpireAfter
	default:
		return nil
	}
}
