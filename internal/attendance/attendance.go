// Package attendance tracks when each person was last marked present.
package attendance

import (
	"time"
)

// DefaultCooldown is the minimum gap before a person can be marked again.
const DefaultCooldown = time.Hour

// Outcome is the result of a mark attempt.
type Outcome int

const (
	// Marked means the timestamp was recorded or updated.
	Marked Outcome = iota + 1
	// AlreadyMarked means the person was marked within the cooldown and
	// nothing changed.
	AlreadyMarked
)

func (o Outcome) String() string {
	switch o {
	case Marked:
		return "marked"
	case AlreadyMarked:
		return "already_marked"
	default:
		return "none"
	}
}

// Entry is one row of attendance.
type Entry struct {
	Name string    `json:"name"`
	At   time.Time `json:"at"`
}

// Register maps person names to their last-marked time. Entries keep the
// order in which people were first marked. Register is not safe for
// concurrent use.
type Register struct {
	cooldown time.Duration
	order    []string
	last     map[string]time.Time
}

// NewRegister creates an empty register. A negative cooldown uses
// DefaultCooldown; zero re-marks on every sighting.
func NewRegister(cooldown time.Duration) *Register {
	if cooldown < 0 {
		cooldown = DefaultCooldown
	}
	return &Register{
		cooldown: cooldown,
		last:     make(map[string]time.Time),
	}
}

// Cooldown returns the configured cooldown.
func (r *Register) Cooldown() time.Duration {
	return r.cooldown
}

// Seed loads previously saved entries. A name seen twice keeps its later
// timestamp and its first position.
func (r *Register) Seed(entries []Entry) {
	for _, e := range entries {
		if e.Name == "" {
			continue
		}
		r.set(e.Name, e.At)
	}
}

// Mark records name as present at now unless it was marked within the
// cooldown. The returned time is the timestamp in effect after the call.
func (r *Register) Mark(name string, now time.Time) (Outcome, time.Time) {
	if prev, ok := r.Last(name); ok && now.Sub(prev) <= r.cooldown {
		return AlreadyMarked, prev
	}
	r.set(name, now)
	return Marked, now
}

func (r *Register) set(name string, at time.Time) {
	if _, ok := r.last[name]; !ok {
		r.order = append(r.order, name)
	}
	r.last[name] = at
}

// Last returns when name was last marked.
func (r *Register) Last(name string) (time.Time, bool) {
	t, ok := r.last[name]
	return t, ok
}

// Entries returns a snapshot of all entries in first-mark order.
func (r *Register) Entries() []Entry {
	entries := make([]Entry, 0, len(r.order))
	for _, name := range r.order {
		entries = append(entries, Entry{Name: name, At: r.last[name]})
	}
	return entries
}

// Len returns the number of people marked.
func (r *Register) Len() int {
	return len(r.order)
}
