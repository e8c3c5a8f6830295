package clock

import "time"

const (
	layoutSeconds = "2006-01-02T15:04:05"
	layoutMicros  = "2006-01-02T15:04:05.000000"
)

// Format renders t as a naive ISO 8601 timestamp in t's own location.
// The fractional part has microsecond precision and is omitted when it is zero.
func Format(t time.Time) string {
	t = t.Truncate(time.Microsecond)
	if t.Nanosecond() == 0 {
		return t.Format(layoutSeconds)
	}
	return t.Format(layoutMicros)
}

// Clock produces timestamps for the time/now tool.
type Clock struct {
	loc    *time.Location
	source func() time.Time
}

// New returns a Clock reading from source in loc.
// A nil loc means time.Local and a nil source means time.Now.
func New(loc *time.Location, source func() time.Time) *Clock {
	if loc == nil {
		loc = time.Local
	}
	if source == nil {
		source = time.Now
	}
	return &Clock{loc: loc, source: source}
}

// Now returns the current time formatted by Format.
func (c *Clock) Now() string {
	return Format(c.source().In(c.loc))
}

// Location returns the zone timestamps are rendered in.
func (c *Clock) Location() *time.Location {
	return c.loc
}

// LoadLocation resolves a configured zone name. Empty and "Local" select time.Local.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" || name == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(name)
}
