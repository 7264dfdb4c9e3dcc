package codec

import (
	"fmt"
	"strings"
	"time"
)

// DateTimeLayout is the one ISO-8601 profile the service emits: UTC with
// millisecond precision.
const DateTimeLayout = "2006-01-02T15:04:05.000Z07:00"

// DateTime is a timestamp that always encodes with DateTimeLayout and
// accepts any RFC 3339 offset on input.
type DateTime struct {
	time.Time
}

// NewDateTime normalizes t to UTC truncated to milliseconds.
func NewDateTime(t time.Time) DateTime {
	return DateTime{Time: t.UTC().Truncate(time.Millisecond)}
}

// Now returns the current time as a DateTime.
func Now() DateTime {
	return NewDateTime(time.Now())
}

// ParseDateTime parses an RFC 3339 timestamp and normalizes it.
func ParseDateTime(s string) (DateTime, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return DateTime{}, fmt.Errorf("invalid date-time %q: %w", s, err)
	}
	return NewDateTime(t), nil
}

// String formats d with DateTimeLayout.
func (d DateTime) String() string {
	return d.UTC().Format(DateTimeLayout)
}

// Equal reports whether both values denote the same instant.
func (d DateTime) Equal(o DateTime) bool {
	return d.Time.Equal(o.Time)
}

// MarshalJSON implements json.Marshaler.
func (d DateTime) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *DateTime) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		return nil
	}
	if len(s) < 2 || !strings.HasPrefix(s, `"`) || !strings.HasSuffix(s, `"`) {
		return fmt.Errorf("invalid date-time %s: expected string", s)
	}
	parsed, err := ParseDateTime(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
