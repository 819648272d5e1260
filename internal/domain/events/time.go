package events

import (
	"strings"
	"time"

	"github.com/Togather-Foundation/agenda/internal/validation"
)

// InputTimeLayout is the value format of an HTML datetime-local input.
const InputTimeLayout = "2006-01-02T15:04"

// MsgInvalidTime is shown when ParseEventTime rejects a value.
const MsgInvalidTime = "Invalid date/time format"

// Seconds may carry a fractional part even though the layout omits it.
var eventTimeLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04-0700",
	"2006-01-02T15:04:05-0700",
	"2006-01-02",
}

// ParseEventTime parses a datetime-local value or an ISO-8601 date/time.
// A space may replace the T separator and a bare date means midnight. When an
// offset is present the value is converted to UTC; the result never carries
// a zone other than UTC.
func ParseEventTime(raw string) (time.Time, error) {
	value := strings.TrimSpace(raw)
	if len(value) > 10 && value[10] == ' ' {
		value = value[:10] + "T" + value[11:]
	}

	for _, layout := range eventTimeLayouts {
		parsed, err := time.Parse(layout, value)
		if err != nil {
			continue
		}
		utc := parsed.UTC()
		return time.Date(utc.Year(), utc.Month(), utc.Day(), utc.Hour(), utc.Minute(), utc.Second(), utc.Nanosecond(), time.UTC), nil
	}
	return time.Time{}, validation.NewInputError("event_time", MsgInvalidTime)
}

// FormatInputTime renders t for a datetime-local input.
func FormatInputTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(InputTimeLayout)
}
