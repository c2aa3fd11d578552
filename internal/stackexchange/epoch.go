package stackexchange

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Date is a calendar day with no time-of-day component. It converts to
// midnight UTC.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// Time returns midnight UTC of the day.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) String() string {
	return d.Time().Format(time.DateOnly)
}

// ToEpoch converts a timestamp to Unix seconds. Accepted inputs are
// time.Time, *time.Time, Date and integer epoch seconds. The boolean is false
// for nil and zero times, meaning "no bound". Converting an integer is the
// identity, so ToEpoch(ToEpoch(x)) == ToEpoch(x).
func ToEpoch(v any) (int64, bool) {
	switch ts := v.(type) {
	case nil:
		return 0, false
	case time.Time:
		if ts.IsZero() {
			return 0, false
		}
		return ts.Unix(), true
	case *time.Time:
		if ts == nil || ts.IsZero() {
			return 0, false
		}
		return ts.Unix(), true
	case Date:
		return ts.Time().Unix(), true
	case int:
		return int64(ts), true
	case int32:
		return int64(ts), true
	case int64:
		return ts, true
	case uint32:
		return int64(ts), true
	default:
		return 0, false
	}
}

// ParseTimestamp reads a command-line bound: epoch seconds, a YYYY-MM-DD day
// or an RFC 3339 timestamp. An empty string yields nil.
func ParseTimestamp(raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n, nil
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return nil, fmt.Errorf("unrecognized timestamp %q: want epoch seconds, YYYY-MM-DD or RFC 3339", raw)
}
