package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// maxSecondsTimestamp is the upper bound for a numeric value to be read as
// Unix seconds (approximately year 5138). Larger values are milliseconds.
const maxSecondsTimestamp int64 = 1e11

// timestampLayouts are tried in order for string values. The backend emits
// Python isoformat() output, which may omit the zone.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Timestamp is a point in time that tolerates the backend's several
// encodings: RFC 3339, zone-less ISO 8601 (read as UTC), and numeric Unix
// seconds or milliseconds. It always marshals as RFC 3339.
type Timestamp time.Time

// Time returns the underlying time.Time value.
func (t Timestamp) Time() time.Time { return time.Time(t) }

// IsZero reports whether t is the zero instant.
func (t Timestamp) IsZero() bool { return time.Time(t).IsZero() }

// MarshalJSON serializes the timestamp as RFC 3339.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(t).UTC().Format(time.RFC3339Nano))
}

// UnmarshalJSON accepts strings, numbers and null.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = Timestamp{}
		return nil
	}
	if data[0] != '"' {
		value, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return fmt.Errorf("unmarshal timestamp: %w", err)
		}
		if int64(value) >= maxSecondsTimestamp {
			*t = Timestamp(time.UnixMilli(int64(value)).UTC())
		} else {
			sec := int64(value)
			nsec := int64((value - float64(sec)) * 1e9)
			*t = Timestamp(time.Unix(sec, nsec).UTC())
		}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("unmarshal timestamp: %w", err)
	}
	if s == "" {
		*t = Timestamp{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			*t = Timestamp(parsed.UTC())
			return nil
		}
	}
	return fmt.Errorf("unmarshal timestamp: unrecognized format %q", s)
}
