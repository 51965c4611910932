// Package rfctime has a time.Time wrapper that interchanges as RFC3339
// text, the timestamp format of result manifests.
package rfctime

import (
	"bytes"
	"encoding/json"
	"time"
)

// RFC3339DateTimeFormat stringifies with an explicit numeric offset,
// never "Z".
const RFC3339DateTimeFormat string = "2006-01-02T15:04:05.999-07:00"

// RFC3339 is a date-time as in https://www.ietf.org/rfc/rfc3339.txt .
//
// Timestamps folk writes and reads are of this type, so result
// manifests carry the same textual format everywhere.
type RFC3339 time.Time

func Now() RFC3339 {
	return RFC3339(time.Now())
}

func (t RFC3339) Time() time.Time {
	return time.Time(t)
}

// Equal reports whether both name the same instant, or both are nil.
func (t *RFC3339) Equal(other *RFC3339) bool {
	if (t == nil) != (other == nil) {
		return false
	}
	return t == nil || t.Time().Equal(other.Time())
}

// String formats by RFC3339DateTimeFormat.
func (t RFC3339) String() string {
	return time.Time(t).Format(RFC3339DateTimeFormat)
}

// ParseRFC3339DateTime accepts RFC3339 text, "Z" offsets included.
func ParseRFC3339DateTime(s string) (RFC3339, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return RFC3339{}, err
	}
	return RFC3339(t), nil
}

func (t RFC3339) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *RFC3339) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseRFC3339DateTime(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
