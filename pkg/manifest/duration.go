package manifest

import (
	"encoding/json"
	"fmt"
	"time"
)

// Duration is time.Duration which interchanges as a string like "90s"
// or "10m" in JSON.
type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// implement encoding/json.Marshaller
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// implement encoding/json.Unmarshaller
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration should be a string like \"90s\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}
