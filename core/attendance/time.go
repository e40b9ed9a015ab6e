package attendance

import (
	"bytes"
	"time"

	"github.com/pkg/errors"
)

// naiveLayout is an ISO 8601 timestamp without zone, as emitted by the backend. It is read as UTC.
const naiveLayout = "2006-01-02T15:04:05.999999999"

// Time is a time.Time that also accepts zone-less ISO 8601 timestamps.
type Time struct {
	time.Time
}

func NewTime(t time.Time) Time { return Time{t.UTC()} }

func (t *Time) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	s := string(bytes.Trim(data, `"`))
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
		t.Time = parsed
		return nil
	}
	parsed, err := time.ParseInLocation(naiveLayout, s, time.UTC)
	if err != nil {
		return errors.Wrapf(err, "parsing timestamp %q", s)
	}
	t.Time = parsed
	return nil
}

func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + t.Format(time.RFC3339Nano) + `"`), nil
}
