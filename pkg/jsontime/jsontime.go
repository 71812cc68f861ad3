// Package jsontime provides the JSON-serializable time type used in all
// persisted wiki metadata. Timestamps are stored as Unix milliseconds so
// they round-trip exactly regardless of the writer's locale or platform.
package jsontime

import (
	"encoding/json"
	"time"
)

// Milli is a time.Time that serializes to/from Unix milliseconds in JSON.
type Milli time.Time

// Now returns the current time as Milli.
func Now() Milli {
	return Milli(time.Now())
}

// Time returns the underlying time.Time value.
func (m Milli) Time() time.Time {
	return time.Time(m)
}

// IsZero reports whether m represents the zero time instant.
func (m Milli) IsZero() bool {
	return time.Time(m).IsZero()
}

// Before reports whether m is before t.
func (m Milli) Before(t Milli) bool {
	return time.Time(m).Before(time.Time(t))
}

// After reports whether m is after t.
func (m Milli) After(t Milli) bool {
	return time.Time(m).After(time.Time(t))
}

// Equal reports whether m and t represent the same millisecond.
// Sub-millisecond precision is lost on serialization, so equality is
// defined at the stored granularity.
func (m Milli) Equal(t Milli) bool {
	return time.Time(m).UnixMilli() == time.Time(t).UnixMilli()
}

// String returns the time in RFC 3339 format.
func (m Milli) String() string {
	return time.Time(m).Format(time.RFC3339)
}

// MarshalJSON implements json.Marshaler.
func (m Milli) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(m).UnixMilli())
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Milli) UnmarshalJSON(b []byte) error {
	var ms int64
	if err := json.Unmarshal(b, &ms); err != nil {
		return err
	}
	*m = Milli(time.UnixMilli(ms))
	return nil
}
