package jsontime

import (
	"encoding/json"
	"testing"
	"time"
)

func TestMilliRoundTrip(t *testing.T) {
	orig := Milli(time.UnixMilli(1_700_000_123_456))
	data, err := json.Marshal(orig)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != "1700000123456" {
		t.Fatalf("Marshal = %s", data)
	}
	var got Milli
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !got.Equal(orig) {
		t.Fatalf("round trip: got %v, want %v", got, orig)
	}
}

func TestMilliTruncatesSubMillisecond(t *testing.T) {
	fine := Milli(time.UnixMilli(1000).Add(400 * time.Microsecond))
	coarse := Milli(time.UnixMilli(1000))
	if !fine.Equal(coarse) {
		t.Fatal("sub-millisecond precision should not affect equality")
	}

	data, err := json.Marshal(fine)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var got Milli
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Time().UnixMilli() != 1000 {
		t.Fatalf("got %d, want 1000", got.Time().UnixMilli())
	}
}

func TestMilliOrdering(t *testing.T) {
	a := Milli(time.UnixMilli(1))
	b := Milli(time.UnixMilli(2))
	if !a.Before(b) || !b.After(a) {
		t.Fatal("ordering broken")
	}
	if a.IsZero() {
		t.Fatal("non-zero time reported zero")
	}
	if !(Milli{}).IsZero() {
		t.Fatal("zero value not zero")
	}
}
