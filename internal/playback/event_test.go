package playback

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/amrahmed242/location-mocker/internal/gpx"
)

func TestNewEventOptionalKeys(t *testing.T) {
	bare := NewEvent("s-1", 0, gpx.NewPoint(-6.2, 106.8))
	m := bare.Map()
	if len(m) != 2 || m["latitude"] != -6.2 || m["longitude"] != 106.8 {
		t.Fatalf("unexpected map %v", m)
	}

	ts := time.Date(2024, 5, 1, 9, 0, 0, 123456789, time.FixedZone("WIB", 7*3600))
	full := NewEvent("s-1", 3, gpx.NewPoint(-6.2, 106.8).WithElevation(12).WithBearing(90).WithTime(ts))
	m = full.Map()
	if len(m) != 5 {
		t.Fatalf("expected 5 keys, got %v", m)
	}
	if m["time"] != "2024-05-01T02:00:00.123Z" {
		t.Fatalf("unexpected time %v", m["time"])
	}
	if m["elevation"] != 12.0 || m["bearing"] != 90.0 {
		t.Fatalf("unexpected optional values %v", m)
	}
}

func TestEventJSONMatchesMap(t *testing.T) {
	ev := NewEvent("s-1", 1, gpx.NewPoint(1, 2).WithElevation(3))
	raw, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(decoded) != 3 {
		t.Fatalf("unexpected payload %s", raw)
	}
	if _, ok := decoded["session_id"]; ok {
		t.Fatalf("session id must not leak into the payload")
	}
}
