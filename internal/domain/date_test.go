package domain_test

import (
	"encoding/json"
	"testing"
	"time"

	"hotel_pricing/internal/domain"
)

func TestDate_JSONAndArithmetic(t *testing.T) {
	d := domain.MustParseDate("2025-02-27")
	if got := d.AddDays(2).String(); got != "2025-03-01" {
		t.Fatalf("AddDays across month end: %s", got)
	}

	b, err := json.Marshal(struct {
		D domain.Date `json:"d"`
		Z domain.Date `json:"z"`
	}{D: d})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"d":"2025-02-27","z":null}` {
		t.Fatalf("unexpected json %s", b)
	}

	var back struct{ D domain.Date }
	if err := json.Unmarshal([]byte(`{"D":"2025-02-27"}`), &back); err != nil || !back.D.Equal(d) {
		t.Fatalf("unmarshal: %v %v", back.D, err)
	}
	if err := json.Unmarshal([]byte(`{"D":"27/02/2025"}`), &back); err == nil {
		t.Fatalf("expected ISO-only parsing")
	}
}

func TestDateOf_IgnoresClockTime(t *testing.T) {
	tj := time.FixedZone("PST", -8*3600)
	late := time.Date(2025, 3, 10, 23, 30, 0, 0, tj)
	if got := domain.DateOf(late).String(); got != "2025-03-10" {
		t.Fatalf("DateOf uses the local calendar day, got %s", got)
	}
}

func TestDetectedEvent_Ranges(t *testing.T) {
	ev := domain.DetectedEvent{StartDate: domain.MustParseDate("2025-03-10"), EndDate: domain.MustParseDate("2025-03-12")}
	for day, want := range map[string]bool{"2025-03-09": false, "2025-03-10": true, "2025-03-12": true, "2025-03-13": false} {
		if got := ev.ActiveOn(domain.MustParseDate(day)); got != want {
			t.Fatalf("ActiveOn(%s) = %v", day, got)
		}
	}
	if !ev.Overlaps(domain.MustParseDate("2025-03-12"), domain.MustParseDate("2025-03-20")) {
		t.Fatalf("expected overlap on the last day")
	}
	if ev.Overlaps(domain.MustParseDate("2025-03-13"), domain.MustParseDate("2025-03-20")) {
		t.Fatalf("unexpected overlap")
	}
}
