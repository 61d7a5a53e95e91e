package app

import (
	"testing"

	"hotel_pricing/internal/domain"
)

func TestParsePrice(t *testing.T) {
	cases := map[string]float64{
		"890":         890,
		"$1,250 MXN":  1250,
		"1,250.50":    1250.5,
		"1.250,50":    1250.5,
		"89,5":        89.5,
		"MXN 2 100":   2100,
		"  $ 999.99 ": 999.99,
		"MXN 1.250":   1250,
		"$2.100":      2100,
		"1.250.000":   1250000,
		"1,250,000":   1250000,
		"1.5":         1.5,
	}
	for in, want := range cases {
		got, ok := parsePrice(in)
		if !ok || got != want {
			t.Fatalf("parsePrice(%q) = %v, %v; want %v", in, got, ok, want)
		}
	}
	for _, in := range []string{"", "consultar", "-", "-10"} {
		if _, ok := parsePrice(in); ok {
			t.Fatalf("parsePrice(%q) should fail", in)
		}
	}
}

func TestParseDateFlexible(t *testing.T) {
	for _, in := range []string{"2025-03-10", "2025-03-10T18:00:00Z", "2025-03-10 18:00:00", "10/03/2025"} {
		d, ok := parseDateFlexible(in)
		if !ok || d.String() != "2025-03-10" {
			t.Fatalf("parseDateFlexible(%q) = %v, %v", in, d, ok)
		}
	}
}

func TestNormalizeImpact(t *testing.T) {
	if normalizeImpact("ALTA") != domain.ImpactHigh || normalizeImpact(" Low ") != domain.ImpactLow {
		t.Fatalf("expected alias normalization")
	}
	if normalizeImpact("Critical") != "Critical" {
		t.Fatalf("unknown labels are kept as scraped")
	}
	if normalizeImpact("") != "" {
		t.Fatalf("missing impact stays empty")
	}
}

func TestMapEvent_StableIDAndCoords(t *testing.T) {
	r := map[string]any{"title": "Feria", "date": "2025-05-01", "location": "Parque Morelos", "lat": 32.5}
	a, reason := mapEvent(r)
	if reason != "" {
		t.Fatalf("unexpected reason %q", reason)
	}
	b, _ := mapEvent(r)
	if a.ID == "" || a.ID != b.ID {
		t.Fatalf("expected stable id, got %q and %q", a.ID, b.ID)
	}
	if a.Lat != nil || a.Lon != nil {
		t.Fatalf("a lone latitude must be dropped")
	}
	if a.Venue == nil || *a.Venue != "Parque Morelos" {
		t.Fatalf("unexpected venue %v", a.Venue)
	}
}

func TestMapCompetitorPrice_NestedPaths(t *testing.T) {
	r := map[string]any{"name": "Hotel Real del Río", "date": "2025-05-01", "rate": map[string]any{}}
	o, reason := mapCompetitorPrice("h1", r)
	if reason != "" {
		t.Fatalf("unexpected reason %q", reason)
	}
	if o.PricePerNight != nil {
		t.Fatalf("non-numeric price must map to nil")
	}
}
