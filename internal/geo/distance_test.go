package geo_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"hotel_pricing/internal/domain"
	"hotel_pricing/internal/geo"
)

func TestDistanceKm(t *testing.T) {
	grand := domain.Coords{Lat: 32.5149, Lon: -117.0382}

	assert.Zero(t, geo.DistanceKm(grand, grand))

	// Tijuana -> San Diego downtown, roughly 25 km
	sd := domain.Coords{Lat: 32.7157, Lon: -117.1611}
	assert.InDelta(t, 25.1, geo.DistanceKm(grand, sd), 0.5)
	assert.InDelta(t, geo.DistanceKm(grand, sd), geo.DistanceKm(sd, grand), 1e-9)

	// one degree of latitude
	assert.InDelta(t, 111.19, geo.DistanceKm(domain.Coords{Lat: 0, Lon: 0}, domain.Coords{Lat: 1, Lon: 0}), 0.01)
}

func TestWithin(t *testing.T) {
	grand := domain.Coords{Lat: 32.5149, Lon: -117.0382}
	realDelRio := domain.Coords{Lat: 32.5283, Lon: -117.0187}
	sd := domain.Coords{Lat: 32.7157, Lon: -117.1611}

	assert.True(t, geo.Within(grand, realDelRio, 20))
	assert.False(t, geo.Within(grand, sd, 20))
}

func TestFilterNearby(t *testing.T) {
	grand := domain.Coords{Lat: 32.5149, Lon: -117.0382}
	f := func(v float64) *float64 { return &v }

	evs := []domain.DetectedEvent{
		{ID: "coords-near", Lat: f(32.5283), Lon: f(-117.0187), DistanceToHotelKm: f(99)},
		{ID: "coords-far", Lat: f(32.7157), Lon: f(-117.1611)},
		{ID: "stored-near", DistanceToHotelKm: f(12.5)},
		{ID: "stored-edge", DistanceToHotelKm: f(20)},
		{ID: "unknown"},
	}
	got := geo.FilterNearby(grand, evs, 20)

	ids := make([]string, 0, len(got))
	for _, ev := range got {
		ids = append(ids, ev.ID)
	}
	assert.Equal(t, []string{"coords-near", "stored-near", "stored-edge"}, ids)
	// recomputed from coordinates, not the stale stored value
	assert.InDelta(t, 2.4, *got[0].DistanceToHotelKm, 0.3)
	// input slice untouched
	assert.Equal(t, 99.0, *evs[0].DistanceToHotelKm)
}

func TestRoundKm(t *testing.T) {
	assert.Equal(t, 25.12, geo.RoundKm(25.1234))
	assert.Equal(t, 0.0, geo.RoundKm(0))
}
