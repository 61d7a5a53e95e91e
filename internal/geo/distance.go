package geo

import (
	"math"

	"github.com/shopspring/decimal"

	"hotel_pricing/internal/domain"
)

// Mean Earth radius (IUGG).
const earthRadiusKm = 6371.0088

// DistanceKm returns the great-circle distance between a and b.
func DistanceKm(a, b domain.Coords) float64 {
	lat1, lat2 := rad(a.Lat), rad(b.Lat)
	dLat := lat2 - lat1
	dLon := rad(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

func Within(a, b domain.Coords, radiusKm float64) bool {
	return DistanceKm(a, b) <= radiusKm
}

// RoundKm rounds to the 2 decimals distances are stored with.
func RoundKm(km float64) float64 { return decimal.NewFromFloat(km).Round(2).InexactFloat64() }

// EventDistanceKm measures ev from c. Events carrying coordinates are measured
// directly; otherwise the distance recorded at ingest time is used. ok is false
// when neither is known.
func EventDistanceKm(c domain.Coords, ev domain.DetectedEvent) (km float64, ok bool) {
	if ev.Lat != nil && ev.Lon != nil {
		return RoundKm(DistanceKm(c, domain.Coords{Lat: *ev.Lat, Lon: *ev.Lon})), true
	}
	if ev.DistanceToHotelKm != nil {
		return *ev.DistanceToHotelKm, true
	}
	return 0, false
}

// FilterNearby keeps events within radiusKm of c, setting DistanceToHotelKm
// to the distance from c.
func FilterNearby(c domain.Coords, evs []domain.DetectedEvent, radiusKm float64) []domain.DetectedEvent {
	out := make([]domain.DetectedEvent, 0, len(evs))
	for _, ev := range evs {
		km, ok := EventDistanceKm(c, ev)
		if !ok || km > radiusKm {
			continue
		}
		ev.DistanceToHotelKm = &km
		out = append(out, ev)
	}
	return out
}

func rad(deg float64) float64 { return deg * math.Pi / 180 }
