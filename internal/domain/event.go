package domain

type Impact string

const (
	ImpactHigh   Impact = "High"
	ImpactMedium Impact = "Medium"
	ImpactLow    Impact = "Low"
)

// DetectedEvent is a local event with an inclusive [StartDate, EndDate] range.
// EstimatedImpact may carry a label outside High/Medium/Low; it is kept as scraped.
type DetectedEvent struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	StartDate         Date     `json:"start_date"`
	EndDate           Date     `json:"end_date"`
	EstimatedImpact   Impact   `json:"estimated_impact"`
	DistanceToHotelKm *float64 `json:"distance_to_hotel_km"`
	Venue             *string  `json:"venue,omitempty"`
	URL               *string  `json:"url,omitempty"`
	Lat               *float64 `json:"lat,omitempty"`
	Lon               *float64 `json:"lon,omitempty"`
	Source            string   `json:"source,omitempty"`
}

// ActiveOn reports whether d falls inside the event's inclusive date range.
func (e DetectedEvent) ActiveOn(d Date) bool { return d.Between(e.StartDate, e.EndDate) }

// Overlaps reports whether the event is active on at least one day of [start, end].
func (e DetectedEvent) Overlaps(start, end Date) bool {
	return !e.StartDate.After(end) && !e.EndDate.Before(start)
}
