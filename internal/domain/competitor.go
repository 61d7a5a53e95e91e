package domain

// CompetitorPriceObservation is one scraped nightly quote from a competitor of
// HotelID. PricePerNight is nil when the scraper saw the listing but no price.
type CompetitorPriceObservation struct {
	HotelID        string   `json:"hotel_id"`
	CompetitorName string   `json:"competitor_name"`
	CheckInDate    Date     `json:"check_in_date"`
	PricePerNight  *float64 `json:"price_per_night"`
	RoomTypeRaw    *string  `json:"room_type_raw,omitempty"`
	Source         string   `json:"source,omitempty"`
}
