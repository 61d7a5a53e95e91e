package app

import (
	"crypto/sha1"
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"
	"time"

	"hotel_pricing/internal/domain"
)

/********** alias registries (single source of truth) **********/

// The scrapers write loose JSON with Spanish keys; older exports use English ones.
var competitorAliases = map[string][]string{
	"competitor": {"competitor_name", "nombre", "hotel", "hotel_name", "name"},
	"date":       {"check_in_date", "fecha", "fecha_entrada", "date", "checkin"},
	"price":      {"price_per_night", "precio", "precio_noche", "precio_promedio", "price", "rate"},
	"room_type":  {"room_type_raw", "room_type", "tipo_habitacion", "habitacion"},
	"source":     {"source", "fuente", "platform", "site"},
}

var eventAliases = map[string][]string{
	"id":       {"id", "event_id"},
	"name":     {"name", "nombre", "title", "titulo"},
	"start":    {"start_date", "fecha", "fecha_inicio", "date"},
	"end":      {"end_date", "fecha_fin"},
	"venue":    {"venue", "lugar", "location", "ubicacion"},
	"url":      {"url", "enlace", "link"},
	"impact":   {"estimated_impact", "impacto", "impact"},
	"source":   {"source", "fuente"},
	"lat":      {"latitude", "lat", "location.lat"},
	"lon":      {"longitude", "lon", "lng", "location.lon", "location.lng"},
	"distance": {"distance_to_hotel_km", "distance_km", "distancia_km"},
}

var impactAliases = map[string]domain.Impact{
	"high": domain.ImpactHigh, "alto": domain.ImpactHigh, "alta": domain.ImpactHigh,
	"medium": domain.ImpactMedium, "medio": domain.ImpactMedium, "media": domain.ImpactMedium,
	"low": domain.ImpactLow, "bajo": domain.ImpactLow, "baja": domain.ImpactLow,
}

var dateLayouts = []string{
	domain.DateLayout,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"02/01/2006",
}

/********** tiny helpers **********/

// lookupAny: safe nested lookup with dot paths on maps.
func lookupAny(m map[string]any, path string) any {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		v, ok := obj[part]
		if !ok {
			return nil
		}
		cur = v
	}
	return cur
}

// lookupStr returns string at path or "".
func lookupStr(m map[string]any, path string) string {
	if v := lookupAny(m, path); v != nil {
		if s, ok := v.(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// firstNonEmptyAlias: first non-empty string for a named alias set.
func firstNonEmptyAlias(m map[string]any, aliases map[string][]string, key string) *string {
	for _, p := range aliases[key] {
		if s := lookupStr(m, p); s != "" {
			return &s
		}
	}
	return nil
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// getFloatFlexible: number from several paths (float64/int/string like "8,0").
func getFloatFlexible(m map[string]any, paths ...string) *float64 {
	for _, k := range paths {
		switch v := lookupAny(m, k).(type) {
		case float64:
			f := v
			return &f
		case int:
			f := float64(v)
			return &f
		case string:
			s := strings.TrimSpace(strings.ReplaceAll(v, ",", "."))
			if s == "" {
				continue
			}
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return &f
			}
		}
	}
	return nil
}

var nonNumeric = regexp.MustCompile(`[^0-9.,\-]`)

// parsePrice reads scraped money strings such as "$1,250 MXN", "1.250,50",
// "MXN 1.250" or "890".
func parsePrice(s string) (float64, bool) {
	s = nonNumeric.ReplaceAllString(s, "")
	if s == "" {
		return 0, false
	}
	comma, dot := strings.LastIndexByte(s, ','), strings.LastIndexByte(s, '.')
	switch {
	case comma >= 0 && dot >= 0:
		if comma > dot { // 1.250,50
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else { // 1,250.50
			s = strings.ReplaceAll(s, ",", "")
		}
	case comma >= 0:
		if thousandsSep(s, ',', comma) { // 1,250
			s = strings.ReplaceAll(s, ",", "")
		} else { // 89,5
			s = strings.Replace(s, ",", ".", 1)
		}
	case dot >= 0:
		if thousandsSep(s, '.', dot) { // 1.250 on es-MX listings
			s = strings.ReplaceAll(s, ".", "")
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0, false
	}
	return f, true
}

// thousandsSep reports whether sep groups digits: it repeats, or exactly three
// digits follow its last occurrence.
func thousandsSep(s string, sep byte, last int) bool {
	return strings.Count(s, string(sep)) > 1 || len(s)-last-1 == 3
}

func priceFlexible(m map[string]any, paths ...string) *float64 {
	for _, k := range paths {
		switch v := lookupAny(m, k).(type) {
		case float64:
			if v >= 0 {
				f := v
				return &f
			}
		case int:
			if v >= 0 {
				f := float64(v)
				return &f
			}
		case string:
			if f, ok := parsePrice(v); ok {
				return &f
			}
		}
	}
	return nil
}

func parseDateFlexible(s string) (domain.Date, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return domain.DateOf(t), true
		}
	}
	return domain.Date{}, false
}

func normalizeImpact(raw string) domain.Impact {
	raw = strings.TrimSpace(raw)
	if imp, ok := impactAliases[strings.ToLower(raw)]; ok {
		return imp
	}
	return domain.Impact(raw)
}

func stableID(parts ...string) string {
	sum := sha1.Sum([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

/********** competitor price mapper **********/

// mapCompetitorPrice returns a non-empty reason when the row cannot be used.
// A row with no price is still kept: the engine treats it as "seen, unpriced".
func mapCompetitorPrice(hotelID string, r map[string]any) (domain.CompetitorPriceObservation, string) {
	name := deref(firstNonEmptyAlias(r, competitorAliases, "competitor"))
	if name == "" {
		return domain.CompetitorPriceObservation{}, "missing competitor name"
	}
	rawDate := deref(firstNonEmptyAlias(r, competitorAliases, "date"))
	d, ok := parseDateFlexible(rawDate)
	if !ok {
		return domain.CompetitorPriceObservation{}, "unparseable check-in date " + strconv.Quote(rawDate)
	}
	source := deref(firstNonEmptyAlias(r, competitorAliases, "source"))
	if source == "" {
		source = "scraper"
	}
	return domain.CompetitorPriceObservation{
		HotelID:        hotelID,
		CompetitorName: name,
		CheckInDate:    d,
		PricePerNight:  priceFlexible(r, competitorAliases["price"]...),
		RoomTypeRaw:    firstNonEmptyAlias(r, competitorAliases, "room_type"),
		Source:         source,
	}, ""
}

/********** event mapper **********/

func mapEvent(r map[string]any) (domain.DetectedEvent, string) {
	name := deref(firstNonEmptyAlias(r, eventAliases, "name"))
	if name == "" {
		return domain.DetectedEvent{}, "missing event name"
	}
	rawStart := deref(firstNonEmptyAlias(r, eventAliases, "start"))
	start, ok := parseDateFlexible(rawStart)
	if !ok {
		return domain.DetectedEvent{}, "unparseable start date " + strconv.Quote(rawStart)
	}
	end := start
	if rawEnd := deref(firstNonEmptyAlias(r, eventAliases, "end")); rawEnd != "" {
		if end, ok = parseDateFlexible(rawEnd); !ok {
			return domain.DetectedEvent{}, "unparseable end date " + strconv.Quote(rawEnd)
		}
	}
	if end.Before(start) {
		return domain.DetectedEvent{}, "end date before start date"
	}

	ev := domain.DetectedEvent{
		Name:              name,
		StartDate:         start,
		EndDate:           end,
		EstimatedImpact:   normalizeImpact(deref(firstNonEmptyAlias(r, eventAliases, "impact"))),
		DistanceToHotelKm: getFloatFlexible(r, eventAliases["distance"]...),
		Venue:             firstNonEmptyAlias(r, eventAliases, "venue"),
		URL:               firstNonEmptyAlias(r, eventAliases, "url"),
		Lat:               getFloatFlexible(r, eventAliases["lat"]...),
		Lon:               getFloatFlexible(r, eventAliases["lon"]...),
		Source:            deref(firstNonEmptyAlias(r, eventAliases, "source")),
	}
	if ev.Lat == nil || ev.Lon == nil {
		ev.Lat, ev.Lon = nil, nil
	}
	if ev.Source == "" {
		ev.Source = "scraper"
	}
	if id := firstNonEmptyAlias(r, eventAliases, "id"); id != nil {
		ev.ID = *id
	} else {
		ev.ID = stableID(name, start.String(), deref(ev.Venue))
	}
	return ev, ""
}
