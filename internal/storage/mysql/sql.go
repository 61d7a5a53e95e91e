package mysql

// ---- writes ----

const insertPricesPrefix = "INSERT INTO competitor_prices\n  (hotel_id, competitor_name, check_in_date, room_type_raw, price_per_night, source)\nVALUES "

// A re-scrape of the same quote replaces the price; a NULL price never
// overwrites a known one.
const insertPricesOnDup = " ON DUPLICATE KEY UPDATE\n" +
	"  price_per_night = COALESCE(VALUES(price_per_night), competitor_prices.price_per_night),\n" +
	"  source          = VALUES(source),\n" +
	"  scraped_at      = CURRENT_TIMESTAMP\n"

const insertEventsPrefix = "INSERT INTO detected_events\n  (id, name, start_date, end_date, estimated_impact, distance_to_hotel_km, venue, url, lat, lon, source)\nVALUES "

const insertEventsOnDup = " ON DUPLICATE KEY UPDATE\n" +
	"  name                 = VALUES(name),\n" +
	"  start_date           = VALUES(start_date),\n" +
	"  end_date             = VALUES(end_date),\n" +
	"  estimated_impact     = VALUES(estimated_impact),\n" +
	"  distance_to_hotel_km = COALESCE(VALUES(distance_to_hotel_km), detected_events.distance_to_hotel_km),\n" +
	"  venue                = COALESCE(VALUES(venue), detected_events.venue),\n" +
	"  url                  = COALESCE(VALUES(url), detected_events.url),\n" +
	"  lat                  = COALESCE(VALUES(lat), detected_events.lat),\n" +
	"  lon                  = COALESCE(VALUES(lon), detected_events.lon),\n" +
	"  source               = VALUES(source)\n"

const insertRecsPrefix = "INSERT INTO price_recommendations\n" +
	"  (id, hotel_id, room_type_id, target_date, recommended_price, current_price, reasoning,\n" +
	"   recommendation_strength, status, generated_at, applied_at, user_id)\nVALUES "

const updateRecStatusSQL = `
UPDATE price_recommendations
SET status = ?, applied_at = ?, user_id = ?
WHERE id = ? AND status = ?
`

const insertMissSQL = `
INSERT INTO ingest_misses (source, miss_key, reason)
VALUES (?, ?, ?)
ON DUPLICATE KEY UPDATE reason = VALUES(reason), seen_at = CURRENT_TIMESTAMP
`

// ---- reads ----

const selectPricesSQL = `
SELECT hotel_id, competitor_name, check_in_date, room_type_raw, price_per_night, source
FROM competitor_prices
WHERE hotel_id = ? AND check_in_date BETWEEN ? AND ?
ORDER BY check_in_date, competitor_name, room_type_raw
`

// Overlapping events that can be placed at all; the radius is applied in Go
// because the distance is recomputed from coordinates when present.
const selectEventsSQL = `
SELECT id, name, start_date, end_date, estimated_impact, distance_to_hotel_km, venue, url, lat, lon, source
FROM detected_events
WHERE start_date <= ? AND end_date >= ?
  AND (distance_to_hotel_km IS NOT NULL OR (lat IS NOT NULL AND lon IS NOT NULL))
ORDER BY start_date, id
`

const recColumns = `id, hotel_id, room_type_id, target_date, recommended_price, current_price, reasoning,
  recommendation_strength, status, generated_at, applied_at, user_id`

const getRecSQL = "SELECT " + recColumns + "\nFROM price_recommendations\nWHERE id = ?"

const getRecStatusSQL = "SELECT status FROM price_recommendations WHERE id = ?"
