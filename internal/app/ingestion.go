package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"hotel_pricing/internal/adapters/observability"
	"hotel_pricing/internal/domain"
	"hotel_pricing/internal/geo"
)

const (
	sourcePrices = "competitor_prices"
	sourceEvents = "detected_events"
)

// IngestReport summarizes one file load.
type IngestReport struct {
	Kind     string `json:"kind"`
	Received int    `json:"received"`
	Stored   int    `json:"stored"`
	Skipped  int    `json:"skipped"`
	Geocoded int    `json:"geocoded,omitempty"`
}

type IngestionService struct {
	repo     domain.IngestRepository
	geocoder domain.Geocoder
	cache    domain.Cache
	geoTTL   time.Duration
	suffix   string
}

// NewIngestionService wires the ingest store and the venue geocoder. suffix is
// appended to venue names before geocoding ("Tijuana, Baja California").
func NewIngestionService(r domain.IngestRepository, g domain.Geocoder, c domain.Cache, geoTTL time.Duration, suffix string) *IngestionService {
	return &IngestionService{repo: r, geocoder: g, cache: c, geoTTL: geoTTL, suffix: strings.TrimSpace(suffix)}
}

// IngestCompetitorPrices maps scraped rows for competitors of hotelID and
// upserts the usable ones. Unusable rows are logged as misses and skipped.
func (s *IngestionService) IngestCompetitorPrices(ctx context.Context, hotelID string, rows []map[string]any) (IngestReport, error) {
	rep := IngestReport{Kind: sourcePrices, Received: len(rows)}
	obs := make([]domain.CompetitorPriceObservation, 0, len(rows))
	for i, r := range rows {
		o, reason := mapCompetitorPrice(hotelID, r)
		if reason != "" {
			rep.Skipped++
			s.miss(ctx, sourcePrices, rowKey(i, deref(firstNonEmptyAlias(r, competitorAliases, "competitor"))), reason)
			continue
		}
		obs = append(obs, o)
	}
	if len(obs) > 0 {
		if err := s.repo.UpsertCompetitorPrices(ctx, obs); err != nil {
			observability.ObserveIngest(sourcePrices, "error", len(obs))
			return rep, fmt.Errorf("upsert competitor prices: %w", err)
		}
	}
	rep.Stored = len(obs)
	observability.ObserveIngest(sourcePrices, "stored", rep.Stored)
	observability.ObserveIngest(sourcePrices, "skipped", rep.Skipped)
	return rep, nil
}

// IngestEvents maps scraped events, resolves venue coordinates when the row
// has none, and stores each event's distance to ref.
func (s *IngestionService) IngestEvents(ctx context.Context, ref domain.Hotel, rows []map[string]any) (IngestReport, error) {
	rep := IngestReport{Kind: sourceEvents, Received: len(rows)}
	evs := make([]domain.DetectedEvent, 0, len(rows))
	for i, r := range rows {
		ev, reason := mapEvent(r)
		if reason != "" {
			rep.Skipped++
			s.miss(ctx, sourceEvents, rowKey(i, deref(firstNonEmptyAlias(r, eventAliases, "name"))), reason)
			continue
		}
		if ev.Lat == nil && ev.Venue != nil {
			if c := s.locate(ctx, *ev.Venue); c != nil {
				ev.Lat, ev.Lon = &c.Lat, &c.Lon
				rep.Geocoded++
			}
		}
		if ev.Lat != nil {
			d := geo.RoundKm(geo.DistanceKm(ref.Coords, domain.Coords{Lat: *ev.Lat, Lon: *ev.Lon}))
			ev.DistanceToHotelKm = &d
		}
		evs = append(evs, ev)
	}
	if len(evs) > 0 {
		if err := s.repo.UpsertEvents(ctx, evs); err != nil {
			observability.ObserveIngest(sourceEvents, "error", len(evs))
			return rep, fmt.Errorf("upsert events: %w", err)
		}
	}
	rep.Stored = len(evs)
	observability.ObserveIngest(sourceEvents, "stored", rep.Stored)
	observability.ObserveIngest(sourceEvents, "skipped", rep.Skipped)
	return rep, nil
}

// geoEntry is the cached geocoding outcome; Found=false caches a negative answer.
type geoEntry struct {
	Found bool    `json:"found"`
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
}

// locate returns nil when the venue cannot be resolved. Provider failures are
// not cached so the next run retries them.
func (s *IngestionService) locate(ctx context.Context, venue string) *domain.Coords {
	venue = strings.TrimSpace(venue)
	if venue == "" || s.geocoder == nil {
		return nil
	}
	key := "geo:" + strings.ToLower(venue)

	var cached geoEntry
	if s.cache != nil {
		if ok, err := s.cache.Get(ctx, key, &cached); err == nil && ok {
			if !cached.Found {
				return nil
			}
			return &domain.Coords{Lat: cached.Lat, Lon: cached.Lon}
		}
	}

	q := venue
	if s.suffix != "" {
		q = venue + ", " + s.suffix
	}
	c, err := s.geocoder.Geocode(ctx, q)
	if err != nil {
		log.Warn().Err(err).Str("venue", venue).Msg("geocode failed")
		s.miss(ctx, "geocode", venue, err.Error())
		return nil
	}

	entry := geoEntry{}
	if c != nil {
		entry = geoEntry{Found: true, Lat: c.Lat, Lon: c.Lon}
	} else {
		s.miss(ctx, "geocode", venue, "no match")
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, key, entry, int(s.geoTTL.Seconds()))
	}
	return c
}

func (s *IngestionService) miss(ctx context.Context, source, key, reason string) {
	if err := s.repo.LogMiss(ctx, source, key, reason); err != nil {
		log.Warn().Err(err).Str("source", source).Str("key", key).Msg("log miss failed")
	}
}

func rowKey(i int, label string) string {
	if label == "" {
		return fmt.Sprintf("row %d", i)
	}
	return fmt.Sprintf("row %d (%s)", i, label)
}
