package domain

import (
	"context"
	"time"
)

// CompetitorPriceFeed returns observations whose check-in date lies in [start, end].
type CompetitorPriceFeed interface {
	CompetitorPrices(ctx context.Context, hotelID string, start, end Date) ([]CompetitorPriceObservation, error)
}

// EventFeed returns events overlapping [start, end] within radiusKm of c.
// Events with no known distance are never returned.
type EventFeed interface {
	NearbyEvents(ctx context.Context, c Coords, start, end Date, radiusKm float64) ([]DetectedEvent, error)
}

type RecommendationStore interface {
	SaveRecommendations(ctx context.Context, recs []PriceRecommendation) error
	ListRecommendations(ctx context.Context, q RecommendationQuery) ([]PriceRecommendation, error)
	GetRecommendation(ctx context.Context, id string) (PriceRecommendation, error)
	// UpdateRecommendationStatus moves a Pending Review record. It returns
	// ErrNotFound for an unknown id and ErrInvalidStatus once the record is settled.
	UpdateRecommendationStatus(ctx context.Context, id, status string, appliedAt *time.Time, userID *string) error
}

type IngestRepository interface {
	UpsertCompetitorPrices(ctx context.Context, obs []CompetitorPriceObservation) error
	UpsertEvents(ctx context.Context, evs []DetectedEvent) error
	LogMiss(ctx context.Context, source, key, reason string) error
}

// Repository is what both storage backends implement.
type Repository interface {
	CompetitorPriceFeed
	EventFeed
	RecommendationStore
	IngestRepository
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

// Geocoder resolves a free-form address. A nil result with a nil error means
// the address is unknown to the provider.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (*Coords, error)
}

type RecommendationPublisher interface {
	Publish(ctx context.Context, recs []PriceRecommendation) error
}
