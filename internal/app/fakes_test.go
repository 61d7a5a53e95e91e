package app_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"hotel_pricing/internal/domain"
)

// ---- fakes ----

type feedCall struct {
	hotelID    string
	coords     domain.Coords
	start, end domain.Date
	radiusKm   float64
}

type fakeRepo struct {
	mu sync.Mutex

	comps    []domain.CompetitorPriceObservation
	events   []domain.DetectedEvent
	compsErr error
	eventErr error
	saveErr  error

	compCalls  []feedCall
	eventCalls []feedCall

	saved     []domain.PriceRecommendation
	lastQuery domain.RecommendationQuery
	records   map[string]domain.PriceRecommendation
	// afterGet runs once GetRecommendation has read a record, standing in
	// for a concurrent reviewer.
	afterGet func(f *fakeRepo, id string)

	upsertedPrices []domain.CompetitorPriceObservation
	upsertedEvents []domain.DetectedEvent
	misses         []string
}

func (f *fakeRepo) CompetitorPrices(ctx context.Context, hotelID string, start, end domain.Date) ([]domain.CompetitorPriceObservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.compCalls = append(f.compCalls, feedCall{hotelID: hotelID, start: start, end: end})
	return f.comps, f.compsErr
}

func (f *fakeRepo) NearbyEvents(ctx context.Context, c domain.Coords, start, end domain.Date, radiusKm float64) ([]domain.DetectedEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.eventCalls = append(f.eventCalls, feedCall{coords: c, start: start, end: end, radiusKm: radiusKm})
	return f.events, f.eventErr
}

func (f *fakeRepo) SaveRecommendations(ctx context.Context, recs []domain.PriceRecommendation) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, recs...)
	return nil
}

func (f *fakeRepo) ListRecommendations(ctx context.Context, q domain.RecommendationQuery) ([]domain.PriceRecommendation, error) {
	f.lastQuery = q
	return f.saved, nil
}

func (f *fakeRepo) GetRecommendation(ctx context.Context, id string) (domain.PriceRecommendation, error) {
	r, ok := f.records[id]
	if !ok {
		return domain.PriceRecommendation{}, domain.ErrNotFound
	}
	if f.afterGet != nil {
		f.afterGet(f, id)
	}
	return r, nil
}

func (f *fakeRepo) UpdateRecommendationStatus(ctx context.Context, id, status string, appliedAt *time.Time, userID *string) error {
	r, ok := f.records[id]
	if !ok {
		return domain.ErrNotFound
	}
	if r.Status != domain.StatusPendingReview {
		return fmt.Errorf("%w: %s is %q", domain.ErrInvalidStatus, id, r.Status)
	}
	r.Status, r.AppliedAt, r.UserID = status, appliedAt, userID
	f.records[id] = r
	return nil
}

func (f *fakeRepo) UpsertCompetitorPrices(ctx context.Context, obs []domain.CompetitorPriceObservation) error {
	f.upsertedPrices = append(f.upsertedPrices, obs...)
	return nil
}

func (f *fakeRepo) UpsertEvents(ctx context.Context, evs []domain.DetectedEvent) error {
	f.upsertedEvents = append(f.upsertedEvents, evs...)
	return nil
}

func (f *fakeRepo) LogMiss(ctx context.Context, source, key, reason string) error {
	f.misses = append(f.misses, source+": "+key+": "+reason)
	return nil
}

// fakeCache round-trips through JSON like the Redis adapter does.
type fakeCache struct {
	store map[string][]byte
	dels  []string
}

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	b, ok := c.store[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return false, err
	}
	return true, nil
}

func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	if c.store == nil {
		c.store = map[string][]byte{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.store[key] = b
	return nil
}

func (c *fakeCache) Del(ctx context.Context, key string) error {
	c.dels = append(c.dels, key)
	delete(c.store, key)
	return nil
}

type fakePublisher struct {
	got []domain.PriceRecommendation
	err error
}

func (p *fakePublisher) Publish(ctx context.Context, recs []domain.PriceRecommendation) error {
	p.got = append(p.got, recs...)
	return p.err
}

type fakeGeocoder struct {
	answers map[string]*domain.Coords
	err     error
	queries []string
}

func (g *fakeGeocoder) Geocode(ctx context.Context, q string) (*domain.Coords, error) {
	g.queries = append(g.queries, q)
	if g.err != nil {
		return nil, g.err
	}
	return g.answers[q], nil
}

func ptr(s string) *string      { return &s }
func pfloat(f float64) *float64 { return &f }
