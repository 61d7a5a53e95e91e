package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"hotel_pricing/internal/adapters/observability"
	"hotel_pricing/internal/domain"
	"hotel_pricing/internal/pricing"
)

type RecommendationService struct {
	hotels   []domain.Hotel
	engine   *pricing.Engine
	repo     domain.Repository
	cache    domain.Cache
	pub      domain.RecommendationPublisher
	cacheTTL time.Duration
	now      func() time.Time
}

func NewRecommendationService(hotels []domain.Hotel, e *pricing.Engine, r domain.Repository, c domain.Cache, ttl time.Duration) *RecommendationService {
	return &RecommendationService{hotels: hotels, engine: e, repo: r, cache: c, cacheTTL: ttl, now: time.Now}
}

// WithPublisher enables publishing of generated records. nil disables it.
func (s *RecommendationService) WithPublisher(p domain.RecommendationPublisher) *RecommendationService {
	s.pub = p
	return s
}

// WithClock fixes "today" and review timestamps; used by tests.
func (s *RecommendationService) WithClock(now func() time.Time) *RecommendationService {
	s.now = now
	return s
}

func (s *RecommendationService) Hotels() []domain.Hotel { return s.hotels }

func (s *RecommendationService) Hotel(id string) (domain.Hotel, error) {
	for _, h := range s.hotels {
		if h.ID == id {
			return h, nil
		}
	}
	return domain.Hotel{}, fmt.Errorf("%w: %s", domain.ErrUnknownHotel, id)
}

// Preview computes recommendations for [today, today+days) without persisting.
// Results are cached per hotel, day and horizon.
func (s *RecommendationService) Preview(ctx context.Context, hotelID string, days int) ([]domain.PriceRecommendation, error) {
	h, err := s.Hotel(hotelID)
	if err != nil {
		return nil, err
	}
	today := domain.DateOf(s.now())
	key := previewKey(h.ID, today, days)

	if s.cache != nil {
		var cached []domain.PriceRecommendation
		ok, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("preview cache read failed")
		} else if ok {
			return cached, nil
		}
	}
	out, err := s.compute(ctx, h, today, days)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, key, out, int(s.cacheTTL.Seconds()))
	}
	return out, nil
}

// Generate computes, persists and publishes a fresh run. Nothing is stored
// when a feed or the store fails.
func (s *RecommendationService) Generate(ctx context.Context, hotelID string, days int) ([]domain.PriceRecommendation, error) {
	h, err := s.Hotel(hotelID)
	if err != nil {
		return nil, err
	}
	today := domain.DateOf(s.now())
	recs, err := s.compute(ctx, h, today, days)
	if err != nil {
		return nil, err
	}
	for i := range recs {
		recs[i].ID = uuid.NewString()
	}
	if err := s.repo.SaveRecommendations(ctx, recs); err != nil {
		return nil, fmt.Errorf("save recommendations for %s: %w", h.ID, err)
	}
	if s.cache != nil {
		_ = s.cache.Del(ctx, previewKey(h.ID, today, days))
	}

	// the store is the source of truth; a lagging broker must not fail the run
	if s.pub != nil {
		if err := s.pub.Publish(ctx, recs); err != nil {
			log.Warn().Err(err).Str("hotel", h.ID).Int("records", len(recs)).Msg("publish recommendations failed")
		}
	}

	log.Info().Str("hotel", h.ID).Int("days", days).Int("records", len(recs)).Msg("recommendations generated")
	return recs, nil
}

func (s *RecommendationService) List(ctx context.Context, q domain.RecommendationQuery) ([]domain.PriceRecommendation, error) {
	if _, err := s.Hotel(q.HotelID); err != nil {
		return nil, err
	}
	if q.Limit <= 0 || q.Limit > 5000 {
		q.Limit = 500
	}
	return s.repo.ListRecommendations(ctx, q)
}

// Review settles a pending recommendation. Approving stamps AppliedAt and
// requires the reviewer's id.
func (s *RecommendationService) Review(ctx context.Context, id, status, userID string) (domain.PriceRecommendation, error) {
	status = canonicalStatus(status)
	userID = strings.TrimSpace(userID)
	if status != domain.StatusApproved && status != domain.StatusRejected {
		return domain.PriceRecommendation{}, fmt.Errorf("%w: status must be %q or %q", domain.ErrInvalidInput, domain.StatusApproved, domain.StatusRejected)
	}
	if status == domain.StatusApproved && userID == "" {
		return domain.PriceRecommendation{}, fmt.Errorf("%w: user_id is required to approve", domain.ErrInvalidInput)
	}

	rec, err := s.repo.GetRecommendation(ctx, id)
	if err != nil {
		return domain.PriceRecommendation{}, err
	}
	if rec.Status != domain.StatusPendingReview {
		return domain.PriceRecommendation{}, fmt.Errorf("%w: %s is %q", domain.ErrInvalidStatus, id, rec.Status)
	}

	var appliedAt *time.Time
	if status == domain.StatusApproved {
		t := s.now().UTC()
		appliedAt = &t
	}
	var uid *string
	if userID != "" {
		uid = &userID
	}
	if err := s.repo.UpdateRecommendationStatus(ctx, id, status, appliedAt, uid); err != nil {
		return domain.PriceRecommendation{}, err
	}
	rec.Status, rec.AppliedAt, rec.UserID = status, appliedAt, uid
	return rec, nil
}

func (s *RecommendationService) CompetitorPrices(ctx context.Context, hotelID string, from, to domain.Date) ([]domain.CompetitorPriceObservation, error) {
	h, err := s.Hotel(hotelID)
	if err != nil {
		return nil, err
	}
	return s.repo.CompetitorPrices(ctx, h.ID, from, to)
}

func (s *RecommendationService) NearbyEvents(ctx context.Context, hotelID string, from, to domain.Date, radiusKm float64) ([]domain.DetectedEvent, error) {
	h, err := s.Hotel(hotelID)
	if err != nil {
		return nil, err
	}
	return s.repo.NearbyEvents(ctx, h.Coords, from, to, radiusKm)
}

// compute fetches both feeds concurrently; the first failure cancels the
// other fetch and aborts the run.
func (s *RecommendationService) compute(ctx context.Context, h domain.Hotel, today domain.Date, days int) ([]domain.PriceRecommendation, error) {
	if days < 0 {
		return nil, fmt.Errorf("%w: days must be >= 0, got %d", domain.ErrInvalidInput, days)
	}
	if days == 0 {
		return []domain.PriceRecommendation{}, nil
	}
	end := today.AddDays(days)

	var (
		comps []domain.CompetitorPriceObservation
		evs   []domain.DetectedEvent
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		start := time.Now()
		var err error
		comps, err = s.repo.CompetitorPrices(gctx, h.ID, today, end)
		observability.ObserveFeed("competitor_prices", err, time.Since(start))
		if err != nil {
			return fmt.Errorf("competitor prices: %w: %w", domain.ErrFeedUnavailable, err)
		}
		return nil
	})
	g.Go(func() error {
		start := time.Now()
		var err error
		evs, err = s.repo.NearbyEvents(gctx, h.Coords, today, end, pricing.EventRadiusKm)
		observability.ObserveFeed("detected_events", err, time.Since(start))
		if err != nil {
			return fmt.Errorf("detected events: %w: %w", domain.ErrFeedUnavailable, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Str("hotel", h.ID).Msg("recommendation run aborted")
		return nil, err
	}

	outcomes := s.engine.Evaluate(pricing.Request{
		HotelID:     h.ID,
		Coords:      h.Coords,
		Rooms:       h.Rooms,
		Days:        days,
		Today:       today,
		Competitors: comps,
		Events:      evs,
	})
	recs := make([]domain.PriceRecommendation, len(outcomes))
	for i, o := range outcomes {
		recs[i] = o.PriceRecommendation
		observability.ObserveRecommendation(string(o.Rule), o.EventApplied)
	}
	log.Debug().
		Str("hotel", h.ID).
		Str("from", today.String()).
		Int("competitor_rows", len(comps)).
		Int("events", len(evs)).
		Int("records", len(recs)).
		Msg("recommendations computed")
	return recs, nil
}

func previewKey(hotelID string, today domain.Date, days int) string {
	return fmt.Sprintf("recs:%s:%s:%d", hotelID, today, days)
}

func canonicalStatus(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "approved", "approve":
		return domain.StatusApproved
	case "rejected", "reject":
		return domain.StatusRejected
	case "pending review", "pending":
		return domain.StatusPendingReview
	}
	return s
}
