package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"hotel_pricing/internal/app"
	"hotel_pricing/internal/domain"
	"hotel_pricing/internal/pricing"
)

var (
	clock = func() time.Time { return time.Date(2025, 3, 10, 15, 30, 0, 0, time.UTC) }
	today = domain.MustParseDate("2025-03-10")

	testHotel = domain.Hotel{
		ID:     "grand-hotel-tijuana",
		Name:   "Grand Hotel Tijuana",
		Coords: domain.Coords{Lat: 32.5149, Lon: -117.0382},
		Rooms: []domain.RoomType{
			{Name: "Standard King", TypeID: "R1"},
			{Name: "Deluxe Suite", TypeID: "R2"},
		},
	}
)

func newService(repo *fakeRepo, cache domain.Cache) *app.RecommendationService {
	eng := pricing.NewEngine(pricing.DefaultRules(), clock)
	return app.NewRecommendationService([]domain.Hotel{testHotel}, eng, repo, cache, 10*time.Minute).WithClock(clock)
}

// ---- tests ----

func TestPreview_UnknownHotel(t *testing.T) {
	s := newService(&fakeRepo{}, &fakeCache{})
	_, err := s.Preview(context.Background(), "nope", 3)
	if !errors.Is(err, domain.ErrUnknownHotel) {
		t.Fatalf("expected ErrUnknownHotel, got %v", err)
	}
}

func TestPreview_QueriesFeedsForWindowAndRadius(t *testing.T) {
	repo := &fakeRepo{
		comps: []domain.CompetitorPriceObservation{
			{HotelID: testHotel.ID, CompetitorName: "A", CheckInDate: today, PricePerNight: pfloat(200)},
			{HotelID: testHotel.ID, CompetitorName: "B", CheckInDate: today, PricePerNight: pfloat(100)},
		},
	}
	s := newService(repo, &fakeCache{})

	recs, err := s.Preview(context.Background(), testHotel.ID, 3)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(recs) != 6 {
		t.Fatalf("expected 6 records, got %d", len(recs))
	}
	if len(repo.compCalls) != 1 || len(repo.eventCalls) != 1 {
		t.Fatalf("expected one call per feed, got %d/%d", len(repo.compCalls), len(repo.eventCalls))
	}
	cc, ec := repo.compCalls[0], repo.eventCalls[0]
	if cc.hotelID != testHotel.ID || !cc.start.Equal(today) || cc.end.String() != "2025-03-13" {
		t.Fatalf("unexpected competitor window: %+v", cc)
	}
	if ec.radiusKm != 20 || ec.coords != testHotel.Coords || !ec.start.Equal(today) {
		t.Fatalf("unexpected event query: %+v", ec)
	}

	first := recs[0]
	if first.RoomTypeID != "R1" || !first.TargetDate.Equal(today) || first.RecommendedPrice != 142.5 {
		t.Fatalf("unexpected first record: %+v", first)
	}
	if first.ID != "" {
		t.Fatalf("preview must not assign ids, got %q", first.ID)
	}
	if recs[1].RecommendedPrice != 1200 || recs[3].RoomTypeID != "R2" {
		t.Fatalf("unexpected ordering: %+v", recs)
	}
}

func TestPreview_CacheMissThenHit(t *testing.T) {
	repo := &fakeRepo{}
	cache := &fakeCache{}
	s := newService(repo, cache)

	if _, err := s.Preview(context.Background(), testHotel.ID, 2); err != nil {
		t.Fatalf("err: %v", err)
	}
	// a new competitor row must not show up until the cached run expires
	repo.comps = []domain.CompetitorPriceObservation{{CheckInDate: today, PricePerNight: pfloat(10)}}

	recs, err := s.Preview(context.Background(), testHotel.ID, 2)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(repo.compCalls) != 1 {
		t.Fatalf("expected cached second read, feed called %d times", len(repo.compCalls))
	}
	if recs[0].RecommendedPrice != 1200 {
		t.Fatalf("expected cached base price, got %v", recs[0].RecommendedPrice)
	}
	if _, ok := cache.store["recs:grand-hotel-tijuana:2025-03-10:2"]; !ok {
		t.Fatalf("expected preview cache key, have %v", cache.store)
	}
}

func TestPreview_CorruptCacheEntryIsRecomputed(t *testing.T) {
	repo := &fakeRepo{}
	key := "recs:grand-hotel-tijuana:2025-03-10:1"
	cache := &fakeCache{store: map[string][]byte{key: []byte(`[{"hotel_id":"grand-hotel-tijuana","recommended_price":`)}}

	recs, err := newService(repo, cache).Preview(context.Background(), testHotel.ID, 1)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(repo.compCalls) != 1 {
		t.Fatalf("expected feeds to be queried, got %d calls", len(repo.compCalls))
	}
	if len(recs) != 2 || recs[0].RecommendedPrice != 1200 || recs[0].Status != domain.StatusPendingReview {
		t.Fatalf("expected a fresh run, got %+v", recs)
	}
	if !json.Valid(cache.store[key]) {
		t.Fatalf("expected the entry to be rewritten, have %s", cache.store[key])
	}
}

func TestPreview_ZeroDaysSkipsFeeds(t *testing.T) {
	repo := &fakeRepo{}
	s := newService(repo, nil)
	recs, err := s.Preview(context.Background(), testHotel.ID, 0)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if recs == nil || len(recs) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", recs)
	}
	if len(repo.compCalls) != 0 {
		t.Fatalf("feeds should not be queried for an empty horizon")
	}
}

func TestPreview_NegativeDays(t *testing.T) {
	s := newService(&fakeRepo{}, nil)
	if _, err := s.Preview(context.Background(), testHotel.ID, -1); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestPreview_FeedFailureAbortsRun(t *testing.T) {
	boom := errors.New("connection refused")
	for name, repo := range map[string]*fakeRepo{
		"competitors": {compsErr: boom},
		"events":      {eventErr: boom},
	} {
		t.Run(name, func(t *testing.T) {
			s := newService(repo, &fakeCache{})
			recs, err := s.Preview(context.Background(), testHotel.ID, 5)
			if !errors.Is(err, domain.ErrFeedUnavailable) || !errors.Is(err, boom) {
				t.Fatalf("expected wrapped feed error, got %v", err)
			}
			if recs != nil {
				t.Fatalf("expected no partial results, got %d", len(recs))
			}
		})
	}
}

func TestGenerate_PersistsPublishesAndInvalidates(t *testing.T) {
	repo := &fakeRepo{}
	cache := &fakeCache{}
	pub := &fakePublisher{}
	s := newService(repo, cache).WithPublisher(pub)

	if _, err := s.Preview(context.Background(), testHotel.ID, 2); err != nil {
		t.Fatalf("err: %v", err)
	}
	recs, err := s.Generate(context.Background(), testHotel.ID, 2)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(recs) != 4 || len(repo.saved) != 4 || len(pub.got) != 4 {
		t.Fatalf("expected 4 generated/saved/published, got %d/%d/%d", len(recs), len(repo.saved), len(pub.got))
	}
	seen := map[string]bool{}
	for _, r := range recs {
		if r.ID == "" || seen[r.ID] {
			t.Fatalf("expected unique ids, got %q", r.ID)
		}
		seen[r.ID] = true
		if r.Status != domain.StatusPendingReview || r.AppliedAt != nil || r.UserID != nil || r.CurrentPrice != nil {
			t.Fatalf("unexpected initial state: %+v", r)
		}
	}
	if len(cache.store) != 0 {
		t.Fatalf("expected preview cache invalidated, have %v", cache.store)
	}
}

func TestGenerate_PublishFailureIsNotFatal(t *testing.T) {
	repo := &fakeRepo{}
	s := newService(repo, nil).WithPublisher(&fakePublisher{err: errors.New("broker down")})
	recs, err := s.Generate(context.Background(), testHotel.ID, 1)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(recs) != 2 || len(repo.saved) != 2 {
		t.Fatalf("expected records stored despite publish failure")
	}
}

func TestGenerate_StoreFailureSkipsPublish(t *testing.T) {
	pub := &fakePublisher{}
	s := newService(&fakeRepo{saveErr: errors.New("disk full")}, nil).WithPublisher(pub)
	if _, err := s.Generate(context.Background(), testHotel.ID, 1); err == nil {
		t.Fatalf("expected store error")
	}
	if len(pub.got) != 0 {
		t.Fatalf("nothing should be published when the store fails")
	}
}

func TestList_DefaultLimit(t *testing.T) {
	repo := &fakeRepo{}
	s := newService(repo, nil)
	if _, err := s.List(context.Background(), domain.RecommendationQuery{HotelID: testHotel.ID, Limit: 99999}); err != nil {
		t.Fatalf("err: %v", err)
	}
	if repo.lastQuery.Limit != 500 {
		t.Fatalf("expected clamped limit 500, got %d", repo.lastQuery.Limit)
	}
}

func TestReview(t *testing.T) {
	pending := domain.PriceRecommendation{ID: "r1", HotelID: testHotel.ID, Status: domain.StatusPendingReview}
	newRepo := func() *fakeRepo {
		return &fakeRepo{records: map[string]domain.PriceRecommendation{
			"r1": pending,
			"r2": {ID: "r2", Status: domain.StatusRejected},
		}}
	}

	t.Run("approve stamps user and time", func(t *testing.T) {
		repo := newRepo()
		got, err := newService(repo, nil).Review(context.Background(), "r1", "approved", "ana")
		if err != nil {
			t.Fatalf("err: %v", err)
		}
		stored := repo.records["r1"]
		if got.Status != domain.StatusApproved || stored.Status != domain.StatusApproved {
			t.Fatalf("expected Approved, got %q / %q", got.Status, stored.Status)
		}
		if stored.AppliedAt == nil || !stored.AppliedAt.Equal(clock()) {
			t.Fatalf("expected applied_at = now, got %v", stored.AppliedAt)
		}
		if stored.UserID == nil || *stored.UserID != "ana" {
			t.Fatalf("expected user ana, got %v", stored.UserID)
		}
	})

	t.Run("reject leaves applied_at empty", func(t *testing.T) {
		repo := newRepo()
		if _, err := newService(repo, nil).Review(context.Background(), "r1", domain.StatusRejected, ""); err != nil {
			t.Fatalf("err: %v", err)
		}
		if repo.records["r1"].AppliedAt != nil {
			t.Fatalf("rejected record must not be applied")
		}
	})

	t.Run("settled after read loses", func(t *testing.T) {
		repo := newRepo()
		repo.afterGet = func(f *fakeRepo, id string) {
			r := f.records[id]
			r.Status = domain.StatusApproved
			f.records[id] = r
		}
		_, err := newService(repo, nil).Review(context.Background(), "r1", domain.StatusRejected, "bea")
		if !errors.Is(err, domain.ErrInvalidStatus) {
			t.Fatalf("expected ErrInvalidStatus, got %v", err)
		}
		if got := repo.records["r1"]; got.Status != domain.StatusApproved || got.UserID != nil {
			t.Fatalf("first review must stand, got %+v", got)
		}
	})

	cases := []struct {
		name, id, status, user string
		want                   error
	}{
		{"approve needs a user", "r1", domain.StatusApproved, " ", domain.ErrInvalidInput},
		{"unknown target status", "r1", "Maybe", "ana", domain.ErrInvalidInput},
		{"already settled", "r2", domain.StatusApproved, "ana", domain.ErrInvalidStatus},
		{"missing record", "zz", domain.StatusApproved, "ana", domain.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := newService(newRepo(), nil).Review(context.Background(), tc.id, tc.status, tc.user)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}
