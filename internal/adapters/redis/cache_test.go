package redisad_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	redisad "hotel_pricing/internal/adapters/redis"
	"hotel_pricing/internal/domain"
)

func newCache(t *testing.T) (*redisad.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := redisad.NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestCache_SetGetDel(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()

	var miss domain.Coords
	ok, err := c.Get(ctx, "geo:venue", &miss)
	if err != nil || ok {
		t.Fatalf("expected clean miss, got ok=%v err=%v", ok, err)
	}

	want := domain.Coords{Lat: 32.5, Lon: -117.0}
	if err := c.Set(ctx, "geo:venue", want, 60); err != nil {
		t.Fatalf("set: %v", err)
	}
	if !mr.Exists("pricing:geo:venue") {
		t.Fatalf("expected prefixed key in redis, have %v", mr.Keys())
	}

	var got domain.Coords
	ok, err = c.Get(ctx, "geo:venue", &got)
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if got != want {
		t.Fatalf("got %+v want %+v", got, want)
	}

	if err := c.Del(ctx, "geo:venue"); err != nil {
		t.Fatalf("del: %v", err)
	}
	if ok, _ := c.Get(ctx, "geo:venue", &got); ok {
		t.Fatalf("expected miss after delete")
	}
}

func TestCache_CorruptEntryIsAMiss(t *testing.T) {
	c, mr := newCache(t)
	if err := mr.Set("pricing:recs:h1", `[{"hotel_id":`); err != nil {
		t.Fatalf("seed: %v", err)
	}

	var out []domain.PriceRecommendation
	ok, err := c.Get(context.Background(), "recs:h1", &out)
	if ok || err == nil {
		t.Fatalf("expected miss with decode error, got ok=%v err=%v", ok, err)
	}
}

func TestCache_TTLExpires(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()

	recs := []domain.PriceRecommendation{{HotelID: "h1", RoomTypeID: "R1", TargetDate: domain.NewDate(2025, 1, 2), RecommendedPrice: 190}}
	if err := c.Set(ctx, "recs:h1", recs, 10); err != nil {
		t.Fatalf("set: %v", err)
	}

	var out []domain.PriceRecommendation
	if ok, err := c.Get(ctx, "recs:h1", &out); err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if len(out) != 1 || out[0].TargetDate.String() != "2025-01-02" || out[0].RecommendedPrice != 190 {
		t.Fatalf("unexpected roundtrip: %+v", out)
	}

	mr.FastForward(11 * time.Second)
	if ok, _ := c.Get(ctx, "recs:h1", &out); ok {
		t.Fatalf("expected key to expire")
	}
}
