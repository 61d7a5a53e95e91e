package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"hotel_pricing/internal/adapters/nominatim"
	"hotel_pricing/internal/adapters/observability"
	redisad "hotel_pricing/internal/adapters/redis"
	"hotel_pricing/internal/app"
	"hotel_pricing/internal/shared"
	"hotel_pricing/internal/storage"
)

// rows per upsert job
const chunkSize = 200

func main() {
	var (
		pricesFile = flag.String("prices", "", "competitor prices JSON file (array of objects)")
		eventsFile = flag.String("events", "", "detected events JSON file (array of objects)")
		hotelID    = flag.String("hotel", "", "reference hotel id (default: first catalog hotel)")
	)
	flag.Parse()

	ctx := context.Background()
	cfg := shared.Load()

	// 1) initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	if *pricesFile == "" && *eventsFile == "" {
		log.Fatal().Msg("nothing to ingest: pass -prices and/or -events")
	}

	catalog, err := shared.LoadCatalog(cfg.CatalogFile)
	if err != nil {
		log.Fatal().Err(err).Msg("load catalog failed")
	}
	ref := catalog.Hotels[0]
	if *hotelID != "" {
		h, ok := catalog.Hotel(*hotelID)
		if !ok {
			log.Fatal().Str("hotel", *hotelID).Msg("hotel not in catalog")
		}
		ref = h
	}

	log.Info().
		Str("hotel", ref.ID).
		Str("prices", *pricesFile).
		Str("events", *eventsFile).
		Int("workers", cfg.Workers).
		Msg("ingestor starting")

	repo, closeRepo, err := storage.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("database setup failed")
	}
	defer closeRepo()

	geocoder, err := nominatim.New(cfg.NominatimBase, cfg.NominatimUserAgent, cfg.NominatimRPS)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize Nominatim client")
	}
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer cache.Close()

	ing := app.NewIngestionService(repo, geocoder, cache, cfg.GeocodeTTL, cfg.GeocodeSuffix)

	var jobs []func(context.Context) (app.IngestReport, error)
	if *pricesFile != "" {
		rows := mustReadRows(*pricesFile)
		for _, c := range chunks(rows) {
			jobs = append(jobs, func(ctx context.Context) (app.IngestReport, error) {
				return ing.IngestCompetitorPrices(ctx, ref.ID, c)
			})
		}
	}
	if *eventsFile != "" {
		rows := mustReadRows(*eventsFile)
		for _, c := range chunks(rows) {
			jobs = append(jobs, func(ctx context.Context) (app.IngestReport, error) {
				return ing.IngestEvents(ctx, ref, c)
			})
		}
	}

	total := run(ctx, jobs, cfg.Workers)
	for _, r := range total {
		log.Info().
			Str("kind", r.Kind).
			Int("received", r.Received).
			Int("stored", r.Stored).
			Int("skipped", r.Skipped).
			Int("geocoded", r.Geocoded).
			Msg("ingestion completed")
	}
}

// run executes jobs with at most workers in flight and sums reports per kind.
func run(ctx context.Context, jobs []func(context.Context) (app.IngestReport, error), workers int) map[string]app.IngestReport {
	if workers < 1 {
		workers = 1
	}
	sem := semaphore.NewWeighted(int64(workers))
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total = map[string]app.IngestReport{}
	)
	for i, job := range jobs {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Fatal().Err(err).Msg("semaphore acquire failed")
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)

			rep, err := job(ctx)
			if err != nil {
				log.Warn().Int("job", i).Str("kind", rep.Kind).Err(err).Msg("ingest failed")
			}
			mu.Lock()
			t := total[rep.Kind]
			t.Kind = rep.Kind
			t.Received += rep.Received
			t.Stored += rep.Stored
			t.Skipped += rep.Skipped
			t.Geocoded += rep.Geocoded
			total[rep.Kind] = t
			mu.Unlock()
		}()
	}
	wg.Wait()
	return total
}

func mustReadRows(path string) []map[string]any {
	rows, err := readRows(path)
	if err != nil {
		log.Fatal().Err(err).Str("file", path).Msg("read scraper output failed")
	}
	return rows
}

// readRows accepts a bare array or an object wrapping it under "items"/"data".
func readRows(path string) ([]map[string]any, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rows []map[string]any
	if err := json.Unmarshal(b, &rows); err == nil {
		return rows, nil
	}
	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(b, &wrapped); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	for _, k := range []string{"items", "data", "results"} {
		if raw, ok := wrapped[k]; ok {
			if err := json.Unmarshal(raw, &rows); err != nil {
				return nil, fmt.Errorf("decode %s.%s: %w", path, k, err)
			}
			return rows, nil
		}
	}
	return nil, fmt.Errorf("%s: expected a JSON array of objects", path)
}

func chunks(rows []map[string]any) [][]map[string]any {
	var out [][]map[string]any
	for start := 0; start < len(rows); start += chunkSize {
		out = append(out, rows[start:min(start+chunkSize, len(rows))])
	}
	return out
}
