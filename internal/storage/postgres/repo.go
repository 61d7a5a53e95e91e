package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"hotel_pricing/internal/domain"
	"hotel_pricing/internal/geo"
)

const upsertPriceSQL = `
INSERT INTO competitor_prices (hotel_id, competitor_name, check_in_date, room_type_raw, price_per_night, source)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (hotel_id, competitor_name, check_in_date, room_type_raw) DO UPDATE SET
    price_per_night = COALESCE(EXCLUDED.price_per_night, competitor_prices.price_per_night),
    source          = EXCLUDED.source,
    scraped_at      = NOW()
`

const upsertEventSQL = `
INSERT INTO detected_events (id, name, start_date, end_date, estimated_impact, distance_to_hotel_km, venue, url, lat, lon, source)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (id) DO UPDATE SET
    name                 = EXCLUDED.name,
    start_date           = EXCLUDED.start_date,
    end_date             = EXCLUDED.end_date,
    estimated_impact     = EXCLUDED.estimated_impact,
    distance_to_hotel_km = COALESCE(EXCLUDED.distance_to_hotel_km, detected_events.distance_to_hotel_km),
    venue                = COALESCE(EXCLUDED.venue, detected_events.venue),
    url                  = COALESCE(EXCLUDED.url, detected_events.url),
    lat                  = COALESCE(EXCLUDED.lat, detected_events.lat),
    lon                  = COALESCE(EXCLUDED.lon, detected_events.lon),
    source               = EXCLUDED.source,
    updated_at           = NOW()
`

const recColumns = `id, hotel_id, room_type_id, target_date, recommended_price::float8, current_price::float8,
    reasoning, recommendation_strength, status, generated_at, applied_at, user_id`

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ---- ingest ----

func (r *Repository) UpsertCompetitorPrices(ctx context.Context, obs []domain.CompetitorPriceObservation) error {
	b := &pgx.Batch{}
	for _, o := range obs {
		room := ""
		if o.RoomTypeRaw != nil {
			room = strings.TrimSpace(*o.RoomTypeRaw)
		}
		b.Queue(upsertPriceSQL, o.HotelID, o.CompetitorName, o.CheckInDate.Time(), room, o.PricePerNight, o.Source)
	}
	return r.sendBatch(ctx, b, "upsert competitor prices")
}

func (r *Repository) UpsertEvents(ctx context.Context, evs []domain.DetectedEvent) error {
	b := &pgx.Batch{}
	for _, e := range evs {
		b.Queue(upsertEventSQL,
			e.ID, e.Name, e.StartDate.Time(), e.EndDate.Time(), string(e.EstimatedImpact),
			e.DistanceToHotelKm, e.Venue, e.URL, e.Lat, e.Lon, e.Source)
	}
	return r.sendBatch(ctx, b, "upsert events")
}

func (r *Repository) sendBatch(ctx context.Context, b *pgx.Batch, what string) error {
	if b.Len() == 0 {
		return nil
	}
	br := r.pool.SendBatch(ctx, b)
	for i := 0; i < b.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("%s (row %d): %w", what, i, err)
		}
	}
	return br.Close()
}

func (r *Repository) LogMiss(ctx context.Context, source, key, reason string) error {
	_, err := r.pool.Exec(ctx, `
        INSERT INTO ingest_misses (source, miss_key, reason)
        VALUES ($1, $2, $3)
        ON CONFLICT (source, miss_key) DO UPDATE SET reason = EXCLUDED.reason, seen_at = NOW()
    `, source, key, reason)
	if err != nil {
		return fmt.Errorf("log miss: %w", err)
	}
	return nil
}

// ---- feeds ----

func (r *Repository) CompetitorPrices(ctx context.Context, hotelID string, start, end domain.Date) ([]domain.CompetitorPriceObservation, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT hotel_id, competitor_name, check_in_date, room_type_raw, price_per_night::float8, source
        FROM competitor_prices
        WHERE hotel_id = $1 AND check_in_date BETWEEN $2 AND $3
        ORDER BY check_in_date, competitor_name, room_type_raw
    `, hotelID, start.Time(), end.Time())
	if err != nil {
		return nil, fmt.Errorf("query competitor prices: %w", err)
	}
	defer rows.Close()

	out := []domain.CompetitorPriceObservation{}
	for rows.Next() {
		var (
			o        domain.CompetitorPriceObservation
			checkIn  time.Time
			roomType string
		)
		if err := rows.Scan(&o.HotelID, &o.CompetitorName, &checkIn, &roomType, &o.PricePerNight, &o.Source); err != nil {
			return nil, fmt.Errorf("scan competitor price: %w", err)
		}
		o.CheckInDate = domain.DateOf(checkIn)
		if roomType != "" {
			o.RoomTypeRaw = &roomType
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *Repository) NearbyEvents(ctx context.Context, c domain.Coords, start, end domain.Date, radiusKm float64) ([]domain.DetectedEvent, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT id, name, start_date, end_date, estimated_impact, distance_to_hotel_km, venue, url, lat, lon, source
        FROM detected_events
        WHERE start_date <= $1 AND end_date >= $2
          AND (distance_to_hotel_km IS NOT NULL OR (lat IS NOT NULL AND lon IS NOT NULL))
        ORDER BY start_date, id
    `, end.Time(), start.Time())
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var evs []domain.DetectedEvent
	for rows.Next() {
		var (
			e      domain.DetectedEvent
			sd, ed time.Time
			impact string
		)
		if err := rows.Scan(&e.ID, &e.Name, &sd, &ed, &impact, &e.DistanceToHotelKm, &e.Venue, &e.URL, &e.Lat, &e.Lon, &e.Source); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.StartDate, e.EndDate = domain.DateOf(sd), domain.DateOf(ed)
		e.EstimatedImpact = domain.Impact(impact)
		evs = append(evs, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return geo.FilterNearby(c, evs, radiusKm), nil
}

// ---- recommendation store ----

// SaveRecommendations copies the whole run inside one transaction.
func (r *Repository) SaveRecommendations(ctx context.Context, recs []domain.PriceRecommendation) error {
	if len(recs) == 0 {
		return nil
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"price_recommendations"},
		[]string{"id", "hotel_id", "room_type_id", "target_date", "recommended_price", "current_price",
			"reasoning", "recommendation_strength", "status", "generated_at", "applied_at", "user_id"},
		pgx.CopyFromSlice(len(recs), func(i int) ([]any, error) {
			p := recs[i]
			return []any{p.ID, p.HotelID, p.RoomTypeID, p.TargetDate.Time(), p.RecommendedPrice, p.CurrentPrice,
				p.Reasoning, p.RecommendationStrength, p.Status, p.GeneratedAt.UTC(), p.AppliedAt, p.UserID}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("copy recommendations: %w", err)
	}
	return tx.Commit(ctx)
}

func (r *Repository) ListRecommendations(ctx context.Context, q domain.RecommendationQuery) ([]domain.PriceRecommendation, error) {
	conds := []string{"hotel_id = $1"}
	args := []any{q.HotelID}
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if !q.From.IsZero() {
		add("target_date >= $%d", q.From.Time())
	}
	if !q.To.IsZero() {
		add("target_date <= $%d", q.To.Time())
	}
	if q.Status != nil {
		add("status = $%d", *q.Status)
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 500
	}
	args = append(args, limit)

	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
        SELECT %s
        FROM price_recommendations
        WHERE %s
        ORDER BY generated_at DESC, target_date, room_type_id
        LIMIT $%d
    `, recColumns, strings.Join(conds, " AND "), len(args)), args...)
	if err != nil {
		return nil, fmt.Errorf("query recommendations: %w", err)
	}
	defer rows.Close()

	out := []domain.PriceRecommendation{}
	for rows.Next() {
		p, err := scanRec(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recommendation: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repository) GetRecommendation(ctx context.Context, id string) (domain.PriceRecommendation, error) {
	p, err := scanRec(r.pool.QueryRow(ctx, "SELECT "+recColumns+" FROM price_recommendations WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.PriceRecommendation{}, domain.ErrNotFound
	}
	return p, err
}

// UpdateRecommendationStatus only moves records that are still pending.
func (r *Repository) UpdateRecommendationStatus(ctx context.Context, id, status string, appliedAt *time.Time, userID *string) error {
	cmd, err := r.pool.Exec(ctx, `
        UPDATE price_recommendations
        SET status = $2, applied_at = $3, user_id = $4
        WHERE id = $1 AND status = $5
    `, id, status, appliedAt, userID, domain.StatusPendingReview)
	if err != nil {
		return fmt.Errorf("update recommendation status: %w", err)
	}
	if cmd.RowsAffected() > 0 {
		return nil
	}
	var current string
	err = r.pool.QueryRow(ctx, `SELECT status FROM price_recommendations WHERE id = $1`, id).Scan(&current)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return domain.ErrNotFound
	case err != nil:
		return fmt.Errorf("update recommendation status: %w", err)
	}
	return fmt.Errorf("%w: %s is %q", domain.ErrInvalidStatus, id, current)
}

func scanRec(row pgx.Row) (domain.PriceRecommendation, error) {
	var (
		p      domain.PriceRecommendation
		target time.Time
	)
	if err := row.Scan(
		&p.ID, &p.HotelID, &p.RoomTypeID, &target, &p.RecommendedPrice, &p.CurrentPrice,
		&p.Reasoning, &p.RecommendationStrength, &p.Status, &p.GeneratedAt, &p.AppliedAt, &p.UserID,
	); err != nil {
		return domain.PriceRecommendation{}, err
	}
	p.TargetDate = domain.DateOf(target)
	p.GeneratedAt = p.GeneratedAt.UTC()
	if p.AppliedAt != nil {
		t := p.AppliedAt.UTC()
		p.AppliedAt = &t
	}
	return p, nil
}
