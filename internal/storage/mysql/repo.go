package mysql

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"hotel_pricing/internal/domain"
	"hotel_pricing/internal/geo"
)

//go:embed sql/*.sql
var migrationFS embed.FS

// batch bounds the placeholders of one multi-row INSERT.
const batch = 500

func valStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
func valF64(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}
func valTime(p *time.Time) any {
	if p == nil {
		return nil
	}
	return p.UTC()
}

func strPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
func f64Ptr(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	f := nf.Float64
	return &f
}
func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

// Migrate applies the embedded schema. Statements are idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	entries, err := migrationFS.ReadDir("sql")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		body, err := migrationFS.ReadFile("sql/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		// one statement per Exec so the DSN does not need multiStatements
		for _, stmt := range strings.Split(string(body), ";\n") {
			if strings.TrimSpace(stmt) == "" {
				continue
			}
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("exec migration %s: %w", name, err)
			}
		}
	}
	return nil
}

// ---- ingest ----

func (r *Repo) UpsertCompetitorPrices(ctx context.Context, obs []domain.CompetitorPriceObservation) error {
	for start := 0; start < len(obs); start += batch {
		chunk := obs[start:min(start+batch, len(obs))]
		values := make([]string, 0, len(chunk))
		args := make([]any, 0, len(chunk)*6)
		for _, o := range chunk {
			values = append(values, "(?,?,?,?,?,?)")
			args = append(args,
				o.HotelID,
				o.CompetitorName,
				o.CheckInDate.String(),
				strings.TrimSpace(deref(o.RoomTypeRaw)), // '' keeps the unique key usable
				valF64(o.PricePerNight),
				o.Source,
			)
		}
		q := insertPricesPrefix + strings.Join(values, ",") + insertPricesOnDup
		if _, err := r.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("upsert competitor prices: %w", err)
		}
	}
	return nil
}

func (r *Repo) UpsertEvents(ctx context.Context, evs []domain.DetectedEvent) error {
	for start := 0; start < len(evs); start += batch {
		chunk := evs[start:min(start+batch, len(evs))]
		values := make([]string, 0, len(chunk))
		args := make([]any, 0, len(chunk)*11)
		for _, e := range chunk {
			values = append(values, "(?,?,?,?,?,?,?,?,?,?,?)")
			args = append(args,
				e.ID,
				e.Name,
				e.StartDate.String(),
				e.EndDate.String(),
				string(e.EstimatedImpact),
				valF64(e.DistanceToHotelKm),
				valStr(e.Venue),
				valStr(e.URL),
				valF64(e.Lat),
				valF64(e.Lon),
				e.Source,
			)
		}
		q := insertEventsPrefix + strings.Join(values, ",") + insertEventsOnDup
		if _, err := r.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("upsert events: %w", err)
		}
	}
	return nil
}

func (r *Repo) LogMiss(ctx context.Context, source, key, reason string) error {
	if len(key) > 255 {
		key = key[:255]
	}
	_, err := r.db.ExecContext(ctx, insertMissSQL, source, key, reason)
	return err
}

// ---- feeds ----

func (r *Repo) CompetitorPrices(ctx context.Context, hotelID string, start, end domain.Date) ([]domain.CompetitorPriceObservation, error) {
	rows, err := r.db.QueryContext(ctx, selectPricesSQL, hotelID, start.String(), end.String())
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
			price    sql.NullFloat64
		)
		if err := rows.Scan(&o.HotelID, &o.CompetitorName, &checkIn, &roomType, &price, &o.Source); err != nil {
			return nil, fmt.Errorf("scan competitor price: %w", err)
		}
		o.CheckInDate = domain.DateOf(checkIn)
		if roomType != "" {
			o.RoomTypeRaw = &roomType
		}
		o.PricePerNight = f64Ptr(price)
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *Repo) NearbyEvents(ctx context.Context, c domain.Coords, start, end domain.Date, radiusKm float64) ([]domain.DetectedEvent, error) {
	rows, err := r.db.QueryContext(ctx, selectEventsSQL, end.String(), start.String())
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var evs []domain.DetectedEvent
	for rows.Next() {
		var (
			e             domain.DetectedEvent
			sd, ed        time.Time
			impact        string
			dist, lat, lo sql.NullFloat64
			venue, url    sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Name, &sd, &ed, &impact, &dist, &venue, &url, &lat, &lo, &e.Source); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.StartDate, e.EndDate = domain.DateOf(sd), domain.DateOf(ed)
		e.EstimatedImpact = domain.Impact(impact)
		e.DistanceToHotelKm = f64Ptr(dist)
		e.Venue, e.URL = strPtr(venue), strPtr(url)
		e.Lat, e.Lon = f64Ptr(lat), f64Ptr(lo)
		evs = append(evs, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return geo.FilterNearby(c, evs, radiusKm), nil
}

// ---- recommendation store ----

// SaveRecommendations writes the whole run in one transaction.
func (r *Repo) SaveRecommendations(ctx context.Context, recs []domain.PriceRecommendation) error {
	if len(recs) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for start := 0; start < len(recs); start += batch {
		chunk := recs[start:min(start+batch, len(recs))]
		values := make([]string, 0, len(chunk))
		args := make([]any, 0, len(chunk)*12)
		for _, p := range chunk {
			values = append(values, "(?,?,?,?,?,?,?,?,?,?,?,?)")
			args = append(args,
				p.ID,
				p.HotelID,
				p.RoomTypeID,
				p.TargetDate.String(),
				p.RecommendedPrice,
				valF64(p.CurrentPrice),
				p.Reasoning,
				p.RecommendationStrength,
				p.Status,
				p.GeneratedAt.UTC(),
				valTime(p.AppliedAt),
				valStr(p.UserID),
			)
		}
		if _, err := tx.ExecContext(ctx, insertRecsPrefix+strings.Join(values, ","), args...); err != nil {
			return fmt.Errorf("insert recommendations: %w", err)
		}
	}
	return tx.Commit()
}

func (r *Repo) ListRecommendations(ctx context.Context, q domain.RecommendationQuery) ([]domain.PriceRecommendation, error) {
	conds := []string{"hotel_id = ?"}
	args := []any{q.HotelID}
	if !q.From.IsZero() {
		conds = append(conds, "target_date >= ?")
		args = append(args, q.From.String())
	}
	if !q.To.IsZero() {
		conds = append(conds, "target_date <= ?")
		args = append(args, q.To.String())
	}
	if q.Status != nil {
		conds = append(conds, "status = ?")
		args = append(args, *q.Status)
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 500
	}
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx,
		"SELECT "+recColumns+"\nFROM price_recommendations\nWHERE "+strings.Join(conds, " AND ")+
			"\nORDER BY generated_at DESC, target_date, room_type_id\nLIMIT ?", args...)
	if err != nil {
		return nil, fmt.Errorf("query recommendations: %w", err)
	}
	defer rows.Close()

	out := []domain.PriceRecommendation{}
	for rows.Next() {
		p, err := scanRec(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) GetRecommendation(ctx context.Context, id string) (domain.PriceRecommendation, error) {
	p, err := scanRec(r.db.QueryRowContext(ctx, getRecSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.PriceRecommendation{}, domain.ErrNotFound
	}
	return p, err
}

// UpdateRecommendationStatus settles a pending record. The status guard sits
// in the UPDATE itself so two concurrent reviews cannot both win.
func (r *Repo) UpdateRecommendationStatus(ctx context.Context, id, status string, appliedAt *time.Time, userID *string) error {
	res, err := r.db.ExecContext(ctx, updateRecStatusSQL, status, valTime(appliedAt), valStr(userID), id, domain.StatusPendingReview)
	if err != nil {
		return fmt.Errorf("update recommendation %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update recommendation %s: %w", id, err)
	}
	if n > 0 {
		return nil
	}
	var current string
	err = r.db.QueryRowContext(ctx, getRecStatusSQL, id).Scan(&current)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return domain.ErrNotFound
	case err != nil:
		return fmt.Errorf("update recommendation %s: %w", id, err)
	}
	return fmt.Errorf("%w: %s is %q", domain.ErrInvalidStatus, id, current)
}

type scanner interface{ Scan(dest ...any) error }

func scanRec(s scanner) (domain.PriceRecommendation, error) {
	var (
		p       domain.PriceRecommendation
		target  time.Time
		current sql.NullFloat64
		applied sql.NullTime
		userID  sql.NullString
	)
	if err := s.Scan(
		&p.ID, &p.HotelID, &p.RoomTypeID, &target, &p.RecommendedPrice, &current, &p.Reasoning,
		&p.RecommendationStrength, &p.Status, &p.GeneratedAt, &applied, &userID,
	); err != nil {
		return domain.PriceRecommendation{}, err
	}
	p.TargetDate = domain.DateOf(target)
	p.GeneratedAt = p.GeneratedAt.UTC()
	p.CurrentPrice = f64Ptr(current)
	p.AppliedAt = timePtr(applied)
	p.UserID = strPtr(userID)
	return p, nil
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
