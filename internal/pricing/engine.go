// Package pricing turns competitor prices and nearby events into one price
// recommendation per room type per day.
package pricing

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"hotel_pricing/internal/domain"
)

const (
	// EventRadiusKm is the radius the event feed is always queried with.
	EventRadiusKm      = 20.0
	DefaultHorizonDays = 60

	StrengthBase       = 0.5
	StrengthCompetitor = 0.8
	StrengthMinorEvent = 0.9
	StrengthMajorEvent = 1.0

	majorEventImpact = 0.10
)

// Rule names the price basis a record started from.
type Rule string

const (
	RuleBase       Rule = "base"
	RuleCompetitor Rule = "competitor"
)

// Outcome is a record plus how the engine arrived at it.
type Outcome struct {
	domain.PriceRecommendation
	Rule         Rule
	EventApplied bool
}

type Request struct {
	HotelID     string
	Coords      domain.Coords
	Rooms       []domain.RoomType
	Days        int
	Today       domain.Date
	Competitors []domain.CompetitorPriceObservation
	Events      []domain.DetectedEvent
}

type Engine struct {
	rules Rules
	now   func() time.Time
}

// NewEngine copies r. now stamps GeneratedAt; nil means time.Now.
func NewEngine(r Rules, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{rules: r.clone(), now: now}
}

func (e *Engine) Rules() Rules { return e.rules.clone() }

// Recommend returns len(req.Rooms)*req.Days records ordered by room catalog
// order, then by day offset starting at req.Today.
func (e *Engine) Recommend(req Request) []domain.PriceRecommendation {
	outcomes := e.Evaluate(req)
	out := make([]domain.PriceRecommendation, len(outcomes))
	for i, o := range outcomes {
		out[i] = o.PriceRecommendation
	}
	return out
}

// Evaluate is Recommend with the applied rules attached to each record.
func (e *Engine) Evaluate(req Request) []Outcome {
	if req.Days <= 0 || len(req.Rooms) == 0 {
		return []Outcome{}
	}

	byDay := make(map[string][]float64, req.Days)
	for _, o := range req.Competitors {
		if o.PricePerNight == nil {
			continue
		}
		k := o.CheckInDate.String()
		byDay[k] = append(byDay[k], *o.PricePerNight)
	}

	days := make([]dayInputs, req.Days)
	for i := range days {
		d := req.Today.AddDays(i)
		days[i] = dayInputs{date: d, prices: byDay[d.String()]}
		for _, ev := range req.Events {
			if ev.ActiveOn(d) {
				days[i].events = append(days[i].events, ev)
			}
		}
	}

	generatedAt := e.now()
	out := make([]Outcome, 0, len(req.Rooms)*req.Days)
	for _, room := range req.Rooms {
		for _, day := range days {
			q := e.evaluate(room.TypeID, day)
			out = append(out, Outcome{
				PriceRecommendation: domain.PriceRecommendation{
					HotelID:                req.HotelID,
					RoomTypeID:             room.TypeID,
					TargetDate:             day.date,
					RecommendedPrice:       round2(q.price),
					Reasoning:              q.reasoning,
					RecommendationStrength: q.strength,
					Status:                 domain.StatusPendingReview,
					GeneratedAt:            generatedAt,
				},
				Rule:         q.rule,
				EventApplied: q.event,
			})
		}
	}
	return out
}

type dayInputs struct {
	date   domain.Date
	prices []float64 // non-nil competitor prices for date
	events []domain.DetectedEvent
}

type quote struct {
	price     float64
	reasoning string
	strength  float64
	rule      Rule
	event     bool
}

// evaluate applies the competitor (or base) rule first and the event surcharge
// on top of it. The event rule owns the strength whenever it fires.
func (e *Engine) evaluate(roomTypeID string, day dayInputs) quote {
	var q quote
	if len(day.prices) > 0 {
		avg, lowest := meanMin(day.prices)
		q.price = max(lowest, avg*(1-e.rules.UndercutPct))
		q.reasoning = "competitor adjustment: avg=" + fixed2(avg) + ", min=" + fixed2(lowest) + "."
		q.strength = StrengthCompetitor
		q.rule = RuleCompetitor
	} else {
		q.price = e.rules.basePrice(roomTypeID)
		q.reasoning = "base price: no competitor data."
		q.strength = StrengthBase
		q.rule = RuleBase
	}

	if len(day.events) == 0 {
		return q
	}
	impact := 0.0
	for _, ev := range day.events {
		impact = max(impact, e.rules.EventImpact[ev.EstimatedImpact])
	}
	if impact <= 0 {
		return q
	}

	q.price *= 1 + impact
	q.reasoning += " price increase for event(s) of impact " + strings.Join(impactLabels(day.events), ", ") + "."
	q.event = true
	if impact >= majorEventImpact {
		q.strength = StrengthMajorEvent
	} else {
		q.strength = StrengthMinorEvent
	}
	return q
}

func meanMin(prices []float64) (avg, lowest float64) {
	sum := 0.0
	lowest = prices[0]
	for _, p := range prices {
		sum += p
		lowest = min(lowest, p)
	}
	return sum / float64(len(prices)), lowest
}

// impactLabels lists the distinct labels present, in first-seen order.
func impactLabels(evs []domain.DetectedEvent) []string {
	seen := make(map[domain.Impact]struct{}, len(evs))
	out := make([]string, 0, len(evs))
	for _, ev := range evs {
		if ev.EstimatedImpact == "" {
			continue
		}
		if _, ok := seen[ev.EstimatedImpact]; ok {
			continue
		}
		seen[ev.EstimatedImpact] = struct{}{}
		out = append(out, string(ev.EstimatedImpact))
	}
	return out
}

func round2(v float64) float64 { return decimal.NewFromFloat(v).Round(2).InexactFloat64() }

func fixed2(v float64) string { return decimal.NewFromFloat(v).StringFixed(2) }
