package domain

import "time"

const (
	StatusPendingReview = "Pending Review"
	StatusApproved      = "Approved"
	StatusRejected      = "Rejected"
)

// PriceRecommendation is the output of one (room, day) evaluation.
// CurrentPrice, AppliedAt and UserID stay nil until a reviewer acts on it.
type PriceRecommendation struct {
	ID                     string     `json:"id,omitempty"`
	HotelID                string     `json:"hotel_id"`
	RoomTypeID             string     `json:"room_type_id"`
	TargetDate             Date       `json:"target_date"`
	RecommendedPrice       float64    `json:"recommended_price"`
	CurrentPrice           *float64   `json:"current_price"`
	Reasoning              string     `json:"reasoning"`
	RecommendationStrength float64    `json:"recommendation_strength"`
	Status                 string     `json:"status"`
	GeneratedAt            time.Time  `json:"generated_at"`
	AppliedAt              *time.Time `json:"applied_at"`
	UserID                 *string    `json:"user_id"`
}

type RecommendationQuery struct {
	HotelID  string
	From, To Date
	Status   *string
	Limit    int
}
