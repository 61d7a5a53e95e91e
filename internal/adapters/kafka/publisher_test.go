package kafkaad_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kafkaad "hotel_pricing/internal/adapters/kafka"
	"hotel_pricing/internal/domain"
)

func TestMessages(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	recs := []domain.PriceRecommendation{
		{ID: "a", HotelID: "h1", RoomTypeID: "R1", TargetDate: domain.NewDate(2025, 3, 1), RecommendedPrice: 190, Status: domain.StatusPendingReview},
		{ID: "b", HotelID: "h1", RoomTypeID: "R2", TargetDate: domain.NewDate(2025, 3, 1), RecommendedPrice: 1800, Status: domain.StatusPendingReview},
	}

	msgs, err := kafkaad.Messages(recs, at)
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	assert.Equal(t, "h1/R1", string(msgs[0].Key))
	assert.Equal(t, "h1/R2", string(msgs[1].Key))
	assert.Equal(t, at, msgs[0].Time)
	require.Len(t, msgs[0].Headers, 1)
	assert.Equal(t, domain.StatusPendingReview, string(msgs[0].Headers[0].Value))

	var body map[string]any
	require.NoError(t, json.Unmarshal(msgs[0].Value, &body))
	assert.Equal(t, "2025-03-01", body["target_date"])
	assert.Equal(t, 190.0, body["recommended_price"])
	assert.Nil(t, body["current_price"])
	assert.Nil(t, body["applied_at"])
}
