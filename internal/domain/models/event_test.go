package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderStatusRank(t *testing.T) {
	tests := []struct {
		name     string
		statuses []OrderStatus
	}{
		{
			name: "канонический порядок до confirmed",
			statuses: []OrderStatus{
				OrderStatusPending,
				OrderStatusRouting,
				OrderStatusBuilding,
				OrderStatusSubmitted,
				OrderStatusConfirmed,
			},
		},
		{
			name: "канонический порядок до failed",
			statuses: []OrderStatus{
				OrderStatusPending,
				OrderStatusRouting,
				OrderStatusBuilding,
				OrderStatusSubmitted,
				OrderStatusFailed,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 1; i < len(tt.statuses); i++ {
				previous, current := tt.statuses[i-1], tt.statuses[i]
				assert.Less(t, previous.Rank(), current.Rank(),
					"статус %s должен предшествовать %s", previous, current)
			}
		})
	}

	assert.Equal(t, OrderStatusConfirmed.Rank(), OrderStatusFailed.Rank(),
		"терминальные статусы делят один ранг")
	assert.Equal(t, 0, OrderStatus("unknown").Rank())
}

func TestOrderStatusTerminal(t *testing.T) {
	tests := []struct {
		name     string
		status   OrderStatus
		terminal bool
	}{
		{"pending не терминален", OrderStatusPending, false},
		{"routing не терминален", OrderStatusRouting, false},
		{"building не терминален", OrderStatusBuilding, false},
		{"submitted не терминален", OrderStatusSubmitted, false},
		{"confirmed терминален", OrderStatusConfirmed, true},
		{"failed терминален", OrderStatusFailed, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.terminal, tt.status.Terminal())
		})
	}
}

func TestSortCanonical(t *testing.T) {
	orderID := uuid.New()

	shuffled := []OrderEvent{
		NewSubmittedEvent(orderID),
		NewPendingEvent(orderID),
		NewFailedEvent(orderID, "boom"),
		NewBuildingEvent(orderID),
		NewRoutingEvent(orderID),
	}

	SortCanonical(shuffled)

	got := make([]OrderStatus, 0, len(shuffled))
	for _, event := range shuffled {
		got = append(got, event.Status)
	}

	assert.Equal(t, []OrderStatus{
		OrderStatusPending,
		OrderStatusRouting,
		OrderStatusBuilding,
		OrderStatusSubmitted,
		OrderStatusFailed,
	}, got)
}

func TestEventConstructors(t *testing.T) {
	orderID := uuid.New()
	price := decimal.RequireFromString("142.73")

	confirmed := NewConfirmedEvent(orderID, VenueRaydium, price, "deadbeef")
	require.NotNil(t, confirmed.Price)
	assert.Equal(t, orderID, confirmed.OrderID)
	assert.Equal(t, OrderStatusConfirmed, confirmed.Status)
	assert.Equal(t, VenueRaydium, confirmed.Venue)
	assert.True(t, price.Equal(*confirmed.Price))
	assert.Equal(t, "deadbeef", confirmed.TxRef)
	assert.False(t, confirmed.Timestamp.IsZero())

	failed := NewFailedEvent(orderID, "venue unavailable")
	assert.Equal(t, OrderStatusFailed, failed.Status)
	assert.Equal(t, "venue unavailable", failed.Reason)
	assert.Nil(t, failed.Price)

	pending := NewPendingEvent(orderID)
	assert.Equal(t, OrderStatusPending, pending.Status)
	assert.Empty(t, pending.Venue)
	assert.Empty(t, pending.TxRef)
	assert.Empty(t, pending.Reason)
}

func TestStatusSet(t *testing.T) {
	orderID := uuid.New()

	seen := StatusSet([]OrderEvent{
		NewPendingEvent(orderID),
		NewRoutingEvent(orderID),
	})

	assert.Contains(t, seen, OrderStatusPending)
	assert.Contains(t, seen, OrderStatusRouting)
	assert.NotContains(t, seen, OrderStatusBuilding)
}
