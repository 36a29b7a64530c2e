// internal/models/order_test.go
package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderStatusTransitions(t *testing.T) {
	cases := []struct {
		from    OrderStatus
		to      OrderStatus
		allowed bool
	}{
		{OrderStatusPending, OrderStatusProcessing, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusPending, OrderStatusFailed, true},
		{OrderStatusPending, OrderStatusCompleted, false},
		{OrderStatusPending, OrderStatusRefunded, false},
		{OrderStatusProcessing, OrderStatusCompleted, true},
		{OrderStatusProcessing, OrderStatusFailed, true},
		{OrderStatusProcessing, OrderStatusCancelled, false},
		{OrderStatusProcessing, OrderStatusPending, false},
		{OrderStatusCompleted, OrderStatusRefunded, true},
		{OrderStatusCompleted, OrderStatusFailed, false},
		{OrderStatusCompleted, OrderStatusPending, false},
		{OrderStatusCancelled, OrderStatusProcessing, false},
		{OrderStatusCancelled, OrderStatusCompleted, false},
		{OrderStatusFailed, OrderStatusProcessing, false},
		{OrderStatusRefunded, OrderStatusCompleted, false},
		{OrderStatusRefunded, OrderStatusRefunded, false},
	}

	for _, tc := range cases {
		got := tc.from.CanTransitionTo(tc.to)
		assert.Equal(t, tc.allowed, got, "%s -> %s", tc.from, tc.to)
	}
}

func TestOrderStatusTerminal(t *testing.T) {
	assert.False(t, OrderStatusPending.IsTerminal())
	assert.False(t, OrderStatusProcessing.IsTerminal())
	assert.False(t, OrderStatusCompleted.IsTerminal())
	assert.True(t, OrderStatusCancelled.IsTerminal())
	assert.True(t, OrderStatusFailed.IsTerminal())
	assert.True(t, OrderStatusRefunded.IsTerminal())
}

func TestMaskedEmail(t *testing.T) {
	cases := []struct {
		email  string
		masked string
	}{
		{"customer@example.com", "c***@example.com"},
		{"ab@cd.io", "a***@cd.io"},
		{"a@b.co", "***"},
		{"a@b", "***"},
		{"no-at-sign", "***"},
		{"", "***"},
	}

	for _, tc := range cases {
		order := Order{CustomerEmail: tc.email}
		assert.Equal(t, tc.masked, order.MaskedEmail(), tc.email)
	}
}
