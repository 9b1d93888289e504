package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	materialdomain "github.com/sitelane/materialflow/internal/material/domain"
	"github.com/stretchr/testify/assert"
)

func TestNextStatuses(t *testing.T) {
	tests := []struct {
		name         string
		materialType materialdomain.MaterialType
		from         Status
		want         []Status
	}{
		{"purchasable pending", materialdomain.MaterialTypePurchasable, StatusPending, []Status{StatusOrdered}},
		{"purchasable ordered", materialdomain.MaterialTypePurchasable, StatusOrdered, []Status{StatusDelivered}},
		{"purchasable delivered", materialdomain.MaterialTypePurchasable, StatusDelivered, []Status{StatusInUse}},
		{"purchasable in_use", materialdomain.MaterialTypePurchasable, StatusInUse, []Status{StatusUsed}},
		{"purchasable used is terminal", materialdomain.MaterialTypePurchasable, StatusUsed, nil},
		{"receivable may skip ordered", materialdomain.MaterialTypeReceivable, StatusPending, []Status{StatusOrdered, StatusReceived}},
		{"receivable ordered", materialdomain.MaterialTypeReceivable, StatusOrdered, []Status{StatusReceived}},
		{"receivable received", materialdomain.MaterialTypeReceivable, StatusReceived, []Status{StatusUsed}},
		{"receivable used is terminal", materialdomain.MaterialTypeReceivable, StatusUsed, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextStatuses(tt.materialType, tt.from))
		})
	}
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(materialdomain.MaterialTypePurchasable, StatusPending, StatusOrdered))
	assert.False(t, CanTransition(materialdomain.MaterialTypePurchasable, StatusPending, StatusDelivered))
	assert.False(t, CanTransition(materialdomain.MaterialTypePurchasable, StatusDelivered, StatusOrdered))
	assert.False(t, CanTransition(materialdomain.MaterialTypePurchasable, StatusPending, StatusReceived))

	assert.True(t, CanTransition(materialdomain.MaterialTypeReceivable, StatusPending, StatusReceived))
	assert.True(t, CanTransition(materialdomain.MaterialTypeReceivable, StatusPending, StatusOrdered))
	assert.False(t, CanTransition(materialdomain.MaterialTypeReceivable, StatusPending, StatusDelivered))
	assert.False(t, CanTransition(materialdomain.MaterialTypeReceivable, StatusReceived, StatusPending))
}

func TestIsForward(t *testing.T) {
	// Overrides may jump steps but never regress or cross variants.
	assert.True(t, IsForward(materialdomain.MaterialTypePurchasable, StatusPending, StatusDelivered))
	assert.True(t, IsForward(materialdomain.MaterialTypePurchasable, StatusOrdered, StatusUsed))
	assert.False(t, IsForward(materialdomain.MaterialTypePurchasable, StatusDelivered, StatusDelivered))
	assert.False(t, IsForward(materialdomain.MaterialTypePurchasable, StatusInUse, StatusOrdered))
	assert.False(t, IsForward(materialdomain.MaterialTypePurchasable, StatusPending, StatusReceived))

	assert.True(t, IsForward(materialdomain.MaterialTypeReceivable, StatusPending, StatusUsed))
	assert.False(t, IsForward(materialdomain.MaterialTypeReceivable, StatusReceived, StatusOrdered))
	assert.False(t, IsForward(materialdomain.MaterialTypeReceivable, StatusPending, StatusInUse))
}

func TestAssignmentTotalQuantity(t *testing.T) {
	purchasable := Assignment{Detail: PurchasableDetail{Quantity: decimal.RequireFromString("120")}}
	assert.True(t, purchasable.TotalQuantity().Equal(decimal.RequireFromString("120")))

	estimate := decimal.RequireFromString("80")
	receivable := Assignment{Detail: ReceivableDetail{EstimatedQuantity: estimate}}
	assert.True(t, receivable.TotalQuantity().Equal(estimate))

	received := decimal.RequireFromString("75.5")
	receivable.Detail = ReceivableDetail{EstimatedQuantity: estimate, ReceivedQuantity: &received}
	assert.True(t, receivable.TotalQuantity().Equal(received))
}

func TestAssignmentStatusDefaultsToPending(t *testing.T) {
	assert.Equal(t, StatusPending, Assignment{}.Status())
	assert.Equal(t, StatusOrdered, Assignment{Detail: PurchasableDetail{Status: StatusOrdered}}.Status())
}
