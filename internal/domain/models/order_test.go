package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusRankIsStrictlyIncreasing(t *testing.T) {
	lifecycle := []OrderStatus{OrderPending, OrderCooking, OrderReady, OrderDelivering, OrderServed}
	for i := 1; i < len(lifecycle); i++ {
		assert.Greater(t, StatusRank(lifecycle[i]), StatusRank(lifecycle[i-1]))
	}
	assert.Equal(t, -1, StatusRank("limbo"))
}

func TestNextItemStatusTopsOutAtReady(t *testing.T) {
	assert.Equal(t, ItemCooking, NextItemStatus(ItemPending))
	assert.Equal(t, ItemReady, NextItemStatus(ItemCooking))
	assert.Equal(t, ItemReady, NextItemStatus(ItemReady))
}

func TestAggregateStatus(t *testing.T) {
	food := func(s ItemStatus) LineItem { return LineItem{Name: "pasta", Category: "main", Status: s} }
	drink := func(s ItemStatus) LineItem { return LineItem{Name: "agua", Category: BeverageCategory, Status: s} }

	tests := []struct {
		name  string
		items []LineItem
		want  OrderStatus
	}{
		{"no items", nil, OrderPending},
		{"all pending", []LineItem{food(ItemPending), drink(ItemPending)}, OrderPending},
		{"one item started", []LineItem{food(ItemCooking), food(ItemPending)}, OrderCooking},
		{"drink started counts as started", []LineItem{food(ItemPending), drink(ItemCooking)}, OrderCooking},
		{"food ready, drink pending", []LineItem{food(ItemReady), food(ItemReady), drink(ItemPending)}, OrderReady},
		{"some food not ready", []LineItem{food(ItemReady), food(ItemCooking)}, OrderCooking},
		{"drinks-only all ready", []LineItem{drink(ItemReady), drink(ItemReady)}, OrderReady},
		{"drinks-only partially ready", []LineItem{drink(ItemReady), drink(ItemCooking)}, OrderCooking},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AggregateStatus(tt.items))
		})
	}
}

func TestIsBeverage(t *testing.T) {
	assert.True(t, LineItem{Category: "bebida"}.IsBeverage())
	assert.False(t, LineItem{Category: "main"}.IsBeverage())
}
