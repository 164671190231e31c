package alert

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"token-alert-bot/internal/types"
)

func ptr(v float64) *float64 { return &v }

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name      string
		condition types.Condition
		target    float64
		price     *float64
		expected  bool
	}{
		{"above below target", types.ConditionAbove, 150, ptr(149.99), false},
		{"above at target", types.ConditionAbove, 150, ptr(150), true},
		{"above over target", types.ConditionAbove, 150, ptr(151), true},
		{"below over target", types.ConditionBelow, 1, ptr(1.01), false},
		{"below at target", types.ConditionBelow, 1, ptr(1), true},
		{"below under target", types.ConditionBelow, 1, ptr(0.5), true},
		{"below zero price", types.ConditionBelow, 1, ptr(0), true},
		{"above missing price", types.ConditionAbove, 150, nil, false},
		{"below missing price", types.ConditionBelow, 150, nil, false},
		{"unknown condition", types.Condition("sideways"), 150, ptr(150), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Evaluate(tt.condition, tt.target, tt.price))
		})
	}
}

func TestEvaluate_EqualPriceTriggersBothDirections(t *testing.T) {
	assert.True(t, Evaluate(types.ConditionAbove, 42, ptr(42)))
	assert.True(t, Evaluate(types.ConditionBelow, 42, ptr(42)))
}
