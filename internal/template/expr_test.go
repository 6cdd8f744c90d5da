package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExpressionEval(t *testing.T) {
	env := map[string]float64{
		"plot_area":            250,
		"building_coefficient": 0.8,
		"floor_count":          2,
	}

	tests := []struct {
		src      string
		expected float64
	}{
		{"1 + 2", 3},
		{"2 + 3 * 4", 14},
		{"(2 + 3) * 4", 20},
		{"10 / 4", 2.5},
		{"-plot_area", -250},
		{"plot_area * building_coefficient", 200},
		{"plot_area * building_coefficient / floor_count", 100},
		{"1.5 * 2", 3},
		{"-(2 + 3)", -5},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			expr, err := ParseExpression(tt.src)
			require.NoError(t, err)

			got, err := expr.Eval(env)
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, got, 1e-9)
		})
	}
}

func TestParseExpressionErrors(t *testing.T) {
	tests := []string{
		"",
		"1 +",
		"* 2",
		"(1 + 2",
		"1 + 2)",
		"1 @ 2",
		"1..2",
	}

	for _, src := range tests {
		t.Run(src, func(t *testing.T) {
			_, err := ParseExpression(src)
			assert.Error(t, err)
		})
	}
}

func TestEvalDivisionByZero(t *testing.T) {
	expr, err := ParseExpression("plot_area / zero")
	require.NoError(t, err)

	_, err = expr.Eval(map[string]float64{"plot_area": 100, "zero": 0})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "division by zero")
}

func TestEvalMissingVariable(t *testing.T) {
	expr, err := ParseExpression("a + b")
	require.NoError(t, err)

	_, err = expr.Eval(map[string]float64{"a": 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "b")
}

func TestExpressionIdentifiers(t *testing.T) {
	ids, err := ExpressionIdentifiers("plot_area * building_coefficient + plot_area")
	require.NoError(t, err)
	assert.Equal(t, []string{"plot_area", "building_coefficient"}, ids)

	ids, err = ExpressionIdentifiers("2 * 3")
	require.NoError(t, err)
	assert.Empty(t, ids)
}
