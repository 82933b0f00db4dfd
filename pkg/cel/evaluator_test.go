package cel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvaluator(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)
	assert.NotNil(t, eval)
}

func TestValidateExpression(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	tests := []struct {
		name      string
		expr      string
		wantError bool
	}{
		{
			name:      "valid simple expression",
			expr:      `tipo == "INCONSISTENCIA"`,
			wantError: false,
		},
		{
			name:      "valid numeric comparison",
			expr:      `datos.precio >= 0.0`,
			wantError: false,
		},
		{
			name:      "invalid expression",
			expr:      `invalid syntax here!!!`,
			wantError: true,
		},
		{
			name:      "undefined variable",
			expr:      `payload == "test"`,
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := eval.ValidateExpression(tt.expr)
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateFilterExpression(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	assert.NoError(t, eval.ValidateFilterExpression(`size(datos.producto) > 0`))
	assert.Error(t, eval.ValidateFilterExpression(`datos.precio`))
}

func TestEvaluateFilter(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	vars := Vars{
		Tipo: "INCONSISTENCIA",
		Datos: map[string]interface{}{
			"producto":     "Leche",
			"supermercado": "Tienda A",
			"precio":       25.5,
		},
	}

	tests := []struct {
		name string
		expr string
		want bool
	}{
		{"price bound", `datos.precio >= 0.0`, true},
		{"price cap", `datos.precio < 10.0`, false},
		{"string match", `datos.supermercado.startsWith("Tienda")`, true},
		{"type check", `tipo == "INCONSISTENCIA"`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := eval.EvaluateFilter(context.Background(), tt.expr, vars)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRuleSet(t *testing.T) {
	rs, err := NewRuleSet([]string{
		`datos.precio >= 0.0`,
		`size(datos.producto) <= 200`,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, rs.Len())

	_, ok := rs.Check(context.Background(), Vars{Datos: map[string]interface{}{"producto": "Pan", "precio": 3.0}})
	assert.True(t, ok)

	rejectedBy, ok := rs.Check(context.Background(), Vars{Datos: map[string]interface{}{"producto": "Pan", "precio": -1.0}})
	assert.False(t, ok)
	assert.Equal(t, `datos.precio >= 0.0`, rejectedBy)

	rejectedBy, ok = rs.Check(context.Background(), Vars{Datos: map[string]interface{}{"producto": "Pan"}})
	assert.False(t, ok, "missing key is a rejection")
	assert.Equal(t, `datos.precio >= 0.0`, rejectedBy)
}

func TestRuleSetRejectsBadExpressions(t *testing.T) {
	_, err := NewRuleSet([]string{`datos.precio`})
	assert.Error(t, err)

	var nilSet *RuleSet
	_, ok := nilSet.Check(context.Background(), Vars{})
	assert.True(t, ok)
}
