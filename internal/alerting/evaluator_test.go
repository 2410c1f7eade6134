package alerting

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluateConditions_EmptyConditions(t *testing.T) {
	result := EvaluateConditions(nil, map[string]any{PropertyEventType: "tailgating"})
	assert.True(t, result, "empty conditions should match")
}

func TestEvaluateConditions_StringOperators(t *testing.T) {
	tests := []struct {
		name     string
		operator string
		value    string
		propVal  any
		want     bool
	}{
		{"is match", OperatorIs, "tailgating", "tailgating", true},
		{"is case insensitive", OperatorIs, "TAILGATING", "tailgating", true},
		{"is no match", OperatorIs, "loitering", "tailgating", false},
		{"is_not match", OperatorIsNot, "loitering", "tailgating", true},
		{"is_not no match", OperatorIsNot, "tailgating", "tailgating", false},
		{"contains match", OperatorContains, "gate", "tailgating", true},
		{"contains case insensitive", OperatorContains, "GATE", "tailgating", true},
		{"contains no match", OperatorContains, "door", "tailgating", false},
		{"not_contains match", OperatorNotContains, "door", "tailgating", true},
		{"not_contains no match", OperatorNotContains, "gate", "tailgating", false},
		{"bool rendered", OperatorIs, "true", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conds := []Condition{{Property: PropertyEventType, Operator: tt.operator, Value: tt.value}}
			props := map[string]any{PropertyEventType: tt.propVal}
			assert.Equal(t, tt.want, EvaluateConditions(conds, props))
		})
	}
}

func TestEvaluateConditions_NumericOperators(t *testing.T) {
	tests := []struct {
		name     string
		operator string
		value    string
		propVal  any
		want     bool
	}{
		{"greater_than true", OperatorGreaterThan, "0.8", 0.91, true},
		{"greater_than equal", OperatorGreaterThan, "0.91", 0.91, false},
		{"less_than true", OperatorLessThan, "0.5", 0.2, true},
		{"less_than false", OperatorLessThan, "0.5", 0.9, false},
		{"greater_or_equal equal", OperatorGreaterOrEqual, "0.91", 0.91, true},
		{"less_or_equal equal", OperatorLessOrEqual, "1", 1, true},
		{"string property parsed", OperatorGreaterThan, "0.5", "0.75", true},
		{"unparseable property", OperatorGreaterThan, "0.5", "high", false},
		{"unparseable threshold", OperatorGreaterThan, "high", 0.9, false},
		{"unsupported type", OperatorGreaterThan, "0", []int{1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conds := []Condition{{Property: PropertyModelConfidence, Operator: tt.operator, Value: tt.value}}
			props := map[string]any{PropertyModelConfidence: tt.propVal}
			assert.Equal(t, tt.want, EvaluateConditions(conds, props))
		})
	}
}

func TestEvaluateConditions_MissingPropertyNeverMatches(t *testing.T) {
	for _, op := range Operators() {
		conds := []Condition{{Property: PropertyDeviceID, Operator: op, Value: "cam-1"}}
		assert.False(t, EvaluateConditions(conds, map[string]any{}), "operator %s", op)
	}
}

func TestEvaluateConditions_UnknownOperator(t *testing.T) {
	conds := []Condition{{Property: PropertyEventType, Operator: "matches", Value: "x"}}
	assert.False(t, EvaluateConditions(conds, map[string]any{PropertyEventType: "x"}))
}

func TestEvaluateConditions_AllMustMatch(t *testing.T) {
	conds := []Condition{
		{Property: PropertyEventType, Operator: OperatorIs, Value: "tailgating"},
		{Property: PropertyModelConfidence, Operator: OperatorGreaterOrEqual, Value: "0.9"},
	}
	assert.True(t, EvaluateConditions(conds, map[string]any{PropertyEventType: "tailgating", PropertyModelConfidence: 0.95}))
	assert.False(t, EvaluateConditions(conds, map[string]any{PropertyEventType: "tailgating", PropertyModelConfidence: 0.5}))
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "0.91", formatValue(0.91))
	assert.Equal(t, "1", formatValue(1.0))
	assert.Equal(t, "false", formatValue(false))
	assert.Equal(t, "cam", formatValue("cam"))
	assert.Equal(t, "42", formatValue(42))
}
