package alerting

import (
	"fmt"
	"strconv"
	"strings"
)

// Condition compares one event property against a configured value.
type Condition struct {
	Property string `json:"property"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}

// EvaluateConditions checks if all conditions match against event properties.
// Returns true if ALL conditions are satisfied (AND logic).
// Empty conditions list returns true (no conditions = always match).
func EvaluateConditions(conditions []Condition, properties map[string]any) bool {
	for i := range conditions {
		if !evaluateCondition(&conditions[i], properties) {
			return false
		}
	}
	return true
}

// evaluateCondition fails closed: a property the alert does not carry never
// matches, not even for negated operators.
func evaluateCondition(cond *Condition, properties map[string]any) bool {
	propVal, exists := properties[cond.Property]
	if !exists {
		return false
	}

	propStr := formatValue(propVal)
	condVal := cond.Value

	switch cond.Operator {
	case OperatorIs:
		return strings.EqualFold(propStr, condVal)
	case OperatorIsNot:
		return !strings.EqualFold(propStr, condVal)
	case OperatorContains:
		return strings.Contains(strings.ToLower(propStr), strings.ToLower(condVal))
	case OperatorNotContains:
		return !strings.Contains(strings.ToLower(propStr), strings.ToLower(condVal))
	case OperatorGreaterThan, OperatorLessThan, OperatorGreaterOrEqual, OperatorLessOrEqual:
		return evaluateNumeric(cond.Operator, propVal, condVal)
	default:
		return false
	}
}

func evaluateNumeric(operator string, propVal any, condVal string) bool {
	propFloat, err := toFloat64(propVal)
	if err != nil {
		return false
	}
	condFloat, err := strconv.ParseFloat(strings.TrimSpace(condVal), 64)
	if err != nil {
		return false
	}
	return compareFloat(propFloat, operator, condFloat)
}

func compareFloat(value float64, operator string, threshold float64) bool {
	switch operator {
	case OperatorGreaterThan:
		return value > threshold
	case OperatorLessThan:
		return value < threshold
	case OperatorGreaterOrEqual:
		return value >= threshold
	case OperatorLessOrEqual:
		return value <= threshold
	default:
		return false
	}
}

func toFloat64(val any) (float64, error) {
	switch v := val.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	default:
		return 0, fmt.Errorf("cannot convert %T to float64", val)
	}
}

// formatValue renders a property for string comparison and templates.
// Floats use the shortest representation so 0.91 stays "0.91".
func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprintf("%v", v)
	}
}
