package nurture

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ILLUVRSE/abm-engine/internal/models"
)

// evaluateCondition applies a single trigger condition to a data map
// (trigger payload or contact properties). Unknown operators evaluate
// false.
func evaluateCondition(condition models.TriggerCondition, data map[string]interface{}) bool {
	actual, ok := data[condition.PropertyName]

	switch condition.Operator {
	case "equals":
		if !ok {
			return false
		}
		if af, aok := toFloat(actual); aok {
			if ef, eok := toFloat(condition.Value); eok {
				return af == ef
			}
		}
		return fmt.Sprint(actual) == fmt.Sprint(condition.Value)
	case "greater_than":
		af, aok := toFloat(actual)
		ef, eok := toFloat(condition.Value)
		return aok && eok && af > ef
	case "less_than":
		af, aok := toFloat(actual)
		ef, eok := toFloat(condition.Value)
		return aok && eok && af < ef
	case "contains":
		return strings.Contains(fmt.Sprint(actual), fmt.Sprint(condition.Value))
	case "changed":
		changed, _ := data[condition.PropertyName+"_changed"].(bool)
		return changed
	default:
		return false
	}
}

// allConditionsMet requires every condition to hold; an empty list holds
// trivially.
func allConditionsMet(conditions []models.TriggerCondition, data map[string]interface{}) bool {
	for _, condition := range conditions {
		if !evaluateCondition(condition, data) {
			return false
		}
	}
	return true
}

// toFloat coerces JSON numbers, ints, and numeric strings. CRM properties
// arrive stringified, so numeric comparisons must parse them.
func toFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
