package alerting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusguard/edge-collector/internal/datastore/entities"
)

func TestDefaultRules(t *testing.T) {
	rules := DefaultRules()
	require.NotEmpty(t, rules, "should have default rules")

	for _, rule := range rules {
		assert.NotEmpty(t, rule.Name, "rule must have a name")
		assert.NotEmpty(t, rule.Conditions, "default rules must filter: %s", rule.Name)
		for _, cond := range rule.Conditions {
			assert.Contains(t, Operators(), cond.Operator)
		}
	}
}

func TestDefaultRules_UniqueNames(t *testing.T) {
	rules := DefaultRules()
	names := make(map[string]bool, len(rules))
	for _, rule := range rules {
		assert.False(t, names[rule.Name], "duplicate rule name: %s", rule.Name)
		names[rule.Name] = true
	}
}

func TestDefaultRules_OnlyConfirmedAlertsNotify(t *testing.T) {
	engine, fired, _ := newTestEngine(DefaultRules())

	engine.HandleEvent(testEvent("loitering", entities.VerdictMaybe))
	assert.Empty(t, *fired)

	engine.HandleEvent(testEvent("tailgating", entities.VerdictYes))
	assert.Equal(t, []string{"Confirmed alert"}, *fired)
}
