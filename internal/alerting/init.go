package alerting

import (
	"github.com/campusguard/edge-collector/internal/conf"
	"github.com/campusguard/edge-collector/internal/logger"
)

// RulesFromConfig converts configured rules to engine rules. An empty list
// yields DefaultRules.
func RulesFromConfig(cfg []conf.NotifyRuleConfig) []NotifyRule {
	if len(cfg) == 0 {
		return DefaultRules()
	}
	rules := make([]NotifyRule, 0, len(cfg))
	for i := range cfg {
		rc := &cfg[i]
		conds := make([]Condition, 0, len(rc.Conditions))
		for _, c := range rc.Conditions {
			conds = append(conds, Condition{Property: c.Property, Operator: c.Operator, Value: c.Value})
		}
		rules = append(rules, NotifyRule{
			Name:       rc.Name,
			Conditions: conds,
			Cooldown:   rc.Cooldown.Std(),
			Title:      rc.Title,
			Message:    rc.Message,
			MinCount:   rc.MinCount,
			Window:     rc.Window.Std(),
		})
	}
	return rules
}

// Initialize builds the rules engine from settings and subscribes it to the
// bus. Fired rules are handed to action.
func Initialize(settings *conf.Settings, bus *AlertEventBus, action ActionFunc, log logger.Logger) *Engine {
	rules := RulesFromConfig(settings.Alerting.Rules)
	engine := NewEngine(rules, action, log)
	bus.Subscribe(engine.HandleEvent)

	log.Info("alerting engine initialized",
		logger.Int("rules_loaded", len(rules)),
		logger.Bool("default_rules", len(settings.Alerting.Rules) == 0))
	return engine
}
