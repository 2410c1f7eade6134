package alerting

import "github.com/campusguard/edge-collector/internal/datastore/entities"

// DefaultRules returns the rules used when the configuration defines none:
// every operator-confirmed alert is pushed immediately.
func DefaultRules() []NotifyRule {
	return []NotifyRule{
		{
			Name: "Confirmed alert",
			Conditions: []Condition{
				{Property: PropertyOperatorVerdict, Operator: OperatorIs, Value: entities.VerdictYes},
			},
			Title: "CampusGuard: {{event_type}} confirmed",
		},
	}
}
