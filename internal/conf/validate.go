package conf

import (
	"fmt"
	"strings"

	"github.com/campusguard/edge-collector/internal/errors"
)

// Operators accepted in notification rule conditions.
var validOperators = map[string]bool{
	"is":               true,
	"is_not":           true,
	"contains":         true,
	"not_contains":     true,
	"greater_than":     true,
	"less_than":        true,
	"greater_or_equal": true,
	"less_or_equal":    true,
}

// Validate checks settings for values the collector cannot start with.
// All problems are reported together.
func (s *Settings) Validate() error {
	var problems []string

	if strings.TrimSpace(s.Auth.Token) == "" {
		problems = append(problems, "auth.token must not be empty")
	}
	if s.Server.Port < 1 || s.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server.port %d out of range 1-65535", s.Server.Port))
	}
	if strings.TrimSpace(s.Storage.DataDir) == "" {
		problems = append(problems, "storage.datadir must not be empty")
	}
	if s.Storage.ImageCacheMaxBytes < 0 || s.Storage.ImageCacheMaxItemBytes < 0 {
		problems = append(problems, "storage.imagecachemaxbytes and storage.imagecachemaxitembytes must not be negative")
	}
	if s.Server.RateLimit.Enabled && s.Server.RateLimit.RequestsPerSecond <= 0 {
		problems = append(problems, "server.ratelimit.requestspersecond must be positive")
	}
	if s.MQTT.Enabled {
		if s.MQTT.Broker == "" {
			problems = append(problems, "mqtt.broker is required when mqtt is enabled")
		}
		if s.MQTT.QoS < 0 || s.MQTT.QoS > 2 {
			problems = append(problems, fmt.Sprintf("mqtt.qos %d must be 0, 1 or 2", s.MQTT.QoS))
		}
	}
	if s.Sentry.Enabled && s.Sentry.DSN == "" {
		problems = append(problems, "sentry.dsn is required when sentry is enabled")
	}
	for i := range s.Alerting.Rules {
		rule := &s.Alerting.Rules[i]
		if rule.Name == "" {
			problems = append(problems, fmt.Sprintf("alerting.rules[%d] has no name", i))
		}
		if rule.MinCount < 0 {
			problems = append(problems, fmt.Sprintf("alerting.rules[%d] mincount must not be negative", i))
		}
		if rule.MinCount > 1 && rule.Window <= 0 {
			problems = append(problems, fmt.Sprintf("alerting.rules[%d] needs a window when mincount is above 1", i))
		}
		for _, cond := range rule.Conditions {
			if !validOperators[cond.Operator] {
				problems = append(problems, fmt.Sprintf("alerting.rules[%d] uses unknown operator %q", i, cond.Operator))
			}
			if cond.Property == "" {
				problems = append(problems, fmt.Sprintf("alerting.rules[%d] has a condition without property", i))
			}
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return errors.Newf("invalid configuration: %s", strings.Join(problems, "; ")).
		Component("conf").
		Category(errors.CategoryConfiguration).
		Context("problems", len(problems)).
		Build()
}
