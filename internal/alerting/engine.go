package alerting

import (
	"sync"
	"time"

	"github.com/campusguard/edge-collector/internal/logger"
)

// NotifyRule decides when an alert deserves a notification.
type NotifyRule struct {
	Name       string
	Conditions []Condition
	Cooldown   time.Duration
	Title      string
	Message    string

	// MinCount > 1 makes this a burst rule that fires once MinCount matching
	// alerts arrived within Window.
	MinCount int
	Window   time.Duration
}

func (r *NotifyRule) isBurst() bool {
	return r.MinCount > 1 && r.Window > 0
}

// ActionFunc is called when a rule fires. Receives the rule and triggering event.
type ActionFunc func(rule *NotifyRule, event *AlertEvent)

// Engine evaluates incoming alert events against configured rules.
type Engine struct {
	actionFunc ActionFunc
	tracker    *OccurrenceTracker
	log        logger.Logger
	now        func() time.Time

	// Cooldown tracking (in-memory, resets on restart)
	cooldowns   map[string]time.Time // rule name → last fired time
	cooldownsMu sync.Mutex

	rules []NotifyRule // fixed after NewEngine
}

// NewEngine creates a new alerting rules engine.
func NewEngine(rules []NotifyRule, actionFunc ActionFunc, log logger.Logger) *Engine {
	cp := make([]NotifyRule, len(rules))
	copy(cp, rules)
	return &Engine{
		actionFunc: actionFunc,
		tracker:    NewOccurrenceTracker(),
		log:        log,
		now:        time.Now,
		cooldowns:  make(map[string]time.Time),
		rules:      cp,
	}
}

// Rules returns a copy of the active rules.
func (e *Engine) Rules() []NotifyRule {
	out := make([]NotifyRule, len(e.rules))
	copy(out, e.rules)
	return out
}

// HandleEvent evaluates an event against all rules. It is an
// AlertEventHandler and runs on the bus worker.
func (e *Engine) HandleEvent(event *AlertEvent) {
	rules := e.rules
	props := event.Properties()
	ts := event.Timestamp
	if ts.IsZero() {
		ts = e.now()
	}

	for i := range rules {
		rule := &rules[i]
		if !EvaluateConditions(rule.Conditions, props) {
			continue
		}
		if rule.isBurst() {
			count := e.tracker.Record(rule.Name, ts, rule.Window)
			if count < rule.MinCount {
				e.log.Debug("burst rule below threshold",
					logger.String("rule", rule.Name),
					logger.Int("count", count),
					logger.Int("min_count", rule.MinCount))
				continue
			}
		}
		if e.isInCooldown(rule.Name, rule.Cooldown) {
			e.log.Debug("rule in cooldown", logger.String("rule", rule.Name))
			continue
		}
		e.fireRule(rule, event)
	}
}

func (e *Engine) isInCooldown(name string, cooldown time.Duration) bool {
	if cooldown <= 0 {
		return false
	}
	e.cooldownsMu.Lock()
	lastFired, exists := e.cooldowns[name]
	e.cooldownsMu.Unlock()
	if !exists {
		return false
	}
	return e.now().Sub(lastFired) < cooldown
}

func (e *Engine) fireRule(rule *NotifyRule, event *AlertEvent) {
	e.cooldownsMu.Lock()
	e.cooldowns[rule.Name] = e.now()
	e.cooldownsMu.Unlock()

	if rule.isBurst() {
		e.tracker.Reset(rule.Name)
	}

	e.log.Info("notification rule fired",
		logger.String("rule", rule.Name),
		logger.String("alert_id", event.Alert.ID),
		logger.String("event_type", event.Alert.EventType))

	if e.actionFunc != nil {
		e.actionFunc(rule, event)
	}
}

// TestFireRule runs the named rule's action for event, bypassing condition
// evaluation, burst counting and cooldowns. It reports false when no rule
// has that name.
func (e *Engine) TestFireRule(name string, event *AlertEvent) bool {
	for i := range e.rules {
		rule := &e.rules[i]
		if rule.Name != name {
			continue
		}
		e.log.Info("notification rule test fired",
			logger.String("rule", rule.Name),
			logger.String("alert_id", event.Alert.ID))
		if e.actionFunc != nil {
			e.actionFunc(rule, event)
		}
		return true
	}
	return false
}
