package alerting

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/campusguard/edge-collector/internal/logger"
)

// Notifier delivers a rendered notification.
type Notifier interface {
	Notify(ctx context.Context, title, message string) error
}

// ActionDispatcher renders a fired rule's templates and hands the result to
// the notifier.
type ActionDispatcher struct {
	notifier Notifier
	timeout  time.Duration
	log      logger.Logger
}

// NewActionDispatcher creates a new ActionDispatcher. A non-positive timeout
// means no deadline beyond the notifier's own.
func NewActionDispatcher(notifier Notifier, timeout time.Duration, log logger.Logger) *ActionDispatcher {
	return &ActionDispatcher{
		notifier: notifier,
		timeout:  timeout,
		log:      log,
	}
}

// Dispatch implements ActionFunc. Delivery errors are logged, never returned:
// a failed push must not affect the alert that triggered it.
func (d *ActionDispatcher) Dispatch(rule *NotifyRule, event *AlertEvent) {
	if d.notifier == nil {
		return
	}
	title := renderTemplate(rule.Title, rule, event, defaultTitle)
	message := renderTemplate(rule.Message, rule, event, defaultMessage)

	ctx := context.Background()
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	if err := d.notifier.Notify(ctx, title, message); err != nil {
		d.log.Error("failed to send notification",
			logger.String("rule", rule.Name),
			logger.String("alert_id", event.Alert.ID),
			logger.Error(err))
	}
}

// renderTemplate substitutes {{placeholder}} variables. Placeholders for
// properties the alert lacks render as an empty string. Falls back to the
// default when the template is empty.
func renderTemplate(tmpl string, rule *NotifyRule, event *AlertEvent, fallback func(*NotifyRule, *AlertEvent) string) string {
	if tmpl == "" {
		return fallback(rule, event)
	}
	props := event.Properties()
	pairs := []string{"{{rule_name}}", rule.Name}
	for _, key := range []string{
		PropertyID, PropertyEventType, PropertyOperatorVerdict, PropertyDeviceID,
		PropertyNotes, PropertyModelConfidence, PropertyHasImage, PropertyImageFile,
	} {
		val := ""
		if v, ok := props[key]; ok {
			val = formatValue(v)
		}
		pairs = append(pairs, "{{"+key+"}}", val)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

func defaultTitle(rule *NotifyRule, event *AlertEvent) string {
	return fmt.Sprintf("Alert: %s (%s)", rule.Name, event.Alert.EventType)
}

func defaultMessage(_ *NotifyRule, event *AlertEvent) string {
	a := &event.Alert
	var b strings.Builder
	fmt.Fprintf(&b, "%s reported with verdict %s", a.EventType, a.OperatorVerdict)
	if a.DeviceID != nil && *a.DeviceID != "" {
		fmt.Fprintf(&b, " by %s", *a.DeviceID)
	}
	if a.ModelConfidence != nil {
		fmt.Fprintf(&b, ", confidence %s", formatValue(*a.ModelConfidence))
	}
	if a.Notes != nil && *a.Notes != "" {
		fmt.Fprintf(&b, ": %s", *a.Notes)
	}
	return b.String()
}
