// Package entities defines the records held by the collector.
package entities

// Operator verdicts. Matching is exact and case-sensitive.
const (
	VerdictYes   = "YES"
	VerdictMaybe = "MAYBE"
)

// Alert is a single reported event. It is immutable once stored.
// Optional fields are pointers so an explicitly empty string survives
// while an absent value is omitted from JSON.
type Alert struct {
	ID              string   `json:"id"`
	Timestamp       int64    `json:"ts"` // milliseconds since epoch
	DeviceID        *string  `json:"deviceId,omitempty"`
	EventType       string   `json:"eventType"`
	ModelConfidence *float64 `json:"modelConfidence,omitempty"`
	OperatorVerdict string   `json:"operatorVerdict"`
	Notes           *string  `json:"notes,omitempty"`
	ImageFile       *string  `json:"imageFile,omitempty"`
}

// IsValidVerdict reports whether v is an accepted operator verdict.
func IsValidVerdict(v string) bool {
	return v == VerdictYes || v == VerdictMaybe
}

// HasImage reports whether the alert references a stored image.
func (a *Alert) HasImage() bool {
	return a.ImageFile != nil && *a.ImageFile != ""
}
