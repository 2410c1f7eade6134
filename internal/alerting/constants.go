// Package alerting evaluates ingested alerts against notification rules and
// fans them out to side channels through an asynchronous event bus.
package alerting

// Condition operators define how property values are compared.
const (
	OperatorIs             = "is"
	OperatorIsNot          = "is_not"
	OperatorContains       = "contains"
	OperatorNotContains    = "not_contains"
	OperatorGreaterThan    = "greater_than"
	OperatorLessThan       = "less_than"
	OperatorGreaterOrEqual = "greater_or_equal"
	OperatorLessOrEqual    = "less_or_equal"
)

// Properties exposed by an AlertEvent for condition evaluation and templates.
const (
	PropertyID              = "id"
	PropertyEventType       = "event_type"
	PropertyOperatorVerdict = "operator_verdict"
	PropertyDeviceID        = "device_id"
	PropertyNotes           = "notes"
	PropertyModelConfidence = "model_confidence"
	PropertyHasImage        = "has_image"
	PropertyImageFile       = "image_file"
)

// Operators lists every supported operator.
func Operators() []string {
	return []string{
		OperatorIs, OperatorIsNot, OperatorContains, OperatorNotContains,
		OperatorGreaterThan, OperatorLessThan, OperatorGreaterOrEqual, OperatorLessOrEqual,
	}
}
