// Package policy maps confidence scores and validation outcomes to review
// decisions. Every function here is pure.
package policy

import (
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/check-cli/internal/model"
)

// Thresholds are the confidence cut-offs for review routing.
type Thresholds struct {
	AutoApprove     float64 `yaml:"auto_approve" mapstructure:"auto_approve"`
	ReviewSuggested float64 `yaml:"review_suggested" mapstructure:"review_suggested"`
}

// DefaultThresholds returns the standard routing cut-offs.
func DefaultThresholds() Thresholds {
	return Thresholds{AutoApprove: 0.90, ReviewSuggested: 0.70}
}

// Validate checks 0 <= ReviewSuggested <= AutoApprove <= 1.
func (t Thresholds) Validate() error {
	if t.ReviewSuggested < 0 || t.AutoApprove > 1 {
		return eris.Errorf("policy: thresholds must be within [0,1] (review_suggested=%.2f, auto_approve=%.2f)", t.ReviewSuggested, t.AutoApprove)
	}
	if t.ReviewSuggested > t.AutoApprove {
		return eris.Errorf("policy: review_suggested %.2f exceeds auto_approve %.2f", t.ReviewSuggested, t.AutoApprove)
	}
	return nil
}

// DetermineReviewStatus routes on confidence alone.
func DetermineReviewStatus(confidence float64, t Thresholds) model.ReviewStatus {
	switch {
	case confidence >= t.AutoApprove:
		return model.ReviewApproved
	case confidence >= t.ReviewSuggested:
		return model.ReviewSuggested
	default:
		return model.ReviewRequired
	}
}

// RecommendStatus routes on confidence and validation findings. Any error
// forces review; any warning caps the result at a suggested review.
func RecommendStatus(confidence float64, hasErrors, hasWarnings bool, t Thresholds) model.ReviewStatus {
	if hasErrors {
		return model.ReviewRequired
	}
	status := DetermineReviewStatus(confidence, t)
	if hasWarnings && status == model.ReviewApproved {
		return model.ReviewSuggested
	}
	return status
}

// Priority ranks how urgently a reviewer should look at a field.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

func (p Priority) rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	default:
		return 2
	}
}

var criticalFields = map[string]bool{
	model.FieldAmount:      true,
	model.FieldPayee:       true,
	model.FieldCheckNumber: true,
}

// CalculateFieldPriority ranks a field for review. Critical fields (amount,
// payee, check number) need 0.95 to rank low; the rest need 0.85.
func CalculateFieldPriority(field string, confidence float64) Priority {
	high, medium := 0.70, 0.85
	if criticalFields[field] {
		high, medium = 0.85, 0.95
	}
	switch {
	case confidence < high:
		return PriorityHigh
	case confidence < medium:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// FieldPriority is one entry in a reviewer's work list.
type FieldPriority struct {
	Field      string   `json:"field"`
	Confidence float64  `json:"confidence"`
	Priority   Priority `json:"priority"`
}

// ReviewPriorityFields lists the primary fields below the auto-approve
// threshold, high priority first. Ties keep primary field order.
func ReviewPriorityFields(fields model.CheckFields, t Thresholds) []FieldPriority {
	primary := fields.Primary()
	out := make([]FieldPriority, 0, len(model.PrimaryFields))
	for _, name := range model.PrimaryFields {
		conf := primary[name].Confidence
		if conf >= t.AutoApprove {
			continue
		}
		out = append(out, FieldPriority{
			Field:      name,
			Confidence: conf,
			Priority:   CalculateFieldPriority(name, conf),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority.rank() < out[j].Priority.rank()
	})
	return out
}

// ShouldAutoExport reports whether a check may be exported without review.
// A non-positive threshold falls back to the default auto-approve cut-off.
func ShouldAutoExport(confidence float64, hasErrors bool, threshold float64) bool {
	if threshold <= 0 {
		threshold = DefaultThresholds().AutoApprove
	}
	return confidence >= threshold && !hasErrors
}

// Decision is the router's verdict for one processed check.
type Decision struct {
	Status         model.ReviewStatus `json:"status"`
	AutoExport     bool               `json:"auto_export"`
	PriorityFields []FieldPriority    `json:"priority_fields"`
}

// Route combines the validator's recommendation with export eligibility and
// the reviewer work list.
func Route(result model.ValidationResult, fields model.CheckFields, t Thresholds, exportThreshold float64) Decision {
	hasErrors := len(result.Errors) > 0
	status := result.RecommendedStatus
	if status == "" {
		status = RecommendStatus(result.ConfidenceSummary, hasErrors, len(result.Warnings) > 0, t)
	}
	return Decision{
		Status:         status,
		AutoExport:     ShouldAutoExport(result.ConfidenceSummary, hasErrors, exportThreshold),
		PriorityFields: ReviewPriorityFields(fields, t),
	}
}
