package model

// Agreement classifies how two engine readings of one field relate.
type Agreement string

const (
	AgreementFull     Agreement = "full"
	AgreementPartial  Agreement = "partial"
	AgreementConflict Agreement = "conflict"
)

// ConsensusResult is the merged outcome for one field.
type ConsensusResult struct {
	Field     FieldExtraction `json:"field"`
	Agreement Agreement       `json:"agreement"`
	Sources   []Source        `json:"sources"`
}

// ConsensusReport maps field names to their consensus outcome.
type ConsensusReport map[string]ConsensusResult

// Severity of a validation finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Validation codes.
const (
	CodeRequiredFieldMissing    = "REQUIRED_FIELD_MISSING"
	CodeInvalidAmount           = "INVALID_AMOUNT"
	CodeInvalidDate             = "INVALID_DATE"
	CodeFutureDate              = "FUTURE_DATE"
	CodeInvalidRouting          = "INVALID_ROUTING"
	CodeAmountMismatch          = "AMOUNT_MISMATCH"
	CodeCheckNumberMICRMismatch = "CHECK_NUMBER_MICR_MISMATCH"
	CodeOldCheckDate            = "OLD_CHECK_DATE"
	CodeFutureCheckDate         = "FUTURE_CHECK_DATE"
	CodeGenericPayee            = "GENERIC_PAYEE"
	CodeRoundAmount             = "ROUND_AMOUNT"
	CodeLargeAmount             = "LARGE_AMOUNT"
	CodeDuplicateCheck          = "DUPLICATE_CHECK"
)

// ValidationError is a single validation finding. It is data, not a Go error.
type ValidationError struct {
	Field    string   `json:"field"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
	Code     string   `json:"code"`
}

// ReviewStatus is the routing outcome for a processed check.
type ReviewStatus string

const (
	ReviewApproved  ReviewStatus = "approved"
	ReviewSuggested ReviewStatus = "review_suggested"
	ReviewRequired  ReviewStatus = "review_required"
)

// CheckStatus maps the review outcome to the stored check status.
func (s ReviewStatus) CheckStatus() CheckStatus {
	switch s {
	case ReviewApproved:
		return CheckStatusApproved
	case ReviewSuggested:
		return CheckStatusReviewSuggested
	default:
		return CheckStatusReviewRequired
	}
}

// ValidationResult is the outcome of validating one merged field set.
type ValidationResult struct {
	IsValid           bool              `json:"is_valid"`
	Errors            []ValidationError `json:"errors"`
	Warnings          []ValidationError `json:"warnings"`
	ConfidenceSummary float64           `json:"confidence_summary"`
	RecommendedStatus ReviewStatus      `json:"recommended_status"`
}
