// Package validate checks a merged check field set for missing data, bad
// formats, cross-field inconsistencies and likely duplicates.
package validate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/check-cli/internal/model"
	"github.com/sells-group/check-cli/internal/policy"
)

const (
	maxAmountCents   int64 = 1_000_000 * 100
	roundAmountCents int64 = 1_000 * 100
	largeAmountCents int64 = 100_000 * 100
)

var genericPayees = []string{"cash", "bearer", "to order of"}

// DuplicateFinder looks up existing checks for a tenant with the same check
// number, amount and date. Deleted and rejected checks are not returned.
type DuplicateFinder interface {
	FindDuplicates(ctx context.Context, tenantID, checkNumber string, amountCents int64, checkDate time.Time, excludeID string) ([]string, error)
}

// Validator produces a ValidationResult for a merged field set.
type Validator struct {
	dups       DuplicateFinder
	thresholds policy.Thresholds
	now        func() time.Time
}

// Option configures a Validator.
type Option func(*Validator)

// WithClock overrides the time source used for date checks.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) { v.now = now }
}

// New creates a Validator. dups may be nil, which disables duplicate detection.
func New(dups DuplicateFinder, thresholds policy.Thresholds, opts ...Option) *Validator {
	v := &Validator{dups: dups, thresholds: thresholds, now: time.Now}
	for _, o := range opts {
		o(v)
	}
	return v
}

// Validate runs every check against fields. It never fails: a duplicate
// lookup error is logged and the lookup is skipped.
func (v *Validator) Validate(ctx context.Context, tenantID, checkID string, fields model.CheckFields) model.ValidationResult {
	now := v.now()

	var findings []model.ValidationError
	findings = append(findings, RequiredFields(fields)...)
	findings = append(findings, Formats(fields, now)...)
	findings = append(findings, CrossField(fields, now)...)
	findings = append(findings, v.duplicates(ctx, tenantID, checkID, fields)...)

	result := model.ValidationResult{
		Errors:   []model.ValidationError{},
		Warnings: []model.ValidationError{},
	}
	for _, f := range findings {
		if f.Severity == model.SeverityError {
			result.Errors = append(result.Errors, f)
		} else {
			result.Warnings = append(result.Warnings, f)
		}
	}
	result.IsValid = len(result.Errors) == 0
	result.ConfidenceSummary = ConfidenceSummary(fields)
	result.RecommendedStatus = policy.RecommendStatus(
		result.ConfidenceSummary, len(result.Errors) > 0, len(result.Warnings) > 0, v.thresholds,
	)

	zap.L().Debug("validate: check validated",
		zap.String("check_id", checkID),
		zap.Int("errors", len(result.Errors)),
		zap.Int("warnings", len(result.Warnings)),
		zap.Float64("confidence", result.ConfidenceSummary),
		zap.String("status", string(result.RecommendedStatus)),
	)
	return result
}

func (v *Validator) duplicates(ctx context.Context, tenantID, checkID string, fields model.CheckFields) []model.ValidationError {
	if v.dups == nil || !fields.CheckNumber.Present() {
		return nil
	}
	amount, ok := fields.Amount.Value.AsAmount()
	if !ok {
		return nil
	}
	date, ok := fields.CheckDate.Value.AsDate()
	if !ok {
		return nil
	}
	number := fields.CheckNumber.Value.String()

	ids, err := v.dups.FindDuplicates(ctx, tenantID, number, amount.Cents, date.Date, checkID)
	if err != nil {
		zap.L().Warn("validate: duplicate lookup failed",
			zap.String("check_id", checkID),
			zap.String("tenant_id", tenantID),
			zap.Error(err),
		)
		return nil
	}
	if len(ids) == 0 {
		return nil
	}
	return []model.ValidationError{warning(model.FieldCheckNumber, model.CodeDuplicateCheck,
		fmt.Sprintf("Potential duplicate: check #%s with the same amount and date already exists", number))}
}

// RequiredFields reports each of payee, amount, check date and check number
// that has no value.
func RequiredFields(fields model.CheckFields) []model.ValidationError {
	required := []struct {
		name  string
		label string
		field model.FieldExtraction
	}{
		{model.FieldPayee, "Payee", fields.Payee},
		{model.FieldAmount, "Amount", fields.Amount},
		{model.FieldCheckDate, "Check date", fields.CheckDate},
		{model.FieldCheckNumber, "Check number", fields.CheckNumber},
	}
	var out []model.ValidationError
	for _, r := range required {
		if !r.field.Present() {
			out = append(out, fail(r.name, model.CodeRequiredFieldMissing, r.label+" is required"))
		}
	}
	return out
}

// Formats checks the amount range, the date and the MICR routing checksum.
func Formats(fields model.CheckFields, now time.Time) []model.ValidationError {
	var out []model.ValidationError

	if fields.Amount.Present() {
		amount, ok := fields.Amount.Value.AsAmount()
		if !ok || amount.Cents <= 0 || amount.Cents > maxAmountCents {
			out = append(out, fail(model.FieldAmount, model.CodeInvalidAmount, "Amount must be between $0 and $1,000,000"))
		}
	}

	if fields.CheckDate.Present() {
		date, ok := fields.CheckDate.Value.AsDate()
		switch {
		case !ok:
			out = append(out, fail(model.FieldCheckDate, model.CodeInvalidDate, "Invalid date format"))
		case date.Date.After(today(now)):
			out = append(out, warning(model.FieldCheckDate, model.CodeFutureDate, "Check date is in the future"))
		}
	}

	if routing := fields.MICR.Routing; routing.Present() && !ValidRoutingNumber(routing.Value.String()) {
		out = append(out, fail(model.FieldMICRRouting, model.CodeInvalidRouting, "Invalid routing number (failed checksum)"))
	}
	return out
}

// CrossField checks that related fields agree and flags soft risk signals.
func CrossField(fields model.CheckFields, now time.Time) []model.ValidationError {
	var out []model.ValidationError

	amount, hasAmount := fields.Amount.Value.AsAmount()

	if hasAmount && fields.AmountWritten.Present() {
		written, ok := ParseWrittenAmount(fields.AmountWritten.Value.String())
		if ok && written > 0 && abs(amount.Cents-written) > 1 {
			out = append(out, fail(model.FieldAmount, model.CodeAmountMismatch,
				fmt.Sprintf("Amount mismatch: numeric ($%s) vs written ($%s)", amount, model.Amount(written))))
		}
	}

	if fields.CheckNumber.Present() && fields.MICR.Serial.Present() {
		number, serial := fields.CheckNumber.Value.String(), fields.MICR.Serial.Value.String()
		if number != serial {
			out = append(out, warning(model.FieldCheckNumber, model.CodeCheckNumberMICRMismatch,
				fmt.Sprintf("Check number (%s) does not match MICR serial (%s)", number, serial)))
		}
	}

	if date, ok := fields.CheckDate.Value.AsDate(); ok {
		day := today(now)
		if date.Date.Before(day.AddDate(-1, 0, 0)) {
			out = append(out, warning(model.FieldCheckDate, model.CodeOldCheckDate,
				fmt.Sprintf("Check date (%s) is more than 1 year old", date)))
		}
		if date.Date.After(day.AddDate(0, 1, 0)) {
			out = append(out, warning(model.FieldCheckDate, model.CodeFutureCheckDate,
				fmt.Sprintf("Check date (%s) is post-dated", date)))
		}
	}

	if fields.Payee.Present() {
		payee := strings.ToLower(fields.Payee.Value.String())
		for _, g := range genericPayees {
			if strings.Contains(payee, g) {
				out = append(out, warning(model.FieldPayee, model.CodeGenericPayee,
					"Payee appears to be generic: "+fields.Payee.Value.String()))
				break
			}
		}
	}

	if hasAmount {
		if amount.Cents >= roundAmountCents && amount.Cents%roundAmountCents == 0 {
			out = append(out, warning(model.FieldAmount, model.CodeRoundAmount, "Amount is unusually round: $"+amount.String()))
		}
		if amount.Cents > largeAmountCents {
			out = append(out, warning(model.FieldAmount, model.CodeLargeAmount, "Amount is very large: $"+amount.String()))
		}
	}
	return out
}

// ConfidenceSummary averages the confidences of the primary fields that
// have one. Zero when none do.
func ConfidenceSummary(fields model.CheckFields) float64 {
	primary := fields.Primary()
	var sum float64
	var n int
	for _, name := range model.PrimaryFields {
		if c := primary[name].Confidence; c > 0 {
			sum += c
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// Completeness scores how much of the check was read: 80% weight on the
// required fields and 20% on bank name, MICR and memo.
type Completeness struct {
	Score   float64  `json:"score"`
	Missing []string `json:"missing"`
}

// FieldCompleteness computes the Completeness of fields.
func FieldCompleteness(fields model.CheckFields) Completeness {
	required := map[string]bool{
		model.FieldPayee:       fields.Payee.Present(),
		model.FieldAmount:      fields.Amount.Present(),
		model.FieldCheckDate:   fields.CheckDate.Present(),
		model.FieldCheckNumber: fields.CheckNumber.Present(),
	}
	optional := []bool{fields.BankName.Present(), fields.MICR.Present(), fields.Memo.Present()}

	c := Completeness{Missing: []string{}}
	var presentRequired, presentOptional int
	for _, name := range []string{model.FieldPayee, model.FieldAmount, model.FieldCheckDate, model.FieldCheckNumber} {
		if required[name] {
			presentRequired++
		} else {
			c.Missing = append(c.Missing, name)
		}
	}
	for _, ok := range optional {
		if ok {
			presentOptional++
		}
	}
	c.Score = float64(presentRequired)/4*0.8 + float64(presentOptional)/3*0.2
	return c
}

func today(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func fail(field, code, msg string) model.ValidationError {
	return model.ValidationError{Field: field, Code: code, Message: msg, Severity: model.SeverityError}
}

func warning(field, code, msg string) model.ValidationError {
	return model.ValidationError{Field: field, Code: code, Message: msg, Severity: model.SeverityWarning}
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
