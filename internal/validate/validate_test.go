package validate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/check-cli/internal/model"
	"github.com/sells-group/check-cli/internal/policy"
)

var fixedNow = time.Date(2024, 6, 15, 14, 30, 0, 0, time.UTC)

func field(v model.Value, conf float64) model.FieldExtraction {
	return model.NewExtraction(v, conf, model.SourceHybrid)
}

func goodFields() model.CheckFields {
	return model.CheckFields{
		Payee:       field(model.Text("Jane Doe"), 0.95),
		Amount:      field(model.Amount(125000), 1.0),
		CheckDate:   field(model.Date(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)), 0.93),
		CheckNumber: field(model.Text("1001"), 0.96),
		BankName:    field(model.Text("Chase"), 0.92),
		MICR: model.MICR{
			Routing: field(model.Text("021000021"), 0.95),
			Account: field(model.Text("123456789"), 0.9),
			Serial:  field(model.Text("1001"), 0.85),
		},
	}
}

func newValidator(dups DuplicateFinder) *Validator {
	return New(dups, policy.DefaultThresholds(), WithClock(func() time.Time { return fixedNow }))
}

func codes(errs []model.ValidationError) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Code)
	}
	return out
}

func TestValidRoutingNumber(t *testing.T) {
	assert.True(t, ValidRoutingNumber("021000021"))
	assert.False(t, ValidRoutingNumber("021000022"))
	assert.True(t, ValidRoutingNumber("011000015"))
	assert.False(t, ValidRoutingNumber("02100002"))
	assert.False(t, ValidRoutingNumber("02100002a"))
	assert.False(t, ValidRoutingNumber(""))
}

func TestParseWrittenAmount(t *testing.T) {
	tests := []struct {
		in    string
		cents int64
		ok    bool
	}{
		{"One thousand two hundred fifty and 00/100 dollars", 125000, true},
		{"Twenty-five dollars and 50/100", 2550, true},
		{"one hundred", 10000, true},
		{"hundred", 10000, true},
		{"Three million four hundred thousand", 340000000, true},
		{"Ninety-nine and 99/100", 9999, true},
		{"no words here", 0, false},
		{"75/100", 75, true},
		{"One hundred fifty and 150/100", 15000, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			cents, ok := ParseWrittenAmount(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.cents, cents)
		})
	}
}

func TestValidate_CleanCheckIsApproved(t *testing.T) {
	dups := new(mockDuplicateFinder)
	dups.On("FindDuplicates", mock.Anything, "tenant-1", "1001", int64(125000), time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), "check-1").
		Return([]string{}, nil)

	res := newValidator(dups).Validate(context.Background(), "tenant-1", "check-1", goodFields())

	assert.True(t, res.IsValid)
	assert.Empty(t, res.Errors)
	assert.Empty(t, res.Warnings)
	assert.InDelta(t, (0.95+1.0+0.93+0.96+0.92)/5, res.ConfidenceSummary, 1e-9)
	assert.Equal(t, model.ReviewApproved, res.RecommendedStatus)
	dups.AssertExpectations(t)
}

func TestValidate_MissingPayee(t *testing.T) {
	fields := goodFields()
	fields.Payee = model.FieldExtraction{}

	res := newValidator(nil).Validate(context.Background(), "t", "c", fields)

	require.Len(t, res.Errors, 1)
	assert.Equal(t, model.CodeRequiredFieldMissing, res.Errors[0].Code)
	assert.Equal(t, model.FieldPayee, res.Errors[0].Field)
	assert.Equal(t, model.SeverityError, res.Errors[0].Severity)
	assert.False(t, res.IsValid)
	assert.Equal(t, model.ReviewRequired, res.RecommendedStatus)
}

func TestValidate_OneWarningSuggestsReview(t *testing.T) {
	fields := goodFields()
	fields.MICR.Serial = field(model.Text("1002"), 0.85)

	res := newValidator(nil).Validate(context.Background(), "t", "c", fields)

	assert.Empty(t, res.Errors)
	assert.Equal(t, []string{model.CodeCheckNumberMICRMismatch}, codes(res.Warnings))
	assert.Equal(t, model.ReviewSuggested, res.RecommendedStatus)
}

func TestValidate_DuplicateIsWarning(t *testing.T) {
	dups := new(mockDuplicateFinder)
	dups.On("FindDuplicates", mock.Anything, "t", "1001", int64(125000), mock.Anything, "c").
		Return([]string{"other-check"}, nil)

	res := newValidator(dups).Validate(context.Background(), "t", "c", goodFields())

	assert.True(t, res.IsValid)
	assert.Equal(t, []string{model.CodeDuplicateCheck}, codes(res.Warnings))
	assert.Equal(t, model.FieldCheckNumber, res.Warnings[0].Field)
}

func TestValidate_DuplicateLookupErrorIgnored(t *testing.T) {
	dups := new(mockDuplicateFinder)
	dups.On("FindDuplicates", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("db down"))

	res := newValidator(dups).Validate(context.Background(), "t", "c", goodFields())

	assert.Empty(t, res.Warnings)
	assert.Equal(t, model.ReviewApproved, res.RecommendedStatus)
}

func TestValidate_DuplicateSkippedWithoutKeys(t *testing.T) {
	dups := new(mockDuplicateFinder)
	fields := goodFields()
	fields.CheckNumber = model.FieldExtraction{}

	newValidator(dups).Validate(context.Background(), "t", "c", fields)

	dups.AssertNotCalled(t, "FindDuplicates", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestFormats(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.CheckFields)
		want   []string
	}{
		{"zero amount", func(f *model.CheckFields) { f.Amount = field(model.Amount(0), 0.9) }, []string{model.CodeInvalidAmount}},
		{"too large", func(f *model.CheckFields) { f.Amount = field(model.Amount(100_000_001), 0.9) }, []string{model.CodeInvalidAmount}},
		{"upper bound ok", func(f *model.CheckFields) { f.Amount = field(model.Amount(100_000_000), 0.9) }, nil},
		{"unreadable amount", func(f *model.CheckFields) { f.Amount = field(model.Text("twelve"), 0.9) }, []string{model.CodeInvalidAmount}},
		{"bad date", func(f *model.CheckFields) { f.CheckDate = field(model.Text("someday"), 0.9) }, []string{model.CodeInvalidDate}},
		{"future date", func(f *model.CheckFields) { f.CheckDate = field(model.Text("06/16/2024"), 0.9) }, []string{model.CodeFutureDate}},
		{"today is fine", func(f *model.CheckFields) { f.CheckDate = field(model.Text("2024-06-15"), 0.9) }, nil},
		{"bad routing", func(f *model.CheckFields) { f.MICR.Routing = field(model.Text("021000022"), 0.9) }, []string{model.CodeInvalidRouting}},
		{"no routing", func(f *model.CheckFields) { f.MICR.Routing = model.FieldExtraction{} }, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := goodFields()
			tt.mutate(&fields)
			got := Formats(fields, fixedNow)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, codes(got))
		})
	}
}

func TestFormats_RoutingFieldName(t *testing.T) {
	fields := goodFields()
	fields.MICR.Routing = field(model.Text("021000022"), 0.9)
	got := Formats(fields, fixedNow)
	require.Len(t, got, 1)
	assert.Equal(t, model.FieldMICRRouting, got[0].Field)
	assert.Equal(t, model.SeverityError, got[0].Severity)
}

func TestCrossField(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.CheckFields)
		want   []string
	}{
		{"written matches", func(f *model.CheckFields) {
			f.AmountWritten = field(model.Text("One thousand two hundred fifty and 00/100"), 0.8)
		}, nil},
		{"written mismatch", func(f *model.CheckFields) {
			f.AmountWritten = field(model.Text("Two hundred fifty and 00/100"), 0.8)
		}, []string{model.CodeAmountMismatch}},
		{"written unreadable", func(f *model.CheckFields) {
			f.AmountWritten = field(model.Text("illegible"), 0.3)
		}, nil},
		{"serial mismatch", func(f *model.CheckFields) {
			f.MICR.Serial = field(model.Text("0001001"), 0.8)
		}, []string{model.CodeCheckNumberMICRMismatch}},
		{"old date", func(f *model.CheckFields) {
			f.CheckDate = field(model.Text("2023-06-14"), 0.9)
		}, []string{model.CodeOldCheckDate}},
		{"exactly one year", func(f *model.CheckFields) {
			f.CheckDate = field(model.Text("2023-06-15"), 0.9)
		}, nil},
		{"post-dated", func(f *model.CheckFields) {
			f.CheckDate = field(model.Text("2024-07-16"), 0.9)
		}, []string{model.CodeFutureCheckDate}},
		{"generic payee", func(f *model.CheckFields) {
			f.Payee = field(model.Text("CASH"), 0.9)
		}, []string{model.CodeGenericPayee}},
		{"round amount", func(f *model.CheckFields) {
			f.Amount = field(model.Amount(500_000), 0.9)
		}, []string{model.CodeRoundAmount}},
		{"large amount", func(f *model.CheckFields) {
			f.Amount = field(model.Amount(15_000_050), 0.9)
		}, []string{model.CodeLargeAmount}},
		{"large and round", func(f *model.CheckFields) {
			f.Amount = field(model.Amount(20_000_000), 0.9)
		}, []string{model.CodeRoundAmount, model.CodeLargeAmount}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := goodFields()
			tt.mutate(&fields)
			got := CrossField(fields, fixedNow)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, codes(got))
		})
	}
}

func TestConfidenceSummary_IgnoresAbsentFields(t *testing.T) {
	fields := model.CheckFields{
		Payee:  field(model.Text("Jane"), 0.8),
		Amount: field(model.Amount(100), 0.6),
	}
	assert.InDelta(t, 0.7, ConfidenceSummary(fields), 1e-9)
	assert.Zero(t, ConfidenceSummary(model.CheckFields{}))
}

func TestFieldCompleteness(t *testing.T) {
	c := FieldCompleteness(goodFields())
	assert.InDelta(t, 0.8+0.2*2.0/3.0, c.Score, 1e-9)
	assert.Empty(t, c.Missing)

	c = FieldCompleteness(model.CheckFields{Payee: field(model.Text("Jane"), 0.8)})
	assert.InDelta(t, 0.2, c.Score, 1e-9)
	assert.Equal(t, []string{model.FieldAmount, model.FieldCheckDate, model.FieldCheckNumber}, c.Missing)
}
