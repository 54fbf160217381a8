// Package consensus merges the field sets returned by the two extraction
// engines into one record, classifying how the engines agreed on each field.
package consensus

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/check-cli/internal/model"
)

const (
	// BoostFactor scales the winning confidence when both engines agree.
	BoostFactor = 1.1
	// PenaltyFactor scales the winning confidence when the engines disagree.
	PenaltyFactor = 0.85
)

// Agreement weights used by Score.
const (
	weightFull     = 1.0
	weightPartial  = 0.7
	weightConflict = 0.3
)

// coreFields are always compared, even when neither engine returned them.
var coreFields = []string{
	model.FieldPayee,
	model.FieldAmount,
	model.FieldCheckDate,
	model.FieldCheckNumber,
	model.FieldBankName,
}

// optionalFields are compared only when at least one engine returned them.
var optionalFields = []string{
	model.FieldAmountWritten,
	model.FieldMemo,
}

// Field merges two readings of the same field. Either side may be nil or
// empty, which counts as absent. When confidences tie, engine A wins.
func Field(a, b *model.FieldExtraction) model.ConsensusResult {
	hasA := a != nil && a.Present()
	hasB := b != nil && b.Present()

	switch {
	case !hasA && !hasB:
		return model.ConsensusResult{
			Field:     model.FieldExtraction{Source: model.SourceHybrid},
			Agreement: model.AgreementConflict,
			Sources:   []model.Source{},
		}
	case hasA && !hasB:
		return single(*a, model.SourceEngineA)
	case !hasA && hasB:
		return single(*b, model.SourceEngineB)
	}

	winner := *a
	if b.Confidence > a.Confidence {
		winner = *b
	}
	winner.Source = model.SourceHybrid

	agreement := model.AgreementConflict
	factor := PenaltyFactor
	if Equivalent(a.Value, b.Value) {
		agreement = model.AgreementFull
		factor = BoostFactor
	}
	winner.Confidence = model.ClampConfidence(winner.Confidence * factor)

	return model.ConsensusResult{
		Field:     winner,
		Agreement: agreement,
		Sources:   []model.Source{model.SourceEngineA, model.SourceEngineB},
	}
}

func single(f model.FieldExtraction, src model.Source) model.ConsensusResult {
	f.Source = src
	f.Confidence = model.ClampConfidence(f.Confidence)
	return model.ConsensusResult{
		Field:     f,
		Agreement: model.AgreementPartial,
		Sources:   []model.Source{src},
	}
}

// Build merges two partial field sets. The MICR group is taken from engine A
// verbatim and is not part of the report.
func Build(a, b *model.PartialFields) (model.CheckFields, model.ConsensusReport) {
	var fields model.CheckFields
	report := make(model.ConsensusReport, len(coreFields)+len(optionalFields))

	for _, name := range coreFields {
		res := Field(a.Get(name), b.Get(name))
		fields.Set(name, res.Field)
		report[name] = res
	}
	for _, name := range optionalFields {
		fa, fb := a.Get(name), b.Get(name)
		if (fa == nil || !fa.Present()) && (fb == nil || !fb.Present()) {
			continue
		}
		res := Field(fa, fb)
		fields.Set(name, res.Field)
		report[name] = res
	}

	if a != nil && a.MICR != nil {
		fields.MICR = *a.MICR
	}
	return fields, report
}

// Score averages the agreement weights across every compared field
// (full 1.0, partial 0.7, conflict 0.3). An empty report scores 0.
func Score(report model.ConsensusReport) float64 {
	if len(report) == 0 {
		return 0
	}
	var full, partial, conflict int
	for _, res := range report {
		switch res.Agreement {
		case model.AgreementFull:
			full++
		case model.AgreementPartial:
			partial++
		default:
			conflict++
		}
	}
	total := float64(full)*weightFull + float64(partial)*weightPartial + float64(conflict)*weightConflict
	return total / float64(len(report))
}

// Equivalent reports whether two values name the same thing. Amounts compare
// by cents and dates by calendar day when both sides can be read that way;
// anything else compares by normalized text.
func Equivalent(x, y model.Value) bool {
	if x.Kind == model.KindAmount || y.Kind == model.KindAmount {
		ax, okx := x.AsAmount()
		ay, oky := y.AsAmount()
		if okx && oky {
			return ax.Cents == ay.Cents
		}
	}
	if x.Kind == model.KindDate || y.Kind == model.KindDate {
		dx, okx := x.AsDate()
		dy, oky := y.AsDate()
		if okx && oky {
			return dx.Date.Equal(dy.Date)
		}
	}
	return Normalize(x.String()) == Normalize(y.String())
}

// Normalize folds s for comparison: NFKC, lower-cased, trimmed, with
// punctuation and whitespace removed and leading zeros stripped.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(norm.NFKC.String(s)))
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
	return strings.TrimLeft(s, "0")
}
