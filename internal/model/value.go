package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// ValueKind tags the shape held by a Value.
type ValueKind string

const (
	KindNone   ValueKind = ""
	KindString ValueKind = "string"
	KindAmount ValueKind = "amount"
	KindDate   ValueKind = "date"
)

// DateLayout is the canonical ISO date format used for check dates.
const DateLayout = "2006-01-02"

// Value is the closed set of field value shapes an extraction can carry:
// free text, a currency amount in cents, or a calendar date.
type Value struct {
	Kind  ValueKind
	Text  string
	Cents int64
	Date  time.Time
}

// Text creates a string value. Surrounding whitespace is trimmed.
func Text(s string) Value {
	s = strings.TrimSpace(s)
	if s == "" {
		return Value{}
	}
	return Value{Kind: KindString, Text: s}
}

// Amount creates an amount value from cents.
func Amount(cents int64) Value {
	return Value{Kind: KindAmount, Cents: cents}
}

// MaxDollars bounds amounts so the cent count stays well inside int64.
const MaxDollars = 1e15

// ValidDollars reports whether dollars is a finite figure within MaxDollars.
func ValidDollars(dollars float64) bool {
	return !math.IsNaN(dollars) && !math.IsInf(dollars, 0) && math.Abs(dollars) <= MaxDollars
}

// AmountFromFloat creates an amount value from a dollar figure, rounded to the cent.
func AmountFromFloat(dollars float64) Value {
	if dollars < 0 {
		return Amount(int64(dollars*100 - 0.5))
	}
	return Amount(int64(dollars*100 + 0.5))
}

// Date creates a date value truncated to midnight UTC.
func Date(t time.Time) Value {
	y, m, d := t.Date()
	return Value{Kind: KindDate, Date: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// IsEmpty reports whether the value carries no data. An explicit zero
// amount is not empty.
func (v Value) IsEmpty() bool {
	switch v.Kind {
	case KindNone:
		return true
	case KindString:
		return strings.TrimSpace(v.Text) == ""
	case KindDate:
		return v.Date.IsZero()
	default:
		return false
	}
}

// Dollars returns the amount in dollars. Zero for non-amount values.
func (v Value) Dollars() float64 {
	if v.Kind != KindAmount {
		return 0
	}
	return float64(v.Cents) / 100
}

// String renders the value in its canonical text form.
func (v Value) String() string {
	switch v.Kind {
	case KindString:
		return v.Text
	case KindAmount:
		sign := ""
		c := v.Cents
		if c < 0 {
			sign = "-"
			c = -c
		}
		return fmt.Sprintf("%s%d.%02d", sign, c/100, c%100)
	case KindDate:
		return v.Date.Format(DateLayout)
	default:
		return ""
	}
}

// AsAmount returns the value as an amount, parsing text when needed.
func (v Value) AsAmount() (Value, bool) {
	switch v.Kind {
	case KindAmount:
		return v, true
	case KindString:
		return ParseAmount(v.Text)
	default:
		return Value{}, false
	}
}

// AsDate returns the value as a date, parsing text when needed.
func (v Value) AsDate() (Value, bool) {
	switch v.Kind {
	case KindDate:
		return v, true
	case KindString:
		return ParseDate(v.Text)
	default:
		return Value{}, false
	}
}

// MarshalJSON renders amounts as numbers and everything else as strings.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindAmount:
		return []byte(v.String()), nil
	case KindNone:
		return []byte(`""`), nil
	default:
		return json.Marshal(v.String())
	}
}

// UnmarshalJSON accepts numbers (amounts), ISO dates and plain strings.
func (v *Value) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" || raw == `""` {
		*v = Value{}
		return nil
	}
	if !strings.HasPrefix(raw, `"`) {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return eris.Wrapf(err, "model: decode value %s", raw)
		}
		if !ValidDollars(f) {
			return eris.Errorf("model: amount %s out of range", raw)
		}
		*v = AmountFromFloat(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return eris.Wrap(err, "model: decode value")
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		*v = Date(t)
		return nil
	}
	*v = Text(s)
	return nil
}

// ParseAmount parses a printed currency amount such as "$1,250.00" or
// "**1250.00**". Returns false when no number can be read.
func ParseAmount(s string) (Value, bool) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '$', ',', ' ', '*', '\t':
			return -1
		}
		return r
	}, s)
	if cleaned == "" {
		return Value{}, false
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || !ValidDollars(f) {
		return Value{}, false
	}
	return AmountFromFloat(f), true
}

var dateLayouts = []string{
	DateLayout,
	"01/02/2006",
	"1/2/2006",
	"01/02/06",
	"1/2/06",
	"01-02-2006",
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"Jan. 2, 2006",
}

// ParseDate parses the date formats commonly printed or written on checks.
func ParseDate(s string) (Value, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Value{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Date(t), true
		}
	}
	return Value{}, false
}
