package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in    string
		cents int64
		ok    bool
	}{
		{"$1,250.00", 125000, true},
		{"**1250.00**", 125000, true},
		{"42", 4200, true},
		{"$ 0.07", 7, true},
		{"", 0, false},
		{"$", 0, false},
		{"twelve", 0, false},
		{"NaN", 0, false},
		{"Inf", 0, false},
		{"-inf", 0, false},
		{"Infinity", 0, false},
		{"99999999999999999999", 0, false},
		{"1e300", 0, false},
		{"-12.50", -1250, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			v, ok := ParseAmount(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, KindAmount, v.Kind)
				assert.Equal(t, tt.cents, v.Cents)
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	want := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"2024-03-05", "03/05/2024", "3/5/2024", "3/5/24", "March 5, 2024", "Mar 5 2024"} {
		v, ok := ParseDate(in)
		require.True(t, ok, in)
		assert.True(t, want.Equal(v.Date), in)
	}

	_, ok := ParseDate("not a date")
	assert.False(t, ok)
	_, ok = ParseDate("  ")
	assert.False(t, ok)
}

func TestValue_IsEmpty(t *testing.T) {
	assert.True(t, Value{}.IsEmpty())
	assert.True(t, Text("   ").IsEmpty())
	assert.False(t, Text("x").IsEmpty())
	assert.False(t, Amount(0).IsEmpty())
	assert.True(t, Value{Kind: KindDate}.IsEmpty())
}

func TestValue_String(t *testing.T) {
	assert.Equal(t, "1250.00", Amount(125000).String())
	assert.Equal(t, "-0.05", Amount(-5).String())
	assert.Equal(t, "2024-06-15", Date(time.Date(2024, 6, 15, 18, 30, 0, 0, time.UTC)).String())
	assert.Equal(t, "Jane", Text(" Jane ").String())
	assert.Equal(t, "", Value{}.String())
	assert.InDelta(t, 12.5, Amount(1250).Dollars(), 0.0001)
	assert.Zero(t, Text("12.50").Dollars())
}

func TestValue_AsAmountAndDate(t *testing.T) {
	a, ok := Text("$99.99").AsAmount()
	require.True(t, ok)
	assert.Equal(t, int64(9999), a.Cents)

	_, ok = Date(time.Now()).AsAmount()
	assert.False(t, ok)

	d, ok := Text("01/31/2024").AsDate()
	require.True(t, ok)
	assert.Equal(t, "2024-01-31", d.String())

	_, ok = Amount(1).AsDate()
	assert.False(t, ok)
}

func TestValue_JSON(t *testing.T) {
	type doc struct {
		Amount Value `json:"amount"`
		Date   Value `json:"date"`
		Payee  Value `json:"payee"`
		Empty  Value `json:"empty"`
	}
	in := doc{
		Amount: Amount(125050),
		Date:   Date(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)),
		Payee:  Text("Acme Corp"),
	}

	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount":1250.50,"date":"2024-06-01","payee":"Acme Corp","empty":""}`, string(data))

	var out doc
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, KindAmount, out.Amount.Kind)
	assert.Equal(t, int64(125050), out.Amount.Cents)
	assert.Equal(t, KindDate, out.Date.Kind)
	assert.Equal(t, "Acme Corp", out.Payee.Text)
	assert.True(t, out.Empty.IsEmpty())
}

func TestValue_UnmarshalNullAndBad(t *testing.T) {
	var v Value
	require.NoError(t, json.Unmarshal([]byte(`null`), &v))
	assert.True(t, v.IsEmpty())

	assert.Error(t, json.Unmarshal([]byte(`true`), &v))
	assert.ErrorContains(t, json.Unmarshal([]byte(`1e300`), &v), "out of range")
}

func TestPartialFields_CountAndGet(t *testing.T) {
	var nilFields *PartialFields
	assert.Zero(t, nilFields.Count())
	assert.Nil(t, nilFields.Get(FieldPayee))

	payee := NewExtraction(Text("Jane"), 0.9, SourceEngineA)
	blank := NewExtraction(Text(""), 0.9, SourceEngineA)
	p := &PartialFields{Payee: &payee, Memo: &blank, MICR: &MICR{Routing: payee}}
	assert.Equal(t, 1, p.Count())
	assert.Same(t, &payee, p.Get(FieldPayee))
	assert.Nil(t, p.Get("unknown"))
}

func TestNewExtraction_Clamps(t *testing.T) {
	assert.Equal(t, 1.0, NewExtraction(Text("a"), 1.7, SourceEngineA).Confidence)
	assert.Equal(t, 0.0, NewExtraction(Text("a"), -0.2, SourceEngineA).Confidence)
}

func TestReviewStatus_CheckStatus(t *testing.T) {
	assert.Equal(t, CheckStatusApproved, ReviewApproved.CheckStatus())
	assert.Equal(t, CheckStatusReviewSuggested, ReviewSuggested.CheckStatus())
	assert.Equal(t, CheckStatusReviewRequired, ReviewRequired.CheckStatus())
}

func TestStageDefinitions(t *testing.T) {
	defs := StageDefinitions()
	require.Len(t, defs, 8)
	assert.Equal(t, StageIngestion, defs[0].Name)
	assert.Equal(t, StageComplete, defs[7].Name)
	for i, d := range defs {
		assert.Equal(t, i+1, d.Order)
	}
	assert.True(t, StageStatusSkipped.Terminal())
	assert.False(t, StageStatusProcessing.Terminal())
}
