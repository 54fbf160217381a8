package ocr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMICR(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		routing   string
		account   string
		serial    string
		routeConf float64
	}{
		{
			name:      "serial first",
			text:      "⑈001042⑈ ⑆021000021⑆ 123456789⑈",
			routing:   "021000021",
			account:   "123456789",
			serial:    "1042",
			routeConf: 0.95,
		},
		{
			name:      "serial last",
			text:      "A021000021A 0004567890C 0153",
			routing:   "021000021",
			account:   "0004567890",
			serial:    "153",
			routeConf: 0.95,
		},
		{
			name:      "dashed account between symbols",
			text:      "⑆011000015⑆ 4455-66 77⑈ 00981",
			routing:   "011000015",
			account:   "4455667",
			serial:    "981",
			routeConf: 0.95,
		},
		{
			name:      "symbols with bad checksum",
			text:      "⑆123456789⑆ 55512345⑈",
			routing:   "123456789",
			account:   "55512345",
			routeConf: 0.70,
		},
		{
			name:      "invalid checksum",
			text:      "123456789 55512345",
			routing:   "123456789",
			account:   "55512345",
			routeConf: 0.70,
		},
		{
			name:      "prefers valid routing",
			text:      "987654321 011000015 44445555",
			routing:   "011000015",
			account:   "44445555",
			serial:    "987654321",
			routeConf: 0.95,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := ParseMICR(tt.text)
			require.NotNil(t, m)
			assert.Equal(t, tt.routing, m.Routing.Value.Text)
			assert.InDelta(t, tt.routeConf, m.Routing.Confidence, 0.001)
			assert.Equal(t, tt.account, m.Account.Value.Text)
			assert.Equal(t, tt.serial, m.Serial.Value.Text)
			if tt.account != "" {
				assert.InDelta(t, 0.90, m.Account.Confidence, 0.001)
			}
			if tt.serial != "" {
				assert.InDelta(t, 0.85, m.Serial.Confidence, 0.001)
			}
		})
	}
}

func TestParseMICR_UsesLastQualifyingLine(t *testing.T) {
	text := "Ref 011000015\nsome text\n⑆021000021⑆ 987654⑈\nfooter"
	m := ParseMICR(text)
	require.NotNil(t, m)
	assert.Equal(t, "021000021", m.Routing.Value.Text)
	assert.Equal(t, "⑆021000021⑆ 987654⑈", m.Raw)
}

func TestParseMICR_None(t *testing.T) {
	assert.Nil(t, ParseMICR(""))
	assert.Nil(t, ParseMICR("no numbers\n12345678\n1234567890"))
}

func TestParseMICR_DelimitersWithoutNineDigits(t *testing.T) {
	// Falls back to digit groups when the transit field is unreadable.
	m := ParseMICR("⑆0210⑆ 021000021 98765432")
	require.NotNil(t, m)
	assert.Equal(t, "021000021", m.Routing.Value.Text)
	assert.Equal(t, "98765432", m.Account.Value.Text)
}

func TestTrimSerial(t *testing.T) {
	assert.Equal(t, "42", trimSerial("00042"))
	assert.Equal(t, "0", trimSerial("0000"))
}
