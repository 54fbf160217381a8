package vision

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/check-cli/internal/model"
)

const systemPrompt = `You read scanned bank checks and return their fields as JSON.
Copy text exactly as printed or handwritten. Never guess a value that is not visible.`

const userPrompt = `Extract the fields of this check and return ONLY a JSON object:
{
  "payee":         {"value": "name on the pay-to-the-order-of line", "confidence": 0.0},
  "amount":        {"value": 0.00, "confidence": 0.0},
  "amountWritten": {"value": "legal amount line in words", "confidence": 0.0},
  "checkDate":     {"value": "YYYY-MM-DD", "confidence": 0.0},
  "checkNumber":   {"value": "printed check number", "confidence": 0.0},
  "bankName":      {"value": "drawee bank name", "confidence": 0.0},
  "memo":          {"value": "memo line", "confidence": 0.0},
  "micr":          {"routing": "9 digits", "account": "digits", "serial": "digits"},
  "confidence":    0.0
}
Rules:
- amount is a number without currency symbols or separators.
- Use null for any field that is not clearly visible.
- Each confidence is between 0 and 1 and reflects how legible that field is.
- The top-level confidence reflects overall extraction quality.`

// defaultConfidence applies when the reply carries no confidence at all.
const defaultConfidence = 0.5

var fieldAliases = map[string][]string{
	model.FieldPayee:         {"payee", "payeeName"},
	model.FieldAmount:        {"amount", "amountNumeric"},
	model.FieldAmountWritten: {"amountWritten", "writtenAmount", "amountWords"},
	model.FieldCheckDate:     {"checkDate", "date"},
	model.FieldCheckNumber:   {"checkNumber"},
	model.FieldBankName:      {"bankName", "bank"},
	model.FieldMemo:          {"memo"},
}

// ParseResponse decodes a model reply into check fields. It tolerates code
// fences and prose around the JSON object, bare values in place of
// {value, confidence} objects, and a single overall confidence.
func ParseResponse(reply string) (*model.PartialFields, error) {
	obj, err := jsonObject(reply)
	if err != nil {
		return nil, err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(obj, &raw); err != nil {
		return nil, eris.Wrap(err, "vision: decode reply")
	}

	overall := defaultConfidence
	if c, ok := parseConfidence(raw["confidence"]); ok {
		overall = c
	}

	out := &model.PartialFields{}
	for name, keys := range fieldAliases {
		for _, k := range keys {
			msg, ok := raw[k]
			if !ok {
				continue
			}
			if f := decodeField(name, msg, overall); f != nil {
				assignField(out, name, f)
			}
			break
		}
	}
	out.MICR = decodeMICR(raw, overall)
	return out, nil
}

// jsonObject strips code fences and surrounding prose.
func jsonObject(reply string) ([]byte, error) {
	s := strings.TrimSpace(reply)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return nil, eris.New("vision: no JSON object in reply")
	}
	return []byte(s[start : end+1]), nil
}

func decodeField(name string, msg json.RawMessage, overall float64) *model.FieldExtraction {
	valueMsg := msg
	conf := overall
	if bytes.HasPrefix(bytes.TrimSpace(msg), []byte("{")) {
		var obj struct {
			Value      json.RawMessage `json:"value"`
			Confidence json.RawMessage `json:"confidence"`
		}
		if err := json.Unmarshal(msg, &obj); err != nil {
			return nil
		}
		valueMsg = obj.Value
		if c, ok := parseConfidence(obj.Confidence); ok {
			conf = c
		}
	}

	var v any
	if len(valueMsg) == 0 || json.Unmarshal(valueMsg, &v) != nil {
		return nil
	}
	value, rawText := toValue(name, v)
	if value.IsEmpty() {
		return nil
	}
	f := model.NewExtraction(value, conf, model.SourceEngineB)
	f.RawText = rawText
	return &f
}

func toValue(name string, v any) (model.Value, string) {
	switch x := v.(type) {
	case string:
		x = strings.TrimSpace(x)
		switch name {
		case model.FieldAmount:
			if a, ok := model.ParseAmount(x); ok {
				if a.Cents == 0 {
					return model.Value{}, x
				}
				return a, x
			}
		case model.FieldCheckDate:
			if d, ok := model.ParseDate(x); ok {
				return d, x
			}
		}
		return model.Text(x), x
	case float64:
		s := strconv.FormatFloat(x, 'f', -1, 64)
		if name == model.FieldAmount {
			if x == 0 || !model.ValidDollars(x) {
				return model.Value{}, s
			}
			return model.AmountFromFloat(x), s
		}
		return model.Text(s), s
	default:
		return model.Value{}, ""
	}
}

func assignField(p *model.PartialFields, name string, f *model.FieldExtraction) {
	switch name {
	case model.FieldPayee:
		p.Payee = f
	case model.FieldAmount:
		p.Amount = f
	case model.FieldAmountWritten:
		p.AmountWritten = f
	case model.FieldCheckDate:
		p.CheckDate = f
	case model.FieldCheckNumber:
		p.CheckNumber = f
	case model.FieldBankName:
		p.BankName = f
	case model.FieldMemo:
		p.Memo = f
	}
}

// decodeMICR reads either a nested "micr" object or flat micrRouting,
// micrAccount and micrSerial keys.
func decodeMICR(raw map[string]json.RawMessage, overall float64) *model.MICR {
	parts := map[string]json.RawMessage{
		"routing": raw["micrRouting"],
		"account": raw["micrAccount"],
		"serial":  raw["micrSerial"],
	}
	if nested, ok := raw["micr"]; ok {
		var obj map[string]json.RawMessage
		if json.Unmarshal(nested, &obj) == nil {
			for k := range parts {
				if v, ok := obj[k]; ok {
					parts[k] = v
				}
			}
		}
	}

	m := &model.MICR{}
	for k, msg := range parts {
		if len(msg) == 0 {
			continue
		}
		f := decodeField(model.FieldMICR, msg, overall)
		if f == nil {
			continue
		}
		switch k {
		case "routing":
			m.Routing = *f
		case "account":
			m.Account = *f
		case "serial":
			m.Serial = *f
		}
	}
	if !m.Present() {
		return nil
	}
	return m
}

// parseConfidence accepts 0.87, "0.87", 87 and "87%".
func parseConfidence(msg json.RawMessage) (float64, bool) {
	if len(msg) == 0 {
		return 0, false
	}
	var v any
	if err := json.Unmarshal(msg, &v); err != nil {
		return 0, false
	}
	var c float64
	switch x := v.(type) {
	case float64:
		c = x
	case string:
		f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(x), "%"), 64)
		if err != nil {
			return 0, false
		}
		c = f
	default:
		return 0, false
	}
	if c > 1 {
		c /= 100
	}
	return model.ClampConfidence(c), true
}
