package ocr

import (
	"regexp"
	"strings"

	"github.com/sells-group/check-cli/internal/model"
	"github.com/sells-group/check-cli/internal/validate"
)

var digitGroup = regexp.MustCompile(`\d+`)

// E-13B delimiters as rendered by recognizers that emit the OCR symbols.
const (
	transitSymbol = "⑆"
	onUsSymbol    = "⑈"
)

// ParseMICR reads routing, account and serial numbers from the magnetic ink
// line. The line is the last one holding a nine-digit group; the routing
// number is the first nine-digit group with a valid checksum, or the first
// nine-digit group when none validates. Lines carrying the transit and on-us
// symbols are split on them instead, which keeps spaced or dashed account
// numbers whole. Returns nil when no line qualifies.
func ParseMICR(text string) *model.MICR {
	lines := strings.Split(text, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if m := parseMICRLine(lines[i]); m != nil {
			return m
		}
	}
	return nil
}

func parseMICRLine(line string) *model.MICR {
	if m := parseDelimited(line); m != nil {
		return m
	}
	groups := digitGroup.FindAllString(line, -1)

	routingIdx := -1
	for i, g := range groups {
		if len(g) != 9 {
			continue
		}
		if validate.ValidRoutingNumber(g) {
			routingIdx = i
			break
		}
		if routingIdx < 0 {
			routingIdx = i
		}
	}
	if routingIdx < 0 {
		return nil
	}

	routing := groups[routingIdx]
	conf := 0.70
	if validate.ValidRoutingNumber(routing) {
		conf = 0.95
	}
	m := &model.MICR{
		Routing: micrField(routing, conf),
		Raw:     strings.TrimSpace(line),
	}

	if routingIdx > 0 {
		if g := groups[routingIdx-1]; len(g) >= 3 && len(g) <= 10 {
			m.Serial = micrField(trimSerial(g), 0.85)
		}
	}
	rest := groups[routingIdx+1:]
	if len(rest) > 0 && len(rest[0]) >= 4 && len(rest[0]) <= 17 {
		m.Account = micrField(rest[0], 0.90)
		rest = rest[1:]
	}
	if !m.Serial.Present() && len(rest) > 0 && len(rest[0]) >= 3 && len(rest[0]) <= 10 {
		m.Serial = micrField(trimSerial(rest[0]), 0.85)
	}
	return m
}

// parseDelimited reads a line of the form
// [⑈serial⑈] ⑆routing⑆ account⑈ [serial]. It returns nil unless a pair of
// transit symbols encloses nine digits.
func parseDelimited(line string) *model.MICR {
	before, rest, ok := strings.Cut(line, transitSymbol)
	if !ok {
		return nil
	}
	transit, after, ok := strings.Cut(rest, transitSymbol)
	if !ok {
		return nil
	}
	routing := digitsOnly(transit)
	if len(routing) != 9 {
		return nil
	}

	conf := 0.70
	if validate.ValidRoutingNumber(routing) {
		conf = 0.95
	}
	m := &model.MICR{
		Routing: micrField(routing, conf),
		Raw:     strings.TrimSpace(line),
	}

	onUs, tail, hasOnUs := strings.Cut(after, onUsSymbol)
	if !hasOnUs {
		groups := digitGroup.FindAllString(after, -1)
		if len(groups) == 0 {
			return m
		}
		onUs, tail = groups[0], strings.Join(groups[1:], " ")
	}
	if acct := digitsOnly(onUs); len(acct) >= 4 && len(acct) <= 17 {
		m.Account = micrField(acct, 0.90)
	}

	if serial := digitsOnly(before); len(serial) >= 3 && len(serial) <= 10 {
		m.Serial = micrField(trimSerial(serial), 0.85)
	} else if g := digitGroup.FindString(tail); len(g) >= 3 && len(g) <= 10 {
		m.Serial = micrField(trimSerial(g), 0.85)
	}
	return m
}

func digitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

func micrField(digits string, conf float64) model.FieldExtraction {
	f := model.NewExtraction(model.Text(digits), conf, model.SourceEngineA)
	f.RawText = digits
	return f
}

func trimSerial(s string) string {
	t := strings.TrimLeft(s, "0")
	if t == "" {
		return "0"
	}
	return t
}
