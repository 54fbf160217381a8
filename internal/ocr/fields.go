package ocr

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/sells-group/check-cli/internal/model"
)

// Base confidences per field heuristic.
const (
	confPayee         = 0.80
	confAmount        = 0.85
	confDate          = 0.85
	confCheckNumber   = 0.80
	confCheckNumGuess = 0.65
	confBankName      = 0.75
	confAmountWritten = 0.75
	confMemo          = 0.70
)

var (
	payToRe       = regexp.MustCompile(`(?i)pay\s+to\s+the\s+order\s+of[\s:.\-]*(.*)$`)
	amountRe      = regexp.MustCompile(`\$\s*\**\s*(\d{1,3}(?:,\d{3})+(?:\.\d{2})?|\d+(?:\.\d{2})?)`)
	checkNumberRe = regexp.MustCompile(`(?i)\b(?:check\s*(?:no\.?|#)?|no\.?)\s*#?\s*(\d{3,6})\b`)
	trailingNumRe = regexp.MustCompile(`^\d{3,6}$`)
	writtenRe     = regexp.MustCompile(`(?i)(dollars|/\s*100)`)
	memoRe        = regexp.MustCompile(`(?i)^(?:memo|for)\b\s*[:\-]?\s*(.+)$`)

	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{2,4}\b`),
		regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`),
		regexp.MustCompile(`(?i)\b(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+\d{1,2},?\s+\d{4}\b`),
	}

	bankKeywords = []string{"bank", "credit union", "federal", "savings", "trust", "chase", "wells fargo", "bofa"}
)

// ExtractFields reads check fields out of recognized page text. Fields the
// heuristics cannot find are left nil.
func ExtractFields(page *Page) *model.PartialFields {
	out := &model.PartialFields{}
	if page == nil {
		return out
	}
	lines := splitLines(page.Text)
	micrLine := ""
	if m := ParseMICR(page.Text); m != nil {
		out.MICR = m
		micrLine = m.Raw
	}

	field := func(v model.Value, raw string, base float64) *model.FieldExtraction {
		if v.IsEmpty() {
			return nil
		}
		f := model.NewExtraction(v, fieldConfidence(page, raw, base), model.SourceEngineA)
		f.RawText = raw
		f.BoundingBox = locate(page, raw)
		return &f
	}

	if raw := findPayee(lines); raw != "" {
		out.Payee = field(model.Text(raw), raw, confPayee)
	}
	if raw := firstMatch(amountRe, lines, 1); raw != "" {
		if v, ok := model.ParseAmount(raw); ok {
			out.Amount = field(v, raw, confAmount)
		}
	}
	if raw := findDate(lines); raw != "" {
		v, ok := model.ParseDate(raw)
		if !ok {
			v = model.Text(raw)
		}
		out.CheckDate = field(v, raw, confDate)
	}
	if raw := firstMatch(checkNumberRe, lines, 1); raw != "" {
		out.CheckNumber = field(model.Text(raw), raw, confCheckNumber)
	} else if raw := guessCheckNumber(lines); raw != "" {
		out.CheckNumber = field(model.Text(raw), raw, confCheckNumGuess)
	}
	if raw := findBankName(lines, micrLine); raw != "" {
		out.BankName = field(model.Text(raw), raw, confBankName)
	}
	if raw := findWrittenAmount(lines); raw != "" {
		out.AmountWritten = field(model.Text(raw), raw, confAmountWritten)
	}
	if raw := firstMatch(memoRe, lines, 1); raw != "" {
		out.Memo = field(model.Text(raw), raw, confMemo)
	}
	return out
}

func splitLines(text string) []string {
	var out []string
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

func firstMatch(re *regexp.Regexp, lines []string, group int) string {
	for _, l := range lines {
		if m := re.FindStringSubmatch(l); m != nil {
			return strings.TrimSpace(m[group])
		}
	}
	return ""
}

// findPayee prefers the name after "pay to the order of", on the same line
// or the next. Otherwise it falls back to the first line that reads like a
// name.
func findPayee(lines []string) string {
	for i, l := range lines {
		m := payToRe.FindStringSubmatch(l)
		if m == nil {
			continue
		}
		name := cleanPayee(m[1])
		if name == "" && i+1 < len(lines) {
			name = cleanPayee(lines[i+1])
		}
		if name != "" {
			return name
		}
	}
	for _, l := range lines {
		if len(l) > 5 && !unicode.IsDigit([]rune(l)[0]) {
			return l
		}
	}
	return ""
}

func cleanPayee(s string) string {
	if i := strings.Index(s, "$"); i >= 0 {
		s = s[:i]
	}
	return strings.Trim(s, " \t*-_:.")
}

func findDate(lines []string) string {
	for _, re := range datePatterns {
		for _, l := range lines {
			if m := re.FindString(l); m != "" {
				return m
			}
		}
	}
	return ""
}

// guessCheckNumber looks for a bare 3-6 digit number ending one of the
// first three lines, where printed check numbers usually sit.
func guessCheckNumber(lines []string) string {
	for i := 0; i < len(lines) && i < 3; i++ {
		l := lines[i]
		if strings.ContainsAny(l, "$/") {
			continue
		}
		tokens := strings.Fields(l)
		if last := tokens[len(tokens)-1]; trailingNumRe.MatchString(last) {
			return last
		}
	}
	return ""
}

func findBankName(lines []string, micrLine string) string {
	for _, l := range lines {
		if l == micrLine || payToRe.MatchString(l) {
			continue
		}
		lower := strings.ToLower(l)
		for _, kw := range bankKeywords {
			if strings.Contains(lower, kw) {
				return l
			}
		}
	}
	return ""
}

// findWrittenAmount returns the legal amount line with its trailing
// "dollars" and filler stripped.
func findWrittenAmount(lines []string) string {
	for _, l := range lines {
		if strings.Contains(l, "$") || !writtenRe.MatchString(l) {
			continue
		}
		lower := strings.ToLower(l)
		if i := strings.LastIndex(lower, "dollars"); i >= 0 {
			l = l[:i]
		}
		if s := strings.Trim(l, " \t*-_~="); s != "" {
			return s
		}
	}
	return ""
}
