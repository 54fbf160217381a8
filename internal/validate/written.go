package validate

import (
	"regexp"
	"strconv"
	"strings"
)

var numberWords = map[string]int64{
	"zero": 0, "one": 1, "two": 2, "three": 3, "four": 4,
	"five": 5, "six": 6, "seven": 7, "eight": 8, "nine": 9,
	"ten": 10, "eleven": 11, "twelve": 12, "thirteen": 13,
	"fourteen": 14, "fifteen": 15, "sixteen": 16, "seventeen": 17,
	"eighteen": 18, "nineteen": 19, "twenty": 20, "thirty": 30,
	"forty": 40, "fifty": 50, "sixty": 60, "seventy": 70,
	"eighty": 80, "ninety": 90,
}

var scaleWords = map[string]int64{
	"thousand": 1_000,
	"million":  1_000_000,
}

var centsFraction = regexp.MustCompile(`\b(\d{1,2})\s*/\s*100\b`)

// ParseWrittenAmount reads the legal (written-out) amount line of a check,
// e.g. "One thousand two hundred fifty and 50/100 dollars", and returns it in
// cents. ok is false when nothing numeric was recognized.
func ParseWrittenAmount(s string) (cents int64, ok bool) {
	text := strings.ToLower(s)

	var fraction int64
	if m := centsFraction.FindStringSubmatchIndex(text); m != nil {
		n, err := strconv.ParseInt(text[m[2]:m[3]], 10, 64)
		if err == nil {
			fraction = n
			ok = true
		}
		text = text[:m[0]] + " " + text[m[1]:]
	}

	words := strings.FieldsFunc(text, func(r rune) bool {
		return r < 'a' || r > 'z'
	})

	var total, current int64
	for _, w := range words {
		if v, found := numberWords[w]; found {
			current += v
			ok = true
			continue
		}
		if w == "hundred" {
			if current == 0 {
				current = 1
			}
			current *= 100
			ok = true
			continue
		}
		if scale, found := scaleWords[w]; found {
			if current == 0 {
				current = 1
			}
			total += current * scale
			current = 0
			ok = true
		}
	}

	return (total+current)*100 + fraction, ok
}
