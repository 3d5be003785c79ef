package parser

import (
	"regexp"
	"strconv"
	"strings"
)

// A number is either digit groups of three separated by a space, NBSP or
// narrow NBSP ("1 200 000"), or a plain digit run. The last group must not
// be followed by another digit; the number is in the first submatch that
// is set.
var (
	intRe   = regexp.MustCompile(`(-?\d{1,3}(?:[ \x{00a0}\x{202f}]\d{3})+)(?:\D|$)|(-?\d+)`)
	floatRe = regexp.MustCompile(`(-?\d{1,3}(?:[ \x{00a0}\x{202f}]\d{3})+(?:[.,]\d+)?)(?:\D|$)|(-?\d+(?:[.,]\d+)?)`)

	groupSeparators = strings.NewReplacer(" ", "", "\u00a0", "", "\u202f", "")
)

// ParseInt returns the first integer found in text, or nil.
// "15 267 zł/m²" gives 15267, "floor_3" gives 3.
func ParseInt(text string) *int64 {
	m := firstNumber(intRe, text)
	if m == "" {
		return nil
	}
	n, err := strconv.ParseInt(groupSeparators.Replace(m), 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

// ParseFloat returns the first decimal number found in text, accepting a
// comma or a dot as decimal separator. "68,71 m²" gives 68.71.
func ParseFloat(text string) *float64 {
	m := firstNumber(floatRe, text)
	if m == "" {
		return nil
	}
	s := strings.Replace(groupSeparators.Replace(m), ",", ".", 1)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}

func firstNumber(re *regexp.Regexp, text string) string {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	if m[1] != "" {
		return m[1]
	}
	return m[2]
}
