package data

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var spaceRun = regexp.MustCompile(`[ \t\f\v]+`)

// FoldDiacritics strips combining marks: "NÚMERO" becomes "NUMERO" and "Ñ" becomes
// "N", the same transliteration MRZ lines use.
func FoldDiacritics(s string) string {
	// transform.Chain keeps state, so build one per call
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Lines folds diacritics, collapses blanks and trims every line of OCR output.
// Case is preserved and blank lines are dropped.
func Lines(text string) []string {
	text = FoldDiacritics(text)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var lines []string
	for _, l := range strings.Split(text, "\n") {
		l = strings.TrimSpace(spaceRun.ReplaceAllString(l, " "))
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// Normalize is Lines uppercased and joined.
func Normalize(text string) string {
	return strings.ToUpper(strings.Join(Lines(text), "\n"))
}

// ocrText is OCR output prepared once for every extraction pass.
type ocrText struct {
	raw    []string // folded, original case
	upper  []string
	plain  []string // upper lines that are not MRZ-shaped
	joined string   // upper lines joined with \n
}

func parseText(text string) ocrText {
	raw := Lines(text)
	t := ocrText{raw: raw, upper: make([]string, len(raw))}
	for i, l := range raw {
		t.upper[i] = strings.ToUpper(l)
		if !isMRZLine(t.upper[i]) {
			t.plain = append(t.plain, t.upper[i])
		}
	}
	t.joined = strings.Join(t.upper, "\n")
	return t
}

func (t ocrText) empty() bool {
	return len(t.upper) == 0
}

// repairDigits undoes the usual OCR letter-for-digit confusions.
func repairDigits(s string) string {
	return digitRepairer.Replace(s)
}

var digitRepairer = strings.NewReplacer(
	"O", "0",
	"I", "1",
	"L", "1",
	"S", "5",
	"B", "8",
	"Z", "2",
	"G", "6",
)

// stripSeparators drops the spaces and hyphens OCR inserts inside numbers.
func stripSeparators(s string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' || r == '.' {
			return -1
		}
		return r
	}, s)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func hasDigit(s string) bool {
	return strings.IndexFunc(s, unicode.IsDigit) >= 0
}
