package data

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/guillermolam/alberguecarcalejo-sub000/internal/checksum"
	"github.com/guillermolam/alberguecarcalejo-sub000/internal/domain"
)

// Document number patterns, most specific first. Labeled patterns tolerate OCR
// confusions in the numeric body; bare ones require real digits.
var numberPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\bDNI\b\s*(?:N[O0º°]\.?)?\s*[:.]?\s*([XYZ]?[0-9OILSBZG]{7,8}\s?-?\s?[A-Z])\b`),
	regexp.MustCompile(`\bNIF\b\s*[:.]?\s*([XYZ]?[0-9OILSBZG]{7,8}\s?-?\s?[A-Z])\b`),
	regexp.MustCompile(`\bNIE\b\s*[:.]?\s*([XYZ][0-9OILSBZG]{7}\s?-?\s?[A-Z])\b`),
	regexp.MustCompile(`\b(?:NUMERO|NUM)\b\.?\s*[:.]?\s*([XYZ]?[0-9OILSBZG]{7,8}\s?-?\s?[A-Z])\b`),
	regexp.MustCompile(`\b(\d{8}\s?-?\s?[A-Z])\b`),
	regexp.MustCompile(`\b([XYZ]\s?-?\s?\d{7}\s?-?\s?[A-Z])\b`),
}

// documentNumber returns the first pattern match that, possibly after repairing
// OCR confusions, has the structure accepted by accept. Among the repairs of one
// match a checksum-valid reading is preferred. A leading X, Y or Z is kept as a
// letter, so an NIE never yields a DNI.
func documentNumber(text string, accept func(string) bool) string {
	for _, re := range numberPatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if n := repairNumber(stripSeparators(m[1]), accept); n != "" {
				return n
			}
		}
	}
	return ""
}

func repairNumber(c string, accept func(string) bool) string {
	if len(c) != 9 {
		return ""
	}
	readings := []string{c}
	if strings.ContainsRune("XYZ", rune(c[0])) {
		// an NIE prefix is never a digit: Z would repair to 2 and turn the NIE
		// into a DNI that passes mod 23
		readings = append(readings, c[:1]+repairDigits(c[1:8])+c[8:])
	} else {
		readings = append(readings, repairDigits(c[:8])+c[8:])
	}

	first := ""
	for _, r := range readings {
		if !accept(r) {
			continue
		}
		if checksum.ValidDocumentNumber(r) {
			return r
		}
		if first == "" {
			first = r
		}
	}
	return first
}

// Words that disqualify a line as a name line.
var nonNameWords = map[string]bool{
	"REINO": true, "ESPANA": true, "SPAIN": true, "KINGDOM": true, "DOCUMENTO": true,
	"NACIONAL": true, "IDENTIDAD": true, "IDENTITY": true, "CARD": true, "PASAPORTE": true,
	"PASSPORT": true, "UNION": true, "EUROPEA": true, "EUROPEAN": true, "PERMISO": true,
	"RESIDENCIA": true, "TARJETA": true, "EXTRANJERO": true, "NOMBRE": true, "NOMBRES": true,
	"NAME": true, "NAMES": true, "APELLIDO": true, "APELLIDOS": true, "SURNAME": true,
	"SURNAMES": true, "GIVEN": true, "SEXO": true, "SEX": true, "NACIONALIDAD": true,
	"NATIONALITY": true, "FECHA": true, "DATE": true, "DNI": true, "NIF": true, "NIE": true,
	"NUM": true, "NUMERO": true, "SOPORTE": true, "DOMICILIO": true, "CADUCIDAD": true,
	"VALIDEZ": true, "EXPEDICION": true, "NACIMIENTO": true, "FIRMA": true, "TITULAR": true,
	"PRIMER": true, "SEGUNDO": true, "CAN": true, "TIPO": true, "CLASE": true,
}

var nameTokenRe = regexp.MustCompile(`^[A-Z][A-Z'\-]*$`)

// nameFromLines picks the first line that looks like a printed full name: two to
// four letter-only words, mostly uppercase in the original, no label words.
// Two words are surname and given name, three are two surnames and a given name,
// four are two surnames and two given names.
func nameFromLines(t ocrText) (lastNames, firstName string, ok bool) {
	for i, raw := range t.raw {
		upper := t.upper[i]
		if len(upper) < 5 || strings.ContainsAny(upper, ":<") || mostlyDigits(upper) || !mostlyUpper(raw) {
			continue
		}
		words := strings.Fields(upper)
		if len(words) < 2 || len(words) > 4 {
			continue
		}
		good := true
		for _, w := range words {
			if len(w) < 2 || nonNameWords[w] || !nameTokenRe.MatchString(w) {
				good = false
				break
			}
		}
		if !good {
			continue
		}
		switch len(words) {
		case 2:
			return words[0], words[1], true
		case 3:
			return words[0] + " " + words[1], words[2], true
		default:
			return words[0] + " " + words[1], words[2] + " " + words[3], true
		}
	}
	return "", "", false
}

func mostlyUpper(s string) bool {
	upper, total := 0, 0
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if unicode.IsUpper(r) {
			upper++
		}
	}
	return total > 0 && upper*2 > total
}

func mostlyDigits(s string) bool {
	digits, total := 0, 0
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if unicode.IsDigit(r) {
			digits++
		}
	}
	return total > 0 && digits*2 > total
}

var (
	firstSurnameRe  = regexp.MustCompile(`\bPRIMER APELLIDO\b`)
	secondSurnameRe = regexp.MustCompile(`\bSEGUNDO APELLIDO\b`)
	surnamesRe      = regexp.MustCompile(`\b(?:APELLIDOS?|SURNAMES?)\b`)
	givenNameRe     = regexp.MustCompile(`\b(?:NOMBRES?|GIVEN NAMES?|NAME)\b`)
	nameValueRe     = regexp.MustCompile(`^[A-Z][A-Z' \-]*$`)
)

// labelValue returns the text after the first match of label, or the next line
// when the label stands alone. Values that are themselves labels are rejected.
func labelValue(lines []string, label *regexp.Regexp, valid func(string) bool) string {
	for i, l := range lines {
		loc := label.FindStringIndex(l)
		if loc == nil {
			continue
		}
		rest := strings.Trim(l[loc[1]:], " :./")
		if rest != "" && valid(rest) && !hasLabelWord(rest) {
			return rest
		}
		if i+1 < len(lines) && valid(lines[i+1]) && !hasLabelWord(lines[i+1]) {
			return lines[i+1]
		}
	}
	return ""
}

func hasLabelWord(s string) bool {
	for _, w := range strings.Fields(s) {
		if nonNameWords[strings.Trim(w, ":./")] {
			return true
		}
	}
	return false
}

func isNameValue(s string) bool {
	return nameValueRe.MatchString(s)
}

// namesFromLabels reads APELLIDOS/NOMBRE style labels, including the split
// PRIMER/SEGUNDO APELLIDO layout.
func namesFromLabels(lines []string) (lastNames, firstName string) {
	first := labelValue(lines, firstSurnameRe, isNameValue)
	if first != "" {
		lastNames = strings.TrimSpace(first + " " + labelValue(lines, secondSurnameRe, isNameValue))
	} else {
		lastNames = labelValue(lines, surnamesRe, isNameValue)
	}
	firstName = labelValue(lines, givenNameRe, isNameValue)
	return lastNames, firstName
}

func extractNames(t ocrText, f *domain.ExtractedFields) {
	if last, first, ok := nameFromLines(t); ok {
		f.SetIfEmpty(domain.FieldLastNames, last)
		f.SetIfEmpty(domain.FieldFirstName, first)
		return
	}
	last, first := namesFromLabels(t.plain)
	f.SetIfEmpty(domain.FieldLastNames, last)
	f.SetIfEmpty(domain.FieldFirstName, first)
}

var (
	genderLabelRe = regexp.MustCompile(`\b(?:SEXO|SEX|GENDER)\b`)
	genderTokenRe = regexp.MustCompile(`(?:^|[\s/:])([MFV])(?:$|[\s/])`)
)

func normalizeGender(s string) string {
	if s == "V" {
		return "M"
	}
	return s
}

// gender looks for M/F/V after a SEXO label, then for any isolated M/F/V token.
func gender(lines []string) string {
	for i, l := range lines {
		loc := genderLabelRe.FindStringIndex(l)
		if loc == nil {
			continue
		}
		if m := genderTokenRe.FindStringSubmatch(l[loc[1]:]); m != nil {
			return normalizeGender(m[1])
		}
		if i+1 < len(lines) {
			if m := genderTokenRe.FindStringSubmatch(lines[i+1]); m != nil {
				return normalizeGender(m[1])
			}
		}
	}
	for _, l := range lines {
		if m := genderTokenRe.FindStringSubmatch(l); m != nil {
			return normalizeGender(m[1])
		}
	}
	return ""
}

var (
	nationalityLabelRe = regexp.MustCompile(`\b(?:NACIONALIDAD|NATIONALITY)\b`)
	wordRe             = regexp.MustCompile(`\b[A-Z]{3,}\b`)
)

// normalizeNationality maps Spain synonyms (ESP, SPA, ESPANOLA, SPANISH) to ESP.
// Other values must already be three-letter codes.
func normalizeNationality(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	switch {
	case strings.HasPrefix(s, "ESP"), strings.HasPrefix(s, "SPA"):
		return "ESP"
	case len(s) == 3 && nameTokenRe.MatchString(s):
		return s
	}
	return ""
}

func nationality(lines []string) string {
	for i, l := range lines {
		loc := nationalityLabelRe.FindStringIndex(l)
		if loc == nil {
			continue
		}
		candidates := []string{l[loc[1]:]}
		if i+1 < len(lines) {
			candidates = append(candidates, lines[i+1])
		}
		for _, c := range candidates {
			for _, w := range wordRe.FindAllString(c, -1) {
				if nonNameWords[w] {
					continue
				}
				if n := normalizeNationality(w); n != "" {
					return n
				}
			}
		}
	}
	return ""
}

var (
	supportLabelRe = regexp.MustCompile(`\b(?:(?:N[UO]M(?:ERO)?\.?\s*(?:DE\s+)?)?SOPORTE?|SUPPORT|IDESP)\b`)
	canLabelRe     = regexp.MustCompile(`\bCAN\b`)
	codeTokenRe    = regexp.MustCompile(`\b([A-Z0-9]{6,12})\b`)
)

// labelCode returns the first 6-12 character alphanumeric token with a digit after
// label, on the same line or the next.
func labelCode(lines []string, label *regexp.Regexp) string {
	for i, l := range lines {
		loc := label.FindStringIndex(l)
		if loc == nil {
			continue
		}
		candidates := []string{l[loc[1]:]}
		if i+1 < len(lines) {
			candidates = append(candidates, lines[i+1])
		}
		for _, c := range candidates {
			for _, m := range codeTokenRe.FindAllStringSubmatch(c, -1) {
				if hasDigit(m[1]) {
					return m[1]
				}
			}
		}
	}
	return ""
}

// extractFront runs the label and pattern passes of DNI and NIE fronts.
func extractFront(t ocrText, accept func(string) bool, f *domain.ExtractedFields) {
	f.SetIfEmpty(domain.FieldDocumentNumber, documentNumber(strings.Join(t.plain, "\n"), accept))
	extractNames(t, f)
	assignDates(findDates(t.plain), f)
	f.SetIfEmpty(domain.FieldGender, gender(t.plain))
	f.SetIfEmpty(domain.FieldNationality, nationality(t.plain))
	f.SetIfEmpty(domain.FieldSupportNumber, labelCode(t.plain, supportLabelRe))
	f.SetIfEmpty(domain.FieldCANNumber, labelCode(t.plain, canLabelRe))
}
