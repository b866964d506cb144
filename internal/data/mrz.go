package data

import (
	"regexp"
	"strings"

	"github.com/guillermolam/alberguecarcalejo-sub000/internal/domain"
)

const (
	td1Width = 30
	td3Width = 44
)

var (
	mrzCharsRe = regexp.MustCompile(`^[A-Z0-9<]+$`)
	td3LineRe  = regexp.MustCompile(`^[A-Z0-9<]{36,}$`)
)

// mrzCandidate cleans an uppercase OCR line for MRZ matching. Spaces are dropped
// only from lines that already carry a filler, so ordinary text never looks like MRZ.
func mrzCandidate(line string) (string, bool) {
	s := strings.ReplaceAll(line, "«", "<<")
	if strings.Contains(s, "<") {
		s = strings.ReplaceAll(s, " ", "")
	}
	return s, mrzCharsRe.MatchString(s)
}

// isMRZLine flags lines starting with IDESP, containing ESP< or made of at least
// 30 MRZ characters.
func isMRZLine(line string) bool {
	s, clean := mrzCandidate(line)
	return strings.HasPrefix(s, "IDESP") || strings.Contains(s, "ESP<") || (clean && len(s) >= td1Width)
}

// padMRZ truncates or pads s with fillers to width.
func padMRZ(s string, width int) string {
	if len(s) >= width {
		return s[:width]
	}
	return s + strings.Repeat("<", width-len(s))
}

func mrzField(s string) string {
	return strings.Trim(s, "<")
}

func isFiller(r rune) bool {
	return r == '<'
}

// splitMRZNames splits a name field on the << delimiter; single fillers separate words.
func splitMRZNames(s string) (surnames, given string) {
	s = strings.TrimRight(s, "<")
	parts := strings.SplitN(s, "<<", 2)
	surnames = strings.Join(strings.FieldsFunc(parts[0], isFiller), " ")
	if len(parts) == 2 {
		given = strings.Join(strings.FieldsFunc(parts[1], isFiller), " ")
	}
	return surnames, given
}

func mrzSex(c byte) string {
	switch c {
	case 'M', 'F':
		return string(c)
	}
	return ""
}

// TD1 is the three-line MRZ of ID cards, each line padded to 30 characters.
// Line3 is empty when OCR lost it.
type TD1 struct {
	Line1, Line2, Line3 string
}

// TD3 is the two-line MRZ of passports, each line padded to 44 characters.
type TD3 struct {
	Line1, Line2 string
}

// FindTD1 locates an ID card MRZ: a line starting with a TD1 document code
// followed by a line starting with the six-digit birth date.
func FindTD1(lines []string) (TD1, bool) {
	var cands []string
	for _, l := range lines {
		if s, ok := mrzCandidate(strings.ToUpper(l)); ok && len(s) >= 20 {
			cands = append(cands, s)
		}
	}
	for i := 0; i+1 < len(cands); i++ {
		first := cands[i]
		if !strings.ContainsRune("IAC", rune(first[0])) || len(cands[i+1]) < 6 || !isDigits(cands[i+1][:6]) {
			continue
		}
		td := TD1{
			Line1: padMRZ(first, td1Width),
			Line2: padMRZ(cands[i+1], td1Width),
		}
		if i+2 < len(cands) {
			td.Line3 = padMRZ(cands[i+2], td1Width)
		}
		return td, true
	}
	return TD1{}, false
}

// FindTD3 locates a passport MRZ: two lines of 36 or more MRZ characters,
// preferring the pair whose first line starts with P.
func FindTD3(lines []string) (TD3, bool) {
	var cands []string
	for _, l := range lines {
		if s, _ := mrzCandidate(strings.ToUpper(l)); td3LineRe.MatchString(s) {
			cands = append(cands, s)
		}
	}
	if len(cands) < 2 {
		return TD3{}, false
	}
	for i := 0; i+1 < len(cands); i++ {
		if cands[i][0] == 'P' {
			return TD3{Line1: padMRZ(cands[i], td3Width), Line2: padMRZ(cands[i+1], td3Width)}, true
		}
	}
	n := len(cands)
	return TD3{Line1: padMRZ(cands[n-2], td3Width), Line2: padMRZ(cands[n-1], td3Width)}, true
}

// Fields decodes a TD1 MRZ. Spanish cards store the support number in the
// document number field and the DNI/NIE in the optional data.
func (td TD1) Fields(dates DateResolver, accept func(string) bool) domain.ExtractedFields {
	var f domain.ExtractedFields
	l1, l2 := td.Line1, td.Line2

	if support := mrzField(l1[5:14]); len(support) >= 6 {
		f.SupportNumber = support
	}
	if number := strings.ReplaceAll(l1[15:30], "<", ""); accept(number) {
		f.DocumentNumber = number
	}

	f.BirthDate, _ = dates.Decode(l2[0:6], BirthDate)
	f.Gender = mrzSex(l2[7])
	f.ExpiryDate, _ = dates.Decode(l2[8:14], ExpiryDate)
	f.Nationality = normalizeNationality(mrzField(l2[15:18]))

	if td.Line3 != "" {
		f.LastNames, f.FirstName = splitMRZNames(td.Line3)
	}
	return f
}

// Fields decodes a TD3 MRZ.
func (td TD3) Fields(dates DateResolver) domain.ExtractedFields {
	var f domain.ExtractedFields
	l1, l2 := td.Line1, td.Line2

	if l1[0] == 'P' {
		f.LastNames, f.FirstName = splitMRZNames(l1[5:])
	}
	if number := mrzField(l2[0:9]); IsPassportNumber(number) {
		f.DocumentNumber = number
	}
	f.Nationality = normalizeNationality(mrzField(l2[10:13]))
	f.BirthDate, _ = dates.Decode(l2[13:19], BirthDate)
	f.Gender = mrzSex(l2[20])
	f.ExpiryDate, _ = dates.Decode(l2[21:27], ExpiryDate)
	return f
}
