package data

import (
	"regexp"
	"strings"

	"github.com/guillermolam/alberguecarcalejo-sub000/internal/domain"
)

var (
	passportTextRe    = regexp.MustCompile(`\b([A-Z]{1,3}\d{6,9})\b`)
	passportPrintedRe = regexp.MustCompile(`^[A-Z]{1,3}\d{6,9}$`)
	passportMRZRe     = regexp.MustCompile(`^[A-Z0-9]{3,9}$`)
)

// IsPassportNumber accepts the printed form ([A-Z]{1,3} then 6-9 digits) or an
// MRZ number field of 3-9 characters holding at least one digit.
func IsPassportNumber(s string) bool {
	return passportPrintedRe.MatchString(s) || (passportMRZRe.MatchString(s) && hasDigit(s))
}

// extractPassport decodes the TD3 MRZ first and fills what it could not read
// from the printed labels.
func extractPassport(t ocrText, dates DateResolver, f *domain.ExtractedFields) {
	if td, ok := FindTD3(t.upper); ok {
		f.Merge(td.Fields(dates))
	}

	if m := passportTextRe.FindStringSubmatch(strings.Join(t.plain, "\n")); m != nil {
		f.SetIfEmpty(domain.FieldDocumentNumber, m[1])
	}

	last, first := namesFromLabels(t.plain)
	if last == "" && first == "" {
		last, first, _ = nameFromLines(t)
	}
	f.SetIfEmpty(domain.FieldLastNames, last)
	f.SetIfEmpty(domain.FieldFirstName, first)

	found := findDates(t.plain)
	assignDates(categorized(found), f)
	if len(found) > 0 {
		f.SetIfEmpty(domain.FieldBirthDate, found[0].value)
	}
	if len(found) > 1 {
		f.SetIfEmpty(domain.FieldExpiryDate, found[len(found)-1].value)
	}

	f.SetIfEmpty(domain.FieldGender, gender(t.plain))
	f.SetIfEmpty(domain.FieldNationality, nationality(t.plain))
}

func categorized(dates []dateMatch) []dateMatch {
	var out []dateMatch
	for _, d := range dates {
		if d.field != "" {
			out = append(out, d)
		}
	}
	return out
}
