package data

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/guillermolam/alberguecarcalejo-sub000/internal/domain"
)

// DateLayout is the output format of every extracted date.
const DateLayout = "02/01/2006"

const (
	minYear = 1900
	maxYear = 2050
)

var dateRe = regexp.MustCompile(`\b(\d{1,2})[./\- ](\d{1,2})[./\- ](\d{4})\b`)

// ParseDate validates day, month and year against the calendar and returns the
// date in DateLayout.
func ParseDate(day, month, year string) (string, bool) {
	t, ok := parseDate(day, month, year)
	if !ok {
		return "", false
	}
	return t.Format(DateLayout), true
}

func parseDate(day, month, year string) (time.Time, bool) {
	d, err1 := strconv.Atoi(day)
	m, err2 := strconv.Atoi(month)
	y, err3 := strconv.Atoi(year)
	if err1 != nil || err2 != nil || err3 != nil {
		return time.Time{}, false
	}
	if d < 1 || d > 31 || m < 1 || m > 12 || y < minYear || y > maxYear {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Day() != d || t.Month() != time.Month(m) {
		return time.Time{}, false
	}
	return t, true
}

type dateMatch struct {
	value string
	year  int
	field string // from keyword context, "" when unknown
}

var dateKeywords = []struct {
	field string
	words []string
}{
	{domain.FieldBirthDate, []string{"NACIMIENTO", "NACIM", "BIRTH", "BORN"}},
	{domain.FieldExpiryDate, []string{"CADUCIDAD", "EXPIR", "VALIDO HASTA", "VALIDEZ", "VALID UNTIL"}},
	{domain.FieldIssueDate, []string{"EXPEDIDO", "EXPEDICION", "ISSUED", "ISSUE", "EMISION"}},
}

// contextFields lists the date fields named in s, in the order they appear.
func contextFields(s string) []string {
	type hit struct {
		pos   int
		field string
	}
	var hits []hit
	for _, kw := range dateKeywords {
		best := -1
		for _, w := range kw.words {
			if i := strings.Index(s, w); i >= 0 && (best < 0 || i < best) {
				best = i
			}
		}
		if best >= 0 {
			hits = append(hits, hit{best, kw.field})
		}
	}
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hits[j].pos < hits[j-1].pos; j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}
	fields := make([]string, len(hits))
	for i, h := range hits {
		fields[i] = h.field
	}
	return fields
}

// findDates returns every valid date in lines, categorized by a keyword on the same
// line before the date or on the line above. Several dates under one label row are
// matched to the labels positionally.
func findDates(lines []string) []dateMatch {
	var out []dateMatch
	for i, line := range lines {
		locs := dateRe.FindAllStringSubmatchIndex(line, -1)
		if len(locs) == 0 {
			continue
		}
		var above []string
		if i > 0 {
			above = contextFields(lines[i-1])
		}
		for k, loc := range locs {
			t, ok := parseDate(line[loc[2]:loc[3]], line[loc[4]:loc[5]], line[loc[6]:loc[7]])
			if !ok {
				continue
			}
			m := dateMatch{value: t.Format(DateLayout), year: t.Year()}

			prefixStart := 0
			if k > 0 {
				prefixStart = locs[k-1][1]
			}
			if same := contextFields(line[prefixStart:loc[0]]); len(same) > 0 {
				m.field = same[len(same)-1]
			} else if len(above) == len(locs) {
				m.field = above[k]
			} else if len(above) == 1 && len(locs) == 1 {
				m.field = above[0]
			}
			out = append(out, m)
		}
	}
	return out
}

// assignDates fills date fields from keyword context, then by year: before 2010 is
// taken as a birth date and after 2020 as an expiry date.
func assignDates(dates []dateMatch, f *domain.ExtractedFields) {
	for _, d := range dates {
		if d.field != "" {
			f.SetIfEmpty(d.field, d.value)
		}
	}
	for _, d := range dates {
		if d.field != "" {
			continue
		}
		switch {
		case d.year < 2010:
			f.SetIfEmpty(domain.FieldBirthDate, d.value)
		case d.year > 2020:
			f.SetIfEmpty(domain.FieldExpiryDate, d.value)
		}
	}
}

// DateKind selects the century rule for a two-digit MRZ year.
type DateKind int

const (
	BirthDate DateKind = iota
	ExpiryDate
)

// StaticPivot is the fixed rule YY < 30 -> 20YY, else 19YY.
const StaticPivot = 30

// DateResolver decodes MRZ YYMMDD dates. With Pivot > 0 the static rule applies.
// Otherwise the century is chosen relative to Now: birth dates may not lie in the
// future and expiry dates may lie at most ExpiryWindow years ahead.
type DateResolver struct {
	Pivot        int
	ExpiryWindow int
	Now          time.Time
}

// Decode returns the date in DateLayout.
func (r DateResolver) Decode(yymmdd string, kind DateKind) (string, bool) {
	t, ok := r.decode(yymmdd, kind)
	if !ok {
		return "", false
	}
	return t.Format(DateLayout), true
}

func (r DateResolver) decode(yymmdd string, kind DateKind) (time.Time, bool) {
	if len(yymmdd) != 6 || !isDigits(yymmdd) {
		return time.Time{}, false
	}
	yy, _ := strconv.Atoi(yymmdd[0:2])
	mm, _ := strconv.Atoi(yymmdd[2:4])
	dd, _ := strconv.Atoi(yymmdd[4:6])
	if mm < 1 || mm > 12 || dd < 1 || dd > 31 {
		return time.Time{}, false
	}

	var years []int
	if r.Pivot > 0 {
		year := 1900 + yy
		if yy < r.Pivot {
			year = 2000 + yy
		}
		years = []int{year}
	} else {
		century := r.Now.Year() - r.Now.Year()%100
		years = []int{century + 100 + yy, century + yy, century - 100 + yy}
	}

	for _, year := range years {
		t := time.Date(year, time.Month(mm), dd, 0, 0, 0, 0, time.UTC)
		if t.Day() != dd {
			continue
		}
		if r.Pivot > 0 {
			return t, true
		}
		switch kind {
		case BirthDate:
			if !t.After(r.Now) {
				return t, true
			}
		case ExpiryDate:
			if year <= r.Now.Year()+r.ExpiryWindow {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// EncodeMRZDate renders t as an MRZ YYMMDD field.
func EncodeMRZDate(t time.Time) string {
	return t.Format("060102")
}
