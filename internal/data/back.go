package data

import (
	"regexp"
	"strings"

	"github.com/guillermolam/alberguecarcalejo-sub000/internal/domain"
)

var (
	addressLabelRe      = regexp.MustCompile(`^(?:DOMICILIO|ADDRESS)\b`)
	provinceLabelRe     = regexp.MustCompile(`^PROVINCIA\b`)
	municipalityLabelRe = regexp.MustCompile(`^(?:MUNICIPIO|LUGAR DE DOMICILIO|LOCALIDAD)\b`)
	postalCodeRe        = regexp.MustCompile(`\b\d{5}\b`)
)

func isAnyValue(s string) bool {
	return strings.TrimSpace(s) != ""
}

func postalCode(lines []string) string {
	for _, l := range lines {
		if m := postalCodeRe.FindString(l); m != "" {
			return m
		}
	}
	return ""
}

// extractBack reads the address block by labels and decodes the TD1 MRZ.
// Label values are taken before MRZ values; neither overwrites the other.
func extractBack(t ocrText, dates DateResolver, accept func(string) bool, f *domain.ExtractedFields) {
	f.SetIfEmpty(domain.FieldAddress, labelValue(t.plain, addressLabelRe, isAnyValue))
	f.SetIfEmpty(domain.FieldPostalCode, postalCode(t.plain))
	f.SetIfEmpty(domain.FieldProvince, labelValue(t.plain, provinceLabelRe, isNameValue))
	f.SetIfEmpty(domain.FieldMunicipality, labelValue(t.plain, municipalityLabelRe, isNameValue))

	if td, ok := FindTD1(t.upper); ok {
		f.Merge(td.Fields(dates, accept))
	}
	if !f.Has(domain.FieldDocumentNumber) {
		f.SetIfEmpty(domain.FieldDocumentNumber, documentNumber(strings.Join(t.plain, "\n"), accept))
	}
}
