package data

import (
	"strconv"

	"github.com/guillermolam/alberguecarcalejo-sub000/internal/domain"
)

// Record is the extraction result handed to the caller: the fields plus their
// validation. It serializes flat.
type Record struct {
	Filename     string              `json:"filename,omitempty"`
	DocumentType domain.DocumentType `json:"document_type"`
	domain.ExtractedFields
	domain.ValidationResult
}

func MapCSVRecord(item Record) []string {
	row := []string{item.Filename, item.DocumentType.String()}
	for _, name := range domain.FieldNames {
		row = append(row, item.Get(name))
	}
	return append(row,
		strconv.FormatBool(item.FormatValid),
		strconv.FormatBool(item.ChecksumValid),
		strconv.FormatFloat(item.Confidence, 'f', 3, 64),
	)
}

func GetCSVHeader() []string {
	header := []string{"filename", "document_type"}
	header = append(header, domain.FieldNames...)
	return append(header, "format_valid", "checksum_valid", "confidence")
}
