// Package data turns OCR text into ExtractedFields, one strategy per document family.
package data

import (
	"context"
	"time"

	"github.com/guillermolam/alberguecarcalejo-sub000/internal/checksum"
	"github.com/guillermolam/alberguecarcalejo-sub000/internal/config"
	"github.com/guillermolam/alberguecarcalejo-sub000/internal/domain"
	"github.com/guillermolam/alberguecarcalejo-sub000/internal/logger"
)

// RegionReader OCRs a fractional region of the processed image.
type RegionReader interface {
	ReadRegion(ctx context.Context, r config.Region) (string, error)
}

type Extractor struct {
	regions config.RegionsConfig
	mrz     config.MRZConfig
	now     func() time.Time
}

func NewExtractor(regions config.RegionsConfig, mrz config.MRZConfig) *Extractor {
	return &Extractor{regions: regions, mrz: mrz, now: time.Now}
}

// WithClock sets the reference time used to pick MRZ centuries.
func (e *Extractor) WithClock(now func() time.Time) *Extractor {
	e.now = now
	return e
}

// DateResolver returns the MRZ date rule for the current reference time.
func (e *Extractor) DateResolver() DateResolver {
	return DateResolver{Pivot: e.mrz.Pivot, ExpiryWindow: e.mrz.ExpiryWindow, Now: e.now()}
}

// AcceptNumber returns the document number structure accepted for family t.
func AcceptNumber(t domain.DocumentType) func(string) bool {
	switch t {
	case domain.DniFront, domain.DniBack:
		return checksum.IsDNIFormat
	case domain.NieFront, domain.NieBack:
		return checksum.IsNIEFormat
	case domain.Passport:
		return IsPassportNumber
	case domain.Other:
		return func(string) bool { return false }
	}
	return func(string) bool { return false }
}

// Extract runs the strategy of family t over text. regions may be nil; when set,
// fronts of ID cards are also read band by band to fill fields the full-page
// text missed. Extraction never fails: unreadable input yields fewer fields.
func (e *Extractor) Extract(ctx context.Context, t domain.DocumentType, text string, regions RegionReader) domain.ExtractedFields {
	doc := parseText(text)
	accept := AcceptNumber(t)
	var f domain.ExtractedFields

	switch t {
	case domain.DniFront, domain.NieFront:
		extractFront(doc, accept, &f)
		if regions != nil && e.regions.Enabled {
			e.extractRegions(ctx, regions, accept, &f)
		}
	case domain.DniBack, domain.NieBack:
		extractBack(doc, e.DateResolver(), accept, &f)
	case domain.Passport:
		extractPassport(doc, e.DateResolver(), &f)
	case domain.Other:
		// no layout to read
	}
	return f
}

// extractRegions OCRs the name, date and number bands and only fills fields that
// are still unset. Region failures are logged and skipped.
func (e *Extractor) extractRegions(ctx context.Context, rr RegionReader, accept func(string) bool, f *domain.ExtractedFields) {
	bands := []struct {
		name   string
		region config.Region
		fill   func(t ocrText, into *domain.ExtractedFields)
	}{
		{"name", e.regions.Name, func(t ocrText, into *domain.ExtractedFields) {
			extractNames(t, into)
		}},
		{"dates", e.regions.Dates, func(t ocrText, into *domain.ExtractedFields) {
			assignDates(findDates(t.plain), into)
		}},
		{"number", e.regions.Number, func(t ocrText, into *domain.ExtractedFields) {
			into.SetIfEmpty(domain.FieldDocumentNumber, documentNumber(t.joined, accept))
			into.SetIfEmpty(domain.FieldSupportNumber, labelCode(t.plain, supportLabelRe))
			into.SetIfEmpty(domain.FieldCANNumber, labelCode(t.plain, canLabelRe))
		}},
	}

	for _, b := range bands {
		if ctx.Err() != nil {
			return
		}
		text, err := rr.ReadRegion(ctx, b.region)
		if err != nil {
			logger.DebugLog("[extract]: region %s skipped: %v", b.name, err)
			continue
		}
		t := parseText(text)
		if t.empty() {
			continue
		}
		var band domain.ExtractedFields
		b.fill(t, &band)
		f.Merge(band)
	}
}
