package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractedFields_SetIfEmptyNeverClobbers(t *testing.T) {
	var f ExtractedFields

	assert.True(t, f.SetIfEmpty(FieldFirstName, "JUAN"))
	assert.False(t, f.SetIfEmpty(FieldFirstName, "PEDRO"))
	assert.False(t, f.SetIfEmpty(FieldLastNames, ""))
	assert.False(t, f.SetIfEmpty("unknown", "x"))

	assert.Equal(t, "JUAN", f.FirstName)
	assert.Equal(t, []string{FieldFirstName}, f.Present())
}

func TestExtractedFields_Merge(t *testing.T) {
	f := ExtractedFields{DocumentNumber: "12345678Z"}
	f.Merge(ExtractedFields{DocumentNumber: "87654321X", Gender: "F"})

	assert.Equal(t, "12345678Z", f.DocumentNumber)
	assert.Equal(t, "F", f.Gender)
	assert.Equal(t, []string{FieldDocumentNumber, FieldGender}, f.Present())
}

func TestDocumentType_Sides(t *testing.T) {
	testCases := []struct {
		in         DocumentType
		back, nie  DocumentType
		name       string
		front, isB bool
	}{
		{DniFront, DniBack, NieFront, "dni_front", true, false},
		{DniBack, DniBack, NieBack, "dni_back", false, true},
		{NieFront, NieBack, NieFront, "nie_front", true, false},
		{Passport, Passport, Passport, "passport", false, false},
		{Other, Other, Other, "other", false, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.name, tc.in.String())
			assert.Equal(t, tc.back, tc.in.Back())
			assert.Equal(t, tc.nie, tc.in.AsNIE())
			assert.Equal(t, tc.front, tc.in.IsFront())
			assert.Equal(t, tc.isB, tc.in.IsBack())
		})
	}
}

func TestError_KindMatching(t *testing.T) {
	err := fmt.Errorf("request failed: %w", OCREngineError("engine unavailable", errors.New("no tessdata")))

	assert.True(t, errors.Is(err, &Error{Kind: KindOCREngine}))
	assert.False(t, errors.Is(err, &Error{Kind: KindImageDecode}))
	assert.True(t, IsFatal(err))
	assert.Contains(t, err.Error(), "no tessdata")

	kind, ok := KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, KindOCREngine, kind)

	assert.False(t, IsFatal(LowConfidenceError(0.1, 0.25)))
	assert.False(t, IsFatal(ChecksumMismatchError(FieldDocumentNumber, "12345678A")))
	assert.True(t, IsFatal(errors.New("plain")))
}
