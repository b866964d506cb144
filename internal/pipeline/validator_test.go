package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guillermolam/alberguecarcalejo-sub000/internal/config"
	"github.com/guillermolam/alberguecarcalejo-sub000/internal/domain"
	"github.com/guillermolam/alberguecarcalejo-sub000/internal/ocr"
)

var refTime = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

const (
	frontText = "NOMBRE: JUAN\nAPELLIDOS: GARCIA LOPEZ\n12345678Z"
	nieText   = "NOMBRE: JUAN\nAPELLIDOS: GARCIA LOPEZ\nNIE X1234567L"

	passportText = "PASAPORTE\n" +
		"P<ESPGARCIA<LOPEZ<<JUAN<<<<<<<<<<<<<<<<<<<<<\n" +
		"PAA1234560ESP9001011M310101212345678Z<<<<<32"
)

// scriptedEngine returns the same text for every image.
type scriptedEngine struct {
	text  string
	err   error
	calls *atomic.Int32
}

func (e *scriptedEngine) Name() string { return "scripted" }

func (e *scriptedEngine) ExtractText(ctx context.Context, img *image.Gray) (string, error) {
	text, _, err := e.ExtractTextWithConfidence(ctx, img)
	return text, err
}

func (e *scriptedEngine) ExtractTextWithConfidence(context.Context, *image.Gray) (string, float64, error) {
	e.calls.Add(1)
	if e.err != nil {
		return "", 0, e.err
	}
	return e.text, 0.9, nil
}

func (e *scriptedEngine) Close() error { return nil }

func newTestValidator(t *testing.T, text string, err error) (*Validator, *ocr.Pool, *atomic.Int32) {
	t.Helper()
	cfg := config.Default()
	calls := &atomic.Int32{}
	pool := ocr.NewPool(1, time.Second, func() (ocr.Engine, error) {
		return &scriptedEngine{text: text, err: err, calls: calls}, nil
	})
	t.Cleanup(func() { _ = pool.Close() })
	return NewValidator(cfg, pool, WithClock(func() time.Time { return refTime })), pool, calls
}

// cardImage is a white card with a small dark mark so it is not featureless.
func cardImage(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	for y := 20; y < 60; y++ {
		for x := 20; x < 60; x++ {
			img.SetGray(x, y, color.Gray{Y: 0})
		}
	}
	return encode(t, img)
}

func darkImage(t *testing.T, w, h int) []byte {
	t.Helper()
	return encode(t, image.NewGray(image.Rect(0, 0, w, h)))
}

func encode(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestValidate_DNIFrontWithHint(t *testing.T) {
	v, _, _ := newTestValidator(t, frontText, nil)

	resp, err := v.Validate(context.Background(), Request{
		ImageBytes:       cardImage(t, 428, 270),
		MIMEType:         "image/png",
		DocumentTypeHint: "dni",
	})

	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Empty(t, resp.Error)
	assert.Equal(t, domain.DniFront, resp.DocumentType)
	assert.NotEmpty(t, resp.RequestID)
	assert.InDelta(t, 6.0/8.5, resp.ConfidenceScore, 1e-9)
	assert.Equal(t, []string{domain.FieldDocumentNumber, domain.FieldFirstName, domain.FieldLastNames}, resp.DetectedFields)

	require.NotNil(t, resp.Data)
	assert.Equal(t, "12345678Z", resp.Data.DocumentNumber)
	assert.Equal(t, "JUAN", resp.Data.FirstName)
	assert.Equal(t, "GARCIA LOPEZ", resp.Data.LastNames)
	assert.True(t, resp.Data.ChecksumValid)
	assert.True(t, resp.Data.FormatValid)
}

func TestValidate_DarkImageIsLowConfidence(t *testing.T) {
	v, _, _ := newTestValidator(t, "", nil)

	resp, err := v.Validate(context.Background(), Request{ImageBytes: darkImage(t, 428, 270), MIMEType: "image/png"})

	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Zero(t, resp.ConfidenceScore)
	assert.Empty(t, resp.DetectedFields)
	assert.Contains(t, resp.Error, "low quality image")
	assert.Equal(t, domain.Other, resp.DocumentType)
}

func TestValidate_PassportMRZ(t *testing.T) {
	v, _, _ := newTestValidator(t, passportText, nil)

	resp, err := v.Validate(context.Background(), Request{
		ImageBytes:       cardImage(t, 500, 352),
		DocumentTypeHint: "pasaporte",
	})

	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, domain.Passport, resp.DocumentType)
	assert.InDelta(t, 1.0, resp.ConfidenceScore, 1e-9)
	require.NotNil(t, resp.Data)
	assert.Equal(t, "PAA123456", resp.Data.DocumentNumber)
	assert.Equal(t, "01/01/1990", resp.Data.BirthDate)
	assert.Equal(t, "01/01/2031", resp.Data.ExpiryDate)
	assert.True(t, resp.Data.ChecksumValid)
}

func TestValidate_RefinesToNIEFromText(t *testing.T) {
	v, _, _ := newTestValidator(t, nieText, nil)

	resp, err := v.Validate(context.Background(), Request{ImageBytes: cardImage(t, 510, 300)})

	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, domain.NieFront, resp.DocumentType)
	assert.Equal(t, "X1234567L", resp.Data.DocumentNumber)
	assert.True(t, resp.Data.ChecksumValid)
}

func TestValidate_RetriesAlternateFamily(t *testing.T) {
	// G for 6 keeps the text from looking like an NIE, so the card starts as a DNI
	v, _, _ := newTestValidator(t, "NUMERO: X12345G7L", nil)

	resp, err := v.Validate(context.Background(), Request{ImageBytes: cardImage(t, 510, 300)})

	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, domain.NieFront, resp.DocumentType)
	assert.InDelta(t, 3.0/8.5, resp.ConfidenceScore, 1e-9)
	require.NotNil(t, resp.Data)
	assert.Equal(t, "X1234567L", resp.Data.DocumentNumber)
	assert.True(t, resp.Data.ChecksumValid)
}

func TestValidate_KeepsPrimaryWhenAlternateIsNoBetter(t *testing.T) {
	v, _, _ := newTestValidator(t, "NOMBRE: JUAN", nil)

	resp, err := v.Validate(context.Background(), Request{ImageBytes: cardImage(t, 510, 300)})

	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, domain.DniFront, resp.DocumentType)
	assert.InDelta(t, 1.5/8.5, resp.ConfidenceScore, 1e-9)
	require.NotNil(t, resp.Data)
	assert.Equal(t, "JUAN", resp.Data.FirstName)
	assert.Contains(t, resp.Error, "low quality image")
}

func TestValidate_ChecksumMismatchIsAWarning(t *testing.T) {
	v, _, _ := newTestValidator(t, strings.Replace(frontText, "12345678Z", "12345678A", 1), nil)

	resp, err := v.Validate(context.Background(), Request{ImageBytes: cardImage(t, 428, 270), DocumentTypeHint: "dni"})

	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.False(t, resp.Data.ChecksumValid)
	assert.InDelta(t, 5.0/8.5, resp.ConfidenceScore, 1e-9)
	require.Len(t, resp.Warnings, 1)
	assert.Contains(t, resp.Warnings[0], string(domain.KindChecksumMismatch))
}

func TestValidate_FatalErrors(t *testing.T) {
	t.Run("unsupported hint", func(t *testing.T) {
		v, _, calls := newTestValidator(t, frontText, nil)

		resp, err := v.Validate(context.Background(), Request{ImageBytes: cardImage(t, 428, 270), DocumentTypeHint: "driving licence"})

		kind, ok := domain.KindOf(err)
		require.True(t, ok)
		assert.Equal(t, domain.KindUnsupportedDocumentType, kind)
		assert.False(t, resp.Success)
		assert.NotEmpty(t, resp.Error)
		assert.Zero(t, calls.Load())
	})

	t.Run("undecodable image", func(t *testing.T) {
		v, _, calls := newTestValidator(t, frontText, nil)

		_, err := v.Validate(context.Background(), Request{ImageBytes: []byte("not an image")})

		kind, ok := domain.KindOf(err)
		require.True(t, ok)
		assert.Equal(t, domain.KindImageDecode, kind)
		assert.Zero(t, calls.Load())
	})

	t.Run("engine failure releases the lease", func(t *testing.T) {
		v, pool, calls := newTestValidator(t, "", errors.New("tesseract crashed"))

		resp, err := v.Validate(context.Background(), Request{ImageBytes: cardImage(t, 428, 270), DocumentTypeHint: "dni"})

		kind, ok := domain.KindOf(err)
		require.True(t, ok)
		assert.Equal(t, domain.KindOCREngine, kind)
		assert.True(t, domain.IsFatal(err))
		assert.Contains(t, resp.Error, "tesseract crashed")
		assert.Equal(t, int32(1), calls.Load())

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		lease, err := pool.Acquire(ctx)
		require.NoError(t, err)
		lease.Release()
	})
}

func TestVerifyChecksum_TD1Back(t *testing.T) {
	text := "IDESPBAA000589512345678Z<<<<<<\n9001011F3101012ESP<<<<<<<<<<<5\nGARCIA<LOPEZ<<MARIA<<<<<<<<<<<"

	ok, mismatch := verifyChecksum(domain.DniBack, text, domain.ExtractedFields{DocumentNumber: "12345678Z"})
	assert.True(t, ok)
	assert.Nil(t, mismatch)

	ok, mismatch = verifyChecksum(domain.DniBack, strings.Replace(text, "9001011F", "9001021F", 1), domain.ExtractedFields{})
	assert.False(t, ok)
	require.NotNil(t, mismatch)
	assert.Equal(t, domain.KindChecksumMismatch, mismatch.Kind)

	ok, mismatch = verifyChecksum(domain.Other, text, domain.ExtractedFields{})
	assert.False(t, ok)
	assert.Nil(t, mismatch)
}
