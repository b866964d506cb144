package document

import (
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guillermolam/alberguecarcalejo-sub000/internal/config"
	"github.com/guillermolam/alberguecarcalejo-sub000/internal/domain"
)

func page(w, h int, v uint8) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, w, h))
	for i := range g.Pix {
		g.Pix[i] = v
	}
	return g
}

func drawRun(g *image.Gray, y, x0, length int) {
	for x := x0; x < x0+length && x < g.Rect.Dx(); x++ {
		g.Pix[y*g.Stride+x] = 0
	}
}

func TestClassify(t *testing.T) {
	c := NewClassifier(config.Default().Classifier)

	passport := page(440, 320, 255)
	drawRun(passport, 270, 10, 300)
	drawRun(passport, 290, 10, 300)

	idCard := page(428, 270, 255)
	drawRun(idCard, 50, 100, 200)

	shortRuns := page(440, 300, 255)
	for x := 0; x < 400; x += 30 {
		drawRun(shortRuns, 270, x, 10)
		drawRun(shortRuns, 290, x, 10)
	}

	square := page(300, 300, 255)
	drawRun(square, 100, 10, 100)

	testCases := []struct {
		name   string
		binary *image.Gray
		want   domain.DocumentType
	}{
		{"passport with MRZ band", passport, domain.Passport},
		{"id card ratio", idCard, domain.DniFront},
		{"short runs are not an MRZ band", shortRuns, domain.DniFront},
		{"square is other", square, domain.Other},
		{"all dark is other", page(428, 270, 0), domain.Other},
		{"empty is other", page(0, 0, 0), domain.Other},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, c.Classify(tc.binary, tc.binary))
		})
	}
}

func TestParseHint(t *testing.T) {
	testCases := []struct {
		hint, side string
		want       domain.DocumentType
		ok         bool
	}{
		{"NIF", "", domain.DniFront, true},
		{"dni", "back", domain.DniBack, true},
		{"DNI_BACK", "front", domain.DniFront, true},
		{" Nie ", "", domain.NieFront, true},
		{"tie", "BACK", domain.NieBack, true},
		{"Pasaporte", "back", domain.Passport, true},
		{"passport", "", domain.Passport, true},
		{"", "back", domain.Other, false},
	}
	for _, tc := range testCases {
		t.Run(tc.hint+"/"+tc.side, func(t *testing.T) {
			got, ok, err := ParseHint(tc.hint, tc.side)
			require.NoError(t, err)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}

	_, _, err := ParseHint("driving licence", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, &domain.Error{Kind: domain.KindUnsupportedDocumentType}))
}

func TestRefineWithText(t *testing.T) {
	testCases := []struct {
		name string
		in   domain.DocumentType
		text string
		want domain.DocumentType
	}{
		{"no signal defaults to dni", domain.DniFront, "NOMBRE: JUAN\n12345678Z", domain.DniFront},
		{"nie number", domain.DniFront, "NIE X1234567L", domain.NieFront},
		{"nie number without label", domain.DniFront, "Y 1234567 X", domain.NieFront},
		{"domicilio moves to back", domain.DniFront, "DOMICILIO: C/ MAYOR 1", domain.DniBack},
		{"td1 mrz moves to back", domain.DniFront, "IDESPBAA000589599<<<<<<<<<<<<<\n", domain.DniBack},
		{"nie back", domain.DniFront, "DOMICILIO\nX1234567L", domain.NieBack},
		{"passport untouched", domain.Passport, "NIE X1234567L", domain.Passport},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, RefineWithText(tc.in, tc.text))
		})
	}
}

func TestAlternate_CoversEveryType(t *testing.T) {
	for _, dt := range domain.AllDocumentTypes {
		alt := Alternate(dt)
		assert.NotEqual(t, dt, alt, "alternate of %s", dt)
	}
	assert.Equal(t, domain.DniFront, Alternate(domain.NieFront))
}
