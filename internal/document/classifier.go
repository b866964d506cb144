// Package document decides which document family governs field extraction.
// The geometry heuristics are deliberately low precision; extraction re-tries the
// alternate family when the primary one yields almost nothing.
package document

import (
	"image"
	"regexp"
	"strings"

	"github.com/guillermolam/alberguecarcalejo-sub000/internal/config"
	"github.com/guillermolam/alberguecarcalejo-sub000/internal/domain"
)

// minContrast is the grayscale spread below which an image is treated as featureless.
const minContrast = 24

var hintSynonyms = map[string]domain.DocumentType{
	"dni":       domain.DniFront,
	"nif":       domain.DniFront,
	"dni_front": domain.DniFront,
	"dni-front": domain.DniFront,
	"dnifront":  domain.DniFront,
	"dni_back":  domain.DniBack,
	"dni-back":  domain.DniBack,
	"dniback":   domain.DniBack,
	"nie":       domain.NieFront,
	"tie":       domain.NieFront,
	"nie_front": domain.NieFront,
	"nie-front": domain.NieFront,
	"niefront":  domain.NieFront,
	"nie_back":  domain.NieBack,
	"nie-back":  domain.NieBack,
	"nieback":   domain.NieBack,
	"passport":  domain.Passport,
	"pasaporte": domain.Passport,
	"pass":      domain.Passport,
	"other":     domain.Other,
	"otro":      domain.Other,
}

// ParseHint maps a caller-supplied type hint and optional side hint to a DocumentType.
// An empty hint returns ok=false. A side of "back" turns a front type into its back.
func ParseHint(hint, side string) (t domain.DocumentType, ok bool, err error) {
	key := strings.ToLower(strings.TrimSpace(hint))
	if key == "" {
		return domain.Other, false, nil
	}
	t, found := hintSynonyms[key]
	if !found {
		return domain.Other, false, domain.UnsupportedDocumentTypeError(hint)
	}
	return ApplySide(t, side), true, nil
}

// ApplySide turns t into its back or front when side names one. Other sides,
// including "", leave t unchanged.
func ApplySide(t domain.DocumentType, side string) domain.DocumentType {
	switch strings.ToLower(strings.TrimSpace(side)) {
	case "back", "reverso", "trasera":
		return t.Back()
	case "front", "anverso", "frontal":
		return t.Front()
	}
	return t
}

// Classifier applies the geometry heuristics.
type Classifier struct {
	cfg config.ClassifierConfig
}

func NewClassifier(cfg config.ClassifierConfig) *Classifier {
	return &Classifier{cfg: cfg}
}

// Classify decides the document type from the binary image (0 = ink) and the
// grayscale image used for the featureless check.
func (c *Classifier) Classify(binary, gray *image.Gray) domain.DocumentType {
	w, h := binary.Rect.Dx(), binary.Rect.Dy()
	if w == 0 || h == 0 || featureless(gray) {
		return domain.Other
	}
	ratio := float64(w) / float64(h)

	if ratio >= c.cfg.PassportMinRatio && ratio <= c.cfg.PassportMaxRatio && c.hasMRZBand(binary) {
		return domain.Passport
	}
	if ratio >= c.cfg.IDMinRatio && ratio <= c.cfg.IDMaxRatio {
		return domain.DniFront
	}
	return domain.Other
}

// hasMRZBand reports whether the bottom quarter holds enough rows with a long
// horizontal run of dark pixels.
func (c *Classifier) hasMRZBand(binary *image.Gray) bool {
	w, h := binary.Rect.Dx(), binary.Rect.Dy()
	rows := 0
	for y := h - h/4; y < h; y++ {
		run := 0
		row := binary.Pix[y*binary.Stride : y*binary.Stride+w]
		for _, v := range row {
			if v <= c.cfg.DarkLevel {
				run++
				if run >= c.cfg.MRZMinRun {
					break
				}
			} else {
				run = 0
			}
		}
		if run >= c.cfg.MRZMinRun {
			rows++
			if rows >= c.cfg.MRZMinRows {
				return true
			}
		}
	}
	return false
}

func featureless(gray *image.Gray) bool {
	if gray == nil {
		return false
	}
	w, h := gray.Rect.Dx(), gray.Rect.Dy()
	lo, hi := uint8(255), uint8(0)
	for y := 0; y < h; y++ {
		for _, v := range gray.Pix[y*gray.Stride : y*gray.Stride+w] {
			lo = min(lo, v)
			hi = max(hi, v)
		}
	}
	return int(hi)-int(lo) < minContrast
}

var (
	nieNumberRe = regexp.MustCompile(`\b[XYZ][\s-]?\d{7}[\s-]?[A-Z]\b`)
	nieLabelRe  = regexp.MustCompile(`\b(?:N\.?I\.?E\.?|T\.?I\.?E\.?|PERMISO DE RESIDENCIA|RESIDENCE PERMIT)\b`)
	backLabelRe = regexp.MustCompile(`\b(?:DOMICILIO|LUGAR DE NACIMIENTO|HIJO\s*/A DE|EQUIPO)\b`)
	mrzIDRe     = regexp.MustCompile(`(?m)^I[D<]ESP`)
)

// RefineWithText uses recognized text to separate NIE from DNI and front from back.
// Without a confident signal the input type is kept, so Spanish IDs default to DNI.
func RefineWithText(t domain.DocumentType, text string) domain.DocumentType {
	if t != domain.DniFront && t != domain.DniBack && t != domain.NieFront && t != domain.NieBack {
		return t
	}
	upper := strings.ToUpper(text)
	if nieNumberRe.MatchString(upper) || nieLabelRe.MatchString(upper) {
		t = t.AsNIE()
	}
	if t.IsFront() && (backLabelRe.MatchString(upper) || mrzIDRe.MatchString(upper)) {
		t = t.Back()
	}
	return t
}

// Alternate is the family re-tried when extraction with t scores near zero.
func Alternate(t domain.DocumentType) domain.DocumentType {
	switch t {
	case domain.DniFront:
		return domain.NieFront
	case domain.NieFront:
		return domain.DniFront
	case domain.DniBack:
		return domain.NieBack
	case domain.NieBack:
		return domain.DniBack
	case domain.Passport:
		return domain.DniFront
	case domain.Other:
		return domain.DniFront
	}
	return domain.Other
}
