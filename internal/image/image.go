package image

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/guillermolam/alberguecarcalejo-sub000/internal/config"
	"github.com/guillermolam/alberguecarcalejo-sub000/internal/domain"
	"github.com/guillermolam/alberguecarcalejo-sub000/internal/logger"
)

const minSide = 32

// Profile selects the noise and binarization filters.
type Profile string

const (
	// ProfileOCR uses a light Gaussian blur and adaptive thresholding so thin
	// character strokes survive.
	ProfileOCR Profile = "ocr"
	// ProfileAggressive uses a 3x3 median and a global Otsu threshold.
	ProfileAggressive Profile = "aggressive"
)

// DocumentImage is an uploaded photograph as received from the caller.
type DocumentImage struct {
	Bytes    []byte
	MIMEType string
	Width    int
	Height   int
}

// Processed is the output of the preprocessor. Binary holds 0 for ink and 255 for
// background; Gray is the deskewed grayscale image before any filtering.
type Processed struct {
	Binary *image.Gray
	Gray   *image.Gray
	Skew   float64
	Format string
}

func (p *Processed) Width() int  { return p.Binary.Rect.Dx() }
func (p *Processed) Height() int { return p.Binary.Rect.Dy() }

// Preprocessor turns a photograph into a clean binary image for OCR.
type Preprocessor struct {
	cfg     config.ImageConfig
	profile Profile
}

func NewPreprocessor(cfg config.ImageConfig) *Preprocessor {
	profile := Profile(cfg.Profile)
	if profile != ProfileAggressive {
		profile = ProfileOCR
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Preprocessor{cfg: cfg, profile: profile}
}

// Decode validates size limits and decodes the image, applying EXIF orientation.
// It fills in the decoded dimensions of doc.
func (pp *Preprocessor) Decode(doc *DocumentImage) (image.Image, string, error) {
	if len(doc.Bytes) == 0 {
		return nil, "", domain.ImageDecodeError("empty image", nil)
	}
	if pp.cfg.MaxBytes > 0 && len(doc.Bytes) > pp.cfg.MaxBytes {
		return nil, "", domain.ImageTooLargeError(
			fmt.Sprintf("image is %d bytes, limit %d", len(doc.Bytes), pp.cfg.MaxBytes), nil)
	}
	if doc.MIMEType != "" && !strings.HasPrefix(strings.ToLower(doc.MIMEType), "image/") {
		return nil, "", domain.ImageDecodeError(fmt.Sprintf("unsupported mime type %q", doc.MIMEType), nil)
	}

	imgCfg, format, err := image.DecodeConfig(bytes.NewReader(doc.Bytes))
	if err != nil {
		return nil, "", domain.ImageDecodeError("reading image header", err)
	}
	if pp.cfg.MaxPixels > 0 && imgCfg.Width*imgCfg.Height > pp.cfg.MaxPixels {
		return nil, "", domain.ImageTooLargeError(
			fmt.Sprintf("image is %dx%d pixels, limit %d", imgCfg.Width, imgCfg.Height, pp.cfg.MaxPixels), nil)
	}

	img, err := imaging.Decode(bytes.NewReader(doc.Bytes), imaging.AutoOrientation(true))
	if err != nil {
		return nil, "", domain.ImageDecodeError("decoding "+format+" image", err)
	}
	b := img.Bounds()
	if b.Dx() < minSide || b.Dy() < minSide {
		return nil, "", domain.ImageDecodeError(fmt.Sprintf("image too small: %dx%d", b.Dx(), b.Dy()), nil)
	}
	doc.Width, doc.Height = b.Dx(), b.Dy()
	return img, format, nil
}

// Process runs the full preprocessing chain: grayscale, skew correction, noise
// reduction, contrast stretch, binarization and morphological cleanup.
func (pp *Preprocessor) Process(ctx context.Context, doc *DocumentImage) (*Processed, error) {
	img, format, err := pp.Decode(doc)
	if err != nil {
		return nil, err
	}

	gray := Grayscale(img)
	skew := DetectSkew(gray, pp.cfg)
	if math.Abs(skew) > pp.cfg.MinSkew {
		logger.DebugLog("[preprocess]: correcting skew of %.2f degrees", skew)
		gray = Grayscale(Deskew(img, skew))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var smooth *image.Gray
	switch pp.profile {
	case ProfileAggressive:
		smooth = Median3x3(gray, pp.cfg.Workers)
	default:
		smooth = GaussianBlur(gray, pp.cfg.BlurSigma)
	}
	stretched := StretchContrast(smooth)

	var binary *image.Gray
	switch pp.profile {
	case ProfileAggressive:
		binary = Binarize(stretched, OtsuThreshold(Histogram(stretched)))
	default:
		binary = AdaptiveThreshold(stretched, pp.cfg.AdaptiveRadius, pp.cfg.AdaptiveBias, pp.cfg.Workers)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	binary = Close(Open(binary, pp.cfg.Workers), pp.cfg.Workers)

	logger.DebugLog("[preprocess]: %s %dx%d skew=%.2f profile=%s", format, doc.Width, doc.Height, skew, pp.profile)
	return &Processed{Binary: binary, Gray: gray, Skew: skew, Format: format}, nil
}
