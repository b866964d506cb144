package engine

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/guillermolam/alberguecarcalejo-sub000/internal/domain"
	imgproc "github.com/guillermolam/alberguecarcalejo-sub000/internal/image"
	"github.com/guillermolam/alberguecarcalejo-sub000/internal/logger"
)

// GosseractOptions configures the Tesseract client.
type GosseractOptions struct {
	Languages   []string
	Whitelist   string
	SingleBlock bool
}

// GosseractEngine wraps one Tesseract client. The client keeps state between
// calls, so an engine serves a single request at a time.
type GosseractEngine struct {
	client *gosseract.Client
}

func NewGosseractEngine(opts GosseractOptions) (*GosseractEngine, error) {
	client := gosseract.NewClient()

	langs := opts.Languages
	if len(langs) == 0 {
		langs = []string{"spa", "eng"}
	}
	if err := client.SetLanguage(langs...); err != nil {
		client.Close()
		return nil, domain.OCREngineError("engine unavailable", err)
	}

	mode := gosseract.PSM_AUTO
	if opts.SingleBlock {
		mode = gosseract.PSM_SINGLE_BLOCK
	}
	if err := client.SetPageSegMode(mode); err != nil {
		client.Close()
		return nil, domain.OCREngineError("engine unavailable", err)
	}

	if opts.Whitelist != "" {
		if err := client.SetVariable("tessedit_char_whitelist", opts.Whitelist); err != nil {
			client.Close()
			return nil, domain.OCREngineError("engine unavailable", err)
		}
	}

	logger.DebugLog("[gosseract]: tesseract %s, languages %s", gosseract.Version(), strings.Join(langs, "+"))
	return &GosseractEngine{client: client}, nil
}

func (g *GosseractEngine) Name() string {
	return "gosseract"
}

func (g *GosseractEngine) ExtractText(ctx context.Context, img *image.Gray) (string, error) {
	if err := g.setImage(ctx, img); err != nil {
		return "", err
	}
	text, err := g.client.Text()
	if err != nil {
		return "", domain.OCREngineError("recognition failed", err)
	}
	return strings.TrimSpace(text), nil
}

// ExtractTextWithConfidence returns the text with the mean word confidence in [0,1].
func (g *GosseractEngine) ExtractTextWithConfidence(ctx context.Context, img *image.Gray) (string, float64, error) {
	text, err := g.ExtractText(ctx, img)
	if err != nil {
		return "", 0, err
	}
	if text == "" {
		return "", 0, nil
	}

	boxes, err := g.client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return "", 0, domain.OCREngineError("reading word confidences", err)
	}
	return text, meanConfidence(boxes), nil
}

func (g *GosseractEngine) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

func (g *GosseractEngine) setImage(ctx context.Context, img *image.Gray) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := imgproc.EncodePNG(img)
	if err != nil {
		return domain.OCREngineError("preparing image", err)
	}
	if err := g.client.SetImageFromBytes(data); err != nil {
		return domain.OCREngineError(fmt.Sprintf("loading %dx%d image", img.Rect.Dx(), img.Rect.Dy()), err)
	}
	return nil
}

// meanConfidence averages Tesseract word confidences (0..100) into [0,1].
func meanConfidence(boxes []gosseract.BoundingBox) float64 {
	var sum float64
	n := 0
	for _, b := range boxes {
		if strings.TrimSpace(b.Word) == "" {
			continue
		}
		sum += b.Confidence
		n++
	}
	if n == 0 {
		return 0
	}
	conf := sum / float64(n) / 100
	return min(max(conf, 0), 1)
}
