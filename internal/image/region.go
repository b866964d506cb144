package image

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/guillermolam/alberguecarcalejo-sub000/internal/config"
)

// Crop cuts the fractional region r out of g. The result has a zero origin and is
// at least one pixel in each dimension.
func Crop(g *image.Gray, r config.Region) *image.Gray {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	x0 := clampInt(int(r.X0*float64(w)), 0, w-1)
	y0 := clampInt(int(r.Y0*float64(h)), 0, h-1)
	x1 := clampInt(int(r.X1*float64(w)), x0+1, w)
	y1 := clampInt(int(r.Y1*float64(h)), y0+1, h)
	rect := image.Rect(x0, y0, x1, y1).Add(g.Rect.Min)
	return fromNRGBA(imaging.Crop(g, rect))
}

// EncodePNG encodes g for OCR engines that take encoded bytes.
func EncodePNG(g image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, g, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encoding png: %w", err)
	}
	return buf.Bytes(), nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
