package image

import (
	"image"
	"image/color"
	"math"
	"sort"

	"github.com/disintegration/imaging"

	"github.com/guillermolam/alberguecarcalejo-sub000/internal/config"
)

// Skew detection runs on a downscaled copy; documents are assumed near-upright.
const (
	skewMaxSide   = 800
	houghMaxLines = 64
)

type houghPeak struct {
	theta, rho, votes int
}

// SobelEdges returns a binary edge map: true where the Sobel gradient magnitude
// reaches threshold.
func SobelEdges(g *image.Gray, threshold float64) []bool {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	edges := make([]bool, w*h)
	at := func(x, y int) float64 { return float64(g.Pix[y*g.Stride+x]) }
	t2 := threshold * threshold
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			gx := at(x+1, y-1) + 2*at(x+1, y) + at(x+1, y+1) -
				at(x-1, y-1) - 2*at(x-1, y) - at(x-1, y+1)
			gy := at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1) -
				at(x-1, y-1) - 2*at(x, y-1) - at(x+1, y-1)
			if gx*gx+gy*gy >= t2 {
				edges[y*w+x] = true
			}
		}
	}
	return edges
}

// houghLines accumulates edge votes over (theta, rho) with 1 degree and 1 pixel
// bins and returns peaks with at least minVotes, strongest first, keeping only
// peaks farther than radius from every stronger accepted peak.
func houghLines(edges []bool, w, h, minVotes, radius int) []houghPeak {
	diag := int(math.Ceil(math.Hypot(float64(w), float64(h))))
	nRho := 2*diag + 1
	var cosT, sinT [180]float64
	for t := 0; t < 180; t++ {
		rad := float64(t) * math.Pi / 180
		cosT[t], sinT[t] = math.Cos(rad), math.Sin(rad)
	}

	acc := make([]int, 180*nRho)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !edges[y*w+x] {
				continue
			}
			for t := 0; t < 180; t++ {
				rho := int(math.Round(float64(x)*cosT[t]+float64(y)*sinT[t])) + diag
				acc[t*nRho+rho]++
			}
		}
	}

	var candidates []houghPeak
	for t := 0; t < 180; t++ {
		for r := 0; r < nRho; r++ {
			if v := acc[t*nRho+r]; v >= minVotes {
				candidates = append(candidates, houghPeak{theta: t, rho: r - diag, votes: v})
			}
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].votes > candidates[j].votes })

	var peaks []houghPeak
	for _, c := range candidates {
		suppressed := false
		for _, p := range peaks {
			dt := abs(c.theta - p.theta)
			dt = min(dt, 180-dt)
			if dt <= radius && abs(c.rho-p.rho) <= radius {
				suppressed = true
				break
			}
		}
		if suppressed {
			continue
		}
		peaks = append(peaks, c)
		if len(peaks) == houghMaxLines {
			break
		}
	}
	return peaks
}

// DetectSkew estimates document rotation in degrees. Positive values mean the
// content is rotated clockwise. The result is always within [-MaxSkew, MaxSkew].
func DetectSkew(g *image.Gray, cfg config.ImageConfig) float64 {
	src := g
	if w, h := g.Rect.Dx(), g.Rect.Dy(); max(w, h) > skewMaxSide {
		if w >= h {
			src = fromNRGBA(imaging.Resize(g, skewMaxSide, 0, imaging.Box))
		} else {
			src = fromNRGBA(imaging.Resize(g, 0, skewMaxSide, imaging.Box))
		}
	}
	w, h := src.Rect.Dx(), src.Rect.Dy()
	edges := SobelEdges(src, cfg.EdgeThreshold)
	peaks := houghLines(edges, w, h, cfg.HoughVotes, cfg.HoughSuppression)

	// theta is the angle of the line normal, so horizontal lines sit at 90.
	var sum float64
	var n int
	for _, p := range peaks {
		if p.theta < 45 || p.theta > 135 {
			continue
		}
		sum += float64(p.theta - 90)
		n++
	}
	if n == 0 {
		return 0
	}
	return ClampSkew(sum/float64(n), cfg.MaxSkew)
}

// ClampSkew limits angle to [-limit, limit]. NaN is treated as no skew.
func ClampSkew(angle, limit float64) float64 {
	if math.IsNaN(angle) {
		return 0
	}
	return math.Max(-limit, math.Min(limit, angle))
}

// Deskew undoes a clockwise skew. imaging rotates counter-clockwise with bilinear
// interpolation; exposed corners are filled with white.
func Deskew(img image.Image, skew float64) *image.NRGBA {
	return imaging.Rotate(img, skew, color.White)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
