package image

import (
	"image"
	"sort"

	"github.com/disintegration/imaging"
	"golang.org/x/sync/errgroup"
)

const (
	ink        = 0
	background = 255
)

// parallelRows calls fn over disjoint row ranges covering [0, height).
// Output is identical for any worker count because each row is written once.
func parallelRows(height, workers int, fn func(y0, y1 int)) {
	if workers <= 1 || height < workers*16 {
		fn(0, height)
		return
	}
	var g errgroup.Group
	chunk := (height + workers - 1) / workers
	for y0 := 0; y0 < height; y0 += chunk {
		y1 := min(y0+chunk, height)
		g.Go(func() error {
			fn(y0, y1)
			return nil
		})
	}
	_ = g.Wait()
}

// Grayscale converts img to a zero-origin single channel luminance image.
func Grayscale(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Rect.Min == (image.Point{}) {
		return g
	}
	return fromNRGBA(imaging.Grayscale(img))
}

// fromNRGBA keeps the red channel of an already gray NRGBA image.
func fromNRGBA(src *image.NRGBA) *image.Gray {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	dst := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		row := src.Pix[y*src.Stride:]
		out := dst.Pix[y*dst.Stride:]
		for x := 0; x < w; x++ {
			out[x] = row[x*4]
		}
	}
	return dst
}

func newLike(g *image.Gray) *image.Gray {
	return image.NewGray(image.Rect(0, 0, g.Rect.Dx(), g.Rect.Dy()))
}

// GaussianBlur applies a light Gaussian blur. sigma <= 0 returns a copy.
func GaussianBlur(g *image.Gray, sigma float64) *image.Gray {
	if sigma <= 0 {
		return fromNRGBA(imaging.Clone(g))
	}
	return fromNRGBA(imaging.Blur(g, sigma))
}

// Median3x3 replaces each pixel with the median of its in-bounds 3x3 neighbourhood.
func Median3x3(g *image.Gray, workers int) *image.Gray {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	dst := newLike(g)
	parallelRows(h, workers, func(y0, y1 int) {
		window := make([]int, 0, 9)
		for y := y0; y < y1; y++ {
			for x := 0; x < w; x++ {
				window = window[:0]
				for dy := -1; dy <= 1; dy++ {
					for dx := -1; dx <= 1; dx++ {
						nx, ny := x+dx, y+dy
						if nx < 0 || ny < 0 || nx >= w || ny >= h {
							continue
						}
						window = append(window, int(g.Pix[ny*g.Stride+nx]))
					}
				}
				sort.Ints(window)
				dst.Pix[y*dst.Stride+x] = uint8(window[len(window)/2])
			}
		}
	})
	return dst
}

// StretchContrast maps [min, max] linearly onto [0, 255]. A flat image is returned unchanged.
func StretchContrast(g *image.Gray) *image.Gray {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	lo, hi := uint8(255), uint8(0)
	for y := 0; y < h; y++ {
		for _, v := range g.Pix[y*g.Stride : y*g.Stride+w] {
			lo = min(lo, v)
			hi = max(hi, v)
		}
	}
	dst := newLike(g)
	span := int(hi) - int(lo)
	for y := 0; y < h; y++ {
		src := g.Pix[y*g.Stride : y*g.Stride+w]
		out := dst.Pix[y*dst.Stride:]
		for x, v := range src {
			if span == 0 {
				out[x] = v
				continue
			}
			out[x] = uint8((int(v) - int(lo)) * 255 / span)
		}
	}
	return dst
}

// Histogram counts pixel intensities.
func Histogram(g *image.Gray) [256]int {
	var hist [256]int
	w, h := g.Rect.Dx(), g.Rect.Dy()
	for y := 0; y < h; y++ {
		for _, v := range g.Pix[y*g.Stride : y*g.Stride+w] {
			hist[v]++
		}
	}
	return hist
}

// OtsuThreshold returns the intensity that maximizes the between-class variance
// of hist. Ties resolve to the lowest threshold.
func OtsuThreshold(hist [256]int) uint8 {
	var total, sumAll float64
	for i, n := range hist {
		total += float64(n)
		sumAll += float64(i * n)
	}
	if total == 0 {
		return 0
	}

	var sumB, weightB, best float64
	threshold := 0
	for t := 0; t < 256; t++ {
		weightB += float64(hist[t])
		if weightB == 0 {
			continue
		}
		weightF := total - weightB
		if weightF == 0 {
			break
		}
		sumB += float64(t * hist[t])
		meanB := sumB / weightB
		meanF := (sumAll - sumB) / weightF
		between := weightB * weightF * (meanB - meanF) * (meanB - meanF)
		if between > best {
			best = between
			threshold = t
		}
	}
	return uint8(threshold)
}

// BetweenClassVariance is the Otsu objective for threshold t.
func BetweenClassVariance(hist [256]int, t uint8) float64 {
	var wB, wF, sB, sF float64
	for i, n := range hist {
		if i <= int(t) {
			wB += float64(n)
			sB += float64(i * n)
		} else {
			wF += float64(n)
			sF += float64(i * n)
		}
	}
	if wB == 0 || wF == 0 {
		return 0
	}
	d := sB/wB - sF/wF
	return wB * wF * d * d
}

// Binarize maps pixels <= t to ink and the rest to background.
func Binarize(g *image.Gray, t uint8) *image.Gray {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	dst := newLike(g)
	for y := 0; y < h; y++ {
		out := dst.Pix[y*dst.Stride:]
		for x, v := range g.Pix[y*g.Stride : y*g.Stride+w] {
			if v <= t {
				out[x] = ink
			} else {
				out[x] = background
			}
		}
	}
	return dst
}

// AdaptiveThreshold marks a pixel as ink when it is at least bias darker than
// the mean of its (2*radius+1)^2 neighbourhood, clipped at the borders.
func AdaptiveThreshold(g *image.Gray, radius, bias, workers int) *image.Gray {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	if radius < 1 {
		radius = 1
	}
	// integral[y+1][x+1] = sum of g over [0,x]x[0,y]
	stride := w + 1
	integral := make([]int64, stride*(h+1))
	for y := 0; y < h; y++ {
		var rowSum int64
		for x := 0; x < w; x++ {
			rowSum += int64(g.Pix[y*g.Stride+x])
			integral[(y+1)*stride+x+1] = integral[y*stride+x+1] + rowSum
		}
	}

	dst := newLike(g)
	parallelRows(h, workers, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			top, bottom := max(y-radius, 0), min(y+radius, h-1)
			for x := 0; x < w; x++ {
				left, right := max(x-radius, 0), min(x+radius, w-1)
				sum := integral[(bottom+1)*stride+right+1] - integral[top*stride+right+1] -
					integral[(bottom+1)*stride+left] + integral[top*stride+left]
				count := int64((bottom - top + 1) * (right - left + 1))
				mean := sum / count
				if int64(g.Pix[y*g.Stride+x]) <= mean-int64(bias) {
					dst.Pix[y*dst.Stride+x] = ink
				} else {
					dst.Pix[y*dst.Stride+x] = background
				}
			}
		}
	})
	return dst
}
