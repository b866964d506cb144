package image

import "image"

// Erode shrinks ink regions: a pixel stays ink only if its whole in-bounds
// 8-neighbourhood is ink.
func Erode(g *image.Gray, workers int) *image.Gray {
	return morph(g, workers, func(v, acc uint8) uint8 { return max(v, acc) }, ink)
}

// Dilate grows ink regions: a pixel becomes ink if any 8-neighbour is ink.
func Dilate(g *image.Gray, workers int) *image.Gray {
	return morph(g, workers, func(v, acc uint8) uint8 { return min(v, acc) }, background)
}

// Open removes speckle noise (erosion then dilation).
func Open(g *image.Gray, workers int) *image.Gray {
	return Dilate(Erode(g, workers), workers)
}

// Close reconnects broken strokes (dilation then erosion).
func Close(g *image.Gray, workers int) *image.Gray {
	return Erode(Dilate(g, workers), workers)
}

func morph(g *image.Gray, workers int, combine func(v, acc uint8) uint8, start uint8) *image.Gray {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	dst := newLike(g)
	parallelRows(h, workers, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			for x := 0; x < w; x++ {
				acc := start
				for dy := -1; dy <= 1; dy++ {
					ny := y + dy
					if ny < 0 || ny >= h {
						continue
					}
					for dx := -1; dx <= 1; dx++ {
						nx := x + dx
						if nx < 0 || nx >= w {
							continue
						}
						acc = combine(g.Pix[ny*g.Stride+nx], acc)
					}
				}
				dst.Pix[y*dst.Stride+x] = acc
			}
		}
	})
	return dst
}
