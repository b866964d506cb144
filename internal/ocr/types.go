package ocr

import (
	"context"
	"image"
)

// Engine recognizes text in a preprocessed monochrome image. Implementations are
// not safe for concurrent use; hand them out through a Pool.
type Engine interface {
	Name() string
	ExtractText(ctx context.Context, img *image.Gray) (string, error)
	ExtractTextWithConfidence(ctx context.Context, img *image.Gray) (string, float64, error)
	Close() error
}

// TextReader is the part of an engine the extraction stages need.
type TextReader interface {
	ExtractText(ctx context.Context, img *image.Gray) (string, error)
	ExtractTextWithConfidence(ctx context.Context, img *image.Gray) (string, float64, error)
}
