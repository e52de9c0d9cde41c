package ocr

import (
	"context"
	"image"
)

// Result is the recognition output for a single page image. Confidence is
// in [0, 1]; a blank page yields empty text with zero confidence rather
// than an error.
type Result struct {
	Text       string
	Confidence float64
}

// Engine is the recognition capability contract: one page image in, one
// result out. The pipeline treats the engine as a black box so any backend
// can substitute for the default Tesseract one.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, img image.Image) (Result, error)
}
