package normalize

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"image/png"
	"strings"

	"github.com/paperbase/paperbase/config"
	"github.com/paperbase/paperbase/logger"
	"golang.org/x/image/tiff"
)

// Normalizer converts raw uploads into a uniform sequence of grayscale,
// denoised, binarized, deskewed page images ready for OCR.
type Normalizer struct {
	logger     logger.Logger
	rasterizer Rasterizer
	dpi        int
}

// Page is a single normalized page image. Index is the canonical reading
// order within the document.
type Page struct {
	Index int
	Image *image.Gray
}

func New(logger logger.Logger, cfg *config.Config, rasterizer Rasterizer) *Normalizer {
	return &Normalizer{
		logger:     logger,
		rasterizer: rasterizer,
		dpi:        cfg.GetRasterDPI(),
	}
}

// Normalize produces ordered normalized pages from the raw file bytes.
// PDF input yields one page per PDF page; raster input yields one page.
func (n *Normalizer) Normalize(ctx context.Context, data []byte, format string) ([]Page, error) {
	format = canonicalFormat(format)

	var sources []image.Image

	switch format {
	case "pdf":
		rasterized, err := n.rasterizer.Rasterize(ctx, data, n.dpi)
		if err != nil {
			n.logger.Error("failed to rasterize pdf", "err", err.Error())
			return nil, &CorruptInputError{Format: format, Err: err}
		}
		sources = rasterized
	case "jpg", "jpeg", "png", "tiff", "tif":
		img, err := decodeRaster(data, format)
		if err != nil {
			n.logger.Error("failed to decode image", "format", format, "err", err.Error())
			return nil, &CorruptInputError{Format: format, Err: err}
		}
		sources = []image.Image{img}
	default:
		return nil, &UnsupportedFormatError{Format: format}
	}

	if len(sources) == 0 {
		return nil, &CorruptInputError{Format: format, Err: errEmptyDocument}
	}

	pages := make([]Page, 0, len(sources))
	for i, src := range sources {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		pages = append(pages, Page{Index: i, Image: n.normalizePage(src)})
	}

	return pages, nil
}

// normalizePage applies the preprocessing chain in a fixed order:
// grayscale, denoise, binarize, deskew.
func (n *Normalizer) normalizePage(src image.Image) *image.Gray {
	gray := toGrayscale(src)
	gray = medianDenoise(gray)
	gray = otsuBinarize(gray)

	skew := detectSkew(gray)
	if skew != 0 {
		gray = rotate(gray, -skew)
	}

	return gray
}

func canonicalFormat(format string) string {
	format = strings.ToLower(strings.TrimSpace(format))
	return strings.TrimPrefix(format, ".")
}

func decodeRaster(data []byte, format string) (image.Image, error) {
	reader := bytes.NewReader(data)

	switch format {
	case "jpg", "jpeg":
		return jpeg.Decode(reader)
	case "png":
		return png.Decode(reader)
	default:
		return tiff.Decode(reader)
	}
}
