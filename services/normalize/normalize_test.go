package normalize

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/paperbase/paperbase/config"
	"github.com/paperbase/paperbase/logger"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/tiff"
)

type fakeRasterizer struct {
	pages []image.Image
	err   error
}

func (f *fakeRasterizer) Rasterize(_ context.Context, _ []byte, _ int) ([]image.Image, error) {
	return f.pages, f.err
}

func newTestNormalizer(t *testing.T, rasterizer Rasterizer) *Normalizer {
	t.Setenv("ENV", "test")

	cfg, err := config.Load("test")
	require.NoError(t, err, "could not load config")

	return New(logger.New(), cfg, rasterizer)
}

func testPage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.White)
		}
	}
	// A dark band stands in for a line of text.
	for y := height / 2; y < height/2+3 && y < height; y++ {
		for x := 2; x < width-2; x++ {
			img.Set(x, y, color.Black)
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestNormalizeRasterFormats(t *testing.T) {
	normalizer := newTestNormalizer(t, &fakeRasterizer{})
	src := testPage(60, 40)

	var pngBuf, jpegBuf, tiffBuf bytes.Buffer
	require.NoError(t, png.Encode(&pngBuf, src))
	require.NoError(t, jpeg.Encode(&jpegBuf, src, nil))
	require.NoError(t, tiff.Encode(&tiffBuf, src, nil))

	testCases := []struct {
		name   string
		data   []byte
		format string
	}{
		{name: "PNG", data: pngBuf.Bytes(), format: "png"},
		{name: "JPEG", data: jpegBuf.Bytes(), format: "jpg"},
		{name: "JPEG long extension", data: jpegBuf.Bytes(), format: "jpeg"},
		{name: "TIFF", data: tiffBuf.Bytes(), format: "tiff"},
		{name: "TIFF short extension", data: tiffBuf.Bytes(), format: "tif"},
		{name: "Uppercase format", data: pngBuf.Bytes(), format: "PNG"},
		{name: "Format with leading dot", data: pngBuf.Bytes(), format: ".png"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			assert := require.New(t)

			pages, err := normalizer.Normalize(context.Background(), testCase.data, testCase.format)
			assert.NoError(err)
			assert.Len(pages, 1, "raster input should produce a single page")
			assert.Equal(0, pages[0].Index)
			assert.Equal(src.Bounds(), pages[0].Image.Bounds())
		})
	}
}

func TestNormalizePDFPagesKeepOrder(t *testing.T) {
	assert := require.New(t)

	rasterizer := &fakeRasterizer{pages: []image.Image{
		testPage(50, 30),
		testPage(50, 30),
		testPage(50, 30),
	}}
	normalizer := newTestNormalizer(t, rasterizer)

	pages, err := normalizer.Normalize(context.Background(), []byte("%PDF-stub"), "pdf")
	assert.NoError(err)
	assert.Len(pages, 3)
	for i, page := range pages {
		assert.Equal(i, page.Index, "page indexes should be strictly increasing")
	}
}

func TestNormalizeErrors(t *testing.T) {
	testCases := []struct {
		name       string
		rasterizer Rasterizer
		data       []byte
		format     string
		expected   error
	}{
		{
			name:       "Unsupported format",
			rasterizer: &fakeRasterizer{},
			data:       []byte("anything"),
			format:     "bmp",
			expected:   ErrUnsupportedFormat,
		},
		{
			name:       "Corrupt png",
			rasterizer: &fakeRasterizer{},
			data:       []byte("not an image"),
			format:     "png",
			expected:   ErrCorruptInput,
		},
		{
			name:       "Rasterizer failure",
			rasterizer: &fakeRasterizer{err: errors.New("broken xref table")},
			data:       []byte("%PDF-stub"),
			format:     "pdf",
			expected:   ErrCorruptInput,
		},
		{
			name:       "PDF with no pages",
			rasterizer: &fakeRasterizer{},
			data:       []byte("%PDF-stub"),
			format:     "pdf",
			expected:   ErrCorruptInput,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			assert := require.New(t)
			normalizer := newTestNormalizer(t, testCase.rasterizer)

			_, err := normalizer.Normalize(context.Background(), testCase.data, testCase.format)
			assert.ErrorIs(err, testCase.expected)
		})
	}
}

func TestNormalizeOutputIsBinarized(t *testing.T) {
	assert := require.New(t)
	normalizer := newTestNormalizer(t, &fakeRasterizer{})

	pages, err := normalizer.Normalize(context.Background(), encodePNG(t, testPage(60, 40)), "png")
	assert.NoError(err)

	bounds := pages[0].Image.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			value := pages[0].Image.GrayAt(x, y).Y
			assert.True(value == black || value == white, "binarized page should only hold black or white, got %d", value)
		}
	}
}

func TestOtsuThresholdSeparatesBimodalImage(t *testing.T) {
	assert := require.New(t)

	img := image.NewGray(image.Rect(0, 0, 20, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			if x < 10 {
				img.SetGray(x, y, color.Gray{Y: 30})
			} else {
				img.SetGray(x, y, color.Gray{Y: 220})
			}
		}
	}

	threshold := otsuThreshold(img)
	assert.Greater(threshold, uint8(30))
	assert.Less(threshold, uint8(220))
}

func TestMedianOf(t *testing.T) {
	assert := require.New(t)

	assert.Equal(uint8(5), medianOf([]uint8{9, 1, 5}))
	assert.Equal(uint8(3), medianOf([]uint8{3, 3, 3, 3}))
	assert.Equal(uint8(4), medianOf([]uint8{0, 255, 4, 2, 200}))
}

func TestDetectSkewOnBlankPage(t *testing.T) {
	assert := require.New(t)

	blank := image.NewGray(image.Rect(0, 0, 40, 40))
	for y := 0; y < 40; y++ {
		for x := 0; x < 40; x++ {
			blank.SetGray(x, y, color.Gray{Y: white})
		}
	}

	assert.Zero(detectSkew(blank), "a blank page has no skew to correct")
}

func TestRotatePreservesBounds(t *testing.T) {
	assert := require.New(t)

	src := toGrayscale(testPage(50, 30))
	rotated := rotate(src, 2.5)

	assert.Equal(src.Bounds(), rotated.Bounds())
}
