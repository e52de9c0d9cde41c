package normalize

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"math"
)

var errEmptyDocument = errors.New("document has no pages")

const (
	white = 255
	black = 0

	// Skew search range and resolution, in degrees. Scans beyond a few
	// degrees are feeders' misfeeds, not skew, and OCR can't recover them
	// by rotation alone.
	maxSkewDegrees  = 5.0
	skewStepDegrees = 0.25
)

func toGrayscale(src image.Image) *image.Gray {
	if gray, ok := src.(*image.Gray); ok {
		return gray
	}

	bounds := src.Bounds()
	gray := image.NewGray(bounds)
	draw.Draw(gray, bounds, src, bounds.Min, draw.Src)
	return gray
}

// medianDenoise applies a 3x3 median filter to knock out salt-and-pepper
// speckle before thresholding.
func medianDenoise(src *image.Gray) *image.Gray {
	bounds := src.Bounds()
	dst := image.NewGray(bounds)

	var window [9]uint8
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			n := 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					px, py := x+dx, y+dy
					if px < bounds.Min.X || px >= bounds.Max.X || py < bounds.Min.Y || py >= bounds.Max.Y {
						continue
					}
					window[n] = src.GrayAt(px, py).Y
					n++
				}
			}
			dst.SetGray(x, y, color.Gray{Y: medianOf(window[:n])})
		}
	}

	return dst
}

func medianOf(values []uint8) uint8 {
	// Insertion sort; the window never exceeds 9 values.
	for i := 1; i < len(values); i++ {
		for j := i; j > 0 && values[j-1] > values[j]; j-- {
			values[j-1], values[j] = values[j], values[j-1]
		}
	}
	return values[len(values)/2]
}

// otsuBinarize thresholds the page with Otsu's method, which picks the
// threshold minimizing intra-class variance of the histogram. Handles
// varying scan contrast better than a fixed cutoff.
func otsuBinarize(src *image.Gray) *image.Gray {
	threshold := otsuThreshold(src)

	bounds := src.Bounds()
	dst := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if src.GrayAt(x, y).Y > threshold {
				dst.SetGray(x, y, color.Gray{Y: white})
			}
		}
	}
	return dst
}

func otsuThreshold(src *image.Gray) uint8 {
	var histogram [256]int
	bounds := src.Bounds()
	total := bounds.Dx() * bounds.Dy()
	if total == 0 {
		return 127
	}

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			histogram[src.GrayAt(x, y).Y]++
		}
	}

	var sum float64
	for level, count := range histogram {
		sum += float64(level) * float64(count)
	}

	var sumBackground, weightBackground float64
	var bestVariance float64
	var bestThreshold uint8

	for level := 0; level < 256; level++ {
		weightBackground += float64(histogram[level])
		if weightBackground == 0 {
			continue
		}
		weightForeground := float64(total) - weightBackground
		if weightForeground == 0 {
			break
		}

		sumBackground += float64(level) * float64(histogram[level])
		meanBackground := sumBackground / weightBackground
		meanForeground := (sum - sumBackground) / weightForeground

		diff := meanBackground - meanForeground
		variance := weightBackground * weightForeground * diff * diff
		if variance > bestVariance {
			bestVariance = variance
			bestThreshold = uint8(level)
		}
	}

	return bestThreshold
}

// detectSkew estimates the page rotation in degrees using a projection
// profile: the angle whose sheared row histogram has the sharpest peaks is
// the angle at which text baselines align.
func detectSkew(src *image.Gray) float64 {
	bounds := src.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return 0
	}

	// Sample the ink pixels once; shearing reuses them per candidate angle.
	type point struct{ x, y int }
	var ink []point
	step := 1 + (bounds.Dx()*bounds.Dy())/500000
	for y := bounds.Min.Y; y < bounds.Max.Y; y += step {
		for x := bounds.Min.X; x < bounds.Max.X; x += step {
			if src.GrayAt(x, y).Y == black {
				ink = append(ink, point{x, y})
			}
		}
	}
	if len(ink) == 0 {
		return 0
	}

	bestAngle := 0.0
	bestScore := 0.0
	baseline := 0.0

	rows := make([]int, bounds.Dy()+int(2*maxSkewDegrees*math.Pi/180*float64(bounds.Dx()))+2)
	for angle := -maxSkewDegrees; angle <= maxSkewDegrees; angle += skewStepDegrees {
		shear := math.Tan(angle * math.Pi / 180)

		for i := range rows {
			rows[i] = 0
		}
		offset := 0.0
		if shear < 0 {
			offset = -shear * float64(bounds.Dx())
		}
		for _, p := range ink {
			row := int(float64(p.y-bounds.Min.Y) + shear*float64(p.x-bounds.Min.X) + offset)
			if row >= 0 && row < len(rows) {
				rows[row]++
			}
		}

		score := 0.0
		for _, count := range rows {
			score += float64(count) * float64(count)
		}

		if angle == 0 {
			baseline = score
		}
		if score > bestScore {
			bestScore = score
			bestAngle = angle
		}
	}

	// Only correct when the best angle clearly beats the unrotated page;
	// near-ties on clean scans would just resample the image for nothing.
	if bestAngle == 0 || bestScore < baseline*1.02 {
		return 0
	}

	return bestAngle
}

// rotate rotates the page around its center by the given angle in degrees,
// filling uncovered corners with white.
func rotate(src *image.Gray, degrees float64) *image.Gray {
	bounds := src.Bounds()
	dst := image.NewGray(bounds)

	radians := degrees * math.Pi / 180
	sin, cos := math.Sin(radians), math.Cos(radians)
	cx := float64(bounds.Min.X) + float64(bounds.Dx())/2
	cy := float64(bounds.Min.Y) + float64(bounds.Dy())/2

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			// Inverse mapping with nearest-neighbor sampling keeps the
			// binarized page strictly black and white.
			dx := float64(x) - cx
			dy := float64(y) - cy
			sx := int(math.Round(cx + dx*cos + dy*sin))
			sy := int(math.Round(cy - dx*sin + dy*cos))

			value := uint8(white)
			if sx >= bounds.Min.X && sx < bounds.Max.X && sy >= bounds.Min.Y && sy < bounds.Max.Y {
				value = src.GrayAt(sx, sy).Y
			}
			dst.SetGray(x, y, color.Gray{Y: value})
		}
	}

	return dst
}
