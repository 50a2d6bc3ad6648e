package imaging

import (
	"image"

	"golang.org/x/image/draw"
)

// ToGray converts an image to 8-bit grayscale (ITU-R BT.601 luma) with origin (0, 0).
func ToGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Bounds().Min == (image.Point{}) {
		return g
	}
	bounds := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(gray, gray.Bounds(), img, bounds.Min, draw.Src)
	return gray
}

// MeanBrightness returns the mean gray level (0-255) over the whole image.
func MeanBrightness(gray *image.Gray) float64 {
	bounds := gray.Bounds()
	n := bounds.Dx() * bounds.Dy()
	if n == 0 {
		return 0
	}

	var sum uint64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		row := gray.Pix[gray.PixOffset(bounds.Min.X, y):gray.PixOffset(bounds.Max.X, y)]
		for _, v := range row {
			sum += uint64(v)
		}
	}
	return float64(sum) / float64(n)
}

// LaplacianVariance computes the variance of the 3x3 Laplacian response over rect,
// a standard blur metric: low values mean few edges, i.e. a blurry region.
// The region is clamped to the image; borders are reflected (reflect-101).
// Returns 0 and false when the clamped region is empty.
func LaplacianVariance(gray *image.Gray, rect image.Rectangle) (float64, bool) {
	rect = rect.Intersect(gray.Bounds())
	w, h := rect.Dx(), rect.Dy()
	if w <= 0 || h <= 0 {
		return 0, false
	}

	at := func(x, y int) float64 {
		return float64(gray.Pix[gray.PixOffset(rect.Min.X+reflect101(x, w), rect.Min.Y+reflect101(y, h))])
	}

	var sum, sumSq float64
	for y := range h {
		for x := range w {
			lap := at(x, y-1) + at(x-1, y) + at(x+1, y) + at(x, y+1) - 4*at(x, y)
			sum += lap
			sumSq += lap * lap
		}
	}

	n := float64(w * h)
	mean := sum / n
	return sumSq/n - mean*mean, true
}

// reflect101 maps an out-of-range index back into [0, n) without repeating the edge.
func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		}
		if i >= n {
			i = 2*(n-1) - i
		}
	}
	return i
}
