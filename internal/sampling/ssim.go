package sampling

import (
	"image"

	"github.com/disintegration/imaging"
)

// Structural similarity over 8x8 windows of the grayscale images, averaged.
// Constants follow Wang et al.: K1=0.01, K2=0.03, L=255.
const (
	ssimWindow = 8
	ssimC1     = (0.01 * 255) * (0.01 * 255)
	ssimC2     = (0.03 * 255) * (0.03 * 255)
)

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			gray.Set(x-b.Min.X, y-b.Min.Y, img.At(x, y))
		}
	}
	return gray
}

// ssim computes the mean structural similarity of two grayscale images. The
// second image is resized to the first image's shape when they differ.
func ssim(a, b *image.Gray) float64 {
	aw, ah := a.Bounds().Dx(), a.Bounds().Dy()
	if bw, bh := b.Bounds().Dx(), b.Bounds().Dy(); bw != aw || bh != ah {
		b = toGray(imaging.Resize(b, aw, ah, imaging.Linear))
	}

	var total float64
	var windows int
	for wy := 0; wy+ssimWindow <= ah; wy += ssimWindow {
		for wx := 0; wx+ssimWindow <= aw; wx += ssimWindow {
			total += windowSSIM(a, b, wx, wy)
			windows++
		}
	}
	if windows == 0 {
		// Image smaller than one window; fall back to the full area.
		return windowArea(a, b, 0, 0, aw, ah)
	}
	return total / float64(windows)
}

func windowSSIM(a, b *image.Gray, wx, wy int) float64 {
	return windowArea(a, b, wx, wy, ssimWindow, ssimWindow)
}

func windowArea(a, b *image.Gray, wx, wy, w, h int) float64 {
	n := float64(w * h)
	if n == 0 {
		return 1
	}

	var sumA, sumB float64
	for y := wy; y < wy+h; y++ {
		for x := wx; x < wx+w; x++ {
			sumA += float64(a.GrayAt(x, y).Y)
			sumB += float64(b.GrayAt(x, y).Y)
		}
	}
	muA := sumA / n
	muB := sumB / n

	var varA, varB, cov float64
	for y := wy; y < wy+h; y++ {
		for x := wx; x < wx+w; x++ {
			da := float64(a.GrayAt(x, y).Y) - muA
			db := float64(b.GrayAt(x, y).Y) - muB
			varA += da * da
			varB += db * db
			cov += da * db
		}
	}
	varA /= n
	varB /= n
	cov /= n

	num := (2*muA*muB + ssimC1) * (2*cov + ssimC2)
	den := (muA*muA + muB*muB + ssimC1) * (varA + varB + ssimC2)
	return num / den
}
