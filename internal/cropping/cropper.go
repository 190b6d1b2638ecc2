package cropping

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/VibhaNavale/CS597-Automated-Visual-Tech-Support/internal/domain/entity"
	"github.com/disintegration/imaging"
	"go.uber.org/zap"
)

// Canonical size band for cropped UI screens.
const (
	minWidth  = 200
	minHeight = 300
	maxWidth  = 1200
	maxHeight = 1800
)

// Cropper isolates the device-screen region of each sampled frame. Portrait
// recordings already fill the frame with the phone screen and get a minimal
// centered crop; landscape recordings carry bezel and desk margins on the
// sides and get a tighter horizontal crop.
type Cropper struct {
	jpegQuality int
	logger      *zap.Logger
}

func New(logger *zap.Logger) *Cropper {
	return &Cropper{jpegQuality: 95, logger: logger}
}

// screenRect computes the centered crop rectangle for a frame.
func screenRect(width, height int) image.Rectangle {
	aspect := float64(width) / float64(height)

	cropWPct, cropHPct := 0.75, 0.95
	if aspect < 1.0 {
		cropWPct, cropHPct = 0.98, 0.98
	}

	cropW := int(float64(width) * cropWPct)
	cropH := int(float64(height) * cropHPct)
	x := (width - cropW) / 2
	y := (height - cropH) / 2
	return image.Rect(x, y, x+cropW, y+cropH)
}

// CropFrame applies the crop policy and canonical rescale to a single image.
// It returns the input unchanged when the computed crop is empty.
func (c *Cropper) CropFrame(img image.Image) image.Image {
	b := img.Bounds()
	rect := screenRect(b.Dx(), b.Dy())
	if rect.Empty() {
		return img
	}

	cropped := imaging.Crop(img, rect)
	w, h := cropped.Bounds().Dx(), cropped.Bounds().Dy()
	if w == 0 || h == 0 {
		return img
	}

	if w < minWidth || h < minHeight {
		scale := max(float64(minWidth)/float64(w), float64(minHeight)/float64(h))
		return imaging.Resize(cropped, int(float64(w)*scale), int(float64(h)*scale), imaging.CatmullRom)
	}
	if w > maxWidth || h > maxHeight {
		scale := min(float64(maxWidth)/float64(w), float64(maxHeight)/float64(h))
		return imaging.Resize(cropped, int(float64(w)*scale), int(float64(h)*scale), imaging.Box)
	}
	return cropped
}

// Crop processes all sampled frames into outputDir/ui-screens, mirroring the
// frame filenames. A frame that cannot be read is counted as failed and
// dropped from the returned sequence.
func (c *Cropper) Crop(ctx context.Context, frames []entity.Frame, outputDir string) ([]entity.Frame, *entity.CroppingMetrics, error) {
	screensDir := filepath.Join(outputDir, "ui-screens")
	if err := os.MkdirAll(screensDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("create ui-screens dir: %w", err)
	}

	metrics := &entity.CroppingMetrics{}
	out := make([]entity.Frame, 0, len(frames))

	for _, frame := range frames {
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		default:
		}

		img, err := imaging.Open(frame.Path)
		if err != nil {
			c.logger.Warn("frame unreadable, skipping crop", zap.String("path", frame.Path), zap.Error(err))
			metrics.Failed++
			continue
		}

		cropped := c.CropFrame(img)
		destPath := filepath.Join(screensDir, filepath.Base(frame.Path))
		if err := imaging.Save(cropped, destPath, imaging.JPEGQuality(c.jpegQuality)); err != nil {
			c.logger.Warn("failed to save cropped screen", zap.String("path", destPath), zap.Error(err))
			metrics.Failed++
			continue
		}

		frame.Path = destPath
		out = append(out, frame)
		metrics.Successful++
	}

	c.logger.Info("ui screen extraction completed",
		zap.Int("successful", metrics.Successful),
		zap.Int("failed", metrics.Failed),
	)
	return out, metrics, nil
}
