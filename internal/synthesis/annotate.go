package synthesis

import (
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"github.com/VibhaNavale/CS597-Automated-Visual-Tech-Support/internal/domain/entity"
	"github.com/disintegration/imaging"
)

const (
	boxSizeFraction = 0.15
	boxSizeCapPx    = 120
	boxStrokePx     = 3
)

var boxColor = color.NRGBA{R: 230, G: 57, B: 70, A: 255}

// boundingBoxFor computes the highlight region centered on a point: a square
// of roughly 15% of the shorter image dimension, capped at 120px, clipped to
// the image.
func boundingBoxFor(c entity.Coordinates, width, height int) entity.BoundingBox {
	size := int(float64(min(width, height)) * boxSizeFraction)
	if size > boxSizeCapPx {
		size = boxSizeCapPx
	}
	if size < 2 {
		size = 2
	}

	x := clampInt(c.X-size/2, 0, width-1)
	y := clampInt(c.Y-size/2, 0, height-1)
	w := size
	h := size
	if x+w > width {
		w = width - x
	}
	if y+h > height {
		h = height - y
	}
	return entity.BoundingBox{X: x, Y: y, Width: w, Height: h}
}

// renderAnnotated draws the bounding box outline onto a copy of the frame.
func renderAnnotated(img image.Image, box entity.BoundingBox) *image.NRGBA {
	out := imaging.Clone(img)
	for stroke := 0; stroke < boxStrokePx; stroke++ {
		drawRectOutline(out, box.X-stroke, box.Y-stroke, box.Width+2*stroke, box.Height+2*stroke)
	}
	return out
}

func drawRectOutline(img *image.NRGBA, x, y, w, h int) {
	b := img.Bounds()
	for i := x; i < x+w; i++ {
		setIfInside(img, b, i, y)
		setIfInside(img, b, i, y+h-1)
	}
	for j := y; j < y+h; j++ {
		setIfInside(img, b, x, j)
		setIfInside(img, b, x+w-1, j)
	}
}

func setIfInside(img *image.NRGBA, b image.Rectangle, x, y int) {
	if x >= b.Min.X && x < b.Max.X && y >= b.Min.Y && y < b.Max.Y {
		img.SetNRGBA(x, y, boxColor)
	}
}

// persistStep writes the per-step artifact folder: the annotated image (when
// the step has coordinates, else a clean copy of the frame) and the
// structured step record.
func persistStep(step *entity.Step, img image.Image, outputDir string) error {
	stepDir := filepath.Join(outputDir, "steps", fmt.Sprintf("step_%02d", step.StepNumber))
	if err := os.MkdirAll(stepDir, 0755); err != nil {
		return fmt.Errorf("create step dir: %w", err)
	}

	annotated := img
	if step.BoundingBox != nil {
		annotated = renderAnnotated(img, *step.BoundingBox)
	}

	imagePath := filepath.Join(stepDir, "annotated.jpg")
	if err := imaging.Save(annotated, imagePath, imaging.JPEGQuality(95)); err != nil {
		return fmt.Errorf("save annotated image: %w", err)
	}
	step.ImageURI = filepath.Join("steps", fmt.Sprintf("step_%02d", step.StepNumber), "annotated.jpg")

	record, err := json.MarshalIndent(step, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal step record: %w", err)
	}
	if err := os.WriteFile(filepath.Join(stepDir, "step.json"), record, 0644); err != nil {
		return fmt.Errorf("write step record: %w", err)
	}
	return nil
}
