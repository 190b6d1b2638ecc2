package synthesis

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/VibhaNavale/CS597-Automated-Visual-Tech-Support/internal/domain/entity"
)

// Ordered pattern fallbacks for locating a point inside an action string.
// Earlier forms are more specific and win over later ones.
var pointPatterns = []*regexp.Regexp{
	regexp.MustCompile(`<point>\[\[\s*(\d+(?:\.\d+)?)%?\s*,\s*(\d+(?:\.\d+)?)%?\s*\]\]</point>`),
	regexp.MustCompile(`\[\[\s*(\d+(?:\.\d+)?)%?\s*,\s*(\d+(?:\.\d+)?)%?\s*\]\]`),
	regexp.MustCompile(`<point>\[\s*(\d+(?:\.\d+)?)%?\s*,\s*(\d+(?:\.\d+)?)%?\s*\]</point>`),
	regexp.MustCompile(`\[\s*(\d+(?:\.\d+)?)%?\s*,\s*(\d+(?:\.\d+)?)%?\s*\]`),
	regexp.MustCompile(`\(\s*(\d+(?:\.\d+)?)%?\s*,\s*(\d+(?:\.\d+)?)%?\s*\)`),
	regexp.MustCompile(`(\d+(?:\.\d+)?)%?\s*,\s*(\d+(?:\.\d+)?)%?`),
}

var directionPattern = regexp.MustCompile(`(?i)\b(UP|DOWN|LEFT|RIGHT)\b`)

// extractCoordinates parses an action string for a point specification and
// normalizes it to absolute pixels within a width-by-height image. Returns
// nil when no usable point is present.
func extractCoordinates(action string, width, height int) *entity.Coordinates {
	for _, pattern := range pointPatterns {
		match := pattern.FindStringSubmatch(action)
		if match == nil {
			continue
		}
		x, errX := strconv.ParseFloat(match[1], 64)
		y, errY := strconv.ParseFloat(match[2], 64)
		if errX != nil || errY != nil {
			continue
		}
		percent := strings.Contains(match[0], "%")
		return normalizePoint(x, y, percent, width, height)
	}

	// Directional scroll/slide variants carry no explicit point; anchor them
	// at the image center so slide gestures stay presentable.
	actionType := entity.ClassifyAction(action)
	if (actionType == entity.ActionScroll || actionType == entity.ActionSlide) &&
		directionPattern.MatchString(action) {
		return &entity.Coordinates{X: width / 2, Y: height / 2}
	}

	return nil
}

// normalizePoint detects the scale of a raw coordinate pair:
// explicit percent marker → percentage of image size; both values in [0,1] →
// fractional; values in (1,1000] → permille of image size; values within the
// image bounds (and ≤ 2000) → already-absolute pixels.
func normalizePoint(x, y float64, percent bool, width, height int) *entity.Coordinates {
	w, h := float64(width), float64(height)
	var px, py float64

	switch {
	case percent:
		if x > 100 || y > 100 {
			return nil
		}
		px, py = x/100*w, y/100*h
	case x <= 1 && y <= 1:
		px, py = x*w, y*h
	case x <= 1000 && y <= 1000:
		px, py = x*w/1000, y*h/1000
	case x <= 2000 && y <= 2000 && x <= w && y <= h:
		px, py = x, y
	default:
		return nil
	}

	return &entity.Coordinates{
		X: clampInt(int(px), 0, width-1),
		Y: clampInt(int(py), 0, height-1),
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
