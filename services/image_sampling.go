package services

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"math"

	"wardrobeapi/stylist"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

const (
	sampleWidth = 64

	// luminance band over which background pixels are feathered to white
	featherLower uint8 = 200
	featherUpper uint8 = 235
	// centre of the photo that is never whitened, the garment usually sits there
	centralProtectionRatio = 0.5
)

// SamplePixels decodes a JPEG, PNG or WebP photo, whitens its bright background
// outside the central area and returns the pixels of a small thumbnail.
func SamplePixels(imageBytes []byte) ([]stylist.RGB, error) {
	img, err := imaging.Decode(bytes.NewReader(imageBytes), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	whitened := whitenBackgroundFeathered(img, featherLower, featherUpper, centralProtectionRatio)
	thumb := imaging.Resize(whitened, sampleWidth, 0, imaging.Box)

	bounds := thumb.Bounds()
	samples := make([]stylist.RGB, 0, bounds.Dx()*bounds.Dy())
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			px := thumb.NRGBAAt(x, y)
			if px.A == 0 {
				continue
			}
			samples = append(samples, stylist.RGB{R: px.R, G: px.G, B: px.B})
		}
	}
	return samples, nil
}

// ClassifyImageLocally never fails: unreadable images get the default analysis.
func ClassifyImageLocally(imageBytes []byte) stylist.ColorAnalysis {
	samples, err := SamplePixels(imageBytes)
	if err != nil {
		fmt.Printf("[Classifier] %v, using default analysis\n", err)
		return stylist.DefaultColorAnalysis()
	}
	return stylist.ClassifyColors(samples)
}

// whitenBackgroundFeathered blends pixels between lower and upper luminance towards
// white and makes brighter ones pure white. The protected centre is copied as is.
func whitenBackgroundFeathered(img image.Image, lower, upper uint8, protect float64) *image.NRGBA {
	src := imaging.Clone(img)
	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	protectedWidth := int(float64(width) * protect)
	protectedHeight := int(float64(height) * protect)
	x0 := (width - protectedWidth) / 2
	y0 := (height - protectedHeight) / 2
	x1 := x0 + protectedWidth
	y1 := y0 + protectedHeight

	transition := float64(upper - lower)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x >= x0 && x < x1 && y >= y0 && y < y1 {
				continue
			}
			px := src.NRGBAAt(x, y)
			luminance := 0.299*float64(px.R) + 0.587*float64(px.G) + 0.114*float64(px.B)
			switch {
			case luminance <= float64(lower):
			case luminance >= float64(upper):
				src.SetNRGBA(x, y, color.NRGBA{R: 255, G: 255, B: 255, A: px.A})
			default:
				blend := (luminance - float64(lower)) / transition
				src.SetNRGBA(x, y, color.NRGBA{
					R: towardsWhite(px.R, blend),
					G: towardsWhite(px.G, blend),
					B: towardsWhite(px.B, blend),
					A: px.A,
				})
			}
		}
	}
	return src
}

func towardsWhite(channel uint8, blend float64) uint8 {
	return uint8(math.Round(float64(channel)*(1-blend) + 255*blend))
}
