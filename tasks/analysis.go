package tasks

import (
	"context"
	"fmt"
	"math"

	"wardrobeapi/llmjson"
	"wardrobeapi/models"
	"wardrobeapi/services"
	"wardrobeapi/stylist"

	"github.com/getsentry/sentry-go"
	"github.com/spf13/cast"
)

// ClothingAnalysis is what processing learned about one clothing photo.
type ClothingAnalysis struct {
	Colors   stylist.ColorAnalysis
	Category stylist.Category
	Style    string
	Name     string
	Source   string
	Strategy string
	LLM      *services.LLMResponse
}

// AnalyzeClothing asks the generator first and falls back to the local color
// classifier when the call fails or its text holds no usable object.
func AnalyzeClothing(ctx context.Context, llm services.StylistLLM, policy services.RetryPolicy, image []byte, mimeType string) ClothingAnalysis {
	if llm == nil {
		return localAnalysis(image)
	}
	resp, err := services.Retry(ctx, policy, func(ctx context.Context) (*services.LLMResponse, error) {
		r, err := llm.AnalyzeClothing(ctx, image, mimeType)
		return r, services.StopRetrying(err)
	})
	if err != nil {
		fmt.Printf("[Analysis] generator failed: %v, using local classifier\n", err)
		sentry.CaptureException(fmt.Errorf("[Analysis] generator failed: %w", err))
		return localAnalysis(image)
	}

	result := llmjson.Extract(resp.Response, llmjson.Object)
	if result.Fallback() {
		analysis := localAnalysis(image)
		analysis.LLM = resp
		analysis.Strategy = result.Strategy
		return analysis
	}
	analysis := analysisFromObject(result.Object())
	analysis.Strategy = result.Strategy
	analysis.LLM = resp
	if analysis.Colors.DominantColor == "" {
		// the object parsed but named no color, so keep only what the pixels say
		local := localAnalysis(image)
		analysis.Colors = local.Colors
		analysis.Source = local.Source
	}
	return analysis
}

func localAnalysis(image []byte) ClothingAnalysis {
	return ClothingAnalysis{
		Colors: services.ClassifyImageLocally(image),
		Source: models.AnalysisSourceLocal,
	}
}

func analysisFromObject(obj map[string]any) ClothingAnalysis {
	color := stylist.Normalize(cast.ToString(obj["color"]))
	secondary := []string{}
	for _, s := range cast.ToStringSlice(obj["secondary_colors"]) {
		if s = stylist.Normalize(s); s != "" && s != color && len(secondary) < 2 {
			secondary = append(secondary, s)
		}
	}
	material := stylist.Normalize(cast.ToString(obj["material"]))
	if material == "" {
		material = stylist.MaterialForColor(color)
	}
	confidence, err := cast.ToFloat64E(obj["confidence"])
	if err != nil || math.IsNaN(confidence) {
		confidence = stylist.DefaultConfidence
	}
	confidence = min(max(confidence, 0), 1)

	category, _ := stylist.ParseCategory(cast.ToString(obj["category"]))
	palette := []string{}
	if color != "" {
		palette = append(palette, color)
	}
	palette = append(palette, secondary...)

	return ClothingAnalysis{
		Colors: stylist.ColorAnalysis{
			DominantColor:   color,
			SecondaryColors: secondary,
			Palette:         palette,
			Material:        material,
			Confidence:      confidence,
		},
		Category: category,
		Style:    stylist.Normalize(cast.ToString(obj["style"])),
		Name:     cast.ToString(obj["name"]),
		Source:   models.AnalysisSourceAI,
	}
}
