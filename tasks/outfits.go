package tasks

import (
	"context"
	"fmt"
	"time"

	"wardrobeapi/llmjson"
	"wardrobeapi/metrics"
	"wardrobeapi/models"
	"wardrobeapi/services"
	"wardrobeapi/stylist"

	"github.com/getsentry/sentry-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	FallbackLLMError      = "llm_error"
	FallbackUnparseable   = "unparseable"
	FallbackNoValidOutfit = "no_valid_outfit"
)

type OutfitResult struct {
	Recommendations []stylist.Recommendation
	Source          string
	Strategy        string
	// empty when the generator was not asked or its answer was used
	FallbackReason string
	LLM            *services.LLMResponse
}

// RecommendOutfits returns generator outfits when its answer survives
// extraction, validation and reconciliation against the wardrobe, and the
// local generator's outfits otherwise. A nil llm means local only.
func RecommendOutfits(ctx context.Context, llm services.StylistLLM, policy services.RetryPolicy, generator stylist.Generator, items []stylist.Item, occasion stylist.Occasion) OutfitResult {
	if llm == nil || !hasTopAndBottom(items) {
		return localOutfits(generator, items, occasion, "")
	}

	prompt := services.BuildOutfitPrompt(items, occasion, generator.MaxResults)
	resp, err := services.Retry(ctx, policy, func(ctx context.Context) (*services.LLMResponse, error) {
		r, err := llm.RecommendOutfits(ctx, prompt)
		return r, services.StopRetrying(err)
	})
	if err != nil {
		fmt.Printf("[Outfits] generator failed: %v, generating locally\n", err)
		sentry.CaptureException(fmt.Errorf("[Outfits] generator failed: %w", err))
		return localOutfits(generator, items, occasion, FallbackLLMError)
	}

	extracted := llmjson.Extract(resp.Response, llmjson.Array)
	if extracted.Fallback() {
		result := localOutfits(generator, items, occasion, FallbackUnparseable)
		result.Strategy = extracted.Strategy
		result.LLM = resp
		return result
	}

	recs := stylist.Reconcile(stylist.ValidateRecommendations(extracted.Value, occasion), items)
	if len(recs) == 0 {
		result := localOutfits(generator, items, occasion, FallbackNoValidOutfit)
		result.Strategy = extracted.Strategy
		result.LLM = resp
		return result
	}
	if limit := generator.MaxResults; limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return OutfitResult{
		Recommendations: recs,
		Source:          models.RunSourceAI,
		Strategy:        extracted.Strategy,
		LLM:             resp,
	}
}

func localOutfits(generator stylist.Generator, items []stylist.Item, occasion stylist.Occasion, reason string) OutfitResult {
	return OutfitResult{
		Recommendations: generator.Generate(items, occasion),
		Source:          models.RunSourceLocal,
		FallbackReason:  reason,
	}
}

func hasTopAndBottom(items []stylist.Item) bool {
	var top, bottom bool
	for _, item := range items {
		top = top || item.Category == stylist.Top
		bottom = bottom || item.Category == stylist.Bottom
	}
	return top && bottom
}

// ClosetItems loads the wardrobe of a user: processed clothes kept in the closet.
func ClosetItems(db *gorm.DB, userID uint) ([]stylist.Item, error) {
	var clothes []models.Clothing
	err := db.Where("owner_id = ? AND status = ?", userID, models.ClothingStatusInCloset).
		Order("id").Find(&clothes).Error
	if err != nil {
		return nil, err
	}
	return models.WardrobeItems(clothes), nil
}

// CompleteRun stores the outcome of a generation run and its ranked outfits.
func CompleteRun(db *gorm.DB, run *models.OutfitGenerationRun, result OutfitResult, started time.Time) error {
	rows := make([]models.OutfitRecommendation, 0, len(result.Recommendations))
	for i, rec := range result.Recommendations {
		row, err := models.NewOutfitRecommendation(rec, i+1)
		if err != nil {
			// reconciled and locally generated records always carry clothing ids
			sentry.CaptureException(fmt.Errorf("[Outfits: %s] skipping record %s: %w", run.RunID, rec.OutfitID, err))
			continue
		}
		rows = append(rows, row)
	}

	duration := time.Since(started).Seconds()
	now := time.Now()
	run.Source = result.Source
	run.Status = models.RunStatusCompleted
	run.Duration = &duration
	run.CompletedAt = &now
	run.ExtractionStrategy = services.StrPointer(result.Strategy)
	run.FallbackReason = services.StrPointer(result.FallbackReason)
	if result.LLM != nil {
		run.LLMModel = services.StrPointer(result.LLM.Model)
		run.LLMTotalTokenCount = &result.LLM.TotalTokenCount
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(run).Error; err != nil {
			return err
		}
		for i := range rows {
			rows[i].OutfitGenerationRunID = run.ID
		}
		if len(rows) > 0 {
			if err := tx.Create(&rows).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save run %s: %w", run.RunID, err)
	}
	run.Recommendations = rows
	metrics.GenerationRuns.WithLabelValues(run.Source, run.Status).Inc()
	return nil
}

func FailRun(db *gorm.DB, run *models.OutfitGenerationRun, reason string) error {
	run.Status = models.RunStatusFailed
	run.FallbackReason = services.StrPointer(reason)
	metrics.GenerationRuns.WithLabelValues(models.RunSourceAI, models.RunStatusFailed).Inc()
	return db.Omit(clause.Associations).Save(run).Error
}
