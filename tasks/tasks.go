package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"wardrobeapi/metrics"
	"wardrobeapi/models"
	"wardrobeapi/services"
	"wardrobeapi/stylist"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	TypeProcessClothing = "generate:process_clothing"
	TypeGenerateOutfits = "generate:outfits"
	TypeDailyOutfits    = "generate:daily_outfits"

	QueueGenerate = "generate"

	maxProcessRetries = 3
)

type ClothingProcessingPayload struct {
	ClothingID uint `json:"clothing_id"`
}

type OutfitGenerationPayload struct {
	RunID uuid.UUID `json:"run_id"`
}

func NewClothingProcessingTask(clothingID uint) (*asynq.Task, error) {
	payload, err := json.Marshal(ClothingProcessingPayload{ClothingID: clothingID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeProcessClothing, payload), nil
}

func NewOutfitGenerationTask(runID uuid.UUID) (*asynq.Task, error) {
	payload, err := json.Marshal(OutfitGenerationPayload{RunID: runID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeGenerateOutfits, payload), nil
}

func NewDailyOutfitsTask() *asynq.Task {
	return asynq.NewTask(TypeDailyOutfits, nil)
}

// HandleClothingProcessingTask downloads the photo, analyses it, embeds its
// description and marks the clothing as part of the closet.
func HandleClothingProcessingTask(
	ctx context.Context, t *asynq.Task, db *gorm.DB, llm services.StylistLLM,
	storage services.StorageProvider, notifier services.Notifier, policy services.RetryPolicy) error {
	var payload ClothingProcessingPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	fmt.Printf("[Clothing: %v] Start processing\n", payload.ClothingID)

	var clothing models.Clothing
	if err := db.Preload("Owner").First(&clothing, payload.ClothingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("[Clothing: %v] not found: %w", payload.ClothingID, asynq.SkipRetry)
		}
		return err
	}
	if clothing.ImageURL == nil || *clothing.ImageURL == "" {
		saveClothingProcessingFail(db, clothing, "Image was not uploaded, please add the clothing again", false)
		return fmt.Errorf("[Clothing: %v] no image: %w", clothing.ID, asynq.SkipRetry)
	}

	clothing.ProcessingStatus = models.ProcessingInProgress
	db.Model(&clothing).Update("processing_status", clothing.ProcessingStatus)

	image, err := storage.Download(ctx, *clothing.ImageURL)
	if err != nil {
		sentry.CaptureException(fmt.Errorf("[Clothing: %v] download %s: %w", clothing.ID, *clothing.ImageURL, err))
		saveClothingProcessingFail(db, clothing, "Failed to read the clothing photo, please try again", true)
		return err
	}
	fmt.Printf("[Clothing: %v] Downloaded %d bytes\n", clothing.ID, len(image))

	mimeType := services.ImageMIMEType(filepath.Base(*clothing.ImageURL), image)
	analysis := AnalyzeClothing(ctx, llm, policy, image, mimeType)
	fmt.Printf("[Clothing: %v] Analysis source %s, color %s, material %s\n",
		clothing.ID, analysis.Source, analysis.Colors.DominantColor, analysis.Colors.Material)

	clothing.ApplyAnalysis(analysis.Colors, analysis.Source)
	if clothing.Name == "" {
		clothing.Name = analysis.Name
	}
	if analysis.Style != "" {
		clothing.Style = analysis.Style
	}
	if category, ok := stylist.ParseCategory(clothing.ClothingType); ok && analysis.Category != "" && analysis.Category != category {
		// the user's choice wins, the mismatch is only worth knowing about
		fmt.Printf("[Clothing: %v] generator saw a %s, stored as %s\n", clothing.ID, analysis.Category, category)
	}

	if llm != nil {
		text := services.EmbeddingText(clothing.ClothingType, clothing.Color, clothing.Material, clothing.Style, clothing.Name)
		values, err := services.Retry(ctx, policy, func(ctx context.Context) ([]float32, error) {
			v, err := llm.Embed(ctx, text)
			return v, services.StopRetrying(err)
		})
		if err != nil {
			// outfits still score without the similarity bonus
			fmt.Printf("[Clothing: %v] embedding failed: %v\n", clothing.ID, err)
		} else {
			vector := pgvector.NewVector(values)
			clothing.Embedding = &vector
		}
	}

	clothing.ProcessingStatus = models.ProcessingCompleted
	clothing.ProcessErrorMessage = nil
	clothing.Status = models.ClothingStatusInCloset
	if err := db.Omit(clause.Associations).Save(&clothing).Error; err != nil {
		sentry.CaptureException(fmt.Errorf("[Clothing: %v] save: %w", clothing.ID, err))
		return err
	}
	metrics.ClothingProcessed.WithLabelValues(analysis.Source).Inc()

	if notifier != nil && clothing.Owner.ReceiveNotifications {
		title := "Your clothing is ready"
		body := fmt.Sprintf("We added your %s %s to the closet.", clothing.Color, clothing.ClothingType)
		if err := notifier.Notify(ctx, db, clothing.OwnerID, title, body, map[string]string{
			"type":        "clothing_processed",
			"clothing_id": fmt.Sprintf("%d", clothing.ID),
		}); err != nil {
			sentry.CaptureException(fmt.Errorf("[Clothing: %v] notify: %w", clothing.ID, err))
		}
	}
	return nil
}

func saveClothingProcessingFail(db *gorm.DB, clothing models.Clothing, msg string, shouldRetry bool) {
	clothing.ProcessRetryTimes++
	clothing.ProcessErrorMessage = &msg
	if !shouldRetry || clothing.ProcessRetryTimes >= maxProcessRetries {
		clothing.ProcessingStatus = models.ProcessingFailed
	}
	if err := db.Omit(clause.Associations).Save(&clothing).Error; err != nil {
		sentry.CaptureException(fmt.Errorf("[Clothing: %v] saving failed status: %w", clothing.ID, err))
	}
}

// HandleOutfitGenerationTask completes a pending run with generator outfits,
// or locally generated ones when the generator cannot be used.
func HandleOutfitGenerationTask(
	ctx context.Context, t *asynq.Task, db *gorm.DB, llm services.StylistLLM,
	notifier services.Notifier, policy services.RetryPolicy, generator stylist.Generator) error {
	var payload OutfitGenerationPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	started := time.Now()

	var run models.OutfitGenerationRun
	if err := db.Preload("UserAccount").Where("run_id = ?", payload.RunID).First(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("[Outfits: %s] run not found: %w", payload.RunID, asynq.SkipRetry)
		}
		return err
	}
	if run.Status != models.RunStatusPending {
		fmt.Printf("[Outfits: %s] already %s\n", run.RunID, run.Status)
		return nil
	}
	occasion, ok := stylist.ParseOccasion(run.Occasion)
	if !ok {
		if err := FailRun(db, &run, "unknown occasion"); err != nil {
			sentry.CaptureException(fmt.Errorf("[Outfits: %s] mark failed: %w", run.RunID, err))
		}
		return fmt.Errorf("[Outfits: %s] unknown occasion %q: %w", run.RunID, run.Occasion, asynq.SkipRetry)
	}

	items, err := ClosetItems(db, run.UserAccountID)
	if err != nil {
		return err
	}
	fmt.Printf("[Outfits: %s] %d closet items, occasion %s\n", run.RunID, len(items), occasion)

	result := RecommendOutfits(ctx, llm, policy, generator, items, occasion)
	if err := CompleteRun(db, &run, result, started); err != nil {
		sentry.CaptureException(err)
		return err
	}
	fmt.Printf("[Outfits: %s] %d outfits from %s\n", run.RunID, len(run.Recommendations), run.Source)

	if notifier != nil && run.UserAccount.ReceiveNotifications && len(run.Recommendations) > 0 {
		body := fmt.Sprintf("%d %s outfits picked from your closet.", len(run.Recommendations), occasion)
		if err := notifier.Notify(ctx, db, run.UserAccountID, "Your outfits are ready", body, map[string]string{
			"type":   "outfits_ready",
			"run_id": run.RunID.String(),
		}); err != nil {
			sentry.CaptureException(fmt.Errorf("[Outfits: %s] notify: %w", run.RunID, err))
		}
	}
	return nil
}

// ScheduledDailyOutfitTask pushes the best local outfit of the day to every
// user who wants notifications. It never calls the generator.
func ScheduledDailyOutfitTask(ctx context.Context, t *asynq.Task, db *gorm.DB, notifier services.Notifier, generator stylist.Generator) error {
	var users []models.UserAccount
	if err := db.Where("banned = ? AND receive_notifications = ?", false, true).Find(&users).Error; err != nil {
		sentry.CaptureException(fmt.Errorf("[Daily Outfit] fetching users: %w", err))
		return err
	}
	fmt.Printf("[Daily Outfit] %d users to notify\n", len(users))

	for _, user := range users {
		if err := sendDailyOutfit(ctx, db, notifier, generator, user); err != nil {
			fmt.Printf("[Daily Outfit] user %d: %v\n", user.ID, err)
			sentry.CaptureException(fmt.Errorf("[Daily Outfit] user %d: %w", user.ID, err))
		}
	}
	return nil
}

func sendDailyOutfit(ctx context.Context, db *gorm.DB, notifier services.Notifier, generator stylist.Generator, user models.UserAccount) error {
	occasion, ok := stylist.ParseOccasion(user.PreferredOccasion)
	if !ok {
		occasion = stylist.Casual
	}
	items, err := ClosetItems(db, user.ID)
	if err != nil {
		return err
	}
	started := time.Now()
	result := localOutfits(generator, items, occasion, "")
	if len(result.Recommendations) == 0 {
		return nil
	}
	result.Recommendations = result.Recommendations[:1]
	run := models.NewOutfitGenerationRun(user.ID, occasion, false)
	if err := CompleteRun(db, &run, result, started); err != nil {
		return err
	}
	if notifier == nil {
		return nil
	}
	return notifier.Notify(ctx, db, user.ID, "Today's outfit", result.Recommendations[0].Reasoning, map[string]string{
		"type":   "daily_outfit",
		"run_id": run.RunID.String(),
	})
}
