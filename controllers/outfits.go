package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"wardrobeapi/models"
	"wardrobeapi/services"
	"wardrobeapi/stylist"
	"wardrobeapi/tasks"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

type GenerateOutfitsIn struct {
	Occasion string `json:"occasion" validate:"required,occasion"`
	UseAI    bool   `json:"use_ai"`
}

type ScoreOutfitIn struct {
	TopID       uint   `json:"top_id" validate:"required"`
	BottomID    uint   `json:"bottom_id" validate:"required"`
	ShoeID      *uint  `json:"shoe_id"`
	AccessoryID *uint  `json:"accessory_id"`
	Occasion    string `json:"occasion" validate:"required,occasion"`
}

type RuleOut struct {
	Rule   stylist.Rule `json:"rule"`
	Points float64      `json:"points"`
}

type ScoreOutfitResponse struct {
	Score   float64   `json:"score"`
	Percent float64   `json:"percent"`
	Rules   []RuleOut `json:"rules"`
}

type OutfitRunResponse struct {
	RunID              uuid.UUID                `json:"run_id"`
	Status             string                   `json:"status"`
	Occasion           string                   `json:"occasion"`
	RequestedAI        bool                     `json:"requested_ai"`
	Source             string                   `json:"source,omitempty"`
	ExtractionStrategy *string                  `json:"extraction_strategy,omitempty"`
	FallbackReason     *string                  `json:"fallback_reason,omitempty"`
	Recommendations    []stylist.Recommendation `json:"recommendations"`
	CreatedAt          string                   `json:"created_at"`
}

func toOutfitRunResponse(run models.OutfitGenerationRun) OutfitRunResponse {
	recs := make([]stylist.Recommendation, 0, len(run.Recommendations))
	for _, row := range run.Recommendations {
		recs = append(recs, row.Recommendation())
	}
	return OutfitRunResponse{
		RunID:              run.RunID,
		Status:             run.Status,
		Occasion:           run.Occasion,
		RequestedAI:        run.RequestedAI,
		Source:             run.Source,
		ExtractionStrategy: run.ExtractionStrategy,
		FallbackReason:     run.FallbackReason,
		Recommendations:    recs,
		CreatedAt:          run.CreatedAt.Format(timeLayout),
	}
}

type OutfitsController struct {
	Generator stylist.Generator
}

func (controller *OutfitsController) OutfitRoutes(g *echo.Group) {
	g.POST("/generate", controller.GenerateOutfits)
	g.GET("/runs/:runId", controller.GetRun)
	g.POST("/score", controller.ScoreOutfit)
}

// GenerateOutfits runs the local generator inline, or queues a run for the
// worker when the text generator is requested.
func (controller *OutfitsController) GenerateOutfits(c echo.Context) error {
	var req GenerateOutfitsIn
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	user := c.Get("currentUser").(models.UserAccount)
	db := c.Get("__db").(*gorm.DB)
	occasion, _ := stylist.ParseOccasion(req.Occasion)
	run := models.NewOutfitGenerationRun(user.ID, occasion, req.UseAI)

	if req.UseAI {
		asynqClient, ok := asynqClientFrom(c)
		if !ok {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"message": "Service is not available, please try again a bit later"})
		}
		if err := db.Create(&run).Error; err != nil {
			sentry.CaptureException(err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to start generation, please try again"})
		}
		task, err := tasks.NewOutfitGenerationTask(run.RunID)
		if err != nil {
			sentry.CaptureException(err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Sorry, could not start generation, please try again"})
		}
		info, err := asynqClient.Enqueue(task, asynq.MaxRetry(3), asynq.Queue(tasks.QueueGenerate))
		if err != nil {
			sentry.CaptureException(err)
			if err := tasks.FailRun(db, &run, "enqueue failed"); err != nil {
				sentry.CaptureException(fmt.Errorf("[Outfits: %s] mark failed: %w", run.RunID, err))
			}
			return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Sorry, could not start generation, please try again"})
		}
		fmt.Println("[Queue] Outfit generation task submitted, Run ID: ", run.RunID, " Task ID: ", info.ID)
		return c.JSON(http.StatusAccepted, toOutfitRunResponse(run))
	}

	started := time.Now()
	items, err := tasks.ClosetItems(db, user.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch clothes"})
	}
	result := tasks.RecommendOutfits(c.Request().Context(), nil, services.DefaultRetryPolicy(), controller.Generator, items, occasion)
	if err := tasks.CompleteRun(db, &run, result, started); err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to save outfits"})
	}
	return c.JSON(http.StatusCreated, toOutfitRunResponse(run))
}

func (controller *OutfitsController) GetRun(c echo.Context) error {
	user := c.Get("currentUser").(models.UserAccount)
	db := c.Get("__db").(*gorm.DB)
	runID, err := uuid.Parse(c.Param("runId"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid run id"})
	}

	var run models.OutfitGenerationRun
	err = db.Preload("Recommendations", func(db *gorm.DB) *gorm.DB {
		return db.Order("rank")
	}).Where("run_id = ? AND user_account_id = ?", runID, user.ID).Take(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Run not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch run"})
	}
	return c.JSON(http.StatusOK, toOutfitRunResponse(run))
}

// ScoreOutfit rates an explicit combination of the user's clothes.
func (controller *OutfitsController) ScoreOutfit(c echo.Context) error {
	var req ScoreOutfitIn
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	user := c.Get("currentUser").(models.UserAccount)
	db := c.Get("__db").(*gorm.DB)

	slots := []struct {
		id       *uint
		category stylist.Category
		item     *stylist.Item
	}{
		{&req.TopID, stylist.Top, nil},
		{&req.BottomID, stylist.Bottom, nil},
		{req.ShoeID, stylist.Shoe, nil},
		{req.AccessoryID, stylist.Accessory, nil},
	}
	for i := range slots {
		if slots[i].id == nil {
			continue
		}
		var clothing models.Clothing
		err := db.Where("id = ? AND owner_id = ?", *slots[i].id, user.ID).Take(&clothing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": fmt.Sprintf("Clothing %d not found", *slots[i].id)})
		}
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch clothes"})
		}
		item := clothing.WardrobeItem()
		if item.Category != slots[i].category {
			return c.JSON(http.StatusBadRequest, map[string]string{
				"error": fmt.Sprintf("Clothing %d is a %s, expected %s", clothing.ID, clothing.ClothingType, slots[i].category),
			})
		}
		slots[i].item = &item
	}

	occasion, _ := stylist.ParseOccasion(req.Occasion)
	eval := stylist.Evaluate(*slots[0].item, *slots[1].item, slots[2].item, slots[3].item, occasion)
	rules := make([]RuleOut, 0, len(eval.Contributions))
	for _, contribution := range eval.Contributions {
		rules = append(rules, RuleOut{Rule: contribution.Rule, Points: contribution.Points})
	}
	return c.JSON(http.StatusOK, ScoreOutfitResponse{
		Score:   eval.Score,
		Percent: stylist.ToPercent(eval.Score),
		Rules:   rules,
	})
}
