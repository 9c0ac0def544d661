package controllers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"

	"wardrobeapi/models"
	"wardrobeapi/services"
	"wardrobeapi/stylist"
	"wardrobeapi/tasks"

	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

type CreateClothingIn struct {
	Name         string  `json:"name" validate:"omitempty,max=100"`
	FileName     *string `json:"file_name" validate:"required,max=200"`
	Description  *string `json:"description" validate:"omitempty,max=500"`
	ClothingType string  `json:"clothing_type" validate:"required,category"` // top, bottom, shoes, accessory
	AddToCloset  *bool   `json:"add_to_closet" validate:"required"`
}

type ClothingResponse struct {
	ID               uint     `json:"id"`
	Name             string   `json:"name"`
	Description      *string  `json:"description"`
	ClothingType     string   `json:"clothing_type"`
	Status           string   `json:"status"`
	ProcessingStatus string   `json:"processing_status"`
	Color            string   `json:"color,omitempty"`
	Palette          []string `json:"palette,omitempty"`
	Material         string   `json:"material,omitempty"`
	Style            string   `json:"style,omitempty"`
	AnalysisSource   string   `json:"analysis_source,omitempty"`
	Uri              *string  `json:"uri,omitempty"`
	CreatedAt        string   `json:"created_at"`
	UpdatedAt        string   `json:"updated_at"`
}

type ClothingCreatedResponse struct {
	ClothingResponse ClothingResponse `json:"clothes"`
	FileUploadUrl    string           `json:"file_upload_url"`
}

type ClothesListResponse struct {
	Tops        []ClothingResponse `json:"tops"`
	Bottoms     []ClothingResponse `json:"bottoms"`
	Shoes       []ClothingResponse `json:"shoes"`
	Accessories []ClothingResponse `json:"accessories"`
}

type ClothesController struct {
	Storage         services.StorageProvider
	URLCache        services.URLCacheServiceProvider
	FreeClosetLimit int
}

func (controller *ClothesController) ClothingRoutes(g *echo.Group) {
	g.POST("/create", controller.CreateClothing)
	g.GET("/list", controller.ListClothes)
	g.GET("/:id", controller.GetClothing)
}

func toClothingResponse(item models.Clothing, uri *string) ClothingResponse {
	return ClothingResponse{
		ID:               item.ID,
		Name:             item.Name,
		Description:      item.Description,
		ClothingType:     item.ClothingType,
		Status:           item.Status,
		ProcessingStatus: item.ProcessingStatus,
		Color:            item.Color,
		Palette:          []string(item.Palette),
		Material:         item.Material,
		Style:            item.Style,
		AnalysisSource:   item.AnalysisSource,
		Uri:              uri,
		CreatedAt:        item.CreatedAt.Format(timeLayout),
		UpdatedAt:        item.UpdatedAt.Format(timeLayout),
	}
}

func (controller *ClothesController) CreateClothing(c echo.Context) error {
	var req CreateClothingIn
	if err := c.Bind(&req); err != nil {
		fmt.Println(err)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	user, ok := c.Get("currentUser").(models.UserAccount)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database connection error"})
	}
	if !services.IsAllowedImage(*req.FileName) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Only jpg, png and webp photos are supported"})
	}

	if user.Subscription.Limited() && controller.FreeClosetLimit > 0 {
		var totalClothingCount int64
		if err := db.Model(&models.Clothing{}).Where("owner_id = ?", user.ID).Count(&totalClothingCount).Error; err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to get clothe data"})
		}
		fmt.Printf("[User %v] Free plan, clothe count: %v\n", user.ID, totalClothingCount)
		if totalClothingCount >= int64(controller.FreeClosetLimit) {
			return c.JSON(http.StatusForbidden, map[string]string{
				"error": fmt.Sprintf("You have reached the free limit of total %d clothes, please subscribe", controller.FreeClosetLimit),
			})
		}
	}

	addToCloset := *req.AddToCloset
	var asynqClient *asynq.Client
	if addToCloset {
		if asynqClient, ok = asynqClientFrom(c); !ok {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"message": "Service is not available, please try again a bit later"})
		}
	}

	category, _ := stylist.ParseCategory(req.ClothingType)
	objectKey := services.ClothingObjectKey(user.ID, *req.FileName)
	clothing := models.Clothing{
		Name:             req.Name,
		Description:      req.Description,
		ClothingType:     string(category),
		OwnerID:          user.ID,
		Status:           models.ClothingStatusTemporary,
		ImageURL:         &objectKey,
		ProcessingStatus: models.ProcessingPending,
	}

	uploadUrl, err := controller.Storage.PresignUpload(c.Request().Context(), objectKey)
	if err != nil {
		log.Printf("Unable to presign upload for %s!, %s", objectKey, err)
		sentry.CaptureException(fmt.Errorf("[User %v] presign %s: %w", user.ID, objectKey, err))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"message": "Error while creating clothe with attachment",
		})
	}
	if err := db.Create(&clothing).Error; err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to create clothing"})
	}

	if addToCloset {
		task, err := tasks.NewClothingProcessingTask(clothing.ID)
		if err != nil {
			sentry.CaptureException(err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Sorry, could not process clothing, please try again"})
		}
		info, err := asynqClient.Enqueue(task, asynq.MaxRetry(3), asynq.Queue(tasks.QueueGenerate), asynq.ProcessIn(processingDelay))
		if err != nil {
			sentry.CaptureException(err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Sorry, could not process clothing, please try again"})
		}
		fmt.Println("[Queue] Process clothing task submitted, Clothing ID: ", clothing.ID, " Task ID: ", info.ID)
	}

	return c.JSON(http.StatusCreated, ClothingCreatedResponse{
		ClothingResponse: toClothingResponse(clothing, nil),
		FileUploadUrl:    uploadUrl,
	})
}

// readURL goes through the URL cache and falls back to presigning directly
// when the cache itself fails.
func (controller *ClothesController) readURL(ctx context.Context, objectKey string) string {
	url, err := controller.URLCache.GetReadURL(ctx, objectKey)
	if err == nil {
		return url
	}
	log.Printf("CACHE WARNING: Cache system failed for key '%s': %v. Triggering manual R2 fallback.", objectKey, err)
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("failure_type", "cache_system")
		scope.SetExtra("objectKey", objectKey)
		sentry.CaptureException(err)
	})
	fallbackUrl, fallbackErr := controller.Storage.PresignRead(ctx, objectKey)
	if fallbackErr != nil {
		log.Printf("CRITICAL: Manual R2 fallback also failed for key '%s': %v", objectKey, fallbackErr)
		sentry.CaptureException(fallbackErr)
		return ""
	}
	return fallbackUrl
}

func (controller *ClothesController) populatePresignedClothingImages(ctx context.Context, clothes []models.Clothing) []ClothingResponse {
	if len(clothes) == 0 {
		return []ClothingResponse{}
	}

	var wg sync.WaitGroup
	processedResponses := make([]ClothingResponse, len(clothes))
	for i, clothingItem := range clothes {
		wg.Add(1)
		go func(index int, item models.Clothing) {
			defer wg.Done()
			var imageUrl string
			if item.ImageURL != nil && *item.ImageURL != "" {
				imageUrl = controller.readURL(ctx, *item.ImageURL)
			}
			processedResponses[index] = toClothingResponse(item, &imageUrl)
		}(i, clothingItem)
	}
	wg.Wait()
	return processedResponses
}

func (controller *ClothesController) ListClothes(c echo.Context) error {
	user, ok := c.Get("currentUser").(models.UserAccount)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database connection error"})
	}

	var clothes []models.Clothing
	if err := db.Where("owner_id = ?", user.ID).Order("id").Find(&clothes).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch clothes"})
	}
	processedResponses := controller.populatePresignedClothingImages(c.Request().Context(), clothes)

	response := ClothesListResponse{
		Tops:        []ClothingResponse{},
		Bottoms:     []ClothingResponse{},
		Shoes:       []ClothingResponse{},
		Accessories: []ClothingResponse{},
	}
	for _, resp := range processedResponses {
		category, _ := stylist.ParseCategory(resp.ClothingType)
		switch category {
		case stylist.Top:
			response.Tops = append(response.Tops, resp)
		case stylist.Bottom:
			response.Bottoms = append(response.Bottoms, resp)
		case stylist.Shoe:
			response.Shoes = append(response.Shoes, resp)
		case stylist.Accessory:
			response.Accessories = append(response.Accessories, resp)
		}
	}
	return c.JSON(http.StatusOK, response)
}

func (controller *ClothesController) GetClothing(c echo.Context) error {
	user := c.Get("currentUser").(models.UserAccount)
	db := c.Get("__db").(*gorm.DB)
	var clothingID uint
	if err := echo.PathParamsBinder(c).Uint("id", &clothingID).BindError(); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid clothing id"})
	}

	var clothing models.Clothing
	err := db.Where("id = ? AND owner_id = ?", clothingID, user.ID).Take(&clothing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Clothing not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch clothing"})
	}
	var imageUrl string
	if clothing.ImageURL != nil && *clothing.ImageURL != "" {
		imageUrl = controller.readURL(c.Request().Context(), *clothing.ImageURL)
	}
	return c.JSON(http.StatusOK, toClothingResponse(clothing, &imageUrl))
}
