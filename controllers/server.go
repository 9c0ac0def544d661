package controllers

import (
	"net/http"

	"wardrobeapi/config"
	"wardrobeapi/metrics"
	"wardrobeapi/models"
	"wardrobeapi/services"
	"wardrobeapi/stylist"

	"github.com/go-playground/validator"
	"github.com/hibiken/asynq"
	echojwt "github.com/labstack/echo-jwt"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"gorm.io/gorm"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func NewValidator() *CustomValidator {
	v := validator.New()
	v.RegisterValidation("platform", models.ValidatePlatform)
	v.RegisterValidation("occasion", models.ValidateOccasion)
	v.RegisterValidation("category", models.ValidateCategory)
	return &CustomValidator{validator: v}
}

// SetupServer wires routes. asynqClient may be nil, then work that needs the
// worker is refused with 503.
func SetupServer(
	cfg *config.Config,
	db *gorm.DB,
	storage services.StorageProvider,
	urlCache services.URLCacheServiceProvider,
	asynqClient *asynq.Client,
) *echo.Echo {
	e := echo.New()
	e.Validator = NewValidator()
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set("__db", db)
			if asynqClient != nil {
				c.Set("__asynqclient", asynqClient)
			}
			return next(c)
		}
	})
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	shopGroup := e.Group("shop", echojwt.JWT([]byte(cfg.JWTSecret)))
	shopGroup.Use(UserMiddleware)

	generator := stylist.NewGenerator(cfg.OutfitMaxResults)
	profileController := ProfileController{}
	profileController.ProfileRoutes(shopGroup.Group("/profile"))

	clothesController := ClothesController{
		Storage:         storage,
		URLCache:        urlCache,
		FreeClosetLimit: cfg.FreeClosetLimit,
	}
	clothesController.ClothingRoutes(shopGroup.Group("/clothes"))

	outfitsController := OutfitsController{Generator: generator}
	outfitsController.OutfitRoutes(shopGroup.Group("/outfits"))

	return e
}
