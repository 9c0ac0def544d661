package controllers

import (
	"fmt"
	"log"
	"net/http"

	"wardrobeapi/models"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

type ProfileController struct {
}

func (controller *ProfileController) ProfileRoutes(g *echo.Group) {
	g.GET("/me", func(c echo.Context) error {
		user := c.Get("currentUser").(models.UserAccount)
		db := c.Get("__db").(*gorm.DB)
		var closetCount int64
		if err := db.Model(&models.Clothing{}).Where("owner_id = ? AND status = ?", user.ID, models.ClothingStatusInCloset).Count(&closetCount).Error; err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{
				"message": "Something happened",
			})
		}
		return c.JSON(http.StatusOK, userInfo(user, closetCount))
	})

	g.POST("/push-token", func(c echo.Context) error {
		user := c.Get("currentUser").(models.UserAccount)
		db := c.Get("__db").(*gorm.DB)
		var tokenRequest models.UserPushIn
		if err := c.Bind(&tokenRequest); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		}
		if err := c.Validate(tokenRequest); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}

		pushData := models.UserPushToken{
			Platform:      models.Platform(tokenRequest.Platform),
			Token:         tokenRequest.Token,
			UserAccountID: user.ID,
			Active:        true,
		}
		// same token/device can sign in to diff accs and still receive pushes.
		result := db.Where("token = ? and user_account_id = ?", tokenRequest.Token, user.ID).FirstOrCreate(&pushData)
		if result.Error != nil {
			log.Println(result.Error)
			return echo.ErrInternalServerError
		}
		if !pushData.Active {
			db.Model(&pushData).Update("active", true)
		}
		fmt.Println("Push id ", pushData.ID, " Platform: ", pushData.Platform, "User ID:", pushData.UserAccountID)
		return c.JSON(http.StatusOK, echo.Map{
			"message": "registered",
			"push_id": pushData.ID,
		})
	})

	g.PATCH("/settings", func(c echo.Context) error {
		user := c.Get("currentUser").(models.UserAccount)
		db := c.Get("__db").(*gorm.DB)
		var req models.UserSettingsIn
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		}
		if err := c.Validate(req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}

		updates := map[string]interface{}{}
		if req.ReceiveNotifications != nil {
			updates["receive_notifications"] = *req.ReceiveNotifications
			user.ReceiveNotifications = *req.ReceiveNotifications
		}
		if req.PreferredOccasion != nil {
			updates["preferred_occasion"] = *req.PreferredOccasion
			user.PreferredOccasion = *req.PreferredOccasion
		}
		if req.TelegramUsername != nil {
			updates["telegram_username"] = *req.TelegramUsername
			user.TelegramUsername = *req.TelegramUsername
		}
		if len(updates) > 0 {
			if err := db.Model(&user).Updates(updates).Error; err != nil {
				return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to save settings"})
			}
		}
		var closetCount int64
		db.Model(&models.Clothing{}).Where("owner_id = ? AND status = ?", user.ID, models.ClothingStatusInCloset).Count(&closetCount)
		return c.JSON(http.StatusOK, userInfo(user, closetCount))
	})
}

func userInfo(user models.UserAccount, closetCount int64) models.UserInfoOut {
	return models.UserInfoOut{
		ID:                   user.ID,
		Name:                 user.Name,
		Email:                user.Email,
		AvatarURL:            user.AvatarURL,
		Subscription:         user.Subscription,
		TelegramUsername:     user.TelegramUsername,
		PreferredOccasion:    user.PreferredOccasion,
		ReceiveNotifications: user.ReceiveNotifications,
		ClosetCount:          closetCount,
	}
}
