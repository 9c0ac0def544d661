package services

import (
	"context"
	"fmt"

	"wardrobeapi/models"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/getsentry/sentry-go"
	"gorm.io/gorm"
)

type Notifier interface {
	Notify(ctx context.Context, db *gorm.DB, userID uint, title, body string, data map[string]string) error
}

type FirebaseNotifier struct {
	App *firebase.App
}

func stringMapToInterfaceMap(stringMap map[string]string) map[string]interface{} {
	interfaceMap := make(map[string]interface{}, len(stringMap))
	for key, value := range stringMap {
		interfaceMap[key] = value
	}
	return interfaceMap
}

func pushMessage(token models.UserPushToken, title, body string, data map[string]string) *messaging.Message {
	return &messaging.Message{
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
		APNS: &messaging.APNSConfig{
			FCMOptions: &messaging.APNSFCMOptions{AnalyticsLabel: "wardrobe"},
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					ContentAvailable: true,
					Alert:            &messaging.ApsAlert{Title: title, Body: body},
					Sound:            "default",
				},
				CustomData: stringMapToInterfaceMap(data),
			},
		},
		Android: &messaging.AndroidConfig{
			Notification: &messaging.AndroidNotification{
				Priority:  messaging.AndroidNotificationPriority(messaging.PriorityMax),
				ChannelID: "wardrobe-high-priority",
			},
		},
		Token: token.Token,
	}
}

// Notify pushes to every active token of the user. Tokens FCM reports as
// unregistered are deactivated.
func (n FirebaseNotifier) Notify(ctx context.Context, db *gorm.DB, userID uint, title, body string, data map[string]string) error {
	var tokens []models.UserPushToken
	if err := db.Where("user_account_id = ? AND active = true", userID).Find(&tokens).Error; err != nil {
		return fmt.Errorf("load push tokens: %w", err)
	}
	if len(tokens) == 0 {
		return nil
	}

	client, err := n.App.Messaging(ctx)
	if err != nil {
		return fmt.Errorf("firebase messaging: %w", err)
	}
	messages := make([]*messaging.Message, 0, len(tokens))
	for _, token := range tokens {
		messages = append(messages, pushMessage(token, title, body, data))
	}

	br, err := client.SendEach(ctx, messages)
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	fmt.Printf("[Push: user %v] sent %d, failed %d\n", userID, br.SuccessCount, br.FailureCount)
	for i, resp := range br.Responses {
		if resp.Success {
			continue
		}
		if messaging.IsRegistrationTokenNotRegistered(resp.Error) {
			db.Model(&models.UserPushToken{}).Where("id = ?", tokens[i].ID).Update("active", false)
			continue
		}
		sentry.CaptureException(fmt.Errorf("[Push: user %v] token %v: %w", userID, tokens[i].ID, resp.Error))
	}
	return nil
}
