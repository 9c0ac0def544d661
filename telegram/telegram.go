package telegram

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"wardrobeapi/models"
	"wardrobeapi/stylist"

	"github.com/getsentry/sentry-go"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"gorm.io/gorm"
)

const telegramOutfitCount = 3

const helpMessage = "Send `/outfit <occasion>` to get outfit ideas from your closet.\n" +
	"Occasions: casual, office, party, formal.\n" +
	"Link your Telegram username in the app settings first."

func EscapeMessage(message string) string {
	r := strings.NewReplacer(
		"_", "\\_",
		"*", "\\*",
		"[", "\\[",
		"`", "\\`",
	)
	return r.Replace(message)
}

// OutfitBot answers closet owners who linked their Telegram username.
type OutfitBot struct {
	DB        *gorm.DB
	Generator stylist.Generator
}

// Run polls updates until ctx is cancelled.
func Run(ctx context.Context, token string, bot OutfitBot) error {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return fmt.Errorf("telegram bot init: %w", err)
	}
	log.Printf("[Telegram] Authorized on account %s", api.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := api.GetUpdatesChan(u)
	defer api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update := <-updates:
			if update.Message == nil {
				continue
			}
			text := bot.Reply(update.Message.From.UserName, update.Message.Command(), update.Message.CommandArguments())
			msg := tgbotapi.NewMessage(update.Message.Chat.ID, text)
			msg.ParseMode = tgbotapi.ModeMarkdown
			if _, err := api.Send(msg); err != nil {
				sentry.CaptureException(fmt.Errorf("[Telegram] send to %s: %w", update.Message.From.UserName, err))
			}
		}
	}
}

// Reply builds the answer to one command.
func (b OutfitBot) Reply(username, command, args string) string {
	if command != "outfit" {
		return helpMessage
	}
	occasion := stylist.Casual
	if arg := strings.TrimSpace(args); arg != "" {
		parsed, ok := stylist.ParseOccasion(arg)
		if !ok {
			return fmt.Sprintf("Unknown occasion %s.\n%s", EscapeMessage(arg), helpMessage)
		}
		occasion = parsed
	}

	if username == "" {
		return helpMessage
	}
	var user models.UserAccount
	err := b.DB.Where("telegram_username = ? AND banned = ?", username, false).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return helpMessage
	}
	if err != nil {
		sentry.CaptureException(fmt.Errorf("[Telegram] user %s: %w", username, err))
		return "Something went wrong, please try again later."
	}

	var clothes []models.Clothing
	if err := b.DB.Where("owner_id = ? AND status = ?", user.ID, models.ClothingStatusInCloset).Order("id").Find(&clothes).Error; err != nil {
		sentry.CaptureException(fmt.Errorf("[Telegram] closet of %d: %w", user.ID, err))
		return "Something went wrong, please try again later."
	}
	recs := b.Generator.Generate(models.WardrobeItems(clothes), occasion)
	if len(recs) > telegramOutfitCount {
		recs = recs[:telegramOutfitCount]
	}
	return FormatOutfits(recs, clothes, occasion)
}

func FormatOutfits(recs []stylist.Recommendation, clothes []models.Clothing, occasion stylist.Occasion) string {
	if len(recs) == 0 {
		return "Add at least one top and one bottom to your closet to get outfit ideas."
	}
	names := make(map[string]string, len(clothes))
	for _, c := range clothes {
		item := c.WardrobeItem()
		name := c.Name
		if name == "" {
			name = strings.TrimSpace(item.Color + " " + c.ClothingType)
		}
		names[item.ID] = name
	}

	var b strings.Builder
	fmt.Fprintf(&b, "*%s outfits*\n", EscapeMessage(string(occasion)))
	for i, rec := range recs {
		pieces := []string{names[rec.Top], names[rec.Bottom]}
		if rec.Shoe != "" {
			pieces = append(pieces, names[rec.Shoe])
		}
		if rec.Accessory != "" {
			pieces = append(pieces, names[rec.Accessory])
		}
		fmt.Fprintf(&b, "\n%d. %s (%.0f/100)\n%s\n", i+1, EscapeMessage(strings.Join(pieces, " + ")), rec.Score, EscapeMessage(rec.Reasoning))
	}
	return b.String()
}
