package models

import (
	"fmt"
	"time"

	"wardrobeapi/stylist"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/spf13/cast"
)

const (
	RunStatusPending   = "pending"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"

	RunSourceAI    = "ai"
	RunSourceLocal = "local"
)

type OutfitGenerationRun struct {
	JsonModel
	RunID         uuid.UUID   `gorm:"type:uuid;uniqueIndex" json:"run_id"`
	UserAccountID uint        `json:"-" gorm:"index"`
	UserAccount   UserAccount `json:"-"`
	Occasion      string      `json:"occasion"`
	RequestedAI   bool        `json:"requested_ai"`
	// ai when generator text survived validation, local otherwise
	Source             string                 `json:"source"`
	Status             string                 `json:"status"`
	ExtractionStrategy *string                `json:"extraction_strategy"`
	FallbackReason     *string                `json:"fallback_reason"`
	Duration           *float64               `json:"duration"`
	LLMModel           *string                `json:"llm_model"`
	LLMTotalTokenCount *int32                 `json:"llm_total_token_count"`
	Recommendations    []OutfitRecommendation `json:"recommendations"`
	CompletedAt        *time.Time             `json:"completed_at"`
}

type OutfitRecommendation struct {
	JsonModel
	OutfitGenerationRunID uint           `json:"-" gorm:"index"`
	Rank                  int            `json:"rank"`
	OutfitID              string         `json:"outfit_id"`
	TopClothingID         uint           `json:"top_clothing_id"`
	BottomClothingID      uint           `json:"bottom_clothing_id"`
	ShoeClothingID        *uint          `json:"shoe_clothing_id"`
	AccessoryClothingID   *uint          `json:"accessory_clothing_id"`
	Score                 float64        `json:"score"`
	Reasoning             string         `gorm:"type:text" json:"reasoning"`
	Occasion              string         `json:"occasion"`
	ColorScheme           string         `json:"color_scheme"`
	StyleNotes            pq.StringArray `gorm:"type:text[]" json:"style_notes"`
	Confidence            float64        `json:"confidence"`
}

func NewOutfitGenerationRun(userID uint, occasion stylist.Occasion, requestedAI bool) OutfitGenerationRun {
	return OutfitGenerationRun{
		RunID:         uuid.New(),
		UserAccountID: userID,
		Occasion:      string(occasion),
		RequestedAI:   requestedAI,
		Status:        RunStatusPending,
	}
}

// NewOutfitRecommendation maps a validated record onto clothing ids. Records
// must already be reconciled against the wardrobe.
func NewOutfitRecommendation(rec stylist.Recommendation, rank int) (OutfitRecommendation, error) {
	top, err := cast.ToUintE(rec.Top)
	if err != nil || top == 0 {
		return OutfitRecommendation{}, fmt.Errorf("invalid top id %q", rec.Top)
	}
	bottom, err := cast.ToUintE(rec.Bottom)
	if err != nil || bottom == 0 {
		return OutfitRecommendation{}, fmt.Errorf("invalid bottom id %q", rec.Bottom)
	}
	return OutfitRecommendation{
		Rank:                rank,
		OutfitID:            rec.OutfitID,
		TopClothingID:       top,
		BottomClothingID:    bottom,
		ShoeClothingID:      optionalID(rec.Shoe),
		AccessoryClothingID: optionalID(rec.Accessory),
		Score:               rec.Score,
		Reasoning:           rec.Reasoning,
		Occasion:            rec.Occasion,
		ColorScheme:         rec.ColorScheme,
		StyleNotes:          pq.StringArray(rec.StyleNotes),
		Confidence:          rec.Confidence,
	}, nil
}

func (r OutfitRecommendation) Recommendation() stylist.Recommendation {
	return stylist.Recommendation{
		OutfitID:    r.OutfitID,
		Top:         cast.ToString(r.TopClothingID),
		Bottom:      cast.ToString(r.BottomClothingID),
		Shoe:        idString(r.ShoeClothingID),
		Accessory:   idString(r.AccessoryClothingID),
		Score:       r.Score,
		Reasoning:   r.Reasoning,
		Occasion:    r.Occasion,
		ColorScheme: r.ColorScheme,
		StyleNotes:  []string(r.StyleNotes),
		Confidence:  r.Confidence,
	}
}

func optionalID(value string) *uint {
	id, err := cast.ToUintE(value)
	if value == "" || err != nil || id == 0 {
		return nil
	}
	return &id
}

func idString(id *uint) string {
	if id == nil {
		return ""
	}
	return cast.ToString(*id)
}
