package models

import (
	"strconv"

	"wardrobeapi/stylist"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

const (
	ClothingStatusTemporary = "temporary"
	ClothingStatusInCloset  = "in_closet"

	ProcessingPending    = "pending"
	ProcessingInProgress = "processing"
	ProcessingCompleted  = "completed"
	ProcessingFailed     = "failed"

	AnalysisSourceAI    = "ai"
	AnalysisSourceLocal = "local"
)

type Clothing struct {
	JsonModel
	Name        string      `json:"name"`
	Description *string     `gorm:"type:text" json:"description"`
	// top, bottom, shoes, accessory
	ClothingType string      `json:"clothing_type" gorm:"index"`
	Owner        UserAccount `json:"-"`
	OwnerID      uint        `json:"-" gorm:"index"`
	Status       string      `json:"status"`
	ImageURL     *string     `json:"image_url"`

	ProcessingStatus    string  `json:"processing_status"`
	ProcessRetryTimes   int     `json:"process_retry_times"`
	ProcessErrorMessage *string `json:"process_error_message"`

	Color              string           `json:"color"`
	SecondaryColors    pq.StringArray   `gorm:"type:text[]" json:"secondary_colors"`
	Palette            pq.StringArray   `gorm:"type:text[]" json:"palette"`
	Material           string           `json:"material"`
	Style              string           `json:"style"`
	AnalysisConfidence float64          `json:"analysis_confidence"`
	AnalysisSource     string           `json:"analysis_source"`
	Embedding          *pgvector.Vector `gorm:"type:vector" json:"-"`
}

// WardrobeItem is the read-only view the outfit scorer works on.
func (c Clothing) WardrobeItem() stylist.Item {
	category, _ := stylist.ParseCategory(c.ClothingType)
	var embedding []float64
	if c.Embedding != nil {
		embedding = stylist.Float64s(c.Embedding.Slice())
	}
	return stylist.NewItem(strconv.FormatUint(uint64(c.ID), 10), category, c.Color, c.Material, embedding)
}

func WardrobeItems(clothes []Clothing) []stylist.Item {
	items := make([]stylist.Item, 0, len(clothes))
	for _, c := range clothes {
		items = append(items, c.WardrobeItem())
	}
	return items
}

// ApplyAnalysis copies a color analysis onto the clothing row.
func (c *Clothing) ApplyAnalysis(analysis stylist.ColorAnalysis, source string) {
	c.Color = analysis.DominantColor
	c.SecondaryColors = pq.StringArray(analysis.SecondaryColors)
	c.Palette = pq.StringArray(analysis.Palette)
	c.Material = analysis.Material
	c.AnalysisConfidence = analysis.Confidence
	c.AnalysisSource = source
}
