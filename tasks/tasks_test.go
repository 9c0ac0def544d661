package tasks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"wardrobeapi/dbhelper"
	"wardrobeapi/llmjson"
	"wardrobeapi/models"
	"wardrobeapi/services"
	"wardrobeapi/stylist"
	"wardrobeapi/test"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastRetry = services.RetryPolicy{
	MaxAttempts:     3,
	InitialInterval: time.Millisecond,
	MaxInterval:     2 * time.Millisecond,
}

func wardrobe() []stylist.Item {
	return []stylist.Item{
		stylist.NewItem("1", stylist.Top, "white", "cotton", nil),
		stylist.NewItem("2", stylist.Bottom, "navy", "denim", nil),
		stylist.NewItem("3", stylist.Top, "black", "silk", nil),
		stylist.NewItem("4", stylist.Shoe, "white", "leather", nil),
	}
}

func recommending(text string) *test.MockStylistLLM {
	return &test.MockStylistLLM{
		RecommendFunc: func(ctx context.Context, prompt string) (*services.LLMResponse, error) {
			return test.TextResponse(text), nil
		},
	}
}

const validOutfits = `[{"outfitId":"o1","top":"1","bottom":"2","shoe":"4","score":91,
"reasoning":"Crisp and easy","occasion":"casual","colorScheme":"neutral","styleNotes":["roll the sleeves"],"confidence":0.9}]`

func TestRecommendOutfitsUsesGeneratorAnswer(t *testing.T) {
	llm := recommending(validOutfits)

	result := RecommendOutfits(context.Background(), llm, fastRetry, stylist.NewGenerator(5), wardrobe(), stylist.Casual)

	assert.Equal(t, models.RunSourceAI, result.Source)
	assert.Equal(t, "direct", result.Strategy)
	assert.Empty(t, result.FallbackReason)
	require.Len(t, result.Recommendations, 1)
	rec := result.Recommendations[0]
	assert.Equal(t, "o1", rec.OutfitID)
	assert.Equal(t, "4", rec.Shoe)
	assert.Equal(t, 91.0, rec.Score)
	assert.Equal(t, 1, llm.RecommendCalls())
	assert.Contains(t, llm.LastPrompt, "- 2 | bottom | navy | denim")
	require.NotNil(t, result.LLM)
	assert.Equal(t, int32(23), result.LLM.TotalTokenCount)
}

func TestRecommendOutfitsReadsFencedAnswer(t *testing.T) {
	llm := recommending("Here you go:\n```json\n" + validOutfits + "\n```")

	result := RecommendOutfits(context.Background(), llm, fastRetry, stylist.NewGenerator(5), wardrobe(), stylist.Casual)

	assert.Equal(t, models.RunSourceAI, result.Source)
	assert.Equal(t, "markdown", result.Strategy)
	assert.Len(t, result.Recommendations, 1)
}

func TestRecommendOutfitsFallsBackOnUnparseableText(t *testing.T) {
	llm := recommending("I would pair the white shirt with jeans.")

	result := RecommendOutfits(context.Background(), llm, fastRetry, stylist.NewGenerator(5), wardrobe(), stylist.Casual)

	assert.Equal(t, models.RunSourceLocal, result.Source)
	assert.Equal(t, FallbackUnparseable, result.FallbackReason)
	assert.Equal(t, llmjson.StrategyFallback, result.Strategy)
	assert.Len(t, result.Recommendations, 2)
	assert.NotNil(t, result.LLM)
}

func TestRecommendOutfitsFallsBackAfterRetries(t *testing.T) {
	llm := &test.MockStylistLLM{
		RecommendFunc: func(ctx context.Context, prompt string) (*services.LLMResponse, error) {
			return nil, errors.New("503 unavailable")
		},
	}

	result := RecommendOutfits(context.Background(), llm, fastRetry, stylist.NewGenerator(5), wardrobe(), stylist.Office)

	assert.Equal(t, models.RunSourceLocal, result.Source)
	assert.Equal(t, FallbackLLMError, result.FallbackReason)
	assert.Equal(t, 3, llm.RecommendCalls())
	assert.Len(t, result.Recommendations, 2)
	assert.Nil(t, result.LLM)
	for _, rec := range result.Recommendations {
		assert.Equal(t, "office", rec.Occasion)
	}
}

func TestRecommendOutfitsDoesNotRetryBlockedContent(t *testing.T) {
	llm := &test.MockStylistLLM{
		RecommendFunc: func(ctx context.Context, prompt string) (*services.LLMResponse, error) {
			return nil, services.ErrContentBlocked
		},
	}

	result := RecommendOutfits(context.Background(), llm, fastRetry, stylist.NewGenerator(5), wardrobe(), stylist.Casual)

	assert.Equal(t, FallbackLLMError, result.FallbackReason)
	assert.Equal(t, 1, llm.RecommendCalls())
}

func TestRecommendOutfitsDropsUnknownPieces(t *testing.T) {
	llm := recommending(`[{"top":"99","bottom":"2"},{"top":"2","bottom":"1"}]`)

	result := RecommendOutfits(context.Background(), llm, fastRetry, stylist.NewGenerator(5), wardrobe(), stylist.Casual)

	assert.Equal(t, models.RunSourceLocal, result.Source)
	assert.Equal(t, FallbackNoValidOutfit, result.FallbackReason)
	assert.Equal(t, "direct", result.Strategy)
	assert.Len(t, result.Recommendations, 2)
}

func TestRecommendOutfitsTruncatesToMaxResults(t *testing.T) {
	llm := recommending(`[{"top":"1","bottom":"2"},{"top":"3","bottom":"2"}]`)

	result := RecommendOutfits(context.Background(), llm, fastRetry, stylist.NewGenerator(1), wardrobe(), stylist.Casual)

	assert.Equal(t, models.RunSourceAI, result.Source)
	require.Len(t, result.Recommendations, 1)
	assert.Equal(t, "outfit_1", result.Recommendations[0].OutfitID)
	assert.Equal(t, stylist.DefaultScore, result.Recommendations[0].Score)
}

func TestRecommendOutfitsWithoutGenerator(t *testing.T) {
	result := RecommendOutfits(context.Background(), nil, fastRetry, stylist.NewGenerator(5), wardrobe(), stylist.Party)

	assert.Equal(t, models.RunSourceLocal, result.Source)
	assert.Empty(t, result.FallbackReason)
	assert.Len(t, result.Recommendations, 2)
}

func TestRecommendOutfitsSkipsGeneratorWithoutBottoms(t *testing.T) {
	llm := recommending(validOutfits)
	items := []stylist.Item{stylist.NewItem("1", stylist.Top, "white", "cotton", nil)}

	result := RecommendOutfits(context.Background(), llm, fastRetry, stylist.NewGenerator(5), items, stylist.Casual)

	assert.Empty(t, result.Recommendations)
	assert.Equal(t, models.RunSourceLocal, result.Source)
	assert.Equal(t, 0, llm.RecommendCalls())
}

func analyzing(text string) *test.MockStylistLLM {
	return &test.MockStylistLLM{
		AnalyzeFunc: func(ctx context.Context, image []byte, mimeType string) (*services.LLMResponse, error) {
			return test.TextResponse(text), nil
		},
	}
}

func TestAnalyzeClothingFromGenerator(t *testing.T) {
	llm := analyzing(`{"category":"Top","color":" Navy ","secondary_colors":["white","navy","red","beige"],
"style":"Casual","name":"Navy polo","confidence":1.7}`)

	analysis := AnalyzeClothing(context.Background(), llm, fastRetry, []byte("not an image"), "image/jpeg")

	assert.Equal(t, models.AnalysisSourceAI, analysis.Source)
	assert.Equal(t, stylist.Top, analysis.Category)
	assert.Equal(t, "navy", analysis.Colors.DominantColor)
	assert.Equal(t, []string{"white", "red"}, analysis.Colors.SecondaryColors)
	assert.Equal(t, []string{"navy", "white", "red"}, analysis.Colors.Palette)
	assert.Equal(t, stylist.MaterialForColor("navy"), analysis.Colors.Material)
	assert.Equal(t, 1.0, analysis.Colors.Confidence)
	assert.Equal(t, "casual", analysis.Style)
	assert.Equal(t, "Navy polo", analysis.Name)
	assert.Equal(t, "direct", analysis.Strategy)
}

func TestAnalyzeClothingFallsBackToLocalClassifier(t *testing.T) {
	cases := []struct {
		name string
		llm  services.StylistLLM
	}{
		{"no generator", nil},
		{"generator error", &test.MockStylistLLM{}},
		{"unparseable", analyzing("a lovely navy shirt")},
		{"no color", analyzing(`{"category":"bottom","material":"denim"}`)},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			analysis := AnalyzeClothing(context.Background(), c.llm, fastRetry, []byte("not an image"), "image/jpeg")

			assert.Equal(t, models.AnalysisSourceLocal, analysis.Source)
			assert.Equal(t, stylist.DefaultColorAnalysis(), analysis.Colors)
		})
	}
}

func solidPNG(t *testing.T, c color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestHandleClothingProcessingTask(t *testing.T) {
	db := dbhelper.SetupTestDB(t)
	user := test.FakeUser(db)
	key := fmt.Sprintf("clothes/%d/shirt.png", user.ID)
	clothing := models.Clothing{
		ClothingType:     "top",
		OwnerID:          user.ID,
		Status:           models.ClothingStatusTemporary,
		ImageURL:         &key,
		ProcessingStatus: models.ProcessingPending,
	}
	require.NoError(t, db.Create(&clothing).Error)

	llm := analyzing(`{"category":"top","color":"red","material":"silk","style":"elegant","name":"Red blouse","confidence":0.9}`)
	llm.EmbedFunc = func(ctx context.Context, text string) ([]float32, error) {
		return []float32{0.1, 0.2, 0.3}, nil
	}
	storage := test.MockStorage{Files: map[string][]byte{key: solidPNG(t, color.NRGBA{200, 20, 30, 255})}}
	notifier := &test.MockNotifier{}

	task, err := NewClothingProcessingTask(clothing.ID)
	require.NoError(t, err)
	err = HandleClothingProcessingTask(context.Background(), task, db, llm, storage, notifier, fastRetry)
	require.NoError(t, err)

	var stored models.Clothing
	require.NoError(t, db.First(&stored, clothing.ID).Error)
	assert.Equal(t, models.ProcessingCompleted, stored.ProcessingStatus)
	assert.Equal(t, models.ClothingStatusInCloset, stored.Status)
	assert.Equal(t, "red", stored.Color)
	assert.Equal(t, "silk", stored.Material)
	assert.Equal(t, "Red blouse", stored.Name)
	assert.Equal(t, models.AnalysisSourceAI, stored.AnalysisSource)
	require.NotNil(t, stored.Embedding)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, stored.Embedding.Slice())

	sent := notifier.Notifications()
	require.Len(t, sent, 1)
	assert.Equal(t, user.ID, sent[0].UserID)
	assert.Equal(t, "clothing_processed", sent[0].Data["type"])
}

func TestHandleClothingProcessingTaskMissingPhoto(t *testing.T) {
	db := dbhelper.SetupTestDB(t)
	user := test.FakeUser(db)
	key := "clothes/missing.png"
	clothing := models.Clothing{ClothingType: "top", OwnerID: user.ID, Status: models.ClothingStatusTemporary, ImageURL: &key}
	require.NoError(t, db.Create(&clothing).Error)

	task, err := NewClothingProcessingTask(clothing.ID)
	require.NoError(t, err)
	for i := 0; i < maxProcessRetries; i++ {
		err = HandleClothingProcessingTask(context.Background(), task, db, nil, test.MockStorage{}, nil, fastRetry)
		assert.Error(t, err)
	}

	var stored models.Clothing
	require.NoError(t, db.First(&stored, clothing.ID).Error)
	assert.Equal(t, models.ProcessingFailed, stored.ProcessingStatus)
	assert.Equal(t, maxProcessRetries, stored.ProcessRetryTimes)
	assert.Equal(t, models.ClothingStatusTemporary, stored.Status)
}

func TestHandleOutfitGenerationTask(t *testing.T) {
	db := dbhelper.SetupTestDB(t)
	user := test.FakeUser(db)
	top := test.FakeClothing(db, user, "top", "white", "cotton")
	bottom := test.FakeClothing(db, user, "bottom", "navy", "denim")

	run := models.NewOutfitGenerationRun(user.ID, stylist.Casual, true)
	require.NoError(t, db.Create(&run).Error)

	llm := recommending(fmt.Sprintf(`[{"outfitId":"o1","top":"%d","bottom":"%d","score":88}]`, top.ID, bottom.ID))
	notifier := &test.MockNotifier{}

	task, err := NewOutfitGenerationTask(run.RunID)
	require.NoError(t, err)
	err = HandleOutfitGenerationTask(context.Background(), task, db, llm, notifier, fastRetry, stylist.NewGenerator(5))
	require.NoError(t, err)

	var stored models.OutfitGenerationRun
	require.NoError(t, db.Preload("Recommendations").Where("run_id = ?", run.RunID).First(&stored).Error)
	assert.Equal(t, models.RunStatusCompleted, stored.Status)
	assert.Equal(t, models.RunSourceAI, stored.Source)
	require.Len(t, stored.Recommendations, 1)
	assert.Equal(t, top.ID, stored.Recommendations[0].TopClothingID)
	assert.Equal(t, 88.0, stored.Recommendations[0].Score)

	sent := notifier.Notifications()
	require.Len(t, sent, 1)
	assert.Equal(t, run.RunID.String(), sent[0].Data["run_id"])

	// a finished run is left alone
	err = HandleOutfitGenerationTask(context.Background(), task, db, llm, notifier, fastRetry, stylist.NewGenerator(5))
	require.NoError(t, err)
	assert.Equal(t, 1, llm.RecommendCalls())
}

func TestHandleOutfitGenerationTaskUnknownOccasion(t *testing.T) {
	db := dbhelper.SetupTestDB(t)
	user := test.FakeUser(db)

	run := models.NewOutfitGenerationRun(user.ID, stylist.Casual, true)
	run.Occasion = "brunch"
	require.NoError(t, db.Create(&run).Error)

	llm := recommending(`[]`)
	task, err := NewOutfitGenerationTask(run.RunID)
	require.NoError(t, err)
	err = HandleOutfitGenerationTask(context.Background(), task, db, llm, &test.MockNotifier{}, fastRetry, stylist.NewGenerator(5))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	var stored models.OutfitGenerationRun
	require.NoError(t, db.Where("run_id = ?", run.RunID).First(&stored).Error)
	assert.Equal(t, models.RunStatusFailed, stored.Status)
	require.NotNil(t, stored.FallbackReason)
	assert.Equal(t, "unknown occasion", *stored.FallbackReason)
	assert.Equal(t, 0, llm.RecommendCalls())
}

func TestScheduledDailyOutfitTask(t *testing.T) {
	db := dbhelper.SetupTestDB(t)
	user := test.FakeUser(db)
	test.FakeClothing(db, user, "top", "white", "cotton")
	test.FakeClothing(db, user, "bottom", "navy", "denim")
	muted := test.FakeUserV2(db, "Muted", "muted@example.com")
	require.NoError(t, db.Model(muted).Update("receive_notifications", false).Error)

	notifier := &test.MockNotifier{}
	err := ScheduledDailyOutfitTask(context.Background(), NewDailyOutfitsTask(), db, notifier, stylist.NewGenerator(5))
	require.NoError(t, err)

	sent := notifier.Notifications()
	require.Len(t, sent, 1)
	assert.Equal(t, user.ID, sent[0].UserID)
	assert.Equal(t, "daily_outfit", sent[0].Data["type"])

	var runs []models.OutfitGenerationRun
	require.NoError(t, db.Preload("Recommendations").Where("user_account_id = ?", user.ID).Find(&runs).Error)
	require.Len(t, runs, 1)
	assert.Equal(t, models.RunSourceLocal, runs[0].Source)
	assert.Len(t, runs[0].Recommendations, 1)
}
