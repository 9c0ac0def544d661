package test

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"time"

	"wardrobeapi/models"
	"wardrobeapi/services"

	"github.com/golang-jwt/jwt/v4"
	"gorm.io/gorm"
)

// TestJWTSecret signs tokens when JWT_SECRET is not set.
const TestJWTSecret = "test-secret"

func JWTSecret() string {
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		return secret
	}
	return TestJWTSecret
}

func JsonString(model interface{}) string {
	bytes, _ := json.Marshal(model)
	return string(bytes)
}

func NewJSONRequest(method string, target string, param interface{}) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(JsonString(param)))
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")
	return req
}

func GenerateUserToken(userPk string) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userPk,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour * 72)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	})
	t, err := token.SignedString([]byte(JWTSecret()))
	if err != nil {
		log.Fatalf("Error when signing user token for %s. Error %s ", userPk, err)
	}
	return t
}

func NewJSONAuthRequest(method string, target string, userPk string, param interface{}) *http.Request {
	req := NewJSONRequest(method, target, param)
	req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", GenerateUserToken(userPk)))
	return req
}

func FakeUser(db *gorm.DB) *models.UserAccount {
	return FakeUserV2(db, "OurName", "email@example.com")
}

func FakeUserV2(db *gorm.DB, userName string, email string) *models.UserAccount {
	user := &models.UserAccount{
		Name:                 userName,
		Email:                email,
		Platform:             models.PlatformIOS,
		LastIp:               "123.122.122.122",
		AvatarURL:            "pictureurl",
		Subscription:         models.Free,
		PreferredOccasion:    "casual",
		ReceiveNotifications: true,
	}
	db.Create(user)
	tokenDb := models.UserPushToken{
		UserAccountID: user.ID,
		Platform:      models.PlatformAndroid,
		Token:         "cX-UZ3zwQEiPt-2GJkG2gA:APA91bGqRflaGrJrnynhRwZ442HdgUjVcO7mWMFnx6IwAdJ9RRKopvSP4QU7hbvTmk1XAp8XGvtHZLvo5JmOPTVKBbGqqvhfbZWKlXA9csEjx1hgpNvrWepU",
		Active:        true,
	}
	db.Save(&tokenDb)
	return user
}

// FakeClothing stores a processed closet item for the user.
func FakeClothing(db *gorm.DB, owner *models.UserAccount, category, color, material string) *models.Clothing {
	key := fmt.Sprintf("clothes/%d/%s-%s.jpg", owner.ID, color, category)
	clothing := &models.Clothing{
		Name:             fmt.Sprintf("%s %s", color, category),
		ClothingType:     category,
		OwnerID:          owner.ID,
		Status:           models.ClothingStatusInCloset,
		ImageURL:         &key,
		ProcessingStatus: models.ProcessingCompleted,
		Color:            color,
		Material:         material,
		AnalysisSource:   models.AnalysisSourceLocal,
	}
	db.Create(clothing)
	return clothing
}

func TextResponse(text string) *services.LLMResponse {
	return &services.LLMResponse{
		Response:         text,
		Model:            "gemini-test",
		InputTokenCount:  10,
		OutputTokenCount: 13,
		TotalTokenCount:  23,
		IsTest:           true,
	}
}

// MockStylistLLM answers with the configured functions and counts calls.
// A nil function answers with an error.
type MockStylistLLM struct {
	AnalyzeFunc   func(ctx context.Context, image []byte, mimeType string) (*services.LLMResponse, error)
	RecommendFunc func(ctx context.Context, prompt string) (*services.LLMResponse, error)
	EmbedFunc     func(ctx context.Context, text string) ([]float32, error)

	mu             sync.Mutex
	analyzeCalls   int
	recommendCalls int
	embedCalls     int
	LastPrompt     string
}

func (m *MockStylistLLM) AnalyzeClothing(ctx context.Context, image []byte, mimeType string) (*services.LLMResponse, error) {
	m.mu.Lock()
	m.analyzeCalls++
	m.mu.Unlock()
	if m.AnalyzeFunc == nil {
		return nil, fmt.Errorf("analyze not configured")
	}
	return m.AnalyzeFunc(ctx, image, mimeType)
}

func (m *MockStylistLLM) RecommendOutfits(ctx context.Context, prompt string) (*services.LLMResponse, error) {
	m.mu.Lock()
	m.recommendCalls++
	m.LastPrompt = prompt
	m.mu.Unlock()
	if m.RecommendFunc == nil {
		return nil, fmt.Errorf("recommend not configured")
	}
	return m.RecommendFunc(ctx, prompt)
}

func (m *MockStylistLLM) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.embedCalls++
	m.mu.Unlock()
	if m.EmbedFunc == nil {
		return nil, fmt.Errorf("embed not configured")
	}
	return m.EmbedFunc(ctx, text)
}

func (m *MockStylistLLM) AnalyzeCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.analyzeCalls
}

func (m *MockStylistLLM) RecommendCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recommendCalls
}

func (m *MockStylistLLM) EmbedCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.embedCalls
}

// MockStorage serves downloads from Files and presigns fake links.
type MockStorage struct {
	MockUrl string
	Files   map[string][]byte
}

func (s MockStorage) PresignUpload(ctx context.Context, objectKey string) (string, error) {
	return fmt.Sprintf("https://fakebucketurl.com/%s", objectKey), nil
}

func (s MockStorage) PresignRead(ctx context.Context, objectKey string) (string, error) {
	return s.MockUrl, nil
}

func (s MockStorage) Download(ctx context.Context, objectKey string) ([]byte, error) {
	data, ok := s.Files[objectKey]
	if !ok {
		return nil, fmt.Errorf("object %s not found", objectKey)
	}
	return data, nil
}

type MockURLCache struct {
	MockUrl string
}

func (c MockURLCache) GetReadURL(ctx context.Context, objectKey string) (string, error) {
	if objectKey == "" {
		return "", nil
	}
	return c.MockUrl, nil
}

type Notification struct {
	UserID uint
	Title  string
	Body   string
	Data   map[string]string
}

// MockNotifier records notifications instead of pushing them.
type MockNotifier struct {
	mu   sync.Mutex
	Sent []Notification
}

func (n *MockNotifier) Notify(ctx context.Context, db *gorm.DB, userID uint, title, body string, data map[string]string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Sent = append(n.Sent, Notification{UserID: userID, Title: title, Body: body, Data: data})
	return nil
}

func (n *MockNotifier) Notifications() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notification(nil), n.Sent...)
}
