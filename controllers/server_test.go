package controllers

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"wardrobeapi/config"
	"wardrobeapi/dbhelper"
	"wardrobeapi/models"
	"wardrobeapi/test"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.JWTSecret = test.JWTSecret()
	cfg.FreeClosetLimit = 2
	cfg.OutfitMaxResults = 5
	return cfg
}

// setupTestServer skips when no database is configured.
func setupTestServer(t *testing.T) (*echo.Echo, *gorm.DB) {
	db := dbhelper.SetupTestDB(t)
	storage := test.MockStorage{MockUrl: "https://fakebucketurl.com/read"}
	e := SetupServer(testConfig(), db, storage, test.MockURLCache{MockUrl: storage.MockUrl}, nil)
	return e, db
}

func userPk(user *models.UserAccount) string {
	return strconv.FormatUint(uint64(user.ID), 10)
}

func TestMetricsEndpoint(t *testing.T) {
	e := SetupServer(testConfig(), nil, test.MockStorage{}, test.MockURLCache{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestShopRejectsInvalidToken(t *testing.T) {
	e := SetupServer(testConfig(), nil, test.MockStorage{}, test.MockURLCache{}, nil)

	req := test.NewJSONRequest(http.MethodGet, "/shop/clothes/list", "")
	req.Header.Add("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestValidatorTags(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.Validate(GenerateOutfitsIn{Occasion: "Office"}))
	assert.Error(t, v.Validate(GenerateOutfitsIn{Occasion: "wedding"}))
	assert.Error(t, v.Validate(GenerateOutfitsIn{}))

	assert.NoError(t, v.Validate(CreateClothingIn{FileName: StrPointer("a.jpg"), ClothingType: "shoes", AddToCloset: BoolPointer(true)}))
	assert.Error(t, v.Validate(CreateClothingIn{FileName: StrPointer("a.jpg"), ClothingType: "hat", AddToCloset: BoolPointer(true)}))

	assert.NoError(t, v.Validate(models.UserPushIn{Token: "abc", Platform: "android"}))
	assert.Error(t, v.Validate(models.UserPushIn{Token: "abc", Platform: "symbian"}))

	occasion := "party"
	assert.NoError(t, v.Validate(models.UserSettingsIn{PreferredOccasion: &occasion}))
	occasion = "beach"
	assert.Error(t, v.Validate(models.UserSettingsIn{PreferredOccasion: &occasion}))
	assert.NoError(t, v.Validate(models.UserSettingsIn{}))
}

func TestBannedUserIsLocked(t *testing.T) {
	e, db := setupTestServer(t)
	user := test.FakeUser(db)
	require.NoError(t, db.Model(user).Update("banned", true).Error)

	req := test.NewJSONAuthRequest(http.MethodGet, "/shop/profile/me", userPk(user), "")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusLocked, rec.Code)
}

func TestUnknownUserIsUnauthorized(t *testing.T) {
	e, _ := setupTestServer(t)

	req := test.NewJSONAuthRequest(http.MethodGet, "/shop/profile/me", "987654", "")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
