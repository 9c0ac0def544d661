package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"wardrobeapi/models"
	"wardrobeapi/test"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateClothingOk(t *testing.T) {
	e, db := setupTestServer(t)
	user := test.FakeUser(db)

	reqBody := CreateClothingIn{
		Name:         "Test Clothing",
		Description:  StrPointer("This is a test clothing item"),
		ClothingType: "Shoes",
		FileName:     StrPointer("../sneakers.JPG"),
		AddToCloset:  BoolPointer(false),
	}
	req := test.NewJSONAuthRequest(http.MethodPost, "/shop/clothes/create", userPk(user), reqBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var response ClothingCreatedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, reqBody.Name, response.ClothingResponse.Name)
	assert.Equal(t, "shoe", response.ClothingResponse.ClothingType)
	assert.Equal(t, models.ClothingStatusTemporary, response.ClothingResponse.Status)
	assert.Equal(t, fmt.Sprintf("https://fakebucketurl.com/clothes/%d/sneakers.JPG", user.ID), response.FileUploadUrl)

	var stored models.Clothing
	require.NoError(t, db.First(&stored, response.ClothingResponse.ID).Error)
	require.NotNil(t, stored.ImageURL)
	assert.Equal(t, fmt.Sprintf("clothes/%d/sneakers.JPG", user.ID), *stored.ImageURL)
}

func TestCreateClothingInvalidInput(t *testing.T) {
	e, db := setupTestServer(t)
	user := test.FakeUser(db)

	cases := []struct {
		name  string
		body  CreateClothingIn
		field string
	}{
		{"missing type", CreateClothingIn{FileName: StrPointer("a.jpg"), AddToCloset: BoolPointer(false)}, "ClothingType"},
		{"unknown type", CreateClothingIn{FileName: StrPointer("a.jpg"), ClothingType: "hat", AddToCloset: BoolPointer(false)}, "ClothingType"},
		{"not an image", CreateClothingIn{FileName: StrPointer("a.pdf"), ClothingType: "top", AddToCloset: BoolPointer(false)}, "photos"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := test.NewJSONAuthRequest(http.MethodPost, "/shop/clothes/create", userPk(user), c.body)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var response map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
			assert.Contains(t, response["error"], c.field)
		})
	}
}

func TestCreateClothingFreeLimit(t *testing.T) {
	e, db := setupTestServer(t)
	user := test.FakeUser(db)
	test.FakeClothing(db, user, "top", "white", "cotton")
	test.FakeClothing(db, user, "bottom", "navy", "denim")

	reqBody := CreateClothingIn{ClothingType: "top", FileName: StrPointer("c.png"), AddToCloset: BoolPointer(false)}
	req := test.NewJSONAuthRequest(http.MethodPost, "/shop/clothes/create", userPk(user), reqBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)

	require.NoError(t, db.Model(user).Update("subscription", models.Pro).Error)
	req = test.NewJSONAuthRequest(http.MethodPost, "/shop/clothes/create", userPk(user), reqBody)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestCreateClothingNeedsWorkerToProcess(t *testing.T) {
	e, db := setupTestServer(t)
	user := test.FakeUser(db)

	reqBody := CreateClothingIn{ClothingType: "top", FileName: StrPointer("c.png"), AddToCloset: BoolPointer(true)}
	req := test.NewJSONAuthRequest(http.MethodPost, "/shop/clothes/create", userPk(user), reqBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var count int64
	db.Model(&models.Clothing{}).Where("owner_id = ?", user.ID).Count(&count)
	assert.Zero(t, count)
}

func TestListClothesGroupsByCategory(t *testing.T) {
	e, db := setupTestServer(t)
	user := test.FakeUser(db)
	other := test.FakeUserV2(db, "Other", "other@example.com")
	top := test.FakeClothing(db, user, "top", "white", "cotton")
	shoes := test.FakeClothing(db, user, "shoes", "black", "leather")
	accessory := test.FakeClothing(db, user, "accessory", "gold", "metal")
	test.FakeClothing(db, other, "bottom", "navy", "denim")

	req := test.NewJSONAuthRequest(http.MethodGet, "/shop/clothes/list", userPk(user), "")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var response ClothesListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	require.Len(t, response.Tops, 1)
	require.Len(t, response.Bottoms, 0)
	require.Len(t, response.Shoes, 1)
	require.Len(t, response.Accessories, 1)
	assert.Equal(t, top.Name, response.Tops[0].Name)
	assert.Equal(t, shoes.Name, response.Shoes[0].Name)
	assert.Equal(t, accessory.Name, response.Accessories[0].Name)
	require.NotNil(t, response.Tops[0].Uri)
	assert.Equal(t, "https://fakebucketurl.com/read", *response.Tops[0].Uri)
}

func TestListClothesEmpty(t *testing.T) {
	e, db := setupTestServer(t)
	user := test.FakeUser(db)

	req := test.NewJSONAuthRequest(http.MethodGet, "/shop/clothes/list", userPk(user), "")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var response ClothesListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Len(t, response.Tops, 0)
	assert.Len(t, response.Bottoms, 0)
	assert.Len(t, response.Shoes, 0)
	assert.Len(t, response.Accessories, 0)
}

func TestGetClothing(t *testing.T) {
	e, db := setupTestServer(t)
	user := test.FakeUser(db)
	other := test.FakeUserV2(db, "Other", "other@example.com")
	mine := test.FakeClothing(db, user, "top", "white", "cotton")
	theirs := test.FakeClothing(db, other, "top", "red", "silk")

	req := test.NewJSONAuthRequest(http.MethodGet, fmt.Sprintf("/shop/clothes/%d", mine.ID), userPk(user), "")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var response ClothingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "white", response.Color)
	assert.Equal(t, "cotton", response.Material)

	req = test.NewJSONAuthRequest(http.MethodGet, fmt.Sprintf("/shop/clothes/%d", theirs.ID), userPk(user), "")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
