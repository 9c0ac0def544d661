package services

import (
	"fmt"
	"net/http"
	"path/filepath"
	"slices"
	"strings"
)

var allowedImageExtensions = []string{".jpg", ".jpeg", ".png", ".webp"}

var imageMIMETypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
}

func IsAllowedImage(fileName string) bool {
	return slices.Contains(allowedImageExtensions, strings.ToLower(filepath.Ext(fileName)))
}

// ImageMIMEType prefers the file extension and sniffs the bytes otherwise.
func ImageMIMEType(fileName string, data []byte) string {
	if mime, ok := imageMIMETypes[strings.ToLower(filepath.Ext(fileName))]; ok {
		return mime
	}
	return http.DetectContentType(data)
}

// ClothingObjectKey is where a user's clothing photo lives in the bucket.
func ClothingObjectKey(userID uint, fileName string) string {
	base := filepath.Base(strings.ReplaceAll(fileName, "\\", "/"))
	return fmt.Sprintf("clothes/%d/%s", userID, base)
}

func StrPointer(str string) *string {
	if str == "" {
		return nil
	}
	return &str
}
