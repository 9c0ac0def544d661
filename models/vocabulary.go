package models

import (
	"wardrobeapi/stylist"

	"github.com/go-playground/validator"
)

func ValidateOccasion(fl validator.FieldLevel) bool {
	_, ok := stylist.ParseOccasion(fl.Field().String())
	return ok
}

// ValidateCategory accepts the stored clothing types, "shoes" included.
func ValidateCategory(fl validator.FieldLevel) bool {
	_, ok := stylist.ParseCategory(fl.Field().String())
	return ok
}
