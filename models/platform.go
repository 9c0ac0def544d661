package models

import (
	"database/sql/driver"
	"fmt"
	"regexp"

	"github.com/go-playground/validator"
)

type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
	PlatformWeb     Platform = "web"
)

var platformRule = regexp.MustCompile(`^(ios|android|web)$`)

func (l *Platform) Scan(value interface{}) error {
	switch v := value.(type) {
	case string:
		*l = Platform(v)
	case []byte:
		*l = Platform(v)
	case nil:
		*l = ""
	default:
		return fmt.Errorf("cannot scan %T into Platform", value)
	}
	return nil
}

func (l Platform) Value() (driver.Value, error) {
	return string(l), nil
}

func ValidatePlatform(fl validator.FieldLevel) bool {
	return ValidatePlatformRaw(fl.Field().String())
}

func ValidatePlatformRaw(value string) bool {
	return platformRule.MatchString(value)
}
