package models

import (
	"database/sql/driver"
	"fmt"
	"regexp"

	"github.com/go-playground/validator"
)

type Subscription string

const (
	Free    Subscription = "free" // basic
	Trial   Subscription = "trial"
	Pro     Subscription = "pro"
	ProPlus Subscription = "pro_plus" // pro +
)

var subscriptionRule = regexp.MustCompile(`^(free|trial|pro|pro_plus)$`)

func (l *Subscription) Scan(value interface{}) error {
	switch v := value.(type) {
	case string:
		*l = Subscription(v)
	case []byte:
		*l = Subscription(v)
	case nil:
		*l = Free
	default:
		return fmt.Errorf("cannot scan %T into Subscription", value)
	}
	return nil
}

func (l Subscription) Value() (driver.Value, error) {
	return string(l), nil
}

// Limited reports whether closet size is capped for this plan.
func (l Subscription) Limited() bool {
	return l == "" || l == Free
}

func ValidateSubscription(fl validator.FieldLevel) bool {
	return ValidateSubscriptionRaw(fl.Field().String())
}

func ValidateSubscriptionRaw(value string) bool {
	return subscriptionRule.MatchString(value)
}
