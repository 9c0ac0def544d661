package models

type UserAccount struct {
	JsonModel
	Name             string       `json:"name"`
	Email            string       `json:"email" gorm:"unique"`
	Banned           bool         `gorm:"default:false" json:"-"`
	LastIp           string       `json:"-"`
	Platform         Platform     `json:"platform"`
	TelegramUsername string       `json:"telegram_username" gorm:"index"`
	Subscription     Subscription `gorm:"default:free" json:"subscription"`
	AvatarURL        string       `json:"avatar_url"`
	// occasion used for the daily outfit alert
	PreferredOccasion    string `gorm:"default:casual" json:"preferred_occasion"`
	ReceiveNotifications bool   `gorm:"default:true" json:"receive_notifications"`
}

type UserPushToken struct {
	JsonModel
	UserAccountID uint        `json:"-"`
	UserAccount   UserAccount `json:"-"`
	Platform      Platform    `json:"platform"`
	Token         string      `json:"token" gorm:"index"`
	Active        bool        `gorm:"default:false" json:"-"`
}

type UserPushIn struct {
	Token    string `json:"token" validate:"required,max=4096"`
	Platform string `json:"platform" validate:"required,platform"`
}

type UserSettingsIn struct {
	ReceiveNotifications *bool   `json:"receive_notifications"`
	PreferredOccasion    *string `json:"preferred_occasion" validate:"omitempty,occasion"`
	TelegramUsername     *string `json:"telegram_username" validate:"omitempty,max=64"`
}

type UserInfoOut struct {
	ID                   uint         `json:"id"`
	Name                 string       `json:"name"`
	Email                string       `json:"email"`
	AvatarURL            string       `json:"avatar_url"`
	Subscription         Subscription `json:"subscription"`
	TelegramUsername     string       `json:"telegram_username"`
	PreferredOccasion    string       `json:"preferred_occasion"`
	ReceiveNotifications bool         `json:"receive_notifications"`
	ClosetCount          int64        `json:"closet_count"`
}
