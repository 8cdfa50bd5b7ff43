package profile

import (
	"io"
	"time"
)

type UserProfile struct {
	UserID      string    `gorm:"column:user_id;primaryKey" json:"user_id"`
	DisplayName string    `gorm:"column:display_name;not null" json:"display_name"`
	Bio         string    `gorm:"column:bio" json:"bio"`
	Location    string    `gorm:"column:location" json:"location"`
	Website     string    `gorm:"column:website" json:"website"`
	AvatarURL   string    `gorm:"column:avatar_url" json:"avatar_url"`
	CoverURL    string    `gorm:"column:cover_url" json:"cover_url"`
	CreatedAt   time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (UserProfile) TableName() string { return "user_profiles" }

type UpdateParams struct {
	DisplayName *string `json:"display_name"`
	Bio         *string `json:"bio"`
	Location    *string `json:"location"`
	Website     *string `json:"website"`
}

type ImageParams struct {
	UserID      string
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}
