package model

import "gorm.io/gorm"

// User struct
type User struct {
	gorm.Model
	Username   string `gorm:"uniqueIndex;not null" json:"username"`
	Email      string `gorm:"uniqueIndex;not null" json:"email"`
	Password   string `gorm:"not null" json:"password"`
	Role       string `json:"role"`
	Name       string `json:"name"`
	AvatarID   uint   `gorm:"default:0" json:"avatar_id"`
	IsProvider bool   `gorm:"default:false" json:"is_provider"`

	Otp_enabled bool `gorm:"default:false;"`
	Otp_secret  string
}
