package model

import (
	"time"

	"gorm.io/datatypes"
)

type UserRole string

const (
	Member UserRole = "member"
	Admin  UserRole = "admin"
)

// swagger:model User
type User struct {
	BaseModel
	Username string   `gorm:"size:50;uniqueIndex;not null" json:"username"`
	Name     string   `gorm:"size:100;not null" json:"name"`
	Email    string   `gorm:"size:100;uniqueIndex;not null" json:"-"`
	Password string   `gorm:"size:100;not null" json:"-"`
	Role     UserRole `gorm:"size:20;default:'member'" json:"role"`
	Bio      string   `gorm:"size:500" json:"bio"`
	Avatar   string   `gorm:"size:255" json:"avatar"`
	// Points 为空视为 0
	Points *int `gorm:"default:0" json:"points"`
	// Badges 只允许通过 UserRepository 的 CAS 方法修改
	Badges       datatypes.JSONSlice[Badge] `json:"badges"`
	BadgeVersion int                        `gorm:"not null;default:0" json:"-"`
	LastSeen     time.Time                  `json:"lastSeen"`
}

func (User) TableName() string {
	return "users"
}

// PointsValue 返回积分，未设置时为 0
func (u *User) PointsValue() int {
	if u == nil || u.Points == nil {
		return 0
	}
	return *u.Points
}
