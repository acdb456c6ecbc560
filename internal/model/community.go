package model

import (
	"time"

	"gorm.io/datatypes"
)

// swagger:model Community
type Community struct {
	UUIDBase
	Name        string `gorm:"size:100;uniqueIndex;not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`
	Icon        string `gorm:"size:255" json:"icon"`
	// Admin 为创建者用户名，创建后不可修改
	Admin            string `gorm:"size:50;index;not null" json:"admin"`
	ParticipantCount int    `gorm:"default:0" json:"participantCount"`
}

func (Community) TableName() string {
	return "communities"
}

type CommunityMember struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	CommunityID string    `gorm:"uniqueIndex:idx_community_member;type:varchar(36);not null" json:"communityId"`
	Username    string    `gorm:"uniqueIndex:idx_community_member;size:50;not null" json:"username"`
	JoinedAt    time.Time `json:"joinedAt"`
}

func (CommunityMember) TableName() string {
	return "community_members"
}

// CommunityVisitStreak 每个 (社区, 用户) 一条，首次访问时创建，不删除
// swagger:model CommunityVisitStreak
type CommunityVisitStreak struct {
	ID            uint           `gorm:"primaryKey;autoIncrement" json:"-"`
	CommunityID   string         `gorm:"uniqueIndex:idx_visit_streak;type:varchar(36);not null" json:"communityId"`
	Username      string         `gorm:"uniqueIndex:idx_visit_streak;size:50;not null" json:"username"`
	LastVisitDate datatypes.Date `gorm:"not null" json:"lastVisitDate"`
	CurrentStreak int            `gorm:"not null;default:1" json:"currentStreak"`
	LongestStreak int            `gorm:"not null;default:1" json:"longestStreak"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

func (CommunityVisitStreak) TableName() string {
	return "community_visit_streaks"
}
