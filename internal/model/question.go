package model

import (
	"time"
)

type Question struct {
	UUIDBase
	Title          string     `gorm:"size:255;not null" json:"title"`
	Content        string     `gorm:"type:text;not null" json:"content"`
	AuthorID       uint       `gorm:"index" json:"authorId"`
	Author         User       `gorm:"foreignKey:AuthorID" json:"author"`
	CommunityID    *string    `gorm:"index;type:varchar(36)" json:"communityId"`
	Tags           string     `gorm:"size:255" json:"tags"`
	Score          int        `gorm:"default:0" json:"score"`
	Views          int        `gorm:"default:0" json:"views"`
	AnswerCount    int        `gorm:"default:0" json:"answerCount"`
	AcceptedAnswer *string    `gorm:"type:varchar(36)" json:"acceptedAnswerId"`
	SolvedAt       *time.Time `json:"solvedAt"`
	Answers        []Answer   `gorm:"foreignKey:QuestionID" json:"answers,omitempty"`
}

func (Question) TableName() string {
	return "questions"
}

type Answer struct {
	UUIDBase
	QuestionID string `gorm:"index;type:varchar(36)" json:"questionId"`
	AuthorID   uint   `gorm:"index" json:"authorId"`
	Author     User   `gorm:"foreignKey:AuthorID" json:"author"`
	Content    string `gorm:"type:text;not null" json:"content"`
	Score      int    `gorm:"default:0" json:"score"`
	IsAccepted bool   `gorm:"default:false" json:"isAccepted"`
}

func (Answer) TableName() string {
	return "answers"
}

type VoteTarget string

const (
	VoteQuestion VoteTarget = "question"
	VoteAnswer   VoteTarget = "answer"
)

// Vote 每个用户对同一目标最多一票，Value 为 +1 或 -1
type Vote struct {
	ID         uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	UserID     uint       `gorm:"uniqueIndex:idx_user_vote" json:"userId"`
	TargetType VoteTarget `gorm:"uniqueIndex:idx_user_vote;size:20" json:"targetType"`
	TargetID   string     `gorm:"uniqueIndex:idx_user_vote;size:36" json:"targetId"`
	Value      int        `gorm:"not null" json:"value"`
}

func (Vote) TableName() string {
	return "votes"
}
