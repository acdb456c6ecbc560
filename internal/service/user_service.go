package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"stackcommunity_backend/internal/model"
	"stackcommunity_backend/internal/repository"
	"stackcommunity_backend/internal/util"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserProfile 对外公开的用户资料
type UserProfile struct {
	Username      string        `json:"username"`
	Name          string        `json:"name"`
	Bio           string        `json:"bio"`
	Avatar        string        `json:"avatar"`
	Role          string        `json:"role"`
	Points        int           `json:"points"`
	Badges        []model.Badge `json:"badges"`
	QuestionCount int64         `json:"questionCount"`
	AnswerCount   int64         `json:"answerCount"`
	JoinedAt      time.Time     `json:"joinedAt"`
	LastSeen      time.Time     `json:"lastSeen"`
}

type UpdateProfileInput struct {
	Name *string `json:"name"`
	Bio  *string `json:"bio"`
}

type UserService struct {
	UserRepo     *repository.UserRepository
	QuestionRepo *repository.QuestionRepository
	Storage      *StorageService
}

func NewUserService(userRepo *repository.UserRepository, questionRepo *repository.QuestionRepository, storage *StorageService) *UserService {
	return &UserService{
		UserRepo:     userRepo,
		QuestionRepo: questionRepo,
		Storage:      storage,
	}
}

func (s *UserService) GetProfile(ctx context.Context, username string) (*UserProfile, error) {
	user, err := s.UserRepo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrUserNotFound
		}
		return nil, err
	}
	return s.buildProfile(ctx, user)
}

func (s *UserService) GetProfileByID(ctx context.Context, userID uint) (*UserProfile, error) {
	user, err := s.UserRepo.FindByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrUserNotFound
		}
		return nil, err
	}
	return s.buildProfile(ctx, user)
}

func (s *UserService) buildProfile(ctx context.Context, user *model.User) (*UserProfile, error) {
	questions, err := s.QuestionRepo.CountByAuthor(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	answers, err := s.QuestionRepo.CountAnswersByAuthor(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	badges := []model.Badge(user.Badges)
	if badges == nil {
		badges = []model.Badge{}
	}

	return &UserProfile{
		Username:      user.Username,
		Name:          user.Name,
		Bio:           user.Bio,
		Avatar:        user.Avatar,
		Role:          string(user.Role),
		Points:        user.PointsValue(),
		Badges:        badges,
		QuestionCount: questions,
		AnswerCount:   answers,
		JoinedAt:      user.CreatedAt,
		LastSeen:      user.LastSeen,
	}, nil
}

// UpdateProfile 用户名不可修改，只允许更新昵称与简介
func (s *UserService) UpdateProfile(ctx context.Context, userID uint, input UpdateProfileInput) (*UserProfile, error) {
	user, err := s.UserRepo.FindByID(userID)
	if err != nil {
		return nil, util.ErrUserNotFound
	}

	fields := map[string]interface{}{
		"name":   user.Name,
		"bio":    user.Bio,
		"avatar": user.Avatar,
	}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, errors.New("name cannot be empty")
		}
		fields["name"] = name
	}
	if input.Bio != nil {
		fields["bio"] = strings.TrimSpace(*input.Bio)
	}

	if err := s.UserRepo.UpdateProfile(userID, fields); err != nil {
		return nil, err
	}
	return s.GetProfileByID(ctx, userID)
}

// UploadAvatar 上传头像并回写头像地址，返回新的 URL
func (s *UserService) UploadAvatar(ctx context.Context, userID uint, filename string, reader io.Reader, size int64, contentType string) (string, error) {
	user, err := s.UserRepo.FindByID(userID)
	if err != nil {
		return "", util.ErrUserNotFound
	}

	ext := strings.ToLower(filepath.Ext(filename))
	key := fmt.Sprintf("avatars/%s/%s%s", user.Username, uuid.NewString(), ext)
	url, err := s.Storage.Upload(ctx, key, reader, size, contentType)
	if err != nil {
		return "", err
	}

	err = s.UserRepo.UpdateProfile(userID, map[string]interface{}{
		"name":   user.Name,
		"bio":    user.Bio,
		"avatar": url,
	})
	if err != nil {
		return "", err
	}
	s.Storage.RemoveReplaced(ctx, user.Avatar)
	return url, nil
}
