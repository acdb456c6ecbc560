package repository

import (
	"context"
	"errors"
	"stackcommunity_backend/internal/model"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrBadgeConflict 表示 CAS 写入时 badge_version 已被其他请求修改
var ErrBadgeConflict = errors.New("badge collection modified concurrently")

type UserRepository struct {
	DB *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{DB: db}
}

func (r *UserRepository) Create(user *model.User) error {
	if user.Badges == nil {
		user.Badges = datatypes.JSONSlice[model.Badge]{}
	}
	if user.LastSeen.IsZero() {
		user.LastSeen = time.Now()
	}
	return r.DB.Create(user).Error
}

func (r *UserRepository) FindByID(id uint) (*model.User, error) {
	var user model.User
	err := r.DB.First(&user, id).Error
	return &user, err
}

func (r *UserRepository) FindByEmail(email string) (*model.User, error) {
	var user model.User
	err := r.DB.Where("email = ?", email).First(&user).Error
	return &user, err
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	err := r.DB.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateProfile 只更新资料字段，不触碰积分与徽章
func (r *UserRepository) UpdateProfile(userID uint, fields map[string]interface{}) error {
	return r.DB.Model(&model.User{}).
		Where("id = ?", userID).
		Select("name", "bio", "avatar").
		Updates(fields).Error
}

func (r *UserRepository) UpdateLastSeen(userID uint) error {
	return r.DB.Model(&model.User{}).
		Where("id = ?", userID).
		UpdateColumn("last_seen", time.Now()).Error
}

// IncrementPoints 原子累加积分（NULL 视为 0），返回受影响行数
func (r *UserRepository) IncrementPoints(ctx context.Context, username string, amount int) (int64, error) {
	result := r.DB.WithContext(ctx).Model(&model.User{}).
		Where("username = ?", username).
		UpdateColumn("points", gorm.Expr("COALESCE(points, 0) + ?", amount))
	return result.RowsAffected, result.Error
}

func (r *UserRepository) FindTopByPoints(ctx context.Context, limit int) ([]model.User, error) {
	var users []model.User
	err := r.DB.WithContext(ctx).
		Order("COALESCE(points, 0) DESC").
		Order("id ASC").
		Limit(limit).
		Find(&users).Error
	return users, err
}

// CompareAndSwapBadges 仅当 badge_version 仍为 expectedVersion 时整体替换徽章列表
// 版本不一致返回 ErrBadgeConflict，调用方应重新读取后重试
func (r *UserRepository) CompareAndSwapBadges(ctx context.Context, userID uint, expectedVersion int, badges []model.Badge) error {
	if badges == nil {
		badges = []model.Badge{}
	}
	result := r.DB.WithContext(ctx).Model(&model.User{}).
		Where("id = ? AND badge_version = ?", userID, expectedVersion).
		UpdateColumns(map[string]interface{}{
			"badges":        datatypes.JSONSlice[model.Badge](badges),
			"badge_version": gorm.Expr("badge_version + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrBadgeConflict
	}
	return nil
}

func (r *UserRepository) ExistsByUsername(username string) (bool, error) {
	var count int64
	err := r.DB.Model(&model.User{}).Where("username = ?", username).Count(&count).Error
	return count > 0, err
}

// FindBatchAfter 按主键游标分批读取用户，用于离线维护脚本
func (r *UserRepository) FindBatchAfter(ctx context.Context, afterID uint, limit int) ([]model.User, error) {
	var users []model.User
	err := r.DB.WithContext(ctx).
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Find(&users).Error
	return users, err
}
