package repository

import (
	"context"
	"errors"
	"stackcommunity_backend/internal/model"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CommunityRepository struct {
	DB *gorm.DB
}

func NewCommunityRepository(db *gorm.DB) *CommunityRepository {
	return &CommunityRepository{DB: db}
}

// Create 创建社区并把管理员加入成员表
func (r *CommunityRepository) Create(community *model.Community) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		community.ParticipantCount = 1
		if err := tx.Create(community).Error; err != nil {
			return err
		}
		return tx.Create(&model.CommunityMember{
			CommunityID: community.ID,
			Username:    community.Admin,
			JoinedAt:    time.Now(),
		}).Error
	})
}

func (r *CommunityRepository) FindByID(ctx context.Context, id string) (*model.Community, error) {
	var community model.Community
	err := r.DB.WithContext(ctx).First(&community, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &community, nil
}

func (r *CommunityRepository) FindWithPagination(offset, limit int, search string) ([]model.Community, int64, error) {
	var communities []model.Community
	var total int64

	query := r.DB.Model(&model.Community{})
	if search != "" {
		query = query.Where("name LIKE ? OR description LIKE ?", "%"+search+"%", "%"+search+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("participant_count DESC, created_at DESC").
		Offset(offset).Limit(limit).
		Find(&communities).Error
	return communities, total, err
}

func (r *CommunityRepository) IsParticipant(ctx context.Context, communityID, username string) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.CommunityMember{}).
		Where("community_id = ? AND username = ?", communityID, username).
		Count(&count).Error
	return count > 0, err
}

// AddParticipant 幂等加入，返回是否真正新增
func (r *CommunityRepository) AddParticipant(ctx context.Context, communityID, username string) (bool, error) {
	added := false
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&model.CommunityMember{
			CommunityID: communityID,
			Username:    username,
			JoinedAt:    time.Now(),
		})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		added = true
		return tx.Model(&model.Community{}).
			Where("id = ?", communityID).
			UpdateColumn("participant_count", gorm.Expr("participant_count + 1")).Error
	})
	return added, err
}

// RemoveParticipant 返回是否真正移除
func (r *CommunityRepository) RemoveParticipant(ctx context.Context, communityID, username string) (bool, error) {
	removed := false
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("community_id = ? AND username = ?", communityID, username).
			Delete(&model.CommunityMember{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		removed = true
		return tx.Model(&model.Community{}).
			Where("id = ? AND participant_count > 0", communityID).
			UpdateColumn("participant_count", gorm.Expr("participant_count - 1")).Error
	})
	return removed, err
}

func (r *CommunityRepository) ListParticipants(communityID string, offset, limit int) ([]model.CommunityMember, int64, error) {
	var members []model.CommunityMember
	var total int64

	query := r.DB.Model(&model.CommunityMember{}).Where("community_id = ?", communityID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Order("joined_at ASC").Offset(offset).Limit(limit).Find(&members).Error
	return members, total, err
}

// FindVisitStreak 未找到返回 (nil, nil)
func (r *CommunityRepository) FindVisitStreak(ctx context.Context, communityID, username string) (*model.CommunityVisitStreak, error) {
	var streak model.CommunityVisitStreak
	err := r.DB.WithContext(ctx).
		Where("community_id = ? AND username = ?", communityID, username).
		First(&streak).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &streak, nil
}

// CreateVisitStreak 并发首访时只有一条能写入，返回是否创建成功
func (r *CommunityRepository) CreateVisitStreak(ctx context.Context, streak *model.CommunityVisitStreak) (bool, error) {
	result := r.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(streak)
	return result.RowsAffected > 0, result.Error
}

// UpdateVisitStreak 以 last_visit_date 作为条件，避免同一天的并发访问重复累加
func (r *CommunityRepository) UpdateVisitStreak(ctx context.Context, streak *model.CommunityVisitStreak, previousVisit datatypes.Date) (bool, error) {
	result := r.DB.WithContext(ctx).Model(&model.CommunityVisitStreak{}).
		Where("id = ? AND last_visit_date = ?", streak.ID, previousVisit).
		Updates(map[string]interface{}{
			"last_visit_date": streak.LastVisitDate,
			"current_streak":  streak.CurrentStreak,
			"longest_streak":  streak.LongestStreak,
		})
	return result.RowsAffected > 0, result.Error
}
