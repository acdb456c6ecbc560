package service

import (
	"context"
	"errors"
	"stackcommunity_backend/internal/model"
	"stackcommunity_backend/internal/repository"
	"stackcommunity_backend/pkg/logger"
	"stackcommunity_backend/pkg/monitoring"
	"stackcommunity_backend/pkg/tracing"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const defaultMaxAwardRetries = 5

// 排行榜前三名对应的徽章
var leaderboardBadgeNames = [3]string{"1st Place", "2nd Place", "3rd Place"}

// BadgeService 徽章发放。公开方法吞掉所有错误，只返回 bool 或空集合
type BadgeService struct {
	UserRepo      *repository.UserRepository
	CommunityRepo *repository.CommunityRepository
	MaxRetries    int

	now        func() time.Time
	mu         sync.RWMutex
	milestones MilestoneTable
}

func NewBadgeService(userRepo *repository.UserRepository, communityRepo *repository.CommunityRepository, milestones MilestoneTable, maxRetries int) *BadgeService {
	if maxRetries <= 0 {
		maxRetries = defaultMaxAwardRetries
	}
	if milestones == nil {
		milestones = DefaultMilestoneTable()
	}
	return &BadgeService{
		UserRepo:      userRepo,
		CommunityRepo: communityRepo,
		MaxRetries:    maxRetries,
		now:           time.Now,
		milestones:    milestones,
	}
}

func (s *BadgeService) SetMilestones(table MilestoneTable) {
	s.mu.Lock()
	s.milestones = table
	s.mu.Unlock()
}

func (s *BadgeService) Milestones() MilestoneTable {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.milestones
}

func (s *BadgeService) GetUserBadges(ctx context.Context, username string) []model.Badge {
	user, err := s.UserRepo.FindByUsername(ctx, username)
	if err != nil || len(user.Badges) == 0 {
		return []model.Badge{}
	}
	return user.Badges
}

func (s *BadgeService) HasBadge(ctx context.Context, username, badgeName string) bool {
	user, err := s.UserRepo.FindByUsername(ctx, username)
	if err != nil {
		return false
	}
	return model.ContainsBadge(user.Badges, badgeName)
}

// AwardBadge 仅当用户还没有同名徽章时追加，返回是否真正写入。
// 写入以 badge_version 做 CAS，版本冲突时重新读取再判断，重试耗尽按失败处理
func (s *BadgeService) AwardBadge(ctx context.Context, username string, badge model.Badge) bool {
	ctx, span := tracing.StartSpan(ctx, "badge.award",
		attribute.String("username", username),
		attribute.String("badge", badge.Name),
	)
	defer span.End()

	if badge.EarnedAt.IsZero() {
		badge.EarnedAt = s.now()
	}
	kind := string(badge.Kind)

	for attempt := 0; attempt < s.MaxRetries; attempt++ {
		user, err := s.UserRepo.FindByUsername(ctx, username)
		if err != nil {
			logger.Log.Debug("award badge: user lookup failed", zap.String("username", username), zap.Error(err))
			monitoring.BadgeAwards.WithLabelValues(kind, "failed").Inc()
			return false
		}
		if model.ContainsBadge(user.Badges, badge.Name) {
			monitoring.BadgeAwards.WithLabelValues(kind, "duplicate").Inc()
			return false
		}

		next := make([]model.Badge, 0, len(user.Badges)+1)
		next = append(next, user.Badges...)
		next = append(next, badge)

		err = s.UserRepo.CompareAndSwapBadges(ctx, user.ID, user.BadgeVersion, next)
		if err == nil {
			monitoring.BadgeAwards.WithLabelValues(kind, "awarded").Inc()
			logger.Log.Info("badge awarded", zap.String("username", username), zap.String("badge", badge.Name), zap.String("kind", kind))
			return true
		}
		if !errors.Is(err, repository.ErrBadgeConflict) {
			logger.Log.Warn("award badge failed", zap.String("username", username), zap.String("badge", badge.Name), zap.Error(err))
			monitoring.BadgeAwards.WithLabelValues(kind, "failed").Inc()
			return false
		}
		monitoring.BadgeCASConflicts.Inc()
	}

	logger.Log.Warn("award badge gave up after repeated conflicts",
		zap.String("username", username), zap.String("badge", badge.Name), zap.Int("attempts", s.MaxRetries))
	monitoring.BadgeAwards.WithLabelValues(kind, "failed").Inc()
	return false
}

// DeduplicateBadges 修复同名重复徽章，保留数组中第一次出现的那个
func (s *BadgeService) DeduplicateBadges(ctx context.Context, username string) {
	for attempt := 0; attempt < s.MaxRetries; attempt++ {
		user, err := s.UserRepo.FindByUsername(ctx, username)
		if err != nil || len(user.Badges) <= 1 {
			return
		}

		deduped := model.DedupeBadges(user.Badges)
		if len(deduped) == len(user.Badges) {
			return
		}

		err = s.UserRepo.CompareAndSwapBadges(ctx, user.ID, user.BadgeVersion, deduped)
		if err == nil {
			logger.Log.Info("duplicate badges removed",
				zap.String("username", username),
				zap.Int("removed", len(user.Badges)-len(deduped)))
			return
		}
		if !errors.Is(err, repository.ErrBadgeConflict) {
			logger.Log.Warn("deduplicate badges failed", zap.String("username", username), zap.Error(err))
			return
		}
		monitoring.BadgeCASConflicts.Inc()
	}
}

func (s *BadgeService) CheckAndAwardMilestone(ctx context.Context, username string, activity ActivityType, currentCount int) bool {
	rule, ok := s.Milestones().Match(activity, currentCount)
	if !ok {
		return false
	}
	if s.HasBadge(ctx, username, rule.BadgeName) {
		return false
	}
	return s.AwardBadge(ctx, username, model.Badge{Kind: model.BadgeMilestone, Name: rule.BadgeName})
}

func CommunityBadgeName(communityName string) string {
	return "Community Member: " + communityName
}

func (s *BadgeService) CheckAndAwardCommunityBadge(ctx context.Context, username, communityID string) bool {
	community, err := s.CommunityRepo.FindByID(ctx, communityID)
	if err != nil {
		return false
	}
	return s.AwardBadge(ctx, username, model.Badge{Kind: model.BadgeCommunity, Name: CommunityBadgeName(community.Name)})
}

// CheckAndAwardLeaderboardBadges 给排行榜前三名发放名次徽章，已发放的不会收回
func (s *BadgeService) CheckAndAwardLeaderboardBadges(ctx context.Context, leaderboard []model.User) {
	for rank, name := range leaderboardBadgeNames {
		if rank >= len(leaderboard) {
			return
		}
		username := leaderboard[rank].Username
		if username == "" {
			continue
		}

		s.DeduplicateBadges(ctx, username)
		if s.HasBadge(ctx, username, name) {
			continue
		}
		s.AwardBadge(ctx, username, model.Badge{Kind: model.BadgeLeaderboard, Name: name})
	}
}
