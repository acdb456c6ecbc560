package service

import (
	"context"
	"fmt"
	"stackcommunity_backend/internal/model"
	"stackcommunity_backend/internal/repository"
	"stackcommunity_backend/pkg/logger"
	"stackcommunity_backend/pkg/monitoring"
	"stackcommunity_backend/pkg/tracing"
	"time"

	"github.com/go-redis/redis/v8"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type VisitTransition string

const (
	VisitFirst     VisitTransition = "first"
	VisitSameDay   VisitTransition = "same_day"
	VisitContinued VisitTransition = "continued"
	VisitBroken    VisitTransition = "broken"
)

// VisitStreakService 维护 (社区, 用户) 的连续访问天数
type VisitStreakService struct {
	CommunityRepo *repository.CommunityRepository
	Redis         *redis.Client

	now func() time.Time
}

func NewVisitStreakService(communityRepo *repository.CommunityRepository, rdb *redis.Client) *VisitStreakService {
	return &VisitStreakService{
		CommunityRepo: communityRepo,
		Redis:         rdb,
		now:           time.Now,
	}
}

// calendarDay 丢弃时分秒，按本地日历日期归一到 UTC 零点
func calendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// daysBetween 两个日期之间的整天数，from 晚于 to 时返回 0
func daysBetween(from, to time.Time) int {
	days := int(calendarDay(to).Sub(calendarDay(from)).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// nextStreak 纯状态转移，prev 为 nil 表示首次访问
func nextStreak(prev *model.CommunityVisitStreak, today time.Time) (model.CommunityVisitStreak, VisitTransition) {
	todayDate := datatypes.Date(calendarDay(today))
	if prev == nil {
		return model.CommunityVisitStreak{
			LastVisitDate: todayDate,
			CurrentStreak: 1,
			LongestStreak: 1,
		}, VisitFirst
	}

	next := *prev
	switch daysBetween(time.Time(prev.LastVisitDate), today) {
	case 0:
		return next, VisitSameDay
	case 1:
		next.CurrentStreak++
		if next.CurrentStreak > next.LongestStreak {
			next.LongestStreak = next.CurrentStreak
		}
		next.LastVisitDate = todayDate
		return next, VisitContinued
	default:
		next.CurrentStreak = 1
		next.LastVisitDate = todayDate
		return next, VisitBroken
	}
}

func visitKey(communityID, username string, day time.Time) string {
	return fmt.Sprintf("community_visit:%s:%s:%s", communityID, username, day.Format("2006-01-02"))
}

// RecordVisit 记录一次访问；社区不存在或任何失败都静默返回
func (s *VisitStreakService) RecordVisit(ctx context.Context, communityID, username string) {
	if _, err := s.recordVisit(ctx, communityID, username); err != nil {
		logger.Log.Warn("record community visit failed",
			zap.String("communityId", communityID),
			zap.String("username", username),
			zap.Error(err))
	}
}

func (s *VisitStreakService) recordVisit(ctx context.Context, communityID, username string) (VisitTransition, error) {
	ctx, span := tracing.StartSpan(ctx, "community.record_visit",
		attribute.String("communityId", communityID),
		attribute.String("username", username),
	)
	defer span.End()

	if communityID == "" || username == "" {
		return "", nil
	}

	now := s.now()

	// 同一天内的重复访问直接在 Redis 层拦截
	var key string
	if s.Redis != nil {
		key = visitKey(communityID, username, calendarDay(now))
		first, err := s.Redis.SetNX(ctx, key, "1", 26*time.Hour).Result()
		if err == nil && !first {
			return VisitSameDay, nil
		}
	}

	transition, err := s.applyVisit(ctx, communityID, username, now)
	if err != nil && key != "" {
		s.Redis.Del(ctx, key)
	}
	if transition != "" {
		monitoring.VisitTransitions.WithLabelValues(string(transition)).Inc()
	}
	return transition, err
}

func (s *VisitStreakService) applyVisit(ctx context.Context, communityID, username string, now time.Time) (VisitTransition, error) {
	if _, err := s.CommunityRepo.FindByID(ctx, communityID); err != nil {
		return "", nil
	}

	prev, err := s.CommunityRepo.FindVisitStreak(ctx, communityID, username)
	if err != nil {
		return "", err
	}

	next, transition := nextStreak(prev, now)
	switch transition {
	case VisitSameDay:
		return transition, nil
	case VisitFirst:
		next.CommunityID = communityID
		next.Username = username
		created, err := s.CommunityRepo.CreateVisitStreak(ctx, &next)
		if err != nil {
			return "", err
		}
		if !created {
			// 并发首访，另一请求已经创建
			return VisitSameDay, nil
		}
		return transition, nil
	default:
		if _, err := s.CommunityRepo.UpdateVisitStreak(ctx, &next, prev.LastVisitDate); err != nil {
			return "", err
		}
		return transition, nil
	}
}

// GetStreak 未访问过返回 nil
func (s *VisitStreakService) GetStreak(ctx context.Context, communityID, username string) (*model.CommunityVisitStreak, error) {
	return s.CommunityRepo.FindVisitStreak(ctx, communityID, username)
}
