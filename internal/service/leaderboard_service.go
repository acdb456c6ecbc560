package service

import (
	"context"
	"encoding/json"
	"fmt"
	"stackcommunity_backend/internal/model"
	"stackcommunity_backend/internal/repository"
	"stackcommunity_backend/pkg/logger"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const maxLeaderboardLimit = 100

type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Avatar   string `json:"avatar,omitempty"`
	Points   int    `json:"points"`
}

// leaderboardRow 缓存到 Redis 的最小字段集合
type leaderboardRow struct {
	Username string `json:"u"`
	Name     string `json:"n"`
	Avatar   string `json:"a,omitempty"`
	Points   int    `json:"p"`
}

type LeaderboardService struct {
	UserRepo     *repository.UserRepository
	BadgeService *BadgeService
	Redis        *redis.Client
	DefaultLimit int
	CacheTTL     time.Duration
}

func NewLeaderboardService(userRepo *repository.UserRepository, badges *BadgeService, rdb *redis.Client, defaultLimit int, cacheTTL time.Duration) *LeaderboardService {
	if defaultLimit <= 0 {
		defaultLimit = 10
	}
	return &LeaderboardService{
		UserRepo:     userRepo,
		BadgeService: badges,
		Redis:        rdb,
		DefaultLimit: defaultLimit,
		CacheTTL:     cacheTTL,
	}
}

func (s *LeaderboardService) clampLimit(limit int) int {
	if limit <= 0 {
		return s.DefaultLimit
	}
	if limit > maxLeaderboardLimit {
		return maxLeaderboardLimit
	}
	return limit
}

// GetLeaderboard 按积分降序返回前 limit 名，并在返回前为前三名发放名次徽章
func (s *LeaderboardService) GetLeaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	limit = s.clampLimit(limit)

	rows, err := s.snapshot(ctx, limit)
	if err != nil {
		return nil, err
	}

	ranked := make([]model.User, len(rows))
	entries := make([]LeaderboardEntry, len(rows))
	for i, row := range rows {
		ranked[i] = model.User{Username: row.Username}
		entries[i] = LeaderboardEntry{
			Rank:     i + 1,
			Username: row.Username,
			Name:     row.Name,
			Avatar:   row.Avatar,
			Points:   row.Points,
		}
	}

	if s.BadgeService != nil {
		s.BadgeService.CheckAndAwardLeaderboardBadges(ctx, ranked)
	}

	return entries, nil
}

func (s *LeaderboardService) cacheKey(limit int) string {
	return fmt.Sprintf("leaderboard:top:%d", limit)
}

// snapshot 优先读取 Redis 缓存，失效时回源数据库
func (s *LeaderboardService) snapshot(ctx context.Context, limit int) ([]leaderboardRow, error) {
	useCache := s.Redis != nil && s.CacheTTL > 0
	if useCache {
		cached, err := s.Redis.Get(ctx, s.cacheKey(limit)).Bytes()
		if err == nil {
			var rows []leaderboardRow
			if json.Unmarshal(cached, &rows) == nil {
				return rows, nil
			}
		} else if err != redis.Nil {
			logger.Log.Debug("leaderboard cache read failed", zap.Error(err))
		}
	}

	users, err := s.UserRepo.FindTopByPoints(ctx, limit)
	if err != nil {
		return nil, err
	}

	rows := make([]leaderboardRow, len(users))
	for i, u := range users {
		rows[i] = leaderboardRow{
			Username: u.Username,
			Name:     u.Name,
			Avatar:   u.Avatar,
			Points:   u.PointsValue(),
		}
	}

	if useCache {
		if payload, err := json.Marshal(rows); err == nil {
			s.Redis.Set(ctx, s.cacheKey(limit), payload, s.CacheTTL)
		}
	}
	return rows, nil
}
