package service

import (
	"context"
	"stackcommunity_backend/internal/config"
	"stackcommunity_backend/internal/repository"
	"stackcommunity_backend/pkg/logger"
	"stackcommunity_backend/pkg/monitoring"
	"stackcommunity_backend/pkg/tracing"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type PointAction string

const (
	ActionQuestion      PointAction = "question"
	ActionAnswer        PointAction = "answer"
	ActionCommunityJoin PointAction = "community_join"
)

// PointsService 积分账本。所有方法都不向调用方返回错误
type PointsService struct {
	UserRepo *repository.UserRepository

	mu      sync.RWMutex
	amounts map[PointAction]int
}

func NewPointsService(userRepo *repository.UserRepository, cfg config.PointsConfig) *PointsService {
	s := &PointsService{UserRepo: userRepo}
	s.SetAmounts(cfg)
	return s
}

// SetAmounts 配置热更新时调用
func (s *PointsService) SetAmounts(cfg config.PointsConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.amounts = map[PointAction]int{
		ActionQuestion:      cfg.Question,
		ActionAnswer:        cfg.Answer,
		ActionCommunityJoin: cfg.CommunityJoin,
	}
}

func (s *PointsService) AmountFor(action PointAction) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.amounts[action]
}

// AwardPoints 给用户加分并返回新的总分；用户不存在或写入失败时返回 0
func (s *PointsService) AwardPoints(ctx context.Context, username string, amount int) int {
	ctx, span := tracing.StartSpan(ctx, "points.award",
		attribute.String("username", username),
		attribute.Int("amount", amount),
	)
	defer span.End()

	if amount <= 0 || username == "" {
		return 0
	}

	rows, err := s.UserRepo.IncrementPoints(ctx, username, amount)
	if err != nil {
		logger.Log.Warn("award points failed", zap.String("username", username), zap.Int("amount", amount), zap.Error(err))
		return 0
	}
	if rows == 0 {
		logger.Log.Debug("award points skipped, user not found", zap.String("username", username))
		return 0
	}

	return s.GetPoints(ctx, username)
}

// AwardForAction 按动作类型查表发放积分
func (s *PointsService) AwardForAction(ctx context.Context, username string, action PointAction) int {
	amount := s.AmountFor(action)
	total := s.AwardPoints(ctx, username, amount)
	if total > 0 {
		monitoring.PointsAwarded.WithLabelValues(string(action)).Add(float64(amount))
	}
	return total
}

// GetPoints 任何失败都返回 0
func (s *PointsService) GetPoints(ctx context.Context, username string) int {
	user, err := s.UserRepo.FindByUsername(ctx, username)
	if err != nil {
		return 0
	}
	return user.PointsValue()
}
