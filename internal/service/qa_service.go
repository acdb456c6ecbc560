package service

import (
	"context"
	"errors"
	"fmt"
	"stackcommunity_backend/internal/model"
	"stackcommunity_backend/internal/repository"
	"stackcommunity_backend/internal/util"
	"stackcommunity_backend/pkg/logger"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const questionViewWindow = 10 * time.Minute

// Actor 发起请求的已登录用户
type Actor struct {
	UserID   uint
	Username string
	Role     model.UserRole
}

type QuestionRequest struct {
	Title       string   `json:"title" binding:"required,max=255"`
	Content     string   `json:"content" binding:"required"`
	Tags        []string `json:"tags"`
	CommunityID string   `json:"communityId"`
}

type AnswerRequest struct {
	Content string `json:"content" binding:"required"`
}

type QuestionSummary struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Author      string    `json:"author"`
	Avatar      string    `json:"avatar"`
	CommunityID *string   `json:"communityId,omitempty"`
	Tags        []string  `json:"tags"`
	Score       int       `json:"score"`
	Views       int       `json:"views"`
	AnswerCount int       `json:"answerCount"`
	Solved      bool      `json:"solved"`
	CreatedAt   time.Time `json:"createdAt"`
}

type AnswerResponse struct {
	ID         string    `json:"id"`
	QuestionID string    `json:"questionId"`
	Author     string    `json:"author"`
	Avatar     string    `json:"avatar"`
	Content    string    `json:"content"`
	Score      int       `json:"score"`
	IsAccepted bool      `json:"isAccepted"`
	CreatedAt  time.Time `json:"createdAt"`
}

type QuestionDetail struct {
	QuestionSummary
	Content string           `json:"content"`
	Answers []AnswerResponse `json:"answers"`
}

type QAService struct {
	QuestionRepo  *repository.QuestionRepository
	CommunityRepo *repository.CommunityRepository
	Points        *PointsService
	Badges        *BadgeService
	Rewards       RewardDispatcher
	Redis         *redis.Client
}

func NewQAService(
	questionRepo *repository.QuestionRepository,
	communityRepo *repository.CommunityRepository,
	points *PointsService,
	badges *BadgeService,
	rewards RewardDispatcher,
	rdb *redis.Client,
) *QAService {
	return &QAService{
		QuestionRepo:  questionRepo,
		CommunityRepo: communityRepo,
		Points:        points,
		Badges:        badges,
		Rewards:       rewards,
		Redis:         rdb,
	}
}

func splitTags(tags string) []string {
	if tags == "" {
		return []string{}
	}
	return strings.Split(tags, ",")
}

func normalizeTags(tags []string) string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return strings.Join(out, ",")
}

func toQuestionSummary(q *model.Question) QuestionSummary {
	return QuestionSummary{
		ID:          q.ID,
		Title:       q.Title,
		Author:      q.Author.Username,
		Avatar:      q.Author.Avatar,
		CommunityID: q.CommunityID,
		Tags:        splitTags(q.Tags),
		Score:       q.Score,
		Views:       q.Views,
		AnswerCount: q.AnswerCount,
		Solved:      q.AcceptedAnswer != nil,
		CreatedAt:   q.CreatedAt,
	}
}

func toAnswerResponse(a *model.Answer) AnswerResponse {
	return AnswerResponse{
		ID:         a.ID,
		QuestionID: a.QuestionID,
		Author:     a.Author.Username,
		Avatar:     a.Author.Avatar,
		Content:    a.Content,
		Score:      a.Score,
		IsAccepted: a.IsAccepted,
		CreatedAt:  a.CreatedAt,
	}
}

func (s *QAService) GetQuestions(page, limit int, filter repository.QuestionFilter) ([]QuestionSummary, int64, error) {
	offset := (page - 1) * limit
	questions, total, err := s.QuestionRepo.FindWithPagination(offset, limit, filter)
	if err != nil {
		return nil, 0, err
	}

	list := make([]QuestionSummary, len(questions))
	for i := range questions {
		list[i] = toQuestionSummary(&questions[i])
	}
	return list, total, nil
}

// GetQuestionDetail viewer 为空时按 IP 去重浏览量
func (s *QAService) GetQuestionDetail(ctx context.Context, id, viewer, ip string) (*QuestionDetail, error) {
	question, err := s.QuestionRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrQuestionNotFound
		}
		return nil, err
	}

	if s.isNewView(ctx, id, viewer, ip) {
		if err := s.QuestionRepo.IncrementViews(id); err != nil {
			logger.Log.Warn("increment question views failed", zap.String("question", id), zap.Error(err))
		} else {
			question.Views++
		}
	}

	detail := &QuestionDetail{
		QuestionSummary: toQuestionSummary(question),
		Content:         question.Content,
		Answers:         make([]AnswerResponse, len(question.Answers)),
	}
	for i := range question.Answers {
		detail.Answers[i] = toAnswerResponse(&question.Answers[i])
	}
	return detail, nil
}

func (s *QAService) isNewView(ctx context.Context, questionID, viewer, ip string) bool {
	if s.Redis == nil {
		return true
	}
	var key string
	if viewer != "" {
		key = fmt.Sprintf("question_v:%s:u:%s", questionID, viewer)
	} else {
		key = fmt.Sprintf("question_v:%s:ip:%s", questionID, ip)
	}
	isNew, err := s.Redis.SetNX(ctx, key, "1", questionViewWindow).Result()
	if err != nil {
		// Redis 不可用时仍然计数
		return true
	}
	return isNew
}

func (s *QAService) CreateQuestion(ctx context.Context, actor Actor, req QuestionRequest) (*QuestionSummary, error) {
	question := &model.Question{
		Title:    strings.TrimSpace(req.Title),
		Content:  req.Content,
		AuthorID: actor.UserID,
		Tags:     normalizeTags(req.Tags),
	}

	if req.CommunityID != "" {
		if _, err := s.CommunityRepo.FindByID(ctx, req.CommunityID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, util.ErrCommunityNotFound
			}
			return nil, err
		}
		joined, err := s.CommunityRepo.IsParticipant(ctx, req.CommunityID, actor.Username)
		if err != nil {
			return nil, err
		}
		if !joined {
			return nil, util.ErrNotParticipant
		}
		communityID := req.CommunityID
		question.CommunityID = &communityID
	}

	if err := s.QuestionRepo.Create(question); err != nil {
		return nil, err
	}

	s.dispatchActivityRewards(ctx, actor.Username, ActionQuestion, ActivityQuestion, func(ctx context.Context) (int64, error) {
		return s.QuestionRepo.CountByAuthor(ctx, actor.UserID)
	})

	question.Author = model.User{Username: actor.Username}
	summary := toQuestionSummary(question)
	return &summary, nil
}

func (s *QAService) CreateAnswer(ctx context.Context, actor Actor, questionID string, req AnswerRequest) (*AnswerResponse, error) {
	if _, err := s.QuestionRepo.FindByID(questionID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrQuestionNotFound
		}
		return nil, err
	}

	answer := &model.Answer{
		QuestionID: questionID,
		AuthorID:   actor.UserID,
		Content:    req.Content,
	}
	if err := s.QuestionRepo.CreateAnswer(answer); err != nil {
		return nil, err
	}

	s.dispatchActivityRewards(ctx, actor.Username, ActionAnswer, ActivityAnswer, func(ctx context.Context) (int64, error) {
		return s.QuestionRepo.CountAnswersByAuthor(ctx, actor.UserID)
	})

	answer.Author = model.User{Username: actor.Username}
	resp := toAnswerResponse(answer)
	return &resp, nil
}

// dispatchActivityRewards 在主写入提交后投递积分与里程碑任务。
// 计数在请求内同步完成，避免异步执行时其他写入改变计数而错过阈值。
func (s *QAService) dispatchActivityRewards(ctx context.Context, username string, action PointAction, activity ActivityType, count func(context.Context) (int64, error)) {
	if s.Rewards == nil {
		return
	}

	tasks := []RewardTask{{
		Name: "points." + string(action),
		Run: func(ctx context.Context) error {
			s.Points.AwardForAction(ctx, username, action)
			return nil
		},
	}}

	total, err := count(ctx)
	if err != nil {
		logger.Log.Warn("count activity for milestone failed",
			zap.String("username", username),
			zap.String("activity", string(activity)),
			zap.Error(err))
	} else {
		tasks = append(tasks, RewardTask{
			Name: "milestone." + string(activity),
			Run: func(ctx context.Context) error {
				s.Badges.CheckAndAwardMilestone(ctx, username, activity, int(total))
				return nil
			},
		})
	}

	s.Rewards.Dispatch(ctx, tasks...)
}

// AcceptAnswer 只有提问者可以采纳
func (s *QAService) AcceptAnswer(ctx context.Context, actor Actor, answerID string) error {
	answer, err := s.QuestionRepo.FindAnswerByID(answerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrAnswerNotFound
		}
		return err
	}

	question, err := s.QuestionRepo.FindByID(answer.QuestionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrQuestionNotFound
		}
		return err
	}
	if question.AuthorID != actor.UserID {
		return util.ErrPermissionDenied
	}

	return s.QuestionRepo.AcceptAnswer(question.ID, answer.ID)
}

// Vote 返回用户对目标的当前票值，0 表示已撤销
func (s *QAService) Vote(ctx context.Context, actor Actor, targetType, targetID string, value int) (int, error) {
	if value != 1 && value != -1 {
		return 0, util.ErrInvalidVoteValue
	}

	var target model.VoteTarget
	switch targetType {
	case "question", "questions":
		target = model.VoteQuestion
	case "answer", "answers":
		target = model.VoteAnswer
	default:
		return 0, util.ErrInvalidVoteTarget
	}

	current, err := s.QuestionRepo.ToggleVote(actor.UserID, target, targetID, value)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if target == model.VoteQuestion {
			return 0, util.ErrQuestionNotFound
		}
		return 0, util.ErrAnswerNotFound
	case errors.Is(err, repository.ErrUnknownVoteTarget):
		return 0, util.ErrInvalidVoteTarget
	case err != nil:
		return 0, err
	}
	return current, nil
}
