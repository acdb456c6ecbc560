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

type CommunityRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Description string `json:"description"`
}

type CommunityResponse struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Description      string    `json:"description"`
	Icon             string    `json:"icon"`
	Admin            string    `json:"admin"`
	ParticipantCount int       `json:"participantCount"`
	IsParticipant    bool      `json:"isParticipant"`
	CreatedAt        time.Time `json:"createdAt"`
}

type MembershipResult struct {
	Joined           bool `json:"joined"`
	ParticipantCount int  `json:"participantCount"`
}

type StreakResponse struct {
	CommunityID   string     `json:"communityId"`
	CurrentStreak int        `json:"currentStreak"`
	LongestStreak int        `json:"longestStreak"`
	LastVisitDate *time.Time `json:"lastVisitDate"`
}

type CommunityService struct {
	CommunityRepo *repository.CommunityRepository
	Points        *PointsService
	Badges        *BadgeService
	Visits        *VisitStreakService
	Rewards       RewardDispatcher
	Storage       *StorageService
}

func NewCommunityService(
	communityRepo *repository.CommunityRepository,
	points *PointsService,
	badges *BadgeService,
	visits *VisitStreakService,
	rewards RewardDispatcher,
	storage *StorageService,
) *CommunityService {
	return &CommunityService{
		CommunityRepo: communityRepo,
		Points:        points,
		Badges:        badges,
		Visits:        visits,
		Rewards:       rewards,
		Storage:       storage,
	}
}

func toCommunityResponse(c *model.Community) CommunityResponse {
	return CommunityResponse{
		ID:               c.ID,
		Name:             c.Name,
		Description:      c.Description,
		Icon:             c.Icon,
		Admin:            c.Admin,
		ParticipantCount: c.ParticipantCount,
		CreatedAt:        c.CreatedAt,
	}
}

func (s *CommunityService) findCommunity(ctx context.Context, id string) (*model.Community, error) {
	community, err := s.CommunityRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCommunityNotFound
		}
		return nil, err
	}
	return community, nil
}

// CreateCommunity 创建者成为管理员，同时是第一位成员
func (s *CommunityService) CreateCommunity(ctx context.Context, actor Actor, req CommunityRequest) (*CommunityResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, errors.New("community name cannot be empty")
	}

	community := &model.Community{
		Name:        name,
		Description: req.Description,
		Admin:       actor.Username,
	}
	// 名称唯一由索引保证，并发创建时落败的一方同样得到 ErrCommunityNameTaken
	if err := s.CommunityRepo.Create(community); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, util.ErrCommunityNameTaken
		}
		return nil, err
	}

	resp := toCommunityResponse(community)
	resp.IsParticipant = true
	return &resp, nil
}

func (s *CommunityService) GetCommunities(ctx context.Context, page, limit int, search, viewer string) ([]CommunityResponse, int64, error) {
	offset := (page - 1) * limit
	communities, total, err := s.CommunityRepo.FindWithPagination(offset, limit, search)
	if err != nil {
		return nil, 0, err
	}

	list := make([]CommunityResponse, len(communities))
	for i := range communities {
		list[i] = toCommunityResponse(&communities[i])
		if viewer != "" {
			list[i].IsParticipant, _ = s.CommunityRepo.IsParticipant(ctx, communities[i].ID, viewer)
		}
	}
	return list, total, nil
}

// GetCommunity 已登录的访问者会记录一次访问
func (s *CommunityService) GetCommunity(ctx context.Context, id, viewer string) (*CommunityResponse, error) {
	community, err := s.findCommunity(ctx, id)
	if err != nil {
		return nil, err
	}

	resp := toCommunityResponse(community)
	if viewer != "" {
		s.Visits.RecordVisit(ctx, id, viewer)
		resp.IsParticipant, _ = s.CommunityRepo.IsParticipant(ctx, id, viewer)
	}
	return &resp, nil
}

// ToggleMembership 非成员加入，成员退出；管理员不能退出
func (s *CommunityService) ToggleMembership(ctx context.Context, actor Actor, id string) (*MembershipResult, error) {
	community, err := s.findCommunity(ctx, id)
	if err != nil {
		return nil, err
	}

	joined, err := s.CommunityRepo.IsParticipant(ctx, id, actor.Username)
	if err != nil {
		return nil, err
	}

	if joined {
		if community.Admin == actor.Username {
			return nil, util.ErrAdminCannotLeave
		}
		removed, err := s.CommunityRepo.RemoveParticipant(ctx, id, actor.Username)
		if err != nil {
			return nil, err
		}
		count := community.ParticipantCount
		if removed && count > 0 {
			count--
		}
		return &MembershipResult{Joined: false, ParticipantCount: count}, nil
	}

	added, err := s.CommunityRepo.AddParticipant(ctx, id, actor.Username)
	if err != nil {
		return nil, err
	}
	count := community.ParticipantCount
	if added {
		count++
		s.dispatchJoinRewards(ctx, actor.Username, id)
	}
	return &MembershipResult{Joined: true, ParticipantCount: count}, nil
}

func (s *CommunityService) dispatchJoinRewards(ctx context.Context, username, communityID string) {
	if s.Rewards == nil {
		return
	}
	s.Rewards.Dispatch(ctx,
		RewardTask{
			Name: "points." + string(ActionCommunityJoin),
			Run: func(ctx context.Context) error {
				s.Points.AwardForAction(ctx, username, ActionCommunityJoin)
				return nil
			},
		},
		RewardTask{
			Name: "badge.community",
			Run: func(ctx context.Context) error {
				s.Badges.CheckAndAwardCommunityBadge(ctx, username, communityID)
				return nil
			},
		},
	)
}

func (s *CommunityService) GetParticipants(ctx context.Context, id string, page, limit int) ([]model.CommunityMember, int64, error) {
	if _, err := s.findCommunity(ctx, id); err != nil {
		return nil, 0, err
	}
	return s.CommunityRepo.ListParticipants(id, (page-1)*limit, limit)
}

// GetStreak 从未访问过时返回全 0
func (s *CommunityService) GetStreak(ctx context.Context, id, username string) (*StreakResponse, error) {
	if _, err := s.findCommunity(ctx, id); err != nil {
		return nil, err
	}

	streak, err := s.Visits.GetStreak(ctx, id, username)
	if err != nil {
		return nil, err
	}

	resp := &StreakResponse{CommunityID: id}
	if streak != nil {
		last := time.Time(streak.LastVisitDate)
		resp.CurrentStreak = streak.CurrentStreak
		resp.LongestStreak = streak.LongestStreak
		resp.LastVisitDate = &last
	}
	return resp, nil
}

// UploadIcon 仅社区管理员可以更换图标
func (s *CommunityService) UploadIcon(ctx context.Context, actor Actor, id, filename string, reader io.Reader, size int64, contentType string) (string, error) {
	community, err := s.findCommunity(ctx, id)
	if err != nil {
		return "", err
	}
	if community.Admin != actor.Username {
		return "", util.ErrPermissionDenied
	}

	key := fmt.Sprintf("communities/%s/%s%s", id, uuid.NewString(), strings.ToLower(filepath.Ext(filename)))
	url, err := s.Storage.Upload(ctx, key, reader, size, contentType)
	if err != nil {
		return "", err
	}

	err = s.CommunityRepo.DB.WithContext(ctx).Model(&model.Community{}).
		Where("id = ?", id).
		Update("icon", url).Error
	if err != nil {
		return "", err
	}
	s.Storage.RemoveReplaced(ctx, community.Icon)
	return url, nil
}
