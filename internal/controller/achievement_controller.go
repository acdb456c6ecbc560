package controller

import (
	"stackcommunity_backend/internal/service"
	"stackcommunity_backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

// AchievementController 徽章、积分与排行榜
type AchievementController struct {
	BadgeService       *service.BadgeService
	PointsService      *service.PointsService
	LeaderboardService *service.LeaderboardService
}

func NewAchievementController(badges *service.BadgeService, points *service.PointsService, leaderboard *service.LeaderboardService) *AchievementController {
	return &AchievementController{
		BadgeService:       badges,
		PointsService:      points,
		LeaderboardService: leaderboard,
	}
}

// @Summary 获取用户徽章
// @Description 用户不存在或读取失败时返回空列表
// @Tags 成就系统
// @Produce json
// @Param username path string true "用户名"
// @Success 200 {object} util.Response{data=[]model.Badge}
// @Router /api/users/{username}/badges [get]
func (c *AchievementController) GetUserBadges(ctx *gin.Context) {
	badges := c.BadgeService.GetUserBadges(ctx.Request.Context(), ctx.Param("username"))
	util.Success(ctx, badges)
}

// @Summary 获取用户积分
// @Tags 成就系统
// @Produce json
// @Param username path string true "用户名"
// @Success 200 {object} util.Response{data=object}
// @Router /api/users/{username}/points [get]
func (c *AchievementController) GetUserPoints(ctx *gin.Context) {
	username := ctx.Param("username")
	util.Success(ctx, gin.H{
		"username": username,
		"points":   c.PointsService.GetPoints(ctx.Request.Context(), username),
	})
}

// @Summary 获取排行榜
// @Description 按积分降序返回，同时为前三名发放名次徽章
// @Tags 成就系统
// @Produce json
// @Param limit query int false "返回数量" default(10)
// @Success 200 {object} util.Response{data=[]service.LeaderboardEntry}
// @Router /api/leaderboard [get]
func (c *AchievementController) GetLeaderboard(ctx *gin.Context) {
	limit := 0
	if limitStr := ctx.Query("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil {
			limit = l
		}
	}

	leaderboard, err := c.LeaderboardService.GetLeaderboard(ctx.Request.Context(), limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, leaderboard)
}

// @Summary 清理重复徽章
// @Description 管理员修复历史数据中的同名重复徽章
// @Tags 管理
// @Produce json
// @Security BearerAuth
// @Param username path string true "用户名"
// @Success 200 {object} util.Response{data=[]model.Badge}
// @Router /api/admin/users/{username}/badges/dedupe [post]
func (c *AchievementController) DeduplicateBadges(ctx *gin.Context) {
	username := ctx.Param("username")
	c.BadgeService.DeduplicateBadges(ctx.Request.Context(), username)
	util.Success(ctx, c.BadgeService.GetUserBadges(ctx.Request.Context(), username))
}
