package controller

import (
	"bytes"
	"io"
	"stackcommunity_backend/internal/service"
	"stackcommunity_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type CommunityController struct {
	CommunityService *service.CommunityService
}

func NewCommunityController(communityService *service.CommunityService) *CommunityController {
	return &CommunityController{CommunityService: communityService}
}

// @Summary 获取社区列表
// @Tags 社区
// @Produce json
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页数量" default(20)
// @Param search query string false "关键词"
// @Success 200 {object} util.Response
// @Router /api/communities [get]
func (c *CommunityController) GetCommunities(ctx *gin.Context) {
	page, limit := util.ParsePagination(ctx.Query("page"), ctx.Query("limit"))

	communities, total, err := c.CommunityService.GetCommunities(ctx.Request.Context(), page, limit, ctx.Query("search"), viewerFromContext(ctx))
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, util.PageResponse{List: communities, Total: total, Page: page, Limit: limit})
}

// @Summary 获取社区详情
// @Description 登录用户访问时记录连续访问天数
// @Tags 社区
// @Produce json
// @Param id path string true "社区ID"
// @Success 200 {object} util.Response{data=service.CommunityResponse}
// @Router /api/communities/{id} [get]
func (c *CommunityController) GetCommunity(ctx *gin.Context) {
	community, err := c.CommunityService.GetCommunity(ctx.Request.Context(), ctx.Param("id"), viewerFromContext(ctx))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	util.Success(ctx, community)
}

// @Summary 创建社区
// @Tags 社区
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param community body service.CommunityRequest true "社区信息"
// @Success 201 {object} util.Response{data=service.CommunityResponse}
// @Router /api/communities [post]
func (c *CommunityController) CreateCommunity(ctx *gin.Context) {
	actor, ok := actorFromContext(ctx)
	if !ok {
		util.Unauthorized(ctx)
		return
	}

	var req service.CommunityRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	community, err := c.CommunityService.CreateCommunity(ctx.Request.Context(), actor, req)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	util.Created(ctx, community)
}

// @Summary 加入或退出社区
// @Tags 社区
// @Produce json
// @Security BearerAuth
// @Param id path string true "社区ID"
// @Success 200 {object} util.Response{data=service.MembershipResult}
// @Router /api/communities/{id}/membership [post]
func (c *CommunityController) ToggleMembership(ctx *gin.Context) {
	actor, ok := actorFromContext(ctx)
	if !ok {
		util.Unauthorized(ctx)
		return
	}

	result, err := c.CommunityService.ToggleMembership(ctx.Request.Context(), actor, ctx.Param("id"))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// @Summary 社区成员列表
// @Tags 社区
// @Produce json
// @Security BearerAuth
// @Param id path string true "社区ID"
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页数量" default(20)
// @Success 200 {object} util.Response
// @Router /api/communities/{id}/participants [get]
func (c *CommunityController) GetParticipants(ctx *gin.Context) {
	page, limit := util.ParsePagination(ctx.Query("page"), ctx.Query("limit"))

	members, total, err := c.CommunityService.GetParticipants(ctx.Request.Context(), ctx.Param("id"), page, limit)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: members, Total: total, Page: page, Limit: limit})
}

// @Summary 我在该社区的连续访问天数
// @Tags 社区
// @Produce json
// @Security BearerAuth
// @Param id path string true "社区ID"
// @Success 200 {object} util.Response{data=service.StreakResponse}
// @Router /api/communities/{id}/streak [get]
func (c *CommunityController) GetStreak(ctx *gin.Context) {
	actor, ok := actorFromContext(ctx)
	if !ok {
		util.Unauthorized(ctx)
		return
	}

	streak, err := c.CommunityService.GetStreak(ctx.Request.Context(), ctx.Param("id"), actor.Username)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	util.Success(ctx, streak)
}

// @Summary 上传社区图标
// @Tags 社区
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path string true "社区ID"
// @Param file formData file true "图标"
// @Success 200 {object} util.Response{data=object}
// @Router /api/communities/{id}/icon [post]
func (c *CommunityController) UploadIcon(ctx *gin.Context) {
	actor, ok := actorFromContext(ctx)
	if !ok {
		util.Unauthorized(ctx)
		return
	}

	file, header, err := ctx.Request.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "请选择要上传的文件")
		return
	}
	defer file.Close()

	if header.Size > util.MaxAvatarSize || !util.HasAllowedExtension(header.Filename, util.AllowedImageExtensions) {
		util.BadRequest(ctx, "图标必须是 2MB 以内的图片")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	mimeType, err := util.ValidateMimeType(bytes.NewReader(data), []string{util.MimeImage})
	if err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	url, err := c.CommunityService.UploadIcon(ctx.Request.Context(), actor, ctx.Param("id"), header.Filename, bytes.NewReader(data), int64(len(data)), mimeType)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"url": url})
}
