package controller

import (
	"bytes"
	"errors"
	"io"
	"stackcommunity_backend/internal/service"
	"stackcommunity_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// UserController 处理用户资料相关的HTTP请求
type UserController struct {
	UserService *service.UserService
}

func NewUserController(userService *service.UserService) *UserController {
	return &UserController{UserService: userService}
}

// GetUser godoc
// @Summary 获取用户公开资料
// @Tags 用户
// @Produce  json
// @Param   username path string true "用户名"
// @Success 200 {object} util.Response{data=service.UserProfile}
// @Failure 404 {object} util.Response "用户不存在"
// @Router /api/users/{username} [get]
func (c *UserController) GetUser(ctx *gin.Context) {
	profile, err := c.UserService.GetProfile(ctx.Request.Context(), ctx.Param("username"))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	util.Success(ctx, profile)
}

// GetProfile godoc
// @Summary 获取当前用户资料
// @Tags 用户
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=service.UserProfile}
// @Router /api/profile [get]
func (c *UserController) GetProfile(ctx *gin.Context) {
	actor, ok := actorFromContext(ctx)
	if !ok {
		util.Unauthorized(ctx)
		return
	}

	profile, err := c.UserService.GetProfileByID(ctx.Request.Context(), actor.UserID)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	util.Success(ctx, profile)
}

// UpdateProfile godoc
// @Summary 更新个人资料
// @Description 只允许修改昵称和简介
// @Tags 用户
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   body body service.UpdateProfileInput true "资料"
// @Success 200 {object} util.Response{data=service.UserProfile}
// @Router /api/user/profile [put]
func (c *UserController) UpdateProfile(ctx *gin.Context) {
	actor, ok := actorFromContext(ctx)
	if !ok {
		util.Unauthorized(ctx)
		return
	}

	var req service.UpdateProfileInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	profile, err := c.UserService.UpdateProfile(ctx.Request.Context(), actor.UserID, req)
	if err != nil {
		if errors.Is(err, util.ErrUserNotFound) {
			writeServiceError(ctx, err)
			return
		}
		util.BadRequest(ctx, err.Error())
		return
	}
	util.Success(ctx, profile)
}

// UploadAvatar godoc
// @Summary 上传头像
// @Tags 用户
// @Accept  multipart/form-data
// @Produce  json
// @Security BearerAuth
// @Param   file formData file true "头像图片"
// @Success 200 {object} util.Response{data=object}
// @Router /api/user/avatar/upload [post]
func (c *UserController) UploadAvatar(ctx *gin.Context) {
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

	if header.Size > util.MaxAvatarSize {
		util.BadRequest(ctx, "头像大小不能超过 2MB")
		return
	}
	if !util.HasAllowedExtension(header.Filename, util.AllowedImageExtensions) {
		util.BadRequest(ctx, "不支持的图片格式")
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

	url, err := c.UserService.UploadAvatar(ctx.Request.Context(), actor.UserID, header.Filename, bytes.NewReader(data), int64(len(data)), mimeType)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"url": url})
}
