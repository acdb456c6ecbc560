package controller

import (
	"errors"
	"net/http"
	"stackcommunity_backend/internal/service"
	"stackcommunity_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// actorFromContext 从 JWT claims 中取出当前用户，未登录时返回 false
func actorFromContext(ctx *gin.Context) (service.Actor, bool) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		return service.Actor{}, false
	}
	return service.Actor{UserID: claims.UserID, Username: claims.Username, Role: claims.Role}, true
}

// viewerFromContext 游客返回空字符串
func viewerFromContext(ctx *gin.Context) string {
	if claims := util.GetUserFromContext(ctx); claims != nil {
		return claims.Username
	}
	return ""
}

// writeServiceError 把业务错误映射为 HTTP 状态码
func writeServiceError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrUserNotFound),
		errors.Is(err, util.ErrCommunityNotFound),
		errors.Is(err, util.ErrQuestionNotFound),
		errors.Is(err, util.ErrAnswerNotFound):
		util.Error(ctx, http.StatusNotFound, err.Error())
	case errors.Is(err, util.ErrPermissionDenied),
		errors.Is(err, util.ErrAdminCannotLeave),
		errors.Is(err, util.ErrNotParticipant):
		util.Error(ctx, http.StatusForbidden, err.Error())
	case errors.Is(err, util.ErrUsernameTaken),
		errors.Is(err, util.ErrEmailRegistered),
		errors.Is(err, util.ErrCommunityNameTaken):
		util.Conflict(ctx, err.Error())
	case errors.Is(err, util.ErrInvalidVoteTarget),
		errors.Is(err, util.ErrInvalidVoteValue),
		errors.Is(err, service.ErrInvalidUsername):
		util.BadRequest(ctx, err.Error())
	case errors.Is(err, util.ErrInvalidCredentials):
		util.Error(ctx, http.StatusUnauthorized, err.Error())
	default:
		util.LogInternalError(ctx, err)
	}
}
