package controller

import (
	"stackcommunity_backend/internal/repository"
	"stackcommunity_backend/internal/service"
	"stackcommunity_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type QAController struct {
	QAService *service.QAService
}

func NewQAController(qaService *service.QAService) *QAController {
	return &QAController{QAService: qaService}
}

// VoteRequest 1 为赞同，-1 为反对；重复提交相同值视为撤销
// swagger:model VoteRequest
type VoteRequest struct {
	Value int `json:"value" binding:"required,oneof=1 -1"`
}

// @Summary 获取问题列表
// @Tags 问答
// @Produce json
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页数量" default(20)
// @Param tag query string false "标签筛选"
// @Param communityId query string false "社区筛选"
// @Param search query string false "关键词"
// @Param sort query string false "排序方式" Enums(new, votes, unanswered) default(new)
// @Success 200 {object} util.Response
// @Router /api/questions [get]
func (c *QAController) GetQuestions(ctx *gin.Context) {
	page, limit := util.ParsePagination(ctx.Query("page"), ctx.Query("limit"))
	filter := repository.QuestionFilter{
		Tag:         ctx.Query("tag"),
		CommunityID: ctx.Query("communityId"),
		Search:      ctx.Query("search"),
		Sort:        ctx.DefaultQuery("sort", "new"),
	}

	questions, total, err := c.QAService.GetQuestions(page, limit, filter)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, util.PageResponse{List: questions, Total: total, Page: page, Limit: limit})
}

// @Summary 获取问题详情
// @Tags 问答
// @Produce json
// @Param id path string true "问题ID"
// @Success 200 {object} util.Response{data=service.QuestionDetail}
// @Router /api/questions/{id} [get]
func (c *QAController) GetQuestion(ctx *gin.Context) {
	detail, err := c.QAService.GetQuestionDetail(ctx.Request.Context(), ctx.Param("id"), viewerFromContext(ctx), ctx.ClientIP())
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	util.Success(ctx, detail)
}

// @Summary 提问
// @Tags 问答
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param question body service.QuestionRequest true "问题内容"
// @Success 201 {object} util.Response{data=service.QuestionSummary}
// @Router /api/questions [post]
func (c *QAController) CreateQuestion(ctx *gin.Context) {
	actor, ok := actorFromContext(ctx)
	if !ok {
		util.Unauthorized(ctx)
		return
	}

	var req service.QuestionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	question, err := c.QAService.CreateQuestion(ctx.Request.Context(), actor, req)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	util.Created(ctx, question)
}

// @Summary 回答问题
// @Tags 问答
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "问题ID"
// @Param answer body service.AnswerRequest true "回答内容"
// @Success 201 {object} util.Response{data=service.AnswerResponse}
// @Router /api/questions/{id}/answers [post]
func (c *QAController) CreateAnswer(ctx *gin.Context) {
	actor, ok := actorFromContext(ctx)
	if !ok {
		util.Unauthorized(ctx)
		return
	}

	var req service.AnswerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	answer, err := c.QAService.CreateAnswer(ctx.Request.Context(), actor, ctx.Param("id"), req)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	util.Created(ctx, answer)
}

// @Summary 采纳回答
// @Tags 问答
// @Produce json
// @Security BearerAuth
// @Param id path string true "回答ID"
// @Success 200 {object} util.Response
// @Router /api/answers/{id}/accept [post]
func (c *QAController) AcceptAnswer(ctx *gin.Context) {
	actor, ok := actorFromContext(ctx)
	if !ok {
		util.Unauthorized(ctx)
		return
	}

	if err := c.QAService.AcceptAnswer(ctx.Request.Context(), actor, ctx.Param("id")); err != nil {
		writeServiceError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"accepted": true})
}

// @Summary 给问题投票
// @Tags 问答
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "问题ID"
// @Param vote body VoteRequest true "投票"
// @Success 200 {object} util.Response
// @Router /api/questions/{id}/vote [post]
func (c *QAController) VoteQuestion(ctx *gin.Context) {
	c.vote(ctx, "question")
}

// @Summary 给回答投票
// @Tags 问答
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "回答ID"
// @Param vote body VoteRequest true "投票"
// @Success 200 {object} util.Response
// @Router /api/answers/{id}/vote [post]
func (c *QAController) VoteAnswer(ctx *gin.Context) {
	c.vote(ctx, "answer")
}

func (c *QAController) vote(ctx *gin.Context, targetType string) {
	actor, ok := actorFromContext(ctx)
	if !ok {
		util.Unauthorized(ctx)
		return
	}

	var req VoteRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	current, err := c.QAService.Vote(ctx.Request.Context(), actor, targetType, ctx.Param("id"), req.Value)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"vote": current})
}
