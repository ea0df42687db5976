package controller

import (
	"edu_practice_backend/internal/service"
	"edu_practice_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ProblemController struct {
	ProblemService *service.ProblemService
}

func NewProblemController(problemService *service.ProblemService) *ProblemController {
	return &ProblemController{ProblemService: problemService}
}

// ListProblems godoc
// @Summary 题目列表
// @Description 教师看到答案与解析；学生看到自己的做题状态，不含答案
// @Tags 题库
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]service.StudentProblemSummary} "成功"
// @Failure 401 {object} util.Response "未授权"
// @Router /api/problems [get]
func (c *ProblemController) ListProblems(ctx *gin.Context) {
	claims, ok := currentUser(ctx)
	if !ok {
		return
	}

	problems, err := c.ProblemService.ListProblems(ctx.Request.Context(), claims.Role, claims.UserID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, problems)
}

// GetProblem godoc
// @Summary 题目详情
// @Tags 题库
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "题目ID"
// @Success 200 {object} util.Response{data=service.ProblemDetail} "成功"
// @Failure 404 {object} util.Response "题目不存在"
// @Router /api/problems/{id} [get]
func (c *ProblemController) GetProblem(ctx *gin.Context) {
	claims, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx)
	if !ok {
		return
	}

	detail, err := c.ProblemService.GetProblem(ctx.Request.Context(), id, claims.Role)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, detail)
}

// CreateProblem godoc
// @Summary 新建题目
// @Description 仅教师可用
// @Tags 题库
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body service.CreateProblemRequest true "题目信息"
// @Success 201 {object} util.Response{data=object} "创建成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 403 {object} util.Response "无权限"
// @Router /api/problems [post]
func (c *ProblemController) CreateProblem(ctx *gin.Context) {
	var req service.CreateProblemRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	problem, err := c.ProblemService.CreateProblem(ctx.Request.Context(), req)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Created(ctx, gin.H{"id": problem.ID})
}

// SubmitAnswer godoc
// @Summary 提交单题答案
// @Description 精确匹配判分，更新做题状态与当日提交计数
// @Tags 题库
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "题目ID"
// @Param   body body service.SubmitAnswerRequest true "答案"
// @Success 200 {object} util.Response{data=service.SubmitAnswerResult} "判分结果"
// @Failure 404 {object} util.Response "题目不存在"
// @Router /api/problems/{id}/submit [post]
func (c *ProblemController) SubmitAnswer(ctx *gin.Context) {
	claims, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx)
	if !ok {
		return
	}

	var req service.SubmitAnswerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.ProblemService.SubmitAnswer(ctx.Request.Context(), claims.UserID, id, req.Answer)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, result)
}
