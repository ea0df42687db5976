package controller

import (
	"edu_practice_backend/internal/service"
	"edu_practice_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type TestController struct {
	TestService *service.TestService
}

func NewTestController(testService *service.TestService) *TestController {
	return &TestController{TestService: testService}
}

// ListTests godoc
// @Summary 测试列表
// @Description 教师返回自己创建的测试；学生返回全部测试并标记是否已完成
// @Tags 测试
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]service.TestSummary} "成功"
// @Router /api/tests [get]
func (c *TestController) ListTests(ctx *gin.Context) {
	claims, ok := currentUser(ctx)
	if !ok {
		return
	}

	tests, err := c.TestService.ListTests(ctx.Request.Context(), claims.Role, claims.UserID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, tests)
}

// ListCompleted godoc
// @Summary 已完成的测试
// @Description 当前用户提交过的测试及最近一次成绩
// @Tags 测试
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]service.CompletedTest} "成功"
// @Router /api/tests/completed [get]
func (c *TestController) ListCompleted(ctx *gin.Context) {
	claims, ok := currentUser(ctx)
	if !ok {
		return
	}

	tests, err := c.TestService.ListCompleted(ctx.Request.Context(), claims.UserID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, tests)
}

// CreateTest godoc
// @Summary 新建测试
// @Description 仅教师可用，题目顺序即提交顺序
// @Tags 测试
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body service.CreateTestRequest true "测试信息"
// @Success 201 {object} util.Response{data=object} "创建成功"
// @Failure 400 {object} util.Response "请求参数错误或题目不存在"
// @Failure 403 {object} util.Response "无权限"
// @Router /api/tests [post]
func (c *TestController) CreateTest(ctx *gin.Context) {
	claims, ok := currentUser(ctx)
	if !ok {
		return
	}

	var req service.CreateTestRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	test, err := c.TestService.CreateTest(ctx.Request.Context(), claims.UserID, req)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Created(ctx, gin.H{"id": test.ID})
}

// GetTest godoc
// @Summary 测试详情
// @Description 题目按组卷顺序返回，不含答案
// @Tags 测试
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "测试ID"
// @Success 200 {object} util.Response{data=service.TestDetail} "成功"
// @Failure 404 {object} util.Response "测试不存在"
// @Router /api/tests/{id} [get]
func (c *TestController) GetTest(ctx *gin.Context) {
	id, ok := pathID(ctx)
	if !ok {
		return
	}

	detail, err := c.TestService.GetTestDetail(ctx.Request.Context(), id)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, detail)
}

// SubmitTest godoc
// @Summary 提交测试
// @Description 每次提交都保留，未作答的题目按错误计分
// @Tags 测试
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "测试ID"
// @Param   body body service.SubmitTestRequest true "答案"
// @Success 200 {object} util.Response{data=service.SubmitTestResult} "成绩"
// @Failure 404 {object} util.Response "测试不存在"
// @Router /api/tests/{id}/submit [post]
func (c *TestController) SubmitTest(ctx *gin.Context) {
	claims, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx)
	if !ok {
		return
	}

	var req service.SubmitTestRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.TestService.SubmitTest(ctx.Request.Context(), claims.UserID, id, req)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// GetResult godoc
// @Summary 测试结果
// @Description 最近一次提交的逐题对照、知识点掌握度与薄弱知识点
// @Tags 测试
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "测试ID"
// @Success 200 {object} util.Response{data=service.TestResultDetail} "成功"
// @Failure 404 {object} util.Response "测试不存在或未提交"
// @Router /api/tests/{id}/result [get]
func (c *TestController) GetResult(ctx *gin.Context) {
	claims, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx)
	if !ok {
		return
	}

	result, err := c.TestService.GetTestResult(ctx.Request.Context(), claims.UserID, id)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, result)
}
