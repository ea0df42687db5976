package controller

import (
	"edu_practice_backend/internal/service"
	"edu_practice_backend/internal/util"
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
)

type ProfileController struct {
	UserService     *service.UserService
	ProgressService *service.ProgressService
}

func NewProfileController(userService *service.UserService, progressService *service.ProgressService) *ProfileController {
	return &ProfileController{
		UserService:     userService,
		ProgressService: progressService,
	}
}

// GetInfo godoc
// @Summary 获取个人资料
// @Tags 个人中心
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=service.ProfileView} "成功"
// @Router /api/profile/info [get]
func (c *ProfileController) GetInfo(ctx *gin.Context) {
	claims, ok := currentUser(ctx)
	if !ok {
		return
	}

	view, err := c.UserService.GetProfile(ctx.Request.Context(), claims.UserID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

// UpdateInfo godoc
// @Summary 更新个人资料
// @Description 只更新请求中出现的字段；学生可改 class，教师可改 subject/title
// @Tags 个人中心
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body service.UpdateProfileRequest true "资料"
// @Success 200 {object} util.Response{data=service.ProfileView} "成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 409 {object} util.Response "邮箱已被注册"
// @Router /api/profile/info [put]
func (c *ProfileController) UpdateInfo(ctx *gin.Context) {
	claims, ok := currentUser(ctx)
	if !ok {
		return
	}

	var req service.UpdateProfileRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	view, err := c.UserService.UpdateProfile(ctx.Request.Context(), claims.UserID, req)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

// UploadAvatar godoc
// @Summary 上传头像
// @Description 支持 png/jpg/jpeg/gif，最大 5MB，统一裁剪为 256x256
// @Tags 个人中心
// @Accept  multipart/form-data
// @Produce  json
// @Security ApiKeyAuth
// @Param   avatar formData file true "头像文件"
// @Success 200 {object} util.Response{data=object} "成功"
// @Failure 400 {object} util.Response "文件无效"
// @Router /api/profile/avatar [post]
func (c *ProfileController) UploadAvatar(ctx *gin.Context) {
	claims, ok := currentUser(ctx)
	if !ok {
		return
	}

	fileHeader, err := ctx.FormFile("avatar")
	if err != nil {
		util.BadRequest(ctx, "avatar file is required")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	defer file.Close()

	url, err := c.UserService.UploadAvatar(ctx.Request.Context(), claims.UserID, fileHeader.Filename, fileHeader.Size, file)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"avatar_url": url})
}

// GetStatistics godoc
// @Summary 学习统计
// @Tags 个人中心
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=model.StudyStatistics} "成功"
// @Router /api/profile/statistics [get]
func (c *ProfileController) GetStatistics(ctx *gin.Context) {
	claims, ok := currentUser(ctx)
	if !ok {
		return
	}

	stats, err := c.ProgressService.Statistics(ctx.Request.Context(), claims.UserID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, stats)
}

// RecordStudySession godoc
// @Summary 记录学习时长
// @Description 累加当日学习记录并更新连续学习天数
// @Tags 个人中心
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body service.StudySessionRequest true "学习记录"
// @Success 200 {object} util.Response{data=model.StudyStatistics} "成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Router /api/profile/study-sessions [post]
func (c *ProfileController) RecordStudySession(ctx *gin.Context) {
	claims, ok := currentUser(ctx)
	if !ok {
		return
	}

	var req service.StudySessionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	stats, err := c.ProgressService.RecordStudySession(ctx.Request.Context(), claims.UserID, req)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, stats)
}

// Activity godoc
// @Summary 做题活跃度
// @Description 最近 days 天每日提交数，用于热力图
// @Tags 个人中心
// @Produce  json
// @Security ApiKeyAuth
// @Param   days query int false "天数，最大 3650" default(365)
// @Success 200 {object} util.Response{data=[]service.ActivityDay} "成功"
// @Router /api/profile/activity [get]
func (c *ProfileController) Activity(ctx *gin.Context) {
	claims, ok := currentUser(ctx)
	if !ok {
		return
	}

	days, err := strconv.Atoi(ctx.DefaultQuery("days", strconv.Itoa(service.DefaultActivityDays)))
	if err != nil || days <= 0 || days > service.MaxActivityDays {
		util.BadRequest(ctx, fmt.Sprintf("days must be between 1 and %d", service.MaxActivityDays))
		return
	}

	activity, err := c.ProgressService.Activity(ctx.Request.Context(), claims.UserID, days)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, activity)
}

// KnowledgeStatus godoc
// @Summary 知识点掌握情况
// @Tags 个人中心
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]service.TopicMastery} "成功"
// @Router /api/profile/knowledge_status [get]
func (c *ProfileController) KnowledgeStatus(ctx *gin.Context) {
	claims, ok := currentUser(ctx)
	if !ok {
		return
	}

	status, err := c.ProgressService.KnowledgeStatus(ctx.Request.Context(), claims.UserID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, status)
}

// DifficultyDistribution godoc
// @Summary 难度分布
// @Description 固定返回 1-5 五个难度的做题与做对数量
// @Tags 个人中心
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]service.DifficultyBucket} "成功"
// @Router /api/profile/difficulty_distribution [get]
func (c *ProfileController) DifficultyDistribution(ctx *gin.Context) {
	claims, ok := currentUser(ctx)
	if !ok {
		return
	}

	buckets, err := c.ProgressService.DifficultyDistribution(ctx.Request.Context(), claims.UserID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, buckets)
}
