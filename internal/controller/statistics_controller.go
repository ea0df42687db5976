package controller

import (
	"edu_practice_backend/internal/service"
	"edu_practice_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// StatisticsController 测试统计，仅教师可访问
type StatisticsController struct {
	StatisticsService *service.TestStatisticsService
}

func NewStatisticsController(statisticsService *service.TestStatisticsService) *StatisticsController {
	return &StatisticsController{StatisticsService: statisticsService}
}

// GetStatistics godoc
// @Summary 获取测试统计
// @Description 返回缓存的统计快照，不存在时即时计算
// @Tags 测试统计
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "测试ID"
// @Success 200 {object} util.Response{data=service.TestStatisticsView} "成功"
// @Failure 404 {object} util.Response "测试不存在或暂无提交记录"
// @Router /api/tests/{id}/statistics [get]
func (c *StatisticsController) GetStatistics(ctx *gin.Context) {
	id, ok := pathID(ctx)
	if !ok {
		return
	}

	view, err := c.StatisticsService.Get(ctx.Request.Context(), id)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

// RefreshStatistics godoc
// @Summary 重新计算测试统计
// @Tags 测试统计
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "测试ID"
// @Success 200 {object} util.Response{data=service.TestStatisticsView} "成功"
// @Failure 404 {object} util.Response "测试不存在或暂无提交记录"
// @Failure 409 {object} util.Response "正在刷新"
// @Router /api/tests/{id}/statistics/refresh [post]
func (c *StatisticsController) RefreshStatistics(ctx *gin.Context) {
	id, ok := pathID(ctx)
	if !ok {
		return
	}

	view, err := c.StatisticsService.Recompute(ctx.Request.Context(), id)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

// RefreshAll godoc
// @Summary 重新计算全部测试统计
// @Description 没有提交记录的测试会被跳过
// @Tags 测试统计
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]service.TestStatisticsView} "成功"
// @Router /api/tests/statistics/refresh-all [post]
func (c *StatisticsController) RefreshAll(ctx *gin.Context) {
	views, err := c.StatisticsService.RecomputeAll(ctx.Request.Context())
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, views)
}
