package controller

import (
	"edu_practice_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// currentUser 取出认证中间件写入的 claims，缺失时直接返回 401
func currentUser(ctx *gin.Context) (*util.Claims, bool) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return nil, false
	}
	return claims, true
}

// pathID 解析路径参数 :id
func pathID(ctx *gin.Context) (uint, bool) {
	id, err := util.ParseID(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, err.Error())
		return 0, false
	}
	return id, true
}
