package util

import (
	"edu_practice_backend/pkg/logger"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    http.StatusCreated,
		Message: "created",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
	})
}

func Unauthorized(c *gin.Context) {
	Error(c, http.StatusUnauthorized, "Unauthorized")
}

func Forbidden(c *gin.Context) {
	Error(c, http.StatusForbidden, "Forbidden")
}

func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

func InternalServerError(c *gin.Context) {
	Error(c, http.StatusInternalServerError, "Internal server error")
}

func LogInternalError(c *gin.Context, err error) {
	logger.Log.Error("Internal server error",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	InternalServerError(c)
}

// HandleServiceError 将 service 层错误映射为 HTTP 响应，未识别的错误记录日志后返回 500
func HandleServiceError(c *gin.Context, err error) {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		BadRequest(c, ve.Error())
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrRoleMismatch):
		Error(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrProblemNotFound),
		errors.Is(err, ErrTestNotFound),
		errors.Is(err, ErrSubmissionNotFound),
		errors.Is(err, ErrNoStatisticsData):
		Error(c, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrUsernameTaken),
		errors.Is(err, ErrEmailRegistered),
		errors.Is(err, ErrStatisticsRefreshing):
		Error(c, http.StatusConflict, err.Error())
	default:
		LogInternalError(c, err)
	}
}
