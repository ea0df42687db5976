package util

import (
	"errors"
	"fmt"
)

var (
	ErrUserNotFound         = errors.New("用户不存在")
	ErrUsernameTaken        = errors.New("该用户名已被注册")
	ErrEmailRegistered      = errors.New("该邮箱已被注册")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrRoleMismatch         = errors.New("账号与所选角色不匹配")
	ErrProblemNotFound      = errors.New("problem not found")
	ErrTestNotFound         = errors.New("test not found")
	ErrSubmissionNotFound   = errors.New("no submission for this test")
	ErrNoStatisticsData     = errors.New("未找到测试或暂无提交记录")
	ErrStatisticsRefreshing = errors.New("statistics refresh already in progress")
)

// ValidationError 表示请求字段校验失败，写入之前返回
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
