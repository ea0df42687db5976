package util

import (
	"edu_practice_backend/internal/model"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// RegisterValidators 在 gin 的校验引擎上注册自定义规则
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	if err := v.RegisterValidation("problemtype", func(fl validator.FieldLevel) bool {
		return model.ProblemType(fl.Field().String()).Valid()
	}); err != nil {
		return err
	}
	if err := v.RegisterValidation("testtype", func(fl validator.FieldLevel) bool {
		return model.TestType(fl.Field().String()).Valid()
	}); err != nil {
		return err
	}
	return v.RegisterValidation("userrole", func(fl validator.FieldLevel) bool {
		return model.UserRole(fl.Field().String()).Valid()
	})
}
