package service

import (
	"context"
	"edu_practice_backend/internal/config"
	"edu_practice_backend/internal/model"
	"edu_practice_backend/internal/repository"
	"edu_practice_backend/internal/util"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// RegisterRequest 注册请求
// swagger:model RegisterRequest
type RegisterRequest struct {
	Username string         `json:"username" binding:"required,min=3,max=80"`
	Email    string         `json:"email" binding:"required,email"`
	Password string         `json:"password" binding:"required,min=6"`
	Role     model.UserRole `json:"role" binding:"required,userrole"`
	Nickname string         `json:"nickname"`
	School   string         `json:"school"`
}

// LoginRequest 登录时需携带所选角色
// swagger:model LoginRequest
type LoginRequest struct {
	Username string         `json:"username" binding:"required"`
	Password string         `json:"password" binding:"required"`
	Role     model.UserRole `json:"role" binding:"required,userrole"`
}

type LoginResult struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

type AuthService struct {
	UserRepo *repository.UserRepository
	Cfg      *config.Config
}

func NewAuthService(userRepo *repository.UserRepository, cfg *config.Config) *AuthService {
	return &AuthService{
		UserRepo: userRepo,
		Cfg:      cfg,
	}
}

// Register 创建用户及其角色资料行，二者在同一事务中写入
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*model.User, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if req.Username == "" {
		return nil, util.NewValidationError("username", "is required")
	}
	if !req.Role.Valid() {
		return nil, util.NewValidationError("role", "must be student or teacher")
	}

	taken, err := s.UserRepo.ExistsByUsername(ctx, req.Username)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, util.ErrUsernameTaken
	}
	registered, err := s.UserRepo.ExistsByEmail(ctx, req.Email, 0)
	if err != nil {
		return nil, err
	}
	if registered {
		return nil, util.ErrEmailRegistered
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hashed),
		Role:         req.Role,
		Nickname:     req.Nickname,
		School:       req.School,
	}

	err = s.UserRepo.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.UserRepo.WithTx(tx)
		if err := repo.Create(ctx, user); err != nil {
			return err
		}
		switch user.Role {
		case model.Student:
			return repo.UpsertStudentProfile(ctx, &model.StudentProfile{UserID: user.ID})
		case model.Teacher:
			return repo.UpsertTeacherProfile(ctx, &model.TeacherProfile{UserID: user.ID})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("register user: %w", err)
	}
	return user, nil
}

// Login 用户名、密码、角色三者均需匹配
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	user, err := s.UserRepo.FindByUsername(ctx, req.Username)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, util.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, util.ErrInvalidCredentials
	}
	if user.Role != req.Role {
		return nil, util.ErrRoleMismatch
	}

	now := time.Now()
	if err := s.UserRepo.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, err
	}
	user.LastLogin = &now

	token, err := util.GenerateJWT(user, s.Cfg.JWT.Secret, s.Cfg.JWT.ExpireTime)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, User: user}, nil
}

// Verify 确认令牌中的用户仍然存在
func (s *AuthService) Verify(ctx context.Context, claims *util.Claims) (*model.User, error) {
	user, err := s.UserRepo.FindByID(ctx, claims.UserID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, util.ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}
