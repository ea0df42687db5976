package service

import (
	"bytes"
	"context"
	"edu_practice_backend/internal/model"
	"edu_practice_backend/internal/repository"
	"edu_practice_backend/internal/util"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProfileView 个人资料，角色专属字段只在对应角色下出现
type ProfileView struct {
	ID        uint           `json:"id"`
	Username  string         `json:"username"`
	Email     string         `json:"email"`
	Role      model.UserRole `json:"role"`
	Nickname  string         `json:"nickname"`
	School    string         `json:"school"`
	Phone     string         `json:"phone"`
	Bio       string         `json:"bio"`
	AvatarURL string         `json:"avatar_url"`
	CreatedAt time.Time      `json:"created_at"`
	LastLogin *time.Time     `json:"last_login"`

	Class   *string `json:"class,omitempty"`
	Subject *string `json:"subject,omitempty"`
	Title   *string `json:"title,omitempty"`
}

// UpdateProfileRequest 只更新请求中出现的字段，另一角色的字段被忽略
// swagger:model UpdateProfileRequest
type UpdateProfileRequest struct {
	Nickname *string `json:"nickname" binding:"omitempty,max=80"`
	School   *string `json:"school" binding:"omitempty,max=120"`
	Phone    *string `json:"phone" binding:"omitempty,max=20"`
	Bio      *string `json:"bio"`
	Email    *string `json:"email" binding:"omitempty,email"`

	Class   *string `json:"class" binding:"omitempty,max=80"`
	Subject *string `json:"subject" binding:"omitempty,max=80"`
	Title   *string `json:"title" binding:"omitempty,max=80"`
}

// UserService 处理个人资料与头像
type UserService struct {
	UserRepo *repository.UserRepository
	Storage  *StorageService
}

func NewUserService(userRepo *repository.UserRepository, storage *StorageService) *UserService {
	return &UserService{
		UserRepo: userRepo,
		Storage:  storage,
	}
}

func (s *UserService) GetProfile(ctx context.Context, userID uint) (*ProfileView, error) {
	user, err := s.UserRepo.FindByID(ctx, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, util.ErrUserNotFound
		}
		return nil, err
	}
	return newProfileView(user), nil
}

func newProfileView(u *model.User) *ProfileView {
	view := &ProfileView{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Role:      u.Role,
		Nickname:  u.Nickname,
		School:    u.School,
		Phone:     u.Phone,
		Bio:       u.Bio,
		AvatarURL: u.AvatarURL,
		CreatedAt: u.CreatedAt,
		LastLogin: u.LastLogin,
	}
	switch u.Role {
	case model.Student:
		class := ""
		if u.StudentProfile != nil {
			class = u.StudentProfile.ClassName
		}
		view.Class = &class
	case model.Teacher:
		subject, title := "", ""
		if u.TeacherProfile != nil {
			subject = u.TeacherProfile.Subject
			title = u.TeacherProfile.Title
		}
		view.Subject = &subject
		view.Title = &title
	}
	return view
}

func (s *UserService) UpdateProfile(ctx context.Context, userID uint, req UpdateProfileRequest) (*ProfileView, error) {
	user, err := s.UserRepo.FindByID(ctx, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, util.ErrUserNotFound
		}
		return nil, err
	}

	fields := map[string]interface{}{}
	setIfPresent(fields, "nickname", req.Nickname)
	setIfPresent(fields, "school", req.School)
	setIfPresent(fields, "phone", req.Phone)
	setIfPresent(fields, "bio", req.Bio)

	if req.Email != nil {
		email := strings.TrimSpace(*req.Email)
		if email == "" {
			return nil, util.NewValidationError("email", "must not be empty")
		}
		if email != user.Email {
			taken, err := s.UserRepo.ExistsByEmail(ctx, email, user.ID)
			if err != nil {
				return nil, err
			}
			if taken {
				return nil, util.ErrEmailRegistered
			}
			fields["email"] = email
		}
	}

	err = s.UserRepo.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.UserRepo.WithTx(tx)
		if err := repo.UpdateFields(ctx, user.ID, fields); err != nil {
			return err
		}
		switch user.Role {
		case model.Student:
			if req.Class == nil {
				return nil
			}
			return repo.UpsertStudentProfile(ctx, &model.StudentProfile{
				UserID:    user.ID,
				ClassName: *req.Class,
			})
		case model.Teacher:
			if req.Subject == nil && req.Title == nil {
				return nil
			}
			p := &model.TeacherProfile{UserID: user.ID}
			if user.TeacherProfile != nil {
				p.Subject = user.TeacherProfile.Subject
				p.Title = user.TeacherProfile.Title
			}
			if req.Subject != nil {
				p.Subject = *req.Subject
			}
			if req.Title != nil {
				p.Title = *req.Title
			}
			return repo.UpsertTeacherProfile(ctx, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return s.GetProfile(ctx, userID)
}

func setIfPresent(fields map[string]interface{}, column string, v *string) {
	if v != nil {
		fields[column] = strings.TrimSpace(*v)
	}
}

// UploadAvatar 校验图片后居中裁剪为正方形并统一编码为 PNG
func (s *UserService) UploadAvatar(ctx context.Context, userID uint, filename string, size int64, reader io.Reader) (string, error) {
	if !util.HasAllowedExtension(filename, util.AllowedImageExtensions) {
		return "", util.NewValidationError("avatar", "unsupported file extension")
	}
	if size > util.AvatarMaxSize {
		return "", util.NewValidationError("avatar", "file exceeds 5MB")
	}

	data, err := io.ReadAll(io.LimitReader(reader, util.AvatarMaxSize+1))
	if err != nil {
		return "", err
	}
	if len(data) > util.AvatarMaxSize {
		return "", util.NewValidationError("avatar", "file exceeds 5MB")
	}
	if _, err := util.SniffImage(data); err != nil {
		return "", err
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return "", util.NewValidationError("avatar", "cannot decode image")
	}
	img = imaging.Fill(img, util.AvatarSize, util.AvatarSize, imaging.Center, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return "", err
	}

	key := fmt.Sprintf("avatars/%d/%s.png", userID, uuid.NewString())
	url, err := s.Storage.Upload(ctx, key, &buf, int64(buf.Len()), "image/png")
	if err != nil {
		return "", fmt.Errorf("store avatar: %w", err)
	}

	if err := s.UserRepo.UpdateFields(ctx, userID, map[string]interface{}{"avatar_url": url}); err != nil {
		return "", err
	}
	return url, nil
}
