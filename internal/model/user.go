package model

import (
	"time"
)

type UserRole string

const (
	Student UserRole = "student"
	Teacher UserRole = "teacher"
)

func (r UserRole) Valid() bool {
	return r == Student || r == Teacher
}

// swagger:model User
type User struct {
	BaseModel
	Username     string     `gorm:"size:80;uniqueIndex;not null" json:"username"`
	Email        string     `gorm:"size:120;uniqueIndex;not null" json:"email"`
	PasswordHash string     `gorm:"size:128;not null" json:"-"`
	Role         UserRole   `gorm:"size:20;not null;index" json:"role"`
	Nickname     string     `gorm:"size:80" json:"nickname"`
	School       string     `gorm:"size:120" json:"school"`
	Phone        string     `gorm:"size:20" json:"phone"`
	Bio          string     `gorm:"type:text" json:"bio"`
	AvatarURL    string     `gorm:"size:256" json:"avatar_url"`
	LastLogin    *time.Time `json:"last_login"`

	// 角色专属资料，按角色只存在其一
	StudentProfile *StudentProfile `gorm:"foreignKey:UserID" json:"-"`
	TeacherProfile *TeacherProfile `gorm:"foreignKey:UserID" json:"-"`
}

func (User) TableName() string {
	return "users"
}

// StudentProfile 学生专属字段
type StudentProfile struct {
	ID        uint   `gorm:"primaryKey;autoIncrement" json:"-"`
	UserID    uint   `gorm:"uniqueIndex;not null" json:"-"`
	ClassName string `gorm:"size:80" json:"class"`
	UpdatedAt time.Time
}

func (StudentProfile) TableName() string {
	return "student_profiles"
}

// TeacherProfile 教师专属字段：任教科目、职称
type TeacherProfile struct {
	ID        uint   `gorm:"primaryKey;autoIncrement" json:"-"`
	UserID    uint   `gorm:"uniqueIndex;not null" json:"-"`
	Subject   string `gorm:"size:80" json:"subject"`
	Title     string `gorm:"size:80" json:"title"`
	UpdatedAt time.Time
}

func (TeacherProfile) TableName() string {
	return "teacher_profiles"
}
