package model

import (
	"time"

	"gorm.io/datatypes"
)

type ProblemStatus string

const (
	StatusCorrect      ProblemStatus = "correct"
	StatusIncorrect    ProblemStatus = "incorrect"
	StatusNotAttempted ProblemStatus = "not_attempted"
)

func StatusFor(correct bool) ProblemStatus {
	if correct {
		return StatusCorrect
	}
	return StatusIncorrect
}

// UserProblemStatus 每个 (用户, 题目) 唯一一行，后写覆盖，提交次数原子递增
type UserProblemStatus struct {
	ID          uint          `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID      uint          `gorm:"not null;uniqueIndex:idx_user_problem,priority:1" json:"user_id"`
	ProblemID   uint          `gorm:"not null;uniqueIndex:idx_user_problem,priority:2;index" json:"problem_id"`
	Status      ProblemStatus `gorm:"size:20;not null" json:"status"`
	SubmitCount int           `gorm:"not null;default:0" json:"submit_count"`
	LastAnswer  string        `gorm:"type:text" json:"last_answer"`
	SubmittedAt time.Time     `json:"submitted_at"`
	CreatedAt   time.Time     `json:"created_at"`
}

func (UserProblemStatus) TableName() string {
	return "user_problem_statuses"
}

// DailyUserSubmission 每日做题提交计数，用于活跃度热力图
type DailyUserSubmission struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	UserID         uint      `gorm:"not null;uniqueIndex:idx_user_date,priority:1" json:"-"`
	SubmissionDate string    `gorm:"size:10;not null;uniqueIndex:idx_user_date,priority:2" json:"date"`
	Count          int       `gorm:"not null;default:0" json:"count"`
	CreatedAt      time.Time `json:"-"`
}

func (DailyUserSubmission) TableName() string {
	return "daily_user_submissions"
}

// GradedAnswer 单题判分结果，随测试提交一起保存
type GradedAnswer struct {
	Answer    string `json:"answer"`
	IsCorrect bool   `json:"is_correct"`
	TimeSpent int    `json:"time_spent"` // 秒
}

// SubmissionAnswers 题目ID -> 判分结果
type SubmissionAnswers map[uint]GradedAnswer

// TestSubmission 只追加，同一用户同一测试可多次提交，展示时取最近一次
type TestSubmission struct {
	ID             uint                                  `gorm:"primaryKey;autoIncrement" json:"id"`
	TestID         uint                                  `gorm:"not null;index:idx_test_user_time,priority:1" json:"test_id"`
	UserID         uint                                  `gorm:"not null;index:idx_test_user_time,priority:2" json:"user_id"`
	Score          float64                               `gorm:"not null" json:"score"`
	CorrectCount   int                                   `gorm:"not null" json:"correct_count"`
	TotalQuestions int                                   `gorm:"not null" json:"total_questions"`
	Answers        datatypes.JSONType[SubmissionAnswers] `json:"answers"`
	Duration       int                                   `gorm:"not null;default:0" json:"duration"` // 秒
	SubmitTime     time.Time                             `gorm:"not null;index:idx_test_user_time,priority:3" json:"submit_time"`
}

func (TestSubmission) TableName() string {
	return "test_submissions"
}
