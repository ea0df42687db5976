package model

import (
	"time"

	"gorm.io/datatypes"
)

type TestType string

const (
	PracticeTest TestType = "practice"
	FormalTest   TestType = "formal"
)

func (t TestType) Valid() bool {
	return t == PracticeTest || t == FormalTest
}

// swagger:model Test
type Test struct {
	BaseModel
	Title          string                      `gorm:"size:100;not null" json:"title"`
	Description    string                      `gorm:"type:text" json:"description"`
	Type           TestType                    `gorm:"size:50;not null" json:"type"`
	ProblemIDs     datatypes.JSONSlice[uint]   `json:"problem_ids"`
	TotalQuestions int                         `gorm:"not null" json:"total_questions"`
	EstimatedTime  int                         `gorm:"not null" json:"estimated_time"` // 分钟
	Topics         datatypes.JSONSlice[string] `json:"topics"`
	Difficulty     int                         `gorm:"not null" json:"difficulty"`
	Deadline       *time.Time                  `json:"deadline"`
	CreatedBy      *uint                       `gorm:"index" json:"created_by"`
}

func (Test) TableName() string {
	return "tests"
}

// TestQuestion 记录试卷题目的呈现顺序，Order 从 1 开始连续编号，创建后不再调整
type TestQuestion struct {
	ID        uint `gorm:"primaryKey;autoIncrement" json:"id"`
	TestID    uint `gorm:"not null;uniqueIndex:idx_test_question_order,priority:1" json:"test_id"`
	ProblemID uint `gorm:"not null;index" json:"problem_id"`
	Order     int  `gorm:"column:sort_order;not null;uniqueIndex:idx_test_question_order,priority:2" json:"order"`
}

func (TestQuestion) TableName() string {
	return "test_questions"
}
