package model

import (
	"gorm.io/datatypes"
)

type ProblemType string

const (
	MultipleChoice ProblemType = "multiple_choice"
	FillBlank      ProblemType = "fill_blank"
	Solution       ProblemType = "solution"
)

func (t ProblemType) Valid() bool {
	switch t {
	case MultipleChoice, FillBlank, Solution:
		return true
	}
	return false
}

// HasOptions 只有选择题携带选项
func (t ProblemType) HasOptions() bool {
	return t == MultipleChoice
}

const (
	MinDifficulty = 1
	MaxDifficulty = 5
)

// swagger:model Problem
type Problem struct {
	BaseModel
	Title           string                      `gorm:"size:200;not null" json:"title"`
	Content         string                      `gorm:"type:text;not null" json:"content"`
	Type            ProblemType                 `gorm:"size:50;not null" json:"type"`
	Difficulty      int                         `gorm:"not null;index" json:"difficulty"`
	Topics          datatypes.JSONSlice[string] `json:"topics"`
	Options         datatypes.JSONSlice[string] `json:"options"`
	CorrectAnswer   string                      `gorm:"type:text;not null" json:"-"`
	Explanation     string                      `gorm:"type:text" json:"-"`
	RelatedProblems datatypes.JSONSlice[uint]   `json:"related_problems"`
}

func (Problem) TableName() string {
	return "problems"
}

// Grade 按字符串完全相等判分，不做大小写或空白归一化
func (p *Problem) Grade(answer string) bool {
	return answer == p.CorrectAnswer
}
