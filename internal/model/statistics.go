package model

import (
	"time"

	"gorm.io/datatypes"
)

// ScoreDistribution 四个固定分数段：[90,100] [80,90) [60,80) [0,60)
type ScoreDistribution struct {
	Excellent int `json:"90-100"`
	Good      int `json:"80-89"`
	Pass      int `json:"60-79"`
	Fail      int `json:"0-59"`
}

func (d ScoreDistribution) Total() int {
	return d.Excellent + d.Good + d.Pass + d.Fail
}

// Add 按分数落入对应分数段
func (d *ScoreDistribution) Add(score float64) {
	switch {
	case score >= 90:
		d.Excellent++
	case score >= 80:
		d.Good++
	case score >= 60:
		d.Pass++
	default:
		d.Fail++
	}
}

// TestResult 测试整体统计的缓存快照，按需重算并原地覆盖
type TestResult struct {
	ID                uint                                  `gorm:"primaryKey;autoIncrement" json:"id"`
	TestID            uint                                  `gorm:"not null;uniqueIndex" json:"test_id"`
	TotalStudents     int                                   `gorm:"not null" json:"total_students"`
	CompletedCount    int                                   `gorm:"not null" json:"completed_count"`
	AverageScore      float64                               `gorm:"not null" json:"average_score"`
	AverageTime       int                                   `gorm:"not null" json:"average_time"` // 分钟
	CompletionRate    float64                               `gorm:"not null" json:"completion_rate"`
	PassRate          float64                               `gorm:"not null" json:"pass_rate"`
	ScoreDistribution datatypes.JSONType[ScoreDistribution] `json:"score_distribution"`
	LastUpdated       time.Time                             `json:"last_updated"`
	CreatedAt         time.Time                             `json:"-"`
}

func (TestResult) TableName() string {
	return "test_results"
}

// QuestionStat 测试中每道题的统计缓存
type QuestionStat struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	TestID      uint      `gorm:"not null;uniqueIndex:idx_test_problem_stat,priority:1" json:"test_id"`
	ProblemID   uint      `gorm:"not null;uniqueIndex:idx_test_problem_stat,priority:2" json:"question_id"`
	Order       int       `gorm:"column:sort_order;not null;default:0" json:"order"`
	AnswerCount int       `gorm:"not null;default:0" json:"answer_count"`
	CorrectRate float64   `gorm:"not null" json:"correct_rate"`
	AverageTime float64   `gorm:"not null" json:"average_time"` // 分钟
	LastUpdated time.Time `json:"last_updated"`
	CreatedAt   time.Time `json:"-"`
}

func (QuestionStat) TableName() string {
	return "question_stats"
}
