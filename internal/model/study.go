package model

import "time"

// StudyStatistics 用户学习累计数据，独立于提交表维护
type StudyStatistics struct {
	ID              uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	UserID          uint      `gorm:"not null;uniqueIndex" json:"-"`
	TotalStudyTime  int       `gorm:"not null;default:0" json:"total_study_time"` // 分钟
	TotalProblems   int       `gorm:"not null;default:0" json:"total_problems"`
	CorrectProblems int       `gorm:"not null;default:0" json:"correct_problems"`
	StreakDays      int       `gorm:"not null;default:0" json:"streak_days"`
	LastStudyDate   string    `gorm:"size:10" json:"last_study_date"`
	UpdatedAt       time.Time `json:"-"`
}

func (StudyStatistics) TableName() string {
	return "study_statistics"
}

// StudyRecord 按天记录的学习时长与解题数
type StudyRecord struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	UserID         uint      `gorm:"not null;uniqueIndex:idx_study_user_date,priority:1" json:"-"`
	Date           string    `gorm:"size:10;not null;uniqueIndex:idx_study_user_date,priority:2" json:"date"`
	StudyTime      int       `gorm:"not null;default:0" json:"study_time"`
	ProblemsSolved int       `gorm:"not null;default:0" json:"problems_solved"`
	CreatedAt      time.Time `json:"-"`
}

func (StudyRecord) TableName() string {
	return "study_records"
}

// AllModels 参与自动迁移的全部模型
func AllModels() []interface{} {
	return []interface{}{
		&User{},
		&StudentProfile{},
		&TeacherProfile{},
		&Problem{},
		&Test{},
		&TestQuestion{},
		&UserProblemStatus{},
		&DailyUserSubmission{},
		&TestSubmission{},
		&TestResult{},
		&QuestionStat{},
		&StudyStatistics{},
		&StudyRecord{},
	}
}
