package repository

import (
	"context"
	"edu_practice_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type StudyRepository struct {
	DB *gorm.DB
}

func NewStudyRepository(db *gorm.DB) *StudyRepository {
	return &StudyRepository{DB: db}
}

func (r *StudyRepository) WithTx(tx *gorm.DB) *StudyRepository {
	return &StudyRepository{DB: tx}
}

// GetOrCreateStatistics 不存在时插入全零行，并发插入由唯一索引兜底
func (r *StudyRepository) GetOrCreateStatistics(ctx context.Context, userID uint) (*model.StudyStatistics, error) {
	db := r.DB.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&model.StudyStatistics{UserID: userID}).Error; err != nil {
		return nil, err
	}

	var stats model.StudyStatistics
	if err := db.Where("user_id = ?", userID).First(&stats).Error; err != nil {
		return nil, err
	}
	return &stats, nil
}

// StudyDelta 一次学习记录带来的累计增量
type StudyDelta struct {
	Minutes        int
	ProblemsSolved int
	CorrectCount   int
	StreakDays     int
	StudyDate      string
}

// AccumulateStatistics 累计字段在同一条 UPDATE 中自增
func (r *StudyRepository) AccumulateStatistics(ctx context.Context, userID uint, d StudyDelta) error {
	return r.DB.WithContext(ctx).
		Model(&model.StudyStatistics{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"total_study_time": gorm.Expr("total_study_time + ?", d.Minutes),
			"total_problems":   gorm.Expr("total_problems + ?", d.ProblemsSolved),
			"correct_problems": gorm.Expr("correct_problems + ?", d.CorrectCount),
			"streak_days":      d.StreakDays,
			"last_study_date":  d.StudyDate,
		}).Error
}

// AddStudyRecord 当日记录累加学习时长与解题数
func (r *StudyRepository) AddStudyRecord(ctx context.Context, userID uint, date string, minutes, solved int) error {
	row := model.StudyRecord{
		UserID:         userID,
		Date:           date,
		StudyTime:      minutes,
		ProblemsSolved: solved,
	}
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"study_time":      gorm.Expr("study_records.study_time + ?", minutes),
			"problems_solved": gorm.Expr("study_records.problems_solved + ?", solved),
		}),
	}).Create(&row).Error
}

func (r *StudyRepository) FindStudyRecord(ctx context.Context, userID uint, date string) (*model.StudyRecord, error) {
	var rec model.StudyRecord
	err := r.DB.WithContext(ctx).Where("user_id = ? AND date = ?", userID, date).First(&rec).Error
	return &rec, err
}
