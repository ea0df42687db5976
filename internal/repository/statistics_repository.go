package repository

import (
	"context"
	"edu_practice_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type StatisticsRepository struct {
	DB *gorm.DB
}

func NewStatisticsRepository(db *gorm.DB) *StatisticsRepository {
	return &StatisticsRepository{DB: db}
}

func (r *StatisticsRepository) WithTx(tx *gorm.DB) *StatisticsRepository {
	return &StatisticsRepository{DB: tx}
}

// UpsertTestResult 以 test_id 为键覆盖快照
func (r *StatisticsRepository) UpsertTestResult(ctx context.Context, result *model.TestResult) error {
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "test_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"total_students",
			"completed_count",
			"average_score",
			"average_time",
			"completion_rate",
			"pass_rate",
			"score_distribution",
			"last_updated",
		}),
	}).Create(result).Error
}

// UpsertQuestionStat 以 (test_id, problem_id) 为键覆盖
func (r *StatisticsRepository) UpsertQuestionStat(ctx context.Context, stat *model.QuestionStat) error {
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "test_id"}, {Name: "problem_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"sort_order",
			"answer_count",
			"correct_rate",
			"average_time",
			"last_updated",
		}),
	}).Create(stat).Error
}

func (r *StatisticsRepository) FindTestResult(ctx context.Context, testID uint) (*model.TestResult, error) {
	var result model.TestResult
	err := r.DB.WithContext(ctx).Where("test_id = ?", testID).First(&result).Error
	return &result, err
}

func (r *StatisticsRepository) ListQuestionStats(ctx context.Context, testID uint) ([]model.QuestionStat, error) {
	var stats []model.QuestionStat
	err := r.DB.WithContext(ctx).
		Where("test_id = ?", testID).
		Order("sort_order asc, problem_id asc").
		Find(&stats).Error
	return stats, err
}
