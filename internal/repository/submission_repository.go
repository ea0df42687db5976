package repository

import (
	"context"
	"edu_practice_backend/internal/model"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SubmissionRepository 管理做题状态、每日提交计数与测试提交
type SubmissionRepository struct {
	DB *gorm.DB
}

func NewSubmissionRepository(db *gorm.DB) *SubmissionRepository {
	return &SubmissionRepository{DB: db}
}

func (r *SubmissionRepository) WithTx(tx *gorm.DB) *SubmissionRepository {
	return &SubmissionRepository{DB: tx}
}

// UpsertProblemStatus 单条语句完成插入或覆盖，submit_count 在数据库侧递增
func (r *SubmissionRepository) UpsertProblemStatus(ctx context.Context, userID, problemID uint,
	status model.ProblemStatus, answer string, at time.Time) error {
	row := model.UserProblemStatus{
		UserID:      userID,
		ProblemID:   problemID,
		Status:      status,
		SubmitCount: 1,
		LastAnswer:  answer,
		SubmittedAt: at,
		CreatedAt:   at,
	}
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "problem_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"status":       status,
			"last_answer":  answer,
			"submitted_at": at,
			"submit_count": gorm.Expr("user_problem_statuses.submit_count + 1"),
		}),
	}).Create(&row).Error
}

// IncrementDailySubmission 当日计数 +1，不存在则以 1 插入
func (r *SubmissionRepository) IncrementDailySubmission(ctx context.Context, userID uint, date string) error {
	row := model.DailyUserSubmission{
		UserID:         userID,
		SubmissionDate: date,
		Count:          1,
	}
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "submission_date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"count": gorm.Expr("daily_user_submissions.count + 1"),
		}),
	}).Create(&row).Error
}

func (r *SubmissionRepository) FindProblemStatus(ctx context.Context, userID, problemID uint) (*model.UserProblemStatus, error) {
	var s model.UserProblemStatus
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND problem_id = ?", userID, problemID).
		First(&s).Error
	return &s, err
}

// ListProblemStatuses 返回用户全部做题状态
func (r *SubmissionRepository) ListProblemStatuses(ctx context.Context, userID uint) ([]model.UserProblemStatus, error) {
	var rows []model.UserProblemStatus
	err := r.DB.WithContext(ctx).Where("user_id = ?", userID).Order("problem_id asc").Find(&rows).Error
	return rows, err
}

// ProblemStatusMap 题目ID -> 状态
func (r *SubmissionRepository) ProblemStatusMap(ctx context.Context, userID uint) (map[uint]model.ProblemStatus, error) {
	rows, err := r.ListProblemStatuses(ctx, userID)
	if err != nil {
		return nil, err
	}
	m := make(map[uint]model.ProblemStatus, len(rows))
	for _, row := range rows {
		m[row.ProblemID] = row.Status
	}
	return m, nil
}

func (r *SubmissionRepository) FindDailySubmission(ctx context.Context, userID uint, date string) (*model.DailyUserSubmission, error) {
	var d model.DailyUserSubmission
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND submission_date = ?", userID, date).
		First(&d).Error
	return &d, err
}

// ListDailySubmissions 返回 since（含）之后的每日计数，按日期升序
func (r *SubmissionRepository) ListDailySubmissions(ctx context.Context, userID uint, since string) ([]model.DailyUserSubmission, error) {
	var rows []model.DailyUserSubmission
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND submission_date >= ?", userID, since).
		Order("submission_date asc").
		Find(&rows).Error
	return rows, err
}

func (r *SubmissionRepository) CreateTestSubmission(ctx context.Context, s *model.TestSubmission) error {
	return r.DB.WithContext(ctx).Create(s).Error
}

// LatestTestSubmission 最近一次提交，submit_time 相同时取 id 较大者
func (r *SubmissionRepository) LatestTestSubmission(ctx context.Context, userID, testID uint) (*model.TestSubmission, error) {
	var s model.TestSubmission
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND test_id = ?", userID, testID).
		Order("submit_time desc, id desc").
		First(&s).Error
	return &s, err
}

func (r *SubmissionRepository) ListTestSubmissions(ctx context.Context, testID uint) ([]model.TestSubmission, error) {
	var rows []model.TestSubmission
	err := r.DB.WithContext(ctx).Where("test_id = ?", testID).Order("id asc").Find(&rows).Error
	return rows, err
}

// ListUserTestSubmissions 用户全部测试提交，新的在前
func (r *SubmissionRepository) ListUserTestSubmissions(ctx context.Context, userID uint) ([]model.TestSubmission, error) {
	var rows []model.TestSubmission
	err := r.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("submit_time desc, id desc").
		Find(&rows).Error
	return rows, err
}

// SubmittedTestIDs 用户至少提交过一次的测试
func (r *SubmissionRepository) SubmittedTestIDs(ctx context.Context, userID uint) (map[uint]bool, error) {
	var ids []uint
	err := r.DB.WithContext(ctx).Model(&model.TestSubmission{}).
		Where("user_id = ?", userID).
		Distinct().
		Pluck("test_id", &ids).Error
	if err != nil {
		return nil, err
	}
	m := make(map[uint]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m, nil
}
