package repository

import (
	"context"
	"edu_practice_backend/internal/model"

	"gorm.io/gorm"
)

type TestRepository struct {
	DB *gorm.DB
}

func NewTestRepository(db *gorm.DB) *TestRepository {
	return &TestRepository{DB: db}
}

func (r *TestRepository) WithTx(tx *gorm.DB) *TestRepository {
	return &TestRepository{DB: tx}
}

func (r *TestRepository) CreateTest(ctx context.Context, test *model.Test) error {
	return r.DB.WithContext(ctx).Create(test).Error
}

func (r *TestRepository) CreateQuestions(ctx context.Context, questions []model.TestQuestion) error {
	if len(questions) == 0 {
		return nil
	}
	return r.DB.WithContext(ctx).Create(&questions).Error
}

func (r *TestRepository) FindTestByID(ctx context.Context, id uint) (*model.Test, error) {
	var test model.Test
	err := r.DB.WithContext(ctx).First(&test, id).Error
	return &test, err
}

// FindTestsByIDs 一次查询取回多个测试，不存在的 id 不出现在结果中
func (r *TestRepository) FindTestsByIDs(ctx context.Context, ids []uint) (map[uint]model.Test, error) {
	result := make(map[uint]model.Test, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var tests []model.Test
	if err := r.DB.WithContext(ctx).Where("id IN ?", ids).Find(&tests).Error; err != nil {
		return nil, err
	}
	for _, t := range tests {
		result[t.ID] = t
	}
	return result, nil
}

func (r *TestRepository) ListTests(ctx context.Context) ([]model.Test, error) {
	var tests []model.Test
	err := r.DB.WithContext(ctx).Order("created_at desc, id desc").Find(&tests).Error
	return tests, err
}

func (r *TestRepository) ListTestsByCreator(ctx context.Context, creatorID uint) ([]model.Test, error) {
	var tests []model.Test
	err := r.DB.WithContext(ctx).
		Where("created_by = ?", creatorID).
		Order("created_at desc, id desc").
		Find(&tests).Error
	return tests, err
}

func (r *TestRepository) ListTestIDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	err := r.DB.WithContext(ctx).Model(&model.Test{}).Order("id asc").Pluck("id", &ids).Error
	return ids, err
}

// ListQuestions 按 TestQuestion.Order 升序返回
func (r *TestRepository) ListQuestions(ctx context.Context, testID uint) ([]model.TestQuestion, error) {
	var qs []model.TestQuestion
	err := r.DB.WithContext(ctx).
		Where("test_id = ?", testID).
		Order("sort_order asc").
		Find(&qs).Error
	return qs, err
}

// OrderedProblem 按题序展开的试卷题目
type OrderedProblem struct {
	Order   int
	Problem model.Problem
}

// ListOrderedProblems 连接 test_questions 与 problems，保证按题序返回
func (r *TestRepository) ListOrderedProblems(ctx context.Context, testID uint) ([]OrderedProblem, error) {
	qs, err := r.ListQuestions(ctx, testID)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(qs))
	for _, q := range qs {
		ids = append(ids, q.ProblemID)
	}

	problems, err := NewProblemRepository(r.DB).FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	result := make([]OrderedProblem, 0, len(qs))
	for _, q := range qs {
		p, ok := problems[q.ProblemID]
		if !ok {
			continue
		}
		result = append(result, OrderedProblem{Order: q.Order, Problem: p})
	}
	return result, nil
}
