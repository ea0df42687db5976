package repository

import (
	"context"
	"edu_practice_backend/internal/model"

	"gorm.io/gorm"
)

type ProblemRepository struct {
	DB *gorm.DB
}

func NewProblemRepository(db *gorm.DB) *ProblemRepository {
	return &ProblemRepository{DB: db}
}

func (r *ProblemRepository) WithTx(tx *gorm.DB) *ProblemRepository {
	return &ProblemRepository{DB: tx}
}

func (r *ProblemRepository) Create(ctx context.Context, problem *model.Problem) error {
	return r.DB.WithContext(ctx).Create(problem).Error
}

func (r *ProblemRepository) FindByID(ctx context.Context, id uint) (*model.Problem, error) {
	var p model.Problem
	err := r.DB.WithContext(ctx).First(&p, id).Error
	return &p, err
}

func (r *ProblemRepository) List(ctx context.Context) ([]model.Problem, error) {
	var ps []model.Problem
	err := r.DB.WithContext(ctx).Order("id asc").Find(&ps).Error
	return ps, err
}

// FindByIDs 返回 id -> 题目 映射，不存在的 id 不出现在结果中
func (r *ProblemRepository) FindByIDs(ctx context.Context, ids []uint) (map[uint]model.Problem, error) {
	result := make(map[uint]model.Problem, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var ps []model.Problem
	if err := r.DB.WithContext(ctx).Where("id IN ?", ids).Find(&ps).Error; err != nil {
		return nil, err
	}
	for _, p := range ps {
		result[p.ID] = p
	}
	return result, nil
}
