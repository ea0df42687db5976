package service

import (
	"context"
	"edu_practice_backend/internal/config"
	"edu_practice_backend/internal/model"
	"edu_practice_backend/internal/repository"
	"edu_practice_backend/pkg/database"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	db          *gorm.DB
	ctx         context.Context
	users       *repository.UserRepository
	problems    *repository.ProblemRepository
	tests       *repository.TestRepository
	submissions *repository.SubmissionRepository
	stats       *repository.StatisticsRepository
	study       *repository.StudyRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.InitDB(&config.DatabaseConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "test.db"),
	}, false)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	return &fixture{
		db:          db,
		ctx:         context.Background(),
		users:       repository.NewUserRepository(db),
		problems:    repository.NewProblemRepository(db),
		tests:       repository.NewTestRepository(db),
		submissions: repository.NewSubmissionRepository(db),
		stats:       repository.NewStatisticsRepository(db),
		study:       repository.NewStudyRepository(db),
	}
}

func (f *fixture) user(t *testing.T, name string, role model.UserRole) *model.User {
	t.Helper()
	u := &model.User{
		Username:     name,
		Email:        fmt.Sprintf("%s@example.com", name),
		PasswordHash: "x",
		Role:         role,
	}
	require.NoError(t, f.users.Create(f.ctx, u))
	return u
}

func (f *fixture) problem(t *testing.T, answer string, difficulty int, topics ...string) *model.Problem {
	t.Helper()
	p := &model.Problem{
		Title:         "P-" + answer,
		Content:       "content",
		Type:          model.FillBlank,
		Difficulty:    difficulty,
		Topics:        topics,
		CorrectAnswer: answer,
		Explanation:   "because " + answer,
	}
	require.NoError(t, f.problems.Create(f.ctx, p))
	return p
}

func (f *fixture) problemService(now time.Time) *ProblemService {
	s := NewProblemService(f.problems, f.submissions)
	s.Now = func() time.Time { return now }
	return s
}

func (f *fixture) testService() *TestService {
	return NewTestService(f.tests, f.problems, f.submissions)
}

func (f *fixture) statisticsService() *TestStatisticsService {
	return NewTestStatisticsService(f.tests, f.submissions, f.users, f.stats, nil, 0)
}

func (f *fixture) progressService(now time.Time) *ProgressService {
	s := NewProgressService(f.problems, f.submissions, f.study)
	s.Now = func() time.Time { return now }
	return s
}

// createTest 以给定题目顺序组卷
func (f *fixture) createTest(t *testing.T, creator uint, problems ...*model.Problem) *model.Test {
	t.Helper()
	deadline := time.Now().Add(24 * time.Hour)
	req := CreateTestRequest{
		Title:         "Unit test",
		Type:          model.PracticeTest,
		Difficulty:    2,
		Deadline:      &deadline,
		EstimatedTime: 30,
	}
	for _, p := range problems {
		req.Questions = append(req.Questions, TestQuestionInput{ProblemID: p.ID})
	}
	test, err := f.testService().CreateTest(f.ctx, creator, req)
	require.NoError(t, err)
	return test
}

var errInjected = errors.New("injected write failure")

// failCreates 让指定表的 INSERT 失败，when 为 nil 时全部失败
func (f *fixture) failCreates(t *testing.T, table string, when func(db *gorm.DB) bool) {
	t.Helper()
	name := "test:fail_create_" + table
	require.NoError(t, f.db.Callback().Create().Before("gorm:create").Register(name, func(db *gorm.DB) {
		if db.Statement.Table == table && (when == nil || when(db)) {
			_ = db.AddError(errInjected)
		}
	}))
	t.Cleanup(func() { _ = f.db.Callback().Create().Remove(name) })
}
