package service

import (
	"context"
	"edu_practice_backend/internal/model"
	"edu_practice_backend/internal/repository"
	"edu_practice_backend/internal/util"
	"edu_practice_backend/pkg/logger"
	"edu_practice_backend/pkg/monitoring"
	"edu_practice_backend/pkg/tracing"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TestStatisticsView 测试整体统计与逐题统计
type TestStatisticsView struct {
	TestID            uint                    `json:"test_id"`
	TotalStudents     int                     `json:"total_students"`
	CompletedCount    int                     `json:"completed_count"`
	AverageScore      float64                 `json:"average_score"`
	AverageTime       int                     `json:"average_time"`
	CompletionRate    float64                 `json:"completion_rate"`
	PassRate          float64                 `json:"pass_rate"`
	ScoreDistribution model.ScoreDistribution `json:"score_distribution"`
	LastUpdated       time.Time               `json:"last_updated"`
	QuestionStats     []model.QuestionStat    `json:"question_stats"`
}

// TestStatisticsService 计算并缓存测试统计快照
type TestStatisticsService struct {
	TestRepo       *repository.TestRepository
	SubmissionRepo *repository.SubmissionRepository
	UserRepo       *repository.UserRepository
	StatsRepo      *repository.StatisticsRepository

	// Redis 为空时不加刷新锁
	Redis *redis.Client
	Now   func() time.Time

	lockTTL atomic.Int64
}

func NewTestStatisticsService(testRepo *repository.TestRepository, submissionRepo *repository.SubmissionRepository,
	userRepo *repository.UserRepository, statsRepo *repository.StatisticsRepository,
	rdb *redis.Client, lockTTL time.Duration) *TestStatisticsService {
	s := &TestStatisticsService{
		TestRepo:       testRepo,
		SubmissionRepo: submissionRepo,
		UserRepo:       userRepo,
		StatsRepo:      statsRepo,
		Redis:          rdb,
		Now:            time.Now,
	}
	s.SetLockTTL(lockTTL)
	return s
}

// SetLockTTL 配置热更新时调整刷新锁过期时间
func (s *TestStatisticsService) SetLockTTL(ttl time.Duration) {
	s.lockTTL.Store(int64(ttl))
}

// Recompute 重新计算并覆盖统计快照；没有提交记录时返回 ErrNoStatisticsData 且不写入
func (s *TestStatisticsService) Recompute(ctx context.Context, testID uint) (view *TestStatisticsView, err error) {
	start := time.Now()
	ctx, span := tracing.Tracer.Start(ctx, "statistics.recompute",
		trace.WithAttributes(attribute.Int64("test.id", int64(testID))))
	defer func() {
		result := "ok"
		switch {
		case errors.Is(err, util.ErrNoStatisticsData):
			result = "no_data"
		case err != nil:
			result = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		monitoring.StatisticsRecomputeDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())
		span.End()
	}()

	test, err := s.TestRepo.FindTestByID(ctx, testID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, util.ErrTestNotFound
		}
		return nil, err
	}

	unlock, err := s.lock(ctx, testID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	subs, err := s.SubmissionRepo.ListTestSubmissions(ctx, testID)
	if err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return nil, util.ErrNoStatisticsData
	}

	totalStudents, err := s.UserRepo.CountByRole(ctx, model.Student)
	if err != nil {
		return nil, err
	}

	questions, err := s.questionOrder(ctx, test)
	if err != nil {
		return nil, err
	}

	result, stats := ComputeStatistics(testID, subs, questions, int(totalStudents), s.Now())

	err = s.StatsRepo.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.StatsRepo.WithTx(tx)
		if err := repo.UpsertTestResult(ctx, result); err != nil {
			return err
		}
		for i := range stats {
			if err := repo.UpsertQuestionStat(ctx, &stats[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("save statistics for test %d: %w", testID, err)
	}

	span.SetAttributes(attribute.Int("statistics.completed", result.CompletedCount))
	return newStatisticsView(result, stats), nil
}

// Get 读取缓存快照，不存在时即时计算
func (s *TestStatisticsService) Get(ctx context.Context, testID uint) (*TestStatisticsView, error) {
	result, err := s.StatsRepo.FindTestResult(ctx, testID)
	if err != nil {
		if repository.IsNotFound(err) {
			return s.Recompute(ctx, testID)
		}
		return nil, err
	}
	stats, err := s.StatsRepo.ListQuestionStats(ctx, testID)
	if err != nil {
		return nil, err
	}
	return newStatisticsView(result, stats), nil
}

// RecomputeAll 逐个测试重算，无数据的测试直接跳过，其余失败记日志后继续
func (s *TestStatisticsService) RecomputeAll(ctx context.Context) ([]TestStatisticsView, error) {
	ids, err := s.TestRepo.ListTestIDs(ctx)
	if err != nil {
		return nil, err
	}

	views := make([]TestStatisticsView, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return views, err
		}
		view, err := s.Recompute(ctx, id)
		if err != nil {
			if !errors.Is(err, util.ErrNoStatisticsData) {
				logger.Log.Error("Failed to recompute test statistics",
					zap.Uint("test_id", id),
					zap.Error(err))
			}
			continue
		}
		views = append(views, *view)
	}
	return views, nil
}

func (s *TestStatisticsService) lock(ctx context.Context, testID uint) (func(), error) {
	if s.Redis == nil {
		return func() {}, nil
	}
	ttl := time.Duration(s.lockTTL.Load())
	if ttl <= 0 {
		ttl = 30 * time.Second
	}

	key := fmt.Sprintf("test_stats:refresh:%d", testID)
	ok, err := s.Redis.SetNX(ctx, key, 1, ttl).Result()
	if err != nil {
		// Redis 不可用时不阻塞统计计算
		logger.Log.Warn("Statistics refresh lock unavailable", zap.String("key", key), zap.Error(err))
		return func() {}, nil
	}
	if !ok {
		return nil, util.ErrStatisticsRefreshing
	}
	return func() {
		if err := s.Redis.Del(context.Background(), key).Err(); err != nil {
			logger.Log.Warn("Failed to release statistics refresh lock", zap.String("key", key), zap.Error(err))
		}
	}, nil
}

// questionOrder 优先使用 test_questions 中的题序，旧数据退回 problem_ids
func (s *TestStatisticsService) questionOrder(ctx context.Context, test *model.Test) ([]model.TestQuestion, error) {
	qs, err := s.TestRepo.ListQuestions(ctx, test.ID)
	if err != nil {
		return nil, err
	}
	if len(qs) > 0 {
		return qs, nil
	}
	for i, pid := range test.ProblemIDs {
		qs = append(qs, model.TestQuestion{TestID: test.ID, ProblemID: pid, Order: i + 1})
	}
	return qs, nil
}

// ComputeStatistics 由全部提交计算测试快照与逐题统计，subs 不能为空
func ComputeStatistics(testID uint, subs []model.TestSubmission, questions []model.TestQuestion,
	totalStudents int, now time.Time) (*model.TestResult, []model.QuestionStat) {
	completed := len(subs)

	var (
		scoreSum    float64
		durationSum int
		passed      int
		dist        model.ScoreDistribution
	)
	for _, sub := range subs {
		scoreSum += sub.Score
		durationSum += sub.Duration
		if sub.Score >= util.PassScore {
			passed++
		}
		dist.Add(sub.Score)
	}

	result := &model.TestResult{
		TestID:            testID,
		TotalStudents:     totalStudents,
		CompletedCount:    completed,
		AverageScore:      util.Round(scoreSum/float64(completed), 1),
		AverageTime:       int(math.Round(float64(durationSum) / float64(completed) / 60)),
		CompletionRate:    util.Round(util.Percent(completed, totalStudents), 1),
		PassRate:          util.Round(util.Percent(passed, completed), 1),
		ScoreDistribution: datatypes.NewJSONType(dist),
		LastUpdated:       now,
	}

	stats := make([]model.QuestionStat, 0, len(questions))
	for _, q := range questions {
		var answered, correct, spent int
		for _, sub := range subs {
			ans, ok := sub.Answers.Data()[q.ProblemID]
			if !ok {
				continue
			}
			answered++
			if ans.IsCorrect {
				correct++
			}
			if ans.TimeSpent > 0 {
				spent += ans.TimeSpent
			}
		}

		stat := model.QuestionStat{
			TestID:      testID,
			ProblemID:   q.ProblemID,
			Order:       q.Order,
			AnswerCount: answered,
			LastUpdated: now,
		}
		if answered > 0 {
			stat.CorrectRate = util.Round(float64(correct)/float64(answered), 2)
			stat.AverageTime = util.Round(float64(spent)/float64(answered)/60, 1)
		}
		stats = append(stats, stat)
	}
	return result, stats
}

func newStatisticsView(r *model.TestResult, stats []model.QuestionStat) *TestStatisticsView {
	if stats == nil {
		stats = []model.QuestionStat{}
	}
	return &TestStatisticsView{
		TestID:            r.TestID,
		TotalStudents:     r.TotalStudents,
		CompletedCount:    r.CompletedCount,
		AverageScore:      r.AverageScore,
		AverageTime:       r.AverageTime,
		CompletionRate:    r.CompletionRate,
		PassRate:          r.PassRate,
		ScoreDistribution: r.ScoreDistribution.Data(),
		LastUpdated:       r.LastUpdated,
		QuestionStats:     stats,
	}
}
