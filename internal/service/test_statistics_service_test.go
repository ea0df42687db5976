package service

import (
	"edu_practice_backend/internal/model"
	"edu_practice_backend/internal/util"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func submission(score float64, duration int, answers model.SubmissionAnswers) model.TestSubmission {
	return model.TestSubmission{
		Score:    score,
		Duration: duration,
		Answers:  datatypes.NewJSONType(answers),
	}
}

func TestComputeStatistics(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	questions := []model.TestQuestion{
		{ProblemID: 11, Order: 1},
		{ProblemID: 12, Order: 2},
		{ProblemID: 13, Order: 3},
	}
	subs := []model.TestSubmission{
		submission(100, 600, model.SubmissionAnswers{
			11: {Answer: "a", IsCorrect: true, TimeSpent: 60},
			12: {Answer: "b", IsCorrect: true, TimeSpent: 120},
		}),
		submission(85, 300, model.SubmissionAnswers{
			11: {Answer: "a", IsCorrect: true, TimeSpent: 30},
			12: {Answer: "x", IsCorrect: false},
		}),
		submission(59.5, 150, model.SubmissionAnswers{
			11: {Answer: "x", IsCorrect: false, TimeSpent: 90},
		}),
	}

	result, stats := ComputeStatistics(5, subs, questions, 4, now)

	assert.Equal(t, uint(5), result.TestID)
	assert.Equal(t, 3, result.CompletedCount)
	assert.Equal(t, 4, result.TotalStudents)
	assert.Equal(t, 81.5, result.AverageScore)
	// (600+300+150)/3/60 = 5.83 -> 6
	assert.Equal(t, 6, result.AverageTime)
	assert.Equal(t, 75.0, result.CompletionRate)
	assert.Equal(t, 66.7, result.PassRate)
	assert.Equal(t, model.ScoreDistribution{Excellent: 1, Good: 1, Pass: 0, Fail: 1}, result.ScoreDistribution.Data())
	assert.Equal(t, result.CompletedCount, result.ScoreDistribution.Data().Total())

	require.Len(t, stats, 3)
	assert.Equal(t, 3, stats[0].AnswerCount)
	assert.Equal(t, 0.67, stats[0].CorrectRate)
	// 180s / 3 answers / 60 = 1.0
	assert.Equal(t, 1.0, stats[0].AverageTime)
	assert.Equal(t, 2, stats[1].AnswerCount)
	assert.Equal(t, 0.5, stats[1].CorrectRate)
	assert.Equal(t, 1.0, stats[1].AverageTime)
	assert.Equal(t, 0, stats[2].AnswerCount)
	assert.Equal(t, 0.0, stats[2].CorrectRate)
	assert.Equal(t, 3, stats[2].Order)
}

func TestComputeStatisticsWithoutStudents(t *testing.T) {
	result, _ := ComputeStatistics(1, []model.TestSubmission{submission(60, 0, nil)}, nil, 0, time.Now())
	assert.Equal(t, 0.0, result.CompletionRate)
	assert.Equal(t, 100.0, result.PassRate)
	assert.Equal(t, 1, result.ScoreDistribution.Data().Pass)
}

func TestScoreDistributionPartitions(t *testing.T) {
	var subs []model.TestSubmission
	for _, s := range []float64{0, 12.5, 59.9, 60, 70, 79.9, 80, 85, 89.9, 90, 95, 100} {
		subs = append(subs, submission(s, 0, nil))
	}
	result, _ := ComputeStatistics(1, subs, nil, 20, time.Now())
	dist := result.ScoreDistribution.Data()
	assert.Equal(t, len(subs), dist.Total())
	assert.Equal(t, model.ScoreDistribution{Excellent: 3, Good: 3, Pass: 3, Fail: 3}, dist)
}

func TestRecomputeWithoutSubmissionsWritesNothing(t *testing.T) {
	f := newFixture(t)
	teacher := f.user(t, "tea", model.Teacher)
	test := f.createTest(t, teacher.ID, f.problem(t, "A", 1))

	_, err := f.statisticsService().Recompute(f.ctx, test.ID)
	assert.ErrorIs(t, err, util.ErrNoStatisticsData)

	var results, stats int64
	f.db.Model(&model.TestResult{}).Count(&results)
	f.db.Model(&model.QuestionStat{}).Count(&stats)
	assert.Zero(t, results)
	assert.Zero(t, stats)

	_, err = f.statisticsService().Recompute(f.ctx, 999)
	assert.ErrorIs(t, err, util.ErrTestNotFound)
}

func TestEndToEndSubmitAndRefresh(t *testing.T) {
	f := newFixture(t)
	teacher := f.user(t, "tea", model.Teacher)
	student := f.user(t, "stu", model.Student)
	p1 := f.problem(t, "A", 1, "sets")
	p2 := f.problem(t, "B", 2, "logic")
	test := f.createTest(t, teacher.ID, p1, p2)

	res, err := f.testService().SubmitTest(f.ctx, student.ID, test.ID, SubmitTestRequest{
		Answers:   map[uint]string{p1.ID: "A", p2.ID: "C"},
		TimeSpent: map[uint]int{p1.ID: 30, p2.ID: 90},
		Duration:  120,
	})
	require.NoError(t, err)
	assert.Equal(t, 50.0, res.Score)

	svc := f.statisticsService()
	view, err := svc.Recompute(f.ctx, test.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, view.CompletedCount)
	assert.Equal(t, 1, view.TotalStudents)
	assert.Equal(t, 50.0, view.AverageScore)
	assert.Equal(t, 2, view.AverageTime)
	assert.Equal(t, 100.0, view.CompletionRate)
	assert.Equal(t, 0.0, view.PassRate)
	assert.Equal(t, 1, view.ScoreDistribution.Fail)
	require.Len(t, view.QuestionStats, 2)
	assert.Equal(t, p1.ID, view.QuestionStats[0].ProblemID)
	assert.Equal(t, 1.0, view.QuestionStats[0].CorrectRate)
	assert.Equal(t, 0.0, view.QuestionStats[1].CorrectRate)
	assert.Equal(t, 1.5, view.QuestionStats[1].AverageTime)

	// 第二次重算覆盖原快照而不是新增
	_, err = f.testService().SubmitTest(f.ctx, student.ID, test.ID, SubmitTestRequest{
		Answers: map[uint]string{p1.ID: "A", p2.ID: "B"},
	})
	require.NoError(t, err)
	view, err = svc.Recompute(f.ctx, test.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, view.CompletedCount)
	assert.Equal(t, 75.0, view.AverageScore)

	var results, stats int64
	f.db.Model(&model.TestResult{}).Count(&results)
	f.db.Model(&model.QuestionStat{}).Count(&stats)
	assert.EqualValues(t, 1, results)
	assert.EqualValues(t, 2, stats)

	cached, err := svc.Get(f.ctx, test.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, cached.CompletedCount)
	assert.Equal(t, model.ScoreDistribution{Excellent: 1, Fail: 1}, cached.ScoreDistribution)
	require.Len(t, cached.QuestionStats, 2)
	assert.Equal(t, 1, cached.QuestionStats[0].Order)
}

func TestGetFallsBackToRecompute(t *testing.T) {
	f := newFixture(t)
	teacher := f.user(t, "tea", model.Teacher)
	student := f.user(t, "stu", model.Student)
	p := f.problem(t, "A", 1)
	test := f.createTest(t, teacher.ID, p)

	_, err := f.statisticsService().Get(f.ctx, test.ID)
	assert.ErrorIs(t, err, util.ErrNoStatisticsData)

	_, err = f.testService().SubmitTest(f.ctx, student.ID, test.ID, SubmitTestRequest{Answers: map[uint]string{p.ID: "A"}})
	require.NoError(t, err)

	view, err := f.statisticsService().Get(f.ctx, test.ID)
	require.NoError(t, err)
	assert.Equal(t, 100.0, view.AverageScore)

	var results int64
	f.db.Model(&model.TestResult{}).Count(&results)
	assert.EqualValues(t, 1, results)
}

func TestRecomputeAllSkipsTestsWithoutData(t *testing.T) {
	f := newFixture(t)
	teacher := f.user(t, "tea", model.Teacher)
	student := f.user(t, "stu", model.Student)
	p := f.problem(t, "A", 1)
	withData := f.createTest(t, teacher.ID, p)
	f.createTest(t, teacher.ID, p)

	_, err := f.testService().SubmitTest(f.ctx, student.ID, withData.ID, SubmitTestRequest{Answers: map[uint]string{p.ID: "B"}})
	require.NoError(t, err)

	views, err := f.statisticsService().RecomputeAll(f.ctx)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, withData.ID, views[0].TestID)
	assert.Equal(t, 0.0, views[0].AverageScore)
}

func TestRecomputeFailureKeepsPreviousSnapshot(t *testing.T) {
	f := newFixture(t)
	teacher := f.user(t, "tea", model.Teacher)
	student := f.user(t, "stu", model.Student)
	p1 := f.problem(t, "A", 1)
	p2 := f.problem(t, "B", 1)
	test := f.createTest(t, teacher.ID, p1, p2)

	_, err := f.testService().SubmitTest(f.ctx, student.ID, test.ID, SubmitTestRequest{Answers: map[uint]string{p1.ID: "A"}})
	require.NoError(t, err)
	svc := f.statisticsService()
	_, err = svc.Recompute(f.ctx, test.ID)
	require.NoError(t, err)

	_, err = f.testService().SubmitTest(f.ctx, student.ID, test.ID, SubmitTestRequest{Answers: map[uint]string{p1.ID: "A", p2.ID: "B"}})
	require.NoError(t, err)

	// test_results 已写入后逐题统计写失败，整个事务回滚
	f.failCreates(t, "question_stats", nil)
	_, err = svc.Recompute(f.ctx, test.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, errInjected)

	result, err := f.stats.FindTestResult(f.ctx, test.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.CompletedCount)
	assert.Equal(t, 50.0, result.AverageScore)

	stats, err := f.stats.ListQuestionStats(f.ctx, test.ID)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, 1.0, stats[0].CorrectRate)
	assert.Equal(t, 0, stats[1].AnswerCount)
}

func TestRecomputeAllContinuesAfterFailure(t *testing.T) {
	f := newFixture(t)
	teacher := f.user(t, "tea", model.Teacher)
	student := f.user(t, "stu", model.Student)
	p := f.problem(t, "A", 1)
	broken := f.createTest(t, teacher.ID, p)
	healthy := f.createTest(t, teacher.ID, p)

	for _, id := range []uint{broken.ID, healthy.ID} {
		_, err := f.testService().SubmitTest(f.ctx, student.ID, id, SubmitTestRequest{Answers: map[uint]string{p.ID: "A"}})
		require.NoError(t, err)
	}

	f.failCreates(t, "question_stats", func(db *gorm.DB) bool {
		stat, ok := db.Statement.Dest.(*model.QuestionStat)
		return ok && stat.TestID == broken.ID
	})

	views, err := f.statisticsService().RecomputeAll(f.ctx)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, healthy.ID, views[0].TestID)

	var brokenResults int64
	f.db.Model(&model.TestResult{}).Where("test_id = ?", broken.ID).Count(&brokenResults)
	assert.Zero(t, brokenResults)
}

func TestRecomputeRejectedWhileLockHeld(t *testing.T) {
	f := newFixture(t)
	teacher := f.user(t, "tea", model.Teacher)
	student := f.user(t, "stu", model.Student)
	p := f.problem(t, "A", 1)
	test := f.createTest(t, teacher.ID, p)
	_, err := f.testService().SubmitTest(f.ctx, student.ID, test.ID, SubmitTestRequest{Answers: map[uint]string{p.ID: "A"}})
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	svc := NewTestStatisticsService(f.tests, f.submissions, f.users, f.stats, rdb, time.Minute)

	key := fmt.Sprintf("test_stats:refresh:%d", test.ID)
	require.NoError(t, mr.Set(key, "1"))

	_, err = svc.Recompute(f.ctx, test.ID)
	assert.ErrorIs(t, err, util.ErrStatisticsRefreshing)
	var results int64
	f.db.Model(&model.TestResult{}).Count(&results)
	assert.Zero(t, results)

	mr.Del(key)
	view, err := svc.Recompute(f.ctx, test.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, view.CompletedCount)
	// 计算结束后释放锁
	assert.False(t, mr.Exists(key))
}

func TestRecomputeProceedsWhenRedisDown(t *testing.T) {
	f := newFixture(t)
	teacher := f.user(t, "tea", model.Teacher)
	student := f.user(t, "stu", model.Student)
	p := f.problem(t, "A", 1)
	test := f.createTest(t, teacher.ID, p)
	_, err := f.testService().SubmitTest(f.ctx, student.ID, test.ID, SubmitTestRequest{Answers: map[uint]string{p.ID: "A"}})
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	mr.Close()

	svc := NewTestStatisticsService(f.tests, f.submissions, f.users, f.stats, rdb, time.Minute)
	view, err := svc.Recompute(f.ctx, test.ID)
	require.NoError(t, err)
	assert.Equal(t, 100.0, view.AverageScore)
}
