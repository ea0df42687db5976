package service

import (
	"context"
	"edu_practice_backend/internal/model"
	"edu_practice_backend/internal/repository"
	"edu_practice_backend/internal/util"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"
)

const (
	DefaultActivityDays = 365
	MaxActivityDays     = 3650
)

// DifficultyBucket 某一难度下做对的题数与做过的题数
type DifficultyBucket struct {
	Difficulty     int     `json:"difficulty"`
	Completed      int     `json:"completed"`
	Total          int     `json:"total"`
	CompletionRate float64 `json:"completion_rate"`
}

type ActivityDay struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// StudySessionRequest 记录一次学习
// swagger:model StudySessionRequest
type StudySessionRequest struct {
	Minutes        int `json:"minutes" binding:"min=0"`
	ProblemsSolved int `json:"problems_solved" binding:"min=0"`
	CorrectCount   int `json:"correct_count" binding:"min=0"`
}

// ProgressService 个人学习进度报表
type ProgressService struct {
	ProblemRepo    *repository.ProblemRepository
	SubmissionRepo *repository.SubmissionRepository
	StudyRepo      *repository.StudyRepository
	Now            func() time.Time
}

func NewProgressService(problemRepo *repository.ProblemRepository, submissionRepo *repository.SubmissionRepository,
	studyRepo *repository.StudyRepository) *ProgressService {
	return &ProgressService{
		ProblemRepo:    problemRepo,
		SubmissionRepo: submissionRepo,
		StudyRepo:      studyRepo,
		Now:            time.Now,
	}
}

type attemptedProblem struct {
	problem model.Problem
	correct bool
}

func (s *ProgressService) attempted(ctx context.Context, userID uint) ([]attemptedProblem, error) {
	statuses, err := s.SubmissionRepo.ListProblemStatuses(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(statuses))
	for _, st := range statuses {
		ids = append(ids, st.ProblemID)
	}
	problems, err := s.ProblemRepo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	result := make([]attemptedProblem, 0, len(statuses))
	for _, st := range statuses {
		p, ok := problems[st.ProblemID]
		if !ok {
			continue
		}
		result = append(result, attemptedProblem{problem: p, correct: st.Status == model.StatusCorrect})
	}
	return result, nil
}

// KnowledgeStatus 多知识点的题目计入每个知识点，按知识点名排序
func (s *ProgressService) KnowledgeStatus(ctx context.Context, userID uint) ([]TopicMastery, error) {
	attempts, err := s.attempted(ctx, userID)
	if err != nil {
		return nil, err
	}

	tally := newTopicTally()
	for _, a := range attempts {
		tally.add(a.problem.Topics, a.correct)
	}
	result := tally.list()
	sort.Slice(result, func(i, j int) bool { return result[i].Topic < result[j].Topic })
	return result, nil
}

// DifficultyDistribution 固定返回 1..5 五个难度
func (s *ProgressService) DifficultyDistribution(ctx context.Context, userID uint) ([]DifficultyBucket, error) {
	attempts, err := s.attempted(ctx, userID)
	if err != nil {
		return nil, err
	}

	buckets := make([]DifficultyBucket, model.MaxDifficulty)
	for i := range buckets {
		buckets[i].Difficulty = i + 1
	}
	for _, a := range attempts {
		d := a.problem.Difficulty
		if d < model.MinDifficulty || d > model.MaxDifficulty {
			continue
		}
		buckets[d-1].Total++
		if a.correct {
			buckets[d-1].Completed++
		}
	}
	for i := range buckets {
		buckets[i].CompletionRate = util.Round(util.Percent(buckets[i].Completed, buckets[i].Total), 2)
	}
	return buckets, nil
}

// Activity 最近 days 天（含今天）的每日提交数，最多 MaxActivityDays 天
func (s *ProgressService) Activity(ctx context.Context, userID uint, days int) ([]ActivityDay, error) {
	if days <= 0 {
		days = DefaultActivityDays
	}
	if days > MaxActivityDays {
		days = MaxActivityDays
	}
	since := s.Now().AddDate(0, 0, -(days - 1)).Format(util.DateFormat)

	rows, err := s.SubmissionRepo.ListDailySubmissions(ctx, userID, since)
	if err != nil {
		return nil, err
	}
	result := make([]ActivityDay, 0, len(rows))
	for _, row := range rows {
		result = append(result, ActivityDay{Date: row.SubmissionDate, Count: row.Count})
	}
	return result, nil
}

func (s *ProgressService) Statistics(ctx context.Context, userID uint) (*model.StudyStatistics, error) {
	return s.StudyRepo.GetOrCreateStatistics(ctx, userID)
}

// RecordStudySession 累加当日学习记录并更新连续学习天数
func (s *ProgressService) RecordStudySession(ctx context.Context, userID uint, req StudySessionRequest) (*model.StudyStatistics, error) {
	if req.Minutes < 0 || req.ProblemsSolved < 0 || req.CorrectCount < 0 {
		return nil, util.NewValidationError("study_session", "values must not be negative")
	}
	if req.CorrectCount > req.ProblemsSolved {
		return nil, util.NewValidationError("correct_count", "must not exceed problems_solved")
	}

	today := s.Now()
	var stats *model.StudyStatistics
	err := s.StudyRepo.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.StudyRepo.WithTx(tx)
		if err := repo.AddStudyRecord(ctx, userID, today.Format(util.DateFormat), req.Minutes, req.ProblemsSolved); err != nil {
			return err
		}

		current, err := repo.GetOrCreateStatistics(ctx, userID)
		if err != nil {
			return err
		}
		// 连续天数只取决于上次学习日期，同一天的并发请求写入相同结果
		err = repo.AccumulateStatistics(ctx, userID, repository.StudyDelta{
			Minutes:        req.Minutes,
			ProblemsSolved: req.ProblemsSolved,
			CorrectCount:   req.CorrectCount,
			StreakDays:     NextStreak(current.LastStudyDate, current.StreakDays, today),
			StudyDate:      today.Format(util.DateFormat),
		})
		if err != nil {
			return err
		}
		stats, err = repo.GetOrCreateStatistics(ctx, userID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("record study session: %w", err)
	}
	return stats, nil
}

// NextStreak 同一天不变，前一天 +1，其余情况重新从 1 开始
func NextStreak(lastDate string, streak int, today time.Time) int {
	todayStr := today.Format(util.DateFormat)
	switch lastDate {
	case "":
		return 1
	case todayStr:
		if streak < 1 {
			return 1
		}
		return streak
	case today.AddDate(0, 0, -1).Format(util.DateFormat):
		return streak + 1
	}
	return 1
}
