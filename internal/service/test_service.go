package service

import (
	"context"
	"edu_practice_backend/internal/model"
	"edu_practice_backend/internal/repository"
	"edu_practice_backend/internal/util"
	"edu_practice_backend/pkg/monitoring"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TestQuestionInput 组卷时的一道题，顺序即呈现顺序
type TestQuestionInput struct {
	ProblemID uint `json:"problem_id" binding:"required"`
}

// CreateTestRequest 新建测试
// swagger:model CreateTestRequest
type CreateTestRequest struct {
	Title         string              `json:"title" binding:"required,max=100"`
	Description   string              `json:"description"`
	Type          model.TestType      `json:"type" binding:"required,testtype"`
	Difficulty    int                 `json:"difficulty" binding:"required,min=1,max=5"`
	Deadline      *time.Time          `json:"deadline" binding:"required"`
	EstimatedTime int                 `json:"estimated_time" binding:"required,min=1"`
	Topics        []string            `json:"topics"`
	Questions     []TestQuestionInput `json:"questions" binding:"required,min=1,dive"`
}

// SubmitTestRequest 答案与每题用时均以题目ID为键
// swagger:model SubmitTestRequest
type SubmitTestRequest struct {
	Answers   map[uint]string `json:"answers"`
	TimeSpent map[uint]int    `json:"time_spent"`
	Duration  int             `json:"duration" binding:"min=0"`
}

type SubmitTestResult struct {
	SubmissionID   uint    `json:"submission_id"`
	Score          float64 `json:"score"`
	CorrectCount   int     `json:"correct_count"`
	TotalQuestions int     `json:"total_questions"`
}

type TestSummary struct {
	ID             uint           `json:"id"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	Type           model.TestType `json:"type"`
	TotalQuestions int            `json:"total_questions"`
	Difficulty     int            `json:"difficulty"`
	EstimatedTime  int            `json:"estimated_time"`
	Topics         []string       `json:"topics"`
	Deadline       *time.Time     `json:"deadline"`
	CreatedAt      time.Time      `json:"created_at"`
	Completed      *bool          `json:"completed,omitempty"`
}

type CompletedTest struct {
	TestID         uint           `json:"test_id"`
	Title          string         `json:"title"`
	Type           model.TestType `json:"type"`
	Score          float64        `json:"score"`
	CorrectCount   int            `json:"correct_count"`
	TotalQuestions int            `json:"total_questions"`
	SubmitTime     time.Time      `json:"submit_time"`
}

type TestProblemView struct {
	Order      int               `json:"order"`
	ID         uint              `json:"id"`
	Title      string            `json:"title"`
	Content    string            `json:"content"`
	Type       model.ProblemType `json:"type"`
	Options    []string          `json:"options"`
	Topics     []string          `json:"topics"`
	Difficulty int               `json:"difficulty"`
}

type TestDetail struct {
	Test     TestSummary       `json:"test"`
	Problems []TestProblemView `json:"problems"`
}

type QuestionResult struct {
	Order         int               `json:"order"`
	ProblemID     uint              `json:"problem_id"`
	Title         string            `json:"title"`
	Content       string            `json:"content"`
	Type          model.ProblemType `json:"type"`
	Options       []string          `json:"options"`
	Topics        []string          `json:"topics"`
	CorrectAnswer string            `json:"correct_answer"`
	UserAnswer    string            `json:"user_answer"`
	IsCorrect     bool              `json:"is_correct"`
	TimeSpent     int               `json:"time_spent"`
	Explanation   string            `json:"explanation"`
}

// TopicMastery 知识点掌握度，Mastery 为百分比，保留两位小数
type TopicMastery struct {
	Topic   string  `json:"topic"`
	Correct int     `json:"correct"`
	Total   int     `json:"total"`
	Mastery float64 `json:"mastery"`
}

type TestResultDetail struct {
	TestID         uint             `json:"test_id"`
	Title          string           `json:"title"`
	SubmissionID   uint             `json:"submission_id"`
	Score          float64          `json:"score"`
	CorrectCount   int              `json:"correct_count"`
	TotalQuestions int              `json:"total_questions"`
	Duration       int              `json:"duration"`
	SubmitTime     time.Time        `json:"submit_time"`
	Questions      []QuestionResult `json:"questions"`
	TopicMastery   []TopicMastery   `json:"topic_mastery"`
	WeakTopics     []string         `json:"weak_topics"`
}

type TestService struct {
	TestRepo       *repository.TestRepository
	ProblemRepo    *repository.ProblemRepository
	SubmissionRepo *repository.SubmissionRepository
	Now            func() time.Time
}

func NewTestService(testRepo *repository.TestRepository, problemRepo *repository.ProblemRepository,
	submissionRepo *repository.SubmissionRepository) *TestService {
	return &TestService{
		TestRepo:       testRepo,
		ProblemRepo:    problemRepo,
		SubmissionRepo: submissionRepo,
		Now:            time.Now,
	}
}

// CreateTest 任一题目不存在则整体拒绝；测试与题序在同一事务中写入
func (s *TestService) CreateTest(ctx context.Context, creatorID uint, req CreateTestRequest) (*model.Test, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, util.NewValidationError("title", "is required")
	}
	if !req.Type.Valid() {
		return nil, util.NewValidationError("type", "must be practice or formal")
	}
	if req.Difficulty < model.MinDifficulty || req.Difficulty > model.MaxDifficulty {
		return nil, util.NewValidationError("difficulty", "must be between 1 and 5")
	}
	if req.Deadline == nil {
		return nil, util.NewValidationError("deadline", "is required")
	}
	if req.EstimatedTime < 1 {
		return nil, util.NewValidationError("estimated_time", "must be at least 1 minute")
	}
	if len(req.Questions) == 0 {
		return nil, util.NewValidationError("questions", "must not be empty")
	}

	ids := make([]uint, 0, len(req.Questions))
	seen := make(map[uint]bool, len(req.Questions))
	for _, q := range req.Questions {
		if q.ProblemID == 0 {
			return nil, util.NewValidationError("questions", "problem_id is required")
		}
		if seen[q.ProblemID] {
			return nil, util.NewValidationError("questions", fmt.Sprintf("duplicate problem %d", q.ProblemID))
		}
		seen[q.ProblemID] = true
		ids = append(ids, q.ProblemID)
	}

	problems, err := s.ProblemRepo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if missing := missingIDs(ids, problems); len(missing) > 0 {
		return nil, util.NewValidationError("questions", fmt.Sprintf("problems not found: %v", missing))
	}

	topics := NormalizeTopics(req.Topics)
	if len(req.Topics) == 0 {
		var all []string
		for _, id := range ids {
			all = append(all, problems[id].Topics...)
		}
		topics = NormalizeTopics(all)
	}

	test := &model.Test{
		Title:          strings.TrimSpace(req.Title),
		Description:    req.Description,
		Type:           req.Type,
		ProblemIDs:     ids,
		TotalQuestions: len(ids),
		EstimatedTime:  req.EstimatedTime,
		Topics:         topics,
		Difficulty:     req.Difficulty,
		Deadline:       req.Deadline,
		CreatedBy:      &creatorID,
	}

	err = s.TestRepo.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.TestRepo.WithTx(tx)
		if err := repo.CreateTest(ctx, test); err != nil {
			return err
		}
		questions := make([]model.TestQuestion, 0, len(ids))
		for i, id := range ids {
			questions = append(questions, model.TestQuestion{
				TestID:    test.ID,
				ProblemID: id,
				Order:     i + 1,
			})
		}
		return repo.CreateQuestions(ctx, questions)
	})
	if err != nil {
		return nil, fmt.Errorf("create test: %w", err)
	}
	return test, nil
}

// ListTests 教师只看到自己创建的测试，学生看到全部测试及完成标记
func (s *TestService) ListTests(ctx context.Context, role model.UserRole, userID uint) ([]TestSummary, error) {
	if role == model.Teacher {
		tests, err := s.TestRepo.ListTestsByCreator(ctx, userID)
		if err != nil {
			return nil, err
		}
		result := make([]TestSummary, 0, len(tests))
		for i := range tests {
			result = append(result, newTestSummary(&tests[i]))
		}
		return result, nil
	}

	tests, err := s.TestRepo.ListTests(ctx)
	if err != nil {
		return nil, err
	}
	submitted, err := s.SubmissionRepo.SubmittedTestIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	result := make([]TestSummary, 0, len(tests))
	for i := range tests {
		summary := newTestSummary(&tests[i])
		completed := submitted[tests[i].ID]
		summary.Completed = &completed
		result = append(result, summary)
	}
	return result, nil
}

// ListCompleted 每个测试只保留最近一次提交
func (s *TestService) ListCompleted(ctx context.Context, userID uint) ([]CompletedTest, error) {
	subs, err := s.SubmissionRepo.ListUserTestSubmissions(ctx, userID)
	if err != nil {
		return nil, err
	}

	latest := make([]model.TestSubmission, 0, len(subs))
	testIDs := make([]uint, 0, len(subs))
	seen := make(map[uint]bool)
	for _, sub := range subs {
		if seen[sub.TestID] {
			continue
		}
		seen[sub.TestID] = true
		latest = append(latest, sub)
		testIDs = append(testIDs, sub.TestID)
	}

	tests, err := s.TestRepo.FindTestsByIDs(ctx, testIDs)
	if err != nil {
		return nil, err
	}

	result := make([]CompletedTest, 0, len(latest))
	for _, sub := range latest {
		test, ok := tests[sub.TestID]
		if !ok {
			continue
		}
		result = append(result, CompletedTest{
			TestID:         test.ID,
			Title:          test.Title,
			Type:           test.Type,
			Score:          sub.Score,
			CorrectCount:   sub.CorrectCount,
			TotalQuestions: sub.TotalQuestions,
			SubmitTime:     sub.SubmitTime,
		})
	}
	return result, nil
}

// GetTestDetail 题目按 TestQuestion.Order 排列，不包含答案
func (s *TestService) GetTestDetail(ctx context.Context, testID uint) (*TestDetail, error) {
	test, err := s.findTest(ctx, testID)
	if err != nil {
		return nil, err
	}
	ordered, err := s.TestRepo.ListOrderedProblems(ctx, testID)
	if err != nil {
		return nil, err
	}

	problems := make([]TestProblemView, 0, len(ordered))
	for _, op := range ordered {
		p := op.Problem
		problems = append(problems, TestProblemView{
			Order:      op.Order,
			ID:         p.ID,
			Title:      p.Title,
			Content:    p.Content,
			Type:       p.Type,
			Options:    stringsOrEmpty(p.Options),
			Topics:     stringsOrEmpty(p.Topics),
			Difficulty: p.Difficulty,
		})
	}
	return &TestDetail{Test: newTestSummary(test), Problems: problems}, nil
}

// SubmitTest 每次提交都追加新记录，未作答的题目按错误计
func (s *TestService) SubmitTest(ctx context.Context, userID, testID uint, req SubmitTestRequest) (*SubmitTestResult, error) {
	if req.Duration < 0 {
		return nil, util.NewValidationError("duration", "must not be negative")
	}
	if _, err := s.findTest(ctx, testID); err != nil {
		return nil, err
	}
	ordered, err := s.TestRepo.ListOrderedProblems(ctx, testID)
	if err != nil {
		return nil, err
	}

	graded := make(model.SubmissionAnswers, len(req.Answers))
	correct := 0
	for _, op := range ordered {
		answer, answered := req.Answers[op.Problem.ID]
		if !answered {
			continue
		}
		ok := op.Problem.Grade(answer)
		if ok {
			correct++
		}
		spent := req.TimeSpent[op.Problem.ID]
		if spent < 0 {
			spent = 0
		}
		graded[op.Problem.ID] = model.GradedAnswer{
			Answer:    answer,
			IsCorrect: ok,
			TimeSpent: spent,
		}
	}

	total := len(ordered)
	score := 0.0
	if total > 0 {
		score = util.Round(util.Percent(correct, total), 1)
	}

	sub := &model.TestSubmission{
		TestID:         testID,
		UserID:         userID,
		Score:          score,
		CorrectCount:   correct,
		TotalQuestions: total,
		Answers:        datatypes.NewJSONType(graded),
		Duration:       req.Duration,
		SubmitTime:     s.Now(),
	}
	if err := s.SubmissionRepo.CreateTestSubmission(ctx, sub); err != nil {
		return nil, fmt.Errorf("save test submission: %w", err)
	}
	monitoring.TestSubmissions.Inc()

	return &SubmitTestResult{
		SubmissionID:   sub.ID,
		Score:          score,
		CorrectCount:   correct,
		TotalQuestions: total,
	}, nil
}

// GetTestResult 取最近一次提交，逐题对照并汇总知识点掌握度
func (s *TestService) GetTestResult(ctx context.Context, userID, testID uint) (*TestResultDetail, error) {
	test, err := s.findTest(ctx, testID)
	if err != nil {
		return nil, err
	}
	sub, err := s.SubmissionRepo.LatestTestSubmission(ctx, userID, testID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, util.ErrSubmissionNotFound
		}
		return nil, err
	}
	ordered, err := s.TestRepo.ListOrderedProblems(ctx, testID)
	if err != nil {
		return nil, err
	}

	answers := sub.Answers.Data()
	tally := newTopicTally()
	questions := make([]QuestionResult, 0, len(ordered))
	for _, op := range ordered {
		p := op.Problem
		ans := answers[p.ID]
		questions = append(questions, QuestionResult{
			Order:         op.Order,
			ProblemID:     p.ID,
			Title:         p.Title,
			Content:       p.Content,
			Type:          p.Type,
			Options:       stringsOrEmpty(p.Options),
			Topics:        stringsOrEmpty(p.Topics),
			CorrectAnswer: p.CorrectAnswer,
			UserAnswer:    ans.Answer,
			IsCorrect:     ans.IsCorrect,
			TimeSpent:     ans.TimeSpent,
			Explanation:   p.Explanation,
		})
		tally.add(p.Topics, ans.IsCorrect)
	}

	mastery := tally.list()
	return &TestResultDetail{
		TestID:         test.ID,
		Title:          test.Title,
		SubmissionID:   sub.ID,
		Score:          sub.Score,
		CorrectCount:   sub.CorrectCount,
		TotalQuestions: sub.TotalQuestions,
		Duration:       sub.Duration,
		SubmitTime:     sub.SubmitTime,
		Questions:      questions,
		TopicMastery:   mastery,
		WeakTopics:     WeakTopics(mastery),
	}, nil
}

func (s *TestService) findTest(ctx context.Context, id uint) (*model.Test, error) {
	test, err := s.TestRepo.FindTestByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, util.ErrTestNotFound
		}
		return nil, err
	}
	return test, nil
}

func newTestSummary(t *model.Test) TestSummary {
	return TestSummary{
		ID:             t.ID,
		Title:          t.Title,
		Description:    t.Description,
		Type:           t.Type,
		TotalQuestions: t.TotalQuestions,
		Difficulty:     t.Difficulty,
		EstimatedTime:  t.EstimatedTime,
		Topics:         stringsOrEmpty(t.Topics),
		Deadline:       t.Deadline,
		CreatedAt:      t.CreatedAt,
	}
}

// topicTally 按首次出现顺序累计每个知识点的对错
type topicTally struct {
	order  []string
	counts map[string]*TopicMastery
}

func newTopicTally() *topicTally {
	return &topicTally{counts: make(map[string]*TopicMastery)}
}

func (t *topicTally) add(topics []string, correct bool) {
	for _, topic := range topics {
		m, ok := t.counts[topic]
		if !ok {
			m = &TopicMastery{Topic: topic}
			t.counts[topic] = m
			t.order = append(t.order, topic)
		}
		m.Total++
		if correct {
			m.Correct++
		}
	}
}

func (t *topicTally) list() []TopicMastery {
	result := make([]TopicMastery, 0, len(t.order))
	for _, topic := range t.order {
		m := *t.counts[topic]
		m.Mastery = util.Round(util.Percent(m.Correct, m.Total), 2)
		result = append(result, m)
	}
	return result
}

// IsWeakTopic 正确率严格低于阈值即为薄弱，用整数比较避免浮点误差
func IsWeakTopic(correct, total int) bool {
	return total > 0 && correct*100 < util.WeakTopicThreshold*total
}

func WeakTopics(mastery []TopicMastery) []string {
	weak := make([]string, 0)
	for _, m := range mastery {
		if IsWeakTopic(m.Correct, m.Total) {
			weak = append(weak, m.Topic)
		}
	}
	return weak
}
