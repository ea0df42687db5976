package service

import (
	"context"
	"edu_practice_backend/internal/model"
	"edu_practice_backend/internal/repository"
	"edu_practice_backend/internal/util"
	"edu_practice_backend/pkg/monitoring"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"
)

// TeacherProblemSummary 教师视角的题目列表项，包含答案与解析
type TeacherProblemSummary struct {
	ID            uint              `json:"id"`
	Title         string            `json:"title"`
	Type          model.ProblemType `json:"type"`
	Difficulty    int               `json:"difficulty"`
	Topics        []string          `json:"topics"`
	Options       []string          `json:"options"`
	CorrectAnswer string            `json:"correct_answer"`
	Explanation   string            `json:"explanation"`
	CreatedAt     time.Time         `json:"created_at"`
}

// StudentProblemSummary 学生视角的题目列表项，不含答案
type StudentProblemSummary struct {
	ID         uint                `json:"id"`
	Title      string              `json:"title"`
	Type       model.ProblemType   `json:"type"`
	Difficulty int                 `json:"difficulty"`
	Topics     []string            `json:"topics"`
	Status     model.ProblemStatus `json:"status"`
}

type ProblemDetail struct {
	ID              uint              `json:"id"`
	Title           string            `json:"title"`
	Content         string            `json:"content"`
	Type            model.ProblemType `json:"type"`
	Options         []string          `json:"options"`
	Topics          []string          `json:"topics"`
	Difficulty      int               `json:"difficulty"`
	RelatedProblems []uint            `json:"related_problems"`
	CorrectAnswer   *string           `json:"correct_answer,omitempty"`
	Explanation     *string           `json:"explanation,omitempty"`
}

// CreateProblemRequest 新建题目
// swagger:model CreateProblemRequest
type CreateProblemRequest struct {
	Title           string            `json:"title" binding:"required,max=200"`
	Content         string            `json:"content" binding:"required"`
	Type            model.ProblemType `json:"type" binding:"required,problemtype"`
	Difficulty      int               `json:"difficulty" binding:"required,min=1,max=5"`
	Topics          []string          `json:"topics"`
	Options         []string          `json:"options"`
	CorrectAnswer   string            `json:"correct_answer" binding:"required"`
	Explanation     string            `json:"explanation"`
	RelatedProblems []uint            `json:"related_problems"`
}

// SubmitAnswerRequest 单题作答
// swagger:model SubmitAnswerRequest
type SubmitAnswerRequest struct {
	Answer string `json:"answer"`
}

type SubmitAnswerResult struct {
	Correct       bool   `json:"correct"`
	CorrectAnswer string `json:"correct_answer"`
	Explanation   string `json:"explanation"`
}

type ProblemService struct {
	ProblemRepo    *repository.ProblemRepository
	SubmissionRepo *repository.SubmissionRepository
	Now            func() time.Time
}

func NewProblemService(problemRepo *repository.ProblemRepository, submissionRepo *repository.SubmissionRepository) *ProblemService {
	return &ProblemService{
		ProblemRepo:    problemRepo,
		SubmissionRepo: submissionRepo,
		Now:            time.Now,
	}
}

// ListProblems 按调用者角色返回不同结构的列表
func (s *ProblemService) ListProblems(ctx context.Context, role model.UserRole, userID uint) (interface{}, error) {
	if role == model.Teacher {
		return s.ListTeacherProblems(ctx)
	}
	return s.ListStudentProblems(ctx, userID)
}

func (s *ProblemService) ListTeacherProblems(ctx context.Context) ([]TeacherProblemSummary, error) {
	problems, err := s.ProblemRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]TeacherProblemSummary, 0, len(problems))
	for _, p := range problems {
		result = append(result, TeacherProblemSummary{
			ID:            p.ID,
			Title:         p.Title,
			Type:          p.Type,
			Difficulty:    p.Difficulty,
			Topics:        stringsOrEmpty(p.Topics),
			Options:       stringsOrEmpty(p.Options),
			CorrectAnswer: p.CorrectAnswer,
			Explanation:   p.Explanation,
			CreatedAt:     p.CreatedAt,
		})
	}
	return result, nil
}

// ListStudentProblems 未作答的题目状态为 not_attempted
func (s *ProblemService) ListStudentProblems(ctx context.Context, userID uint) ([]StudentProblemSummary, error) {
	problems, err := s.ProblemRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	statuses, err := s.SubmissionRepo.ProblemStatusMap(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := make([]StudentProblemSummary, 0, len(problems))
	for _, p := range problems {
		status, ok := statuses[p.ID]
		if !ok {
			status = model.StatusNotAttempted
		}
		result = append(result, StudentProblemSummary{
			ID:         p.ID,
			Title:      p.Title,
			Type:       p.Type,
			Difficulty: p.Difficulty,
			Topics:     stringsOrEmpty(p.Topics),
			Status:     status,
		})
	}
	return result, nil
}

func (s *ProblemService) GetProblem(ctx context.Context, id uint, role model.UserRole) (*ProblemDetail, error) {
	p, err := s.findProblem(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &ProblemDetail{
		ID:              p.ID,
		Title:           p.Title,
		Content:         p.Content,
		Type:            p.Type,
		Options:         stringsOrEmpty(p.Options),
		Topics:          stringsOrEmpty(p.Topics),
		Difficulty:      p.Difficulty,
		RelatedProblems: uintsOrEmpty(p.RelatedProblems),
	}
	if role == model.Teacher {
		detail.CorrectAnswer = &p.CorrectAnswer
		detail.Explanation = &p.Explanation
	}
	return detail, nil
}

func (s *ProblemService) CreateProblem(ctx context.Context, req CreateProblemRequest) (*model.Problem, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, util.NewValidationError("title", "is required")
	}
	if strings.TrimSpace(req.Content) == "" {
		return nil, util.NewValidationError("content", "is required")
	}
	if !req.Type.Valid() {
		return nil, util.NewValidationError("type", "must be one of multiple_choice, fill_blank, solution")
	}
	if req.Difficulty < model.MinDifficulty || req.Difficulty > model.MaxDifficulty {
		return nil, util.NewValidationError("difficulty", "must be between 1 and 5")
	}
	if req.CorrectAnswer == "" {
		return nil, util.NewValidationError("correct_answer", "is required")
	}

	var options []string
	if req.Type.HasOptions() {
		options = make([]string, 0, len(req.Options))
		for _, o := range req.Options {
			if o = strings.TrimSpace(o); o != "" {
				options = append(options, o)
			}
		}
		if len(options) < 2 {
			return nil, util.NewValidationError("options", "multiple_choice needs at least 2 options")
		}
	}

	related := dedupeIDs(req.RelatedProblems)
	if len(related) > 0 {
		found, err := s.ProblemRepo.FindByIDs(ctx, related)
		if err != nil {
			return nil, err
		}
		if missing := missingIDs(related, found); len(missing) > 0 {
			return nil, util.NewValidationError("related_problems", fmt.Sprintf("problems not found: %v", missing))
		}
	}

	problem := &model.Problem{
		Title:           strings.TrimSpace(req.Title),
		Content:         req.Content,
		Type:            req.Type,
		Difficulty:      req.Difficulty,
		Topics:          NormalizeTopics(req.Topics),
		Options:         options,
		CorrectAnswer:   req.CorrectAnswer,
		Explanation:     req.Explanation,
		RelatedProblems: related,
	}
	if err := s.ProblemRepo.Create(ctx, problem); err != nil {
		return nil, fmt.Errorf("create problem: %w", err)
	}
	return problem, nil
}

// SubmitAnswer 判分后在同一事务中更新做题状态与当日提交计数
func (s *ProblemService) SubmitAnswer(ctx context.Context, userID, problemID uint, answer string) (*SubmitAnswerResult, error) {
	p, err := s.findProblem(ctx, problemID)
	if err != nil {
		return nil, err
	}

	correct := p.Grade(answer)
	status := model.StatusFor(correct)
	now := s.Now()

	err = s.SubmissionRepo.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.SubmissionRepo.WithTx(tx)
		if err := repo.UpsertProblemStatus(ctx, userID, problemID, status, answer, now); err != nil {
			return err
		}
		return repo.IncrementDailySubmission(ctx, userID, now.Format(util.DateFormat))
	})
	if err != nil {
		return nil, fmt.Errorf("record submission: %w", err)
	}
	monitoring.ProblemSubmissions.WithLabelValues(string(status)).Inc()

	return &SubmitAnswerResult{
		Correct:       correct,
		CorrectAnswer: p.CorrectAnswer,
		Explanation:   p.Explanation,
	}, nil
}

func (s *ProblemService) findProblem(ctx context.Context, id uint) (*model.Problem, error) {
	p, err := s.ProblemRepo.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, util.ErrProblemNotFound
		}
		return nil, err
	}
	return p, nil
}

// NormalizeTopics 去除首尾空白、丢弃空串并按首次出现顺序去重
func NormalizeTopics(topics []string) []string {
	seen := make(map[string]bool, len(topics))
	result := make([]string, 0, len(topics))
	for _, t := range topics {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		result = append(result, t)
	}
	return result
}

func dedupeIDs(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	result := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		result = append(result, id)
	}
	return result
}

func missingIDs(ids []uint, found map[uint]model.Problem) []uint {
	var missing []uint
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
	return missing
}

func stringsOrEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func uintsOrEmpty(s []uint) []uint {
	if s == nil {
		return []uint{}
	}
	return s
}
