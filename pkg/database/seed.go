package database

import (
	"edu_practice_backend/internal/model"
	"edu_practice_backend/pkg/logger"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

type SeedUser struct {
	Username string `yaml:"username"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
	Nickname string `yaml:"nickname"`
	School   string `yaml:"school"`
	Class    string `yaml:"class"`
	Subject  string `yaml:"subject"`
	Title    string `yaml:"title"`
}

type SeedProblem struct {
	Title         string   `yaml:"title"`
	Content       string   `yaml:"content"`
	Type          string   `yaml:"type"`
	Difficulty    int      `yaml:"difficulty"`
	Topics        []string `yaml:"topics"`
	Options       []string `yaml:"options"`
	CorrectAnswer string   `yaml:"correct_answer"`
	Explanation   string   `yaml:"explanation"`
}

type SeedTest struct {
	Title         string `yaml:"title"`
	Description   string `yaml:"description"`
	Type          string `yaml:"type"`
	Difficulty    int    `yaml:"difficulty"`
	EstimatedTime int    `yaml:"estimated_time"`
	DeadlineDays  int    `yaml:"deadline_days"`
	CreatedBy     string `yaml:"created_by"`
	// 引用 problems 列表中的位置，从 1 开始
	Problems []int `yaml:"problems"`
}

type SeedData struct {
	Users    []SeedUser    `yaml:"users"`
	Problems []SeedProblem `yaml:"problems"`
	Tests    []SeedTest    `yaml:"tests"`
}

func LoadSeedFile(path string) (*SeedData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var data SeedData
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	return &data, nil
}

// Seed 写入初始数据：已存在的用户名跳过，题库与测试仅在表为空时写入
func Seed(db *gorm.DB, data *SeedData) error {
	return db.Transaction(func(tx *gorm.DB) error {
		users, err := seedUsers(tx, data.Users)
		if err != nil {
			return err
		}

		var problemCount int64
		if err := tx.Model(&model.Problem{}).Count(&problemCount).Error; err != nil {
			return err
		}
		if problemCount > 0 {
			logger.Log.Info("Problems already present, skipping problem and test seeds")
			return nil
		}

		problems := make([]model.Problem, 0, len(data.Problems))
		for _, sp := range data.Problems {
			p := model.Problem{
				Title:         sp.Title,
				Content:       sp.Content,
				Type:          model.ProblemType(sp.Type),
				Difficulty:    sp.Difficulty,
				Topics:        sp.Topics,
				CorrectAnswer: sp.CorrectAnswer,
				Explanation:   sp.Explanation,
			}
			if !p.Type.Valid() {
				return fmt.Errorf("seed problem %q: invalid type %q", sp.Title, sp.Type)
			}
			if p.Type.HasOptions() {
				p.Options = sp.Options
			}
			if err := tx.Create(&p).Error; err != nil {
				return err
			}
			problems = append(problems, p)
		}

		for _, st := range data.Tests {
			if err := seedTest(tx, st, problems, users); err != nil {
				return err
			}
		}

		logger.Log.Info("Seed data loaded",
			zap.Int("users", len(users)),
			zap.Int("problems", len(problems)),
			zap.Int("tests", len(data.Tests)))
		return nil
	})
}

func seedUsers(tx *gorm.DB, seeds []SeedUser) (map[string]uint, error) {
	ids := make(map[string]uint, len(seeds))
	for _, su := range seeds {
		var existing model.User
		err := tx.Where("username = ?", su.Username).First(&existing).Error
		if err == nil {
			ids[su.Username] = existing.ID
			continue
		}
		if err != gorm.ErrRecordNotFound {
			return nil, err
		}

		role := model.UserRole(su.Role)
		if !role.Valid() {
			return nil, fmt.Errorf("seed user %q: invalid role %q", su.Username, su.Role)
		}
		hashed, err := bcrypt.GenerateFromPassword([]byte(su.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		user := model.User{
			Username:     su.Username,
			Email:        su.Email,
			PasswordHash: string(hashed),
			Role:         role,
			Nickname:     su.Nickname,
			School:       su.School,
		}
		if err := tx.Create(&user).Error; err != nil {
			return nil, err
		}

		switch role {
		case model.Student:
			err = tx.Create(&model.StudentProfile{UserID: user.ID, ClassName: su.Class}).Error
		case model.Teacher:
			err = tx.Create(&model.TeacherProfile{UserID: user.ID, Subject: su.Subject, Title: su.Title}).Error
		}
		if err != nil {
			return nil, err
		}
		ids[su.Username] = user.ID
	}
	return ids, nil
}

func seedTest(tx *gorm.DB, st SeedTest, problems []model.Problem, users map[string]uint) error {
	ids := make([]uint, 0, len(st.Problems))
	seen := make(map[string]bool)
	var topics []string
	for _, idx := range st.Problems {
		if idx < 1 || idx > len(problems) {
			return fmt.Errorf("seed test %q: problem index %d out of range", st.Title, idx)
		}
		p := problems[idx-1]
		ids = append(ids, p.ID)
		for _, t := range p.Topics {
			if !seen[t] {
				seen[t] = true
				topics = append(topics, t)
			}
		}
	}

	test := model.Test{
		Title:          st.Title,
		Description:    st.Description,
		Type:           model.TestType(st.Type),
		ProblemIDs:     ids,
		TotalQuestions: len(ids),
		EstimatedTime:  st.EstimatedTime,
		Topics:         topics,
		Difficulty:     st.Difficulty,
	}
	if st.DeadlineDays > 0 {
		deadline := time.Now().AddDate(0, 0, st.DeadlineDays)
		test.Deadline = &deadline
	}
	if id, ok := users[st.CreatedBy]; ok {
		test.CreatedBy = &id
	}
	if err := tx.Create(&test).Error; err != nil {
		return err
	}

	questions := make([]model.TestQuestion, 0, len(ids))
	for i, pid := range ids {
		questions = append(questions, model.TestQuestion{TestID: test.ID, ProblemID: pid, Order: i + 1})
	}
	if len(questions) == 0 {
		return nil
	}
	return tx.Create(&questions).Error
}
