package app

import (
	"bytes"
	"edu_practice_backend/internal/config"
	"edu_practice_backend/pkg/database"
	"edu_practice_backend/pkg/logger"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger.InitNop()

	dir := t.TempDir()
	cfg := &config.Config{
		Server:   config.ServerConfig{Port: "0", Mode: "test"},
		Database: config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(dir, "app.db")},
		JWT:      config.JWTConfig{Secret: "integration-secret", ExpireTime: time.Hour},
		Storage:  config.StorageConfig{Type: "local", LocalPath: filepath.Join(dir, "uploads")},
		CORS:     config.CORSConfig{AllowedOrigins: []string{"*"}},
	}

	db, err := PrepareDatabase(cfg)
	require.NoError(t, err)

	a := New(cfg, db, nil)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return a
}

func (a *App) do(t *testing.T, method, path, token string, body interface{}) (int, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.Router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w.Code, env
}

func (a *App) registerAndLogin(t *testing.T, username, role string) string {
	t.Helper()
	code, _ := a.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"username": username,
		"email":    username + "@example.com",
		"password": "secret123",
		"role":     role,
	})
	require.Equal(t, http.StatusCreated, code)

	code, env := a.do(t, http.MethodPost, "/api/auth/login", "", gin.H{
		"username": username,
		"password": "secret123",
		"role":     role,
	})
	require.Equal(t, http.StatusOK, code)

	var result struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &result))
	require.NotEmpty(t, result.Token)
	return result.Token
}

func (a *App) createProblem(t *testing.T, token, answer string, topics ...string) uint {
	t.Helper()
	code, env := a.do(t, http.MethodPost, "/api/problems", token, gin.H{
		"title":          "题目 " + answer,
		"content":        "选出正确答案",
		"type":           "multiple_choice",
		"difficulty":     2,
		"topics":         topics,
		"options":        []string{"A", "B", "C"},
		"correct_answer": answer,
	})
	require.Equal(t, http.StatusCreated, code, env.Message)

	var created struct {
		ID uint `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	return created.ID
}

func TestHealthIsPublic(t *testing.T) {
	a := newTestApp(t)

	code, env := a.do(t, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"database":"up"`)
	assert.Contains(t, string(env.Data), `"redis":"disabled"`)
}

func TestRoutesRequireToken(t *testing.T) {
	a := newTestApp(t)

	code, _ := a.do(t, http.MethodGet, "/api/problems", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = a.do(t, http.MethodGet, "/api/tests", "bogus", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestLoginRejectsWrongRole(t *testing.T) {
	a := newTestApp(t)
	a.registerAndLogin(t, "alice", "student")

	code, _ := a.do(t, http.MethodPost, "/api/auth/login", "", gin.H{
		"username": "alice",
		"password": "secret123",
		"role":     "teacher",
	})
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestTeacherOnlyRoutes(t *testing.T) {
	a := newTestApp(t)
	student := a.registerAndLogin(t, "bob", "student")

	code, _ := a.do(t, http.MethodPost, "/api/problems", student, gin.H{"title": "x"})
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = a.do(t, http.MethodPost, "/api/tests/statistics/refresh-all", student, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = a.do(t, http.MethodGet, "/api/tests/1/statistics", student, nil)
	assert.Equal(t, http.StatusForbidden, code)
}

func TestProblemListHidesAnswersFromStudents(t *testing.T) {
	a := newTestApp(t)
	teacher := a.registerAndLogin(t, "carol", "teacher")
	student := a.registerAndLogin(t, "dave", "student")
	a.createProblem(t, teacher, "B", "数组")

	code, env := a.do(t, http.MethodGet, "/api/problems", student, nil)
	require.Equal(t, http.StatusOK, code)
	var studentView []map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &studentView))
	require.Len(t, studentView, 1)
	assert.NotContains(t, studentView[0], "correct_answer")
	assert.NotContains(t, studentView[0], "explanation")
	assert.Equal(t, "not_attempted", studentView[0]["status"])

	code, env = a.do(t, http.MethodGet, "/api/problems", teacher, nil)
	require.Equal(t, http.StatusOK, code)
	var teacherView []map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &teacherView))
	require.Len(t, teacherView, 1)
	assert.Equal(t, "B", teacherView[0]["correct_answer"])
}

func TestSubmitTestThenRefreshStatistics(t *testing.T) {
	a := newTestApp(t)
	teacher := a.registerAndLogin(t, "erin", "teacher")
	student := a.registerAndLogin(t, "frank", "student")

	p1 := a.createProblem(t, teacher, "A", "循环")
	p2 := a.createProblem(t, teacher, "B", "递归")

	code, env := a.do(t, http.MethodPost, "/api/tests", teacher, gin.H{
		"title":          "单元测验",
		"type":           "formal",
		"difficulty":     2,
		"deadline":       time.Now().Add(72 * time.Hour).Format(time.RFC3339),
		"estimated_time": 30,
		"questions":      []gin.H{{"problem_id": p1}, {"problem_id": p2}},
	})
	require.Equal(t, http.StatusCreated, code, env.Message)
	var created struct {
		ID uint `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))

	// 刷新前没有提交记录
	code, _ = a.do(t, http.MethodPost, fmt.Sprintf("/api/tests/%d/statistics/refresh", created.ID), teacher, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, env = a.do(t, http.MethodPost, fmt.Sprintf("/api/tests/%d/submit", created.ID), student, gin.H{
		"answers":  map[string]string{fmt.Sprint(p1): "A", fmt.Sprint(p2): "C"},
		"duration": 600,
	})
	require.Equal(t, http.StatusOK, code, env.Message)
	var submitted struct {
		Score float64 `json:"score"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &submitted))
	assert.Equal(t, 50.0, submitted.Score)

	code, env = a.do(t, http.MethodPost, fmt.Sprintf("/api/tests/%d/statistics/refresh", created.ID), teacher, nil)
	require.Equal(t, http.StatusOK, code, env.Message)
	var stats struct {
		CompletedCount    int            `json:"completed_count"`
		AverageScore      float64        `json:"average_score"`
		ScoreDistribution map[string]int `json:"score_distribution"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, 1, stats.CompletedCount)
	assert.Equal(t, 50.0, stats.AverageScore)
	assert.Equal(t, 1, stats.ScoreDistribution["0-59"])

	code, env = a.do(t, http.MethodGet, "/api/tests/completed", student, nil)
	require.Equal(t, http.StatusOK, code)
	var completed []map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &completed))
	assert.Len(t, completed, 1)
}

func TestSeedDuringPrepare(t *testing.T) {
	logger.InitNop()
	dir := t.TempDir()
	cfg := &config.Config{
		Server:   config.ServerConfig{Mode: "test"},
		Database: config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(dir, "seed.db"), SeedFile: filepath.Join("..", "..", "configs", "seed.yaml")},
		Seed:     true,
	}

	db, err := PrepareDatabase(cfg)
	require.NoError(t, err)
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}()

	data, err := database.LoadSeedFile(cfg.Database.SeedFile)
	require.NoError(t, err)

	var users int64
	require.NoError(t, db.Table("users").Count(&users).Error)
	assert.Equal(t, int64(len(data.Users)), users)
}
