package database

import (
	"edu_practice_backend/internal/config"
	"edu_practice_backend/internal/model"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seedYAML = `
users:
  - username: teacher1
    email: teacher1@example.com
    password: secret123
    role: teacher
    subject: math
  - username: student1
    email: student1@example.com
    password: secret123
    role: student
    class: "3-2"
problems:
  - title: Add
    content: 1+1=?
    type: multiple_choice
    difficulty: 1
    topics: [arithmetic]
    options: ["1", "2"]
    correct_answer: "2"
  - title: Fill
    content: 2*3=__
    type: fill_blank
    difficulty: 2
    topics: [arithmetic, multiplication]
    options: ["ignored"]
    correct_answer: "6"
tests:
  - title: Quiz
    type: practice
    difficulty: 1
    estimated_time: 10
    deadline_days: 7
    created_by: teacher1
    problems: [2, 1]
`

func TestDialectorRejectsUnknownDriver(t *testing.T) {
	_, err := Dialector(&config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}

func TestSeedIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	db, err := InitDB(&config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(dir, "seed.db")}, false)
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	seedFile := filepath.Join(dir, "seed.yaml")
	require.NoError(t, os.WriteFile(seedFile, []byte(seedYAML), 0644))
	data, err := LoadSeedFile(seedFile)
	require.NoError(t, err)

	require.NoError(t, Seed(db, data))
	require.NoError(t, Seed(db, data))

	var users, problems, tests, questions, profiles int64
	db.Model(&model.User{}).Count(&users)
	db.Model(&model.Problem{}).Count(&problems)
	db.Model(&model.Test{}).Count(&tests)
	db.Model(&model.TestQuestion{}).Count(&questions)
	db.Model(&model.StudentProfile{}).Count(&profiles)
	assert.EqualValues(t, 2, users)
	assert.EqualValues(t, 2, problems)
	assert.EqualValues(t, 1, tests)
	assert.EqualValues(t, 2, questions)
	assert.EqualValues(t, 1, profiles)

	var fill model.Problem
	require.NoError(t, db.Where("title = ?", "Fill").First(&fill).Error)
	assert.Empty(t, fill.Options)

	var first model.TestQuestion
	require.NoError(t, db.Where("sort_order = ?", 1).First(&first).Error)
	assert.Equal(t, fill.ID, first.ProblemID)

	var test model.Test
	require.NoError(t, db.First(&test).Error)
	assert.Equal(t, []string{"arithmetic", "multiplication"}, []string(test.Topics))
	require.NotNil(t, test.CreatedBy)
}
