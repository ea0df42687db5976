package service

import (
	"edu_practice_backend/internal/model"
	"edu_practice_backend/internal/util"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTestRecordsQuestionOrder(t *testing.T) {
	f := newFixture(t)
	teacher := f.user(t, "tea", model.Teacher)
	p1 := f.problem(t, "A", 1, "sets")
	p2 := f.problem(t, "B", 2, "logic", "sets")
	p3 := f.problem(t, "C", 3, "graphs")

	test := f.createTest(t, teacher.ID, p3, p1, p2)
	assert.Equal(t, 3, test.TotalQuestions)
	assert.Equal(t, []string{"graphs", "sets", "logic"}, []string(test.Topics))

	detail, err := f.testService().GetTestDetail(f.ctx, test.ID)
	require.NoError(t, err)
	require.Len(t, detail.Problems, 3)
	assert.Equal(t, []uint{p3.ID, p1.ID, p2.ID},
		[]uint{detail.Problems[0].ID, detail.Problems[1].ID, detail.Problems[2].ID})
	assert.Equal(t, []int{1, 2, 3},
		[]int{detail.Problems[0].Order, detail.Problems[1].Order, detail.Problems[2].Order})
}

func TestCreateTestRejectsMissingProblems(t *testing.T) {
	f := newFixture(t)
	teacher := f.user(t, "tea", model.Teacher)
	p := f.problem(t, "A", 1)
	deadline := time.Now().Add(time.Hour)

	_, err := f.testService().CreateTest(f.ctx, teacher.ID, CreateTestRequest{
		Title:         "Broken",
		Type:          model.FormalTest,
		Difficulty:    3,
		Deadline:      &deadline,
		EstimatedTime: 10,
		Questions:     []TestQuestionInput{{ProblemID: p.ID}, {ProblemID: 404}},
	})
	require.True(t, util.IsValidationError(err))
	assert.Contains(t, err.Error(), "404")

	var tests, questions int64
	f.db.Model(&model.Test{}).Count(&tests)
	f.db.Model(&model.TestQuestion{}).Count(&questions)
	assert.Zero(t, tests)
	assert.Zero(t, questions)
}

func TestCreateTestValidation(t *testing.T) {
	f := newFixture(t)
	teacher := f.user(t, "tea", model.Teacher)
	p := f.problem(t, "A", 1)
	deadline := time.Now().Add(time.Hour)
	valid := CreateTestRequest{
		Title:         "T",
		Type:          model.PracticeTest,
		Difficulty:    1,
		Deadline:      &deadline,
		EstimatedTime: 5,
		Questions:     []TestQuestionInput{{ProblemID: p.ID}},
	}

	cases := map[string]func(r *CreateTestRequest){
		"no title":       func(r *CreateTestRequest) { r.Title = " " },
		"bad type":       func(r *CreateTestRequest) { r.Type = "quiz" },
		"difficulty":     func(r *CreateTestRequest) { r.Difficulty = 9 },
		"no deadline":    func(r *CreateTestRequest) { r.Deadline = nil },
		"estimated time": func(r *CreateTestRequest) { r.EstimatedTime = 0 },
		"no questions":   func(r *CreateTestRequest) { r.Questions = nil },
		"duplicate":      func(r *CreateTestRequest) { r.Questions = append(r.Questions, TestQuestionInput{ProblemID: p.ID}) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := valid
			req.Questions = append([]TestQuestionInput(nil), valid.Questions...)
			mutate(&req)
			_, err := f.testService().CreateTest(f.ctx, teacher.ID, req)
			assert.True(t, util.IsValidationError(err), "got %v", err)
		})
	}
}

func TestSubmitTestScoreRounding(t *testing.T) {
	f := newFixture(t)
	teacher := f.user(t, "tea", model.Teacher)
	student := f.user(t, "stu", model.Student)

	var ten []*model.Problem
	for i := 0; i < 10; i++ {
		ten = append(ten, f.problem(t, "ok", 1))
	}
	test := f.createTest(t, teacher.ID, ten...)

	answers := map[uint]string{}
	for _, p := range ten[:7] {
		answers[p.ID] = "ok"
	}
	res, err := f.testService().SubmitTest(f.ctx, student.ID, test.ID, SubmitTestRequest{Answers: answers, Duration: 300})
	require.NoError(t, err)
	assert.Equal(t, 70.0, res.Score)
	assert.Equal(t, 7, res.CorrectCount)
	assert.Equal(t, 10, res.TotalQuestions)

	three := []*model.Problem{f.problem(t, "x", 1), f.problem(t, "y", 1), f.problem(t, "z", 1)}
	test3 := f.createTest(t, teacher.ID, three...)
	res, err = f.testService().SubmitTest(f.ctx, student.ID, test3.ID, SubmitTestRequest{
		Answers: map[uint]string{three[0].ID: "x", three[1].ID: "wrong"},
	})
	require.NoError(t, err)
	assert.Equal(t, 33.3, res.Score)
}

func TestSubmitTestAppendsAndResultUsesLatest(t *testing.T) {
	f := newFixture(t)
	teacher := f.user(t, "tea", model.Teacher)
	student := f.user(t, "stu", model.Student)
	p1 := f.problem(t, "A", 1, "sets")
	p2 := f.problem(t, "B", 1, "logic")
	test := f.createTest(t, teacher.ID, p1, p2)

	svc := f.testService()
	first := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	svc.Now = func() time.Time { return first }
	_, err := svc.SubmitTest(f.ctx, student.ID, test.ID, SubmitTestRequest{
		Answers: map[uint]string{p1.ID: "A", p2.ID: "B"},
	})
	require.NoError(t, err)

	svc.Now = func() time.Time { return first.Add(time.Hour) }
	_, err = svc.SubmitTest(f.ctx, student.ID, test.ID, SubmitTestRequest{
		Answers:   map[uint]string{p1.ID: "A"},
		TimeSpent: map[uint]int{p1.ID: 45},
	})
	require.NoError(t, err)

	var count int64
	f.db.Model(&model.TestSubmission{}).Count(&count)
	assert.EqualValues(t, 2, count)

	result, err := svc.GetTestResult(f.ctx, student.ID, test.ID)
	require.NoError(t, err)
	assert.Equal(t, 50.0, result.Score)
	require.Len(t, result.Questions, 2)
	assert.True(t, result.Questions[0].IsCorrect)
	assert.Equal(t, 45, result.Questions[0].TimeSpent)
	assert.Equal(t, "B", result.Questions[1].CorrectAnswer)
	assert.Equal(t, "", result.Questions[1].UserAnswer)
	assert.False(t, result.Questions[1].IsCorrect)
	assert.Equal(t, []string{"logic"}, result.WeakTopics)
	assert.Equal(t, []TopicMastery{
		{Topic: "sets", Correct: 1, Total: 1, Mastery: 100},
		{Topic: "logic", Correct: 0, Total: 1, Mastery: 0},
	}, result.TopicMastery)
}

func TestGetTestResultWithoutSubmission(t *testing.T) {
	f := newFixture(t)
	teacher := f.user(t, "tea", model.Teacher)
	student := f.user(t, "stu", model.Student)
	test := f.createTest(t, teacher.ID, f.problem(t, "A", 1))

	_, err := f.testService().GetTestResult(f.ctx, student.ID, test.ID)
	assert.ErrorIs(t, err, util.ErrSubmissionNotFound)

	_, err = f.testService().GetTestResult(f.ctx, student.ID, 999)
	assert.ErrorIs(t, err, util.ErrTestNotFound)
}

func TestWeakTopicBoundary(t *testing.T) {
	assert.False(t, IsWeakTopic(3, 5), "60% is not weak")
	assert.True(t, IsWeakTopic(5999, 10000), "59.99% is weak")
	assert.False(t, IsWeakTopic(6, 10))
	assert.True(t, IsWeakTopic(0, 1))
	assert.False(t, IsWeakTopic(0, 0))
}

func TestListTestsByRole(t *testing.T) {
	f := newFixture(t)
	t1 := f.user(t, "tea1", model.Teacher)
	t2 := f.user(t, "tea2", model.Teacher)
	student := f.user(t, "stu", model.Student)
	p := f.problem(t, "A", 1)
	own := f.createTest(t, t1.ID, p)
	f.createTest(t, t2.ID, p)

	svc := f.testService()
	teacherView, err := svc.ListTests(f.ctx, model.Teacher, t1.ID)
	require.NoError(t, err)
	require.Len(t, teacherView, 1)
	assert.Equal(t, own.ID, teacherView[0].ID)
	assert.Nil(t, teacherView[0].Completed)

	_, err = svc.SubmitTest(f.ctx, student.ID, own.ID, SubmitTestRequest{Answers: map[uint]string{p.ID: "A"}})
	require.NoError(t, err)

	studentView, err := svc.ListTests(f.ctx, model.Student, student.ID)
	require.NoError(t, err)
	require.Len(t, studentView, 2)
	for _, ts := range studentView {
		require.NotNil(t, ts.Completed)
		assert.Equal(t, ts.ID == own.ID, *ts.Completed)
	}

	completed, err := svc.ListCompleted(f.ctx, student.ID)
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, own.ID, completed[0].TestID)
	assert.Equal(t, 100.0, completed[0].Score)
}

func TestCreateTestRollsBackWhenQuestionsFail(t *testing.T) {
	f := newFixture(t)
	teacher := f.user(t, "tea", model.Teacher)
	p := f.problem(t, "A", 1)
	deadline := time.Now().Add(time.Hour)

	f.failCreates(t, "test_questions", nil)
	_, err := f.testService().CreateTest(f.ctx, teacher.ID, CreateTestRequest{
		Title:         "Half written",
		Type:          model.PracticeTest,
		Difficulty:    1,
		Deadline:      &deadline,
		EstimatedTime: 10,
		Questions:     []TestQuestionInput{{ProblemID: p.ID}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errInjected)

	var tests int64
	f.db.Model(&model.Test{}).Count(&tests)
	assert.Zero(t, tests)
}

func TestListCompletedKeepsLatestPerTest(t *testing.T) {
	f := newFixture(t)
	teacher := f.user(t, "tea", model.Teacher)
	student := f.user(t, "stu", model.Student)
	p := f.problem(t, "A", 1)
	first := f.createTest(t, teacher.ID, p)
	second := f.createTest(t, teacher.ID, p)
	f.createTest(t, teacher.ID, p)
	svc := f.testService()

	for _, step := range []struct {
		testID uint
		answer string
	}{
		{first.ID, "B"},
		{second.ID, "B"},
		{first.ID, "A"},
	} {
		_, err := svc.SubmitTest(f.ctx, student.ID, step.testID, SubmitTestRequest{Answers: map[uint]string{p.ID: step.answer}})
		require.NoError(t, err)
	}

	completed, err := svc.ListCompleted(f.ctx, student.ID)
	require.NoError(t, err)
	require.Len(t, completed, 2)
	scores := make(map[uint]float64)
	for _, c := range completed {
		scores[c.TestID] = c.Score
		assert.Equal(t, "Unit test", c.Title)
	}
	assert.Equal(t, map[uint]float64{first.ID: 100, second.ID: 0}, scores)

	found, err := f.tests.FindTestsByIDs(f.ctx, []uint{first.ID, 404})
	require.NoError(t, err)
	assert.Len(t, found, 1)
	assert.Contains(t, found, first.ID)
}
