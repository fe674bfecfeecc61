package screens

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/me/cognilearn/pkg/model"
)

// LessonID identifies the built-in lesson in behavior logs.
const LessonID = "lesson_1_math"

// ActionQuizCompleted is the behavior-log action for a correct answer.
const ActionQuizCompleted = "quiz_completed"

// Question is a multiple-choice question.
type Question struct {
	Module  string
	Prompt  string
	Choices []string
	Answer  int // index into Choices
}

// Lesson is the built-in student quiz.
var Lesson = []Question{
	{
		Module:  "Module 1: Basic Math",
		Prompt:  "What is 15 * 6?",
		Choices: []string{"80", "90", "105"},
		Answer:  1,
	},
	{
		Module:  "Module 2: Logic",
		Prompt:  "If a train is traveling at 60 mph, how far will it go in 2 hours?",
		Choices: []string{"90 miles", "120 miles"},
		Answer:  1,
	},
}

// FocusScore is the score reported for a completed question.
func FocusScore(mistakes, retries int) float64 {
	return float64(100 - 5*mistakes - 2*retries)
}

// Quiz tracks attempts on the current question. Counters and the timer
// reset after each correct answer.
type Quiz struct {
	userID   string
	now      func() time.Time
	started  time.Time
	mistakes int
	retries  int
}

// NewQuiz starts a quiz for userID. now may be nil.
func NewQuiz(userID string, now func() time.Time) *Quiz {
	if now == nil {
		now = time.Now
	}
	return &Quiz{userID: userID, now: now, started: now()}
}

// Mistakes returns the mistakes made on the current question.
func (q *Quiz) Mistakes() int { return q.mistakes }

// Answer records choice for question. A wrong answer returns nil; a
// correct one returns the behavior record to post.
func (q *Quiz) Answer(question Question, choice int) *model.BehaviorLog {
	if choice != question.Answer {
		q.mistakes++
		q.retries++
		return nil
	}
	elapsed := q.now().Sub(q.started).Seconds()
	entry := &model.BehaviorLog{
		UserID:        q.userID,
		Action:        ActionQuizCompleted,
		ResponseTime:  elapsed,
		RetryCount:    q.retries,
		Mistakes:      q.mistakes,
		LessonID:      LessonID,
		FocusScore:    FocusScore(q.mistakes, q.retries),
		StudyDuration: elapsed,
	}
	q.started = q.now()
	q.mistakes = 0
	q.retries = 0
	return entry
}

// AskQuestion writes question i of the lesson.
func AskQuestion(w io.Writer, i int) {
	q := Lesson[i]
	fmt.Fprintf(w, "%s (%s question)\n", q.Module, humanize.Ordinal(i+1))
	fmt.Fprintf(w, "%s\n", q.Prompt)
	for n, c := range q.Choices {
		fmt.Fprintf(w, "  %d) %s\n", n+1, c)
	}
}

// LearningNotice returns the text shown instead of the quiz for roles that
// do not take it. It returns "" for students.
func LearningNotice(role model.Role) (string, error) {
	switch role {
	case model.RoleStudent:
		return "", nil
	case model.RoleParent:
		return "Parents view only. You can see your child's progress in reports.", nil
	case model.RoleTeacher:
		return "Teacher panel. Math quiz assigned to your class.", nil
	default:
		return "", roleError(role)
	}
}
