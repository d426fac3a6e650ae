package quiz

import (
	"fmt"
	"time"
)

type QuestionType string

const (
	TypeMCQ    QuestionType = "mcq"
	TypeTheory QuestionType = "theory"
)

// MCQOptions is the fixed number of choices on a multiple-choice question.
const MCQOptions = 4

type Question struct {
	Type     QuestionType `json:"type" validate:"required,oneof=mcq theory"`
	Text     string       `json:"text" validate:"required"`
	ImageRef string       `json:"imageRef,omitempty"` // opaque reference into external file storage
	TimerSec *int         `json:"timerSec,omitempty" validate:"omitempty,gt=0"`
	Marks    int          `json:"marks" validate:"gt=0"`

	// MCQ only
	Options []string `json:"options,omitempty"`
	Correct int      `json:"correct,omitempty"` // 1-based
}

// Timed reports whether the question carries a countdown.
func (q Question) Timed() bool { return q.TimerSec != nil && *q.TimerSec > 0 }

type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
)

// QuestionSet is one quiz as authored by a teacher for a class/semester cohort.
type QuestionSet struct {
	ClassKey    string     `json:"classKey" validate:"required"`
	SemesterKey string     `json:"semesterKey" validate:"required"`
	QuizNumber  int        `json:"quizNumber" validate:"gt=0"`
	Title       string     `json:"title,omitempty"`
	TeacherUID  string     `json:"teacherUid,omitempty"`
	Status      Status     `json:"status" validate:"omitempty,oneof=draft published"`
	Archived    bool       `json:"archived"`
	ArchivedAt  *time.Time `json:"archivedAt,omitempty"`
	RestoredAt  *time.Time `json:"restoredAt,omitempty"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	Questions   []Question `json:"questions" validate:"required,min=1,dive"`
}

func (s QuestionSet) Key() string { return QuizKey(s.ClassKey, s.SemesterKey, s.QuizNumber) }

// Label is the title, or "Quiz N" when none was given.
func (s QuestionSet) Label() string {
	if s.Title != "" {
		return s.Title
	}
	return fmt.Sprintf("Quiz %d", s.QuizNumber)
}

// Available reports whether students may start the quiz.
func (s QuestionSet) Available() bool {
	return s.Status == StatusPublished && !s.Archived && len(s.Questions) > 0
}

// Clone returns a deep copy, used as the grading basis of an attempt.
func (s QuestionSet) Clone() QuestionSet {
	out := s
	out.Questions = CloneQuestions(s.Questions)
	return out
}

func CloneQuestions(qs []Question) []Question {
	out := make([]Question, len(qs))
	for i, q := range qs {
		if q.TimerSec != nil {
			v := *q.TimerSec
			q.TimerSec = &v
		}
		if q.Options != nil {
			q.Options = append([]string(nil), q.Options...)
		}
		out[i] = q
	}
	return out
}

// AttemptRef identifies one student's attempt at one quiz.
type AttemptRef struct {
	ClassKey    string `json:"classKey"`
	SemesterKey string `json:"semesterKey"`
	QuizNumber  int    `json:"quizNumber"`
	Roll        string `json:"roll"`
}

func (r AttemptRef) Key() string {
	return AttemptKey(r.ClassKey, r.SemesterKey, r.QuizNumber, r.Roll)
}

func (r AttemptRef) QuizKey() string { return QuizKey(r.ClassKey, r.SemesterKey, r.QuizNumber) }

func QuizKey(classKey, semesterKey string, quizNumber int) string {
	return fmt.Sprintf("%s_%s_quiz_%d", classKey, semesterKey, quizNumber)
}

func AttemptKey(classKey, semesterKey string, quizNumber int, roll string) string {
	return fmt.Sprintf("%s_%s_quiz_%d_roll_%s", classKey, semesterKey, quizNumber, roll)
}

// AttemptRecord is the permanent result of a submitted attempt.
// Only TheoryScore, TheoryMax, TotalScore, Graded and the grading metadata
// change after submission.
type AttemptRecord struct {
	ClassKey    string `json:"classKey"`
	SemesterKey string `json:"semesterKey"`
	QuizNumber  int    `json:"quizNumber"`
	Roll        string `json:"roll"`
	Name        string `json:"name,omitempty"`
	StudentUID  string `json:"studentUid,omitempty"`
	TeacherUID  string `json:"teacherUid,omitempty"`

	Answers           []Answer   `json:"answers"`
	QuestionsSnapshot []Question `json:"questionsSnapshot"`

	MCQScore    float64 `json:"mcqScore"`
	TheoryScore float64 `json:"theoryScore"`
	TotalScore  float64 `json:"totalScore"`
	MaxScore    float64 `json:"maxScore"`
	TheoryMax   float64 `json:"theoryMax"`
	Graded      bool    `json:"graded"`

	SubmittedAt time.Time  `json:"submittedAt"`
	GradedAt    *time.Time `json:"gradedAt,omitempty"`
	GradedBy    string     `json:"gradedBy,omitempty"`
}

func (r AttemptRecord) Ref() AttemptRef {
	return AttemptRef{ClassKey: r.ClassKey, SemesterKey: r.SemesterKey, QuizNumber: r.QuizNumber, Roll: r.Roll}
}

func (r AttemptRecord) Key() string { return r.Ref().Key() }
