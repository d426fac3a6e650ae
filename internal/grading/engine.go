package grading

import (
	"github.com/mind-engage/classquiz/internal/quiz"
)

// Result is the outcome of grading a single question response.
type Result struct {
	AutoPoints  float64 // points awarded automatically
	MaxPoints   float64 // what the question contributes to the maximum
	NeedsManual bool    // true if teacher review is required
}

// Strategy grades a single question.
type Strategy interface {
	Grade(q quiz.Question, answer quiz.Answer) Result
}

// Summary is the auto-gradable outcome of a whole attempt.
type Summary struct {
	MCQScore              float64 `json:"mcqScore"`
	TheoryMax             float64 `json:"theoryMax"`
	MaxScore              float64 `json:"maxScore"`
	RequiresManualGrading bool    `json:"requiresManualGrading"`
}

// Scorer routes each question to the strategy for its type.
type Scorer struct {
	strategies map[quiz.QuestionType]Strategy
}

func NewScorer() *Scorer {
	return &Scorer{
		strategies: map[quiz.QuestionType]Strategy{
			quiz.TypeMCQ:    mcqStrategy{},
			quiz.TypeTheory: theoryStrategy{},
		},
	}
}

// Score is a pure function of the questions and answers. Missing answer
// slots count as unanswered.
func (s *Scorer) Score(questions []quiz.Question, answers []quiz.Answer) Summary {
	var sum Summary
	for i, q := range questions {
		var a quiz.Answer
		if i < len(answers) {
			a = answers[i]
		}
		st, ok := s.strategies[q.Type]
		if !ok {
			st = theoryStrategy{}
		}
		res := st.Grade(q, a)
		sum.MaxScore += res.MaxPoints
		if res.NeedsManual {
			sum.TheoryMax += res.MaxPoints
			continue
		}
		sum.MCQScore += res.AutoPoints
	}
	sum.RequiresManualGrading = sum.TheoryMax > 0
	return sum
}

// mcqPoints is what every multiple-choice question is worth, whatever its
// marks field says.
const mcqPoints = 1

type mcqStrategy struct{}

func (mcqStrategy) Grade(q quiz.Question, a quiz.Answer) Result {
	res := Result{MaxPoints: mcqPoints}
	if a.Kind == quiz.Choice && a.Option == q.Correct {
		res.AutoPoints = mcqPoints
	}
	return res
}

type theoryStrategy struct{}

func (theoryStrategy) Grade(q quiz.Question, _ quiz.Answer) Result {
	return Result{MaxPoints: float64(q.Marks), NeedsManual: true}
}
