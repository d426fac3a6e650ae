package results

import "github.com/mind-engage/classquiz/internal/quiz"

// ReviewItem is one question of a submitted attempt with the student's answer.
type ReviewItem struct {
	Index    int               `json:"index"`
	Type     quiz.QuestionType `json:"type"`
	Text     string            `json:"text"`
	ImageRef string            `json:"imageRef,omitempty"`
	Marks    int               `json:"marks"`
	Answered bool              `json:"answered"`
	Response string            `json:"response,omitempty"`

	// MCQ only.
	Chosen      int    `json:"chosen,omitempty"`
	CorrectText string `json:"correctText,omitempty"`
	IsCorrect   *bool  `json:"isCorrect,omitempty"`
}

// Review is the read-only view of a submitted attempt.
type Review struct {
	AttemptKey  string       `json:"attemptKey"`
	QuizNumber  int          `json:"quizNumber"`
	Roll        string       `json:"roll"`
	Name        string       `json:"name,omitempty"`
	MCQScore    float64      `json:"mcqScore"`
	TheoryScore float64      `json:"theoryScore"`
	TotalScore  float64      `json:"totalScore"`
	MaxScore    float64      `json:"maxScore"`
	Graded      bool         `json:"graded"`
	Items       []ReviewItem `json:"items"`
}

// BuildReview pairs each question of the attempt's snapshot with its answer.
// Records only exist after submission, so the answer key is included.
func BuildReview(rec quiz.AttemptRecord) Review {
	rv := Review{
		AttemptKey:  rec.Key(),
		QuizNumber:  rec.QuizNumber,
		Roll:        rec.Roll,
		Name:        rec.Name,
		MCQScore:    rec.MCQScore,
		TheoryScore: rec.TheoryScore,
		TotalScore:  rec.TotalScore,
		MaxScore:    rec.MaxScore,
		Graded:      rec.Graded,
		Items:       make([]ReviewItem, 0, len(rec.QuestionsSnapshot)),
	}
	for i, q := range rec.QuestionsSnapshot {
		var a quiz.Answer
		if i < len(rec.Answers) {
			a = rec.Answers[i]
		}
		item := ReviewItem{
			Index:    i,
			Type:     q.Type,
			Text:     q.Text,
			ImageRef: q.ImageRef,
			Marks:    q.Marks,
			Answered: a.Answered(),
		}
		switch q.Type {
		case quiz.TypeMCQ:
			item.CorrectText = optionText(q, q.Correct)
			ok := a.Kind == quiz.Choice && a.Option == q.Correct
			item.IsCorrect = &ok
			if a.Kind == quiz.Choice {
				item.Chosen = a.Option
				item.Response = optionText(q, a.Option)
			}
		default:
			if a.Kind == quiz.Text {
				item.Response = a.Text
			}
		}
		rv.Items = append(rv.Items, item)
	}
	return rv
}

func optionText(q quiz.Question, option int) string {
	if option < 1 || option > len(q.Options) {
		return ""
	}
	return q.Options[option-1]
}
