package results

import (
	"math"

	"github.com/mind-engage/classquiz/internal/quiz"
)

// QuestionStat is how a class did on one MCQ question of a quiz.
type QuestionStat struct {
	Index   int     `json:"index"`
	Text    string  `json:"text"`
	Correct int     `json:"correct"`
	Total   int     `json:"total"`
	Rate    float64 `json:"rate"` // percent, one decimal
}

// QuestionStats counts correct answers per MCQ question across attempts of
// the same quiz. Question order comes from the first attempt carrying a
// snapshot; each attempt is scored against its own snapshot.
func QuestionStats(recs []quiz.AttemptRecord) []QuestionStat {
	var questions []quiz.Question
	for _, r := range recs {
		if len(r.QuestionsSnapshot) > 0 {
			questions = r.QuestionsSnapshot
			break
		}
	}
	if questions == nil {
		return nil
	}

	total := make([]int, len(questions))
	correct := make([]int, len(questions))
	for _, r := range recs {
		for i, q := range r.QuestionsSnapshot {
			if i >= len(questions) || q.Type != quiz.TypeMCQ {
				continue
			}
			total[i]++
			if i < len(r.Answers) && r.Answers[i].Kind == quiz.Choice && r.Answers[i].Option == q.Correct {
				correct[i]++
			}
		}
	}

	out := make([]QuestionStat, 0, len(questions))
	for i, q := range questions {
		if q.Type != quiz.TypeMCQ {
			continue
		}
		st := QuestionStat{Index: i, Text: q.Text, Correct: correct[i], Total: total[i]}
		if st.Total > 0 {
			st.Rate = math.Round(float64(st.Correct)*1000/float64(st.Total)) / 10
		}
		out = append(out, st)
	}
	return out
}
