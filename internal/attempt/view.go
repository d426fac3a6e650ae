package attempt

import "github.com/mind-engage/classquiz/internal/quiz"

// QuestionView is a question as shown to the student: no answer key.
type QuestionView struct {
	Type     quiz.QuestionType `json:"type"`
	Text     string            `json:"text"`
	ImageRef string            `json:"imageRef,omitempty"`
	Marks    int               `json:"marks"`
	Options  []string          `json:"options,omitempty"`
	TimerSec *int              `json:"timerSec,omitempty"`
}

// View is what the rendering layer needs to draw the current question.
type View struct {
	Ref       quiz.AttemptRef `json:"attempt"`
	Title     string          `json:"title"`
	Status    Status          `json:"status"`
	Index     int             `json:"index"`
	Total     int             `json:"total"`
	Question  QuestionView    `json:"question"`
	Answer    quiz.Answer     `json:"answer"`
	Locked    bool            `json:"locked"`
	Remaining *int            `json:"remainingSeconds"`
	CanPrev   bool            `json:"canPrev"`
	CanNext   bool            `json:"canNext"`
	Answered  int             `json:"answered"`
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.st.CurrentIndex
	q := s.set.Questions[i]
	v := View{
		Ref:    s.ref,
		Title:  s.set.Label(),
		Status: s.status,
		Index:  i,
		Total:  len(s.set.Questions),
		Question: QuestionView{
			Type:     q.Type,
			Text:     q.Text,
			ImageRef: q.ImageRef,
			Marks:    q.Marks,
			Options:  append([]string(nil), q.Options...),
			TimerSec: q.TimerSec,
		},
		Answer:  s.st.Answers[i],
		Locked:  s.st.Locked[i],
		CanPrev: i > 0,
		CanNext: i < len(s.set.Questions)-1,
	}
	if r := s.st.Remaining[i]; r != nil {
		secs := *r
		v.Remaining = &secs
	}
	for _, a := range s.st.Answers {
		if a.Answered() {
			v.Answered++
		}
	}
	return v
}
