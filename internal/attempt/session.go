package attempt

import (
	"errors"
	"sync"

	"github.com/mind-engage/classquiz/internal/quiz"
)

// Operations rejected by a session leave its state untouched.
var (
	ErrSubmitted       = errors.New("attempt already submitted")
	ErrLocked          = errors.New("question is locked")
	ErrAlreadyAnswered = errors.New("question already answered")
	ErrWrongType       = errors.New("operation does not match question type")
	ErrOptionRange     = errors.New("option out of range")
	ErrOutOfRange      = errors.New("no question in that direction")
	ErrDirection       = errors.New("direction must be -1 or 1")
)

type Status string

const (
	StatusInProgress Status = "IN_PROGRESS"
	StatusSubmitted  Status = "SUBMITTED"
)

// State is the mutable, resumable part of an attempt.
type State struct {
	Answers      []quiz.Answer `json:"answers"`
	Locked       []bool        `json:"lockedQuestions"`
	Remaining    []*int        `json:"remainingTime"`
	CurrentIndex int           `json:"currentIndex"`
}

// FreshState is the initial state for questions: nothing answered or locked,
// countdowns seeded from each question's timer.
func FreshState(questions []quiz.Question) State {
	st := State{
		Answers:   quiz.Blank(len(questions)),
		Locked:    make([]bool, len(questions)),
		Remaining: make([]*int, len(questions)),
	}
	for i, q := range questions {
		if q.Timed() {
			v := *q.TimerSec
			st.Remaining[i] = &v
		}
	}
	return st
}

func (st State) Clone() State {
	out := State{
		Answers:      append([]quiz.Answer(nil), st.Answers...),
		Locked:       append([]bool(nil), st.Locked...),
		Remaining:    make([]*int, len(st.Remaining)),
		CurrentIndex: st.CurrentIndex,
	}
	for i, r := range st.Remaining {
		if r != nil {
			v := *r
			out.Remaining[i] = &v
		}
	}
	return out
}

// Fits reports whether st can drive a set of n questions.
func (st State) Fits(n int) bool {
	return n > 0 &&
		len(st.Answers) == n && len(st.Locked) == n && len(st.Remaining) == n &&
		st.CurrentIndex >= 0 && st.CurrentIndex < n
}

type EventKind string

const (
	EventAnswerCommitted EventKind = "answer_committed"
	EventAnswerEdited    EventKind = "answer_edited"
	EventNavigated       EventKind = "navigated"
	EventTick            EventKind = "tick"
	EventExpired         EventKind = "expired"
	EventSubmitted       EventKind = "submitted"
)

// Event reports a state change. Urgent events should reach durable storage
// without waiting for the next flush interval.
type Event struct {
	Kind   EventKind
	Ref    quiz.AttemptRef
	Index  int
	Urgent bool
}

type Listener func(Event)

// Student is who the attempt belongs to.
type Student struct {
	UID  string
	Name string
}

// Session is one student's in-memory attempt at one quiz.
type Session struct {
	mu        sync.Mutex
	ref       quiz.AttemptRef
	student   Student
	set       quiz.QuestionSet
	st        State
	status    Status
	timer     *Timer
	listeners []Listener
}

// NewSession builds a session over a private copy of set. A restored state
// that fits the set replaces the fresh defaults before the first countdown
// starts.
func NewSession(ref quiz.AttemptRef, student Student, set quiz.QuestionSet, restored *State) *Session {
	set = set.Clone()
	st := FreshState(set.Questions)
	if restored != nil && restored.Fits(len(set.Questions)) {
		st = restored.Clone()
	}
	s := &Session{
		ref:     ref,
		student: student,
		set:     set,
		st:      st,
		status:  StatusInProgress,
	}
	s.timer = NewTimer(s.st.Remaining)
	s.activate(s.st.CurrentIndex)
	return s
}

func (s *Session) Ref() quiz.AttemptRef { return s.ref }

func (s *Session) Student() Student { return s.student }

// QuestionSet returns a copy of the questions being answered.
func (s *Session) QuestionSet() quiz.QuestionSet { return s.set.Clone() }

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Subscribe registers l for every later event. Listeners run outside the
// session lock and may call back into the session.
func (s *Session) Subscribe(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Snapshot returns a deep copy of the mutable state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.Clone()
}

// SelectOption commits a 1-based option for the current MCQ question.
// The first answer is final.
func (s *Session) SelectOption(option int) error {
	s.mu.Lock()
	if err := s.checkOpen(); err != nil {
		s.mu.Unlock()
		return err
	}
	i := s.st.CurrentIndex
	switch {
	case s.set.Questions[i].Type != quiz.TypeMCQ:
		s.mu.Unlock()
		return ErrWrongType
	case option < 1 || option > quiz.MCQOptions:
		s.mu.Unlock()
		return ErrOptionRange
	case s.st.Answers[i].Answered():
		s.mu.Unlock()
		return ErrAlreadyAnswered
	case s.st.Locked[i]:
		s.mu.Unlock()
		return ErrLocked
	}
	s.st.Answers[i] = quiz.ChoiceAnswer(option)
	s.st.Locked[i] = true
	s.timer.Stop()
	s.emitLocked(Event{Kind: EventAnswerCommitted, Index: i, Urgent: true})
	return nil
}

// EditText replaces the free-text answer of the current theory question.
// Theory answers stay editable until submission or timer expiry.
func (s *Session) EditText(text string) error {
	s.mu.Lock()
	if err := s.checkOpen(); err != nil {
		s.mu.Unlock()
		return err
	}
	i := s.st.CurrentIndex
	if s.set.Questions[i].Type != quiz.TypeTheory {
		s.mu.Unlock()
		return ErrWrongType
	}
	if s.st.Locked[i] {
		s.mu.Unlock()
		return ErrLocked
	}
	s.st.Answers[i] = quiz.TextAnswer(text)
	s.emitLocked(Event{Kind: EventAnswerEdited, Index: i})
	return nil
}

// Navigate moves one question back (-1) or forward (1).
func (s *Session) Navigate(direction int) error {
	s.mu.Lock()
	if err := s.checkOpen(); err != nil {
		s.mu.Unlock()
		return err
	}
	if direction != -1 && direction != 1 {
		s.mu.Unlock()
		return ErrDirection
	}
	next := s.st.CurrentIndex + direction
	if next < 0 || next >= len(s.set.Questions) {
		s.mu.Unlock()
		return ErrOutOfRange
	}
	s.timer.Stop()
	s.st.CurrentIndex = next
	s.activate(next)
	s.emitLocked(Event{Kind: EventNavigated, Index: next, Urgent: true})
	return nil
}

// Tick advances the active countdown by one second. On expiry the question
// locks with whatever answer it holds and the attempt moves to the next
// question, if any.
func (s *Session) Tick() {
	s.mu.Lock()
	if s.status != StatusInProgress {
		s.mu.Unlock()
		return
	}
	i, expired := s.timer.Tick()
	if i < 0 {
		s.mu.Unlock()
		return
	}
	if !expired {
		s.emitLocked(Event{Kind: EventTick, Index: i})
		return
	}
	s.st.Locked[i] = true
	if i == s.st.CurrentIndex && i < len(s.set.Questions)-1 {
		s.st.CurrentIndex = i + 1
		s.activate(i + 1)
	}
	s.emitLocked(Event{Kind: EventExpired, Index: i, Urgent: true})
}

// Submit finalises the attempt. commit receives the final state and must
// persist the result; if it fails the session stays in progress and its
// countdown resumes.
func (s *Session) Submit(commit func(State) error) error {
	s.mu.Lock()
	if err := s.checkOpen(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.timer.Stop()
	if err := commit(s.st.Clone()); err != nil {
		s.activate(s.st.CurrentIndex)
		s.mu.Unlock()
		return err
	}
	s.status = StatusSubmitted
	s.emitLocked(Event{Kind: EventSubmitted, Index: s.st.CurrentIndex, Urgent: true})
	return nil
}

func (s *Session) checkOpen() error {
	if s.status != StatusInProgress {
		return ErrSubmitted
	}
	return nil
}

// activate starts the countdown of question i if it is timed and unlocked.
// A timed question found at zero locks in place.
func (s *Session) activate(i int) {
	if s.st.Locked[i] {
		s.timer.Stop()
		return
	}
	if _, timed := s.timer.Remaining(i); !timed || !s.set.Questions[i].Timed() {
		s.timer.Stop()
		return
	}
	if !s.timer.Start(i) {
		s.st.Locked[i] = true
	}
}

// emitLocked releases the lock and then notifies listeners.
func (s *Session) emitLocked(e Event) {
	e.Ref = s.ref
	ls := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()
	for _, l := range ls {
		l(e)
	}
}
