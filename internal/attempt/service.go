package attempt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mind-engage/classquiz/internal/docstore"
	"github.com/mind-engage/classquiz/internal/grading"
	"github.com/mind-engage/classquiz/internal/metrics"
	"github.com/mind-engage/classquiz/internal/quiz"
	syncx "github.com/mind-engage/classquiz/internal/sync"
)

var (
	ErrAlreadyAttempted = errors.New("quiz already attempted")
	ErrQuizUnavailable  = errors.New("quiz not available")
	ErrNoSession        = errors.New("no attempt in progress")
)

// Candidate is the student starting a quiz, as known to the profile store.
type Candidate struct {
	UID         string
	Name        string
	ClassKey    string
	SemesterKey string
	Roll        string
}

func (c Candidate) Ref(quizNumber int) quiz.AttemptRef {
	return quiz.AttemptRef{ClassKey: c.ClassKey, SemesterKey: c.SemesterKey, QuizNumber: quizNumber, Roll: c.Roll}
}

// DefaultIdleTimeout is how long a session may go without a request or
// answer before it is saved and released. Clients showing a countdown poll
// well within it.
const DefaultIdleTimeout = 30 * time.Second

// Service owns the live sessions of this process and moves them through
// start, resume and submit against the document store.
type Service struct {
	docs     docstore.Store
	progress *Gateway
	scorer   *grading.Scorer
	journal  syncx.Journal
	log      *zap.Logger
	now      func() time.Time
	idle     time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
	lastSeen map[string]time.Time
}

func NewService(docs docstore.Store, progress *Gateway, journal syncx.Journal, log *zap.Logger) *Service {
	if journal == nil {
		journal = syncx.Nop()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		docs:     docs,
		progress: progress,
		scorer:   grading.NewScorer(),
		journal:  journal,
		log:      log,
		now:      time.Now,
		idle:     DefaultIdleTimeout,
		sessions: map[string]*Session{},
		lastSeen: map[string]time.Time{},
	}
}

// SetIdleTimeout changes how long an untouched session stays live.
func (s *Service) SetIdleTimeout(d time.Duration) {
	if d > 0 {
		s.idle = d
	}
}

// Start opens the attempt of c at quizNumber: the live session if this
// process already holds one, else one resumed from a saved snapshot, else a
// fresh one. Nothing is mutated when the quiz was already attempted or is
// not available.
func (s *Service) Start(ctx context.Context, c Candidate, quizNumber int) (*Session, error) {
	ref := c.Ref(quizNumber)
	key := ref.Key()

	done, err := docstore.Exists(ctx, s.docs, docstore.Attempts, key)
	if err != nil {
		return nil, fmt.Errorf("check attempt: %w", err)
	}
	if done {
		return nil, ErrAlreadyAttempted
	}

	var set quiz.QuestionSet
	if err := docstore.GetInto(ctx, s.docs, docstore.Quizzes, ref.QuizKey(), &set); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, ErrQuizUnavailable
		}
		return nil, fmt.Errorf("load quiz: %w", err)
	}
	if !set.Available() {
		return nil, ErrQuizUnavailable
	}

	if live := s.live(key); live != nil {
		metrics.AttemptsStarted.WithLabelValues("live").Inc()
		return live, nil
	}

	restored, err := s.progress.Load(ctx, ref, len(set.Questions))
	if err != nil {
		// unreadable progress must not block the quiz; start fresh
		s.log.Warn("progress unavailable, starting fresh", zap.String("attempt", key), zap.Error(err))
		restored = nil
	}

	s.mu.Lock()
	if live, ok := s.sessions[key]; ok {
		// another request won the race while the snapshot loaded
		s.lastSeen[key] = s.now()
		s.mu.Unlock()
		metrics.AttemptsStarted.WithLabelValues("live").Inc()
		return live, nil
	}
	sess := NewSession(ref, Student{UID: c.UID, Name: c.Name}, set, restored)
	s.progress.Track(sess)
	sess.Subscribe(func(e Event) {
		if e.Kind != EventTick && e.Kind != EventExpired {
			s.touch(key, sess)
		}
	})
	s.sessions[key] = sess
	s.lastSeen[key] = s.now()
	metrics.ActiveSessions.Set(float64(len(s.sessions)))
	s.mu.Unlock()

	mode := "fresh"
	if restored != nil {
		mode = "resumed"
	}
	metrics.AttemptsStarted.WithLabelValues(mode).Inc()
	s.log.Info("attempt started", zap.String("attempt", key), zap.String("mode", mode))
	return sess, nil
}

// Session returns the live session for an attempt key and counts as
// activity on it.
func (s *Service) Session(key string) (*Session, error) {
	if sess := s.live(key); sess != nil {
		return sess, nil
	}
	return nil, ErrNoSession
}

func (s *Service) live(key string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[key]
	if !ok {
		return nil
	}
	s.lastSeen[key] = s.now()
	return sess
}

func (s *Service) touch(key string, sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions[key] == sess {
		s.lastSeen[key] = s.now()
	}
}

// Submit scores the attempt, writes its permanent record and then deletes
// the progress snapshot. A record write failure keeps the session in
// progress and is returned; a snapshot delete failure is only logged.
func (s *Service) Submit(ctx context.Context, key string) (quiz.AttemptRecord, error) {
	sess, err := s.Session(key)
	if err != nil {
		if done, xerr := docstore.Exists(ctx, s.docs, docstore.Attempts, key); xerr == nil && done {
			return quiz.AttemptRecord{}, ErrAlreadyAttempted
		}
		return quiz.AttemptRecord{}, err
	}

	var rec quiz.AttemptRecord
	err = sess.Submit(func(st State) error {
		exists, err := docstore.Exists(ctx, s.docs, docstore.Attempts, key)
		if err != nil {
			return fmt.Errorf("check attempt: %w", err)
		}
		if exists {
			return ErrAlreadyAttempted
		}
		rec = s.buildRecord(sess, st)
		if err := docstore.Put(ctx, s.docs, docstore.Attempts, key, rec, false); err != nil {
			return fmt.Errorf("write attempt: %w", err)
		}
		return nil
	})
	if err != nil {
		metrics.AttemptsSubmitted.WithLabelValues("error").Inc()
		if errors.Is(err, ErrAlreadyAttempted) {
			s.drop(ctx, key)
		}
		s.log.Error("submit failed", zap.String("attempt", key), zap.Error(err))
		return quiz.AttemptRecord{}, err
	}
	metrics.AttemptsSubmitted.WithLabelValues("ok").Inc()

	s.drop(ctx, key)
	ev, err := syncx.NewEvent(syncx.TypeAttemptSubmitted, key, map[string]any{
		"mcqScore":   rec.MCQScore,
		"totalScore": rec.TotalScore,
		"graded":     rec.Graded,
	})
	if err == nil {
		err = s.journal.Append(ctx, ev)
	}
	if err != nil {
		s.log.Warn("journal append failed", zap.String("attempt", key), zap.Error(err))
	}
	s.log.Info("attempt submitted",
		zap.String("attempt", key),
		zap.Float64("mcqScore", rec.MCQScore),
		zap.Float64("theoryMax", rec.TheoryMax),
		zap.Bool("graded", rec.Graded))
	return rec, nil
}

func (s *Service) buildRecord(sess *Session, st State) quiz.AttemptRecord {
	set := sess.QuestionSet()
	sum := s.scorer.Score(set.Questions, st.Answers)
	ref := sess.Ref()
	student := sess.Student()
	return quiz.AttemptRecord{
		ClassKey:          ref.ClassKey,
		SemesterKey:       ref.SemesterKey,
		QuizNumber:        ref.QuizNumber,
		Roll:              ref.Roll,
		Name:              student.Name,
		StudentUID:        student.UID,
		TeacherUID:        set.TeacherUID,
		Answers:           st.Answers,
		QuestionsSnapshot: set.Questions,
		MCQScore:          sum.MCQScore,
		TheoryScore:       0,
		TotalScore:        sum.MCQScore,
		MaxScore:          sum.MaxScore,
		TheoryMax:         sum.TheoryMax,
		Graded:            !sum.RequiresManualGrading,
		SubmittedAt:       s.now().UTC(),
	}
}

// drop forgets the session and deletes its snapshot.
func (s *Service) drop(ctx context.Context, key string) {
	s.mu.Lock()
	delete(s.sessions, key)
	delete(s.lastSeen, key)
	metrics.ActiveSessions.Set(float64(len(s.sessions)))
	s.mu.Unlock()

	if err := s.progress.Discard(ctx, key); err != nil {
		s.log.Warn("progress snapshot delete failed", zap.String("attempt", key), zap.Error(err))
	}
}

// Release flushes and forgets a live session without submitting it, e.g.
// when the student leaves the quiz. The snapshot stays for a later resume.
func (s *Service) Release(ctx context.Context, key string) error {
	_, err := s.evict(ctx, key, time.Time{})
	return err
}

// ReleaseIdle releases every session untouched for the idle timeout, so an
// abandoned tab stops its countdown and resumes from the snapshot later.
func (s *Service) ReleaseIdle(ctx context.Context) int {
	cutoff := s.now().Add(-s.idle)
	s.mu.Lock()
	var idle []string
	for key, seen := range s.lastSeen {
		if !seen.After(cutoff) {
			idle = append(idle, key)
		}
	}
	s.mu.Unlock()

	released := 0
	for _, key := range idle {
		ok, err := s.evict(ctx, key, cutoff)
		if err != nil {
			// stays live; retried on the next pass
			s.log.Warn("idle release failed", zap.String("attempt", key), zap.Error(err))
			continue
		}
		if ok {
			released++
			s.log.Info("idle attempt released", zap.String("attempt", key))
		}
	}
	return released
}

// evict flushes the session under key and then forgets it, unless it was
// touched after idleSince (zero means unconditionally). The flush comes
// first so a concurrent Start never resumes from a stale snapshot.
func (s *Service) evict(ctx context.Context, key string, idleSince time.Time) (bool, error) {
	s.mu.Lock()
	sess, ok := s.sessions[key]
	s.mu.Unlock()
	if !ok {
		return false, ErrNoSession
	}
	if err := s.progress.Flush(ctx, key); err != nil {
		return false, err
	}

	s.mu.Lock()
	if s.sessions[key] != sess || (!idleSince.IsZero() && s.lastSeen[key].After(idleSince)) {
		s.mu.Unlock()
		return false, nil
	}
	delete(s.sessions, key)
	delete(s.lastSeen, key)
	metrics.ActiveSessions.Set(float64(len(s.sessions)))
	s.mu.Unlock()

	s.progress.forget(key, sess)
	return true, nil
}

// Tick advances every live session by one second.
func (s *Service) Tick() {
	s.mu.Lock()
	live := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		live = append(live, sess)
	}
	s.mu.Unlock()
	for _, sess := range live {
		sess.Tick()
	}
}

// Run drives the one-second countdown tick, idle release and the progress
// flush loop until ctx is done. It returns after the gateway's final flush.
func (s *Service) Run(ctx context.Context) {
	flushed := make(chan struct{})
	go func() {
		s.progress.Run(ctx)
		close(flushed)
	}()
	defer func() { <-flushed }()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick()
			s.ReleaseIdle(ctx)
		}
	}
}
