package grading

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/mind-engage/classquiz/internal/docstore"
	"github.com/mind-engage/classquiz/internal/metrics"
	"github.com/mind-engage/classquiz/internal/quiz"
	syncx "github.com/mind-engage/classquiz/internal/sync"
)

var ErrAttemptNotFound = errors.New("attempt not found")

// ApplyMarks sets the theory marks of a submitted attempt. marks holds one
// entry per theory question in question order; each is clamped to
// [0, question marks], missing entries count as 0 and extras are ignored.
func ApplyMarks(rec quiz.AttemptRecord, marks []float64, gradedBy string, at time.Time) quiz.AttemptRecord {
	score, max := 0.0, 0.0
	n := 0
	for _, q := range rec.QuestionsSnapshot {
		if q.Type != quiz.TypeTheory {
			continue
		}
		limit := float64(q.Marks)
		v := 0.0
		if n < len(marks) {
			v = marks[n]
		}
		n++
		if v < 0 || math.IsNaN(v) {
			v = 0
		}
		if v > limit {
			v = limit
		}
		score += v
		max += limit
	}
	rec.TheoryScore = score
	rec.TheoryMax = max
	rec.TotalScore = rec.MCQScore + score
	rec.Graded = true
	rec.GradedBy = gradedBy
	t := at.UTC()
	rec.GradedAt = &t
	return rec
}

// Ledger applies teacher marks to stored attempt records. Concurrent
// grading of the same record is last-write-wins.
type Ledger struct {
	docs    docstore.Store
	journal syncx.Journal
	log     *zap.Logger
	now     func() time.Time
}

func NewLedger(docs docstore.Store, journal syncx.Journal, log *zap.Logger) *Ledger {
	if journal == nil {
		journal = syncx.Nop()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Ledger{docs: docs, journal: journal, log: log, now: time.Now}
}

// Grade loads the attempt stored under attemptKey, applies marks and writes
// the grading fields back.
func (l *Ledger) Grade(ctx context.Context, attemptKey string, marks []float64, gradedBy string) (quiz.AttemptRecord, error) {
	var rec quiz.AttemptRecord
	if err := docstore.GetInto(ctx, l.docs, docstore.Attempts, attemptKey, &rec); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return quiz.AttemptRecord{}, ErrAttemptNotFound
		}
		return quiz.AttemptRecord{}, fmt.Errorf("load attempt: %w", err)
	}

	rec = ApplyMarks(rec, marks, gradedBy, l.now())
	update := docstore.Document{
		"theoryScore": rec.TheoryScore,
		"theoryMax":   rec.TheoryMax,
		"totalScore":  rec.TotalScore,
		"graded":      true,
		"gradedBy":    rec.GradedBy,
		"gradedAt":    rec.GradedAt.Format(time.RFC3339Nano),
	}
	if err := l.docs.Set(ctx, docstore.Attempts, attemptKey, update, true); err != nil {
		return quiz.AttemptRecord{}, fmt.Errorf("save grades: %w", err)
	}
	metrics.AttemptsGraded.Inc()

	ev, err := syncx.NewEvent(syncx.TypeAttemptGraded, attemptKey, map[string]any{
		"theoryScore": rec.TheoryScore,
		"totalScore":  rec.TotalScore,
		"gradedBy":    gradedBy,
	})
	if err == nil {
		err = l.journal.Append(ctx, ev)
	}
	if err != nil {
		l.log.Warn("journal append failed", zap.String("attempt", attemptKey), zap.Error(err))
	}
	l.log.Info("attempt graded",
		zap.String("attempt", attemptKey),
		zap.Float64("theoryScore", rec.TheoryScore),
		zap.Float64("totalScore", rec.TotalScore),
		zap.String("gradedBy", gradedBy))
	return rec, nil
}
