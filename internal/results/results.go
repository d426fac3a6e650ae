// Package results lists submitted attempts for students and teachers.
package results

import (
	"context"
	"fmt"
	"sort"

	"github.com/mind-engage/classquiz/internal/docstore"
	"github.com/mind-engage/classquiz/internal/quiz"
)

// Reader queries attempt records.
type Reader struct {
	docs docstore.Store
}

func NewReader(docs docstore.Store) *Reader { return &Reader{docs: docs} }

// ClassFilter selects the attempts a teacher sees. QuizNumber 0 means every
// quiz.
type ClassFilter struct {
	TeacherUID  string
	ClassKey    string
	SemesterKey string
	QuizNumber  int
}

func (f ClassFilter) filters() []docstore.Filter {
	fs := []docstore.Filter{
		docstore.Eq("teacherUid", f.TeacherUID),
		docstore.Eq("classKey", f.ClassKey),
		docstore.Eq("semesterKey", f.SemesterKey),
	}
	if f.QuizNumber > 0 {
		fs = append(fs, docstore.Eq("quizNumber", f.QuizNumber))
	}
	return fs
}

// ForStudent returns the student's attempts, newest first.
func (r *Reader) ForStudent(ctx context.Context, studentUID string) ([]quiz.AttemptRecord, error) {
	recs, err := r.query(ctx, docstore.Eq("studentUid", studentUID))
	if err != nil {
		return nil, err
	}
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].SubmittedAt.After(recs[j].SubmittedAt)
	})
	return recs, nil
}

// ForClass returns a class's attempts, highest total first.
func (r *Reader) ForClass(ctx context.Context, f ClassFilter) ([]quiz.AttemptRecord, error) {
	recs, err := r.query(ctx, f.filters()...)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].TotalScore > recs[j].TotalScore
	})
	return recs, nil
}

// Pending returns the attempts still waiting for theory marks, oldest
// submission first.
func (r *Reader) Pending(ctx context.Context, f ClassFilter) ([]quiz.AttemptRecord, error) {
	recs, err := r.query(ctx, append(f.filters(), docstore.Eq("graded", false))...)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].SubmittedAt.Before(recs[j].SubmittedAt)
	})
	return recs, nil
}

// Get loads one attempt by key.
func (r *Reader) Get(ctx context.Context, attemptKey string) (quiz.AttemptRecord, error) {
	var rec quiz.AttemptRecord
	if err := docstore.GetInto(ctx, r.docs, docstore.Attempts, attemptKey, &rec); err != nil {
		return quiz.AttemptRecord{}, err
	}
	return rec, nil
}

func (r *Reader) query(ctx context.Context, filters ...docstore.Filter) ([]quiz.AttemptRecord, error) {
	entries, err := r.docs.Query(ctx, docstore.Attempts, filters...)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	out := make([]quiz.AttemptRecord, 0, len(entries))
	for _, e := range entries {
		var rec quiz.AttemptRecord
		if err := docstore.Decode(e.Doc, &rec); err != nil {
			return nil, fmt.Errorf("attempt %s: %w", e.Key, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// Summary aggregates a list of attempts.
type Summary struct {
	Attempts int     `json:"attempts"`
	Pending  int     `json:"pending"`
	Average  float64 `json:"average"`
	Highest  float64 `json:"highest"`
}

func Summarize(recs []quiz.AttemptRecord) Summary {
	s := Summary{Attempts: len(recs)}
	if len(recs) == 0 {
		return s
	}
	total := 0.0
	s.Highest = recs[0].TotalScore
	for _, r := range recs {
		if !r.Graded {
			s.Pending++
		}
		total += r.TotalScore
		if r.TotalScore > s.Highest {
			s.Highest = r.TotalScore
		}
	}
	s.Average = total / float64(len(recs))
	return s
}
