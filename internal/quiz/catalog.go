package quiz

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/mind-engage/classquiz/internal/docstore"
)

var (
	ErrQuizNotFound = errors.New("quiz not found")
	ErrNotDraft     = errors.New("only draft quizzes can be deleted")
)

// Catalog stores question sets in the quizzes collection.
type Catalog struct {
	docs docstore.Store
	now  func() time.Time
}

func NewCatalog(docs docstore.Store) *Catalog {
	return &Catalog{docs: docs, now: time.Now}
}

func (c *Catalog) Get(ctx context.Context, key string) (QuestionSet, error) {
	var set QuestionSet
	if err := docstore.GetInto(ctx, c.docs, docstore.Quizzes, key, &set); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return QuestionSet{}, ErrQuizNotFound
		}
		return QuestionSet{}, fmt.Errorf("load quiz %s: %w", key, err)
	}
	return set, nil
}

// Save validates set and replaces whatever is stored under its key. An
// empty status saves a draft and an empty title becomes "Quiz N".
func (c *Catalog) Save(ctx context.Context, set QuestionSet) (QuestionSet, error) {
	if set.Status == "" {
		set.Status = StatusDraft
	}
	if err := set.Validate(); err != nil {
		return QuestionSet{}, err
	}
	set.Title = set.Label()
	set.UpdatedAt = c.now().UTC()
	if err := docstore.Put(ctx, c.docs, docstore.Quizzes, set.Key(), set, false); err != nil {
		return QuestionSet{}, fmt.Errorf("save quiz %s: %w", set.Key(), err)
	}
	return set, nil
}

// SetArchived archives or restores a quiz without touching its questions.
// Archived quizzes cannot be started.
func (c *Catalog) SetArchived(ctx context.Context, key string, archived bool) (QuestionSet, error) {
	if _, err := c.Get(ctx, key); err != nil {
		return QuestionSet{}, err
	}
	at := c.now().UTC()
	update := docstore.Document{"archived": archived, "updatedAt": at.Format(time.RFC3339Nano)}
	if archived {
		update["archivedAt"] = at.Format(time.RFC3339Nano)
	} else {
		update["restoredAt"] = at.Format(time.RFC3339Nano)
	}
	if err := c.docs.Set(ctx, docstore.Quizzes, key, update, true); err != nil {
		return QuestionSet{}, fmt.Errorf("archive quiz %s: %w", key, err)
	}
	return c.Get(ctx, key)
}

// DeleteDraft removes a quiz that was never published.
func (c *Catalog) DeleteDraft(ctx context.Context, key string) error {
	set, err := c.Get(ctx, key)
	if err != nil {
		return err
	}
	if set.Status != StatusDraft {
		return ErrNotDraft
	}
	if err := c.docs.Delete(ctx, docstore.Quizzes, key); err != nil {
		return fmt.Errorf("delete quiz %s: %w", key, err)
	}
	return nil
}

// ListFilter selects quizzes of one class and semester. An empty TeacherUID
// matches every teacher; a nil Archived matches both states.
type ListFilter struct {
	TeacherUID  string
	ClassKey    string
	SemesterKey string
	Archived    *bool
}

// List returns the matching quizzes ordered by quiz number.
func (c *Catalog) List(ctx context.Context, f ListFilter) ([]QuestionSet, error) {
	filters := []docstore.Filter{
		docstore.Eq("classKey", f.ClassKey),
		docstore.Eq("semesterKey", f.SemesterKey),
	}
	if f.TeacherUID != "" {
		filters = append(filters, docstore.Eq("teacherUid", f.TeacherUID))
	}
	entries, err := c.docs.Query(ctx, docstore.Quizzes, filters...)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	out := make([]QuestionSet, 0, len(entries))
	for _, e := range entries {
		var set QuestionSet
		if err := docstore.Decode(e.Doc, &set); err != nil {
			return nil, fmt.Errorf("quiz %s: %w", e.Key, err)
		}
		if f.Archived != nil && set.Archived != *f.Archived {
			continue
		}
		out = append(out, set)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuizNumber < out[j].QuizNumber })
	return out, nil
}
