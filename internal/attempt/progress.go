package attempt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mind-engage/classquiz/internal/docstore"
	"github.com/mind-engage/classquiz/internal/metrics"
	"github.com/mind-engage/classquiz/internal/quiz"
)

// DefaultFlushInterval matches the cadence of the browser autosave.
const DefaultFlushInterval = 5 * time.Second

type progressDoc struct {
	ClassKey    string `json:"classKey"`
	SemesterKey string `json:"semesterKey"`
	QuizNumber  int    `json:"quizNumber"`
	Roll        string `json:"roll"`
	StudentUID  string `json:"studentUid,omitempty"`
	State
	UpdatedAt time.Time `json:"updatedAt"`
}

type tracked struct {
	sess  *Session
	dirty bool
	write sync.Mutex // serialises writes and the final delete for one key
}

// Gateway persists progress snapshots of live sessions. Every event marks
// the session dirty; urgent events are flushed right away by Run and the
// rest on the flush interval. Failed writes stay dirty and are retried.
type Gateway struct {
	docs     docstore.Store
	log      *zap.Logger
	interval time.Duration

	mu      sync.Mutex
	entries map[string]*tracked
	urgent  chan string
}

func NewGateway(docs docstore.Store, log *zap.Logger, interval time.Duration) *Gateway {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Gateway{
		docs:     docs,
		log:      log,
		interval: interval,
		entries:  map[string]*tracked{},
		urgent:   make(chan string, 256),
	}
}

// Load returns the saved state for ref, or nil when there is none or it no
// longer fits a set of n questions.
func (g *Gateway) Load(ctx context.Context, ref quiz.AttemptRef, n int) (*State, error) {
	var doc progressDoc
	err := docstore.GetInto(ctx, g.docs, docstore.Progress, ref.Key(), &doc)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}
	if !doc.State.Fits(n) {
		g.log.Warn("discarding progress snapshot that does not fit quiz",
			zap.String("attempt", ref.Key()),
			zap.Int("questions", n),
			zap.Int("answers", len(doc.Answers)))
		return nil, nil
	}
	st := doc.State
	return &st, nil
}

// Track starts persisting s. The session is considered dirty from the start
// so its first snapshot is written on the next flush.
func (g *Gateway) Track(s *Session) {
	key := s.Ref().Key()
	g.mu.Lock()
	g.entries[key] = &tracked{sess: s, dirty: true}
	g.mu.Unlock()

	s.Subscribe(func(e Event) {
		if e.Kind == EventSubmitted {
			return // Discard removes the entry
		}
		g.markDirty(key)
		if e.Urgent {
			select {
			case g.urgent <- key:
			default: // the interval flush picks it up
			}
		}
	})
}

func (g *Gateway) markDirty(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if t, ok := g.entries[key]; ok {
		t.dirty = true
	}
}

func (g *Gateway) untrack(key string) *tracked {
	g.mu.Lock()
	defer g.mu.Unlock()
	t := g.entries[key]
	delete(g.entries, key)
	return t
}

// Flush writes the snapshot for key if it is dirty.
func (g *Gateway) Flush(ctx context.Context, key string) error {
	g.mu.Lock()
	t, ok := g.entries[key]
	g.mu.Unlock()
	if !ok {
		return nil
	}
	return g.flush(ctx, key, t)
}

func (g *Gateway) flush(ctx context.Context, key string, t *tracked) error {
	t.write.Lock()
	defer t.write.Unlock()

	g.mu.Lock()
	if !t.dirty {
		g.mu.Unlock()
		return nil
	}
	t.dirty = false
	g.mu.Unlock()

	if t.sess.Status() != StatusInProgress {
		return nil
	}
	ref := t.sess.Ref()
	doc := progressDoc{
		ClassKey:    ref.ClassKey,
		SemesterKey: ref.SemesterKey,
		QuizNumber:  ref.QuizNumber,
		Roll:        ref.Roll,
		StudentUID:  t.sess.Student().UID,
		State:       t.sess.Snapshot(),
		UpdatedAt:   time.Now().UTC(),
	}
	if err := docstore.Put(ctx, g.docs, docstore.Progress, key, doc, true); err != nil {
		g.mu.Lock()
		t.dirty = true
		g.mu.Unlock()
		metrics.SnapshotWrites.WithLabelValues("error").Inc()
		g.log.Warn("progress snapshot write failed", zap.String("attempt", key), zap.Error(err))
		return err
	}
	metrics.SnapshotWrites.WithLabelValues("ok").Inc()
	return nil
}

// FlushDirty writes every dirty snapshot, returning the first error seen.
func (g *Gateway) FlushDirty(ctx context.Context) error {
	g.mu.Lock()
	pending := make(map[string]*tracked, len(g.entries))
	for k, t := range g.entries {
		if t.dirty {
			pending[k] = t
		}
	}
	g.mu.Unlock()

	var first error
	for k, t := range pending {
		if err := g.flush(ctx, k, t); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Close flushes the session stored under key and stops tracking it. The
// snapshot stays in storage for a later resume.
func (g *Gateway) Close(ctx context.Context, key string) error {
	g.mu.Lock()
	t, ok := g.entries[key]
	g.mu.Unlock()
	if !ok {
		return nil
	}
	if err := g.flush(ctx, key, t); err != nil {
		return err
	}
	g.forget(key, t.sess)
	return nil
}

// forget stops tracking key if it still belongs to sess; a session started
// for the same key since then is left alone.
func (g *Gateway) forget(key string, sess *Session) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if t, ok := g.entries[key]; ok && t.sess == sess {
		delete(g.entries, key)
	}
}

// Discard stops tracking key and deletes its snapshot once any in-flight
// write has finished.
func (g *Gateway) Discard(ctx context.Context, key string) error {
	if t := g.untrack(key); t != nil {
		t.write.Lock()
		defer t.write.Unlock()
	}
	return g.docs.Delete(ctx, docstore.Progress, key)
}

func (g *Gateway) tracking(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.entries[key]
	return ok
}

// Run flushes urgent keys as they arrive and everything dirty on each
// interval until ctx is done, then makes a final pass.
func (g *Gateway) Run(ctx context.Context) {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := g.FlushDirty(final); err != nil {
				g.log.Warn("final progress flush incomplete", zap.Error(err))
			}
			cancel()
			return
		case key := <-g.urgent:
			_ = g.Flush(ctx, key)
		case <-ticker.C:
			_ = g.FlushDirty(ctx)
		}
	}
}
