package attempt

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/classquiz/internal/docstore"
)

var errStoreDown = errors.New("store unavailable")

// flakyStore fails writes to the collections listed in failSet until cleared.
type flakyStore struct {
	docstore.Store
	mu      sync.Mutex
	failSet map[string]bool
	writes  map[string]int
}

func newFlakyStore() *flakyStore {
	return &flakyStore{Store: docstore.NewInMemoryStore(), failSet: map[string]bool{}, writes: map[string]int{}}
}

func (f *flakyStore) failWrites(collection string, fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failSet[collection] = fail
}

func (f *flakyStore) writeCount(collection string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes[collection]
}

func (f *flakyStore) Set(ctx context.Context, collection, key string, doc docstore.Document, merge bool) error {
	f.mu.Lock()
	fail := f.failSet[collection]
	f.writes[collection]++
	f.mu.Unlock()
	if fail {
		return errStoreDown
	}
	return f.Store.Set(ctx, collection, key, doc, merge)
}

func TestGatewayFlushWritesSnapshot(t *testing.T) {
	ctx := context.Background()
	docs := docstore.NewInMemoryStore()
	g := NewGateway(docs, nil, time.Hour)
	s := NewSession(testRef, Student{UID: "u7"}, newSet(mcqQ(2, secs(10)), theoryQ(5, nil)), nil)
	g.Track(s)

	require.NoError(t, s.SelectOption(2))
	require.NoError(t, g.Flush(ctx, testRef.Key()))

	d, err := docs.Get(ctx, docstore.Progress, testRef.Key())
	require.NoError(t, err)
	assert.Equal(t, "bscs", d["classKey"])
	assert.Equal(t, "u7", d["studentUid"])
	assert.Equal(t, []any{float64(2), nil}, d["answers"])
	assert.Equal(t, []any{true, false}, d["lockedQuestions"])
	assert.EqualValues(t, 0, d["currentIndex"])

	st, err := g.Load(ctx, testRef, 2)
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, s.Snapshot(), *st)
}

func TestGatewayLoadMissingAndMisfit(t *testing.T) {
	ctx := context.Background()
	docs := docstore.NewInMemoryStore()
	g := NewGateway(docs, nil, 0)

	st, err := g.Load(ctx, testRef, 2)
	require.NoError(t, err)
	assert.Nil(t, st)

	s := NewSession(testRef, Student{}, newSet(mcqQ(2, nil), theoryQ(5, nil)), nil)
	g.Track(s)
	require.NoError(t, g.Flush(ctx, testRef.Key()))

	st, err = g.Load(ctx, testRef, 3)
	require.NoError(t, err)
	assert.Nil(t, st, "a snapshot for a different question count is ignored")
}

func TestGatewaySkipsCleanSessions(t *testing.T) {
	ctx := context.Background()
	docs := newFlakyStore()
	g := NewGateway(docs, nil, time.Hour)
	s := NewSession(testRef, Student{}, newSet(mcqQ(2, nil), theoryQ(5, nil)), nil)
	g.Track(s)

	require.NoError(t, g.FlushDirty(ctx))
	require.NoError(t, g.FlushDirty(ctx))
	assert.Equal(t, 1, docs.writeCount(docstore.Progress))

	require.NoError(t, s.Navigate(1))
	require.NoError(t, g.FlushDirty(ctx))
	assert.Equal(t, 2, docs.writeCount(docstore.Progress))
}

func TestGatewayRetriesFailedWrites(t *testing.T) {
	ctx := context.Background()
	docs := newFlakyStore()
	g := NewGateway(docs, nil, time.Hour)
	s := NewSession(testRef, Student{}, newSet(mcqQ(2, nil), theoryQ(5, nil)), nil)
	g.Track(s)
	require.NoError(t, s.SelectOption(4))

	docs.failWrites(docstore.Progress, true)
	assert.ErrorIs(t, g.FlushDirty(ctx), errStoreDown)
	_, err := docs.Get(ctx, docstore.Progress, testRef.Key())
	assert.ErrorIs(t, err, docstore.ErrNotFound)

	docs.failWrites(docstore.Progress, false)
	require.NoError(t, g.FlushDirty(ctx))
	st, err := g.Load(ctx, testRef, 2)
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.True(t, st.Locked[0])
}

func TestGatewayDiscardDeletesAndUntracks(t *testing.T) {
	ctx := context.Background()
	docs := docstore.NewInMemoryStore()
	g := NewGateway(docs, nil, time.Hour)
	s := NewSession(testRef, Student{}, newSet(mcqQ(2, nil), theoryQ(5, nil)), nil)
	g.Track(s)
	require.NoError(t, g.Flush(ctx, testRef.Key()))
	assert.True(t, g.tracking(testRef.Key()))

	require.NoError(t, g.Discard(ctx, testRef.Key()))
	assert.False(t, g.tracking(testRef.Key()))
	ok, err := docstore.Exists(ctx, docs, docstore.Progress, testRef.Key())
	require.NoError(t, err)
	assert.False(t, ok)

	// later events from the session no longer write anything
	require.NoError(t, s.Navigate(1))
	require.NoError(t, g.FlushDirty(ctx))
	ok, err = docstore.Exists(ctx, docs, docstore.Progress, testRef.Key())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGatewayCloseKeepsSnapshot(t *testing.T) {
	ctx := context.Background()
	docs := docstore.NewInMemoryStore()
	g := NewGateway(docs, nil, time.Hour)
	s := NewSession(testRef, Student{}, newSet(mcqQ(2, nil), theoryQ(5, nil)), nil)
	g.Track(s)
	require.NoError(t, s.Navigate(1))

	require.NoError(t, g.Close(ctx, testRef.Key()))
	assert.False(t, g.tracking(testRef.Key()))
	st, err := g.Load(ctx, testRef, 2)
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, 1, st.CurrentIndex)
}

func TestGatewayRunFlushesUrgentEvents(t *testing.T) {
	docs := docstore.NewInMemoryStore()
	g := NewGateway(docs, nil, time.Hour)
	s := NewSession(testRef, Student{}, newSet(mcqQ(2, nil), theoryQ(5, nil)), nil)
	g.Track(s)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		g.Run(ctx)
		close(done)
	}()

	require.NoError(t, s.SelectOption(2))
	assert.Eventually(t, func() bool {
		st, err := g.Load(context.Background(), testRef, 2)
		return err == nil && st != nil && st.Answers[0].Option == 2
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestGatewayRunFinalFlush(t *testing.T) {
	docs := docstore.NewInMemoryStore()
	g := NewGateway(docs, nil, time.Hour)
	s := NewSession(testRef, Student{}, newSet(theoryQ(5, nil), mcqQ(2, nil)), nil)
	g.Track(s)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// edits are not urgent; only the final pass writes them
	require.NoError(t, s.EditText("draft"))
	g.Run(ctx)

	st, err := g.Load(context.Background(), testRef, 2)
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, "draft", st.Answers[0].Text)
}
