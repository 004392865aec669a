package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qmjianda/loglayout-sub001/internal/layer"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	s := NewSession("", "test.log", Options{Debounce: fastDebounce, Logger: zerolog.Nop()})
	t.Cleanup(s.Close)
	return s
}

func settle(t *testing.T, s *Session) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Wait(ctx))
}

func TestSession_PipelineAndWindow(t *testing.T) {
	s := newTestSession(t)
	assert.NotEmpty(t, s.ID)
	assert.Nil(t, s.Window(0, 10))

	s.SetTotalBytes(200)
	s.AppendLines(scenario[:2], 60)
	s.AppendLines(scenario[2:], 30)
	s.Complete()

	id, err := s.AddLayer(layer.TypeLevel, layer.LevelConfig{Levels: []string{"INFO"}}, "")
	require.NoError(t, err)
	settle(t, s)

	assert.Equal(t, 2, s.TotalLineCount())
	assert.Equal(t, 2, s.Stats()[id].Count)

	win := s.Window(-5, 99)
	require.Len(t, win, 2)
	assert.Equal(t, 0, win[0].Index)
	assert.Equal(t, 2, win[1].Index)
	assert.Equal(t, "2024-01-01T00:00:10 INFO done", win[1].Content)
	assert.Empty(t, s.Window(2, 1))

	sum := s.Summary()
	assert.Equal(t, 3, sum.SourceLines)
	assert.Equal(t, 2, sum.OutputLines)
	assert.Equal(t, int64(90), sum.BytesRead)
	assert.Equal(t, int64(200), sum.TotalBytes)
	assert.True(t, sum.Complete)
	assert.Equal(t, 1.0, sum.Progress)
	assert.Equal(t, map[string]int{"INFO": 2, "ERROR": 1}, sum.LevelDist)
	assert.Equal(t, 1, sum.ActiveLayers)
	assert.True(t, sum.Settled)
}

func TestWindowOf_UsesOneResult(t *testing.T) {
	s := newTestSession(t)
	assert.Nil(t, WindowOf(nil, 0, 10))

	s.AppendLines(scenario, 90)
	s.Complete()
	id, err := s.AddLayer(layer.TypeLevel, layer.LevelConfig{Levels: []string{"INFO"}}, "")
	require.NoError(t, err)
	settle(t, s)
	old := s.Result()
	require.NotNil(t, old)

	require.NoError(t, s.ToggleLayer(id))
	settle(t, s)
	require.NotSame(t, old, s.Result())

	win := WindowOf(old, 0, 10)
	require.Len(t, win, old.Lines.Len())
	assert.Len(t, win, 2)
	assert.Len(t, s.Window(0, 10), 3)
}

func TestSession_ChangeHookFollowsMutationOrder(t *testing.T) {
	var (
		mu   sync.Mutex
		last []*layer.Layer
	)
	s := NewSession("", "test.log", Options{
		Debounce: fastDebounce,
		Logger:   zerolog.Nop(),
		OnLayersChanged: func(_ *Session, list []*layer.Layer) {
			time.Sleep(time.Millisecond)
			mu.Lock()
			last = list
			mu.Unlock()
		},
	})
	t.Cleanup(s.Close)

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.AddLayer(layer.TypeFilter, layer.FilterConfig{MatchOptions: layer.MatchOptions{Query: "x"}}, "")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, last, 16)
	assert.True(t, layer.EqualList(last, s.Layers()))
}

func TestSession_UndoRedoReruns(t *testing.T) {
	s := newTestSession(t)
	s.AppendLines(scenario, 90)

	id, err := s.AddLayer(layer.TypeFilter, layer.FilterConfig{MatchOptions: layer.MatchOptions{Query: "boom"}}, "")
	require.NoError(t, err)
	settle(t, s)
	assert.Equal(t, 1, s.TotalLineCount())

	require.NoError(t, s.ToggleLayer(id))
	settle(t, s)
	assert.Equal(t, 3, s.TotalLineCount())

	require.True(t, s.Undo())
	settle(t, s)
	assert.Equal(t, 1, s.TotalLineCount())

	require.True(t, s.Undo())
	settle(t, s)
	assert.Empty(t, s.Layers())
	assert.Equal(t, 3, s.TotalLineCount())
	assert.False(t, s.Undo())

	require.True(t, s.Redo())
	settle(t, s)
	assert.Len(t, s.Layers(), 1)
	assert.True(t, s.CanRedo())
}

func TestSession_RejectedMutationKeepsState(t *testing.T) {
	s := newTestSession(t)
	folder, err := s.AddLayer(layer.TypeFolder, nil, "")
	require.NoError(t, err)
	child, err := s.AddLayer(layer.TypeFolder, nil, folder)
	require.NoError(t, err)
	before := s.Layers()

	assert.ErrorIs(t, s.MoveLayer(folder, child, layer.PositionInside), layer.ErrCycle)
	assert.True(t, layer.EqualList(before, s.Layers()))
	assert.ErrorIs(t, s.RemoveLayer("missing"), layer.ErrNotFound)

	require.True(t, s.Undo())
	assert.Len(t, s.Layers(), 1)
}

func TestSession_Search(t *testing.T) {
	s := newTestSession(t)
	s.AppendLines(scenario, 90)
	s.SetGlobalQuery("INFO", SearchOptions{CaseSensitive: true})
	settle(t, s)

	pos, ok := s.FindNext()
	require.True(t, ok)
	assert.Equal(t, 0, pos)
	pos, _ = s.FindNext()
	assert.Equal(t, 2, pos)
	pos, _ = s.FindNext()
	assert.Equal(t, 0, pos, "wraps to the first hit")
	pos, _ = s.FindPrev()
	assert.Equal(t, 2, pos, "wraps to the last hit")
	pos, _ = s.FindPrev()
	assert.Equal(t, 0, pos)

	assert.Equal(t, "INFO", s.GlobalQuery().Query)
	assert.Contains(t, s.Stats(), GlobalSearchID)

	s.SetGlobalQuery("", SearchOptions{})
	settle(t, s)
	_, ok = s.FindNext()
	assert.False(t, ok)
	assert.NotContains(t, s.Stats(), GlobalSearchID)
}

func TestSession_ImportSkipsHistory(t *testing.T) {
	s := newTestSession(t)
	s.AppendLines(scenario, 90)

	list := []*layer.Layer{
		layer.New("lv", "Level", layer.TypeLevel, layer.LevelConfig{Levels: []string{"ERROR"}}),
		layer.New("lv", "Duplicate", layer.TypeFilter, nil),
	}
	s.ImportLayers(list)
	settle(t, s)

	assert.Len(t, s.Layers(), 1)
	assert.False(t, s.CanUndo())
	assert.Equal(t, 1, s.TotalLineCount())

	data, err := s.ExportLayers()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"levels"`)

	s.ApplyLayers(nil)
	settle(t, s)
	assert.True(t, s.CanUndo())
	assert.Equal(t, 3, s.TotalLineCount())
}

func TestNextPrevHit(t *testing.T) {
	hits := []int{3, 7, 9}
	p, _ := nextHit(hits, -1)
	assert.Equal(t, 3, p)
	p, _ = nextHit(hits, 3)
	assert.Equal(t, 7, p)
	p, _ = nextHit(hits, 5)
	assert.Equal(t, 7, p)
	p, _ = nextHit(hits, 9)
	assert.Equal(t, 3, p)
	p, _ = prevHit(hits, 7)
	assert.Equal(t, 3, p)
	p, _ = prevHit(hits, 3)
	assert.Equal(t, 9, p)
	p, _ = prevHit(hits, -1)
	assert.Equal(t, 9, p)
	_, ok := nextHit(nil, 0)
	assert.False(t, ok)
}
