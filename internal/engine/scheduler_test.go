package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qmjianda/loglayout-sub001/internal/layer"
)

var fastDebounce = Debounce{
	Small:       time.Millisecond,
	Medium:      time.Millisecond,
	Large:       time.Millisecond,
	SmallLines:  100_000,
	MediumLines: 1_000_000,
}

func waitSettled(t *testing.T, s *Scheduler) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Wait(ctx))
}

func TestDebounce_Delay(t *testing.T) {
	assert.Equal(t, 50*time.Millisecond, DefaultDebounce.Delay(10))
	assert.Equal(t, 150*time.Millisecond, DefaultDebounce.Delay(100_000))
	assert.Equal(t, 300*time.Millisecond, DefaultDebounce.Delay(5_000_000))
}

func TestScheduler_SupersededRunCommitsNothing(t *testing.T) {
	exec := NewExecutor(zerolog.Nop())
	exec.BatchSize = 1

	hl := layer.New("hl", "", layer.TypeHighlight, layer.HighlightConfig{MatchOptions: layer.MatchOptions{Query: "o"}})
	first := Request{Raw: scenario, SourceVersion: 1, Layers: []*layer.Layer{hl}}
	second := Request{Raw: scenario, SourceVersion: 1, Layers: []*layer.Layer{hl}, Search: Search{Query: "boom"}}

	var (
		s       *Scheduler
		once    sync.Once
		mu      sync.Mutex
		commits []uint64
		g2      uint64
	)
	// The first run is still batching when the second request arrives.
	exec.Yield = func() {
		once.Do(func() { g2 = s.Request(second) })
	}

	reg := prometheus.NewRegistry()
	metrics := RegisterMetrics(reg)
	s = NewScheduler(exec, SchedulerOptions{
		Debounce: fastDebounce,
		Metrics:  metrics,
		Logger:   zerolog.Nop(),
		OnCommit: func(res *Result) {
			mu.Lock()
			commits = append(commits, res.Generation)
			mu.Unlock()
		},
	})
	defer s.Close()

	g1 := s.Request(first)
	waitSettled(t, s)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, uint64(1), g1)
	assert.Equal(t, uint64(2), g2)
	assert.Equal(t, []uint64{g2}, commits)
	assert.Equal(t, g2, s.Current().Generation)
	assert.Equal(t, []int{1}, s.Current().SearchHits)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.runsFinished.WithLabelValues(outcomeDiscarded)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.runsFinished.WithLabelValues(outcomeCommitted)))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.runsRequested))
}

func TestScheduler_DuplicateRequestsAreIgnored(t *testing.T) {
	s := NewScheduler(NewExecutor(zerolog.Nop()), SchedulerOptions{Debounce: fastDebounce, Logger: zerolog.Nop()})
	defer s.Close()

	lv := layer.New("lv", "Level", layer.TypeLevel, layer.LevelConfig{Levels: []string{"ERROR"}})
	req := Request{Raw: scenario, SourceVersion: 3, Layers: []*layer.Layer{lv}}

	g := s.Request(req)
	waitSettled(t, s)

	// Cosmetic changes keep the fingerprint.
	renamed := lv.Clone()
	renamed.Name = "Errors"
	assert.Equal(t, g, s.Request(Request{Raw: scenario, SourceVersion: 3, Layers: []*layer.Layer{renamed}}))
	assert.True(t, s.Settled())

	s.Invalidate()
	assert.Equal(t, g+1, s.Request(req))
	waitSettled(t, s)
	assert.Equal(t, g+1, s.Current().Generation)
}

func TestScheduler_CommitRejectsOldGeneration(t *testing.T) {
	s := NewScheduler(NewExecutor(zerolog.Nop()), SchedulerOptions{Debounce: Debounce{Small: time.Hour, Medium: time.Hour, Large: time.Hour}, Logger: zerolog.Nop()})
	defer s.Close()

	s.Request(Request{Raw: scenario, SourceVersion: 1})
	s.Request(Request{Raw: scenario, SourceVersion: 2})

	assert.False(t, s.Commit(&Result{Generation: 1}))
	assert.Nil(t, s.Current())
	assert.True(t, s.Commit(&Result{Generation: 2}))
	assert.True(t, s.Settled())
}

func TestScheduler_WaitHonoursContext(t *testing.T) {
	s := NewScheduler(NewExecutor(zerolog.Nop()), SchedulerOptions{Debounce: Debounce{Small: time.Hour, Medium: time.Hour, Large: time.Hour}, Logger: zerolog.Nop()})
	defer s.Close()

	s.Request(Request{Raw: scenario, SourceVersion: 1})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Wait(ctx), context.DeadlineExceeded)
}
