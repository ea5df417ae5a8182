package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/sourcing-cli/internal/config"
	"github.com/sells-group/sourcing-cli/internal/cost"
	"github.com/sells-group/sourcing-cli/internal/model"
)

func testManager(searcher Searcher, opts ...ManagerOption) *Manager {
	build := func(*cost.Tracker) (Stages, error) {
		return testStages(searcher, &siteFetcher{}, pageGenerator{}), nil
	}
	return NewManager(build, cost.NewCalculator(cost.DefaultRates()),
		config.PipelineConfig{BudgetUSD: 50, MaxManufacturers: 10}, opts...)
}

func TestManager_RunToCompletion(t *testing.T) {
	searcher := &mockSearcher{}
	searcher.On("SearchAll", mock.Anything, mock.Anything).Return(found(testCandidates(4)), nil)
	sink := &recordingSink{}
	m := testManager(searcher, WithRunSinks(sink))

	id, err := m.StartRun(testCriteria(), 0)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	result, err := m.Wait(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, model.ResultCompleted, result.Status)
	assert.Len(t, result.Manufacturers, 4)
	assert.Equal(t, id, result.RunID)

	snap, err := m.GetProgress(id)
	require.NoError(t, err)
	assert.Equal(t, model.RunStateCompleted, snap.State)
	assert.Equal(t, 10, snap.MaxCandidates)
	assert.Equal(t, 50.0, snap.BudgetUSD)

	runs := m.Runs()
	require.Len(t, runs, 1)
	assert.Equal(t, id, runs[0].ID)
	assert.Len(t, sink.results, 1)
}

func TestManager_RejectsInvalidCriteria(t *testing.T) {
	m := testManager(&mockSearcher{})
	lo, hi := 2000, 500

	_, err := m.StartRun(model.SearchCriteria{MOQMin: &lo, MOQMax: &hi}, 5)

	var ve *model.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "moq_min", ve.Field)
	assert.Empty(t, m.Runs())
}

func TestManager_UnknownRun(t *testing.T) {
	m := testManager(&mockSearcher{})

	_, err := m.GetProgress("nope")
	assert.True(t, errors.Is(err, ErrRunNotFound))
	_, err = m.GetResult("nope")
	assert.True(t, errors.Is(err, ErrRunNotFound))
}

func TestManager_PendingWhileRunning(t *testing.T) {
	release := make(chan struct{})
	searcher := &mockSearcher{}
	searcher.On("SearchAll", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { <-release }).
		Return(found(testCandidates(2)), nil)
	m := testManager(searcher)

	id, err := m.StartRun(testCriteria(), 5)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		snap, _ := m.GetProgress(id)
		return snap.State == model.RunStateSearching
	}, 5*time.Second, 10*time.Millisecond)

	result, err := m.GetResult(id)
	require.NoError(t, err)
	assert.Equal(t, model.ResultPending, result.Status)

	close(release)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	result, err = m.Wait(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.ResultCompleted, result.Status)
}

func TestManager_ShutdownCancelsRuns(t *testing.T) {
	searcher := &mockSearcher{}
	searcher.On("SearchAll", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { <-args.Get(0).(context.Context).Done() }).
		Return(nil, context.Canceled)
	m := testManager(searcher)

	id, err := m.StartRun(testCriteria(), 5)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(ctx))

	result, err := m.GetResult(id)
	require.NoError(t, err)
	assert.Equal(t, model.ResultFailed, result.Status)
	require.NotNil(t, result.Error)
	assert.Equal(t, model.ErrorKindInternal, result.Error.Kind)

	_, err = m.StartRun(testCriteria(), 5)
	assert.Error(t, err)
}

func TestManager_BuildError(t *testing.T) {
	m := NewManager(func(*cost.Tracker) (Stages, error) {
		return Stages{}, errors.New("no search provider")
	}, cost.NewCalculator(cost.DefaultRates()), config.PipelineConfig{})

	_, err := m.StartRun(testCriteria(), 5)

	assert.ErrorContains(t, err, "no search provider")
	assert.Empty(t, m.Runs())
}

func TestManager_EvictsOldestFinishedRuns(t *testing.T) {
	searcher := &mockSearcher{}
	searcher.On("SearchAll", mock.Anything, mock.Anything).Return(found(testCandidates(2)), nil)
	build := func(*cost.Tracker) (Stages, error) {
		return testStages(searcher, &siteFetcher{}, pageGenerator{}), nil
	}
	m := NewManager(build, cost.NewCalculator(cost.DefaultRates()),
		config.PipelineConfig{BudgetUSD: 50, MaxManufacturers: 5, RetainRuns: 2})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var ids []string
	for i := 0; i < 3; i++ {
		id, err := m.StartRun(testCriteria(), 0)
		require.NoError(t, err)
		result, err := m.Wait(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, model.ResultCompleted, result.Status)
		ids = append(ids, id)
	}

	_, err := m.GetResult(ids[0])
	assert.ErrorIs(t, err, ErrRunNotFound)
	_, err = m.GetProgress(ids[0])
	assert.ErrorIs(t, err, ErrRunNotFound)

	for _, id := range ids[1:] {
		result, err := m.GetResult(id)
		require.NoError(t, err)
		assert.Equal(t, model.ResultCompleted, result.Status)
	}
	assert.Len(t, m.Runs(), 2)
}

func TestManager_RunningRunsAreNotEvicted(t *testing.T) {
	release := make(chan struct{})
	slow := &mockSearcher{}
	slow.On("SearchAll", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { <-release }).
		Return(found(testCandidates(2)), nil).Once()
	slow.On("SearchAll", mock.Anything, mock.Anything).Return(found(testCandidates(2)), nil)
	build := func(*cost.Tracker) (Stages, error) {
		return testStages(slow, &siteFetcher{}, pageGenerator{}), nil
	}
	m := NewManager(build, cost.NewCalculator(cost.DefaultRates()),
		config.PipelineConfig{BudgetUSD: 50, MaxManufacturers: 5, RetainRuns: 1})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	running, err := m.StartRun(testCriteria(), 0)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		snap, err := m.GetProgress(running)
		return err == nil && snap.State == model.RunStateSearching
	}, 5*time.Second, 10*time.Millisecond)

	for i := 0; i < 2; i++ {
		id, err := m.StartRun(testCriteria(), 0)
		require.NoError(t, err)
		_, err = m.Wait(ctx, id)
		require.NoError(t, err)
	}

	snap, err := m.GetProgress(running)
	require.NoError(t, err)
	assert.Equal(t, model.RunStateSearching, snap.State)

	close(release)
	result, err := m.Wait(ctx, running)
	require.NoError(t, err)
	assert.Equal(t, model.ResultCompleted, result.Status)
}
