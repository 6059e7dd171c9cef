package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"contactsync/internal/app/client/processor"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_NothingScheduled(t *testing.T) {
	h := newHarness(t, newFakeFactory(), "", nil)

	assert.Equal(t, int64(-1), h.engine.NextRunTime())
	assert.False(t, h.engine.Run(context.Background()))
	assert.Empty(t, h.observer.events)
	assert.Equal(t, StateIdle, h.engine.State())
}

func TestEngine_FirstTimeSyncObserverSequence(t *testing.T) {
	// Arrange
	f := newFakeFactory()
	f.steps[StateFetchingServerContacts] = step{sends: 2}
	f.steps[StateFetchingNativeContacts] = step{}
	f.steps[StateSyncingProfile] = step{sends: 1}
	f.steps[StateUpdatingServerContacts] = step{sends: 1}
	h := newHarness(t, f, "", nil)

	// Act
	h.engine.AddStartFullSync()
	assert.Equal(t, int64(0), h.engine.NextRunTime())
	require.True(t, h.engine.Run(context.Background()))
	assert.Equal(t, ModeFullSyncFirstTime, h.engine.Mode())
	for h.engine.Busy() {
		require.True(t, h.engine.Run(context.Background()))
	}

	// Assert
	const mode = "FULL_SYNC_FIRST_TIME"
	assert.Equal(t, []string{
		"state " + mode + " IDLE->FETCHING_SERVER_CONTACTS",
		"progress FETCHING_SERVER_CONTACTS 0",
		"progress FETCHING_SERVER_CONTACTS 100",
		"state " + mode + " FETCHING_SERVER_CONTACTS->FETCHING_NATIVE_CONTACTS",
		"progress FETCHING_NATIVE_CONTACTS 0",
		"progress FETCHING_NATIVE_CONTACTS 100",
		"state " + mode + " FETCHING_NATIVE_CONTACTS->SYNCING_PROFILE",
		"progress SYNCING_PROFILE 0",
		"progress SYNCING_PROFILE 100",
		"state " + mode + " SYNCING_PROFILE->UPDATING_SERVER_CONTACTS",
		"progress UPDATING_SERVER_CONTACTS 0",
		"progress UPDATING_SERVER_CONTACTS 100",
		"state " + mode + " UPDATING_SERVER_CONTACTS->IDLE",
		"complete " + mode + " SUCCESS",
	}, h.observer.events)
	assert.True(t, h.engine.IsFirstTimeSyncComplete())
	assert.Equal(t, StateIdle, h.engine.State())
}

func TestEngine_BackgroundStagesFollowSync(t *testing.T) {
	// Arrange
	f := newFakeFactory()
	h := newHarness(t, f, "", nil)
	h.engine.AddStartFullSync()

	// Act
	h.drain(t)

	// Assert
	assert.Equal(t, []State{
		StateFetchingServerContacts, StateFetchingNativeContacts, StateSyncingProfile, StateUpdatingServerContacts,
		StateFetchingServerThumbnails, StateUpdatingServerThumbnails, StateUpdatingNativeContacts,
	}, f.created)
	require.Len(t, h.observer.results, 2)
	assert.Equal(t, ModeFullSyncFirstTime, h.observer.results[0].Mode)
	assert.Equal(t, ModeBackground, h.observer.results[1].Mode)
	assert.Equal(t, processor.StatusSuccess, h.observer.results[1].Status)
	assert.Equal(t, int64(-1), h.engine.NextRunTime())
}

func TestEngine_FullSyncAfterFirstTime(t *testing.T) {
	f := newFakeFactory()
	h := newHarness(t, f, "", nil)
	h.engine.AddStartFullSync()
	h.drain(t)
	f.created = nil

	h.engine.AddStartFullSync()
	h.drain(t)

	assert.Equal(t, []State{
		StateFetchingServerContacts, StateFetchingNativeContacts, StateUpdatingServerContacts,
		StateFetchingServerThumbnails, StateUpdatingServerThumbnails, StateUpdatingNativeContacts,
	}, f.created)
	assert.Equal(t, ModeFullSync, h.observer.results[2].Mode)
}

func TestEngine_ServerSyncDelay(t *testing.T) {
	// Arrange
	f := newFakeFactory()
	h := newHarness(t, f, "", nil)

	// Act
	h.engine.AddStartServerSync(10 * time.Second)

	// Assert
	assert.Equal(t, h.clock.Now().Add(10*time.Second).UnixMilli(), h.engine.NextRunTime())
	assert.False(t, h.engine.Run(context.Background()))

	h.clock.Advance(10 * time.Second)
	h.drain(t)
	require.NotEmpty(t, h.observer.results)
	assert.Equal(t, ModeServerSync, h.observer.results[0].Mode)
	assert.Equal(t, []State{StateFetchingServerContacts, StateUpdatingServerContacts}, f.created[:2])
}

func TestEngine_ExternalChangeIsDebounced(t *testing.T) {
	// Arrange
	f := newFakeFactory()
	h := newHarness(t, f, "", nil)
	now := h.clock.Now().UnixMilli()

	// Act
	h.engine.OnExternalChange()

	// Assert
	next := h.engine.NextRunTime()
	assert.InDelta(t, 30000, next-now, 30000*0.05)

	h.clock.Advance(29 * time.Second)
	assert.False(t, h.engine.Run(context.Background()))
	assert.Empty(t, h.observer.events)
	assert.Empty(t, f.created)

	h.clock.Advance(time.Second)
	assert.Equal(t, int64(0), h.engine.NextRunTime())
	require.True(t, h.engine.Run(context.Background()))
	assert.Equal(t, StateFetchingServerContacts, h.engine.State())
}

func TestEngine_RepeatedExternalChangeRestartsDebounce(t *testing.T) {
	h := newHarness(t, newFakeFactory(), "", nil)

	h.engine.OnExternalChange()
	h.clock.Advance(20 * time.Second)
	h.engine.OnExternalChange()

	assert.Equal(t, h.clock.Now().Add(DefaultDebounce).UnixMilli(), h.engine.NextRunTime())
}

func TestEngine_Cancel(t *testing.T) {
	// Arrange
	f := newFakeFactory()
	f.steps[StateFetchingServerContacts] = step{hang: true}
	h := newHarness(t, f, "", nil)
	h.engine.AddStartFullSync()
	h.drain(t)
	require.Equal(t, StateFetchingServerContacts, h.engine.State())
	require.True(t, h.engine.Busy())

	// Act
	h.engine.OnReset()
	assert.Equal(t, int64(0), h.engine.NextRunTime())
	h.drain(t)

	// Assert
	assert.True(t, f.last().cancelled)
	require.Len(t, h.observer.results, 1)
	assert.Equal(t, processor.StatusUserCancelled, h.observer.results[0].Status)
	assert.Equal(t, StateIdle, h.engine.State())
	assert.False(t, h.engine.IsFirstTimeSyncComplete())
	assert.Equal(t, int64(-1), h.engine.NextRunTime())
}

func TestEngine_StaleResponseIsDropped(t *testing.T) {
	// Arrange
	f := newFakeFactory()
	f.steps[StateFetchingServerContacts] = step{hang: true}
	h := newHarness(t, f, "", nil)
	h.engine.AddStartFullSync()
	require.True(t, h.engine.Run(context.Background()))
	first := f.last()

	// ответ процессора еще в очереди
	h.engine.OnReset()

	// Act
	h.drain(t)

	// Assert
	assert.True(t, first.cancelled)
	assert.Zero(t, first.received)
	require.Len(t, h.observer.results, 1)
	assert.Equal(t, processor.StatusUserCancelled, h.observer.results[0].Status)
}

func TestEngine_StageFailureStopsSync(t *testing.T) {
	tests := []struct {
		name  string
		step  step
		tick  time.Duration
		cause error
	}{
		{
			name:  "Processor error",
			step:  step{sends: 1, status: processor.StatusError, err: processor.ErrServer},
			cause: processor.ErrServer,
		},
		{
			name:  "Request timeout",
			step:  step{hang: true},
			tick:  time.Minute,
			cause: processor.ErrTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			f := newFakeFactory()
			f.steps[StateFetchingNativeContacts] = tt.step
			h := newHarness(t, f, "", nil)
			h.engine.AddStartFullSync()

			// Act
			h.drain(t)
			if tt.tick > 0 {
				h.clock.Advance(tt.tick)
				h.drain(t)
			}

			// Assert
			require.Len(t, h.observer.results, 1)
			res := h.observer.results[0]
			assert.Equal(t, processor.StatusError, res.Status)
			assert.True(t, errors.Is(res.Err, tt.cause))
			assert.Equal(t, []State{StateFetchingServerContacts, StateFetchingNativeContacts}, f.created)
			assert.False(t, h.engine.IsFirstTimeSyncComplete())
			assert.Equal(t, int64(-1), h.engine.NextRunTime())
		})
	}
}

func TestEngine_StatsAreAggregated(t *testing.T) {
	f := newFakeFactory()
	f.steps[StateFetchingServerContacts] = step{sends: 1, stats: processor.Stats{Pages: 2, Downloaded: 7}}
	f.steps[StateUpdatingServerContacts] = step{sends: 1, stats: processor.Stats{Pages: 1, Uploaded: 3}}
	h := newHarness(t, f, "", nil)

	h.engine.AddStartFullSync()
	h.drain(t)

	require.NotEmpty(t, h.observer.results)
	assert.Equal(t, processor.Stats{Pages: 3, Downloaded: 7, Uploaded: 3}, h.observer.results[0].Stats)
}

func TestEngine_StatePersistsAcrossInstances(t *testing.T) {
	// Arrange
	clock := newFakeClock()
	first := newHarness(t, newFakeFactory(), "", clock)
	first.engine.AddStartFullSync()
	first.drain(t)
	require.True(t, first.engine.IsFirstTimeSyncComplete())
	first.engine.OnExternalChange()
	changeAt := clock.Now()

	// Act
	f := newFakeFactory()
	clock.Advance(5 * time.Second)
	second := newHarness(t, f, first.path, clock)

	// Assert
	assert.True(t, second.engine.IsFirstTimeSyncComplete())
	assert.Equal(t, changeAt.Add(DefaultDebounce).UnixMilli(), second.engine.NextRunTime())

	clock.Advance(25 * time.Second)
	second.drain(t)
	require.NotEmpty(t, second.observer.results)
	assert.Equal(t, ModeFullSync, second.observer.results[0].Mode)
	assert.Equal(t, StateFetchingNativeContacts, f.created[1])

	// после успешной синхронизации отложенное изменение снято
	third := newHarness(t, newFakeFactory(), first.path, clock)
	assert.Equal(t, int64(-1), third.engine.NextRunTime())
}

func TestEngine_UnregisterObserver(t *testing.T) {
	h := newHarness(t, newFakeFactory(), "", nil)
	h.engine.UnregisterObserver(h.observer)

	h.engine.AddStartFullSync()
	h.drain(t)

	assert.Empty(t, h.observer.events)
}

func TestEngine_RunUntilIdle(t *testing.T) {
	f := newFakeFactory()
	f.steps[StateFetchingServerContacts] = step{sends: 3}
	h := newHarness(t, f, "", nil)
	h.engine.AddStartFullSync()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.engine.RunUntilIdle(ctx))

	require.Len(t, h.observer.results, 2)
	assert.Equal(t, ModeBackground, h.observer.results[1].Mode)
	assert.False(t, h.engine.Busy())
}
