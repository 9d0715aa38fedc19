package syncer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/h0rv/ghpsync/internal/cache"
	"github.com/h0rv/ghpsync/internal/clock"
	"github.com/h0rv/ghpsync/internal/domain"
	"github.com/h0rv/ghpsync/internal/store"
)

const testProjectID = "PVT_test"

// fakeRemote serves items from fixed pages and records every call.
type fakeRemote struct {
	mu sync.Mutex

	pages      []domain.ItemPage
	fetchErr   error
	fetchGate  chan struct{} // FetchItems blocks until closed, when set
	fetchStart chan struct{} // receives once per FetchItems call, when set
	fetchCalls int

	pushErr     map[string]error // by item ID
	optionErr   map[string]error // by option ID
	pushErrAll  error
	pushGate    map[string]chan struct{} // by option ID
	pushStarted chan string
	pushes      []domain.PendingUpdate

	calls []string
}

func newFakeRemote(items ...*domain.Item) *fakeRemote {
	return &fakeRemote{
		pages:   []domain.ItemPage{{Items: items}},
		pushErr: make(map[string]error),
	}
}

func (r *fakeRemote) FetchItems(ctx context.Context, projectID, cursor string) (domain.ItemPage, error) {
	r.mu.Lock()
	r.fetchCalls++
	r.calls = append(r.calls, "fetch:"+cursor)
	gate, started, err := r.fetchGate, r.fetchStart, r.fetchErr
	r.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	if err != nil {
		return domain.ItemPage{}, err
	}

	idx := 0
	if cursor != "" {
		n, convErr := strconv.Atoi(cursor)
		if convErr != nil {
			return domain.ItemPage{}, convErr
		}
		idx = n
	}
	page := r.pages[idx]
	if idx+1 < len(r.pages) {
		page.HasNextPage = true
		page.EndCursor = strconv.Itoa(idx + 1)
	}
	return page, nil
}

func (r *fakeRemote) UpdateSingleSelectField(ctx context.Context, projectID, itemID, fieldID, optionID string) error {
	r.mu.Lock()
	r.calls = append(r.calls, "push:"+itemID)
	r.pushes = append(r.pushes, domain.PendingUpdate{ProjectID: projectID, ItemID: itemID, FieldID: fieldID, OptionID: optionID})
	gate, started := r.pushGate[optionID], r.pushStarted
	r.mu.Unlock()

	if started != nil {
		started <- optionID
	}
	if gate != nil {
		<-gate
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pushErrAll != nil {
		return r.pushErrAll
	}
	if err := r.optionErr[optionID]; err != nil {
		return err
	}
	return r.pushErr[itemID]
}

func (r *fakeRemote) setPushErrAll(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pushErrAll = err
}

func (r *fakeRemote) setFetchErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetchErr = err
}

func (r *fakeRemote) fetchCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fetchCalls
}

// takePushes returns the recorded pushes and resets the record.
func (r *fakeRemote) takePushes() []domain.PendingUpdate {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.pushes
	r.pushes = nil
	return out
}

func (r *fakeRemote) callLog() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

type recordingNotifier struct {
	mu        sync.Mutex
	successes []string
	failures  []string
}

func (n *recordingNotifier) Success(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.successes = append(n.successes, msg)
}

func (n *recordingNotifier) Failure(msg string, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failures = append(n.failures, fmt.Sprintf("%s: %v", msg, err))
}

func (n *recordingNotifier) counts() (int, int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.successes), len(n.failures)
}

type harness struct {
	manager  *Manager
	remote   *fakeRemote
	store    *store.Store
	cache    *cache.Cache
	clock    *clock.Fake
	notifier *recordingNotifier
}

func newHarness(t *testing.T, remote *fakeRemote) *harness {
	t.Helper()
	fake := clock.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	h := &harness{
		remote:   remote,
		store:    store.New(),
		cache:    cache.New(cache.WithClock(fake)),
		clock:    fake,
		notifier: &recordingNotifier{},
	}
	h.manager = New(Config{
		ProjectID: testProjectID,
		Store:     h.store,
		Cache:     h.cache,
		Remote:    remote,
		Scheduler: fake,
		Logger:    log.New(io.Discard, "", 0),
		Notifier:  h.notifier,
	})
	t.Cleanup(func() {
		h.manager.Destroy()
		h.manager.Wait()
	})
	return h
}

func statusProject() *domain.Project {
	return &domain.Project{
		ID:    testProjectID,
		Title: "Roadmap",
		Fields: []domain.Field{
			{
				ID:   "field_status",
				Name: "Status",
				Kind: domain.FieldKindSingleSelect,
				Options: []domain.Option{
					{ID: "opt_todo", Name: "Todo"},
					{ID: "opt_done", Name: "Done"},
				},
			},
		},
	}
}

func remoteItem(id, status string) *domain.Item {
	item := &domain.Item{ID: id, Title: "Item " + id, Type: domain.ItemTypeIssue, FieldValues: map[string]domain.FieldValue{}}
	if status != "" {
		item.SetFieldValue("Status", domain.SingleSelectValue(status, "opt_"+strings.ToLower(status)))
	}
	return item
}

func pendingIDs(updates []domain.PendingUpdate) []string {
	ids := make([]string, 0, len(updates))
	for _, u := range updates {
		ids = append(ids, u.ItemID)
	}
	return ids
}

func TestSync_LoadsAllPagesIntoStore(t *testing.T) {
	remote := newFakeRemote()
	remote.pages = []domain.ItemPage{
		{Items: []*domain.Item{remoteItem("item-1", "Todo"), remoteItem("item-2", "Done")}},
		{Items: []*domain.Item{remoteItem("item-3", "")}},
	}
	h := newHarness(t, remote)

	require.NoError(t, h.manager.Sync(context.Background()))

	assert.Equal(t, 2, remote.fetchCount())
	assert.Equal(t, []string{"fetch:", "fetch:1"}, remote.callLog())
	assert.Equal(t, 3, h.store.Len())
	assert.Equal(t, h.clock.Now(), h.manager.LastSync())
	assert.True(t, h.cache.Has(ItemsCacheKey(testProjectID)))
	assert.False(t, h.manager.Syncing())
}

func TestSync_StoreEditsDoNotLeakIntoCache(t *testing.T) {
	h := newHarness(t, newFakeRemote(remoteItem("item-1", "Todo")))
	require.NoError(t, h.manager.Sync(context.Background()))

	h.store.UpdateItem("item-1", store.ItemPatch{Title: ptr("edited")})

	cached, ok := h.cache.Get(ItemsCacheKey(testProjectID))
	require.True(t, ok)
	assert.Equal(t, "Item item-1", cached.([]*domain.Item)[0].Title)
}

func TestSync_InvalidatesOnlyProjectItemsKey(t *testing.T) {
	h := newHarness(t, newFakeRemote(remoteItem("item-fresh", "Todo")))
	h.cache.Set(ItemsCacheKey(testProjectID), []*domain.Item{remoteItem("item-stale", "Todo")})
	h.cache.Set("projects:octo", "kept")

	require.NoError(t, h.manager.Sync(context.Background()))

	assert.Equal(t, 1, h.remote.fetchCount())
	_, ok := h.store.Item("item-fresh")
	assert.True(t, ok)
	_, ok = h.store.Item("item-stale")
	assert.False(t, ok)

	v, ok := h.cache.Get("projects:octo")
	require.True(t, ok)
	assert.Equal(t, "kept", v)
}

func TestSync_MutualExclusion(t *testing.T) {
	remote := newFakeRemote(remoteItem("item-1", "Todo"))
	remote.fetchGate = make(chan struct{})
	remote.fetchStart = make(chan struct{}, 1)
	h := newHarness(t, remote)

	first := make(chan error, 1)
	go func() { first <- h.manager.Sync(context.Background()) }()
	<-remote.fetchStart

	assert.True(t, h.manager.Syncing())
	assert.NoError(t, h.manager.Sync(context.Background()))
	assert.Equal(t, 1, remote.fetchCount())

	close(remote.fetchGate)
	require.NoError(t, <-first)
	assert.Equal(t, 1, remote.fetchCount())
	assert.False(t, h.manager.Syncing())
}

func TestSync_ErrorPropagatesAndNotifies(t *testing.T) {
	remote := newFakeRemote(remoteItem("item-1", "Todo"))
	fetchErr := errors.New("github returned HTTP 502: bad gateway")
	remote.setFetchErr(fetchErr)
	h := newHarness(t, remote)

	err := h.manager.Sync(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, fetchErr)

	_, failures := h.notifier.counts()
	assert.Equal(t, 1, failures)
	assert.False(t, h.manager.Syncing())
	assert.False(t, h.cache.Has(ItemsCacheKey(testProjectID)))
	assert.True(t, h.manager.LastSync().IsZero())

	// The flag was reset, so a later sync runs.
	remote.setFetchErr(nil)
	require.NoError(t, h.manager.Sync(context.Background()))
	assert.Equal(t, 2, remote.fetchCount())
	assert.Equal(t, 1, h.store.Len())
}

func TestSync_PushesPendingBeforePull(t *testing.T) {
	remote := newFakeRemote(remoteItem("item-1", "Todo"))
	remote.setPushErrAll(errors.New("offline"))
	h := newHarness(t, remote)

	h.manager.QueueUpdate("item-1", domain.PendingUpdate{FieldID: "field_status", OptionID: "opt_done"})
	h.manager.Wait()
	require.True(t, h.manager.HasPendingUpdates())

	remote.setPushErrAll(nil)
	require.NoError(t, h.manager.Sync(context.Background()))

	assert.False(t, h.manager.HasPendingUpdates())
	assert.Equal(t, []string{"push:item-1", "push:item-1", "fetch:"}, remote.callLog())
}

func TestSync_PushFailureDoesNotAbortPull(t *testing.T) {
	remote := newFakeRemote(remoteItem("item-1", "Todo"))
	remote.setPushErrAll(errors.New("offline"))
	h := newHarness(t, remote)

	h.manager.QueueUpdate("item-1", domain.PendingUpdate{FieldID: "field_status", OptionID: "opt_done"})
	h.manager.Wait()

	require.NoError(t, h.manager.Sync(context.Background()))
	assert.Equal(t, 1, remote.fetchCount())
	assert.Equal(t, 1, h.store.Len())
	assert.True(t, h.manager.HasPendingUpdates())
}

func TestQueueUpdate_ImmediatePushDequeues(t *testing.T) {
	h := newHarness(t, newFakeRemote())

	h.manager.QueueUpdate("item-1", domain.PendingUpdate{FieldID: "field_status", OptionID: "opt_done"})
	h.manager.Wait()

	assert.False(t, h.manager.HasPendingUpdates())
	pushes := h.remote.takePushes()
	require.Len(t, pushes, 1)
	assert.Equal(t, domain.PendingUpdate{
		ProjectID: testProjectID,
		ItemID:    "item-1",
		FieldID:   "field_status",
		OptionID:  "opt_done",
	}, pushes[0])
}

func TestQueueUpdate_ReplacesPendingUpdate(t *testing.T) {
	remote := newFakeRemote()
	remote.setPushErrAll(errors.New("offline"))
	h := newHarness(t, remote)

	h.manager.QueueUpdate("item-1", domain.PendingUpdate{FieldID: "field_status", OptionID: "opt_a"})
	h.manager.QueueUpdate("item-1", domain.PendingUpdate{FieldID: "field_status", OptionID: "opt_b"})
	h.manager.Wait()

	pending := h.manager.PendingUpdates()
	require.Len(t, pending, 1)
	assert.Equal(t, "item-1", pending[0].ItemID)
	assert.Equal(t, "opt_b", pending[0].OptionID)
	assert.Equal(t, h.clock.Now(), pending[0].QueuedAt)

	remote.takePushes()
	remote.setPushErrAll(nil)
	report := h.manager.PushPendingUpdates(context.Background())

	assert.Equal(t, []string{"item-1"}, report.Pushed)
	pushes := remote.takePushes()
	require.Len(t, pushes, 1)
	assert.Equal(t, "opt_b", pushes[0].OptionID)
	assert.False(t, h.manager.HasPendingUpdates())
}

func TestQueueUpdate_LateSuccessKeepsReplacement(t *testing.T) {
	remote := newFakeRemote()
	release := make(chan struct{})
	remote.pushGate = map[string]chan struct{}{"opt_a": release}
	// The replacement fails, so only the late success of opt_a could dequeue it.
	remote.optionErr = map[string]error{"opt_b": errors.New("offline")}
	remote.pushStarted = make(chan string, 2)
	h := newHarness(t, remote)

	h.manager.QueueUpdate("item-1", domain.PendingUpdate{FieldID: "field_status", OptionID: "opt_a"})
	require.Equal(t, "opt_a", <-remote.pushStarted)

	h.manager.QueueUpdate("item-1", domain.PendingUpdate{FieldID: "field_status", OptionID: "opt_b"})
	require.Equal(t, "opt_b", <-remote.pushStarted)

	close(release)
	h.manager.Wait()

	pending := h.manager.PendingUpdates()
	require.Len(t, pending, 1)
	assert.Equal(t, "opt_b", pending[0].OptionID)
}

func TestPushPendingUpdates_PartialSuccess(t *testing.T) {
	remote := newFakeRemote()
	remote.setPushErrAll(errors.New("offline"))
	h := newHarness(t, remote)

	for _, id := range []string{"item-1", "item-2", "item-3"} {
		h.manager.QueueUpdate(id, domain.PendingUpdate{FieldID: "field_status", OptionID: "opt_done"})
	}
	h.manager.Wait()
	require.Len(t, h.manager.PendingUpdates(), 3)

	remote.setPushErrAll(nil)
	item2Err := errors.New("github returned HTTP 500: boom")
	remote.mu.Lock()
	remote.pushErr["item-2"] = item2Err
	remote.mu.Unlock()

	report := h.manager.PushPendingUpdates(context.Background())

	assert.Equal(t, []string{"item-1", "item-3"}, report.Pushed)
	require.Len(t, report.Failed, 1)
	assert.ErrorIs(t, report.Failed["item-2"], item2Err)
	assert.ErrorIs(t, report.Err(), item2Err)
	assert.Contains(t, report.Err().Error(), "item item-2")
	assert.Equal(t, []string{"item-2"}, pendingIDs(h.manager.PendingUpdates()))
}

func TestPushPendingUpdates_ImmediatePushesIsolated(t *testing.T) {
	remote := newFakeRemote()
	remote.pushErr["item-2"] = errors.New("rejected")
	h := newHarness(t, remote)

	for _, id := range []string{"item-1", "item-2", "item-3"} {
		h.manager.QueueUpdate(id, domain.PendingUpdate{FieldID: "field_status", OptionID: "opt_done"})
	}
	h.manager.Wait()

	assert.Equal(t, []string{"item-2"}, pendingIDs(h.manager.PendingUpdates()))
}

func TestPushPendingUpdates_Empty(t *testing.T) {
	h := newHarness(t, newFakeRemote())

	report := h.manager.PushPendingUpdates(context.Background())

	assert.Empty(t, report.Pushed)
	assert.Empty(t, report.Failed)
	assert.NoError(t, report.Err())
	assert.Empty(t, h.remote.takePushes())
}

func TestForceRefresh_DiscardsUnsentWork(t *testing.T) {
	remote := newFakeRemote(remoteItem("item-1", "Todo"))
	remote.setPushErrAll(errors.New("offline"))
	h := newHarness(t, remote)
	h.cache.Set("projects:octo", "stale")

	h.manager.QueueUpdate("item-1", domain.PendingUpdate{FieldID: "field_status", OptionID: "opt_done"})
	require.NoError(t, h.manager.ForceRefresh(context.Background()))

	assert.False(t, h.manager.HasPendingUpdates())
	assert.False(t, h.cache.Has("projects:octo"))
	assert.Equal(t, 1, h.store.Len())
	successes, _ := h.notifier.counts()
	assert.Equal(t, 1, successes)

	h.manager.Wait()
	assert.False(t, h.manager.HasPendingUpdates())

	remote.takePushes()
	remote.setPushErrAll(nil)
	require.NoError(t, h.manager.Sync(context.Background()))
	assert.Empty(t, remote.takePushes())
}

func TestForceRefresh_SkipsPullWhileSyncing(t *testing.T) {
	remote := newFakeRemote(remoteItem("item-1", "Todo"))
	remote.fetchGate = make(chan struct{})
	remote.fetchStart = make(chan struct{}, 1)
	remote.setPushErrAll(errors.New("offline"))
	h := newHarness(t, remote)

	h.manager.QueueUpdate("item-9", domain.PendingUpdate{FieldID: "field_status", OptionID: "opt_done"})
	h.manager.Wait()

	done := make(chan error, 1)
	go func() { done <- h.manager.Sync(context.Background()) }()
	<-remote.fetchStart

	require.NoError(t, h.manager.ForceRefresh(context.Background()))
	assert.False(t, h.manager.HasPendingUpdates())
	assert.Equal(t, 1, remote.fetchCount())

	close(remote.fetchGate)
	require.NoError(t, <-done)
}

func TestForceRefresh_ErrorNotifies(t *testing.T) {
	remote := newFakeRemote()
	remote.setFetchErr(errors.New("graphql: Could not resolve to a node"))
	h := newHarness(t, remote)

	err := h.manager.ForceRefresh(context.Background())
	require.Error(t, err)

	successes, failures := h.notifier.counts()
	assert.Equal(t, 0, successes)
	assert.Equal(t, 1, failures)
	assert.False(t, h.manager.Syncing())
}

func TestStartAutoSync_NonPositiveIntervalIsNoop(t *testing.T) {
	for _, interval := range []time.Duration{0, -5 * time.Second} {
		t.Run(interval.String(), func(t *testing.T) {
			h := newHarness(t, newFakeRemote())

			h.manager.StartAutoSync(interval)

			assert.False(t, h.manager.AutoSyncActive())
			assert.Equal(t, 0, h.clock.Pending())
			h.clock.Advance(24 * time.Hour)
			assert.Equal(t, 0, h.remote.fetchCount())
		})
	}
}

func TestStartAutoSync_RunsEveryInterval(t *testing.T) {
	h := newHarness(t, newFakeRemote(remoteItem("item-1", "Todo")))

	h.manager.StartAutoSync(10 * time.Second)
	assert.True(t, h.manager.AutoSyncActive())

	h.clock.Advance(9 * time.Second)
	assert.Equal(t, 0, h.remote.fetchCount())

	h.clock.Advance(26 * time.Second)
	assert.Equal(t, 3, h.remote.fetchCount())
	assert.Equal(t, 1, h.clock.Pending())
}

func TestStartAutoSync_RestartSupersedes(t *testing.T) {
	h := newHarness(t, newFakeRemote())

	h.manager.StartAutoSync(10 * time.Second)
	h.manager.StartAutoSync(30 * time.Second)
	assert.Equal(t, 1, h.clock.Pending())

	h.clock.Advance(25 * time.Second)
	assert.Equal(t, 0, h.remote.fetchCount())

	h.clock.Advance(5 * time.Second)
	assert.Equal(t, 1, h.remote.fetchCount())
}

func TestStopAutoSync(t *testing.T) {
	h := newHarness(t, newFakeRemote())

	h.manager.StopAutoSync()

	h.manager.StartAutoSync(10 * time.Second)
	h.manager.StopAutoSync()
	h.manager.StopAutoSync()

	assert.False(t, h.manager.AutoSyncActive())
	h.clock.Advance(time.Minute)
	assert.Equal(t, 0, h.remote.fetchCount())
}

func TestAutoSync_TickErrorsContained(t *testing.T) {
	remote := newFakeRemote()
	remote.setFetchErr(errors.New("github request failed: connection refused"))
	h := newHarness(t, remote)

	h.manager.StartAutoSync(10 * time.Second)
	h.clock.Advance(30 * time.Second)

	assert.Equal(t, 3, remote.fetchCount())
	assert.True(t, h.manager.AutoSyncActive())
	successes, failures := h.notifier.counts()
	assert.Equal(t, 0, successes)
	assert.Equal(t, 0, failures)
}

func TestDestroy(t *testing.T) {
	remote := newFakeRemote()
	remote.setPushErrAll(errors.New("offline"))
	h := newHarness(t, remote)

	h.manager.StartAutoSync(10 * time.Second)
	h.manager.QueueUpdate("item-1", domain.PendingUpdate{FieldID: "field_status", OptionID: "opt_done"})
	h.manager.Wait()
	remote.takePushes()

	h.manager.Destroy()

	assert.False(t, h.manager.AutoSyncActive())
	assert.False(t, h.manager.HasPendingUpdates())
	h.clock.Advance(time.Minute)
	assert.Equal(t, 0, remote.fetchCount())
	assert.Empty(t, remote.takePushes())
}

func TestMoveCard(t *testing.T) {
	h := newHarness(t, newFakeRemote())
	h.store.SetProject(statusProject())
	h.store.SetItems([]*domain.Item{remoteItem("item-1", "Todo")})

	require.True(t, h.manager.MoveCard("item-1", "opt_done"))
	h.manager.Wait()

	column, ok := h.store.ColumnFor("item-1")
	require.True(t, ok)
	assert.Equal(t, "opt_done", column)

	pushes := h.remote.takePushes()
	require.Len(t, pushes, 1)
	assert.Equal(t, "field_status", pushes[0].FieldID)
	assert.Equal(t, "opt_done", pushes[0].OptionID)
	assert.False(t, h.manager.HasPendingUpdates())
}

func TestMoveCard_Noops(t *testing.T) {
	h := newHarness(t, newFakeRemote())

	// No project loaded yet.
	assert.False(t, h.manager.MoveCard("item-1", "opt_done"))

	h.store.SetProject(statusProject())
	h.store.SetItems([]*domain.Item{remoteItem("item-1", "Todo")})

	assert.False(t, h.manager.MoveCard("item-1", "opt_missing"))
	assert.False(t, h.manager.MoveCard("item-missing", "opt_done"))
	h.manager.Wait()

	assert.Empty(t, h.remote.takePushes())
	assert.False(t, h.manager.HasPendingUpdates())
	column, _ := h.store.ColumnFor("item-1")
	assert.Equal(t, "opt_todo", column)
}

func TestNew_Defaults(t *testing.T) {
	m := New(Config{ProjectID: testProjectID, Store: store.New(), Cache: cache.New(), Remote: newFakeRemote()})

	assert.Equal(t, testProjectID, m.ProjectID())
	assert.Equal(t, DefaultPushConcurrency, m.pushLimit)
	assert.IsType(t, clock.Real{}, m.clock)
	assert.IsType(t, LogNotifier{}, m.notifier)
}

func ptr[T any](v T) *T { return &v }
