package syncer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/h0rv/ghpsync/internal/cache"
	"github.com/h0rv/ghpsync/internal/clock"
	"github.com/h0rv/ghpsync/internal/domain"
	"github.com/h0rv/ghpsync/internal/store"
)

// DefaultPushConcurrency bounds how many pending updates are pushed at once.
const DefaultPushConcurrency = 4

// ItemsCacheKey is the cache key a project's items are stored under.
func ItemsCacheKey(projectID string) string {
	return "items:" + projectID
}

// Config wires a Manager to its collaborators. Store, Cache and Remote are
// required; the rest default to the real clock, a stderr logger and a
// LogNotifier.
type Config struct {
	ProjectID       string
	Store           *store.Store
	Cache           *cache.Cache
	Remote          Remote
	Scheduler       clock.Scheduler
	Logger          *log.Logger
	Notifier        Notifier
	PushConcurrency int
}

// Manager reconciles one project's board with GitHub.
type Manager struct {
	projectID string
	store     *store.Store
	cache     *cache.Cache
	remote    Remote
	clock     clock.Scheduler
	logger    *log.Logger
	notifier  Notifier
	pushLimit int

	mu       sync.Mutex
	syncing  bool
	pending  map[string]domain.PendingUpdate
	seq      uint64
	timer    clock.Timer
	timerGen uint64
	lastSync time.Time

	pushes sync.WaitGroup
}

// New creates a Manager. No timer is started until StartAutoSync.
func New(cfg Config) *Manager {
	m := &Manager{
		projectID: cfg.ProjectID,
		store:     cfg.Store,
		cache:     cfg.Cache,
		remote:    cfg.Remote,
		clock:     cfg.Scheduler,
		logger:    cfg.Logger,
		notifier:  cfg.Notifier,
		pushLimit: cfg.PushConcurrency,
		pending:   make(map[string]domain.PendingUpdate),
	}
	if m.clock == nil {
		m.clock = clock.Real{}
	}
	if m.logger == nil {
		m.logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	if m.notifier == nil {
		m.notifier = LogNotifier{Logger: m.logger}
	}
	if m.pushLimit <= 0 {
		m.pushLimit = DefaultPushConcurrency
	}
	return m
}

// ProjectID returns the project this manager syncs.
func (m *Manager) ProjectID() string {
	return m.projectID
}

// StartAutoSync runs a background sync every interval. A non-positive
// interval does nothing. Starting again replaces the previous timer.
func (m *Manager) StartAutoSync(interval time.Duration) {
	if interval <= 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopTimerLocked()
	m.timerGen++
	m.armLocked(m.timerGen, interval)
	m.logger.Printf("auto-sync every %s", interval)
}

// StopAutoSync cancels the auto-sync timer. It is safe to call when no
// timer is running. A sync already in flight still completes.
func (m *Manager) StopAutoSync() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopTimerLocked()
}

// AutoSyncActive reports whether an auto-sync timer is armed.
func (m *Manager) AutoSyncActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timer != nil
}

func (m *Manager) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	// Ticks from an older generation that already fired must not re-arm.
	m.timerGen++
}

func (m *Manager) armLocked(gen uint64, interval time.Duration) {
	m.timer = m.clock.After(interval, func() { m.tick(gen, interval) })
}

// tick re-arms the timer first so a slow sync does not stretch the period;
// an overlapping tick is skipped by the syncing flag.
func (m *Manager) tick(gen uint64, interval time.Duration) {
	m.mu.Lock()
	if gen != m.timerGen {
		m.mu.Unlock()
		return
	}
	m.armLocked(gen, interval)
	m.mu.Unlock()

	if err := m.runSync(context.Background(), true); err != nil {
		m.logger.Printf("background sync failed: %v", err)
	}
}

// Sync pushes pending updates, then pulls every item of the project into
// the store. If a sync is already running it returns nil without doing
// anything. Pull failures are reported to the Notifier and returned; push
// failures only leave their updates queued.
func (m *Manager) Sync(ctx context.Context) error {
	return m.runSync(ctx, false)
}

func (m *Manager) runSync(ctx context.Context, background bool) error {
	if !m.beginSync() {
		m.logger.Println("sync already in progress, skipping")
		return nil
	}
	defer m.endSync()

	runID := uuid.NewString()[:8]
	m.logger.Printf("sync %s: started", runID)

	if report := m.PushPendingUpdates(ctx); len(report.Failed) > 0 {
		m.logger.Printf("sync %s: %d pending update(s) still queued", runID, len(report.Failed))
	}

	n, err := m.pull(ctx)
	if err != nil {
		m.logger.Printf("sync %s: pull failed: %v", runID, err)
		if !background {
			m.notifier.Failure("Sync failed", err)
		}
		return fmt.Errorf("sync project %s: %w", m.projectID, err)
	}

	m.logger.Printf("sync %s: loaded %d items", runID, n)
	return nil
}

func (m *Manager) beginSync() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.syncing {
		return false
	}
	m.syncing = true
	return true
}

func (m *Manager) endSync() {
	m.mu.Lock()
	m.syncing = false
	m.mu.Unlock()
}

// Syncing reports whether a sync or forced refresh is running.
func (m *Manager) Syncing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.syncing
}

// pull drops this project's cached items, fetches them again and writes
// them into the store.
func (m *Manager) pull(ctx context.Context) (int, error) {
	key := ItemsCacheKey(m.projectID)
	m.cache.Invalidate(key)

	items, err := cache.Fetch(ctx, m.cache, key, m.fetchAllItems)
	if err != nil {
		return 0, err
	}

	// The store mutates items optimistically; keep the cached copies intact.
	local := make([]*domain.Item, len(items))
	for i, item := range items {
		local[i] = item.Clone()
	}
	m.store.SetItems(local)

	m.mu.Lock()
	m.lastSync = m.clock.Now()
	m.mu.Unlock()
	return len(local), nil
}

func (m *Manager) fetchAllItems(ctx context.Context) ([]*domain.Item, error) {
	var all []*domain.Item
	cursor := ""
	for {
		page, err := m.remote.FetchItems(ctx, m.projectID, cursor)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Items...)
		if !page.HasNextPage || page.EndCursor == "" {
			return all, nil
		}
		cursor = page.EndCursor
	}
}

// LastSync returns when items were last pulled successfully, or the zero
// time if they never were.
func (m *Manager) LastSync() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSync
}

// QueueUpdate queues update for itemID, replacing any update already queued
// for that item, and pushes it in the background. A successful push removes
// the update unless a newer one replaced it in the meantime. A failed push
// is logged and stays queued for the next sync.
func (m *Manager) QueueUpdate(itemID string, update domain.PendingUpdate) {
	m.mu.Lock()
	m.seq++
	update.ItemID = itemID
	if update.ProjectID == "" {
		update.ProjectID = m.projectID
	}
	update.Seq = m.seq
	update.QueuedAt = m.clock.Now()
	m.pending[itemID] = update
	m.mu.Unlock()

	m.pushes.Add(1)
	go func() {
		defer m.pushes.Done()
		if err := m.push(context.Background(), update); err != nil {
			m.logger.Printf("push for item %s failed, kept queued: %v", itemID, err)
		}
	}()
}

// MoveCard moves an item to a column in the store right away and queues the
// matching status change for GitHub. It does nothing when the board has no
// status field or the column is not one of its options.
func (m *Manager) MoveCard(itemID, columnID string) bool {
	field := m.store.StatusField()
	if field == nil {
		return false
	}
	if _, ok := field.Option(columnID); !ok {
		return false
	}
	if _, ok := m.store.Item(itemID); !ok {
		return false
	}

	m.store.MoveCard(itemID, columnID)
	m.QueueUpdate(itemID, domain.PendingUpdate{FieldID: field.ID, OptionID: columnID})
	return true
}

func (m *Manager) push(ctx context.Context, u domain.PendingUpdate) error {
	if err := m.remote.UpdateSingleSelectField(ctx, u.ProjectID, u.ItemID, u.FieldID, u.OptionID); err != nil {
		return err
	}

	m.mu.Lock()
	if current, ok := m.pending[u.ItemID]; ok && current.Seq == u.Seq {
		delete(m.pending, u.ItemID)
	}
	m.mu.Unlock()
	return nil
}

// PushReport is the outcome of one push cycle.
type PushReport struct {
	Pushed []string         // Item IDs pushed and dequeued, sorted
	Failed map[string]error // Item ID -> push error; these stay queued
}

// Err joins the per-item failures, or returns nil if every push succeeded.
func (r PushReport) Err() error {
	ids := make([]string, 0, len(r.Failed))
	for id := range r.Failed {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	errs := make([]error, 0, len(ids))
	for _, id := range ids {
		errs = append(errs, fmt.Errorf("item %s: %w", id, r.Failed[id]))
	}
	return errors.Join(errs...)
}

// PushPendingUpdates pushes every queued update independently. Each success
// dequeues only its own update; failures are logged, recorded in the report
// and left queued.
func (m *Manager) PushPendingUpdates(ctx context.Context) PushReport {
	snapshot := m.PendingUpdates()
	report := PushReport{Failed: make(map[string]error)}
	if len(snapshot) == 0 {
		return report
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(m.pushLimit)
	for _, u := range snapshot {
		g.Go(func() error {
			err := m.push(ctx, u)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				m.logger.Printf("push for item %s failed: %v", u.ItemID, err)
				report.Failed[u.ItemID] = err
				return nil
			}
			report.Pushed = append(report.Pushed, u.ItemID)
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(report.Pushed)
	return report
}

// HasPendingUpdates reports whether any update is queued.
func (m *Manager) HasPendingUpdates() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending) > 0
}

// PendingUpdates returns the queued updates ordered by queue time.
func (m *Manager) PendingUpdates() []domain.PendingUpdate {
	m.mu.Lock()
	out := make([]domain.PendingUpdate, 0, len(m.pending))
	for _, u := range m.pending {
		out = append(out, u)
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// ForceRefresh discards every queued update without pushing it, clears the
// whole cache and pulls the project again. If a sync is already running the
// pull is skipped; the discard still happens.
func (m *Manager) ForceRefresh(ctx context.Context) error {
	m.mu.Lock()
	dropped := len(m.pending)
	m.pending = make(map[string]domain.PendingUpdate)
	m.mu.Unlock()
	if dropped > 0 {
		m.logger.Printf("force refresh: discarded %d pending update(s)", dropped)
	}

	m.cache.InvalidateAll()

	if !m.beginSync() {
		m.logger.Println("sync already in progress, skipping refresh pull")
		return nil
	}
	defer m.endSync()

	n, err := m.pull(ctx)
	if err != nil {
		m.logger.Printf("force refresh failed: %v", err)
		m.notifier.Failure("Refresh failed", err)
		return fmt.Errorf("refresh project %s: %w", m.projectID, err)
	}

	m.logger.Printf("force refresh: loaded %d items", n)
	m.notifier.Success("Board refreshed")
	return nil
}

// Wait blocks until every background push started by QueueUpdate settles.
func (m *Manager) Wait() {
	m.pushes.Wait()
}

// Destroy stops auto-sync and discards queued updates. It does not flush
// them and does not wait for in-flight work.
func (m *Manager) Destroy() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopTimerLocked()
	m.pending = make(map[string]domain.PendingUpdate)
}
