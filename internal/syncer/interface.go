// Package syncer keeps the local board store consistent with the remote
// project.
//
// A Manager pulls items from the remote into the store, pushes queued
// single-select changes back, and can run pulls on a repeating timer:
//
//	m := syncer.New(syncer.Config{ProjectID: id, Store: st, Cache: c, Remote: client})
//	m.StartAutoSync(time.Minute)
//	defer m.Destroy()
//
// Local edits are optimistic. The store is changed first, the change is
// queued, and the queue is pushed on the next sync. Failed pushes stay queued
// until a later sync succeeds or ForceRefresh discards them; there is no
// inline retry or backoff.
package syncer

import (
	"context"
	"log"

	"github.com/h0rv/ghpsync/internal/domain"
)

// Remote is the subset of the GitHub client the manager depends on.
//
// Both methods return an error for transport failures, GraphQL error
// envelopes and empty results; the manager treats them all the same.
type Remote interface {
	// FetchItems returns one page of items. An empty cursor requests the
	// first page; the returned EndCursor continues while HasNextPage is set.
	FetchItems(ctx context.Context, projectID, cursor string) (domain.ItemPage, error)

	// UpdateSingleSelectField sets one item's single-select field to an option.
	UpdateSingleSelectField(ctx context.Context, projectID, itemID, fieldID, optionID string) error
}

// Notifier surfaces user-visible outcomes. Background failures are not sent
// here; they only reach the log.
type Notifier interface {
	Success(msg string)
	Failure(msg string, err error)
}

// LogNotifier writes notifications to a logger.
type LogNotifier struct {
	Logger *log.Logger
}

// Success logs msg.
func (n LogNotifier) Success(msg string) {
	n.Logger.Println(msg)
}

// Failure logs msg with err.
func (n LogNotifier) Failure(msg string, err error) {
	n.Logger.Printf("%s: %v", msg, err)
}
