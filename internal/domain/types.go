// Package domain defines the normalized domain types for a GitHub Projects v2 board.
// These types represent the core concepts independent of the GitHub GraphQL API structure.
package domain

import (
	"strings"
	"time"
)

// Project represents a GitHub Project v2 instance.
type Project struct {
	ID     string  // GitHub Project node ID
	Number int     // Project number within the owner's namespace
	Title  string  // Project title
	URL    string  // Project URL
	Owner  string  // Owner login (organization or user)
	Fields []Field // Field definitions in project order
}

// FieldByName returns the field with the given name (case-insensitive), or nil.
func (p *Project) FieldByName(name string) *Field {
	if p == nil {
		return nil
	}
	for i := range p.Fields {
		if strings.EqualFold(p.Fields[i].Name, name) {
			return &p.Fields[i]
		}
	}
	return nil
}

// FieldKind is the data type of a project field.
type FieldKind string

const (
	FieldKindText         FieldKind = "text"
	FieldKindNumber       FieldKind = "number"
	FieldKindDate         FieldKind = "date"
	FieldKindSingleSelect FieldKind = "single-select"
	FieldKindIteration    FieldKind = "iteration"
)

// Field represents a project field definition with its metadata.
type Field struct {
	ID      string    // GitHub field node ID
	Name    string    // Field name (e.g., "Status")
	Kind    FieldKind // Field data type
	Options []Option  // Available options for single-select fields, in project order
}

// Option looks up a single-select option by ID.
func (f *Field) Option(optionID string) (Option, bool) {
	for _, opt := range f.Options {
		if opt.ID == optionID {
			return opt, true
		}
	}
	return Option{}, false
}

// Option represents a single option value for a single-select field.
type Option struct {
	ID    string // GitHub option node ID
	Name  string // Option name displayed to users (e.g., "In Progress", "Done")
	Color string // Option color (e.g., "GREEN", "YELLOW")
}

// ItemType is the kind of content behind a project item.
type ItemType string

const (
	ItemTypeIssue       ItemType = "Issue"
	ItemTypePullRequest ItemType = "PullRequest"
	ItemTypeDraftIssue  ItemType = "DraftIssue"
	ItemTypePrivate     ItemType = "Private"
)

// Assignee is a user assigned to an issue or pull request.
type Assignee struct {
	Login     string
	AvatarURL string
}

// Item represents a project item (Issue, PR, or Draft) in a normalized format.
type Item struct {
	ID        string   // GitHub ProjectV2Item node ID
	ContentID string   // Underlying Issue/PR node ID, empty for drafts and private items
	Title     string   // Item title
	Type      ItemType // Content type
	URL       string   // Item URL (may be empty for drafts or private items)
	Repo      string   // Repository nameWithOwner, only for Issue/PR
	Number    int      // Issue/PR number, 0 for drafts and private items
	Body      string
	State     string // OPEN, CLOSED, MERGED
	Author    string
	Labels    []string
	Milestone string
	Assignees []Assignee

	CreatedAt time.Time
	UpdatedAt time.Time
	ClosedAt  time.Time

	CommentCount  int
	ReactionCount int

	// Pull request details; zero for other item types.
	PR *PullRequestDetails

	// FieldValues maps field name to the item's value for that field.
	// There is at most one value per field name.
	FieldValues map[string]FieldValue
}

// PullRequestDetails holds the PR-only attributes of an item.
type PullRequestDetails struct {
	Draft          bool
	Merged         bool
	ReviewDecision string // APPROVED, CHANGES_REQUESTED, REVIEW_REQUIRED
	Additions      int
	Deletions      int
	Reviewers      []string
	CIStatus       string // SUCCESS, FAILURE, PENDING, ERROR, EXPECTED
}

// FieldValue returns the item's value for a field name.
func (i *Item) FieldValue(name string) (FieldValue, bool) {
	v, ok := i.FieldValues[name]
	return v, ok
}

// SetFieldValue sets the value for a field name, replacing any previous value.
func (i *Item) SetFieldValue(name string, value FieldValue) {
	if i.FieldValues == nil {
		i.FieldValues = make(map[string]FieldValue)
	}
	i.FieldValues[name] = value
}

// Clone returns a deep copy of the item.
func (i *Item) Clone() *Item {
	c := *i
	c.Labels = append([]string(nil), i.Labels...)
	c.Assignees = append([]Assignee(nil), i.Assignees...)
	if i.PR != nil {
		pr := *i.PR
		pr.Reviewers = append([]string(nil), i.PR.Reviewers...)
		c.PR = &pr
	}
	if i.FieldValues != nil {
		c.FieldValues = make(map[string]FieldValue, len(i.FieldValues))
		for k, v := range i.FieldValues {
			c.FieldValues[k] = v
		}
	}
	return &c
}

// Column is a board column derived from an option of the status field.
// Items is filled in when the store builds a view; columns never own items.
type Column struct {
	ID    string // Option ID, or FallbackColumnID
	Name  string // Option name, or FallbackColumnName
	Color string
	Items []*Item
}

const (
	// FallbackColumnID identifies the synthetic column used when a project has no status field.
	FallbackColumnID = "all-items"
	// FallbackColumnName is the display name of the fallback column.
	FallbackColumnName = "All Items"
	// StatusFieldName is the conventional name of the field columns are derived from.
	StatusFieldName = "Status"
)

// PendingUpdate is a queued single-select field mutation for one item.
type PendingUpdate struct {
	ProjectID string
	ItemID    string
	FieldID   string
	OptionID  string

	// Seq increases with every queued update; it identifies which update a push belongs to.
	Seq      uint64
	QueuedAt time.Time
}

// ItemPage is one page of project items and the cursor to continue from.
type ItemPage struct {
	Items       []*Item
	EndCursor   string
	HasNextPage bool
}
