// Package store provides the in-memory board state for one GitHub Project.
// It is the single point of mutation for project fields and items, derives
// kanban columns from the status field, and publishes every change through
// typed events so views can re-render.
package store

import (
	"strings"
	"sync"

	"github.com/h0rv/ghpsync/internal/domain"
)

// Store manages the in-memory state of a GitHub Project board.
// All methods are safe for concurrent use. Operations on unknown items or
// columns are silent no-ops; they race with remote refreshes during normal
// use and are not errors.
type Store struct {
	mu sync.RWMutex

	// Project metadata
	project     *domain.Project
	statusField *domain.Field
	columns     []domain.Column // Column definitions, without items

	// Item storage, in insertion order
	items map[string]*domain.Item
	order []string

	statusFieldName string
	events          *Bus
}

// Option configures a Store.
type Option func(*Store)

// WithStatusFieldName overrides the name of the single-select field columns
// are derived from. The match is case-insensitive.
func WithStatusFieldName(name string) Option {
	return func(s *Store) {
		if name != "" {
			s.statusFieldName = name
		}
	}
}

// New creates a new empty Store instance.
func New(opts ...Option) *Store {
	s := &Store{
		items:           make(map[string]*domain.Item),
		statusFieldName: domain.StatusFieldName,
		events:          newBus(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Events returns the bus the store publishes changes on.
func (s *Store) Events() *Bus {
	return s.events
}

// SetProject replaces the current project and re-derives the column list.
func (s *Store) SetProject(project *domain.Project) {
	s.mu.Lock()
	s.project = project
	s.statusField = findStatusField(project, s.statusFieldName)
	s.columns = deriveColumns(s.statusField)
	s.mu.Unlock()

	s.events.ProjectUpdated.Emit(project)
}

// Project returns the current project, or nil if not set.
func (s *Store) Project() *domain.Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.project
}

// StatusField returns the field columns are derived from, or nil when the
// board uses the fallback column.
func (s *Store) StatusField() *domain.Field {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.statusField
}

// SetItems replaces the entire item collection.
func (s *Store) SetItems(items []*domain.Item) {
	s.mu.Lock()
	s.items = make(map[string]*domain.Item, len(items))
	s.order = make([]string, 0, len(items))
	for _, item := range items {
		if _, dup := s.items[item.ID]; !dup {
			s.order = append(s.order, item.ID)
		}
		s.items[item.ID] = item
	}
	snapshot := s.itemsLocked()
	s.mu.Unlock()

	s.events.ItemsUpdated.Emit(snapshot)
}

// Items returns all items in insertion order.
func (s *Store) Items() []*domain.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.itemsLocked()
}

// Item retrieves an item by ID.
func (s *Store) Item(id string) (*domain.Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	return item, ok
}

// Len returns the number of items.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// AddItem inserts an item. An item with the same ID is overwritten in place
// and keeps its position.
func (s *Store) AddItem(item *domain.Item) {
	s.mu.Lock()
	if _, exists := s.items[item.ID]; !exists {
		s.order = append(s.order, item.ID)
	}
	s.items[item.ID] = item
	s.mu.Unlock()

	s.events.ItemAdded.Emit(item)
}

// RemoveItem deletes an item by ID.
func (s *Store) RemoveItem(id string) {
	s.mu.Lock()
	if _, exists := s.items[id]; !exists {
		s.mu.Unlock()
		return
	}
	delete(s.items, id)
	for i, itemID := range s.order {
		if itemID == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	s.events.ItemRemoved.Emit(id)
}

// UpdateItem merges patch into an existing item.
func (s *Store) UpdateItem(id string, patch ItemPatch) {
	s.mu.Lock()
	item, exists := s.items[id]
	if !exists {
		s.mu.Unlock()
		return
	}
	patch.apply(item)
	s.mu.Unlock()

	s.events.ItemUpdated.Emit(item)
}

// MoveCard performs an optimistic move of a card to a column by setting the
// card's status field value to the column's option.
// Unknown cards, unknown columns and boards without a status field are ignored.
func (s *Store) MoveCard(cardID, toColumnID string) {
	s.mu.Lock()
	item, exists := s.items[cardID]
	if !exists || s.statusField == nil {
		s.mu.Unlock()
		return
	}
	option, ok := s.statusField.Option(toColumnID)
	if !ok {
		s.mu.Unlock()
		return
	}
	item.SetFieldValue(s.statusField.Name, domain.SingleSelectValue(option.Name, option.ID))
	s.mu.Unlock()

	s.events.CardMoved.Emit(CardMove{CardID: cardID, ToColumnID: toColumnID})
}

// Columns returns the board columns with their current items. Membership is
// recomputed from item field values on every call.
func (s *Store) Columns() []domain.Column {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Column, len(s.columns))
	index := make(map[string]int, len(s.columns))
	for i, col := range s.columns {
		result[i] = col
		result[i].Items = []*domain.Item{}
		index[col.Name] = i
	}

	for _, id := range s.order {
		item := s.items[id]
		if s.statusField == nil {
			if len(result) > 0 {
				result[0].Items = append(result[0].Items, item)
			}
			continue
		}
		value, ok := item.FieldValue(s.statusField.Name)
		if !ok {
			continue
		}
		if i, ok := index[value.Text()]; ok {
			result[i].Items = append(result[i].Items, item)
		}
	}
	return result
}

// ColumnFor returns the ID of the column an item currently belongs to.
func (s *Store) ColumnFor(itemID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, exists := s.items[itemID]
	if !exists || len(s.columns) == 0 {
		return "", false
	}
	if s.statusField == nil {
		return domain.FallbackColumnID, true
	}
	value, ok := item.FieldValue(s.statusField.Name)
	if !ok {
		return "", false
	}
	for _, col := range s.columns {
		if col.Name == value.Text() {
			return col.ID, true
		}
	}
	return "", false
}

// Clear resets the store to its initial empty state.
func (s *Store) Clear() {
	s.mu.Lock()
	s.project = nil
	s.statusField = nil
	s.columns = nil
	s.items = make(map[string]*domain.Item)
	s.order = nil
	s.mu.Unlock()

	s.events.StateCleared.Emit(struct{}{})
}

func (s *Store) itemsLocked() []*domain.Item {
	items := make([]*domain.Item, 0, len(s.order))
	for _, id := range s.order {
		items = append(items, s.items[id])
	}
	return items
}

// findStatusField returns the single-select field with the given name.
func findStatusField(project *domain.Project, name string) *domain.Field {
	if project == nil {
		return nil
	}
	for i := range project.Fields {
		field := &project.Fields[i]
		if field.Kind == domain.FieldKindSingleSelect && strings.EqualFold(field.Name, name) {
			return field
		}
	}
	return nil
}

// deriveColumns builds one column per status option, or the single fallback
// column when the project has no status field.
func deriveColumns(status *domain.Field) []domain.Column {
	if status == nil {
		return []domain.Column{{ID: domain.FallbackColumnID, Name: domain.FallbackColumnName}}
	}
	columns := make([]domain.Column, 0, len(status.Options))
	for _, opt := range status.Options {
		columns = append(columns, domain.Column{ID: opt.ID, Name: opt.Name, Color: opt.Color})
	}
	return columns
}
