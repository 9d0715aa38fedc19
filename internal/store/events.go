package store

import (
	"github.com/h0rv/ghpsync/internal/domain"
	"github.com/h0rv/ghpsync/internal/events"
)

// CardMove is the payload of the CardMoved event.
type CardMove struct {
	CardID     string
	ToColumnID string
}

// Bus holds one typed emitter per store event.
type Bus struct {
	ProjectUpdated events.Emitter[*domain.Project]
	ItemsUpdated   events.Emitter[[]*domain.Item]
	ItemAdded      events.Emitter[*domain.Item]
	ItemRemoved    events.Emitter[string]
	ItemUpdated    events.Emitter[*domain.Item]
	CardMoved      events.Emitter[CardMove]
	StateCleared   events.Emitter[struct{}]
}

func newBus() *Bus {
	return &Bus{}
}

// OnAnyChange subscribes fn to every event and returns a function that
// removes all of those subscriptions.
func (b *Bus) OnAnyChange(fn func()) (unsubscribe func()) {
	project := b.ProjectUpdated.On(func(*domain.Project) { fn() })
	items := b.ItemsUpdated.On(func([]*domain.Item) { fn() })
	added := b.ItemAdded.On(func(*domain.Item) { fn() })
	removed := b.ItemRemoved.On(func(string) { fn() })
	updated := b.ItemUpdated.On(func(*domain.Item) { fn() })
	moved := b.CardMoved.On(func(CardMove) { fn() })
	cleared := b.StateCleared.On(func(struct{}) { fn() })

	return func() {
		b.ProjectUpdated.Off(project)
		b.ItemsUpdated.Off(items)
		b.ItemAdded.Off(added)
		b.ItemRemoved.Off(removed)
		b.ItemUpdated.Off(updated)
		b.CardMoved.Off(moved)
		b.StateCleared.Off(cleared)
	}
}
