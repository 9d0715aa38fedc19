package store

import "github.com/h0rv/ghpsync/internal/domain"

// ItemPatch is a partial update for an item. Nil fields are left unchanged.
// FieldValues are merged per field name.
type ItemPatch struct {
	Title     *string
	Body      *string
	State     *string
	Labels    *[]string
	Milestone *string
	Assignees *[]domain.Assignee

	FieldValues map[string]domain.FieldValue
}

func (p ItemPatch) apply(item *domain.Item) {
	if p.Title != nil {
		item.Title = *p.Title
	}
	if p.Body != nil {
		item.Body = *p.Body
	}
	if p.State != nil {
		item.State = *p.State
	}
	if p.Labels != nil {
		item.Labels = append([]string(nil), (*p.Labels)...)
	}
	if p.Milestone != nil {
		item.Milestone = *p.Milestone
	}
	if p.Assignees != nil {
		item.Assignees = append([]domain.Assignee(nil), (*p.Assignees)...)
	}
	for name, value := range p.FieldValues {
		item.SetFieldValue(name, value)
	}
}
