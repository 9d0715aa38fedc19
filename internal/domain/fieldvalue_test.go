package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFieldValue_Variants(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		v := TextValue("hello")
		assert.Equal(t, FieldKindText, v.Kind())
		assert.Equal(t, "hello", v.String())
	})

	t.Run("number", func(t *testing.T) {
		v := NumberValue(3.5)
		assert.Equal(t, FieldKindNumber, v.Kind())
		assert.Equal(t, "3.5", v.String())
	})

	t.Run("date drops time of day", func(t *testing.T) {
		v := DateValue(time.Date(2024, 3, 9, 17, 45, 0, 0, time.UTC))
		assert.Equal(t, FieldKindDate, v.Kind())
		assert.Equal(t, "2024-03-09", v.String())
		assert.Equal(t, 0, v.Date().Hour())
	})

	t.Run("single select", func(t *testing.T) {
		v := SingleSelectValue("Done", "opt_done")
		assert.Equal(t, FieldKindSingleSelect, v.Kind())
		assert.Equal(t, "Done", v.Text())
		assert.Equal(t, "opt_done", v.OptionID())
	})

	t.Run("zero value", func(t *testing.T) {
		var v FieldValue
		assert.True(t, v.IsZero())
		assert.Equal(t, "", v.String())
	})
}

func TestItem_SetFieldValueReplaces(t *testing.T) {
	item := &Item{ID: "item_1"}
	item.SetFieldValue("Status", SingleSelectValue("Todo", "opt_todo"))
	item.SetFieldValue("Status", SingleSelectValue("Done", "opt_done"))

	assert.Len(t, item.FieldValues, 1)
	v, ok := item.FieldValue("Status")
	assert.True(t, ok)
	assert.Equal(t, "opt_done", v.OptionID())
}

func TestItem_CloneIsDeep(t *testing.T) {
	item := &Item{
		ID:     "item_1",
		Labels: []string{"bug"},
		PR:     &PullRequestDetails{Reviewers: []string{"alice"}},
	}
	item.SetFieldValue("Status", SingleSelectValue("Todo", "opt_todo"))

	c := item.Clone()
	c.Labels[0] = "feature"
	c.PR.Reviewers[0] = "bob"
	c.SetFieldValue("Status", SingleSelectValue("Done", "opt_done"))

	assert.Equal(t, "bug", item.Labels[0])
	assert.Equal(t, "alice", item.PR.Reviewers[0])
	v, _ := item.FieldValue("Status")
	assert.Equal(t, "Todo", v.Text())
}

func TestProject_FieldByName(t *testing.T) {
	p := &Project{Fields: []Field{{ID: "f1", Name: "Status", Kind: FieldKindSingleSelect}}}
	assert.NotNil(t, p.FieldByName("status"))
	assert.Nil(t, p.FieldByName("Priority"))

	var nilProject *Project
	assert.Nil(t, nilProject.FieldByName("Status"))
}
