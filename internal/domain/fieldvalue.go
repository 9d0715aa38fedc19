package domain

import (
	"strconv"
	"time"
)

// FieldValue is an item's value for one field. It is a closed sum type over
// text, number, date and single-select values; use Kind to switch on it.
type FieldValue struct {
	kind     FieldKind
	text     string
	number   float64
	date     time.Time
	optionID string
}

// TextValue builds a text field value.
func TextValue(s string) FieldValue {
	return FieldValue{kind: FieldKindText, text: s}
}

// NumberValue builds a number field value.
func NumberValue(n float64) FieldValue {
	return FieldValue{kind: FieldKindNumber, number: n}
}

// DateValue builds a date field value. Only the calendar day is kept.
func DateValue(t time.Time) FieldValue {
	y, m, d := t.Date()
	return FieldValue{kind: FieldKindDate, date: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// SingleSelectValue builds a single-select value from an option name and ID.
func SingleSelectValue(name, optionID string) FieldValue {
	return FieldValue{kind: FieldKindSingleSelect, text: name, optionID: optionID}
}

// Kind reports which variant the value holds. The zero FieldValue has an empty kind.
func (v FieldValue) Kind() FieldKind { return v.kind }

// IsZero reports whether v holds no value.
func (v FieldValue) IsZero() bool { return v.kind == "" }

// Text returns the text of a text value or the option name of a single-select value.
func (v FieldValue) Text() string { return v.text }

// Number returns the number of a number value.
func (v FieldValue) Number() float64 { return v.number }

// Date returns the day of a date value.
func (v FieldValue) Date() time.Time { return v.date }

// OptionID returns the option ID of a single-select value.
func (v FieldValue) OptionID() string { return v.optionID }

// String renders the value for display.
func (v FieldValue) String() string {
	switch v.kind {
	case FieldKindText, FieldKindSingleSelect:
		return v.text
	case FieldKindNumber:
		return strconv.FormatFloat(v.number, 'f', -1, 64)
	case FieldKindDate:
		return v.date.Format(time.DateOnly)
	default:
		return ""
	}
}
