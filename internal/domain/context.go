package domain

import (
	"strconv"
	"strings"
)

// FieldKind is the data type of a structured fact.
type FieldKind string

const (
	KindString  FieldKind = "string"
	KindInteger FieldKind = "integer"
	KindList    FieldKind = "list"
)

// FieldValue is one structured fact stored under a normalized key.
// Exactly one of Text, Number or List is meaningful, selected by Kind.
type FieldValue struct {
	Kind   FieldKind `json:"kind"`
	Text   string    `json:"text,omitempty"`
	Number int       `json:"number,omitempty"`
	List   []string  `json:"list,omitempty"`
}

// StringValue builds a string-kind fact.
func StringValue(s string) FieldValue {
	return FieldValue{Kind: KindString, Text: s}
}

// IntValue builds an integer-kind fact.
func IntValue(n int) FieldValue {
	return FieldValue{Kind: KindInteger, Number: n}
}

// ListValue builds a list-kind fact.
func ListValue(items ...string) FieldValue {
	return FieldValue{Kind: KindList, List: items}
}

// AppendUnique returns the list value extended with item unless it is
// already present. The dedup check is exact-string-match on purpose;
// order of first appearance is preserved.
func (v FieldValue) AppendUnique(item string) FieldValue {
	for _, existing := range v.List {
		if existing == item {
			return v
		}
	}
	out := make([]string, 0, len(v.List)+1)
	out = append(out, v.List...)
	out = append(out, item)
	return FieldValue{Kind: KindList, List: out}
}

// Display renders the value for prompt context blocks.
func (v FieldValue) Display() string {
	switch v.Kind {
	case KindInteger:
		return strconv.Itoa(v.Number)
	case KindList:
		return strings.Join(v.List, "، ")
	default:
		return v.Text
	}
}
