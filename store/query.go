package store

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/Jeffail/gabs/v2"
)

type Operator string

const (
	Eq Operator = "=="
	Lt Operator = "<"
	Le Operator = "<="
	Gt Operator = ">"
	Ge Operator = ">="
)

func (o Operator) Valid() bool {
	switch o {
	case Eq, Lt, Le, Gt, Ge:
		return true
	}
	return false
}

// Query filters on a single field. The zero Query matches everything.
type Query struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    string   `json:"value"`
}

// ParseQuery reads a filter written as field, operator, value, e.g.
// "price>=20000" or "category==Kopi".
func ParseQuery(s string) (Query, error) {
	for _, op := range []Operator{Ge, Le, Eq, Lt, Gt} {
		if i := strings.Index(s, string(op)); i > 0 {
			q := Query{
				Field:    strings.TrimSpace(s[:i]),
				Operator: op,
				Value:    strings.TrimSpace(s[i+len(op):]),
			}
			if q.Field != "" {
				return q, nil
			}
		}
	}
	return Query{}, fmt.Errorf("illegal filter %q", s)
}

func (q Query) IsZero() bool {
	return q.Field == ""
}

func (q Query) Validate() error {
	if q.IsZero() {
		return nil
	}
	if !q.Operator.Valid() {
		return fmt.Errorf("illegal operator %q", q.Operator)
	}
	return nil
}

func MatchesJSON(data []byte, query Query) bool {
	if query.IsZero() {
		return true
	}
	j, err := gabs.ParseJSON(data)
	if err != nil {
		return false
	}
	field := j.Path(query.Field).Data()
	switch v := field.(type) {
	case nil:
		return query.Operator == Eq && query.Value == ""
	case string:
		return compareString(v, query.Operator, query.Value)
	case float64:
		floatValue, err := strconv.ParseFloat(query.Value, 64)
		if err != nil {
			return false
		}
		return compareFloat(v, query.Operator, floatValue)
	case bool:
		b, err := strconv.ParseBool(query.Value)
		return err == nil && query.Operator == Eq && v == b
	}
	return false
}

// Filter keeps the items matching query, in place.
func Filter(items []CollectionItem, query Query) []CollectionItem {
	if query.IsZero() {
		return items
	}
	kept := items[:0]
	for _, item := range items {
		if MatchesJSON(item.Value, query) {
			kept = append(kept, item)
		}
	}
	return kept
}

// Select applies query, order and limit in that order.
func Select(items []CollectionItem, q Query, o Order, l Limit) ([]CollectionItem, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	items = Filter(items, q)
	if o.OrderBy != "" {
		OrderJSON(items, o)
	}
	return l.Apply(items), nil
}

// Selection narrows a collection subscription. The zero Selection is the
// whole collection in identifier order.
type Selection struct {
	Query Query `json:"query"`
	Order Order `json:"order"`
	Limit Limit `json:"limit"`
}

func (s Selection) IsZero() bool {
	return s == Selection{}
}

func (s Selection) Validate() error {
	if err := s.Query.Validate(); err != nil {
		return err
	}
	if s.Limit.Limit < 0 || s.Limit.Offset < 0 {
		return fmt.Errorf("negative limit or offset")
	}
	return nil
}

// Ordered reports whether items come in field order rather than
// identifier order.
func (s Selection) Ordered() bool {
	return s.Order.OrderBy != ""
}

// String identifies the selection among subscriptions to the same key.
func (s Selection) String() string {
	if s.IsZero() {
		return ""
	}
	data, _ := json.Marshal(s)
	return string(data)
}

func compareString(a string, operator Operator, b string) bool {
	switch operator {
	case Eq:
		return a == b
	case Ge:
		return a >= b
	case Gt:
		return a > b
	case Le:
		return a <= b
	case Lt:
		return a < b
	}
	return false
}

func compareFloat(a float64, operator Operator, b float64) bool {
	switch operator {
	case Eq:
		return a == b
	case Ge:
		return a >= b
	case Gt:
		return a > b
	case Le:
		return a <= b
	case Lt:
		return a < b
	}
	return false
}
