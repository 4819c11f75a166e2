package store

import (
	"sort"

	"github.com/Jeffail/gabs/v2"
)

type Order struct {
	OrderBy   string `json:"orderBy"`
	Ascending bool   `json:"ascending"`
}

// OrderJSON sorts items by the OrderBy field. Items missing the field come
// first when ascending.
func OrderJSON(items []CollectionItem, order Order) {
	values := make(map[string]interface{}, len(items))
	for _, item := range items {
		if j, err := gabs.ParseJSON(item.Value); err == nil {
			values[item.Key] = j.Path(order.OrderBy).Data()
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		if !order.Ascending {
			i, j = j, i
		}
		valueA := values[items[i].Key]
		valueB := values[items[j].Key]
		if valueA == nil && valueB != nil {
			return true
		}
		if valueB == nil {
			return false
		}
		return Less(valueA, valueB)
	})
}

func Less(a interface{}, b interface{}) bool {
	switch a := a.(type) {
	case float64:
		b, ok := b.(float64)
		return ok && a < b
	case string:
		b, ok := b.(string)
		return ok && a < b
	default:
		return false
	}
}

// SortByKey orders items by key, which for ULID identifiers is creation order.
func SortByKey(items []CollectionItem) {
	sort.Slice(items, func(i, j int) bool {
		return items[i].Key < items[j].Key
	})
}
