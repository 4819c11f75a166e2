package livesync

import (
	"sort"

	"github.com/golang/glog"
)

// Decoder turns one stored document into a typed record. It fills defaults
// for missing fields and fails only on documents it cannot read at all.
type Decoder[T any] func(id string, data []byte) (T, error)

// View is the typed mirror of a collection, keyed by document identifier.
type View[T any] map[string]T

// Decode builds a view from a snapshot. Documents the decoder rejects are
// left out.
func Decode[T any](snapshot Snapshot, decode Decoder[T]) View[T] {
	view, _ := decodeInOrder(snapshot, decode)
	return view
}

// decodeInOrder also returns the kept identifiers in snapshot order.
func decodeInOrder[T any](snapshot Snapshot, decode Decoder[T]) (View[T], []string) {
	view := make(View[T], len(snapshot))
	ids := make([]string, 0, len(snapshot))
	for _, item := range snapshot {
		id := item.ID()
		record, err := decode(id, item.Value)
		if err != nil {
			glog.Warningf("[livesync] skipping %s: %v", item.Key, err)
			continue
		}
		if _, dup := view[id]; !dup {
			ids = append(ids, id)
		}
		view[id] = record
	}
	return view, ids
}

func (v View[T]) Get(id string) (T, bool) {
	record, ok := v[id]
	return record, ok
}

// IDs returns the identifiers in ascending order.
func (v View[T]) IDs() []string {
	ids := make([]string, 0, len(v))
	for id := range v {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Items returns the records ordered by identifier.
func (v View[T]) Items() []T {
	items := make([]T, 0, len(v))
	for _, id := range v.IDs() {
		items = append(items, v[id])
	}
	return items
}

func (v View[T]) clone() View[T] {
	c := make(View[T], len(v))
	for id, record := range v {
		c[id] = record
	}
	return c
}
