// Package storetest holds the behavior every store.Store backend must share.
package storetest

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/go-playground/assert/v2"

	"github.com/imba3r/kedai/store"
)

const menuItems = "artifacts/app/public/data/menuItems"

// Run exercises newStore against the store contract. Each subtest gets a
// fresh store.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("AddAssignsIdentifier", func(t *testing.T) { testAdd(t, newStore(t)) })
	t.Run("SetGetDelete", func(t *testing.T) { testSetGetDelete(t, newStore(t)) })
	t.Run("UpdateMergesFields", func(t *testing.T) { testUpdate(t, newStore(t)) })
	t.Run("UpdateMissing", func(t *testing.T) { testUpdateMissing(t, newStore(t)) })
	t.Run("MergeCreates", func(t *testing.T) { testMerge(t, newStore(t)) })
	t.Run("ItemsSkipsSubCollections", func(t *testing.T) { testItems(t, newStore(t)) })
	t.Run("ItemsQuery", func(t *testing.T) { testItemsQuery(t, newStore(t)) })
	t.Run("InvalidKeys", func(t *testing.T) { testInvalidKeys(t, newStore(t)) })
}

func collection(t *testing.T, s store.Store, key string) store.Collection {
	c, err := s.Collection(key)
	if err != nil {
		t.Fatalf("collection %s: %v", key, err)
	}
	return c
}

func document(t *testing.T, s store.Store, key string) store.Document {
	d, err := s.Document(key)
	if err != nil {
		t.Fatalf("document %s: %v", key, err)
	}
	return d
}

func fields(t *testing.T, data []byte) map[string]interface{} {
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal %s: %v", data, err)
	}
	return m
}

func testAdd(t *testing.T, s store.Store) {
	defer s.Close()
	c := collection(t, s, menuItems)

	first, err := c.Add([]byte(`{"name":"Espresso","price":18000,"category":"Kopi"}`))
	assert.Equal(t, nil, err)
	second, err := c.Add([]byte(`{"name":"Latte","price":25000,"category":"Kopi"}`))
	assert.Equal(t, nil, err)
	assert.NotEqual(t, first.Key(), second.Key())

	parent, err := store.CollectionKey(first.Key())
	assert.Equal(t, nil, err)
	assert.Equal(t, menuItems, parent)

	items, err := c.Items(store.Query{}, store.Order{}, store.Limit{})
	assert.Equal(t, nil, err)
	assert.Equal(t, 2, len(items))
	// Identifiers sort in creation order.
	assert.Equal(t, first.Key(), items[0].Key)
	assert.Equal(t, "Espresso", fields(t, items[0].Value)["name"])

	_, err = c.Add([]byte(`"not an object"`))
	assert.NotEqual(t, nil, err)
}

func testSetGetDelete(t *testing.T, s store.Store) {
	defer s.Close()
	d := document(t, s, menuItems+"/x1")

	_, err := d.Get()
	assert.Equal(t, true, errors.Is(err, store.ErrNotFound))

	assert.Equal(t, nil, d.Set([]byte(`{"name":"Latte","price":25000}`)))
	data, err := d.Get()
	assert.Equal(t, nil, err)
	assert.Equal(t, float64(25000), fields(t, data)["price"])

	assert.Equal(t, nil, d.Set([]byte(`{"name":"Mocha"}`)))
	data, err = d.Get()
	assert.Equal(t, nil, err)
	assert.Equal(t, map[string]interface{}{"name": "Mocha"}, fields(t, data))

	assert.Equal(t, nil, d.Delete())
	_, err = d.Get()
	assert.Equal(t, true, errors.Is(err, store.ErrNotFound))
	// Deleting twice is not an error.
	assert.Equal(t, nil, d.Delete())
}

func testUpdate(t *testing.T, s store.Store) {
	defer s.Close()
	d := document(t, s, menuItems+"/x1")
	assert.Equal(t, nil, d.Set([]byte(`{"name":"Latte","price":25000}`)))

	assert.Equal(t, nil, d.Update([]byte(`{"price":27000}`)))
	data, err := d.Get()
	assert.Equal(t, nil, err)
	assert.Equal(t, map[string]interface{}{"name": "Latte", "price": float64(27000)}, fields(t, data))
}

func testUpdateMissing(t *testing.T, s store.Store) {
	defer s.Close()
	d := document(t, s, menuItems+"/missing")

	err := d.Update([]byte(`{"price":27000}`))
	assert.Equal(t, true, errors.Is(err, store.ErrNotFound))
	_, err = d.Get()
	assert.Equal(t, true, errors.Is(err, store.ErrNotFound))
}

func testMerge(t *testing.T, s store.Store) {
	defer s.Close()
	d := document(t, s, "artifacts/app/public/data/settings/companyInfo")

	assert.Equal(t, nil, d.Merge([]byte(`{"name":"Kedai Kopi"}`)))
	assert.Equal(t, nil, d.Merge([]byte(`{"motto":"Seduh dengan hati"}`)))
	data, err := d.Get()
	assert.Equal(t, nil, err)
	assert.Equal(t, map[string]interface{}{"name": "Kedai Kopi", "motto": "Seduh dengan hati"}, fields(t, data))
}

func testItems(t *testing.T, s store.Store) {
	defer s.Close()
	assert.Equal(t, nil, document(t, s, menuItems+"/a").Set([]byte(`{"n":1}`)))
	assert.Equal(t, nil, document(t, s, menuItems+"/a/reviews/r1").Set([]byte(`{"n":2}`)))
	assert.Equal(t, nil, document(t, s, menuItems+"x/b").Set([]byte(`{"n":3}`)))

	items, err := collection(t, s, menuItems).Items(store.Query{}, store.Order{}, store.Limit{})
	assert.Equal(t, nil, err)
	assert.Equal(t, 1, len(items))
	assert.Equal(t, "a", items[0].ID())

	empty, err := collection(t, s, "artifacts/app/public/data/orders").Items(store.Query{}, store.Order{}, store.Limit{})
	assert.Equal(t, nil, err)
	assert.Equal(t, 0, len(empty))
}

func testItemsQuery(t *testing.T, s store.Store) {
	defer s.Close()
	c := collection(t, s, menuItems)
	for _, doc := range []string{
		`{"name":"Espresso","price":18000}`,
		`{"name":"Latte","price":25000}`,
		`{"name":"V60","price":30000}`,
	} {
		_, err := c.Add([]byte(doc))
		assert.Equal(t, nil, err)
	}

	items, err := c.Items(
		store.Query{Field: "price", Operator: store.Gt, Value: "20000"},
		store.Order{OrderBy: "price", Ascending: false},
		store.Limit{Limit: 1},
	)
	assert.Equal(t, nil, err)
	assert.Equal(t, 1, len(items))
	assert.Equal(t, "V60", fields(t, items[0].Value)["name"])
}

func testInvalidKeys(t *testing.T, s store.Store) {
	defer s.Close()
	_, err := s.Document(menuItems)
	assert.Equal(t, true, errors.Is(err, store.ErrInvalidKey))
	_, err = s.Collection(menuItems + "/x1")
	assert.Equal(t, true, errors.Is(err, store.ErrInvalidKey))
}
