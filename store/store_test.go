package store_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/go-playground/assert/v2"

	"github.com/imba3r/kedai/store"
)

func TestKeys(t *testing.T) {
	collection := "artifacts/app/public/data/menuItems"
	document := collection + "/x1"

	assert.Equal(t, true, store.IsCollectionKey(collection))
	assert.Equal(t, false, store.IsDocumentKey(collection))
	assert.Equal(t, true, store.IsDocumentKey(document))
	assert.Equal(t, false, store.IsCollectionKey("a//b"))
	assert.Equal(t, false, store.IsDocumentKey(""))

	parent, err := store.CollectionKey(document)
	assert.Equal(t, nil, err)
	assert.Equal(t, collection, parent)
	assert.Equal(t, "x1", store.DocumentID(document))

	_, err = store.CollectionKey(collection)
	assert.Equal(t, true, errors.Is(err, store.ErrInvalidKey))

	key, err := store.DocumentKey(collection, "x1")
	assert.Equal(t, nil, err)
	assert.Equal(t, document, key)

	_, err = store.DocumentKey(collection, "a/b")
	assert.Equal(t, true, errors.Is(err, store.ErrInvalidKey))
}

func TestIsChild(t *testing.T) {
	assert.Equal(t, true, store.IsChild("a/b/c", "a/b/c/d"))
	assert.Equal(t, false, store.IsChild("a/b/c", "a/b/c/d/e/f"))
	assert.Equal(t, false, store.IsChild("a/b/c", "a/b/cd"))
}

func TestMergeJSON(t *testing.T) {
	base := []byte(`{"name":"Latte","price":25000,"address":{"city":"Bandung","zip":"40111"}}`)

	merged, err := store.MergeJSON(base, []byte(`{"price":27000,"address.city":"Jakarta"}`))
	assert.Equal(t, nil, err)

	var got map[string]interface{}
	assert.Equal(t, nil, json.Unmarshal(merged, &got))
	assert.Equal(t, "Latte", got["name"])
	assert.Equal(t, float64(27000), got["price"])
	assert.Equal(t, map[string]interface{}{"city": "Jakarta", "zip": "40111"}, got["address"])
}

func TestMergeJSON_KeepsLargeIntegers(t *testing.T) {
	base := []byte(`{"barcode":9007199254740993,"price":25000}`)

	merged, err := store.MergeJSON(base, []byte(`{"price":27000,"stock":18014398509481985}`))
	assert.Equal(t, nil, err)
	assert.Equal(t, `{"barcode":9007199254740993,"price":27000,"stock":18014398509481985}`, string(merged))

	_, err = store.MergeJSON(base, []byte(`{"price":1} {"price":2}`))
	assert.NotEqual(t, nil, err)
}

func TestMergeJSON_EmptyBase(t *testing.T) {
	merged, err := store.MergeJSON(nil, []byte(`{"name":"Kedai"}`))
	assert.Equal(t, nil, err)
	assert.Equal(t, `{"name":"Kedai"}`, string(merged))
}

func TestMergeJSON_NotObject(t *testing.T) {
	_, err := store.MergeJSON([]byte(`{}`), []byte(`[1,2]`))
	assert.Equal(t, true, errors.Is(err, store.ErrNotObject))
}

func TestCollectionItem_JSON(t *testing.T) {
	items := []store.CollectionItem{{Key: "c/1", Value: []byte(`{"a":1}`)}}
	data, err := json.Marshal(items)
	assert.Equal(t, nil, err)
	assert.Equal(t, `[{"key":"c/1","value":{"a":1}}]`, string(data))

	var decoded []store.CollectionItem
	assert.Equal(t, nil, json.Unmarshal(data, &decoded))
	assert.Equal(t, items, decoded)
}
