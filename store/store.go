package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound   = errors.New("document not found")
	ErrInvalidKey = errors.New("invalid key")
)

type Store interface {
	Document(key string) (Document, error)
	Collection(key string) (Collection, error)
	Close() error
}

type Document interface {
	Key() string
	Get() ([]byte, error)
	// Set replaces the document, creating it when absent.
	Set(data []byte) error
	// Update merges the fields of data into an existing document.
	Update(data []byte) error
	// Merge is Update that creates the document when absent.
	Merge(data []byte) error
	Delete() error
}

type Collection interface {
	Key() string
	Items(Query, Order, Limit) ([]CollectionItem, error)
	// Add stores data under a newly assigned identifier.
	Add(data []byte) (Document, error)
}

type Limit struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// Apply returns the window of items selected by l.
func (l Limit) Apply(items []CollectionItem) []CollectionItem {
	if l.Offset > 0 {
		if l.Offset >= len(items) {
			return items[:0]
		}
		items = items[l.Offset:]
	}
	if l.Limit > 0 && l.Limit < len(items) {
		items = items[:l.Limit]
	}
	return items
}

type CollectionItem struct {
	Key   string
	Value []byte
}

func (i CollectionItem) ID() string {
	return DocumentID(i.Key)
}

func (i CollectionItem) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Key   string          `json:"key"`
		Value json.RawMessage `json:"value"`
	}{
		Key:   i.Key,
		Value: i.Value,
	})
}

func (i *CollectionItem) UnmarshalJSON(data []byte) error {
	var raw struct {
		Key   string          `json:"key"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	i.Key = raw.Key
	i.Value = []byte(raw.Value)
	return nil
}

func segments(key string) []string {
	return strings.Split(strings.Trim(key, "/"), "/")
}

func validKey(key string) bool {
	if strings.Trim(key, "/") == "" {
		return false
	}
	for _, s := range segments(key) {
		if s == "" {
			return false
		}
	}
	return true
}

func IsCollectionKey(key string) bool {
	return validKey(key) && len(segments(key))%2 == 1
}

func IsDocumentKey(key string) bool {
	return validKey(key) && len(segments(key))%2 == 0
}

// CollectionKey returns the key of the collection holding documentKey.
func CollectionKey(documentKey string) (string, error) {
	if !IsDocumentKey(documentKey) {
		return "", fmt.Errorf("%w: not a document key: %s", ErrInvalidKey, documentKey)
	}
	split := segments(documentKey)
	return strings.Join(split[:len(split)-1], "/"), nil
}

// DocumentKey joins a collection key and a document identifier.
func DocumentKey(collectionKey, id string) (string, error) {
	if !IsCollectionKey(collectionKey) {
		return "", fmt.Errorf("%w: not a collection key: %s", ErrInvalidKey, collectionKey)
	}
	if id == "" || strings.Contains(id, "/") {
		return "", fmt.Errorf("%w: bad document id %q", ErrInvalidKey, id)
	}
	return strings.Trim(collectionKey, "/") + "/" + id, nil
}

// DocumentID is the last segment of a document key.
func DocumentID(documentKey string) string {
	split := segments(documentKey)
	return split[len(split)-1]
}

// IsChild reports whether key is a direct document of collectionKey.
func IsChild(collectionKey, key string) bool {
	prefix := strings.Trim(collectionKey, "/") + "/"
	if !strings.HasPrefix(key, prefix) {
		return false
	}
	rest := key[len(prefix):]
	return rest != "" && !strings.Contains(rest, "/")
}

// Clean strips leading and trailing slashes.
func Clean(key string) string {
	return strings.Trim(key, "/")
}
