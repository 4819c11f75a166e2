package sqlite_test

import (
	"path/filepath"
	"testing"

	"github.com/go-playground/assert/v2"

	"github.com/imba3r/kedai/store"
	"github.com/imba3r/kedai/store/sqlite"
	"github.com/imba3r/kedai/store/storetest"
)

func TestSQLiteStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s, err := sqlite.New(filepath.Join(t.TempDir(), "kedai.db"))
		if err != nil {
			t.Fatal(err)
		}
		return s
	})
}

func TestSQLiteStore_Memory(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s, err := sqlite.New(":memory:")
		if err != nil {
			t.Fatal(err)
		}
		return s
	})
}

func TestSQLiteStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "kedai.db")
	s, err := sqlite.New(path)
	assert.Equal(t, nil, err)
	d, err := s.Document("artifacts/app/public/data/customers/c1")
	assert.Equal(t, nil, err)
	assert.Equal(t, nil, d.Set([]byte(`{"name":"Budi"}`)))
	assert.Equal(t, nil, s.Close())

	s, err = sqlite.New(path)
	assert.Equal(t, nil, err)
	defer s.Close()
	d, err = s.Document("artifacts/app/public/data/customers/c1")
	assert.Equal(t, nil, err)
	data, err := d.Get()
	assert.Equal(t, nil, err)
	assert.Equal(t, `{"name":"Budi"}`, string(data))
}
