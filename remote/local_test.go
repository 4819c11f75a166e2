package remote_test

import (
	"context"
	"errors"
	"testing"

	"github.com/go-playground/assert/v2"

	"github.com/imba3r/kedai"
	"github.com/imba3r/kedai/livesync"
	"github.com/imba3r/kedai/remote"
	"github.com/imba3r/kedai/session"
	"github.com/imba3r/kedai/store"
	"github.com/imba3r/kedai/store/memory"
)

func TestLocal_SubscribeDeliversCurrentThenChanges(t *testing.T) {
	hub := kedai.New(memory.New(), false)
	defer hub.Close()
	local := remote.NewLocal(hub)
	ctx := context.Background()

	id, err := local.Append(ctx, menuItems, []byte(`{"name":"Espresso","price":18000}`))
	assert.Equal(t, nil, err)

	r := &recorder{}
	cancel, err := local.Subscribe(ctx, menuItems, store.Selection{}, r.onSnapshot, r.onError)
	assert.Equal(t, nil, err)
	defer cancel()
	eventually(t, func() bool { _, n := r.last(); return n == 1 })
	first, _ := r.last()
	assert.Equal(t, id, first[0].ID())

	assert.Equal(t, nil, local.SetFields(ctx, menuItems+"/"+id, []byte(`{"price":20000}`)))
	eventually(t, func() bool {
		s, _ := r.last()
		return len(s) == 1 && string(s[0].Value) == `{"name":"Espresso","price":20000}`
	})

	assert.Equal(t, nil, local.Delete(ctx, menuItems+"/"+id))
	eventually(t, func() bool { s, n := r.last(); return n >= 2 && len(s) == 0 })
}

func TestLocal_Errors(t *testing.T) {
	hub := kedai.New(memory.New(), false)
	defer hub.Close()
	local := remote.NewLocal(hub)
	ctx := context.Background()

	err := local.SetFields(ctx, menuItems+"/missing", []byte(`{"price":1}`))
	assert.Equal(t, true, errors.Is(err, store.ErrNotFound))

	_, err = local.Subscribe(ctx, menuItems+"/x1", store.Selection{}, func(livesync.Snapshot) {}, func(error) {})
	assert.Equal(t, true, errors.Is(err, store.ErrInvalidKey))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = local.Append(cancelled, menuItems, []byte(`{}`))
	assert.Equal(t, context.Canceled, err)
}

func TestLocal_CancelIsIdempotentAndHubCloseFails(t *testing.T) {
	hub := kedai.New(memory.New(), false)
	local := remote.NewLocal(hub)

	quiet := &recorder{}
	cancel, err := local.Subscribe(context.Background(), menuItems, store.Selection{}, quiet.onSnapshot, quiet.onError)
	assert.Equal(t, nil, err)
	eventually(t, func() bool { _, n := quiet.last(); return n == 1 })
	cancel()
	cancel()

	r := &recorder{}
	_, err = local.Subscribe(context.Background(), menuItems, store.Selection{}, r.onSnapshot, r.onError)
	assert.Equal(t, nil, err)
	eventually(t, func() bool { _, n := r.last(); return n == 1 })

	assert.Equal(t, nil, hub.Close())
	eventually(t, func() bool { return r.failure() != nil })
	assert.Equal(t, true, errors.Is(r.failure(), remote.ErrClosed))
	assert.Equal(t, nil, quiet.failure())
}

func TestLocal_WithManager(t *testing.T) {
	hub := kedai.New(memory.New(), false)
	defer hub.Close()
	m := livesync.NewManager(remote.NewLocal(hub), session.New(session.Anonymous{}))
	ctx := context.Background()

	screen, err := livesync.OpenScreen(ctx, m, menuItems, decodeMenuItem)
	assert.Equal(t, nil, err)
	defer screen.Close()
	eventually(t, func() bool { return !screen.State().Loading })

	id, err := screen.Create(ctx, map[string]interface{}{"name": "Espresso", "price": 18000})
	assert.Equal(t, nil, err)
	eventually(t, func() bool {
		_, ok := screen.Subscription().View().Get(id)
		return ok
	})

	assert.Equal(t, nil, screen.Update(ctx, id, map[string]interface{}{"id": id, "price": 19000}))
	eventually(t, func() bool {
		item, _ := screen.Subscription().View().Get(id)
		return item.Price == 19000
	})
	d, _ := hub.Store.Document(menuItems + "/" + id)
	data, _ := d.Get()
	assert.Equal(t, `{"name":"Espresso","price":19000}`, string(data))

	assert.Equal(t, nil, screen.Remove(ctx, id))
	eventually(t, func() bool { return len(screen.State().Items) == 0 })
}

func TestLocal_SubscribeSelection(t *testing.T) {
	hub := kedai.New(memory.New(), false)
	defer hub.Close()
	local := remote.NewLocal(hub)
	ctx := context.Background()

	for _, doc := range []string{
		`{"name":"Espresso","price":18000}`,
		`{"name":"V60","price":30000}`,
		`{"name":"Latte","price":25000}`,
	} {
		_, err := local.Append(ctx, menuItems, []byte(doc))
		assert.Equal(t, nil, err)
	}

	r := &recorder{}
	cancel, err := local.Subscribe(ctx, menuItems, store.Selection{
		Query: store.Query{Field: "price", Operator: store.Ge, Value: "20000"},
		Order: store.Order{OrderBy: "price", Ascending: true},
	}, r.onSnapshot, r.onError)
	assert.Equal(t, nil, err)
	defer cancel()
	eventually(t, func() bool { _, n := r.last(); return n == 1 })
	s, _ := r.last()
	assert.Equal(t, 2, len(s))
	assert.Equal(t, `{"name":"Latte","price":25000}`, string(s[0].Value))

	_, err = local.Subscribe(ctx, menuItems, store.Selection{Limit: store.Limit{Offset: -1}}, r.onSnapshot, r.onError)
	assert.Equal(t, true, errors.Is(err, remote.ErrInvalidArgument))
}
