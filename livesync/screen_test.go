package livesync_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/go-playground/assert/v2"

	"github.com/imba3r/kedai/livesync"
)

func TestScreen_State(t *testing.T) {
	source := &fakeSource{nextID: "abc123", release: make(chan struct{})}
	m, _ := newManager(source)
	ctx := context.Background()

	screen, err := livesync.OpenScreen(ctx, m, menuItems, decodeMenuItem)
	assert.Equal(t, nil, err)
	defer screen.Close()

	var changes atomic.Int32
	screen.OnChange(func() { changes.Add(1) })

	state := screen.State()
	assert.Equal(t, true, state.Loading)
	assert.Equal(t, false, state.Submitting)

	fs := source.sub(t, menuItems)
	fs.onSnapshot(livesync.Snapshot{})
	assert.Equal(t, false, screen.State().Loading)

	done := make(chan error)
	go func() {
		_, err := screen.Create(ctx, menuItem{Name: "Espresso", Price: 18000, Category: "Kopi"})
		done <- err
	}()
	eventually(t, func() bool { return screen.State().Submitting })
	close(source.release)
	assert.Equal(t, nil, <-done)
	assert.Equal(t, false, screen.State().Submitting)

	fs.onSnapshot(snapshot(menuItems, map[string]string{"abc123": `{"name":"Espresso","price":18000,"category":"Kopi"}`}))
	assert.Equal(t, []menuItem{{Name: "Espresso", Price: 18000, Category: "Kopi"}}, screen.State().Items)
	assert.Equal(t, int32(4), changes.Load())
}

func TestScreen_CloseTearsDown(t *testing.T) {
	source := &fakeSource{}
	m, _ := newManager(source)
	ctx := context.Background()

	screen, err := livesync.OpenScreen(ctx, m, menuItems, decodeMenuItem)
	assert.Equal(t, nil, err)
	fs := source.sub(t, menuItems)

	var changes atomic.Int32
	screen.OnChange(func() { changes.Add(1) })
	screen.Close()
	screen.Close()

	fs.onSnapshot(snapshot(menuItems, map[string]string{"a": `{"name":"Espresso"}`}))
	assert.Equal(t, 0, len(screen.State().Items))
	assert.Equal(t, int32(0), changes.Load())
	eventually(t, func() bool { return fs.cancelled.Load() == 1 })

	_, err = screen.Create(ctx, map[string]interface{}{"name": "Latte"})
	assert.Equal(t, livesync.ErrClosed, err)
	assert.Equal(t, 0, len(source.recorded()))
}
