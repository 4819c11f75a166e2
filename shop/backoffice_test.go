package shop_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"

	"github.com/imba3r/kedai"
	"github.com/imba3r/kedai/livesync"
	"github.com/imba3r/kedai/remote"
	"github.com/imba3r/kedai/session"
	"github.com/imba3r/kedai/shop"
	"github.com/imba3r/kedai/store"
	"github.com/imba3r/kedai/store/memory"
)

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func openBackoffice(t *testing.T) (*shop.Backoffice, *livesync.Manager) {
	t.Helper()
	hub := kedai.New(memory.New(), false)
	m := livesync.NewManager(remote.NewLocal(hub), session.New(session.Anonymous{}))
	b, err := shop.Open(context.Background(), m, "app")
	assert.Equal(t, nil, err)
	t.Cleanup(func() {
		b.Close()
		hub.Close()
	})
	eventually(t, func() bool { return !b.Loading() })
	return b, m
}

func TestBackoffice_SeedAndEditMenu(t *testing.T) {
	b, m := openBackoffice(t)
	ctx := context.Background()
	g := livesync.NewGateway(m)

	ids, err := shop.Seed(ctx, g, "app", b.Menu.Subscription().View())
	assert.Equal(t, nil, err)
	assert.Equal(t, 6, len(ids))
	eventually(t, func() bool { return len(b.Menu.State().Items) == 6 })

	again, err := shop.Seed(ctx, g, "app", b.Menu.Subscription().View())
	assert.Equal(t, nil, err)
	assert.Equal(t, 0, len(again))

	espresso, ok := b.Menu.Subscription().View().Get(ids[0])
	assert.Equal(t, true, ok)
	assert.Equal(t, "Espresso", espresso.Name)
	assert.Equal(t, true, espresso.IsAvailable)

	espresso.Price = 20000
	_, err = b.SaveMenuItem(ctx, espresso)
	assert.Equal(t, nil, err)
	assert.Equal(t, nil, b.SetAvailable(ctx, espresso.ID, false))
	eventually(t, func() bool {
		item, _ := b.Menu.Subscription().View().Get(espresso.ID)
		return item.Price == 20000 && !item.IsAvailable
	})

	_, err = b.SaveMenuItem(ctx, shop.MenuItem{Name: "", Price: 1})
	assert.Equal(t, true, errors.Is(err, shop.ErrInvalid))
}

func TestBackoffice_OrdersJoinCustomers(t *testing.T) {
	b, _ := openBackoffice(t)
	ctx := context.Background()

	now := time.Date(2025, 9, 24, 10, 0, 0, 0, time.UTC)
	c1, err := b.SaveCustomer(ctx, shop.Customer{Name: "Budi", Email: "budi@example.com"}, now)
	assert.Equal(t, nil, err)

	o1, err := b.Orders.Create(ctx, shop.Order{
		CustomerID: c1,
		Date:       "2025-09-24",
		Total:      45000,
		Status:     shop.StatusDone,
		Lines:      []shop.OrderLine{{Name: "Espresso", Quantity: 1, Price: 18000}},
	})
	assert.Equal(t, nil, err)

	eventually(t, func() bool {
		rows := b.OrderRows()
		return len(rows) == 1 && rows[0].CustomerName == "Budi"
	})
	assert.Equal(t, o1, b.OrderRows()[0].ID)

	customer, _ := b.Customers.Subscription().View().Get(c1)
	assert.Equal(t, "2025-09-24", customer.JoinDate)

	stats := b.Stats()
	assert.Equal(t, shop.Money(45000), stats.Revenue)
	assert.Equal(t, 1, stats.Customers)
	assert.Equal(t, "Espresso", stats.BestSeller)

	assert.Equal(t, nil, b.SetOrderStatus(ctx, o1, shop.StatusCancelled))
	assert.Equal(t, true, errors.Is(b.SetOrderStatus(ctx, o1, "Hilang"), shop.ErrInvalid))

	assert.Equal(t, nil, b.Customers.Remove(ctx, c1))
	eventually(t, func() bool {
		rows := b.OrderRows()
		return len(rows) == 1 && rows[0].CustomerName == shop.DeletedCustomer && rows[0].Status == shop.StatusCancelled
	})
}

func TestBackoffice_CompanyInfo(t *testing.T) {
	b, _ := openBackoffice(t)
	ctx := context.Background()

	_, ok := b.CompanyInfo()
	assert.Equal(t, false, ok)

	assert.Equal(t, nil, b.SaveCompanyInfo(ctx, shop.CompanyInfo{Name: "Kopi Senja", Motto: "Secangkir cerita"}))
	eventually(t, func() bool { _, ok := b.CompanyInfo(); return ok })

	assert.Equal(t, nil, b.SaveCompanyInfo(ctx, shop.CompanyInfo{Name: "Kopi Senja", Phone: "0812"}))
	eventually(t, func() bool { info, _ := b.CompanyInfo(); return info.Phone == "0812" })
	info, _ := b.CompanyInfo()
	assert.Equal(t, "Kopi Senja", info.Name)

	assert.Equal(t, true, errors.Is(b.SaveCompanyInfo(ctx, shop.CompanyInfo{}), shop.ErrInvalid))
}

func TestBackoffice_SaveMenuItemClearsDescription(t *testing.T) {
	b, _ := openBackoffice(t)
	ctx := context.Background()

	id, err := b.SaveMenuItem(ctx, shop.MenuItem{Name: "Kopi Susu", Price: 22000, Description: "Gula aren"})
	assert.Equal(t, nil, err)
	eventually(t, func() bool {
		item, _ := b.Menu.Subscription().View().Get(id)
		return item.Description == "Gula aren"
	})

	item, _ := b.Menu.Subscription().View().Get(id)
	item.Description = ""
	_, err = b.SaveMenuItem(ctx, item)
	assert.Equal(t, nil, err)
	eventually(t, func() bool {
		item, _ := b.Menu.Subscription().View().Get(id)
		return item.Description == ""
	})
}

// deniedCustomers fails every subscription to the customers collection.
type deniedCustomers struct {
	livesync.Source
}

var errDenied = errors.New("permission denied")

func (d deniedCustomers) Subscribe(ctx context.Context, path string, sel store.Selection, onSnapshot func(livesync.Snapshot), onError func(error)) (livesync.CancelFunc, error) {
	if strings.HasSuffix(path, "/"+shop.Customers) {
		go onError(errDenied)
		return func() {}, nil
	}
	return d.Source.Subscribe(ctx, path, sel, onSnapshot, onError)
}

func TestBackoffice_CustomerFailureSurfacesOnOrderRows(t *testing.T) {
	hub := kedai.New(memory.New(), false)
	defer hub.Close()
	m := livesync.NewManager(deniedCustomers{remote.NewLocal(hub)}, session.New(session.Anonymous{}))
	b, err := shop.Open(context.Background(), m, "app")
	assert.Equal(t, nil, err)
	defer b.Close()

	eventually(t, func() bool { return !b.Loading() })
	assert.Equal(t, nil, b.Orders.State().Err)
	assert.Equal(t, true, errors.Is(b.OrderRowsErr(), errDenied))
}
