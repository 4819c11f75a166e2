package shop

import (
	"context"
	"time"

	"github.com/imba3r/kedai/livesync"
)

// Backoffice holds the admin screens of one application. Open it once per
// session and Close it when the admin leaves.
type Backoffice struct {
	appID     string
	Menu      *livesync.Screen[MenuItem]
	Orders    *livesync.Screen[Order]
	Customers *livesync.Screen[Customer]
	Settings  *livesync.Screen[CompanyInfo]
	rows      *livesync.JoinView[Order, Customer]
}

func Open(ctx context.Context, m *livesync.Manager, appID string) (*Backoffice, error) {
	b := &Backoffice{appID: appID}
	var err error
	if b.Menu, err = livesync.OpenScreen(ctx, m, CollectionPath(appID, MenuItems), DecodeMenuItem); err != nil {
		return nil, err
	}
	if b.Orders, err = livesync.OpenScreen(ctx, m, CollectionPath(appID, Orders), DecodeOrder); err != nil {
		b.Close()
		return nil, err
	}
	if b.Customers, err = livesync.OpenScreen(ctx, m, CollectionPath(appID, Customers), DecodeCustomer); err != nil {
		b.Close()
		return nil, err
	}
	if b.Settings, err = livesync.OpenScreen(ctx, m, CollectionPath(appID, Settings), DecodeCompanyInfo); err != nil {
		b.Close()
		return nil, err
	}
	b.rows = livesync.NewJoinView(b.Orders.Subscription(), b.Customers.Subscription(), orderCustomer, customerName, DeletedCustomer)
	return b, nil
}

// Loading reports whether any screen is still waiting for data.
func (b *Backoffice) Loading() bool {
	return b.Menu.State().Loading || b.Orders.State().Loading ||
		b.Customers.State().Loading || b.Settings.State().Loading
}

// OrderRows returns the orders joined to their customers.
func (b *Backoffice) OrderRows() []OrderRow {
	return rows(b.rows.Records())
}

// OrderRowsErr returns the failure of the orders or the customers
// subscription. Rows built while it is set may show DeletedCustomer for
// customers that exist.
func (b *Backoffice) OrderRowsErr() error {
	return b.rows.Err()
}

// OnOrderRows registers fn to run when the joined rows change.
func (b *Backoffice) OnOrderRows(fn func()) func() {
	return b.rows.OnChange(fn)
}

func (b *Backoffice) Stats() Stats {
	return DashboardStats(b.Orders.State().Items, len(b.Customers.State().Items))
}

// CompanyInfo returns the settings document, if it exists.
func (b *Backoffice) CompanyInfo() (CompanyInfo, bool) {
	return b.Settings.Subscription().View().Get(CompanyInfoID)
}

// SaveCompanyInfo writes the settings document, creating it when missing.
func (b *Backoffice) SaveCompanyInfo(ctx context.Context, info CompanyInfo) error {
	if err := info.Validate(); err != nil {
		return err
	}
	return b.Settings.Put(ctx, CompanyInfoID, info)
}

// SaveMenuItem creates item when it has no identifier and updates it
// otherwise. It returns the item's identifier.
func (b *Backoffice) SaveMenuItem(ctx context.Context, item MenuItem) (string, error) {
	if err := item.Validate(); err != nil {
		return "", err
	}
	if item.ID == "" {
		return b.Menu.Create(ctx, item.Prepared())
	}
	return item.ID, b.Menu.Update(ctx, item.ID, map[string]interface{}{
		"name":        item.Name,
		"category":    item.Category,
		"price":       item.Price,
		"description": item.Description,
		"imageUrl":    item.ImageURL,
		"isAvailable": item.IsAvailable,
	})
}

func (b *Backoffice) SetAvailable(ctx context.Context, id string, available bool) error {
	return b.Menu.Update(ctx, id, map[string]interface{}{"isAvailable": available})
}

// SaveCustomer creates or updates c. New customers join on now.
func (b *Backoffice) SaveCustomer(ctx context.Context, c Customer, now time.Time) (string, error) {
	if err := c.Validate(); err != nil {
		return "", err
	}
	if c.ID == "" {
		return b.Customers.Create(ctx, c.Prepared(now))
	}
	return c.ID, b.Customers.Update(ctx, c.ID, map[string]interface{}{
		"name":      c.Name,
		"email":     c.Email,
		"avatarUrl": c.AvatarURL,
	})
}

func (b *Backoffice) SetOrderStatus(ctx context.Context, id string, status OrderStatus) error {
	if !status.Valid() {
		return invalid("status", "status tidak dikenal: "+string(status))
	}
	return b.Orders.Update(ctx, id, map[string]interface{}{"status": status})
}

// Close tears down every screen. Writes still in flight complete remotely.
func (b *Backoffice) Close() {
	if b.rows != nil {
		b.rows.Close()
	}
	if b.Menu != nil {
		b.Menu.Close()
	}
	if b.Orders != nil {
		b.Orders.Close()
	}
	if b.Customers != nil {
		b.Customers.Close()
	}
	if b.Settings != nil {
		b.Settings.Close()
	}
}
