package shop_test

import (
	"errors"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"

	"github.com/imba3r/kedai/shop"
)

func TestDecodeMenuItem_Defaults(t *testing.T) {
	item, err := shop.DecodeMenuItem("x1", []byte(`{"name":"Latte"}`))
	assert.Equal(t, nil, err)
	assert.Equal(t, shop.MenuItem{ID: "x1", Name: "Latte", IsAvailable: true}, item)

	item, err = shop.DecodeMenuItem("x2", []byte(`{"name":7,"price":"mahal","isAvailable":false,"category":"Kopi"}`))
	assert.Equal(t, nil, err)
	assert.Equal(t, shop.MenuItem{ID: "x2", Category: "Kopi"}, item)

	_, err = shop.DecodeMenuItem("x3", []byte(`[1]`))
	assert.NotEqual(t, nil, err)
}

func TestDecodeOrder(t *testing.T) {
	o, err := shop.DecodeOrder("o1", []byte(`{
		"customerId": "c1",
		"date": "2025-09-24",
		"total": 45000,
		"status": "Selesai",
		"lines": [
			{"name": "Espresso", "quantity": 1, "price": 18000},
			{"name": "Croissant", "quantity": 1, "price": 22000}
		]
	}`))
	assert.Equal(t, nil, err)
	assert.Equal(t, "c1", o.CustomerID)
	assert.Equal(t, shop.Money(45000), o.Total)
	assert.Equal(t, shop.StatusDone, o.Status)
	assert.Equal(t, 2, o.Items)
	assert.Equal(t, 2, len(o.Lines))

	o, err = shop.DecodeOrder("o2", []byte(`{"status":"Hilang"}`))
	assert.Equal(t, nil, err)
	assert.Equal(t, shop.StatusAwaitingPayment, o.Status)
}

func TestDecodeCustomerAndCompanyInfo(t *testing.T) {
	c, err := shop.DecodeCustomer("c1", []byte(`{"name":"Budi","email":"budi@example.com","totalOrders":3,"totalSpent":120000.4}`))
	assert.Equal(t, nil, err)
	assert.Equal(t, shop.Customer{ID: "c1", Name: "Budi", Email: "budi@example.com", TotalOrders: 3, TotalSpent: 120000}, c)

	info, err := shop.DecodeCompanyInfo(shop.CompanyInfoID, []byte(`{"name":"Kopi Senja","phone":"0812"}`))
	assert.Equal(t, nil, err)
	assert.Equal(t, shop.CompanyInfo{ID: "companyInfo", Name: "Kopi Senja", Phone: "0812"}, info)
}

func TestValidate(t *testing.T) {
	var fe *shop.FieldError

	err := shop.MenuItem{Price: 1000}.Validate()
	assert.Equal(t, true, errors.Is(err, shop.ErrInvalid))
	assert.Equal(t, true, errors.As(err, &fe))
	assert.Equal(t, "name", fe.Field)

	err = shop.MenuItem{Name: "Latte"}.Validate()
	assert.Equal(t, true, errors.As(err, &fe))
	assert.Equal(t, "price", fe.Field)

	err = shop.MenuItem{Name: "Latte", Price: 1, Category: "Teh"}.Validate()
	assert.Equal(t, true, errors.As(err, &fe))
	assert.Equal(t, "category", fe.Field)

	assert.Equal(t, nil, shop.MenuItem{Name: "Latte", Price: 25000, Category: "Kopi"}.Validate())

	err = shop.Customer{Name: "Budi", Email: "bukan-email"}.Validate()
	assert.Equal(t, true, errors.As(err, &fe))
	assert.Equal(t, "email", fe.Field)
	assert.Equal(t, nil, shop.Customer{Name: "Budi", Email: "budi@example.com"}.Validate())

	assert.Equal(t, true, errors.Is(shop.CompanyInfo{}.Validate(), shop.ErrInvalid))
	assert.Equal(t, true, errors.Is(shop.Order{Status: "Hilang"}.Validate(), shop.ErrInvalid))
}

func TestPrepared(t *testing.T) {
	item := shop.MenuItem{ID: "x", Name: "Teh Tarik", Price: 15000}.Prepared()
	assert.Equal(t, "", item.ID)
	assert.Equal(t, true, item.IsAvailable)
	assert.Equal(t, shop.CategoryCoffee, item.Category)

	now := time.Date(2025, 9, 24, 15, 4, 5, 0, time.UTC)
	c := shop.Customer{Name: "Budi", TotalOrders: 9, TotalSpent: 1}.Prepared(now)
	assert.Equal(t, "2025-09-24", c.JoinDate)
	assert.Equal(t, 0, c.TotalOrders)
	assert.Equal(t, shop.Money(0), c.TotalSpent)
}
