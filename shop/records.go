// Package shop is the coffee-shop back office built on livesync: the
// records it stores, how they decode, and the screens that edit them.
package shop

import (
	"fmt"
	"math"

	"github.com/Jeffail/gabs/v2"
)

const (
	CategoryCoffee    = "Kopi"
	CategoryNonCoffee = "Non-Kopi"
	CategorySnack     = "Makanan Ringan"
)

var Categories = []string{CategoryCoffee, CategoryNonCoffee, CategorySnack}

type OrderStatus string

const (
	StatusAwaitingPayment OrderStatus = "Menunggu Pembayaran"
	StatusProcessing      OrderStatus = "Diproses"
	StatusDone            OrderStatus = "Selesai"
	StatusCancelled       OrderStatus = "Dibatalkan"
)

var Statuses = []OrderStatus{StatusAwaitingPayment, StatusProcessing, StatusDone, StatusCancelled}

func (s OrderStatus) Valid() bool {
	for _, status := range Statuses {
		if s == status {
			return true
		}
	}
	return false
}

// Money is an amount in whole Rupiah.
type Money int64

type MenuItem struct {
	ID          string `json:"-"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Price       Money  `json:"price"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"imageUrl"`
	IsAvailable bool   `json:"isAvailable"`
}

type Customer struct {
	ID          string `json:"-"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
	JoinDate    string `json:"joinDate"`
	TotalOrders int    `json:"totalOrders"`
	TotalSpent  Money  `json:"totalSpent"`
}

// OrderLine is one menu item on an order.
type OrderLine struct {
	MenuItemID string `json:"menuItemId,omitempty"`
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
	Price      Money  `json:"price"`
}

type Order struct {
	ID         string      `json:"-"`
	CustomerID string      `json:"customerId"`
	Date       string      `json:"date"`
	Total      Money       `json:"total"`
	Status     OrderStatus `json:"status"`
	Items      int         `json:"items"`
	Lines      []OrderLine `json:"lines,omitempty"`
}

// CompanyInfo is the single settings document.
type CompanyInfo struct {
	ID      string `json:"-"`
	Name    string `json:"name"`
	Motto   string `json:"motto"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
	LogoURL string `json:"logoUrl"`
}

// Decoders read whatever fields are present and fill the rest with
// defaults. Only a document that is not a JSON object is rejected.

func DecodeMenuItem(id string, data []byte) (MenuItem, error) {
	c, err := parse(data)
	if err != nil {
		return MenuItem{}, err
	}
	return MenuItem{
		ID:          id,
		Name:        text(c, "name"),
		Category:    text(c, "category"),
		Price:       money(c, "price"),
		Description: text(c, "description"),
		ImageURL:    text(c, "imageUrl"),
		IsAvailable: flag(c, "isAvailable", true),
	}, nil
}

func DecodeCustomer(id string, data []byte) (Customer, error) {
	c, err := parse(data)
	if err != nil {
		return Customer{}, err
	}
	return Customer{
		ID:          id,
		Name:        text(c, "name"),
		Email:       text(c, "email"),
		AvatarURL:   text(c, "avatarUrl"),
		JoinDate:    text(c, "joinDate"),
		TotalOrders: int(number(c, "totalOrders")),
		TotalSpent:  money(c, "totalSpent"),
	}, nil
}

func DecodeOrder(id string, data []byte) (Order, error) {
	c, err := parse(data)
	if err != nil {
		return Order{}, err
	}
	o := Order{
		ID:         id,
		CustomerID: text(c, "customerId"),
		Date:       text(c, "date"),
		Total:      money(c, "total"),
		Status:     OrderStatus(text(c, "status")),
		Items:      int(number(c, "items")),
	}
	if !o.Status.Valid() {
		o.Status = StatusAwaitingPayment
	}
	for _, line := range c.S("lines").Children() {
		o.Lines = append(o.Lines, OrderLine{
			MenuItemID: text(line, "menuItemId"),
			Name:       text(line, "name"),
			Quantity:   int(number(line, "quantity")),
			Price:      money(line, "price"),
		})
	}
	if o.Items == 0 {
		for _, line := range o.Lines {
			o.Items += line.Quantity
		}
	}
	return o, nil
}

func DecodeCompanyInfo(id string, data []byte) (CompanyInfo, error) {
	c, err := parse(data)
	if err != nil {
		return CompanyInfo{}, err
	}
	return CompanyInfo{
		ID:      id,
		Name:    text(c, "name"),
		Motto:   text(c, "motto"),
		Address: text(c, "address"),
		Phone:   text(c, "phone"),
		LogoURL: text(c, "logoUrl"),
	}, nil
}

func parse(data []byte) (*gabs.Container, error) {
	c, err := gabs.ParseJSON(data)
	if err != nil {
		return nil, err
	}
	if _, ok := c.Data().(map[string]interface{}); !ok {
		return nil, fmt.Errorf("document is %T, not an object", c.Data())
	}
	return c, nil
}

func text(c *gabs.Container, field string) string {
	s, _ := c.S(field).Data().(string)
	return s
}

func number(c *gabs.Container, field string) float64 {
	n, ok := c.S(field).Data().(float64)
	if !ok || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0
	}
	return n
}

func money(c *gabs.Container, field string) Money {
	return Money(math.Round(number(c, field)))
}

func flag(c *gabs.Container, field string, fallback bool) bool {
	b, ok := c.S(field).Data().(bool)
	if !ok {
		return fallback
	}
	return b
}
