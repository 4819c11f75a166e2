package shop

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
)

var ErrInvalid = errors.New("invalid")

// FieldError names the form field that failed validation.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *FieldError) Unwrap() error {
	return ErrInvalid
}

func invalid(field, message string) error {
	return &FieldError{Field: field, Message: message}
}

func (m MenuItem) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return invalid("name", "nama wajib diisi")
	}
	if m.Price <= 0 {
		return invalid("price", "harga harus lebih dari 0")
	}
	if m.Category != "" && !contains(Categories, m.Category) {
		return invalid("category", "kategori tidak dikenal: "+m.Category)
	}
	return nil
}

// Prepared returns the item as written on creation: available, with a
// default category.
func (m MenuItem) Prepared() MenuItem {
	m.ID = ""
	m.IsAvailable = true
	if m.Category == "" {
		m.Category = CategoryCoffee
	}
	return m
}

func (c Customer) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return invalid("name", "nama wajib diisi")
	}
	if strings.TrimSpace(c.Email) == "" {
		return invalid("email", "email wajib diisi")
	}
	if _, err := mail.ParseAddress(c.Email); err != nil {
		return invalid("email", "email tidak valid")
	}
	return nil
}

// Prepared returns the customer as written on creation: joined today with
// no orders.
func (c Customer) Prepared(now time.Time) Customer {
	c.ID = ""
	c.JoinDate = now.Format(time.DateOnly)
	c.TotalOrders = 0
	c.TotalSpent = 0
	return c
}

func (c CompanyInfo) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return invalid("name", "nama perusahaan wajib diisi")
	}
	return nil
}

func (o Order) Validate() error {
	if !o.Status.Valid() {
		return invalid("status", "status tidak dikenal: "+string(o.Status))
	}
	if o.Total < 0 {
		return invalid("total", "total tidak boleh negatif")
	}
	return nil
}

func contains(values []string, v string) bool {
	for _, value := range values {
		if value == v {
			return true
		}
	}
	return false
}
