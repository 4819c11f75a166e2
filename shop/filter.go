package shop

import (
	"strings"

	"golang.org/x/text/cases"
)

// All is the filter value that matches every category or status.
const All = "Semua"

func matches(value, search string) bool {
	fold := cases.Fold()
	return strings.Contains(fold.String(value), fold.String(strings.TrimSpace(search)))
}

// FilterMenu keeps items in category whose name contains search, ignoring
// case.
func FilterMenu(items []MenuItem, category, search string) []MenuItem {
	var filtered []MenuItem
	for _, item := range items {
		if category != "" && category != All && item.Category != category {
			continue
		}
		if !matches(item.Name, search) {
			continue
		}
		filtered = append(filtered, item)
	}
	return filtered
}

// MenuCategories lists All followed by the categories in use, in order of
// first appearance.
func MenuCategories(items []MenuItem) []string {
	categories := []string{All}
	for _, item := range items {
		if item.Category != "" && !contains(categories, item.Category) {
			categories = append(categories, item.Category)
		}
	}
	return categories
}

// SearchCustomers keeps customers whose name or email contains search.
func SearchCustomers(customers []Customer, search string) []Customer {
	var filtered []Customer
	for _, c := range customers {
		if matches(c.Name, search) || matches(c.Email, search) {
			filtered = append(filtered, c)
		}
	}
	return filtered
}

// FilterOrders keeps rows with the given status whose identifier or
// customer name contains search.
func FilterOrders(rows []OrderRow, search string, status OrderStatus) []OrderRow {
	var filtered []OrderRow
	for _, row := range rows {
		if status != "" && status != All && row.Status != status {
			continue
		}
		if !matches(row.ID, search) && !matches(row.CustomerName, search) {
			continue
		}
		filtered = append(filtered, row)
	}
	return filtered
}
