package shop

import (
	"sort"

	"github.com/imba3r/kedai/livesync"
)

// DeletedCustomer is shown for orders whose customer no longer exists.
const DeletedCustomer = "Pelanggan Dihapus"

// OrderRow is an order with its customer's name attached.
type OrderRow struct {
	Order
	CustomerName  string
	CustomerFound bool
}

func orderCustomer(o Order) string   { return o.CustomerID }
func customerName(c Customer) string { return c.Name }

// OrderRows joins orders to customers by customerId.
func OrderRows(orders livesync.View[Order], customers livesync.View[Customer]) []OrderRow {
	return rows(livesync.Join(orders, customers, orderCustomer, customerName, DeletedCustomer))
}

func rows(joined []livesync.Joined[Order]) []OrderRow {
	rows := make([]OrderRow, 0, len(joined))
	for _, j := range joined {
		rows = append(rows, OrderRow{Order: j.Record, CustomerName: j.Related, CustomerFound: j.Found})
	}
	return rows
}

// Recent returns up to n rows, newest first by date then identifier.
func Recent(rows []OrderRow, n int) []OrderRow {
	sorted := append([]OrderRow(nil), rows...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Date != sorted[j].Date {
			return sorted[i].Date > sorted[j].Date
		}
		return sorted[i].ID > sorted[j].ID
	})
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// Stats are the dashboard figures.
type Stats struct {
	Revenue        Money
	Orders         int
	Customers      int
	BestSeller     string
	BestSellerSold int
}

// DashboardStats counts revenue from finished orders and finds the menu
// item sold most often across orders that were not cancelled.
func DashboardStats(orders []Order, customers int) Stats {
	s := Stats{Orders: len(orders), Customers: customers}
	sold := map[string]int{}
	for _, o := range orders {
		if o.Status == StatusDone {
			s.Revenue += o.Total
		}
		if o.Status == StatusCancelled {
			continue
		}
		for _, line := range o.Lines {
			if line.Name != "" {
				sold[line.Name] += line.Quantity
			}
		}
	}
	for name, n := range sold {
		if n > s.BestSellerSold || (n == s.BestSellerSold && name < s.BestSeller) {
			s.BestSeller, s.BestSellerSold = name, n
		}
	}
	return s
}
