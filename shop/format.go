package shop

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.Indonesian)

// FormatRupiah renders an amount the way the shop prints prices,
// e.g. "Rp 45.000".
func FormatRupiah(amount Money) string {
	return printer.Sprintf("Rp %d", int64(amount))
}

func (m Money) String() string {
	return FormatRupiah(m)
}

const PageSize = 10

// Page is one page of a list. From and To are 1-based and inclusive; both
// are 0 for an empty list.
type Page[T any] struct {
	Items  []T
	Number int
	Pages  int
	From   int
	To     int
	Total  int
}

// Paginate returns page number (1-based) of items. Out of range numbers are
// clamped.
func Paginate[T any](items []T, number, size int) Page[T] {
	if size <= 0 {
		size = PageSize
	}
	total := len(items)
	pages := (total + size - 1) / size
	if pages == 0 {
		return Page[T]{Number: 1, Pages: 1}
	}
	if number < 1 {
		number = 1
	}
	if number > pages {
		number = pages
	}
	from := (number - 1) * size
	to := from + size
	if to > total {
		to = total
	}
	return Page[T]{
		Items:  items[from:to],
		Number: number,
		Pages:  pages,
		From:   from + 1,
		To:     to,
		Total:  total,
	}
}

// Summary renders "Menampilkan 1-10 dari 25 pesanan" for noun "pesanan".
func (p Page[T]) Summary(noun string) string {
	return printer.Sprintf("Menampilkan %d-%d dari %d %s", p.From, p.To, p.Total, noun)
}
