package entity

import a "example.com/shop/anns"

// +a.Audited=level=low
// +a.Table=orders
type Order struct {
	ID int64
}
