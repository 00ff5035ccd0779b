package orders

import "example.com/shop/anns"

// +anns.Store=owner=me
type Bad struct{}
