package scratch

import "example.com/shop/anns"

// +anns.ClassOnly
type Scratch struct{}
