package entity

import "example.com/shop/anns"

// +anns.ClassOnly
type userFixture struct{}
