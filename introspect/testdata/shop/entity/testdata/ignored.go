package ignored

import "example.com/shop/anns"

// +anns.ClassOnly
type Ignored struct{}
