package billing

import (
	"example.com/ext/tags"
	"example.com/shop/anns"
)

// +anns.Store=table="invoices",shard=2
// +tags.Label=finance
type Invoice struct {
	// +anns.Audit
	Total float64
}

// +anns.Audit=level=high
func (i *Invoice) Pay() error { return nil }
