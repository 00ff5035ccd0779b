package tags

// Label tags a type with a free form label.
// +anstore:marker
// +anstore:target=type
type Label string
