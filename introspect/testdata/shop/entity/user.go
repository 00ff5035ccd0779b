package entity

import "example.com/shop/anns"

// UserEntity is a stored user.
// +anns.Store=table="users"
// +anns.ClassOnly
// +anns.Broken
// +anns.Future
type UserEntity struct {
	// +anns.Store
	// +anns.FieldOnly
	ID int64

	// +anns.Audit=level=high
	Email string

	// +anns.ClassOnly
	Name string
}

// +anns.MethodOnly
// +anns.Audit="low"
func (u *UserEntity) Rename(name string) { u.Name = name }

func (u UserEntity) Display() string { return u.Name }
