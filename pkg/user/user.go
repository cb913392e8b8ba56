package user

import "time"

type User struct {
	Id        int64
	Email     string
	FirstName string
	LastName  string
	CreatedAt time.Time
}

// Calendar is the single per-user container for time slots. It is
// provisioned together with its owner and never exists on its own.
type Calendar struct {
	Id        int64
	UserId    int64
	CreatedAt time.Time
}
