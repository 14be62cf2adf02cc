// Package models holds the domain records persisted by the accounts server.
package models

import "time"

// User is an account. Email is stored normalized and compared
// case-insensitively; UserName is compared exactly.
type User struct {
	ID           string
	UserName     string
	Email        string
	PasswordHash string
	IsActive     bool
	IsStaff      bool
	IsSuperuser  bool
	LastLogin    *time.Time
	DateJoined   time.Time
	UpdatedAt    time.Time
}

func (u *User) String() string {
	return u.Email
}

// Clone returns a deep copy so callers can mutate it without touching the
// stored record.
func (u *User) Clone() *User {
	c := *u
	if u.LastLogin != nil {
		t := *u.LastLogin
		c.LastLogin = &t
	}
	return &c
}
