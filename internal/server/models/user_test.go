package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUser_String(t *testing.T) {
	u := &User{UserName: "alice", Email: "alice@example.com"}
	assert.Equal(t, "alice@example.com", u.String())
}

func TestUser_Clone(t *testing.T) {
	last := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	u := &User{ID: "1", UserName: "alice", LastLogin: &last}

	c := u.Clone()
	c.UserName = "bob"
	*c.LastLogin = last.Add(time.Hour)

	assert.Equal(t, "alice", u.UserName)
	assert.Equal(t, last, *u.LastLogin)

	assert.Nil(t, (&User{}).Clone().LastLogin)
}
