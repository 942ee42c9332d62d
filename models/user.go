package models

import (
	"time"

	"github.com/uptrace/bun"
)

// User is a dashboard operator. Passwords are stored as bcrypt hashes.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID        int        `bun:"id,pk,autoincrement" json:"id"`
	Username  string     `bun:"username,notnull,unique" json:"username"`
	Password  string     `bun:"password,notnull" json:"-"`
	LastLogin *time.Time `bun:"last_login" json:"lastLogin,omitempty"`
}
