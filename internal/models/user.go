package models

import "time"

// User is one row of the users table served by GET /api/users.
type User struct {
	ID        int64     `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Email     string    `json:"email" yaml:"email"`
	Phone     string    `json:"phone,omitempty" yaml:"phone,omitempty"`
	Company   string    `json:"company,omitempty" yaml:"company,omitempty"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// UserList is the response body of GET /api/users.
type UserList struct {
	Users []*User `json:"users" yaml:"users"`
	Page  int     `json:"page" yaml:"page"`
	Limit int     `json:"limit" yaml:"limit"`
	Total int     `json:"total" yaml:"total"`
}
