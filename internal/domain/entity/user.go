// Package entity contains the core business objects of the project,
// each representing a unique, identifiable concept within the domain.
package entity

import "time"

// User is an account that can authenticate and hold sessions.
type User struct {
	ID           string    // Login identifier, unique and stable.
	Name         string    // Display name.
	PasswordHash string    // Adaptive hash of the password; never leaves the server.
	Role         Role      // Authority level.
	Online       bool      // True while at least one realtime connection is open.
	CreatedAt    time.Time // Timestamp of when this account was created.
	UpdatedAt    time.Time // Timestamp of the last modification to this account.
}

// UserSummary is the public projection of a User.
type UserSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}

// Summary returns the public projection of the user.
func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Role: u.Role}
}
