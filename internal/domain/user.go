package domain

import "time"

// User represents a staff member or stakeholder of the cooperative.
type User struct {
	ID           string
	Name         string
	PhoneNumber  string
	Role         Role
	PasswordHash string
	CreatedAt    time.Time
}
