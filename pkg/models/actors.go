package models

import "time"

// Organization is the tenant owning flows and runs.
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name" validate:"required"`
	CreatedAt time.Time `json:"created_at"`
}

// User is an authenticated member of an organization.
type User struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Email          string    `json:"email" validate:"required,email"`
	Name           string    `json:"name"  validate:"required"`
	CreatedAt      time.Time `json:"created_at"`
}

// Contact is an external participant acting on steps through magic links.
type Contact struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Email          string    `json:"email" validate:"required,email"`
	Name           string    `json:"name"  validate:"required"`
	CreatedAt      time.Time `json:"created_at"`
}
