package models

import "time"

type Profile struct {
	ID        string     `json:"id" example:"6f1e0c9a-6a3a-4a5e-9a1e-1c2d3e4f5a6b"` // User ID (uuid)
	Email     string     `json:"email" example:"user@example.com"`                  // User email
	Username  string     `json:"username" example:"wanderer_912"`                   // Public handle
	FullName  string     `json:"full_name" example:"Ama Mensah"`                    // Display name
	Role      string     `json:"role" example:"user"`
	LastLogin *time.Time `json:"last_login,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
