package models

import "time"

type Employee struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	Phone           string    `json:"phone"`
	Role            string    `json:"role"`
	Permissions     []string  `json:"permissions"`
	Active          bool      `json:"active"`
	SourceRequestID *int64    `json:"source_request_id,omitempty"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type UpsertEmployeeInput struct {
	Name            string   `json:"name" validate:"required,max=200"`
	Email           string   `json:"email" validate:"required,email"`
	Phone           string   `json:"phone" validate:"omitempty,max=20"`
	Role            string   `json:"role" validate:"required,oneof=employee finance admin"`
	Permissions     []string `json:"permissions"`
	SourceRequestID *int64   `json:"-"`
}

type ResyncResult struct {
	Total    int `json:"total"`
	Mirrored int `json:"mirrored"`
	Failed   int `json:"failed"`
}
