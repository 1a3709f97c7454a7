package dto

import (
	"time"

	"github.com/spec-kit/field-service/internal/domain"
)

// LoginRequest payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse payload.
type LoginResponse struct {
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expires_at"`
	Engineer  EngineerResponse `json:"engineer"`
}

// RegisterEngineerRequest payload.
type RegisterEngineerRequest struct {
	Name     string              `json:"name"`
	Email    string              `json:"email"`
	Password string              `json:"password"`
	Role     domain.EngineerRole `json:"role"`
}

// EngineerResponse payload.
type EngineerResponse struct {
	ID     string              `json:"id"`
	Name   string              `json:"name"`
	Email  string              `json:"email"`
	Role   domain.EngineerRole `json:"role"`
	Active bool                `json:"active"`
}
