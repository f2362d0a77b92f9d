package dto

import "time"

// LoginRequest identifies a user by email. Passwords are not part of this portal.
type LoginRequest struct {
	Email string `json:"email" form:"email" validate:"required,email"`
}

// SessionResponse is returned after a successful login.
type SessionResponse struct {
	Token     string    `json:"token"`
	Role      string    `json:"role"`
	UserID    uint      `json:"user_id"`
	Name      string    `json:"name"`
	ExpiresAt time.Time `json:"expires_at"`
	Redirect  string    `json:"redirect"`
}
