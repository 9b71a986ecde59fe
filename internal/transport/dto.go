package transport

import "github.com/Skotchmaster/shop_auth/internal/models"

type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RegisterRequest struct {
	Name     string `json:"name"     validate:"required,max=100"`
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,password"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token"       validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,password"`
}

type ChangeRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=customer admin"`
}

type SessionResponse struct {
	Success bool              `json:"success"`
	User    models.PublicUser `json:"user"`
}

type StatusResponse struct {
	IsAuthenticated bool               `json:"isAuthenticated"`
	User            *models.PublicUser `json:"user"`
}

type ForgotPasswordResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Token     string `json:"token,omitempty"`
	ExpiresAt string `json:"expiresAt,omitempty"`
}
