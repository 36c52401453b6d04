package request

// GuestLoginRequest is the body for POST /api/auth/guest
type GuestLoginRequest struct {
	DisplayName string `json:"display_name"`
}

// RegisterRequest is the body for POST /api/auth/register
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginRequest is the body for POST /api/auth/login
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}
