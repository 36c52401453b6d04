package response

import (
	"github.com/castlegate/castlegate/internal/services/auth"
)

// AuthResponse is returned by every login endpoint
type AuthResponse struct {
	PlayerID    string `json:"player_id"`
	DisplayName string `json:"display_name"`
	Guest       bool   `json:"guest"`
	Token       string `json:"token"`
}

// AuthResponseFromLogin converts a service login result
func AuthResponseFromLogin(login *auth.Login) AuthResponse {
	return AuthResponse{
		PlayerID:    string(login.Identity.PlayerID),
		DisplayName: login.Identity.DisplayName,
		Guest:       login.Identity.Guest,
		Token:       login.Token,
	}
}
