package user

import "scout-portal/internal/domain"

// FormLogin represents login form data
type FormLogin struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// FormRegister represents guardian self-registration data
type FormRegister struct {
	Name     string `json:"name" binding:"required,max=100"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

// FormRefresh lets clients that cannot hold cookies send the refresh token
// in the body.
type FormRefresh struct {
	RefreshToken string `json:"refresh_token"`
}

type TokenResponse struct {
	AccessToken string          `json:"access_token"`
	User        domain.SafeUser `json:"user"`
}
