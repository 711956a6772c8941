package users

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=120"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	SetupKey string `json:"setupKey"`
}

type PasswordRequest struct {
	Password string `json:"password" validate:"required,min=8"`
}
