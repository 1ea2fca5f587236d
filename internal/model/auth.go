package model

// LoginRequest carries login credentials
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest carries registration fields. Role defaults to customer.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email" binding:"omitempty,email"`
	Password string `json:"password"`
	Role     string `json:"role" binding:"omitempty,oneof=customer provider"`
}

// AuthResult is returned by register and login.
type AuthResult struct {
	User  PublicUser `json:"user"`
	Token string     `json:"token"`
}

// Identity is the verified caller attached to a request.
type Identity struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
}

func (i Identity) IsProvider() bool {
	return i.Role == RoleProvider
}

func (i Identity) IsCustomer() bool {
	return i.Role == RoleCustomer
}
