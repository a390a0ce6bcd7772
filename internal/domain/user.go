package domain

import "time"

// User representa una cuenta registrada. El hash de la contraseña nunca se serializa.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone,omitempty"`
	PasswordHash string    `json:"-"`
	UserType     string    `json:"user_type"`
	CreatedAt    time.Time `json:"created_at"`
}

// UserFilter describe una busqueda por igualdad exacta; los campos vacios se ignoran.
type UserFilter struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	UserType string `json:"user_type"`
}

// IsEmpty indica si el filtro no restringe ningun campo.
func (f UserFilter) IsEmpty() bool {
	return f.Name == "" && f.Email == "" && f.Phone == "" && f.UserType == ""
}
