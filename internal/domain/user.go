package domain

import "time"

// User es el registro de identidad persistido por el store.
type User struct {
	ID              int64             `json:"id"`
	Email           string            `json:"email"`
	FullName        string            `json:"full_name,omitempty"`
	PasswordHash    string            `json:"-"`
	IsEmailVerified bool              `json:"is_email_verified"`
	Verification    VerificationState `json:"-"`
	CreatedAt       time.Time         `json:"created_at"`
}

// VerificationState guarda el ciclo de OTP en curso. OTPHash vacío equivale a NULL.
type VerificationState struct {
	OTPHash       string
	OTPExpiresAt  *time.Time
	OTPAttempts   int
	OTPLastSentAt *time.Time
}

// Pending indica si hay un ciclo de verificación abierto.
func (v VerificationState) Pending() bool {
	return v.OTPHash != ""
}

// UserProfile es la vista pública del usuario (respuesta de /users y cache de perfil).
type UserProfile struct {
	ID              int64     `json:"id"`
	Email           string    `json:"email"`
	FullName        string    `json:"full_name,omitempty"`
	IsEmailVerified bool      `json:"is_email_verified"`
	CreatedAt       time.Time `json:"created_at"`
}

func (u User) Profile() UserProfile {
	return UserProfile{
		ID:              u.ID,
		Email:           u.Email,
		FullName:        u.FullName,
		IsEmailVerified: u.IsEmailVerified,
		CreatedAt:       u.CreatedAt,
	}
}
