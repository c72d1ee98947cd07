package domain

import "time"

// Employee is a directory profile owned by exactly one User.
type Employee struct {
	ID             string    `json:"id"`
	UserID         string    `json:"-"`
	Email          string    `json:"email"`
	FullName       string    `json:"fullName"`
	Role           Role      `json:"role"`
	MobileNumber   *string   `json:"mobileNumber"`
	ProfilePicture *string   `json:"profilePicture"`
	Department     *string   `json:"department"`
	Position       *string   `json:"position"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// PublicProfile is the subset of an Employee shown on the shareable profile.
type PublicProfile struct {
	ID             string  `json:"id"`
	Email          string  `json:"email"`
	FullName       string  `json:"fullName"`
	MobileNumber   *string `json:"mobileNumber"`
	ProfilePicture *string `json:"profilePicture"`
	Department     *string `json:"department"`
	Position       *string `json:"position"`
}

// PublicProfile returns the public projection of the employee.
func (e *Employee) PublicProfile() *PublicProfile {
	return &PublicProfile{
		ID:             e.ID,
		Email:          e.Email,
		FullName:       e.FullName,
		MobileNumber:   e.MobileNumber,
		ProfilePicture: e.ProfilePicture,
		Department:     e.Department,
		Position:       e.Position,
	}
}

// OptionalString converts an empty string to nil.
func OptionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
