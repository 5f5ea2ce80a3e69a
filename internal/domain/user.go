package domain

import "time"

type Role string

const (
	RoleGuardian Role = "guardian"
	RoleScouter  Role = "scouter"
	RoleAdmin    Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleGuardian, RoleScouter, RoleAdmin:
		return true
	}
	return false
}

// CanReview reports whether the role may review documents and resolve
// unlock requests.
func (r Role) CanReview() bool {
	return r == RoleScouter || r == RoleAdmin
}

// User represents a user in the system
type User struct {
	ID           uint64
	Name         string
	Email        string `gorm:"uniqueIndex"`
	Password     string `gorm:"-" json:"-"` // input only, not stored in db
	PasswordHash string `json:"-"`
	Role         Role   `gorm:"type:varchar(20);not null;default:guardian"`
	TokenVersion uint64 `gorm:"not null;default:0"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
	IsActive     bool `gorm:"default:true"`
}

// SafeUser represents a user without sensitive information
type SafeUser struct {
	ID        uint64    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	IsActive  bool      `json:"is_active"`
}

// ToSafeUser converts a User to a SafeUser
func (u *User) ToSafeUser() SafeUser {
	return SafeUser{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
		IsActive:  u.IsActive,
	}
}

// Actor is the verified identity behind a request.
type Actor struct {
	ID   uint64
	Role Role
}
