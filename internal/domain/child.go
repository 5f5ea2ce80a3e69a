package domain

import "time"

// Child is a registered scout ("educando").
type Child struct {
	ID        uint64     `json:"id"`
	FirstName string     `gorm:"not null" json:"first_name"`
	LastName  string     `gorm:"not null" json:"last_name"`
	BirthDate *time.Time `json:"birth_date,omitempty"`
	Section   string     `gorm:"type:varchar(50)" json:"section"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Guardianship links a guardian account to a child.
type Guardianship struct {
	ID         uint64    `json:"id"`
	ChildID    uint64    `gorm:"not null;uniqueIndex:idx_guardian_child" json:"child_id"`
	GuardianID uint64    `gorm:"not null;uniqueIndex:idx_guardian_child" json:"guardian_id"`
	Relation   string    `gorm:"type:varchar(30)" json:"relation"`
	CreatedAt  time.Time `json:"created_at"`
}
