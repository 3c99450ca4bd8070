package domain

import "time"

// Educator is the slice of the CRM contact table the matcher needs. The CRM
// application owns these rows; this service only reads them.
type Educator struct {
	ID             string    `json:"id" gorm:"primaryKey"`
	FullName       string    `json:"full_name"`
	Email          string    `json:"email" gorm:"index"`
	AlternateEmail string    `json:"alternate_email"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (Educator) TableName() string {
	return "educators"
}
