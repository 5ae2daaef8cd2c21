package domain

import "github.com/google/uuid"

// Household is a read-only projection of the resident directory: just enough
// to target a survey and reach the household head. The records module owns
// the full household record.
type Household struct {
	ID          uuid.UUID `json:"id" db:"id"`
	HouseholdNo string    `json:"household_no" db:"household_no"`
	HeadName    string    `json:"head_name" db:"head_name"`
	Email       string    `json:"email" db:"email"`
	Phone       string    `json:"phone" db:"phone"`
	Address     string    `json:"address" db:"address"`
	Active      bool      `json:"active" db:"active"`
}
