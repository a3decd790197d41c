// Package identity manages agency staff, family members and the elders in
// their care. Users carry roles (admin, caregiver, family); elders carry an
// optional primary caregiver used by shift ranking.
package identity

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleAdmin     = "admin"
	RoleCaregiver = "caregiver"
	RoleFamily    = "family"
)

// User is an account within an agency: staff, caregivers or family members.
type User struct {
	ID        uuid.UUID  `json:"id"`
	AgencyID  uuid.UUID  `json:"agency_id"`
	Email     string     `json:"email"`
	FirstName string     `json:"first_name,omitempty"`
	LastName  string     `json:"last_name,omitempty"`
	Phone     string     `json:"phone,omitempty"`
	Roles     []string   `json:"roles"`
	Active    bool       `json:"active"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// DisplayName resolves the user's presentable name: full name, then first
// name, then email. Returns "" when nothing usable is set.
func (u *User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.Email
	}
}

// HasRole reports whether the user carries the given role.
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Elder is a care recipient. PrimaryCaregiverID, when set, gives that
// caregiver a large head start in shift ranking.
type Elder struct {
	ID                 uuid.UUID  `json:"id"`
	AgencyID           uuid.UUID  `json:"agency_id"`
	FirstName          string     `json:"first_name"`
	LastName           string     `json:"last_name,omitempty"`
	DateOfBirth        *time.Time `json:"date_of_birth,omitempty"`
	Address            string     `json:"address,omitempty"`
	CareNotes          string     `json:"care_notes,omitempty"`
	PrimaryCaregiverID *uuid.UUID `json:"primary_caregiver_id,omitempty"`
	Active             bool       `json:"active"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// DisplayName returns the elder's presentable name.
func (e *Elder) DisplayName() string {
	if e.LastName != "" {
		return e.FirstName + " " + e.LastName
	}
	return e.FirstName
}
