// Package assignment tracks which caregivers are assigned to which elders.
// Active assignments define the candidate pool for cascade shift offers.
package assignment

import (
	"time"

	"github.com/google/uuid"
)

// CaregiverAssignment links one caregiver to the set of elders they cover.
type CaregiverAssignment struct {
	ID          uuid.UUID   `json:"id"`
	AgencyID    uuid.UUID   `json:"agency_id"`
	CaregiverID uuid.UUID   `json:"caregiver_id"`
	ElderIDs    []uuid.UUID `json:"elder_ids"`
	Active      bool        `json:"active"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Covers reports whether the assignment includes the given elder.
func (a *CaregiverAssignment) Covers(elderID uuid.UUID) bool {
	for _, id := range a.ElderIDs {
		if id == elderID {
			return true
		}
	}
	return false
}
