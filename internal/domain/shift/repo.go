package shift

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, s *Shift) error
	GetByID(ctx context.Context, id uuid.UUID) (*Shift, error)
	// ListByCaregiverOnDate returns the caregiver's shifts on a date whose
	// status is in statuses.
	ListByCaregiverOnDate(ctx context.Context, caregiverID uuid.UUID, date time.Time, statuses []Status) ([]*Shift, error)
	// CountCompletedForElder counts completed shifts this caregiver worked
	// for this elder in this agency.
	CountCompletedForElder(ctx context.Context, agencyID, caregiverID, elderID uuid.UUID) (int, error)
	// CountActiveInWeek counts the caregiver's active-status shifts in the
	// agency between weekStart and weekEnd inclusive.
	CountActiveInWeek(ctx context.Context, agencyID, caregiverID uuid.UUID, weekStart, weekEnd time.Time) (int, error)
	ListByAgency(ctx context.Context, agencyID uuid.UUID, elderID *uuid.UUID, status Status, limit, offset int) ([]*Shift, int, error)
	// ListExpiredOffers returns offered shifts whose current offer window
	// lapsed before now. Used by the sweep.
	ListExpiredOffers(ctx context.Context, now time.Time, limit int) ([]*Shift, error)
	Update(ctx context.Context, s *Shift) error
	// CompareAndSwapCascade writes s only if the stored row is still offered
	// at expectedOfferIndex. Returns false (and writes nothing) when another
	// writer advanced the cascade first.
	CompareAndSwapCascade(ctx context.Context, s *Shift, expectedOfferIndex int) (bool, error)
}
