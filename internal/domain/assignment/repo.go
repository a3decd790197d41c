package assignment

import (
	"context"

	"github.com/google/uuid"
)

// Repository abstracts assignment storage.
type Repository interface {
	Create(ctx context.Context, a *CaregiverAssignment) error
	GetByID(ctx context.Context, id uuid.UUID) (*CaregiverAssignment, error)
	GetActiveByCaregiver(ctx context.Context, agencyID, caregiverID uuid.UUID) (*CaregiverAssignment, error)
	Update(ctx context.Context, a *CaregiverAssignment) error
	ListActiveByAgency(ctx context.Context, agencyID uuid.UUID) ([]*CaregiverAssignment, error)
}
