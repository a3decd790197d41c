package identity

import (
	"context"

	"github.com/google/uuid"
)

// UserRepository abstracts user storage.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, agencyID uuid.UUID, email string) (*User, error)
	Update(ctx context.Context, u *User) error
	ListByAgency(ctx context.Context, agencyID uuid.UUID, role string, limit, offset int) ([]*User, int, error)
}

// ElderRepository abstracts elder storage.
type ElderRepository interface {
	Create(ctx context.Context, e *Elder) error
	GetByID(ctx context.Context, id uuid.UUID) (*Elder, error)
	Update(ctx context.Context, e *Elder) error
	ListByAgency(ctx context.Context, agencyID uuid.UUID, activeOnly bool, limit, offset int) ([]*Elder, int, error)
}
