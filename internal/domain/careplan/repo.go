package careplan

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type ItemRepository interface {
	Create(ctx context.Context, item *ScheduledItem) error
	GetByID(ctx context.Context, id uuid.UUID) (*ScheduledItem, error)
	Update(ctx context.Context, item *ScheduledItem) error
	Deactivate(ctx context.Context, id uuid.UUID) error
	ListActiveByElder(ctx context.Context, elderID uuid.UUID, itemType ItemType) ([]*ScheduledItem, error)
}

type LogRepository interface {
	Create(ctx context.Context, l *DoseLog) error
	ListByElderBetween(ctx context.Context, elderID uuid.UUID, itemType ItemType, from, to time.Time) ([]DoseLog, error)
}
