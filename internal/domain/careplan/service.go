package careplan

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ElderDirectory resolves elder display names. Implemented by the identity
// domain; a consumer-side interface keeps the packages decoupled.
type ElderDirectory interface {
	ElderName(ctx context.Context, id uuid.UUID) (string, error)
}

type Service struct {
	items  ItemRepository
	logs   LogRepository
	elders ElderDirectory
	now    func() time.Time
}

func NewService(items ItemRepository, logs LogRepository, elders ElderDirectory) *Service {
	return &Service{items: items, logs: logs, elders: elders, now: time.Now}
}

// SetClock overrides the service clock. Tests only.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

var validFrequencyTypes = map[FrequencyType]bool{
	FreqDaily: true, FreqTwiceDaily: true, FreqThreeTimes: true,
	FreqFourTimes: true, FreqWeekly: true, FreqCustom: true, FreqAsNeeded: true,
}

func (s *Service) CreateItem(ctx context.Context, item *ScheduledItem) error {
	if item.ElderID == uuid.Nil {
		return fmt.Errorf("elder_id is required")
	}
	if item.Name == "" {
		return fmt.Errorf("name is required")
	}
	if item.Type != TypeMedication && item.Type != TypeSupplement {
		return fmt.Errorf("invalid item type: %s", item.Type)
	}
	if !validFrequencyTypes[item.Frequency.Type] {
		return fmt.Errorf("invalid frequency type: %s", item.Frequency.Type)
	}
	for _, t := range item.Frequency.Times {
		if _, _, err := parseClockTime(t); err != nil {
			return err
		}
	}
	for _, d := range item.Frequency.Days {
		if d < 0 || d > 6 {
			return fmt.Errorf("invalid weekday %d: must be 0 (Sunday) through 6", d)
		}
	}
	item.Active = true
	return s.items.Create(ctx, item)
}

func (s *Service) GetItem(ctx context.Context, id uuid.UUID) (*ScheduledItem, error) {
	return s.items.GetByID(ctx, id)
}

func (s *Service) DeactivateItem(ctx context.Context, id uuid.UUID) error {
	return s.items.Deactivate(ctx, id)
}

func (s *Service) ListItems(ctx context.Context, elderID uuid.UUID, itemType ItemType) ([]*ScheduledItem, error) {
	return s.items.ListActiveByElder(ctx, elderID, itemType)
}

var validDoseStatuses = map[DoseStatus]bool{
	DoseTaken: true, DoseMissed: true, DoseSkipped: true,
}

// RecordDose appends one administration event for a scheduled item.
func (s *Service) RecordDose(ctx context.Context, l *DoseLog) error {
	if l.ItemID == uuid.Nil {
		return fmt.Errorf("item_id is required")
	}
	if !validDoseStatuses[l.Status] {
		return fmt.Errorf("invalid dose status: %s", l.Status)
	}
	item, err := s.items.GetByID(ctx, l.ItemID)
	if err != nil {
		return fmt.Errorf("scheduled item not found")
	}
	l.ItemType = item.Type
	l.ElderID = item.ElderID
	if l.CreatedAt.IsZero() {
		l.CreatedAt = s.now()
	}
	return s.logs.Create(ctx, l)
}

// DayTasks computes the full prioritized queue for one elder, "today" being
// the day of the service clock. Everything is derived fresh from current
// schedules and logs on each call.
func (s *Service) DayTasks(ctx context.Context, elderID uuid.UUID) (*DaySummary, error) {
	now := s.now()

	elderName, err := s.elders.ElderName(ctx, elderID)
	if err != nil {
		return nil, fmt.Errorf("resolve elder: %w", err)
	}

	medications, err := s.items.ListActiveByElder(ctx, elderID, TypeMedication)
	if err != nil {
		return nil, fmt.Errorf("list medications: %w", err)
	}
	supplements, err := s.items.ListActiveByElder(ctx, elderID, TypeSupplement)
	if err != nil {
		return nil, fmt.Errorf("list supplements: %w", err)
	}

	// A log can sit up to the matching window outside the day and still
	// match a midnight-adjacent dose.
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	from := dayStart.Add(-LogMatchWindow)
	to := dayStart.Add(24*time.Hour + LogMatchWindow)

	medicationLogs, err := s.logs.ListByElderBetween(ctx, elderID, TypeMedication, from, to)
	if err != nil {
		return nil, fmt.Errorf("list medication logs: %w", err)
	}
	supplementLogs, err := s.logs.ListByElderBetween(ctx, elderID, TypeSupplement, from, to)
	if err != nil {
		return nil, fmt.Errorf("list supplement logs: %w", err)
	}

	tasks := GenerateDayTasks(medications, supplements, medicationLogs, supplementLogs, elderName, now)

	summary := &DaySummary{
		Tasks:      tasks,
		Next:       NextTask(tasks),
		TotalCount: len(tasks),
	}
	for _, t := range tasks {
		if t.Status == StatusCompleted {
			summary.CompletedCount++
		}
	}
	summary.AllCaughtUp = summary.Next == nil
	return summary, nil
}

// NextTaskForElder returns only the head of the queue, or nil when the elder
// is all caught up.
func (s *Service) NextTaskForElder(ctx context.Context, elderID uuid.UUID) (*Task, error) {
	summary, err := s.DayTasks(ctx, elderID)
	if err != nil {
		return nil, err
	}
	return summary.Next, nil
}
