package assignment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// CaregiverDirectory is the slice of the identity domain the service needs
// to validate assignees.
type CaregiverDirectory interface {
	IsActiveCaregiver(ctx context.Context, id uuid.UUID) (bool, error)
}

type Service struct {
	repo       Repository
	caregivers CaregiverDirectory
	log        zerolog.Logger
	now        func() time.Time
}

func NewService(repo Repository, caregivers CaregiverDirectory, log zerolog.Logger) *Service {
	return &Service{repo: repo, caregivers: caregivers, log: log, now: time.Now}
}

func (s *Service) SetClock(now func() time.Time) { s.now = now }

// Create validates and persists a new assignment. A caregiver holds at most
// one active assignment per agency; elders are deduplicated.
func (s *Service) Create(ctx context.Context, agencyID, caregiverID uuid.UUID, elderIDs []uuid.UUID) (*CaregiverAssignment, error) {
	if agencyID == uuid.Nil || caregiverID == uuid.Nil {
		return nil, fmt.Errorf("agency_id and caregiver_id are required")
	}
	if len(elderIDs) == 0 {
		return nil, fmt.Errorf("at least one elder is required")
	}
	ok, err := s.caregivers.IsActiveCaregiver(ctx, caregiverID)
	if err != nil {
		return nil, fmt.Errorf("verify caregiver: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("user %s is not an active caregiver", caregiverID)
	}
	if existing, err := s.repo.GetActiveByCaregiver(ctx, agencyID, caregiverID); err == nil && existing != nil {
		return nil, fmt.Errorf("caregiver already has an active assignment")
	}

	now := s.now().UTC()
	a := &CaregiverAssignment{
		ID:          uuid.New(),
		AgencyID:    agencyID,
		CaregiverID: caregiverID,
		ElderIDs:    dedupe(elderIDs),
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("create assignment: %w", err)
	}
	s.log.Info().
		Str("assignment_id", a.ID.String()).
		Str("caregiver_id", caregiverID.String()).
		Int("elders", len(a.ElderIDs)).
		Msg("assignment created")
	return a, nil
}

// UpdateElders replaces the elder set on an active assignment.
func (s *Service) UpdateElders(ctx context.Context, id uuid.UUID, elderIDs []uuid.UUID) (*CaregiverAssignment, error) {
	if len(elderIDs) == 0 {
		return nil, fmt.Errorf("at least one elder is required")
	}
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !a.Active {
		return nil, fmt.Errorf("assignment is not active")
	}
	a.ElderIDs = dedupe(elderIDs)
	a.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, fmt.Errorf("update assignment: %w", err)
	}
	return a, nil
}

// Deactivate removes the caregiver from the cascade candidate pool without
// touching their shift history.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	a.Active = false
	a.UpdatedAt = s.now().UTC()
	return s.repo.Update(ctx, a)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*CaregiverAssignment, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListActiveByAgency(ctx context.Context, agencyID uuid.UUID) ([]*CaregiverAssignment, error) {
	return s.repo.ListActiveByAgency(ctx, agencyID)
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
