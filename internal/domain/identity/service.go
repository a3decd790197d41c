package identity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var validRoles = map[string]bool{
	RoleAdmin:     true,
	RoleCaregiver: true,
	RoleFamily:    true,
}

type Service struct {
	users  UserRepository
	elders ElderRepository
	log    zerolog.Logger
	now    func() time.Time
}

func NewService(users UserRepository, elders ElderRepository, log zerolog.Logger) *Service {
	return &Service{users: users, elders: elders, log: log, now: time.Now}
}

func (s *Service) SetClock(now func() time.Time) { s.now = now }

// CreateUser validates and persists a new user. Email must be unique within
// the agency.
func (s *Service) CreateUser(ctx context.Context, u *User) (*User, error) {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.Email == "" {
		return nil, fmt.Errorf("email is required")
	}
	if u.AgencyID == uuid.Nil {
		return nil, fmt.Errorf("agency_id is required")
	}
	if len(u.Roles) == 0 {
		return nil, fmt.Errorf("at least one role is required")
	}
	for _, r := range u.Roles {
		if !validRoles[r] {
			return nil, fmt.Errorf("invalid role: %s", r)
		}
	}
	if existing, err := s.users.GetByEmail(ctx, u.AgencyID, u.Email); err == nil && existing != nil {
		return nil, fmt.Errorf("email already in use: %s", u.Email)
	}

	u.ID = uuid.New()
	u.Active = true
	now := s.now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	if err := s.users.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.log.Info().Str("user_id", u.ID.String()).Str("email", u.Email).Msg("user created")
	return u, nil
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.users.GetByID(ctx, id)
}

// UpdateUser replaces the mutable profile fields of a user.
func (s *Service) UpdateUser(ctx context.Context, id uuid.UUID, firstName, lastName, phone string, roles []string) (*User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(roles) > 0 {
		for _, r := range roles {
			if !validRoles[r] {
				return nil, fmt.Errorf("invalid role: %s", r)
			}
		}
		u.Roles = roles
	}
	u.FirstName = firstName
	u.LastName = lastName
	u.Phone = phone
	u.UpdatedAt = s.now().UTC()
	if err := s.users.Update(ctx, u); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return u, nil
}

// DeactivateUser soft-deletes a user. Deactivated users are excluded from
// agency listings and cascade candidate pools.
func (s *Service) DeactivateUser(ctx context.Context, id uuid.UUID) error {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	u.Active = false
	u.DeletedAt = &now
	u.UpdatedAt = now
	return s.users.Update(ctx, u)
}

func (s *Service) ListUsers(ctx context.Context, agencyID uuid.UUID, role string, limit, offset int) ([]*User, int, error) {
	if role != "" && !validRoles[role] {
		return nil, 0, fmt.Errorf("invalid role: %s", role)
	}
	return s.users.ListByAgency(ctx, agencyID, role, limit, offset)
}

// CreateElder validates and persists a new elder record.
func (s *Service) CreateElder(ctx context.Context, e *Elder) (*Elder, error) {
	if strings.TrimSpace(e.FirstName) == "" {
		return nil, fmt.Errorf("first_name is required")
	}
	if e.AgencyID == uuid.Nil {
		return nil, fmt.Errorf("agency_id is required")
	}
	if e.PrimaryCaregiverID != nil {
		if err := s.checkCaregiver(ctx, *e.PrimaryCaregiverID); err != nil {
			return nil, err
		}
	}

	e.ID = uuid.New()
	e.Active = true
	now := s.now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now
	if err := s.elders.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("create elder: %w", err)
	}
	s.log.Info().Str("elder_id", e.ID.String()).Msg("elder created")
	return e, nil
}

func (s *Service) GetElder(ctx context.Context, id uuid.UUID) (*Elder, error) {
	return s.elders.GetByID(ctx, id)
}

// UpdateElder replaces the mutable fields of an elder record.
func (s *Service) UpdateElder(ctx context.Context, id uuid.UUID, firstName, lastName, address, careNotes string, dob *time.Time) (*Elder, error) {
	e, err := s.elders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(firstName) == "" {
		return nil, fmt.Errorf("first_name is required")
	}
	e.FirstName = firstName
	e.LastName = lastName
	e.Address = address
	e.CareNotes = careNotes
	e.DateOfBirth = dob
	e.UpdatedAt = s.now().UTC()
	if err := s.elders.Update(ctx, e); err != nil {
		return nil, fmt.Errorf("update elder: %w", err)
	}
	return e, nil
}

// SetPrimaryCaregiver assigns (or clears, with nil) the elder's primary
// caregiver. The user must be an active caregiver.
func (s *Service) SetPrimaryCaregiver(ctx context.Context, elderID uuid.UUID, caregiverID *uuid.UUID) (*Elder, error) {
	e, err := s.elders.GetByID(ctx, elderID)
	if err != nil {
		return nil, err
	}
	if caregiverID != nil {
		if err := s.checkCaregiver(ctx, *caregiverID); err != nil {
			return nil, err
		}
	}
	e.PrimaryCaregiverID = caregiverID
	e.UpdatedAt = s.now().UTC()
	if err := s.elders.Update(ctx, e); err != nil {
		return nil, fmt.Errorf("update elder: %w", err)
	}
	return e, nil
}

// DeactivateElder marks an elder inactive without removing history.
func (s *Service) DeactivateElder(ctx context.Context, id uuid.UUID) error {
	e, err := s.elders.GetByID(ctx, id)
	if err != nil {
		return err
	}
	e.Active = false
	e.UpdatedAt = s.now().UTC()
	return s.elders.Update(ctx, e)
}

func (s *Service) ListElders(ctx context.Context, agencyID uuid.UUID, activeOnly bool, limit, offset int) ([]*Elder, int, error) {
	return s.elders.ListByAgency(ctx, agencyID, activeOnly, limit, offset)
}

func (s *Service) checkCaregiver(ctx context.Context, id uuid.UUID) error {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("caregiver not found: %w", err)
	}
	if !u.Active || !u.HasRole(RoleCaregiver) {
		return fmt.Errorf("user %s is not an active caregiver", id)
	}
	return nil
}
