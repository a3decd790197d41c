package shift

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Scoring weights. The completed-shift continuity bonus is capped; the load
// bonus rewards caregivers with a light week and saturates to zero at five
// active shifts.
const (
	primaryCaregiverBonus = 40
	elderAssignmentBonus  = 15
	preferredBonus        = 10
	completedBonusCap     = 25
	loadBonusBase         = 10
	loadPenaltyPerShift   = 2
)

// Assignment is the slice of a caregiver assignment the ranker needs.
type Assignment struct {
	CaregiverID uuid.UUID
	ElderIDs    []uuid.UUID
}

// ElderInfo is the slice of an elder record the ranker needs.
type ElderInfo struct {
	ID                 uuid.UUID
	Name               string
	PrimaryCaregiverID *uuid.UUID
}

// CaregiverProfile carries the user fields used for display-name resolution.
type CaregiverProfile struct {
	ID        uuid.UUID
	FirstName string
	LastName  string
	Email     string
}

// DisplayName resolves a caregiver's display name: first+last, then first
// name only, then email, then a synthesized tag from the id.
func (p *CaregiverProfile) DisplayName() string {
	if p != nil {
		switch {
		case p.FirstName != "" && p.LastName != "":
			return p.FirstName + " " + p.LastName
		case p.FirstName != "":
			return p.FirstName
		case p.Email != "":
			return p.Email
		}
	}
	return ""
}

// FallbackName synthesizes a display name from a caregiver id.
func FallbackName(id uuid.UUID) string {
	return "Caregiver " + id.String()[:6]
}

// AssignmentDirectory, ElderDirectory and UserDirectory are consumer-side
// views of the assignment and identity domains; main wires small adapters.
type AssignmentDirectory interface {
	ListActiveByAgency(ctx context.Context, agencyID uuid.UUID) ([]Assignment, error)
}

type ElderDirectory interface {
	GetElder(ctx context.Context, id uuid.UUID) (*ElderInfo, error)
}

type UserDirectory interface {
	GetCaregiver(ctx context.Context, id uuid.UUID) (*CaregiverProfile, error)
}

// RankRequest describes the open shift being ranked. StartTime must be
// strictly before EndTime; the caller validates before ranking.
type RankRequest struct {
	AgencyID             uuid.UUID
	ElderID              uuid.UUID
	Date                 time.Time
	StartTime            string
	EndTime              string
	PreferredCaregiverID *uuid.UUID
}

// Ranker scores an agency's active caregivers for an open shift. It is a
// pure function over store reads; per-candidate query failures exclude that
// candidate rather than aborting the pass.
type Ranker struct {
	shifts      Repository
	assignments AssignmentDirectory
	elders      ElderDirectory
	users       UserDirectory
	log         zerolog.Logger
}

func NewRanker(shifts Repository, assignments AssignmentDirectory, elders ElderDirectory, users UserDirectory, log zerolog.Logger) *Ranker {
	return &Ranker{shifts: shifts, assignments: assignments, elders: elders, users: users, log: log}
}

// Rank returns the agency's eligible caregivers ordered by score descending.
// Candidates with any overlapping active shift on the date never appear.
// An agency with no active assignments yields an empty list.
func (r *Ranker) Rank(ctx context.Context, req RankRequest) ([]Candidate, error) {
	reqStart, err := MinuteOfDay(req.StartTime)
	if err != nil {
		return nil, err
	}
	reqEnd, err := MinuteOfDay(req.EndTime)
	if err != nil {
		return nil, err
	}
	if reqStart >= reqEnd {
		return nil, fmt.Errorf("start time must be before end time")
	}

	assignments, err := r.assignments.ListActiveByAgency(ctx, req.AgencyID)
	if err != nil {
		return nil, fmt.Errorf("list active assignments: %w", err)
	}
	if len(assignments) == 0 {
		return nil, nil
	}

	// Merge elder coverage per caregiver, then enumerate in id order so
	// equal-score ties are reproducible.
	covered := make(map[uuid.UUID]map[uuid.UUID]bool)
	for _, a := range assignments {
		if covered[a.CaregiverID] == nil {
			covered[a.CaregiverID] = make(map[uuid.UUID]bool)
		}
		for _, eid := range a.ElderIDs {
			covered[a.CaregiverID][eid] = true
		}
	}
	ids := make([]uuid.UUID, 0, len(covered))
	for id := range covered {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	// Primary-caregiver lookup is best effort: an unavailable elder record
	// only forfeits the bonus.
	var primaryID *uuid.UUID
	elder, err := r.elders.GetElder(ctx, req.ElderID)
	if err != nil {
		r.log.Warn().Err(err).Str("elder_id", req.ElderID.String()).Msg("ranking: elder lookup failed")
	} else if elder != nil {
		primaryID = elder.PrimaryCaregiverID
	}

	weekStart, weekEnd := WeekBounds(req.Date)

	var candidates []Candidate
	for _, cid := range ids {
		existing, err := r.shifts.ListByCaregiverOnDate(ctx, cid, req.Date, ActiveStatuses)
		if err != nil {
			r.log.Warn().Err(err).Str("caregiver_id", cid.String()).Msg("ranking: conflict check failed, excluding candidate")
			continue
		}
		if hasConflict(existing, reqStart, reqEnd) {
			continue
		}

		score := 0
		if primaryID != nil && *primaryID == cid {
			score += primaryCaregiverBonus
		}
		if covered[cid][req.ElderID] {
			score += elderAssignmentBonus
		}
		if req.PreferredCaregiverID != nil && *req.PreferredCaregiverID == cid {
			score += preferredBonus
		}

		completed, err := r.shifts.CountCompletedForElder(ctx, req.AgencyID, cid, req.ElderID)
		if err != nil {
			r.log.Warn().Err(err).Str("caregiver_id", cid.String()).Msg("ranking: completed count failed, excluding candidate")
			continue
		}
		if completed > completedBonusCap {
			completed = completedBonusCap
		}
		score += completed

		weekly, err := r.shifts.CountActiveInWeek(ctx, req.AgencyID, cid, weekStart, weekEnd)
		if err != nil {
			r.log.Warn().Err(err).Str("caregiver_id", cid.String()).Msg("ranking: weekly load failed, excluding candidate")
			continue
		}
		if bonus := loadBonusBase - loadPenaltyPerShift*weekly; bonus > 0 {
			score += bonus
		}

		candidates = append(candidates, Candidate{
			CaregiverID:   cid,
			CaregiverName: r.resolveName(ctx, cid),
			Score:         score,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	return candidates, nil
}

func hasConflict(existing []*Shift, reqStart, reqEnd int) bool {
	for _, s := range existing {
		start, err := MinuteOfDay(s.StartTime)
		if err != nil {
			continue
		}
		end, err := MinuteOfDay(s.EndTime)
		if err != nil {
			continue
		}
		if Overlaps(reqStart, reqEnd, start, end) {
			return true
		}
	}
	return false
}

func (r *Ranker) resolveName(ctx context.Context, caregiverID uuid.UUID) string {
	profile, err := r.users.GetCaregiver(ctx, caregiverID)
	if err != nil {
		return FallbackName(caregiverID)
	}
	if name := profile.DisplayName(); name != "" {
		return name
	}
	return FallbackName(caregiverID)
}
