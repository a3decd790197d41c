package shift

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/caregrid/caregrid/internal/platform/notification"
)

// OfferWindow is how long each cascade candidate has to respond before the
// offer lapses and the cascade advances.
const OfferWindow = 30 * time.Minute

// ErrNotCurrentRecipient rejects an accept or decline from anyone but the
// caregiver the cascade pointer currently rests on. It is the optimistic
// check that resolves the race between a timeout-driven advancement and a
// simultaneous human response.
var ErrNotCurrentRecipient = errors.New("you are not the current offer recipient")

// Notifier writes user notifications. When called inside a transaction the
// write joins it, so a shift transition and its notification commit together.
type Notifier interface {
	Send(ctx context.Context, n *notification.Notification) error
}

// TxRunner executes a function within one atomic store write.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Service struct {
	shifts   Repository
	ranker   *Ranker
	notifier Notifier
	tx       TxRunner
	log      zerolog.Logger
	now      func() time.Time
}

func NewService(shifts Repository, ranker *Ranker, notifier Notifier, tx TxRunner, log zerolog.Logger) *Service {
	return &Service{shifts: shifts, ranker: ranker, notifier: notifier, tx: tx, log: log, now: time.Now}
}

// SetClock overrides the service clock. Tests only.
func (svc *Service) SetClock(now func() time.Time) { svc.now = now }

// CreateCascadeRequest carries the validated fields for a new cascade shift.
type CreateCascadeRequest struct {
	AgencyID             uuid.UUID
	ElderID              uuid.UUID
	Date                 time.Time
	StartTime            string
	EndTime              string
	PreferredCaregiverID *uuid.UUID
	Notes                *string
	CreatedBy            uuid.UUID
}

func (req *CreateCascadeRequest) validate(now time.Time) (startMin, endMin int, err error) {
	if req.AgencyID == uuid.Nil {
		return 0, 0, fmt.Errorf("agency_id is required")
	}
	if req.ElderID == uuid.Nil {
		return 0, 0, fmt.Errorf("elder_id is required")
	}
	if req.CreatedBy == uuid.Nil {
		return 0, 0, fmt.Errorf("created_by is required")
	}
	if req.Date.IsZero() {
		return 0, 0, fmt.Errorf("date is required")
	}
	startMin, err = MinuteOfDay(req.StartTime)
	if err != nil {
		return 0, 0, err
	}
	endMin, err = MinuteOfDay(req.EndTime)
	if err != nil {
		return 0, 0, err
	}
	if startMin >= endMin {
		return 0, 0, fmt.Errorf("start time must be before end time")
	}
	if DateOnly(req.Date).Before(DateOnly(now)) {
		return 0, 0, fmt.Errorf("cannot create a shift on a past date")
	}
	return startMin, endMin, nil
}

// CreateCascadeShift ranks the agency's caregivers and opens the shift in one
// of two states: offered to the top candidate with a fresh offer window, or
// unfilled with a manual-assignment escalation to the requesting admin when
// nobody is eligible. The shift write and its notification commit atomically.
func (svc *Service) CreateCascadeShift(ctx context.Context, req CreateCascadeRequest) (*Shift, error) {
	now := svc.now()
	startMin, endMin, err := req.validate(now)
	if err != nil {
		return nil, err
	}

	candidates, err := svc.ranker.Rank(ctx, RankRequest{
		AgencyID:             req.AgencyID,
		ElderID:              req.ElderID,
		Date:                 req.Date,
		StartTime:            req.StartTime,
		EndTime:              req.EndTime,
		PreferredCaregiverID: req.PreferredCaregiverID,
	})
	if err != nil {
		return nil, fmt.Errorf("rank caregivers: %w", err)
	}

	s := &Shift{
		AgencyID:        req.AgencyID,
		ElderID:         req.ElderID,
		Date:            DateOnly(req.Date),
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		DurationMinutes: endMin - startMin,
		AssignmentMode:  ModeCascade,
		Notes:           req.Notes,
		CreatedBy:       req.CreatedBy,
	}

	var notify *notification.Notification
	if len(candidates) == 0 {
		s.Status = StatusUnfilled
		s.Cascade = &CascadeState{RankedCandidates: []Candidate{}}
		notify = svc.unfilledNotification(s)
	} else {
		top := candidates[0]
		expiry := now.Add(OfferWindow)
		cid := top.CaregiverID
		s.Status = StatusOffered
		s.CaregiverID = &cid
		s.Cascade = &CascadeState{
			RankedCandidates:      candidates,
			CurrentOfferIndex:     0,
			CurrentOfferExpiresAt: &expiry,
			OfferHistory: []OfferRecord{
				{CaregiverID: top.CaregiverID, Response: OfferPending, OfferedAt: now},
			},
		}
		notify = svc.offerNotification(s, &top, expiry)
	}

	err = svc.tx.WithinTx(ctx, func(txCtx context.Context) error {
		if err := svc.shifts.Create(txCtx, s); err != nil {
			return fmt.Errorf("create shift: %w", err)
		}
		notify.Data["shiftId"] = s.ID.String()
		notify.ActionURL = "/shifts/" + s.ID.String()
		return svc.notifier.Send(txCtx, notify)
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetShift loads a shift, lazily advancing it first when its current offer
// has expired. Reads are how expiry is detected; there is no guarantee a
// background timer ran.
func (svc *Service) GetShift(ctx context.Context, id uuid.UUID) (*Shift, error) {
	s, err := svc.shifts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.Status == StatusOffered && s.Cascade.OfferExpired(svc.now()) {
		if err := svc.AdvanceExpired(ctx, id); err != nil {
			return nil, err
		}
		return svc.shifts.GetByID(ctx, id)
	}
	return s, nil
}

func (svc *Service) ListByAgency(ctx context.Context, agencyID uuid.UUID, elderID *uuid.UUID, status Status, limit, offset int) ([]*Shift, int, error) {
	return svc.shifts.ListByAgency(ctx, agencyID, elderID, status, limit, offset)
}

func (svc *Service) ListForCaregiver(ctx context.Context, caregiverID uuid.UUID, date time.Time) ([]*Shift, error) {
	return svc.shifts.ListByCaregiverOnDate(ctx, caregiverID, date, nil)
}

// AcceptOffer transitions offered → scheduled for the current candidate and
// freezes the cascade. The caller must still be the current offer recipient;
// an expired offer is advanced first and the acceptance rejected.
func (svc *Service) AcceptOffer(ctx context.Context, shiftID, caregiverID uuid.UUID, offerIndex int) (*Shift, error) {
	now := svc.now()
	s, err := svc.shifts.GetByID(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	if s.Status != StatusOffered || s.Cascade == nil {
		return nil, ErrNotCurrentRecipient
	}
	if s.Cascade.OfferExpired(now) {
		if err := svc.AdvanceExpired(ctx, shiftID); err != nil {
			svc.log.Error().Err(err).Str("shift_id", shiftID.String()).Msg("expired-offer advancement failed")
		}
		return nil, ErrNotCurrentRecipient
	}
	cur := s.Cascade.CurrentCandidate()
	if cur == nil || s.Cascade.CurrentOfferIndex != offerIndex || cur.CaregiverID != caregiverID {
		return nil, ErrNotCurrentRecipient
	}

	s.Status = StatusScheduled
	cid := cur.CaregiverID
	s.CaregiverID = &cid
	s.Cascade.CurrentOfferExpiresAt = nil
	markCurrentResponse(s.Cascade, OfferAccepted, now)

	notify := svc.respondedNotification(s, cur, OfferAccepted)
	if err := svc.swapAndNotify(ctx, s, offerIndex, notify); err != nil {
		return nil, err
	}
	return s, nil
}

// DeclineOffer records the current candidate's decline and advances the
// cascade to the next candidate (or unfilled) in the same atomic write.
func (svc *Service) DeclineOffer(ctx context.Context, shiftID, caregiverID uuid.UUID, offerIndex int) (*Shift, error) {
	now := svc.now()
	s, err := svc.shifts.GetByID(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	if s.Status != StatusOffered || s.Cascade == nil {
		return nil, ErrNotCurrentRecipient
	}
	if s.Cascade.OfferExpired(now) {
		if err := svc.AdvanceExpired(ctx, shiftID); err != nil {
			svc.log.Error().Err(err).Str("shift_id", shiftID.String()).Msg("expired-offer advancement failed")
		}
		return nil, ErrNotCurrentRecipient
	}
	cur := s.Cascade.CurrentCandidate()
	if cur == nil || s.Cascade.CurrentOfferIndex != offerIndex || cur.CaregiverID != caregiverID {
		return nil, ErrNotCurrentRecipient
	}

	markCurrentResponse(s.Cascade, OfferDeclined, now)
	next := advance(s, now)

	var notify *notification.Notification
	if next != nil {
		notify = svc.offerNotification(s, next, *s.Cascade.CurrentOfferExpiresAt)
	} else {
		notify = svc.unfilledNotification(s)
	}
	if err := svc.swapAndNotify(ctx, s, offerIndex, notify); err != nil {
		return nil, err
	}
	return s, nil
}

// AdvanceExpired marks a lapsed offer as expired and moves the cascade
// forward. Safe to call concurrently: the compare-and-swap makes losing
// writers no-ops.
func (svc *Service) AdvanceExpired(ctx context.Context, shiftID uuid.UUID) error {
	now := svc.now()
	s, err := svc.shifts.GetByID(ctx, shiftID)
	if err != nil {
		return err
	}
	if s.Status != StatusOffered || s.Cascade == nil || !s.Cascade.OfferExpired(now) {
		return nil
	}

	expectedIndex := s.Cascade.CurrentOfferIndex
	markCurrentResponse(s.Cascade, OfferExpired, now)
	next := advance(s, now)

	var notify *notification.Notification
	if next != nil {
		notify = svc.offerNotification(s, next, *s.Cascade.CurrentOfferExpiresAt)
	} else {
		notify = svc.unfilledNotification(s)
	}
	err = svc.swapAndNotify(ctx, s, expectedIndex, notify)
	if errors.Is(err, ErrNotCurrentRecipient) {
		// Another writer advanced first.
		return nil
	}
	return err
}

// SweepExpired advances every offered shift whose window lapsed before now.
// Individual failures are logged and skipped so one bad shift does not stall
// the sweep. Returns the number of shifts advanced.
func (svc *Service) SweepExpired(ctx context.Context, limit int) (int, error) {
	expired, err := svc.shifts.ListExpiredOffers(ctx, svc.now(), limit)
	if err != nil {
		return 0, fmt.Errorf("list expired offers: %w", err)
	}
	advanced := 0
	for _, s := range expired {
		if err := svc.AdvanceExpired(ctx, s.ID); err != nil {
			svc.log.Error().Err(err).Str("shift_id", s.ID.String()).Msg("sweep: advancement failed")
			continue
		}
		advanced++
	}
	return advanced, nil
}

// AssignCaregiver is the manual escalation path for an unfilled shift: the
// admin picks a caregiver directly, subject to the same conflict rule.
func (svc *Service) AssignCaregiver(ctx context.Context, shiftID, caregiverID uuid.UUID) (*Shift, error) {
	s, err := svc.shifts.GetByID(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	if s.Status != StatusUnfilled {
		return nil, fmt.Errorf("only unfilled shifts can be assigned manually")
	}
	startMin, err := MinuteOfDay(s.StartTime)
	if err != nil {
		return nil, err
	}
	endMin, err := MinuteOfDay(s.EndTime)
	if err != nil {
		return nil, err
	}
	existing, err := svc.shifts.ListByCaregiverOnDate(ctx, caregiverID, s.Date, ActiveStatuses)
	if err != nil {
		return nil, fmt.Errorf("conflict check: %w", err)
	}
	if hasConflict(existing, startMin, endMin) {
		return nil, fmt.Errorf("caregiver has a conflicting shift on that date")
	}
	s.Status = StatusScheduled
	s.CaregiverID = &caregiverID
	if err := svc.shifts.Update(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

var allowedTransitions = map[Status][]Status{
	StatusUnfilled:   {StatusCancelled},
	StatusOffered:    {StatusCancelled},
	StatusScheduled:  {StatusConfirmed, StatusInProgress, StatusCancelled},
	StatusConfirmed:  {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
}

// UpdateStatus applies a lifecycle transition (confirm, clock-in, clock-out,
// cancel). Completed and cancelled are terminal.
func (svc *Service) UpdateStatus(ctx context.Context, shiftID uuid.UUID, target Status) (*Shift, error) {
	s, err := svc.shifts.GetByID(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	ok := false
	for _, t := range allowedTransitions[s.Status] {
		if t == target {
			ok = true
			break
		}
	}
	if !ok {
		return nil, fmt.Errorf("cannot transition shift from %s to %s", s.Status, target)
	}
	now := svc.now()
	switch target {
	case StatusInProgress:
		s.ClockInAt = &now
	case StatusCompleted:
		s.ClockOutAt = &now
	}
	s.Status = target
	if err := svc.shifts.Update(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// swapAndNotify writes the mutated shift behind the compare-and-swap guard
// and, in the same transaction, the notification for whoever acts next.
func (svc *Service) swapAndNotify(ctx context.Context, s *Shift, expectedIndex int, notify *notification.Notification) error {
	return svc.tx.WithinTx(ctx, func(txCtx context.Context) error {
		swapped, err := svc.shifts.CompareAndSwapCascade(txCtx, s, expectedIndex)
		if err != nil {
			return fmt.Errorf("update cascade: %w", err)
		}
		if !swapped {
			return ErrNotCurrentRecipient
		}
		return svc.notifier.Send(txCtx, notify)
	})
}

// advance moves the offer pointer forward: the next candidate gets a fresh
// window and a pending history entry, or the shift falls back to unfilled
// when the list is exhausted. The pointer never moves backward.
func advance(s *Shift, now time.Time) *Candidate {
	cs := s.Cascade
	cs.CurrentOfferIndex++
	if next := cs.CurrentCandidate(); next != nil {
		expiry := now.Add(OfferWindow)
		cs.CurrentOfferExpiresAt = &expiry
		cs.OfferHistory = append(cs.OfferHistory, OfferRecord{
			CaregiverID: next.CaregiverID, Response: OfferPending, OfferedAt: now,
		})
		cid := next.CaregiverID
		s.CaregiverID = &cid
		s.Status = StatusOffered
		return next
	}
	cs.CurrentOfferExpiresAt = nil
	s.CaregiverID = nil
	s.Status = StatusUnfilled
	return nil
}

// markCurrentResponse resolves the newest pending history entry.
func markCurrentResponse(cs *CascadeState, response OfferResponse, now time.Time) {
	for i := len(cs.OfferHistory) - 1; i >= 0; i-- {
		if cs.OfferHistory[i].Response == OfferPending {
			cs.OfferHistory[i].Response = response
			respondedAt := now
			cs.OfferHistory[i].RespondedAt = &respondedAt
			return
		}
	}
}

func (svc *Service) offerNotification(s *Shift, candidate *Candidate, expiry time.Time) *notification.Notification {
	return &notification.Notification{
		UserID:   candidate.CaregiverID,
		Type:     "shift_offer",
		Title:    "New shift offer",
		Message: fmt.Sprintf("You have been offered a shift on %s from %s to %s. Respond before %s.",
			s.Date.Format("2006-01-02"), s.StartTime, s.EndTime, expiry.Format(time.RFC3339)),
		Priority:  notification.PriorityHigh,
		ActionURL: "/shifts/" + s.ID.String(),
		Data: map[string]interface{}{
			"shiftId":    s.ID.String(),
			"offerIndex": s.Cascade.CurrentOfferIndex,
			"expiresAt":  expiry.Format(time.RFC3339),
		},
		// The offer notification vanishes from the inbox exactly when the
		// offer lapses.
		ExpiresAt: &expiry,
	}
}

func (svc *Service) unfilledNotification(s *Shift) *notification.Notification {
	return &notification.Notification{
		UserID:   s.CreatedBy,
		Type:     "shift_unfilled",
		Title:    "Shift needs manual assignment",
		Message: fmt.Sprintf("No caregivers are available for the shift on %s from %s to %s. Please assign one manually.",
			s.Date.Format("2006-01-02"), s.StartTime, s.EndTime),
		Priority:  notification.PriorityHigh,
		ActionURL: "/shifts/" + s.ID.String(),
		Data:      map[string]interface{}{"shiftId": s.ID.String()},
	}
}

func (svc *Service) respondedNotification(s *Shift, candidate *Candidate, response OfferResponse) *notification.Notification {
	return &notification.Notification{
		UserID:   s.CreatedBy,
		Type:     "shift_" + string(response),
		Title:    fmt.Sprintf("Shift offer %s", response),
		Message: fmt.Sprintf("%s %s the shift on %s from %s to %s.",
			candidate.CaregiverName, response, s.Date.Format("2006-01-02"), s.StartTime, s.EndTime),
		Priority:  notification.PriorityNormal,
		ActionURL: "/shifts/" + s.ID.String(),
		Data:      map[string]interface{}{"shiftId": s.ID.String()},
	}
}
