package shift

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a shift. Completed and cancelled are
// terminal.
type Status string

const (
	StatusUnfilled   Status = "unfilled"
	StatusOffered    Status = "offered"
	StatusScheduled  Status = "scheduled"
	StatusConfirmed  Status = "confirmed"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// ActiveStatuses are the states that occupy a caregiver's time: they count
// toward conflicts and weekly load.
var ActiveStatuses = []Status{StatusScheduled, StatusConfirmed, StatusInProgress, StatusOffered}

// IsTerminal reports whether no further transitions are allowed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// AssignmentMode selects how a shift gets its caregiver: direct manual
// assignment or the cascade offer engine.
type AssignmentMode string

const (
	ModeManual  AssignmentMode = "manual"
	ModeCascade AssignmentMode = "cascade"
)

// OfferResponse is a candidate's recorded reaction to a cascade offer.
type OfferResponse string

const (
	OfferPending  OfferResponse = "pending"
	OfferAccepted OfferResponse = "accepted"
	OfferDeclined OfferResponse = "declined"
	OfferExpired  OfferResponse = "expired"
)

// Candidate is one scored caregiver in a ranking result. The JSON field names
// are part of the stored cascade document shape.
type Candidate struct {
	CaregiverID   uuid.UUID `json:"caregiverId"`
	CaregiverName string    `json:"caregiverName"`
	Score         int       `json:"score"`
}

// OfferRecord is one entry in the append-only offer history.
type OfferRecord struct {
	CaregiverID uuid.UUID     `json:"caregiverId"`
	Response    OfferResponse `json:"response"`
	OfferedAt   time.Time     `json:"offeredAt"`
	RespondedAt *time.Time    `json:"respondedAt,omitempty"`
}

// CascadeState is the point-in-time offer machine embedded in a cascade
// shift. RankedCandidates is computed once at creation and never re-ranked;
// CurrentOfferIndex only moves forward.
type CascadeState struct {
	RankedCandidates      []Candidate   `json:"rankedCandidates"`
	CurrentOfferIndex     int           `json:"currentOfferIndex"`
	CurrentOfferExpiresAt *time.Time    `json:"currentOfferExpiresAt,omitempty"`
	OfferHistory          []OfferRecord `json:"offerHistory"`
}

// CurrentCandidate returns the candidate the offer pointer rests on, or nil
// when the list is empty or exhausted.
func (c *CascadeState) CurrentCandidate() *Candidate {
	if c == nil || c.CurrentOfferIndex < 0 || c.CurrentOfferIndex >= len(c.RankedCandidates) {
		return nil
	}
	return &c.RankedCandidates[c.CurrentOfferIndex]
}

// OfferExpired reports whether the current offer's window has lapsed.
func (c *CascadeState) OfferExpired(now time.Time) bool {
	return c != nil && c.CurrentOfferExpiresAt != nil && now.After(*c.CurrentOfferExpiresAt)
}

// Shift maps to the scheduled_shifts table: one caregiving block for one
// elder on one date. Times are minute-of-day "HH:MM" strings; overnight
// shifts (end before start) are not supported.
type Shift struct {
	ID              uuid.UUID      `db:"id" json:"id"`
	AgencyID        uuid.UUID      `db:"agency_id" json:"agency_id"`
	ElderID         uuid.UUID      `db:"elder_id" json:"elder_id"`
	CaregiverID     *uuid.UUID     `db:"caregiver_id" json:"caregiver_id,omitempty"`
	Date            time.Time      `db:"date" json:"date"`
	StartTime       string         `db:"start_time" json:"start_time"`
	EndTime         string         `db:"end_time" json:"end_time"`
	DurationMinutes int            `db:"duration_minutes" json:"duration_minutes"`
	Status          Status         `db:"status" json:"status"`
	AssignmentMode  AssignmentMode `db:"assignment_mode" json:"assignment_mode"`
	Cascade         *CascadeState  `db:"cascade_state" json:"cascade_state,omitempty"`
	Notes           *string        `db:"notes" json:"notes,omitempty"`
	CreatedBy       uuid.UUID      `db:"created_by" json:"created_by"`
	ClockInAt       *time.Time     `db:"clock_in_at" json:"clock_in_at,omitempty"`
	ClockOutAt      *time.Time     `db:"clock_out_at" json:"clock_out_at,omitempty"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

// MinuteOfDay parses an "HH:MM" clock time into minutes since midnight.
func MinuteOfDay(clockTime string) (int, error) {
	parts := strings.SplitN(clockTime, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock time %q", clockTime)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid clock time %q", clockTime)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid clock time %q", clockTime)
	}
	return h*60 + m, nil
}

// Overlaps reports half-open [start, end) interval overlap in minutes of day.
func Overlaps(aStart, aEnd, bStart, bEnd int) bool {
	return aStart < bEnd && aEnd > bStart
}

// WeekBounds returns the Sunday and Saturday of the calendar week containing
// the given date, date-only in the date's location.
func WeekBounds(date time.Time) (start, end time.Time) {
	d := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	start = d.AddDate(0, 0, -int(d.Weekday()))
	end = start.AddDate(0, 0, 6)
	return start, end
}

// DateOnly truncates a timestamp to midnight in its location.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
