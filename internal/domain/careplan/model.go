package careplan

import (
	"time"

	"github.com/google/uuid"
)

// ItemType distinguishes medications from supplements. Both share the same
// schedule shape and flow through the same task engine.
type ItemType string

const (
	TypeMedication ItemType = "medication"
	TypeSupplement ItemType = "supplement"
)

// FrequencyType describes how often a scheduled item is administered.
type FrequencyType string

const (
	FreqDaily      FrequencyType = "daily"
	FreqTwiceDaily FrequencyType = "twice_daily"
	FreqThreeTimes FrequencyType = "three_times"
	FreqFourTimes  FrequencyType = "four_times"
	FreqWeekly     FrequencyType = "weekly"
	FreqCustom     FrequencyType = "custom"
	FreqAsNeeded   FrequencyType = "asNeeded"
)

// Frequency is the schedule descriptor embedded in a ScheduledItem.
// Times are clock times in "HH:MM" format. Days holds active weekdays
// (0 = Sunday) and is only meaningful for weekly items.
type Frequency struct {
	Type  FrequencyType `json:"type"`
	Times []string      `json:"times,omitempty"`
	Days  []int         `json:"days,omitempty"`
}

// ScheduledItem maps to the scheduled_items table. One row per medication or
// supplement on an elder's care plan.
type ScheduledItem struct {
	ID        uuid.UUID `db:"id" json:"id"`
	ElderID   uuid.UUID `db:"elder_id" json:"elder_id"`
	Type      ItemType  `db:"item_type" json:"type"`
	Name      string    `db:"name" json:"name"`
	Dosage    string    `db:"dosage" json:"dosage"`
	Frequency Frequency `db:"frequency" json:"frequency"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// DoseStatus is the recorded outcome of one administration event.
type DoseStatus string

const (
	DoseTaken   DoseStatus = "taken"
	DoseMissed  DoseStatus = "missed"
	DoseSkipped DoseStatus = "skipped"
)

// DoseLog maps to the dose_logs table. Append-only: one administration event
// for one ScheduledItem.
type DoseLog struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	ItemID        uuid.UUID  `db:"item_id" json:"item_id"`
	ItemType      ItemType   `db:"item_type" json:"item_type"`
	ElderID       uuid.UUID  `db:"elder_id" json:"elder_id"`
	Status        DoseStatus `db:"status" json:"status"`
	ScheduledTime *time.Time `db:"scheduled_time" json:"scheduled_time,omitempty"`
	Note          *string    `db:"note" json:"note,omitempty"`
	RecordedBy    *uuid.UUID `db:"recorded_by" json:"recorded_by,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

// EffectiveTime returns the timestamp used for log-to-dose matching: the
// recorded scheduled time when present, otherwise the creation time.
func (l *DoseLog) EffectiveTime() time.Time {
	if l.ScheduledTime != nil && !l.ScheduledTime.IsZero() {
		return *l.ScheduledTime
	}
	return l.CreatedAt
}

// TaskStatus classifies one scheduled dose relative to "now".
type TaskStatus string

const (
	StatusOverdue   TaskStatus = "overdue"
	StatusDueNow    TaskStatus = "due_now"
	StatusUpcoming  TaskStatus = "upcoming"
	StatusCompleted TaskStatus = "completed"
	StatusSkipped   TaskStatus = "skipped"
)

// Task is one prioritized dose instance for a single day. Derived on every
// call, never persisted.
type Task struct {
	ID             string     `json:"id"`
	Type           ItemType   `json:"type"`
	ItemID         uuid.UUID  `json:"item_id"`
	ElderID        uuid.UUID  `json:"elder_id"`
	ElderName      string     `json:"elder_name"`
	Name           string     `json:"name"`
	Dosage         string     `json:"dosage"`
	ScheduledTime  string     `json:"scheduled_time"`
	ScheduledAt    time.Time  `json:"scheduled_at"`
	Status         TaskStatus `json:"status"`
	Priority       int        `json:"priority"`
	OverdueMinutes int        `json:"overdue_minutes"`
}

// DaySummary is the caller-facing view of one elder's day: the full ordered
// queue plus the "next most important thing" and completion counts.
type DaySummary struct {
	Tasks          []*Task `json:"tasks"`
	Next           *Task   `json:"next,omitempty"`
	CompletedCount int     `json:"completed_count"`
	TotalCount     int     `json:"total_count"`
	AllCaughtUp    bool    `json:"all_caught_up"`
}
