package careplan

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Engine time bands. The log-matching window associates a logged dose event
// with its originating scheduled time; the due-now window is the band where a
// dose is neither overdue nor merely upcoming. Both boundaries are inclusive.
const (
	LogMatchWindow = 30 * time.Minute
	DueNowBand     = 15 * time.Minute
)

// Priority values, lower = more urgent. Overdue tasks start at basePriority
// and gain one point of urgency per 30 minutes late, flooring at 1.
const (
	overdueBasePriority = 10
	priorityDueNow      = 20
	priorityUpcoming    = 50
	priorityCompleted   = 90
	prioritySkipped     = 95
)

// ShouldGenerateToday reports whether a scheduled item produces timed tasks
// on the given day. As-needed items and items without configured times never
// do; weekly items only on their active weekdays; everything else daily.
func ShouldGenerateToday(item *ScheduledItem, today time.Time) bool {
	if item.Frequency.Type == FreqAsNeeded {
		return false
	}
	if len(item.Frequency.Times) == 0 {
		return false
	}
	if item.Frequency.Type == FreqWeekly {
		weekday := int(today.Weekday())
		for _, d := range item.Frequency.Days {
			if d == weekday {
				return true
			}
		}
		return false
	}
	return true
}

// EvaluateDose classifies one scheduled clock time against the day's logs.
// A taken or skipped log within the matching window is terminal. A missed log
// is deliberately not: the dose keeps surfacing as overdue until it is
// re-logged as taken or skipped. Without a terminal log the classification is
// purely time-based relative to now.
func EvaluateDose(scheduledTime string, logs []DoseLog, now time.Time) (TaskStatus, int) {
	scheduledAt, err := AtClockTime(now, scheduledTime)
	if err != nil {
		return StatusUpcoming, 0
	}

	for i := range logs {
		l := &logs[i]
		diff := l.EffectiveTime().Sub(scheduledAt)
		if diff < 0 {
			diff = -diff
		}
		if diff > LogMatchWindow {
			continue
		}
		switch l.Status {
		case DoseSkipped:
			return StatusSkipped, 0
		case DoseTaken:
			return StatusCompleted, 0
		}
	}

	minutesUntil := scheduledAt.Sub(now).Minutes()
	switch {
	case minutesUntil < -DueNowBand.Minutes():
		return StatusOverdue, int(math.Round(-minutesUntil))
	case minutesUntil > DueNowBand.Minutes():
		return StatusUpcoming, 0
	default:
		return StatusDueNow, 0
	}
}

// TaskPriority maps a status (and, for overdue, the lateness) to an integer
// priority. Lower is more urgent.
func TaskPriority(status TaskStatus, overdueMinutes int) int {
	switch status {
	case StatusOverdue:
		p := overdueBasePriority - overdueMinutes/30
		if p < 1 {
			p = 1
		}
		return p
	case StatusDueNow:
		return priorityDueNow
	case StatusUpcoming:
		return priorityUpcoming
	case StatusCompleted:
		return priorityCompleted
	default:
		return prioritySkipped
	}
}

// Prioritize orders tasks in place: priority ascending, then most-late first
// among equally overdue tasks, then soonest scheduled time. The sort is
// stable so equal tasks keep their generation order.
func Prioritize(tasks []*Task) []*Task {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		if a.Status == StatusOverdue && b.Status == StatusOverdue && a.OverdueMinutes != b.OverdueMinutes {
			return a.OverdueMinutes > b.OverdueMinutes
		}
		return a.ScheduledAt.Before(b.ScheduledAt)
	})
	return tasks
}

// GenerateDayTasks builds the full prioritized queue for one elder's day:
// one task per (item, configured clock time). All five statuses are included;
// filtering to active-only is the caller's concern.
func GenerateDayTasks(medications, supplements []*ScheduledItem, medicationLogs, supplementLogs []DoseLog, elderName string, now time.Time) []*Task {
	var tasks []*Task
	tasks = append(tasks, itemTasks(medications, medicationLogs, elderName, now)...)
	tasks = append(tasks, itemTasks(supplements, supplementLogs, elderName, now)...)
	return Prioritize(tasks)
}

func itemTasks(items []*ScheduledItem, logs []DoseLog, elderName string, now time.Time) []*Task {
	var tasks []*Task
	for _, item := range items {
		if !ShouldGenerateToday(item, now) {
			continue
		}
		itemLogs := logsForItem(logs, item)
		for _, clockTime := range item.Frequency.Times {
			scheduledAt, err := AtClockTime(now, clockTime)
			if err != nil {
				continue
			}
			status, overdue := EvaluateDose(clockTime, itemLogs, now)
			tasks = append(tasks, &Task{
				ID:             taskID(item, clockTime),
				Type:           item.Type,
				ItemID:         item.ID,
				ElderID:        item.ElderID,
				ElderName:      elderName,
				Name:           item.Name,
				Dosage:         item.Dosage,
				ScheduledTime:  clockTime,
				ScheduledAt:    scheduledAt,
				Status:         status,
				Priority:       TaskPriority(status, overdue),
				OverdueMinutes: overdue,
			})
		}
	}
	return tasks
}

func logsForItem(logs []DoseLog, item *ScheduledItem) []DoseLog {
	var out []DoseLog
	for _, l := range logs {
		if l.ItemID == item.ID {
			out = append(out, l)
		}
	}
	return out
}

// NextTask returns the most urgent task that still needs action, or nil when
// everything is completed or skipped — the "all caught up" signal.
func NextTask(tasks []*Task) *Task {
	for _, t := range tasks {
		if t.Status == StatusCompleted || t.Status == StatusSkipped {
			continue
		}
		return t
	}
	return nil
}

// AtClockTime resolves an "HH:MM" clock time against the date of ref, in
// ref's location.
func AtClockTime(ref time.Time, clockTime string) (time.Time, error) {
	h, m, err := parseClockTime(clockTime)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(ref.Year(), ref.Month(), ref.Day(), h, m, 0, 0, ref.Location()), nil
}

func parseClockTime(s string) (hour, minute int, err error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid clock time %q", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid clock time %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid clock time %q", s)
	}
	return hour, minute, nil
}

func taskID(item *ScheduledItem, clockTime string) string {
	return fmt.Sprintf("%s-%s-%s", item.Type, item.ID, strings.ReplaceAll(clockTime, ":", ""))
}
