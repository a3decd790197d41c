package shift

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestMinuteOfDay(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"00:00", 0, false},
		{"09:30", 570, false},
		{"23:59", 1439, false},
		{"24:00", 0, true},
		{"12:60", 0, true},
		{"nine", 0, true},
		{"", 0, true},
		{"9", 0, true},
	}
	for _, tt := range tests {
		got, err := MinuteOfDay(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("MinuteOfDay(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("MinuteOfDay(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name                   string
		aStart, aEnd, bStart, bEnd int
		want                   bool
	}{
		{"identical", 540, 1020, 540, 1020, true},
		{"partial overlap", 540, 720, 660, 900, true},
		{"contained", 540, 1020, 600, 660, true},
		{"back to back", 540, 720, 720, 900, false},
		{"disjoint", 540, 600, 900, 1020, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Overlaps(tt.aStart, tt.aEnd, tt.bStart, tt.bEnd); got != tt.want {
				t.Errorf("Overlaps() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWeekBounds(t *testing.T) {
	// 2026-03-04 is a Wednesday.
	wed := time.Date(2026, 3, 4, 15, 30, 0, 0, time.UTC)
	start, end := WeekBounds(wed)

	if start.Weekday() != time.Sunday || !start.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("week start = %v, want Sunday 2026-03-01", start)
	}
	if end.Weekday() != time.Saturday || !end.Equal(time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("week end = %v, want Saturday 2026-03-07", end)
	}

	// A Sunday anchors its own week.
	sun := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	start, _ = WeekBounds(sun)
	if !start.Equal(sun) {
		t.Errorf("Sunday week start = %v, want itself", start)
	}
}

func TestCascadeState_CurrentCandidate(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	cs := &CascadeState{RankedCandidates: []Candidate{{CaregiverID: a}, {CaregiverID: b}}}

	if cur := cs.CurrentCandidate(); cur == nil || cur.CaregiverID != a {
		t.Errorf("index 0: got %v, want first candidate", cur)
	}
	cs.CurrentOfferIndex = 1
	if cur := cs.CurrentCandidate(); cur == nil || cur.CaregiverID != b {
		t.Errorf("index 1: got %v, want second candidate", cur)
	}
	cs.CurrentOfferIndex = 2
	if cur := cs.CurrentCandidate(); cur != nil {
		t.Errorf("exhausted list: got %v, want nil", cur)
	}

	var nilState *CascadeState
	if cur := nilState.CurrentCandidate(); cur != nil {
		t.Errorf("nil state: got %v, want nil", cur)
	}
}

func TestCascadeState_OfferExpired(t *testing.T) {
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	expiry := now.Add(-time.Second)

	if !(&CascadeState{CurrentOfferExpiresAt: &expiry}).OfferExpired(now) {
		t.Error("lapsed expiry should report expired")
	}
	future := now.Add(time.Minute)
	if (&CascadeState{CurrentOfferExpiresAt: &future}).OfferExpired(now) {
		t.Error("future expiry should not report expired")
	}
	if (&CascadeState{CurrentOfferExpiresAt: &now}).OfferExpired(now) {
		t.Error("expiry exactly now is not yet lapsed")
	}
	if (&CascadeState{}).OfferExpired(now) {
		t.Error("no expiry set should not report expired")
	}
}

func TestStatus_IsTerminal(t *testing.T) {
	for _, s := range []Status{StatusCompleted, StatusCancelled} {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []Status{StatusUnfilled, StatusOffered, StatusScheduled, StatusConfirmed, StatusInProgress} {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestCaregiverProfile_DisplayName(t *testing.T) {
	tests := []struct {
		name    string
		profile *CaregiverProfile
		want    string
	}{
		{"full name", &CaregiverProfile{FirstName: "Maria", LastName: "Lopez"}, "Maria Lopez"},
		{"first only", &CaregiverProfile{FirstName: "Maria"}, "Maria"},
		{"email fallback", &CaregiverProfile{Email: "maria@example.com"}, "maria@example.com"},
		{"empty", &CaregiverProfile{}, ""},
		{"nil", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.profile.DisplayName(); got != tt.want {
				t.Errorf("DisplayName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFallbackName(t *testing.T) {
	id := uuid.MustParse("a1b2c3d4-0000-0000-0000-000000000000")
	if got := FallbackName(id); got != "Caregiver a1b2c3" {
		t.Errorf("FallbackName() = %q", got)
	}
}
