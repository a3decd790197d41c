package careplan

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
)

type mockItemRepo struct {
	items   map[uuid.UUID]*ScheduledItem
	created []*ScheduledItem
}

func newMockItemRepo() *mockItemRepo {
	return &mockItemRepo{items: map[uuid.UUID]*ScheduledItem{}}
}

func (m *mockItemRepo) Create(ctx context.Context, item *ScheduledItem) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	m.items[item.ID] = item
	m.created = append(m.created, item)
	return nil
}

func (m *mockItemRepo) GetByID(ctx context.Context, id uuid.UUID) (*ScheduledItem, error) {
	item, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return item, nil
}

func (m *mockItemRepo) Update(ctx context.Context, item *ScheduledItem) error {
	m.items[item.ID] = item
	return nil
}

func (m *mockItemRepo) Deactivate(ctx context.Context, id uuid.UUID) error {
	if item, ok := m.items[id]; ok {
		item.Active = false
	}
	return nil
}

func (m *mockItemRepo) ListActiveByElder(ctx context.Context, elderID uuid.UUID, itemType ItemType) ([]*ScheduledItem, error) {
	var out []*ScheduledItem
	for _, item := range m.items {
		if item.ElderID == elderID && item.Type == itemType && item.Active {
			out = append(out, item)
		}
	}
	return out, nil
}

type mockLogRepo struct {
	logs []DoseLog
}

func (m *mockLogRepo) Create(ctx context.Context, l *DoseLog) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	m.logs = append(m.logs, *l)
	return nil
}

func (m *mockLogRepo) ListByElderBetween(ctx context.Context, elderID uuid.UUID, itemType ItemType, from, to time.Time) ([]DoseLog, error) {
	var out []DoseLog
	for _, l := range m.logs {
		if l.ElderID == elderID && l.ItemType == itemType {
			out = append(out, l)
		}
	}
	return out, nil
}

type mockElderDir struct {
	name string
	err  error
}

func (m *mockElderDir) ElderName(ctx context.Context, id uuid.UUID) (string, error) {
	return m.name, m.err
}

func newTestService() (*Service, *mockItemRepo, *mockLogRepo) {
	items := newMockItemRepo()
	logs := &mockLogRepo{}
	svc := NewService(items, logs, &mockElderDir{name: "Ruth Martin"})
	svc.SetClock(func() time.Time { return testNow })
	return svc, items, logs
}

func TestCreateItem_Validation(t *testing.T) {
	svc, _, _ := newTestService()
	elderID := uuid.New()

	tests := []struct {
		name    string
		item    *ScheduledItem
		wantErr bool
	}{
		{"valid daily", &ScheduledItem{ElderID: elderID, Type: TypeMedication, Name: "Lisinopril", Frequency: Frequency{Type: FreqDaily, Times: []string{"08:00"}}}, false},
		{"missing elder", &ScheduledItem{Type: TypeMedication, Name: "X", Frequency: Frequency{Type: FreqDaily}}, true},
		{"missing name", &ScheduledItem{ElderID: elderID, Type: TypeMedication, Frequency: Frequency{Type: FreqDaily}}, true},
		{"bad type", &ScheduledItem{ElderID: elderID, Type: "vitamin", Name: "X", Frequency: Frequency{Type: FreqDaily}}, true},
		{"bad frequency", &ScheduledItem{ElderID: elderID, Type: TypeMedication, Name: "X", Frequency: Frequency{Type: "hourly"}}, true},
		{"bad clock time", &ScheduledItem{ElderID: elderID, Type: TypeMedication, Name: "X", Frequency: Frequency{Type: FreqDaily, Times: []string{"25:00"}}}, true},
		{"bad weekday", &ScheduledItem{ElderID: elderID, Type: TypeMedication, Name: "X", Frequency: Frequency{Type: FreqWeekly, Times: []string{"08:00"}, Days: []int{7}}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.CreateItem(context.Background(), tt.item)
			if (err != nil) != tt.wantErr {
				t.Errorf("CreateItem() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && !tt.item.Active {
				t.Error("created item should be active")
			}
		})
	}
}

func TestRecordDose_StampsItemFields(t *testing.T) {
	svc, items, logs := newTestService()
	item := dailyItem("08:00")
	items.items[item.ID] = item

	l := &DoseLog{ItemID: item.ID, Status: DoseTaken}
	if err := svc.RecordDose(context.Background(), l); err != nil {
		t.Fatalf("RecordDose() error = %v", err)
	}
	if l.ItemType != item.Type || l.ElderID != item.ElderID {
		t.Errorf("log not stamped from item: type=%s elder=%s", l.ItemType, l.ElderID)
	}
	if !l.CreatedAt.Equal(testNow) {
		t.Errorf("CreatedAt = %v, want clock time", l.CreatedAt)
	}
	if len(logs.logs) != 1 {
		t.Fatalf("expected 1 persisted log, got %d", len(logs.logs))
	}
}

func TestRecordDose_Validation(t *testing.T) {
	svc, items, _ := newTestService()
	item := dailyItem("08:00")
	items.items[item.ID] = item

	if err := svc.RecordDose(context.Background(), &DoseLog{Status: DoseTaken}); err == nil {
		t.Error("expected error for missing item_id")
	}
	if err := svc.RecordDose(context.Background(), &DoseLog{ItemID: item.ID, Status: "forgot"}); err == nil {
		t.Error("expected error for invalid status")
	}
	if err := svc.RecordDose(context.Background(), &DoseLog{ItemID: uuid.New(), Status: DoseTaken}); err == nil {
		t.Error("expected error for unknown item")
	}
}

func TestDayTasks_Summary(t *testing.T) {
	svc, items, logs := newTestService()
	elderID := uuid.New()

	med := &ScheduledItem{
		ID: uuid.New(), ElderID: elderID, Type: TypeMedication, Name: "Lisinopril",
		Frequency: Frequency{Type: FreqTwiceDaily, Times: []string{"08:00", "20:00"}}, Active: true,
	}
	supp := &ScheduledItem{
		ID: uuid.New(), ElderID: elderID, Type: TypeSupplement, Name: "Vitamin D",
		Frequency: Frequency{Type: FreqDaily, Times: []string{"09:00"}}, Active: true,
	}
	items.items[med.ID] = med
	items.items[supp.ID] = supp

	morning := time.Date(2026, 3, 4, 8, 5, 0, 0, time.UTC)
	logs.logs = append(logs.logs, DoseLog{
		ID: uuid.New(), ItemID: med.ID, ItemType: TypeMedication, ElderID: elderID,
		Status: DoseTaken, ScheduledTime: &morning, CreatedAt: morning,
	})

	summary, err := svc.DayTasks(context.Background(), elderID)
	if err != nil {
		t.Fatalf("DayTasks() error = %v", err)
	}
	if summary.TotalCount != 3 {
		t.Fatalf("TotalCount = %d, want 3", summary.TotalCount)
	}
	if summary.CompletedCount != 1 {
		t.Errorf("CompletedCount = %d, want 1", summary.CompletedCount)
	}
	if summary.AllCaughtUp {
		t.Error("should not be all caught up with open doses")
	}
	// 09:00 supplement is 3h overdue and outranks the 20:00 dose.
	if summary.Next == nil || summary.Next.Name != "Vitamin D" {
		t.Errorf("Next = %+v, want overdue Vitamin D", summary.Next)
	}
	if summary.Tasks[0].ElderName != "Ruth Martin" {
		t.Errorf("elder name not resolved: %q", summary.Tasks[0].ElderName)
	}
}

func TestDayTasks_AllCaughtUp(t *testing.T) {
	svc, items, logs := newTestService()
	elderID := uuid.New()

	med := &ScheduledItem{
		ID: uuid.New(), ElderID: elderID, Type: TypeMedication, Name: "Lisinopril",
		Frequency: Frequency{Type: FreqDaily, Times: []string{"08:00"}}, Active: true,
	}
	items.items[med.ID] = med

	at := time.Date(2026, 3, 4, 8, 0, 0, 0, time.UTC)
	logs.logs = append(logs.logs, DoseLog{
		ID: uuid.New(), ItemID: med.ID, ItemType: TypeMedication, ElderID: elderID,
		Status: DoseTaken, ScheduledTime: &at, CreatedAt: at,
	})

	summary, err := svc.DayTasks(context.Background(), elderID)
	if err != nil {
		t.Fatalf("DayTasks() error = %v", err)
	}
	if !summary.AllCaughtUp || summary.Next != nil {
		t.Errorf("expected all caught up, got next=%+v", summary.Next)
	}
}

func TestDayTasks_ElderLookupFailure(t *testing.T) {
	items := newMockItemRepo()
	svc := NewService(items, &mockLogRepo{}, &mockElderDir{err: fmt.Errorf("unknown elder")})
	svc.SetClock(func() time.Time { return testNow })

	if _, err := svc.DayTasks(context.Background(), uuid.New()); err == nil {
		t.Error("expected error when elder cannot be resolved")
	}
}
