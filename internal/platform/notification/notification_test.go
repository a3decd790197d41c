package notification

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type mockRepo struct {
	byID map[uuid.UUID]*Notification
}

func newMockRepo() *mockRepo {
	return &mockRepo{byID: map[uuid.UUID]*Notification{}}
}

func (m *mockRepo) Create(ctx context.Context, n *Notification) error {
	m.byID[n.ID] = n
	return nil
}

func (m *mockRepo) GetByID(ctx context.Context, id uuid.UUID) (*Notification, error) {
	n, ok := m.byID[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return n, nil
}

func (m *mockRepo) ListActiveByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, now time.Time, limit, offset int) ([]*Notification, int, error) {
	var out []*Notification
	for _, n := range m.byID {
		if n.UserID != userID {
			continue
		}
		if n.ExpiresAt != nil && !n.ExpiresAt.After(now) {
			continue
		}
		if unreadOnly && n.ReadAt != nil {
			continue
		}
		out = append(out, n)
	}
	return out, len(out), nil
}

func (m *mockRepo) MarkRead(ctx context.Context, id, userID uuid.UUID, at time.Time) error {
	n, ok := m.byID[id]
	if !ok || n.UserID != userID {
		return fmt.Errorf("not found")
	}
	n.ReadAt = &at
	return nil
}

func (m *mockRepo) MarkAllRead(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error) {
	var count int64
	for _, n := range m.byID {
		if n.UserID == userID && n.ReadAt == nil {
			n.ReadAt = &at
			count++
		}
	}
	return count, nil
}

func newTestService() (*Service, *mockRepo, time.Time) {
	repo := newMockRepo()
	svc := NewService(repo, zerolog.New(os.Stderr).Level(zerolog.Disabled))
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	svc.SetClock(func() time.Time { return now })
	return svc, repo, now
}

func TestSend(t *testing.T) {
	svc, repo, now := newTestService()

	n := &Notification{UserID: uuid.New(), Type: "shift_offer", Title: "New shift offer"}
	if err := svc.Send(context.Background(), n); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if n.ID == uuid.Nil {
		t.Error("id not assigned")
	}
	if n.Priority != PriorityNormal {
		t.Errorf("priority = %s, want default normal", n.Priority)
	}
	if !n.CreatedAt.Equal(now) {
		t.Errorf("created_at = %v, want clock time", n.CreatedAt)
	}
	if repo.byID[n.ID] == nil {
		t.Error("notification not persisted")
	}
}

func TestSend_Validation(t *testing.T) {
	svc, _, _ := newTestService()

	if err := svc.Send(context.Background(), &Notification{Type: "x"}); err == nil {
		t.Error("expected error for missing user_id")
	}
	if err := svc.Send(context.Background(), &Notification{UserID: uuid.New()}); err == nil {
		t.Error("expected error for missing type")
	}
}

func TestInbox_ExcludesExpired(t *testing.T) {
	svc, repo, now := newTestService()
	userID := uuid.New()

	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)
	repo.byID[uuid.New()] = &Notification{ID: uuid.New(), UserID: userID, Type: "a", ExpiresAt: &past}
	live := &Notification{ID: uuid.New(), UserID: userID, Type: "b", ExpiresAt: &future}
	repo.byID[live.ID] = live

	got, total, err := svc.Inbox(context.Background(), userID, false, 20, 0)
	if err != nil {
		t.Fatalf("Inbox() error = %v", err)
	}
	if total != 1 || len(got) != 1 || got[0].ID != live.ID {
		t.Errorf("expected only the unexpired notification, got %d", total)
	}
}

func TestMarkRead_And_UnreadFilter(t *testing.T) {
	svc, repo, _ := newTestService()
	userID := uuid.New()

	a := &Notification{ID: uuid.New(), UserID: userID, Type: "a"}
	b := &Notification{ID: uuid.New(), UserID: userID, Type: "b"}
	repo.byID[a.ID] = a
	repo.byID[b.ID] = b

	if err := svc.MarkRead(context.Background(), a.ID, userID); err != nil {
		t.Fatalf("MarkRead() error = %v", err)
	}
	if a.ReadAt == nil {
		t.Error("read_at not stamped")
	}

	_, total, err := svc.Inbox(context.Background(), userID, true, 20, 0)
	if err != nil {
		t.Fatalf("Inbox() error = %v", err)
	}
	if total != 1 {
		t.Errorf("unread count = %d, want 1", total)
	}

	// Another user cannot acknowledge this notification.
	if err := svc.MarkRead(context.Background(), b.ID, uuid.New()); err == nil {
		t.Error("expected error marking another user's notification")
	}
}

func TestMarkAllRead(t *testing.T) {
	svc, repo, _ := newTestService()
	userID := uuid.New()
	for i := 0; i < 3; i++ {
		id := uuid.New()
		repo.byID[id] = &Notification{ID: id, UserID: userID, Type: "x"}
	}
	other := uuid.New()
	repo.byID[other] = &Notification{ID: other, UserID: uuid.New(), Type: "x"}

	count, err := svc.MarkAllRead(context.Background(), userID)
	if err != nil {
		t.Fatalf("MarkAllRead() error = %v", err)
	}
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}
	if repo.byID[other].ReadAt != nil {
		t.Error("other user's notification should be untouched")
	}
}
