// Package notification delivers in-app notifications: shift offers with an
// expiry window, cascade outcomes, and care alerts. Notifications are
// persisted per user and surfaced through the web client's inbox.
package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Priority controls inbox ordering and client-side emphasis.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// Notification is a single in-app message addressed to one user.
// ExpiresAt is set on time-boxed notifications (shift offers); expired
// notifications are excluded from inbox listings.
type Notification struct {
	ID        uuid.UUID              `json:"id"`
	UserID    uuid.UUID              `json:"user_id"`
	Type      string                 `json:"type"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Priority  Priority               `json:"priority"`
	ActionURL string                 `json:"action_url,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	ExpiresAt *time.Time             `json:"expires_at,omitempty"`
	ReadAt    *time.Time             `json:"read_at,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// Repository abstracts notification storage.
type Repository interface {
	Create(ctx context.Context, n *Notification) error
	GetByID(ctx context.Context, id uuid.UUID) (*Notification, error)
	ListActiveByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, now time.Time, limit, offset int) ([]*Notification, int, error)
	MarkRead(ctx context.Context, id, userID uuid.UUID, at time.Time) error
	MarkAllRead(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error)
}

// Service validates and persists notifications.
type Service struct {
	repo Repository
	log  zerolog.Logger
	now  func() time.Time
}

func NewService(repo Repository, log zerolog.Logger) *Service {
	return &Service{repo: repo, log: log, now: time.Now}
}

func (s *Service) SetClock(now func() time.Time) { s.now = now }

// Send persists a notification. It participates in any transaction carried
// by ctx, so callers can make delivery atomic with the state change that
// triggered it.
func (s *Service) Send(ctx context.Context, n *Notification) error {
	if n.UserID == uuid.Nil {
		return fmt.Errorf("notification requires a user_id")
	}
	if n.Type == "" {
		return fmt.Errorf("notification requires a type")
	}
	if n.Priority == "" {
		n.Priority = PriorityNormal
	}
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	n.CreatedAt = s.now().UTC()

	if err := s.repo.Create(ctx, n); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	s.log.Debug().
		Str("notification_id", n.ID.String()).
		Str("user_id", n.UserID.String()).
		Str("type", n.Type).
		Msg("notification sent")
	return nil
}

// Inbox returns a user's non-expired notifications, newest first.
func (s *Service) Inbox(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]*Notification, int, error) {
	return s.repo.ListActiveByUser(ctx, userID, unreadOnly, s.now().UTC(), limit, offset)
}

// MarkRead stamps a single notification as read. The userID guard keeps a
// user from acknowledging someone else's notification.
func (s *Service) MarkRead(ctx context.Context, id, userID uuid.UUID) error {
	return s.repo.MarkRead(ctx, id, userID, s.now().UTC())
}

// MarkAllRead stamps every unread notification for the user and returns the
// number updated.
func (s *Service) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.repo.MarkAllRead(ctx, userID, s.now().UTC())
}
