package services

import (
	"context"
	"time"

	"github.com/anonto42/linkup/backend/internal/livequery"
	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/internal/permissions"
	"github.com/anonto42/linkup/backend/internal/repositories"
	apperrors "github.com/anonto42/linkup/backend/pkg/errors"
)

type NotificationService struct {
	d Deps
}

func NewNotificationService(d Deps) *NotificationService {
	return &NotificationService{d: d}
}

func (s *NotificationService) NotificationsQuery(uid string, limit int) livequery.Query[models.NotificationView] {
	limit = clampLimit(limit, 20, 100)
	return livequery.Query[models.NotificationView]{
		Stream: "notifications",
		Topics: []string{livequery.NotificationsTopic(uid)},
		Fetch: func(ctx context.Context) ([]models.NotificationView, error) {
			list, _, err := s.d.Notifications.GetByRecipientID(ctx, uid, 1, limit)
			if err != nil {
				return nil, storeError(err, "notifications")
			}
			return s.withActors(ctx, list)
		},
	}
}

// UnreadCountQuery delivers a single-element snapshot holding the count.
func (s *NotificationService) UnreadCountQuery(uid string) livequery.Query[int64] {
	return livequery.Query[int64]{
		Stream: "unread_count",
		Topics: []string{livequery.NotificationsTopic(uid)},
		Fetch: func(ctx context.Context) ([]int64, error) {
			n, err := s.d.Notifications.GetUnreadCount(ctx, uid)
			if err != nil {
				return nil, storeError(err, "notifications")
			}
			return []int64{n}, nil
		},
	}
}

func (s *NotificationService) SubscribeToNotifications(uid string, limit int, onData func(livequery.Snapshot[models.NotificationView])) livequery.Unsubscribe {
	return livequery.Subscribe(s.d.Broker, s.NotificationsQuery(uid, limit), onData)
}

func (s *NotificationService) SubscribeToUnreadCount(uid string, onData func(livequery.Snapshot[int64])) livequery.Unsubscribe {
	return livequery.Subscribe(s.d.Broker, s.UnreadCountQuery(uid), onData)
}

type NotificationPage struct {
	Items []models.NotificationView `json:"items"`
	Total int64                     `json:"total"`
}

func (s *NotificationService) List(ctx context.Context, uid string, page, limit int) (*NotificationPage, error) {
	list, total, err := s.d.Notifications.GetByRecipientID(ctx, uid, page, clampLimit(limit, 20, 100))
	if err != nil {
		return nil, storeError(err, "notifications")
	}
	views, err := s.withActors(ctx, list)
	if err != nil {
		return nil, err
	}
	return &NotificationPage{Items: views, Total: total}, nil
}

func (s *NotificationService) Grouped(ctx context.Context, uid string) (*repositories.GroupedNotifications, error) {
	g, err := s.d.Notifications.GetGrouped(ctx, uid, time.Now())
	if err != nil {
		return nil, storeError(err, "notifications")
	}
	return g, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, uid string) (int64, error) {
	n, err := s.d.Notifications.GetUnreadCount(ctx, uid)
	return n, storeError(err, "notifications")
}

// MarkRead marks one of actor's notifications read. Notifications owned by
// someone else are reported as not found.
func (s *NotificationService) MarkRead(ctx context.Context, actor Actor, id uint) error {
	ok, err := s.d.Notifications.MarkAsRead(ctx, actor.ID, id)
	if err != nil {
		return storeError(err, "notification")
	}
	if !ok {
		return apperrors.NewNotFoundError("notification")
	}
	s.d.Broker.Publish(ctx, livequery.NotificationsTopic(actor.ID))
	return nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, actor Actor) (int64, error) {
	n, err := s.d.Notifications.MarkAllAsRead(ctx, actor.ID)
	if err != nil {
		return 0, storeError(err, "notifications")
	}
	if n > 0 {
		s.d.Broker.Publish(ctx, livequery.NotificationsTopic(actor.ID))
	}
	return n, nil
}

// SendBulk sends a system notification to every active user, or to every
// active user holding req.Role. It returns the number of recipients.
func (s *NotificationService) SendBulk(ctx context.Context, actor Actor, req models.BulkNotificationRequest) (int, error) {
	if err := authorize(actor, permissions.SendBulkNotifications); err != nil {
		return 0, err
	}
	var role permissions.Role
	if req.Role != "" {
		r, ok := permissions.ParseRole(req.Role)
		if !ok {
			return 0, apperrors.NewInvalidInputError("unknown role: " + req.Role)
		}
		role = r
	}
	ids, err := s.d.Users.ListIDsByRole(ctx, role)
	if err != nil {
		return 0, storeError(err, "users")
	}
	if len(ids) == 0 {
		return 0, nil
	}

	batch := make([]models.Notification, 0, len(ids))
	for _, id := range ids {
		batch = append(batch, models.Notification{
			RecipientID: id,
			ActorID:     actor.ID,
			Type:        models.NotificationSystem,
			Title:       req.Title,
			Message:     req.Message,
			TargetType:  "system",
			Data:        req.Data,
		})
	}
	if err := s.d.Notifications.CreateMany(ctx, batch); err != nil {
		return 0, storeError(err, "notifications")
	}

	topics := make([]string, len(ids))
	for i, id := range ids {
		topics[i] = livequery.NotificationsTopic(id)
	}
	s.d.Broker.Publish(ctx, topics...)
	return len(ids), nil
}

func (s *NotificationService) withActors(ctx context.Context, list []models.Notification) ([]models.NotificationView, error) {
	actors := make([]string, len(list))
	for i := range list {
		actors[i] = list[i].ActorID
	}
	cards, err := compactUsers(ctx, s.d.Users, actors)
	if err != nil {
		return nil, storeError(err, "users")
	}
	out := make([]models.NotificationView, len(list))
	for i := range list {
		out[i] = models.NotificationView{Notification: list[i]}
		if c, ok := cards[list[i].ActorID]; ok {
			out[i].Actor = &c
		}
	}
	return out, nil
}
